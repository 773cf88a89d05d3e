package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/decinco/miniworld/internal/api"
	"github.com/decinco/miniworld/internal/auth"
	"github.com/decinco/miniworld/internal/command"
	"github.com/decinco/miniworld/internal/config"
	"github.com/decinco/miniworld/internal/eventbus"
	"github.com/decinco/miniworld/internal/logging"
	"github.com/decinco/miniworld/internal/miniature"
	"github.com/decinco/miniworld/internal/multiverse"
	"github.com/decinco/miniworld/internal/observability"
	"github.com/decinco/miniworld/internal/region"
	"github.com/decinco/miniworld/internal/storage"
	"github.com/decinco/miniworld/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $MMWU_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	logging.Configure(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🌍 Запуск сервиса миниатюр миров...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		logging.Error("❌ Ошибка инициализации OpenTelemetry: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === ХРАНИЛИЩЕ И МИРЫ ===
	store, err := storage.NewWorldStorage(cfg.Server.DataPath, cfg.Storage.Compression)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища миров: %v", err)
	}

	directory := world.NewDirectory(store)
	directory.Run(context.Background(), cfg.Storage.AutoSaveInterval())

	worlds := multiverse.NewManager(directory, store)
	n, err := worlds.LoadPersistedWorlds(ctx)
	if err != nil {
		logging.Error("❌ Не все сохранённые миры загружены: %v", err)
	}
	logging.Info("📦 Загружено сохранённых миров: %d", n)

	// === МЕТРИКИ ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// === ШИНА СОБЫТИЙ ===
	bus := eventbus.FromConfig(cfg.EventBus)
	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		logging.Warn("Не удалось подписать логгер событий: %v", err)
	}
	busMetrics := eventbus.NewMetricsExporter(bus, reg)
	busMetrics.Start()

	// === МЕНЕДЖЕР МИНИАТЮР ===
	opts := miniature.Options{Bus: bus, Registerer: reg}
	regions, regionsOK := region.Detect(ctx, cfg.Region)
	if regionsOK {
		opts.Regions = regions
		logging.Info("🛡️  Интеграция регионов включена (%s)", cfg.Region.Backend)
	}
	miniatures := miniature.NewManager(worlds, directory, opts)

	// === REST API ===
	var authenticator *auth.Authenticator
	if cfg.Auth.JWTSecret != "" {
		authenticator, err = auth.NewAuthenticator(cfg.Auth.JWTSecret)
		if err != nil {
			log.Fatalf("❌ Некорректный JWT секрет: %v", err)
		}
	}

	restAddr := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	restServer := api.NewRestServer(api.Config{
		Port:       restAddr,
		Miniatures: miniatures,
		Auth:       authenticator,
		Registry:   reg,
	})
	go func() {
		if err := restServer.Start(); err != nil {
			logging.Error("❌ Ошибка REST API: %v", err)
			stop()
		}
	}()

	// Отдельный эндпоинт Prometheus для scrape без авторизации и трассировки
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка HTTP сервера метрик: %v", err)
		}
	}()

	// === КОНСОЛЬ ОПЕРАТОРА ===
	if cfg.Server.Console {
		go runConsole(ctx, command.NewDispatcher(miniatures))
	}

	logging.Info("✅ Сервис запущен")
	logging.Info("   🌐 REST API: http://localhost%s", restAddr)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restAddr)
	logging.Info("   📈 Метрики: http://localhost%s/metrics", metricsServer.Addr)

	<-ctx.Done()
	logging.Info("📡 Получен сигнал завершения, остановка...")

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()

	logging.Debug("Остановка REST API...")
	if err := restServer.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	_ = metricsServer.Shutdown(shutdownCtx)

	// Все миниатюры удаляются до остановки автосохранения
	logging.Info("🧹 Удаление миниатюр...")
	if err := miniatures.CleanMiniatures(shutdownCtx); err != nil {
		logging.Error("❌ Не все миниатюры удалены: %v", err)
	}

	logging.Debug("Остановка автосохранения...")
	if err := directory.Stop(); err != nil {
		logging.Error("❌ Ошибка финального сохранения миров: %v", err)
	}
	if err := store.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия хранилища: %v", err)
	}

	busMetrics.Stop()
	if err := bus.Close(); err != nil {
		logging.Error("Ошибка закрытия шины событий: %v", err)
	}
	if regions != nil {
		if err := regions.Close(); err != nil {
			logging.Error("Ошибка закрытия хранилища регионов: %v", err)
		}
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logging.Error("Ошибка остановки OpenTelemetry: %v", err)
	}

	logging.Info("👋 Сервис остановлен")
}

// runConsole читает команды оператора из stdin до завершения ctx или EOF
func runConsole(ctx context.Context, d *command.Dispatcher) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if reply := d.Execute(ctx, line); reply != "" {
				fmt.Println(reply)
			}
		}
	}
}
