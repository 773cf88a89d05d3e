package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/decinco/miniworld/internal/auth"
	"github.com/decinco/miniworld/internal/logging"
	"github.com/decinco/miniworld/internal/middleware"
	"github.com/decinco/miniworld/internal/miniature"
	"github.com/decinco/miniworld/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Miniatures - операции менеджера миниатюр, доступные через API
type Miniatures interface {
	CreateEmptyWorld(ctx context.Context, name string) (*world.World, error)
	CreateMiniatureOf(ctx context.Context, source *world.World) (*world.World, error)
	CreateLinkedMiniatureOf(ctx context.Context, source *world.World) (*world.World, error)
	RemoveMiniature(ctx context.Context, w *world.World) error
	ListMiniatures() []miniature.Info
	Lookup(name string) (*world.World, bool)
	RegionsEnabled() bool
}

// Registry - регистр Prometheus, в который пишут метрики и из которого отдаётся /metrics
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// RestServer представляет REST API администрирования миниатюр
type RestServer struct {
	router     *gin.Engine
	server     *http.Server
	miniatures Miniatures
	auth       *auth.Authenticator
	metrics    *ServerMetrics
	log        *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port       string              // адрес для запуска сервера, например ":8088"
	Miniatures Miniatures          // менеджер миниатюр
	Auth       *auth.Authenticator // nil - API без авторизации
	Registry   Registry            // регистр метрик
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	log := logging.GetAPILogger()

	// === Observability middleware ===
	router.Use(otelgin.Middleware("miniworld"))

	loggerMw := middleware.NewRequestLogger(log)
	router.Use(loggerMw.Handler())

	promMw := middleware.NewPrometheusMiddleware("miniworld", config.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Registry)

	rs := &RestServer{
		router:     router,
		miniatures: config.Miniatures,
		auth:       config.Auth,
		metrics:    NewServerMetrics(),
		log:        log,
	}
	rs.server = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Настраиваем маршруты
	rs.setupRoutes()

	return rs
}

// Handler возвращает http.Handler (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")
	if rs.auth != nil {
		api.Use(rs.jwtMiddleware(), rs.adminMiddleware())
	} else {
		rs.log.Warn("JWT секрет не задан: REST API доступен без авторизации")
	}
	{
		api.POST("/worlds", rs.handleCreateWorld)
		api.GET("/miniatures", rs.handleListMiniatures)
		api.POST("/miniatures", rs.handleCreateMiniature)
		api.DELETE("/miniatures/:name", rs.handleRemoveMiniature)
	}

	// Health check
	rs.router.GET("/health", rs.handleHealth)
}

// Start запускает HTTP сервер. Возвращает nil после Stop.
func (rs *RestServer) Start() error {
	rs.log.Info("REST API слушает %s", rs.server.Addr)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop завершает сервер, дожидаясь активных запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.server.Shutdown(ctx)
}
