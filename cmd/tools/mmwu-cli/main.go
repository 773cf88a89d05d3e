package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/decinco/miniworld/internal/auth"
	"github.com/decinco/miniworld/internal/eventbus"
)

const (
	defaultNatsURL = "nats://127.0.0.1:4222"
	timeFormat     = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		command  = flag.String("cmd", "tail", "Command: tail, token, secret")
		natsURL  = flag.String("nats", defaultNatsURL, "NATS server URL")
		stream   = flag.String("stream", "MINIATURES", "JetStream stream name")
		types    = flag.String("types", "", "Event types filter (comma-separated)")
		since    = flag.String("since", "1h", "Show events newer than (e.g., 1h, 30m) or RFC3339 time")
		secret   = flag.String("secret", os.Getenv("MMWU_JWT_SECRET"), "Base64 JWT secret (default $MMWU_JWT_SECRET)")
		operator = flag.String("operator", "", "Operator name for the token")
		admin    = flag.Bool("admin", true, "Grant admin claim")
		ttl      = flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	)
	flag.Parse()

	switch *command {
	case "tail":
		if err := tailEvents(&TailOptions{
			URL:    *natsURL,
			Stream: *stream,
			Types:  parseStringList(*types),
			Since:  *since,
		}); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "token":
		token, err := issueToken(*secret, *operator, *admin, *ttl)
		if err != nil {
			log.Fatalf("❌ Token failed: %v", err)
		}
		fmt.Println(token)

	case "secret":
		fmt.Println(auth.GenerateSecureSecret())

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, token, secret")
		os.Exit(1)
	}
}

type TailOptions struct {
	URL    string
	Stream string
	Types  []string
	Since  string
}

// tailEvents выводит события жизненного цикла миниатюр до Ctrl+C
func tailEvents(opts *TailOptions) error {
	from, err := parseSinceTime(opts.Since, time.Now())
	if err != nil {
		return fmt.Errorf("invalid since time: %w", err)
	}

	bus, err := eventbus.NewJetStreamBus(opts.URL, opts.Stream, 0)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🎬 Tailing %s on %s (since %s)\n", opts.Stream, opts.URL, from.Format(time.RFC3339))

	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: opts.Types}, func(_ context.Context, ev *eventbus.Envelope) {
		if ev.Timestamp.Before(from) {
			return
		}
		printEvent(ev)
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	fmt.Println("👋 Stopped")
	return nil
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s [%s] %s\n",
		ev.Timestamp.Local().Format("15:04:05"),
		ev.Source,
		ev.EventType,
		ev.ID)

	// Добавляем детали в зависимости от типа события
	switch ev.EventType {
	case eventbus.TypeMiniatureCreated:
		var p eventbus.MiniatureCreated
		if eventbus.Decode(ev, &p) == nil {
			fmt.Printf("  Miniature: %s Source: %s Mode: %s\n", p.Name, p.Source, p.Mode)
		}
	case eventbus.TypeMiniatureRemoved:
		var p eventbus.MiniatureRemoved
		if eventbus.Decode(ev, &p) == nil {
			fmt.Printf("  Miniature: %s Source: %s Sweep: %v\n", p.Name, p.Source, p.Sweep)
		}
	case eventbus.TypeWorldCreated:
		var p eventbus.WorldCreated
		if eventbus.Decode(ev, &p) == nil {
			fmt.Printf("  World: %s Generator: %s\n", p.Name, p.Generator)
		}
	}
}

// issueToken выпускает токен оператора для REST API
func issueToken(secret, operator string, admin bool, ttl time.Duration) (string, error) {
	if operator == "" {
		return "", fmt.Errorf("-operator is required")
	}
	a, err := auth.NewAuthenticator(secret)
	if err != nil {
		return "", err
	}
	return a.IssueToken(operator, admin, ttl)
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m"
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return time.Time{}, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
