package eventbus

import (
	"github.com/decinco/miniworld/internal/config"
	"github.com/decinco/miniworld/internal/logging"
)

// FromConfig выбирает реализацию шины: пустой URL - in-memory, иначе JetStream.
// Если NATS недоступен, сервис продолжает работу на in-memory шине.
func FromConfig(cfg config.EventBusConfig) EventBus {
	if cfg.URL == "" {
		return NewMemoryBus(cfg.Buffer)
	}

	bus, err := NewJetStreamBus(cfg.URL, cfg.Stream, cfg.RetentionDuration())
	if err != nil {
		logging.Warn("JetStream недоступен (%v), используем in-memory шину", err)
		return NewMemoryBus(cfg.Buffer)
	}
	logging.Info("EventBus: JetStream %s, стрим %s", cfg.URL, cfg.Stream)
	return bus
}
