package eventbus

import (
	"context"

	"github.com/decinco/miniworld/internal/logging"
)

// StartLoggingListener подписывается на все события и пишет их в лог.
// Функция неблокирующая.
func StartLoggingListener(ctx context.Context, bus EventBus) (Subscription, error) {
	sub, err := bus.Subscribe(ctx, Filter{}, func(ctx context.Context, ev *Envelope) {
		logging.Debug("[EventBus] %s %s src=%s size=%dB", ev.ID, ev.EventType, ev.Source, len(ev.Payload))
	})
	if err != nil {
		return nil, err
	}
	logging.Info("LoggingListener: подписка на все события активирована")
	return sub, nil
}
