package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Источник событий этого сервиса
const ServiceSource = "miniworld"

// Типы событий жизненного цикла
const (
	TypeWorldCreated     = "world.created"
	TypeMiniatureCreated = "miniature.created"
	TypeMiniatureRemoved = "miniature.removed"
)

// WorldCreated - создан пустой мир
type WorldCreated struct {
	Name      string `json:"name"`
	Generator string `json:"generator"`
}

// MiniatureCreated - создана миниатюра
type MiniatureCreated struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Mode   string `json:"mode"`            // "indexed" или "linked"
	Index  int    `json:"index,omitempty"` // только для indexed
}

// MiniatureRemoved - миниатюра удалена
type MiniatureRemoved struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Sweep  bool   `json:"sweep"` // удалена при остановке сервера
}

// NewEnvelope упаковывает полезную нагрузку в JSON-конверт
func NewEnvelope(eventType string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("eventbus: сериализация %s: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    ServiceSource,
		EventType: eventType,
		Version:   1,
		Priority:  5,
		Payload:   data,
	}, nil
}

// Decode распаковывает полезную нагрузку конверта
func Decode(ev *Envelope, v interface{}) error {
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		return fmt.Errorf("eventbus: разбор %s: %w", ev.EventType, err)
	}
	return nil
}

// PublishEvent создаёт конверт и публикует его. bus может быть nil.
func PublishEvent(ctx context.Context, bus EventBus, eventType string, payload interface{}) error {
	if bus == nil {
		return nil
	}
	ev, err := NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	return bus.Publish(ctx, ev)
}
