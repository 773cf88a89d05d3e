package region

import (
	"context"
	"fmt"

	"github.com/decinco/miniworld/internal/config"
	"github.com/decinco/miniworld/internal/logging"
	"github.com/decinco/miniworld/internal/vec"
	"github.com/decinco/miniworld/internal/world"
)

// Service - интеграция защиты регионов для миров рантайма
type Service struct {
	store Store
	log   *logging.Logger
}

// NewService создаёт сервис поверх хранилища
func NewService(store Store) *Service {
	return &Service{store: store, log: logging.GetRegionLogger()}
}

// Define добавляет или заменяет регион мира
func (s *Service) Define(ctx context.Context, w *world.World, r Region) error {
	return s.store.Put(ctx, w.Name(), r)
}

// Regions возвращает регионы мира
func (s *Service) Regions(ctx context.Context, w *world.World) ([]Region, error) {
	return s.store.List(ctx, w.Name())
}

// RegionsAt возвращает регионы, содержащие точку, по убыванию приоритета
func (s *Service) RegionsAt(ctx context.Context, w *world.World, pos vec.Vec3) ([]Region, error) {
	all, err := s.store.List(ctx, w.Name())
	if err != nil {
		return nil, err
	}

	var out []Region
	for _, r := range all {
		if r.Contains(pos) {
			out = append(out, r)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority > out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// CopyRegions переносит все регионы source в target; прежние регионы target заменяются
func (s *Service) CopyRegions(ctx context.Context, source, target *world.World) error {
	regions, err := s.store.List(ctx, source.Name())
	if err != nil {
		return fmt.Errorf("чтение регионов %s: %w", source.Name(), err)
	}
	if err := s.store.Replace(ctx, target.Name(), regions); err != nil {
		return err
	}

	s.log.Debug("Скопировано регионов %s -> %s: %d", source.Name(), target.Name(), len(regions))
	return nil
}

// DropRegions удаляет все регионы мира
func (s *Service) DropRegions(ctx context.Context, w *world.World) error {
	return s.store.Drop(ctx, w.Name())
}

// Close закрывает хранилище
func (s *Service) Close() error {
	return s.store.Close()
}

// Detect решает при старте, доступна ли интеграция регионов.
// Если она включена, но бэкенд недоступен, интеграция отключается с записью в лог.
func Detect(ctx context.Context, cfg config.RegionConfig) (*Service, bool) {
	log := logging.GetRegionLogger()

	if !cfg.Integration {
		log.Info("Интеграция регионов выключена")
		return nil, false
	}

	switch cfg.Backend {
	case "", "memory":
		log.Info("Интеграция регионов включена (memory)")
		return NewService(NewMemoryStore()), true
	case "redis":
		store, err := NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn("Интеграция регионов недоступна, отключаем: %v", err)
			return nil, false
		}
		log.Info("Интеграция регионов включена (redis %s)", cfg.RedisAddr)
		return NewService(store), true
	default:
		log.Warn("Неизвестный бэкенд регионов %q, интеграция отключена", cfg.Backend)
		return nil, false
	}
}
