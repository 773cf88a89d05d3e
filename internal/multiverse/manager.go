package multiverse

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/decinco/miniworld/internal/logging"
	"github.com/decinco/miniworld/internal/storage"
	"github.com/decinco/miniworld/internal/world"
	"github.com/decinco/miniworld/internal/world/block"
)

// Store - постоянное хранилище миров (реализует storage.WorldStorage)
type Store interface {
	LoadWorld(name string) (*storage.WorldRecord, []*world.Chunk, error)
	ListWorlds() ([]storage.WorldRecord, error)
	DeleteWorld(name string) error
	HasWorld(name string) (bool, error)
}

// Manager создаёт, клонирует и удаляет миры поверх world.Directory
type Manager struct {
	mu        sync.Mutex
	directory *world.Directory
	store     Store // nil - миры только в памяти
	loaded    map[world.ID]*LoadedWorld
	log       *logging.Logger
}

// NewManager создаёт менеджер миров
func NewManager(directory *world.Directory, store Store) *Manager {
	return &Manager{
		directory: directory,
		store:     store,
		loaded:    make(map[world.ID]*LoadedWorld),
		log:       logging.GetMultiverseLogger(),
	}
}

// Directory возвращает реестр загруженных миров
func (m *Manager) Directory() *world.Directory {
	return m.directory
}

// checkNameFree проверяет, что имя не занято ни загруженным, ни сохранённым миром
func (m *Manager) checkNameFree(name string) error {
	if err := ValidateWorldName(name); err != nil {
		return err
	}
	if _, exists := m.directory.GetWorldByName(name); exists {
		return fmt.Errorf("%w: %s", world.ErrWorldExists, name)
	}
	if m.store != nil {
		has, err := m.store.HasWorld(name)
		if err != nil {
			return fmt.Errorf("проверка хранилища для %s: %w", name, err)
		}
		if has {
			return fmt.Errorf("%w: данные мира %s уже существуют", world.ErrWorldExists, name)
		}
	}
	return nil
}

func (m *Manager) track(w *world.World) (*LoadedWorld, error) {
	if err := m.directory.Add(w); err != nil {
		return nil, err
	}
	lw := newLoadedWorld(w)
	m.loaded[w.ID()] = lw
	return lw, nil
}

// CreateWorld создаёт и загружает новый мир
func (m *Manager) CreateWorld(ctx context.Context, opts CreateWorldOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkNameFree(opts.Name); err != nil {
		return err
	}

	gen, ok := world.GetGenerator(opts.Generator)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGenerator, opts.Generator)
	}

	seed := rand.Int63()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	if opts.Environment == "" {
		opts.Environment = world.EnvironmentNormal
	}
	if opts.Type == "" {
		opts.Type = world.TypeNormal
	}

	w := world.NewWorld(opts.Name, world.Settings{
		Environment:        opts.Environment,
		Seed:               seed,
		Type:               opts.Type,
		GenerateStructures: opts.GenerateStructures,
		GeneratorID:        gen.ID(),
		Spawn:              gen.SpawnLocation(seed),
	}, gen)

	if opts.UseSpawnAdjust {
		adjustSpawn(w)
	}

	if _, err := m.track(w); err != nil {
		return err
	}

	m.log.Info("Создан мир %s (генератор %s, сид %d)", w.Name(), gen.ID(), seed)
	return nil
}

// adjustSpawn поднимает точку спауна над самым верхним твёрдым блоком её столбца
func adjustSpawn(w *world.World) {
	spawn := w.SpawnLocation()
	for y := world.MaxY; y >= world.MinY; y-- {
		behavior, ok := block.Get(w.GetBlockAt(spawn.X, y, spawn.Z))
		if ok && behavior.Solid() {
			settings := w.Settings()
			settings.Spawn.Y = y + 1
			w.UpdateSettings(settings)
			return
		}
	}
}

// CloneWorld копирует загруженный мир под новым именем и загружает копию
func (m *Manager) CloneWorld(ctx context.Context, source *LoadedWorld, newName string) (*LoadedWorld, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("%w: пустой исходный мир", ErrNotManaged)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loaded[source.World().ID()]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotManaged, source.Name())
	}
	if err := m.checkNameFree(newName); err != nil {
		return nil, err
	}

	clone := source.World().CloneAs(newName)
	lw, err := m.track(clone)
	if err != nil {
		return nil, err
	}

	m.log.Info("Мир %s клонирован в %s", source.Name(), newName)
	return lw, nil
}

// DeleteWorld выгружает мир и удаляет его данные из хранилища
func (m *Manager) DeleteWorld(ctx context.Context, lw *LoadedWorld) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if lw == nil {
		return fmt.Errorf("%w: пустой мир", ErrNotManaged)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := lw.World().ID()
	if _, ok := m.loaded[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotManaged, lw.Name())
	}

	m.directory.Remove(id)
	delete(m.loaded, id)

	if m.store != nil {
		if err := m.store.DeleteWorld(lw.Name()); err != nil {
			return err
		}
	}

	m.log.Info("Мир %s удалён", lw.Name())
	return nil
}

// ResolveLoadedWorld возвращает handle мира по его ID
func (m *Manager) ResolveLoadedWorld(id world.ID) (*LoadedWorld, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lw, ok := m.loaded[id]
	return lw, ok
}

// LoadPersistedWorlds загружает все миры из хранилища. Возвращает число загруженных.
func (m *Manager) LoadPersistedWorlds(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}

	records, err := m.store.ListWorlds()
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}

		gen, ok := world.GetGenerator(rec.Settings.GeneratorID)
		if !ok {
			m.log.Warn("Мир %s пропущен: неизвестный генератор %s", rec.Name, rec.Settings.GeneratorID)
			continue
		}

		_, chunks, err := m.store.LoadWorld(rec.Name)
		if err != nil {
			return loaded, fmt.Errorf("загрузка мира %s: %w", rec.Name, err)
		}

		w := world.NewWorld(rec.Name, rec.Settings, gen)
		for _, c := range chunks {
			c.ClearChanges()
			w.PutChunk(c)
		}
		if _, err := m.track(w); err != nil {
			return loaded, err
		}
		loaded++
	}

	m.log.Info("Загружено миров из хранилища: %d", loaded)
	return loaded, nil
}
