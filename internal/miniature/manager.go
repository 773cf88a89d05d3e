package miniature

import (
	"context"
	"fmt"

	"github.com/decinco/miniworld/internal/eventbus"
	"github.com/decinco/miniworld/internal/logging"
	"github.com/decinco/miniworld/internal/multiverse"
	"github.com/decinco/miniworld/internal/world"
	"github.com/decinco/miniworld/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Платформа пустого мира: 32x32 блока бедрока на высоте 64
const (
	PlatformY        = 64
	PlatformHalfSize = 16
)

// WorldManager создаёт, клонирует и удаляет миры (реализует multiverse.Manager)
type WorldManager interface {
	CreateWorld(ctx context.Context, opts multiverse.CreateWorldOptions) error
	CloneWorld(ctx context.Context, source *multiverse.LoadedWorld, newName string) (*multiverse.LoadedWorld, error)
	DeleteWorld(ctx context.Context, lw *multiverse.LoadedWorld) error
	ResolveLoadedWorld(id world.ID) (*multiverse.LoadedWorld, bool)
}

// Directory - реестр загруженных миров рантайма (реализует world.Directory)
type Directory interface {
	GetWorldByName(name string) (*world.World, bool)
	ListLoadedWorlds() []*world.World
	SetAutoSave(w *world.World, enabled bool)
}

// RegionCopier копирует защищённые регионы между мирами (реализует region.Service)
type RegionCopier interface {
	CopyRegions(ctx context.Context, source, target *world.World) error
}

// regionDropper - необязательная очистка регионов удалённой миниатюры
type regionDropper interface {
	DropRegions(ctx context.Context, w *world.World) error
}

// Options - необязательные зависимости менеджера
type Options struct {
	Regions    RegionCopier          // nil - интеграция регионов выключена
	Bus        eventbus.EventBus     // nil - события не публикуются
	Registerer prometheus.Registerer // nil - метрики не регистрируются
	Tracer     trace.Tracer          // nil - глобальный TracerProvider
}

// Manager управляет жизненным циклом миниатюр.
// Операции над одним исходным миром выполняются последовательно.
type Manager struct {
	worlds   WorldManager
	dir      Directory
	registry *Registry
	regions  RegionCopier
	bus      eventbus.EventBus
	locks    *keyedMutex
	metrics  *metrics
	tracer   trace.Tracer
	log      *logging.Logger
}

// NewManager создаёт менеджер миниатюр
func NewManager(worlds WorldManager, dir Directory, opts Options) *Manager {
	m := &Manager{
		worlds:   worlds,
		dir:      dir,
		registry: NewRegistry(dir),
		regions:  opts.Regions,
		bus:      opts.Bus,
		locks:    newKeyedMutex(),
		tracer:   opts.Tracer,
		log:      logging.GetMiniatureLogger(),
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer("github.com/decinco/miniworld/internal/miniature")
	}
	m.metrics = newMetrics(opts.Registerer, func() int { return len(m.ListMiniatures()) })
	return m
}

// Registry возвращает реестр счётчиков
func (m *Manager) Registry() *Registry {
	return m.registry
}

// RegionsEnabled сообщает, активна ли интеграция регионов
func (m *Manager) RegionsEnabled() bool {
	return m.regions != nil
}

// Lookup ищет загруженный мир по имени
func (m *Manager) Lookup(name string) (*world.World, bool) {
	return m.dir.GetWorldByName(name)
}

func (m *Manager) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, "miniature."+op, trace.WithAttributes(attrs...))
}

// finish записывает ошибку в span и метрики
func (m *Manager) finish(span trace.Span, op string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.metrics.failed(op, err)
	}
	span.End()
}

func (m *Manager) publish(ctx context.Context, eventType string, payload interface{}) {
	if err := eventbus.PublishEvent(ctx, m.bus, eventType, payload); err != nil {
		m.log.Warn("Не удалось опубликовать %s: %v", eventType, err)
	}
}

// CreateEmptyWorld создаёт пустой мир с платформой из бедрока вокруг начала координат
func (m *Manager) CreateEmptyWorld(ctx context.Context, name string) (w *world.World, err error) {
	ctx, span := m.startSpan(ctx, "CreateEmptyWorld", attribute.String("world.name", name))
	defer func() { m.finish(span, "create_empty", err) }()

	unlock := m.locks.Lock(name)
	defer unlock()

	err = m.worlds.CreateWorld(ctx, multiverse.CreateWorldOptions{
		Name:               name,
		Environment:        world.EnvironmentNormal,
		Seed:               nil,
		Type:               world.TypeNormal,
		GenerateStructures: false,
		Generator:          world.EmptyGeneratorID,
		UseSpawnAdjust:     false,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWorldCreation, name, err)
	}

	w, ok := m.dir.GetWorldByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: мир %s не найден после создания", ErrWorldCreation, name)
	}

	for x := -PlatformHalfSize; x < PlatformHalfSize; x++ {
		for z := -PlatformHalfSize; z < PlatformHalfSize; z++ {
			if err := w.SetBlockAt(x, PlatformY, z, block.BedrockBlockID); err != nil {
				return nil, fmt.Errorf("%w: платформа мира %s: %w", ErrWorldCreation, name, err)
			}
		}
	}

	m.log.Info("Создан пустой мир %s", name)
	m.publish(ctx, eventbus.TypeWorldCreated, eventbus.WorldCreated{Name: name, Generator: world.EmptyGeneratorID})
	return w, nil
}

// CreateMiniatureOf создаёт индексную миниатюру mmwu.miniature.<i>_<source>
func (m *Manager) CreateMiniatureOf(ctx context.Context, source *world.World) (*world.World, error) {
	return m.createMiniature(ctx, source, ModeIndexed)
}

// CreateLinkedMiniatureOf создаёт единственную связанную миниатюру mmwu.miniature.linked.<source>
func (m *Manager) CreateLinkedMiniatureOf(ctx context.Context, source *world.World) (*world.World, error) {
	return m.createMiniature(ctx, source, ModeLinked)
}

func (m *Manager) createMiniature(ctx context.Context, source *world.World, mode Mode) (clone *world.World, err error) {
	op := "create_" + string(mode)
	sourceName := ""
	if source != nil {
		sourceName = source.Name()
	}

	ctx, span := m.startSpan(ctx, "Create",
		attribute.String("miniature.source", sourceName),
		attribute.String("miniature.mode", string(mode)))
	defer func() { m.finish(span, op, err) }()

	if source == nil {
		return nil, fmt.Errorf("%w: исходный мир не задан", ErrInvalidSource)
	}
	if IsMiniatureName(sourceName) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSource, sourceName)
	}

	unlock := m.locks.Lock(sourceName)
	defer unlock()

	index := -1
	var name string
	if mode == ModeLinked {
		if existing, ok := m.registry.LinkedMiniatureOf(source); ok {
			return nil, fmt.Errorf("%w: %s", ErrLinkedMiniatureExists, existing.Name())
		}
		name = LinkedName(sourceName)
	} else {
		// Индекс расходуется даже при последующей ошибке
		index = m.registry.NextIndex(source)
		name = IndexedName(sourceName, index)
	}
	span.SetAttributes(attribute.String("miniature.name", name))

	handle, ok := m.worlds.ResolveLoadedWorld(source.ID())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnloadedWorld, sourceName)
	}

	if _, err := m.worlds.CloneWorld(ctx, handle, name); err != nil {
		return nil, fmt.Errorf("клонирование %s в %s: %w", sourceName, name, err)
	}

	clone, ok = m.dir.GetWorldByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: мир %s не найден после клонирования", ErrWorldCreation, name)
	}

	// Миниатюры одноразовые и не должны сохраняться на диск
	m.dir.SetAutoSave(clone, false)

	if m.regions != nil {
		if err := m.regions.CopyRegions(ctx, source, clone); err != nil {
			m.metrics.failed("copy_regions", err)
			m.log.Warn("Регионы %s не скопированы в %s: %v", sourceName, name, err)
		}
	}

	m.metrics.created.WithLabelValues(string(mode)).Inc()
	m.log.Info("Создана миниатюра %s (источник %s)", name, sourceName)
	m.publish(ctx, eventbus.TypeMiniatureCreated, eventbus.MiniatureCreated{
		Name:   name,
		Source: sourceName,
		Mode:   string(mode),
		Index:  max(index, 0),
	})
	return clone, nil
}

// RemoveMiniature удаляет миниатюру. Мир с обычным именем никогда не передаётся менеджеру миров.
func (m *Manager) RemoveMiniature(ctx context.Context, w *world.World) error {
	return m.removeMiniature(ctx, w, false)
}

func (m *Manager) removeMiniature(ctx context.Context, w *world.World, sweep bool) (err error) {
	name := ""
	if w != nil {
		name = w.Name()
	}

	ctx, span := m.startSpan(ctx, "Remove",
		attribute.String("miniature.name", name),
		attribute.Bool("miniature.sweep", sweep))
	defer func() { m.finish(span, "remove", err) }()

	if w == nil {
		return fmt.Errorf("%w: мир не задан", ErrInvalidTarget)
	}
	if !IsMiniatureName(name) {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, name)
	}

	unlock := m.locks.Lock(lockKey(name))
	defer unlock()

	handle, ok := m.worlds.ResolveLoadedWorld(w.ID())
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnresolvedWorld, name)
	}

	if err := m.worlds.DeleteWorld(ctx, handle); err != nil {
		return fmt.Errorf("удаление %s: %w", name, err)
	}

	if dropper, ok := m.regions.(regionDropper); ok {
		if err := dropper.DropRegions(ctx, w); err != nil {
			m.log.Warn("Регионы миниатюры %s не удалены: %v", name, err)
		}
	}

	m.metrics.removed.Inc()
	m.log.Info("Миниатюра %s удалена", name)
	m.publish(ctx, eventbus.TypeMiniatureRemoved, eventbus.MiniatureRemoved{
		Name:   name,
		Source: describe(name).Source,
		Sweep:  sweep,
	})
	return nil
}

// ListMiniatures возвращает загруженные миниатюры, отсортированные по имени
func (m *Manager) ListMiniatures() []Info {
	var out []Info
	for _, w := range m.dir.ListLoadedWorlds() {
		if IsMiniatureName(w.Name()) {
			out = append(out, describe(w.Name()))
		}
	}
	return out
}
