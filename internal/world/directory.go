package world

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/decinco/miniworld/internal/logging"
)

var (
	// ErrWorldExists - мир с таким именем уже загружен
	ErrWorldExists = errors.New("world with this name is already loaded")
	// ErrWorldNotLoaded - мир не найден среди загруженных
	ErrWorldNotLoaded = errors.New("world is not loaded")
)

// Saver сохраняет изменённые чанки мира
type Saver interface {
	SaveWorld(w *World) error
}

// Directory - реестр загруженных миров процесса (по имени и по ID).
// Также отвечает за периодическое автосохранение.
type Directory struct {
	mu     sync.RWMutex
	byID   map[ID]*World
	byName map[string]ID
	saver  Saver // может быть nil: тогда миры живут только в памяти

	saveMu     sync.Mutex
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewDirectory создаёт пустой реестр миров
func NewDirectory(saver Saver) *Directory {
	return &Directory{
		byID:   make(map[ID]*World),
		byName: make(map[string]ID),
		saver:  saver,
	}
}

// Add регистрирует загруженный мир
func (d *Directory) Add(w *World) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byName[w.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrWorldExists, w.Name())
	}
	d.byID[w.ID()] = w
	d.byName[w.Name()] = w.ID()
	return nil
}

// Remove выгружает мир. Возвращает false, если мир не был загружен.
func (d *Directory) Remove(id ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.byID[id]
	if !ok {
		return false
	}
	delete(d.byID, id)
	delete(d.byName, w.Name())
	return true
}

// GetWorldByName возвращает загруженный мир по имени
func (d *Directory) GetWorldByName(name string) (*World, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return d.byID[id], true
}

// GetWorldByID возвращает загруженный мир по идентификатору
func (d *Directory) GetWorldByID(id ID) (*World, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	w, ok := d.byID[id]
	return w, ok
}

// ListLoadedWorlds возвращает снимок загруженных миров, отсортированный по имени
func (d *Directory) ListLoadedWorlds() []*World {
	d.mu.RLock()
	worlds := make([]*World, 0, len(d.byID))
	for _, w := range d.byID {
		worlds = append(worlds, w)
	}
	d.mu.RUnlock()

	sort.Slice(worlds, func(i, j int) bool { return worlds[i].Name() < worlds[j].Name() })
	return worlds
}

// SetAutoSave включает или выключает автосохранение мира
func (d *Directory) SetAutoSave(w *World, enabled bool) {
	w.SetAutoSave(enabled)
	logging.Debug("Автосохранение мира %s: %v", w.Name(), enabled)
}

// SaveAll сохраняет все миры с включённым автосохранением
func (d *Directory) SaveAll() error {
	if d.saver == nil {
		return nil
	}

	d.saveMu.Lock()
	defer d.saveMu.Unlock()

	var errs []error
	for _, w := range d.ListLoadedWorlds() {
		if !w.AutoSave() {
			continue
		}
		if err := d.saver.SaveWorld(w); err != nil {
			errs = append(errs, fmt.Errorf("сохранение мира %s: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Run запускает цикл автосохранения с указанным периодом
func (d *Directory) Run(parentCtx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(parentCtx)
	d.cancelFunc = cancel

	d.wg.Add(1)
	go d.autoSaveLoop(ctx, interval)
}

// Stop останавливает автосохранение и выполняет финальное сохранение
func (d *Directory) Stop() error {
	if d.cancelFunc != nil {
		d.cancelFunc()
	}
	d.wg.Wait()
	return d.SaveAll()
}

// autoSaveLoop периодически сохраняет миры
func (d *Directory) autoSaveLoop(ctx context.Context, interval time.Duration) {
	defer d.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.SaveAll(); err != nil {
				logging.Error("Ошибка автосохранения: %v", err)
			}
		}
	}
}
