package miniature

import (
	"sync"

	"github.com/decinco/miniworld/internal/world"
)

// Registry - счётчики индексов миниатюр по исходным мирам.
// Индексы монотонны и не освобождаются при удалении миниатюр.
// Связанная миниатюра не хранится: её наличие каждый раз проверяется по реестру миров.
type Registry struct {
	mu       sync.Mutex
	counters map[world.ID]int
	dir      Directory
}

// NewRegistry создаёт пустой реестр
func NewRegistry(dir Directory) *Registry {
	return &Registry{
		counters: make(map[world.ID]int),
		dir:      dir,
	}
}

// NextIndex возвращает следующий свободный индекс для source и сдвигает счётчик
func (r *Registry) NextIndex(source *world.World) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := r.counters[source.ID()]
	r.counters[source.ID()] = index + 1
	return index
}

// Issued возвращает, сколько индексов уже выдано для source
func (r *Registry) Issued(source *world.World) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.counters[source.ID()]
}

// LinkedMiniatureOf возвращает загруженную связанную миниатюру source
func (r *Registry) LinkedMiniatureOf(source *world.World) (*world.World, bool) {
	return r.dir.GetWorldByName(LinkedName(source.Name()))
}
