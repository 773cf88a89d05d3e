package world

import (
	"sort"
	"sync"

	"github.com/decinco/miniworld/internal/vec"
	"github.com/decinco/miniworld/internal/world/block"
	"github.com/google/uuid"
)

// ID - стабильный идентификатор загруженного мира. Не меняется при переименовании.
type ID uuid.UUID

// NewID создаёт новый уникальный идентификатор мира
func NewID() ID {
	return ID(uuid.New())
}

// ParseID разбирает строковое представление идентификатора
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, err
	}
	return ID(u), nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Environment - тип измерения мира
type Environment string

const (
	EnvironmentNormal Environment = "NORMAL"
	EnvironmentNether Environment = "NETHER"
	EnvironmentTheEnd Environment = "THE_END"
)

// Type - тип генерации мира
type Type string

const (
	TypeNormal Type = "NORMAL"
	TypeFlat   Type = "FLAT"
)

// Settings - параметры, с которыми мир был создан
type Settings struct {
	Environment        Environment `json:"environment"`
	Seed               int64       `json:"seed"`
	Type               Type        `json:"type"`
	GenerateStructures bool        `json:"generate_structures"`
	GeneratorID        string      `json:"generator"`
	Spawn              vec.Vec3    `json:"spawn"`
}

// World - загруженный игровой мир
type World struct {
	id        ID
	name      string
	settings  Settings
	generator Generator
	chunks    map[vec.Vec2]*Chunk
	autoSave  bool
	mu        sync.RWMutex
}

// NewWorld создаёт мир с новым ID. Автосохранение включено по умолчанию.
func NewWorld(name string, settings Settings, generator Generator) *World {
	return &World{
		id:        NewID(),
		name:      name,
		settings:  settings,
		generator: generator,
		chunks:    make(map[vec.Vec2]*Chunk),
		autoSave:  true,
	}
}

func (w *World) ID() ID       { return w.id }
func (w *World) Name() string { return w.name }

// Settings возвращает копию параметров мира
func (w *World) Settings() Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings
}

// UpdateSettings заменяет параметры мира (например, после корректировки спауна)
func (w *World) UpdateSettings(settings Settings) {
	w.mu.Lock()
	w.settings = settings
	w.mu.Unlock()
}

// SpawnLocation возвращает точку спауна
func (w *World) SpawnLocation() vec.Vec3 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings.Spawn
}

// AutoSave сообщает, сохраняется ли мир на диск автоматически
func (w *World) AutoSave() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.autoSave
}

// SetAutoSave включает или выключает автосохранение
func (w *World) SetAutoSave(enabled bool) {
	w.mu.Lock()
	w.autoSave = enabled
	w.mu.Unlock()
}

// Chunk возвращает чанк по координатам, генерируя его при первом обращении
func (w *World) Chunk(coords vec.Vec2) *Chunk {
	w.mu.RLock()
	chunk, ok := w.chunks[coords]
	w.mu.RUnlock()
	if ok {
		return chunk
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if chunk, ok := w.chunks[coords]; ok {
		return chunk
	}

	if w.generator != nil {
		chunk = w.generator.GenerateChunk(w.settings.Seed, coords)
	} else {
		chunk = NewChunk(coords)
	}
	// Свежесгенерированный чанк пока совпадает с генератором
	chunk.ClearChanges()
	w.chunks[coords] = chunk
	return chunk
}

// PutChunk кладёт готовый чанк (например, загруженный из хранилища)
func (w *World) PutChunk(chunk *Chunk) {
	w.mu.Lock()
	w.chunks[chunk.Coords] = chunk
	w.mu.Unlock()
}

// LoadedChunks возвращает загруженные чанки, упорядоченные по координатам
func (w *World) LoadedChunks() []*Chunk {
	w.mu.RLock()
	chunks := make([]*Chunk, 0, len(w.chunks))
	for _, c := range w.chunks {
		chunks = append(chunks, c)
	}
	w.mu.RUnlock()

	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Coords.X != chunks[j].Coords.X {
			return chunks[i].Coords.X < chunks[j].Coords.X
		}
		return chunks[i].Coords.Z < chunks[j].Coords.Z
	})
	return chunks
}

// GetBlockAt возвращает блок в мировых координатах
func (w *World) GetBlockAt(x, y, z int) block.BlockID {
	pos := vec.Vec3{X: x, Y: y, Z: z}
	return w.Chunk(pos.ToChunkCoords()).GetBlock(pos.LocalInChunk())
}

// SetBlockAt устанавливает блок в мировых координатах
func (w *World) SetBlockAt(x, y, z int, id block.BlockID) error {
	pos := vec.Vec3{X: x, Y: y, Z: z}
	return w.Chunk(pos.ToChunkCoords()).SetBlock(pos.LocalInChunk(), id)
}

// MaterialAt возвращает имя материала блока в мировых координатах
func (w *World) MaterialAt(x, y, z int) string {
	return block.MaterialOf(w.GetBlockAt(x, y, z))
}

// CloneAs создаёт глубокую копию мира под новым именем и с новым ID.
// Копируются только загруженные чанки; остальные сгенерирует тот же генератор.
func (w *World) CloneAs(name string) *World {
	w.mu.RLock()
	defer w.mu.RUnlock()

	clone := &World{
		id:        NewID(),
		name:      name,
		settings:  w.settings,
		generator: w.generator,
		chunks:    make(map[vec.Vec2]*Chunk, len(w.chunks)),
		autoSave:  w.autoSave,
	}
	for coords, chunk := range w.chunks {
		c := chunk.Clone()
		// Копия ещё ни разу не сохранялась
		c.MarkDirty()
		clone.chunks[coords] = c
	}
	return clone
}
