package world

import (
	"fmt"
	"sync"

	"github.com/decinco/miniworld/internal/vec"
	"github.com/decinco/miniworld/internal/world/block"
)

const (
	ChunkSize = 16  // Размер чанка по X и Z
	MinY      = 0   // Нижняя граница мира
	MaxY      = 255 // Верхняя граница мира
)

// Chunk представляет участок мира 16x16 столбцов высотой MinY..MaxY.
// Столбец хранится срезом до самого верхнего непустого блока.
type Chunk struct {
	Coords vec.Vec2 // Координаты чанка в мире

	columns [ChunkSize][ChunkSize][]block.BlockID
	dirty   bool // Есть несохранённые изменения
	mu      sync.RWMutex
}

// NewChunk создаёт пустой (воздух) чанк с указанными координатами
func NewChunk(coords vec.Vec2) *Chunk {
	return &Chunk{Coords: coords}
}

// ErrOutOfBounds возвращается при обращении за пределы высоты мира
var ErrOutOfBounds = fmt.Errorf("координата вне допустимой высоты [%d, %d]", MinY, MaxY)

func checkLocal(local vec.Vec3) error {
	if local.Y < MinY || local.Y > MaxY {
		return ErrOutOfBounds
	}
	if local.X < 0 || local.X >= ChunkSize || local.Z < 0 || local.Z >= ChunkSize {
		return fmt.Errorf("локальные координаты %v вне чанка", local)
	}
	return nil
}

// GetBlock возвращает ID блока по локальным координатам
func (c *Chunk) GetBlock(local vec.Vec3) block.BlockID {
	if checkLocal(local) != nil {
		return block.AirBlockID
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	col := c.columns[local.X][local.Z]
	if local.Y >= len(col) {
		return block.AirBlockID
	}
	return col[local.Y]
}

// SetBlock устанавливает блок по локальным координатам
func (c *Chunk) SetBlock(local vec.Vec3, id block.BlockID) error {
	if err := checkLocal(local); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	col := c.columns[local.X][local.Z]
	if local.Y >= len(col) {
		if id == block.AirBlockID {
			return nil
		}
		grown := make([]block.BlockID, local.Y+1)
		copy(grown, col)
		col = grown
	}
	col[local.Y] = id

	// Срезаем воздух сверху, чтобы столбцы не росли бесконечно
	top := len(col)
	for top > 0 && col[top-1] == block.AirBlockID {
		top--
	}
	c.columns[local.X][local.Z] = col[:top]
	c.dirty = true
	return nil
}

// Column возвращает копию столбца блоков
func (c *Chunk) Column(x, z int) []block.BlockID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	col := c.columns[x][z]
	out := make([]block.BlockID, len(col))
	copy(out, col)
	return out
}

// SetColumn заменяет столбец целиком (используется при загрузке из хранилища)
func (c *Chunk) SetColumn(x, z int, col []block.BlockID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := make([]block.BlockID, len(col))
	copy(cp, col)
	c.columns[x][z] = cp
}

// BlockCount возвращает количество непустых блоков
func (c *Chunk) BlockCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for x := 0; x < ChunkSize; x++ {
		for z := 0; z < ChunkSize; z++ {
			for _, id := range c.columns[x][z] {
				if id != block.AirBlockID {
					count++
				}
			}
		}
	}
	return count
}

// IsDirty возвращает true, если в чанке есть несохранённые изменения
func (c *Chunk) IsDirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// MarkDirty помечает чанк как изменённый
func (c *Chunk) MarkDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// ClearChanges сбрасывает флаг изменений после сохранения
func (c *Chunk) ClearChanges() {
	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
}

// Clone создаёт глубокую копию чанка
func (c *Chunk) Clone() *Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Chunk{Coords: c.Coords, dirty: c.dirty}
	for x := 0; x < ChunkSize; x++ {
		for z := 0; z < ChunkSize; z++ {
			col := c.columns[x][z]
			if len(col) == 0 {
				continue
			}
			cp := make([]block.BlockID, len(col))
			copy(cp, col)
			clone.columns[x][z] = cp
		}
	}
	return clone
}
