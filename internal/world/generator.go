package world

import (
	"sync"

	"github.com/decinco/miniworld/internal/util"
	"github.com/decinco/miniworld/internal/vec"
	"github.com/decinco/miniworld/internal/world/block"
)

const (
	// EmptyGeneratorID - идентификатор генератора пустых (void) миров
	EmptyGeneratorID = "mmwu:empty"
	// TerrainGeneratorID - генератор ландшафта, используется когда генератор не указан
	TerrainGeneratorID = "mmwu:terrain"
)

// Generator генерирует содержимое чанков мира
type Generator interface {
	ID() string
	GenerateChunk(seed int64, coords vec.Vec2) *Chunk
	SpawnLocation(seed int64) vec.Vec3
}

var (
	generatorsMu sync.RWMutex
	generators   = make(map[string]Generator)
)

// RegisterGenerator регистрирует генератор под его идентификатором
func RegisterGenerator(g Generator) {
	generatorsMu.Lock()
	defer generatorsMu.Unlock()
	generators[g.ID()] = g
}

// GetGenerator возвращает генератор по идентификатору; пустой id - генератор ландшафта
func GetGenerator(id string) (Generator, bool) {
	if id == "" {
		id = TerrainGeneratorID
	}

	generatorsMu.RLock()
	defer generatorsMu.RUnlock()
	g, ok := generators[id]
	return g, ok
}

func init() {
	RegisterGenerator(EmptyGenerator{})
	RegisterGenerator(NewTerrainGenerator())
}

// EmptyGenerator создаёт пустые чанки с единственной точкой спауна
type EmptyGenerator struct{}

func (EmptyGenerator) ID() string { return EmptyGeneratorID }

func (EmptyGenerator) GenerateChunk(_ int64, coords vec.Vec2) *Chunk {
	return NewChunk(coords)
}

func (EmptyGenerator) SpawnLocation(int64) vec.Vec3 {
	return vec.Vec3{X: 0, Y: 65, Z: 0}
}

// Константы высот для генерации ландшафта
const (
	SeaLevel   = 62
	BaseHeight = 48
	HeightSpan = 32
)

// TerrainGenerator генерирует холмистый ландшафт по шуму Перлина
type TerrainGenerator struct {
	NoiseScale float64 // Масштаб шума (сглаженность ландшафта)

	mu     sync.Mutex
	noises map[int64]*util.Noise
}

// NewTerrainGenerator создаёт генератор ландшафта
func NewTerrainGenerator() *TerrainGenerator {
	return &TerrainGenerator{
		NoiseScale: 0.05,
		noises:     make(map[int64]*util.Noise),
	}
}

func (tg *TerrainGenerator) ID() string { return TerrainGeneratorID }

func (tg *TerrainGenerator) noise(seed int64) *util.Noise {
	tg.mu.Lock()
	defer tg.mu.Unlock()

	n, ok := tg.noises[seed]
	if !ok {
		n = util.NewNoise(seed)
		tg.noises[seed] = n
	}
	return n
}

// HeightAt возвращает высоту поверхности в мировых координатах
func (tg *TerrainGenerator) HeightAt(seed int64, x, z int) int {
	n := tg.noise(seed)
	h := n.Noise2D(float64(x)*tg.NoiseScale, float64(z)*tg.NoiseScale)
	return BaseHeight + int(h*HeightSpan)
}

// GenerateChunk заполняет столбцы: бедрок, камень, земля, трава или песок, вода до уровня моря
func (tg *TerrainGenerator) GenerateChunk(seed int64, coords vec.Vec2) *Chunk {
	chunk := NewChunk(coords)
	origin := coords.ChunkOrigin()

	for x := 0; x < ChunkSize; x++ {
		for z := 0; z < ChunkSize; z++ {
			height := tg.HeightAt(seed, origin.X+x, origin.Z+z)
			top := height
			if top < SeaLevel {
				top = SeaLevel
			}

			col := make([]block.BlockID, top+1)
			col[0] = block.BedrockBlockID
			for y := 1; y <= top; y++ {
				switch {
				case y < height-3:
					col[y] = block.StoneBlockID
				case y < height:
					col[y] = block.DirtBlockID
				case y == height && height < SeaLevel:
					col[y] = block.SandBlockID
				case y == height:
					col[y] = block.GrassBlockID
				default:
					col[y] = block.WaterBlockID
				}
			}
			chunk.SetColumn(x, z, col)
		}
	}

	return chunk
}

func (tg *TerrainGenerator) SpawnLocation(seed int64) vec.Vec3 {
	h := tg.HeightAt(seed, 0, 0)
	if h < SeaLevel {
		h = SeaLevel
	}
	return vec.Vec3{X: 0, Y: h + 1, Z: 0}
}
