package vec

import "math"

// Vec2 представляет горизонтальные координаты (X, Z) - столбец блоков или чанк
type Vec2 struct {
	X, Z int
}

// ToChunkCoords преобразует глобальные координаты в координаты чанка
func (v Vec2) ToChunkCoords() Vec2 {
	return Vec2{X: v.X >> 4, Z: v.Z >> 4} // Деление на 16 с округлением вниз
}

// LocalInChunk возвращает локальные координаты внутри чанка
func (v Vec2) LocalInChunk() Vec2 {
	return Vec2{X: v.X & 0xF, Z: v.Z & 0xF} // Модуль 16
}

// ChunkOrigin возвращает мировые координаты угла чанка
func (v Vec2) ChunkOrigin() Vec2 {
	return Vec2{X: v.X << 4, Z: v.Z << 4}
}

// DistanceTo вычисляет расстояние до другой точки
func (v Vec2) DistanceTo(other Vec2) float64 {
	dx := float64(v.X - other.X)
	dz := float64(v.Z - other.Z)
	return math.Sqrt(dx*dx + dz*dz)
}
