package vec

// Vec3 представляет координаты блока: X, Z - горизонталь, Y - высота
type Vec3 struct {
	X int
	Y int
	Z int
}

// Column возвращает горизонтальную проекцию
func (v Vec3) Column() Vec2 {
	return Vec2{X: v.X, Z: v.Z}
}

// ToChunkCoords возвращает координаты чанка, содержащего блок
func (v Vec3) ToChunkCoords() Vec2 {
	return v.Column().ToChunkCoords()
}

// LocalInChunk возвращает координаты блока внутри чанка; Y не меняется
func (v Vec3) LocalInChunk() Vec3 {
	return Vec3{X: v.X & 0xF, Y: v.Y, Z: v.Z & 0xF}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Within проверяет, что точка лежит в параллелепипеде [min, max] включительно
func (v Vec3) Within(min, max Vec3) bool {
	return v.X >= min.X && v.X <= max.X &&
		v.Y >= min.Y && v.Y <= max.Y &&
		v.Z >= min.Z && v.Z <= max.Z
}
