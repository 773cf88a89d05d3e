package block

// BlockBehavior определяет свойства типа блока
type BlockBehavior interface {
	ID() BlockID
	// Material - каноничное имя материала в верхнем регистре
	Material() string
	Solid() bool
	// Breakable - false для неразрушаемых материалов
	Breakable() bool
}

// simpleBehavior покрывает статичные блоки без собственного состояния
type simpleBehavior struct {
	id        BlockID
	material  string
	solid     bool
	breakable bool
}

func (b simpleBehavior) ID() BlockID      { return b.id }
func (b simpleBehavior) Material() string { return b.material }
func (b simpleBehavior) Solid() bool      { return b.solid }
func (b simpleBehavior) Breakable() bool  { return b.breakable }

// Регистрируем базовые блоки при импорте пакета
func init() {
	Register(simpleBehavior{id: AirBlockID, material: "AIR"})
	Register(simpleBehavior{id: StoneBlockID, material: "STONE", solid: true, breakable: true})
	Register(simpleBehavior{id: GrassBlockID, material: "GRASS_BLOCK", solid: true, breakable: true})
	Register(simpleBehavior{id: WaterBlockID, material: "WATER"})
	Register(simpleBehavior{id: SandBlockID, material: "SAND", solid: true, breakable: true})
	Register(simpleBehavior{id: DirtBlockID, material: "DIRT", solid: true, breakable: true})
	Register(simpleBehavior{id: BedrockBlockID, material: "BEDROCK", solid: true})
}
