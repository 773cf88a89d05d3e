package block

import "sync"

var (
	registryMu sync.RWMutex
	registry   = make(map[BlockID]BlockBehavior)
	byMaterial = make(map[string]BlockID)
)

// Register добавляет поведение блока в регистр
func Register(behavior BlockBehavior) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[behavior.ID()] = behavior
	byMaterial[behavior.Material()] = behavior.ID()
}

// Get возвращает поведение для указанного ID
func Get(id BlockID) (BlockBehavior, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	behavior, exists := registry[id]
	return behavior, exists
}

// ByMaterial ищет ID блока по имени материала ("BEDROCK", "STONE", ...)
func ByMaterial(material string) (BlockID, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	id, exists := byMaterial[material]
	return id, exists
}

// IsValidBlockID проверяет, является ли ID допустимым идентификатором блока
func IsValidBlockID(id BlockID) bool {
	_, exists := Get(id)
	return exists
}

// MaterialOf возвращает имя материала или "UNKNOWN"
func MaterialOf(id BlockID) string {
	if behavior, ok := Get(id); ok {
		return behavior.Material()
	}
	return "UNKNOWN"
}

// BlockID представляет идентификатор блока
type BlockID uint16

// Константы ID блоков
const (
	AirBlockID     BlockID = iota // 0
	StoneBlockID                  // 1
	GrassBlockID                  // 2
	WaterBlockID                  // 3
	SandBlockID                   // 4
	DirtBlockID                   // 5
	BedrockBlockID                // 6 - неразрушаемый
)
