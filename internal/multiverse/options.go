package multiverse

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/decinco/miniworld/internal/world"
)

var (
	// ErrInvalidWorldName - имя мира не подходит для хранения
	ErrInvalidWorldName = errors.New("invalid world name")
	// ErrUnknownGenerator - генератор с таким идентификатором не зарегистрирован
	ErrUnknownGenerator = errors.New("unknown world generator")
	// ErrNotManaged - мир не отслеживается менеджером
	ErrNotManaged = errors.New("world is not managed by multiverse")
)

var worldNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,96}$`)

// ValidateWorldName проверяет, что имя можно использовать как ключ хранилища
func ValidateWorldName(name string) error {
	if !worldNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidWorldName, name)
	}
	return nil
}

// CreateWorldOptions - параметры создания мира
type CreateWorldOptions struct {
	Name               string
	Environment        world.Environment
	Seed               *int64 // nil - случайный сид
	Type               world.Type
	GenerateStructures bool
	Generator          string // идентификатор генератора; пусто - ландшафт
	UseSpawnAdjust     bool   // искать безопасную точку спауна
}

// LoadedWorld - мир, загруженный и отслеживаемый менеджером
type LoadedWorld struct {
	world    *world.World
	loadedAt time.Time
}

func newLoadedWorld(w *world.World) *LoadedWorld {
	return &LoadedWorld{world: w, loadedAt: time.Now()}
}

// World возвращает мир рантайма
func (lw *LoadedWorld) World() *world.World { return lw.world }

// Name возвращает имя мира
func (lw *LoadedWorld) Name() string { return lw.world.Name() }

// LoadedAt возвращает время загрузки мира
func (lw *LoadedWorld) LoadedAt() time.Time { return lw.loadedAt }
