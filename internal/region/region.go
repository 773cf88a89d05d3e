package region

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/decinco/miniworld/internal/vec"
)

// ErrInvalidRegion - регион не прошёл проверку
var ErrInvalidRegion = errors.New("invalid region")

var regionNamePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// Region - защищённый участок мира (прямоугольный параллелепипед).
type Region struct {
	Name     string            `json:"name"`
	Min      vec.Vec3          `json:"min"`
	Max      vec.Vec3          `json:"max"`
	Priority int               `json:"priority"`
	Flags    map[string]string `json:"flags,omitempty"` // "build" -> "deny" и т.п.
}

// Validate проверяет имя и границы региона
func (r Region) Validate() error {
	if !regionNamePattern.MatchString(r.Name) {
		return fmt.Errorf("%w: имя %q", ErrInvalidRegion, r.Name)
	}
	if r.Min.X > r.Max.X || r.Min.Y > r.Max.Y || r.Min.Z > r.Max.Z {
		return fmt.Errorf("%w: min %v больше max %v", ErrInvalidRegion, r.Min, r.Max)
	}
	return nil
}

// Contains проверяет, попадает ли точка в регион (границы включительно)
func (r Region) Contains(pos vec.Vec3) bool {
	return pos.Within(r.Min, r.Max)
}

// clone возвращает копию региона с собственной картой флагов
func (r Region) clone() Region {
	c := r
	if r.Flags != nil {
		c.Flags = make(map[string]string, len(r.Flags))
		for k, v := range r.Flags {
			c.Flags[k] = v
		}
	}
	return c
}

// Store хранит регионы по имени мира
type Store interface {
	Put(ctx context.Context, worldName string, r Region) error
	List(ctx context.Context, worldName string) ([]Region, error)
	Remove(ctx context.Context, worldName, regionName string) error
	// Replace атомарно заменяет все регионы мира
	Replace(ctx context.Context, worldName string, regions []Region) error
	Drop(ctx context.Context, worldName string) error
	Close() error
}
