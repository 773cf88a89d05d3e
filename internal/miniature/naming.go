package miniature

import (
	"strconv"
	"strings"
)

const (
	// Prefix - зарезервированный префикс имён миниатюр
	Prefix = "mmwu.miniature"
	// LinkedInterfix отличает связанную миниатюру от индексных (не может быть числом)
	LinkedInterfix = "linked"
)

// Mode - вид миниатюры
type Mode string

const (
	ModeIndexed Mode = "indexed"
	ModeLinked  Mode = "linked"
	ModeUnknown Mode = "unknown" // имя с префиксом, но нестандартного вида
)

// IsMiniatureName сообщает, принадлежит ли имя миниатюре
func IsMiniatureName(name string) bool {
	return strings.HasPrefix(name, Prefix)
}

// IndexedName строит имя вида mmwu.miniature.<index>_<source>
func IndexedName(source string, index int) string {
	return Prefix + "." + strconv.Itoa(index) + "_" + source
}

// LinkedName строит имя вида mmwu.miniature.linked.<source>
func LinkedName(source string) string {
	return Prefix + "." + LinkedInterfix + "." + source
}

// Info - разобранное имя миниатюры
type Info struct {
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
	Mode   Mode   `json:"mode"`
	Index  int    `json:"index"` // -1 для связанных и нестандартных
}

// ParseName разбирает имя миниатюры. ok == false, если имя не построено
// функциями IndexedName или LinkedName.
func ParseName(name string) (Info, bool) {
	rest, found := strings.CutPrefix(name, Prefix+".")
	if !found {
		return Info{}, false
	}

	if source, linked := strings.CutPrefix(rest, LinkedInterfix+"."); linked {
		if source == "" {
			return Info{}, false
		}
		return Info{Name: name, Source: source, Mode: ModeLinked, Index: -1}, true
	}

	digits, source, found := strings.Cut(rest, "_")
	if !found || digits == "" || source == "" {
		return Info{}, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return Info{}, false
		}
	}
	index, err := strconv.Atoi(digits)
	if err != nil || strconv.Itoa(index) != digits {
		return Info{}, false
	}
	return Info{Name: name, Source: source, Mode: ModeIndexed, Index: index}, true
}

// describe возвращает Info для любого имени миниатюры, включая нестандартные
func describe(name string) Info {
	if info, ok := ParseName(name); ok {
		return info
	}
	return Info{Name: name, Mode: ModeUnknown, Index: -1}
}

// lockKey возвращает ключ блокировки: имя исходного мира или само имя
func lockKey(name string) string {
	if info, ok := ParseName(name); ok {
		return info.Source
	}
	return name
}
