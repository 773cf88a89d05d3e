package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/decinco/miniworld/internal/miniature"
	"github.com/decinco/miniworld/internal/world"
)

// Miniatures - операции менеджера, которые вызывают консольные команды
type Miniatures interface {
	CreateEmptyWorld(ctx context.Context, name string) (*world.World, error)
	CreateMiniatureOf(ctx context.Context, source *world.World) (*world.World, error)
	CreateLinkedMiniatureOf(ctx context.Context, source *world.World) (*world.World, error)
	RemoveMiniature(ctx context.Context, w *world.World) error
	ListMiniatures() []miniature.Info
	Lookup(name string) (*world.World, bool)
}

const notFound = "could not find that world!"

// handler выполняет команду и возвращает текст ответа оператору
type handler struct {
	usage string
	run   func(ctx context.Context, args []string) string
}

// Dispatcher разбирает строку консоли и вызывает соответствующую команду.
// Имена команд нечувствительны к регистру.
type Dispatcher struct {
	miniatures Miniatures
	handlers   map[string]handler
}

// NewDispatcher регистрирует команды управления миниатюрами
func NewDispatcher(m Miniatures) *Dispatcher {
	d := &Dispatcher{miniatures: m}
	d.handlers = map[string]handler{
		"createvoidworld": {usage: "CreateVoidWorld <name>", run: d.createVoidWorld},
		"createminiature": {usage: "CreateMiniature <world> [linked]", run: d.createMiniature},
		"removeminiature": {usage: "RemoveMiniature <world>", run: d.removeMiniature},
		"listminiatures":  {usage: "ListMiniatures", run: d.listMiniatures},
	}
	return d
}

// Execute выполняет одну строку. Пустая строка даёт пустой ответ.
func (d *Dispatcher) Execute(ctx context.Context, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	name := strings.ToLower(fields[0])
	if name == "help" {
		return d.help()
	}

	h, ok := d.handlers[name]
	if !ok {
		return fmt.Sprintf("Unknown command %q. Type help for a list of commands.", fields[0])
	}
	reply := h.run(ctx, fields[1:])
	if reply == "" {
		return "Usage: " + h.usage
	}
	return reply
}

func (d *Dispatcher) help() string {
	usages := make([]string, 0, len(d.handlers))
	for _, h := range d.handlers {
		usages = append(usages, "  "+h.usage)
	}
	sort.Strings(usages)
	return "Commands:\n" + strings.Join(usages, "\n")
}

func (d *Dispatcher) createVoidWorld(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return ""
	}
	w, err := d.miniatures.CreateEmptyWorld(ctx, args[0])
	if err != nil {
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("World %s created.", w.Name())
}

func (d *Dispatcher) createMiniature(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return ""
	}
	linked := false
	if len(args) > 1 {
		if !strings.EqualFold(args[1], "linked") {
			return ""
		}
		linked = true
	}

	source, ok := d.miniatures.Lookup(args[0])
	if !ok {
		return notFound
	}

	create := d.miniatures.CreateMiniatureOf
	if linked {
		create = d.miniatures.CreateLinkedMiniatureOf
	}
	w, err := create(ctx, source)
	if err != nil {
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("Miniature world %s created.", w.Name())
}

func (d *Dispatcher) removeMiniature(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return ""
	}
	w, ok := d.miniatures.Lookup(args[0])
	if !ok {
		return notFound
	}
	if err := d.miniatures.RemoveMiniature(ctx, w); err != nil {
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("Miniature world %s removed.", args[0])
}

func (d *Dispatcher) listMiniatures(_ context.Context, _ []string) string {
	infos := d.miniatures.ListMiniatures()
	if len(infos) == 0 {
		return "No miniature worlds loaded."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d miniature world(s):", len(infos))
	for _, info := range infos {
		switch info.Mode {
		case miniature.ModeIndexed:
			fmt.Fprintf(&b, "\n  %s (source %s, #%d)", info.Name, info.Source, info.Index)
		case miniature.ModeLinked:
			fmt.Fprintf(&b, "\n  %s (linked to %s)", info.Name, info.Source)
		default:
			fmt.Fprintf(&b, "\n  %s", info.Name)
		}
	}
	return b.String()
}
