package miniature

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/decinco/miniworld/internal/eventbus"
	"github.com/decinco/miniworld/internal/multiverse"
	"github.com/decinco/miniworld/internal/region"
	"github.com/decinco/miniworld/internal/vec"
	"github.com/decinco/miniworld/internal/world"
	"github.com/decinco/miniworld/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyWorlds оборачивает настоящий multiverse.Manager, считает вызовы и умеет подставлять ошибки
type spyWorlds struct {
	inner *multiverse.Manager

	mu          sync.Mutex
	calls       map[string]int
	createErr   error
	cloneErr    error
	deleteErr   error
	skipCreate  bool // CreateWorld сообщает об успехе, но мир не создаёт
	hideResolve bool
}

func newSpyWorlds(inner *multiverse.Manager) *spyWorlds {
	return &spyWorlds{inner: inner, calls: make(map[string]int)}
}

func (s *spyWorlds) record(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func (s *spyWorlds) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *spyWorlds) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *spyWorlds) CreateWorld(ctx context.Context, opts multiverse.CreateWorldOptions) error {
	s.record("create")
	if s.createErr != nil {
		return s.createErr
	}
	if s.skipCreate {
		return nil
	}
	return s.inner.CreateWorld(ctx, opts)
}

func (s *spyWorlds) CloneWorld(ctx context.Context, source *multiverse.LoadedWorld, newName string) (*multiverse.LoadedWorld, error) {
	s.record("clone")
	if s.cloneErr != nil {
		return nil, s.cloneErr
	}
	return s.inner.CloneWorld(ctx, source, newName)
}

func (s *spyWorlds) DeleteWorld(ctx context.Context, lw *multiverse.LoadedWorld) error {
	s.record("delete")
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.inner.DeleteWorld(ctx, lw)
}

func (s *spyWorlds) ResolveLoadedWorld(id world.ID) (*multiverse.LoadedWorld, bool) {
	s.record("resolve")
	if s.hideResolve {
		return nil, false
	}
	return s.inner.ResolveLoadedWorld(id)
}

type fixture struct {
	dir *world.Directory
	mv  *multiverse.Manager
	spy *spyWorlds
	mgr *Manager
	reg *prometheus.Registry
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	dir := world.NewDirectory(nil)
	mv := multiverse.NewManager(dir, nil)
	spy := newSpyWorlds(mv)
	reg := prometheus.NewRegistry()
	opts.Registerer = reg

	return &fixture{
		dir: dir,
		mv:  mv,
		spy: spy,
		mgr: NewManager(spy, dir, opts),
		reg: reg,
	}
}

// source создаёт обычный мир в обход менеджера миниатюр
func (f *fixture) source(t *testing.T, name string) *world.World {
	t.Helper()

	require.NoError(t, f.mv.CreateWorld(context.Background(), multiverse.CreateWorldOptions{
		Name:      name,
		Generator: world.EmptyGeneratorID,
	}))
	w, ok := f.dir.GetWorldByName(name)
	require.True(t, ok)
	return w
}

func TestCreateEmptyWorld_Platform(t *testing.T) {
	f := newFixture(t, Options{})

	w, err := f.mgr.CreateEmptyWorld(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, "test", w.Name())

	queried, ok := f.dir.GetWorldByName("test")
	require.True(t, ok)
	assert.Equal(t, w.ID(), queried.ID())

	settings := queried.Settings()
	assert.Equal(t, world.EmptyGeneratorID, settings.GeneratorID)
	assert.Equal(t, world.EnvironmentNormal, settings.Environment)
	assert.Equal(t, world.TypeNormal, settings.Type)
	assert.False(t, settings.GenerateStructures)

	for x := -16; x <= 15; x++ {
		for z := -16; z <= 15; z++ {
			for y := world.MinY; y <= world.MaxY; y++ {
				material := queried.MaterialAt(x, y, z)
				if y == 64 {
					require.Equal(t, "BEDROCK", material, "(%d, %d, %d)", x, y, z)
				} else {
					require.NotEqual(t, "BEDROCK", material, "(%d, %d, %d)", x, y, z)
				}
			}
		}
	}

	// За пределами платформы пусто
	assert.Equal(t, "AIR", queried.MaterialAt(16, 64, 0))
	assert.Equal(t, "AIR", queried.MaterialAt(-17, 64, 0))
}

func TestCreateEmptyWorld_ExternalFailure(t *testing.T) {
	f := newFixture(t, Options{})
	cause := errors.New("disk full")
	f.spy.createErr = cause

	_, err := f.mgr.CreateEmptyWorld(context.Background(), "test")
	assert.ErrorIs(t, err, ErrWorldCreation)
	assert.ErrorIs(t, err, cause)
}

func TestCreateEmptyWorld_NotQueryable(t *testing.T) {
	f := newFixture(t, Options{})
	f.spy.skipCreate = true

	w, err := f.mgr.CreateEmptyWorld(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrWorldCreation)
	assert.Nil(t, w)
}

func TestCreateEmptyWorld_Duplicate(t *testing.T) {
	f := newFixture(t, Options{})
	f.source(t, "test")

	_, err := f.mgr.CreateEmptyWorld(context.Background(), "test")
	assert.ErrorIs(t, err, ErrWorldCreation)
	assert.ErrorIs(t, err, world.ErrWorldExists)
}

func TestCreateMiniatureOf_MonotonicIndices(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	earth := f.source(t, "earth")

	first, err := f.mgr.CreateMiniatureOf(ctx, earth)
	require.NoError(t, err)
	assert.Equal(t, "mmwu.miniature.0_earth", first.Name())
	assert.False(t, first.AutoSave(), "миниатюра не сохраняется на диск")

	require.NoError(t, f.mgr.RemoveMiniature(ctx, first))

	second, err := f.mgr.CreateMiniatureOf(ctx, earth)
	require.NoError(t, err)
	assert.Equal(t, "mmwu.miniature.1_earth", second.Name(), "индекс не переиспользуется")
	assert.Equal(t, 2, f.mgr.Registry().Issued(earth))
}

func TestCreateMiniatureOf_CopiesContent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	earth := f.source(t, "earth")
	require.NoError(t, earth.SetBlockAt(1, 70, 1, block.StoneBlockID))

	clone, err := f.mgr.CreateMiniatureOf(ctx, earth)
	require.NoError(t, err)
	assert.NotEqual(t, earth.ID(), clone.ID())
	assert.Equal(t, "STONE", clone.MaterialAt(1, 70, 1))
	assert.True(t, earth.AutoSave(), "исходный мир не затронут")
}

func TestCreateMiniatureOf_CountersPerSource(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	earth := f.source(t, "earth")
	nether := f.source(t, "nether")

	a, err := f.mgr.CreateMiniatureOf(ctx, earth)
	require.NoError(t, err)
	b, err := f.mgr.CreateMiniatureOf(ctx, nether)
	require.NoError(t, err)

	assert.Equal(t, "mmwu.miniature.0_earth", a.Name())
	assert.Equal(t, "mmwu.miniature.0_nether", b.Name())
}

func TestCreateLinkedMiniatureOf_LimitOne(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	earth := f.source(t, "earth")

	linked, err := f.mgr.CreateLinkedMiniatureOf(ctx, earth)
	require.NoError(t, err)
	assert.Equal(t, "mmwu.miniature.linked.earth", linked.Name())
	assert.False(t, linked.AutoSave())

	found, ok := f.mgr.Registry().LinkedMiniatureOf(earth)
	require.True(t, ok)
	assert.Equal(t, linked.ID(), found.ID())

	clones := f.spy.count("clone")
	_, err = f.mgr.CreateLinkedMiniatureOf(ctx, earth)
	assert.ErrorIs(t, err, ErrLinkedMiniatureExists)
	assert.Equal(t, clones, f.spy.count("clone"), "клонирование не вызывалось")

	require.NoError(t, f.mgr.RemoveMiniature(ctx, linked))
	_, ok = f.mgr.Registry().LinkedMiniatureOf(earth)
	assert.False(t, ok)

	again, err := f.mgr.CreateLinkedMiniatureOf(ctx, earth)
	require.NoError(t, err)
	assert.Equal(t, "mmwu.miniature.linked.earth", again.Name())
	assert.Zero(t, f.mgr.Registry().Issued(earth), "связанная миниатюра не расходует индексы")
}

func TestCreateMiniatureOf_RejectsMiniatureSource(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	earth := f.source(t, "earth")

	mini, err := f.mgr.CreateMiniatureOf(ctx, earth)
	require.NoError(t, err)

	before := f.spy.total()

	_, err = f.mgr.CreateMiniatureOf(ctx, mini)
	assert.ErrorIs(t, err, ErrInvalidSource)
	_, err = f.mgr.CreateLinkedMiniatureOf(ctx, mini)
	assert.ErrorIs(t, err, ErrInvalidSource)

	assert.Equal(t, before, f.spy.total(), "менеджер миров не вызывался")
	assert.Zero(t, f.mgr.Registry().Issued(mini), "индекс не израсходован")

	_, err = f.mgr.CreateMiniatureOf(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestCreateMiniatureOf_UnloadedWorld(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	earth := f.source(t, "earth")

	f.spy.hideResolve = true
	_, err := f.mgr.CreateMiniatureOf(ctx, earth)
	assert.ErrorIs(t, err, ErrUnloadedWorld)
	assert.Zero(t, f.spy.count("clone"))
	assert.Equal(t, 1, f.mgr.Registry().Issued(earth), "индекс остаётся израсходованным")

	f.spy.hideResolve = false
	mini, err := f.mgr.CreateMiniatureOf(ctx, earth)
	require.NoError(t, err)
	assert.Equal(t, "mmwu.miniature.1_earth", mini.Name())
}

func TestCreateMiniatureOf_CloneFailurePropagates(t *testing.T) {
	f := newFixture(t, Options{})
	earth := f.source(t, "earth")
	cause := errors.New("no space left")
	f.spy.cloneErr = cause

	_, err := f.mgr.CreateMiniatureOf(context.Background(), earth)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, f.spy.count("clone"), "без повторных попыток")
	assert.Empty(t, f.mgr.ListMiniatures())
}

func TestRemoveMiniature_RejectsRealWorld(t *testing.T) {
	f := newFixture(t, Options{})
	earth := f.source(t, "earth")
	before := f.spy.total()

	err := f.mgr.RemoveMiniature(context.Background(), earth)
	assert.ErrorIs(t, err, ErrInvalidTarget)
	assert.Equal(t, before, f.spy.total(), "менеджер миров не вызывался")

	_, ok := f.dir.GetWorldByName("earth")
	assert.True(t, ok)

	assert.ErrorIs(t, f.mgr.RemoveMiniature(context.Background(), nil), ErrInvalidTarget)
}

func TestRemoveMiniature_Unresolved(t *testing.T) {
	f := newFixture(t, Options{})

	gen, _ := world.GetGenerator(world.EmptyGeneratorID)
	stray := world.NewWorld("mmwu.miniature.9_earth", world.Settings{}, gen)
	require.NoError(t, f.dir.Add(stray))

	err := f.mgr.RemoveMiniature(context.Background(), stray)
	assert.ErrorIs(t, err, ErrUnresolvedWorld)
	assert.Zero(t, f.spy.count("delete"))
}

func TestRemoveMiniature_ExternalFailure(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	mini, err := f.mgr.CreateMiniatureOf(ctx, f.source(t, "earth"))
	require.NoError(t, err)

	cause := errors.New("locked")
	f.spy.deleteErr = cause
	assert.ErrorIs(t, f.mgr.RemoveMiniature(ctx, mini), cause)

	_, ok := f.dir.GetWorldByName(mini.Name())
	assert.True(t, ok)
}

func TestCleanMiniatures_WithEmptyCounters(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	earth := f.source(t, "earth")

	// Миниатюры созданы в обход менеджера: счётчики пусты
	handle, ok := f.mv.ResolveLoadedWorld(earth.ID())
	require.True(t, ok)
	_, err := f.mv.CloneWorld(ctx, handle, "mmwu.miniature.0_earth")
	require.NoError(t, err)
	_, err = f.mv.CloneWorld(ctx, handle, "mmwu.miniature.linked.earth")
	require.NoError(t, err)

	fresh := NewManager(f.spy, f.dir, Options{})
	assert.Zero(t, fresh.Registry().Issued(earth))

	require.NoError(t, fresh.CleanMiniatures(ctx))

	assert.Equal(t, 2, f.spy.count("delete"))
	names := make([]string, 0)
	for _, w := range f.dir.ListLoadedWorlds() {
		names = append(names, w.Name())
	}
	assert.Equal(t, []string{"earth"}, names)
}

func TestCleanMiniatures_ContinuesAfterFailure(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	earth := f.source(t, "earth")

	_, err := f.mgr.CreateMiniatureOf(ctx, earth)
	require.NoError(t, err)
	_, err = f.mgr.CreateLinkedMiniatureOf(ctx, earth)
	require.NoError(t, err)

	cause := errors.New("busy")
	f.spy.deleteErr = cause

	err = f.mgr.CleanMiniatures(ctx)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 2, f.spy.count("delete"), "обход не прерывается")
}

func TestCleanMiniatures_Cancelled(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.mgr.CreateMiniatureOf(context.Background(), f.source(t, "earth"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.mgr.CleanMiniatures(ctx), context.Canceled)
	assert.Zero(t, f.spy.count("delete"))
}

func TestListMiniatures(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	earth := f.source(t, "earth")

	_, err := f.mgr.CreateMiniatureOf(ctx, earth)
	require.NoError(t, err)
	_, err = f.mgr.CreateLinkedMiniatureOf(ctx, earth)
	require.NoError(t, err)

	list := f.mgr.ListMiniatures()
	require.Len(t, list, 2)
	assert.Equal(t, Info{Name: "mmwu.miniature.0_earth", Source: "earth", Mode: ModeIndexed, Index: 0}, list[0])
	assert.Equal(t, Info{Name: "mmwu.miniature.linked.earth", Source: "earth", Mode: ModeLinked, Index: -1}, list[1])
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	earth := f.source(t, "earth")

	mini, err := f.mgr.CreateMiniatureOf(ctx, earth)
	require.NoError(t, err)
	_, err = f.mgr.CreateLinkedMiniatureOf(ctx, earth)
	require.NoError(t, err)
	_, err = f.mgr.CreateMiniatureOf(ctx, mini)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.mgr.metrics.created.WithLabelValues("indexed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.mgr.metrics.created.WithLabelValues("linked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.mgr.metrics.errors.WithLabelValues("create_indexed", "invalid_source")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.mgr.metrics.active))

	require.NoError(t, f.mgr.RemoveMiniature(ctx, mini))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.mgr.metrics.removed))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.mgr.metrics.active))

	count, err := testutil.GatherAndCount(f.reg, "miniature_created_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRegionIntegration(t *testing.T) {
	regions := region.NewService(region.NewMemoryStore())
	f := newFixture(t, Options{Regions: regions})
	ctx := context.Background()
	earth := f.source(t, "earth")

	require.NoError(t, regions.Define(ctx, earth, region.Region{
		Name: "spawn",
		Min:  vec.Vec3{X: -8, Y: 0, Z: -8},
		Max:  vec.Vec3{X: 8, Y: 128, Z: 8},
	}))
	assert.True(t, f.mgr.RegionsEnabled())

	mini, err := f.mgr.CreateMiniatureOf(ctx, earth)
	require.NoError(t, err)

	copied, err := regions.Regions(ctx, mini)
	require.NoError(t, err)
	require.Len(t, copied, 1)
	assert.Equal(t, "spawn", copied[0].Name)

	require.NoError(t, f.mgr.RemoveMiniature(ctx, mini))
	copied, err = regions.Regions(ctx, mini)
	require.NoError(t, err)
	assert.Empty(t, copied, "регионы удалённой миниатюры очищены")
}

type failingCopier struct{}

func (failingCopier) CopyRegions(context.Context, *world.World, *world.World) error {
	return errors.New("region backend gone")
}

func TestRegionCopyFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture(t, Options{Regions: failingCopier{}})

	mini, err := f.mgr.CreateMiniatureOf(context.Background(), f.source(t, "earth"))
	require.NoError(t, err)
	assert.Equal(t, "mmwu.miniature.0_earth", mini.Name())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.mgr.metrics.errors.WithLabelValues("copy_regions", "external")))
}

func TestLifecycleEvents(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	got := make(chan *eventbus.Envelope, 8)
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{}, func(_ context.Context, ev *eventbus.Envelope) {
		got <- ev
	})
	require.NoError(t, err)

	f := newFixture(t, Options{Bus: bus})
	ctx := context.Background()
	mini, err := f.mgr.CreateMiniatureOf(ctx, f.source(t, "earth"))
	require.NoError(t, err)
	require.NoError(t, f.mgr.RemoveMiniature(ctx, mini))

	seen := map[string]*eventbus.Envelope{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case ev := <-got:
			seen[ev.EventType] = ev
		case <-deadline:
			t.Fatalf("получены не все события: %v", seen)
		}
	}

	var created eventbus.MiniatureCreated
	require.NoError(t, eventbus.Decode(seen[eventbus.TypeMiniatureCreated], &created))
	assert.Equal(t, "earth", created.Source)
	assert.Equal(t, "indexed", created.Mode)

	var removed eventbus.MiniatureRemoved
	require.NoError(t, eventbus.Decode(seen[eventbus.TypeMiniatureRemoved], &removed))
	assert.Equal(t, "mmwu.miniature.0_earth", removed.Name)
	assert.False(t, removed.Sweep)
}

func TestConcurrentCreates(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	earth := f.source(t, "earth")

	const n = 16
	var wg sync.WaitGroup
	names := make(chan string, n)
	linkedOK := make(chan bool, n)

	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			w, err := f.mgr.CreateMiniatureOf(ctx, earth)
			if assert.NoError(t, err) {
				names <- w.Name()
			}
		}()
		go func() {
			defer wg.Done()
			_, err := f.mgr.CreateLinkedMiniatureOf(ctx, earth)
			if err != nil {
				assert.ErrorIs(t, err, ErrLinkedMiniatureExists)
			}
			linkedOK <- err == nil
		}()
	}
	wg.Wait()
	close(names)
	close(linkedOK)

	unique := map[string]bool{}
	for name := range names {
		unique[name] = true
	}
	assert.Len(t, unique, n)
	for i := 0; i < n; i++ {
		assert.True(t, unique[IndexedName("earth", i)])
	}

	successes := 0
	for ok := range linkedOK {
		if ok {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "ровно одна связанная миниатюра")
}
