package multiverse

import (
	"context"
	"testing"

	"github.com/decinco/miniworld/internal/storage"
	"github.com/decinco/miniworld/internal/world"
	"github.com/decinco/miniworld/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *storage.WorldStorage) {
	t.Helper()

	ws, err := storage.NewInMemoryWorldStorage(false)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	return NewManager(world.NewDirectory(ws), ws), ws
}

func seed(v int64) *int64 { return &v }

func loadedByName(t *testing.T, m *Manager, name string) *LoadedWorld {
	t.Helper()

	w, ok := m.Directory().GetWorldByName(name)
	require.True(t, ok, "мир %s должен быть загружен", name)
	lw, ok := m.ResolveLoadedWorld(w.ID())
	require.True(t, ok)
	return lw
}

func TestCreateWorld(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	err := m.CreateWorld(ctx, CreateWorldOptions{
		Name:      "test",
		Seed:      seed(42),
		Generator: world.EmptyGeneratorID,
	})
	require.NoError(t, err)

	lw := loadedByName(t, m, "test")
	settings := lw.World().Settings()
	assert.Equal(t, int64(42), settings.Seed)
	assert.Equal(t, world.EnvironmentNormal, settings.Environment)
	assert.Equal(t, world.TypeNormal, settings.Type)
	assert.Equal(t, world.EmptyGeneratorID, settings.GeneratorID)
	assert.False(t, lw.LoadedAt().IsZero())
}

func TestCreateWorld_Rejects(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateWorld(ctx, CreateWorldOptions{Name: "test", Generator: world.EmptyGeneratorID}))

	err := m.CreateWorld(ctx, CreateWorldOptions{Name: "test", Generator: world.EmptyGeneratorID})
	assert.ErrorIs(t, err, world.ErrWorldExists)

	err = m.CreateWorld(ctx, CreateWorldOptions{Name: "other", Generator: "nope:gen"})
	assert.ErrorIs(t, err, ErrUnknownGenerator)

	err = m.CreateWorld(ctx, CreateWorldOptions{Name: "bad name/../x"})
	assert.ErrorIs(t, err, ErrInvalidWorldName)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, m.CreateWorld(cancelled, CreateWorldOptions{Name: "late"}), context.Canceled)
}

func TestCreateWorld_RejectsPersistedName(t *testing.T) {
	m, ws := newTestManager(t)

	gen, _ := world.GetGenerator(world.EmptyGeneratorID)
	stale := world.NewWorld("stale", world.Settings{GeneratorID: world.EmptyGeneratorID}, gen)
	require.NoError(t, ws.SaveWorld(stale))

	err := m.CreateWorld(context.Background(), CreateWorldOptions{Name: "stale", Generator: world.EmptyGeneratorID})
	assert.ErrorIs(t, err, world.ErrWorldExists)
}

func TestCreateWorld_SpawnAdjust(t *testing.T) {
	m, _ := newTestManager(t)

	err := m.CreateWorld(context.Background(), CreateWorldOptions{
		Name:           "hills",
		Seed:           seed(7),
		Generator:      world.TerrainGeneratorID,
		UseSpawnAdjust: true,
	})
	require.NoError(t, err)

	w := loadedByName(t, m, "hills").World()
	spawn := w.SpawnLocation()

	below, ok := block.Get(w.GetBlockAt(spawn.X, spawn.Y-1, spawn.Z))
	require.True(t, ok)
	assert.True(t, below.Solid(), "под точкой спауна твёрдый блок")
	at, ok := block.Get(w.GetBlockAt(spawn.X, spawn.Y, spawn.Z))
	require.True(t, ok)
	assert.False(t, at.Solid(), "сама точка спауна свободна")
}

func TestCloneWorld(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateWorld(ctx, CreateWorldOptions{Name: "src", Generator: world.EmptyGeneratorID}))
	src := loadedByName(t, m, "src")
	require.NoError(t, src.World().SetBlockAt(3, 64, 3, block.StoneBlockID))

	clone, err := m.CloneWorld(ctx, src, "copy")
	require.NoError(t, err)
	assert.Equal(t, "copy", clone.Name())
	assert.NotEqual(t, src.World().ID(), clone.World().ID())
	assert.Equal(t, "STONE", clone.World().MaterialAt(3, 64, 3))

	// Копии независимы
	require.NoError(t, clone.World().SetBlockAt(3, 64, 3, block.AirBlockID))
	assert.Equal(t, "STONE", src.World().MaterialAt(3, 64, 3))

	_, err = m.CloneWorld(ctx, src, "copy")
	assert.ErrorIs(t, err, world.ErrWorldExists)
}

func TestCloneWorld_NotManaged(t *testing.T) {
	m, _ := newTestManager(t)

	gen, _ := world.GetGenerator(world.EmptyGeneratorID)
	foreign := newLoadedWorld(world.NewWorld("foreign", world.Settings{}, gen))

	_, err := m.CloneWorld(context.Background(), foreign, "copy")
	assert.ErrorIs(t, err, ErrNotManaged)

	_, err = m.CloneWorld(context.Background(), nil, "copy")
	assert.ErrorIs(t, err, ErrNotManaged)
}

func TestDeleteWorld(t *testing.T) {
	m, ws := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateWorld(ctx, CreateWorldOptions{Name: "doomed", Generator: world.EmptyGeneratorID}))
	lw := loadedByName(t, m, "doomed")
	require.NoError(t, lw.World().SetBlockAt(0, 0, 0, block.StoneBlockID))
	require.NoError(t, ws.SaveWorld(lw.World()))

	require.NoError(t, m.DeleteWorld(ctx, lw))

	_, ok := m.Directory().GetWorldByName("doomed")
	assert.False(t, ok)
	_, ok = m.ResolveLoadedWorld(lw.World().ID())
	assert.False(t, ok)

	has, err := ws.HasWorld("doomed")
	require.NoError(t, err)
	assert.False(t, has)

	assert.ErrorIs(t, m.DeleteWorld(ctx, lw), ErrNotManaged, "повторное удаление")
}

func TestLoadPersistedWorlds(t *testing.T) {
	ws, err := storage.NewInMemoryWorldStorage(true)
	require.NoError(t, err)
	defer ws.Close()

	first := NewManager(world.NewDirectory(ws), ws)
	ctx := context.Background()
	require.NoError(t, first.CreateWorld(ctx, CreateWorldOptions{Name: "alpha", Generator: world.EmptyGeneratorID}))
	require.NoError(t, first.CreateWorld(ctx, CreateWorldOptions{Name: "beta", Generator: world.EmptyGeneratorID}))
	require.NoError(t, loadedByName(t, first, "alpha").World().SetBlockAt(1, 2, 3, block.SandBlockID))
	require.NoError(t, first.Directory().SaveAll())

	second := NewManager(world.NewDirectory(ws), ws)
	n, err := second.LoadPersistedWorlds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	alpha := loadedByName(t, second, "alpha")
	assert.Equal(t, "SAND", alpha.World().MaterialAt(1, 2, 3))
	for _, c := range alpha.World().LoadedChunks() {
		assert.False(t, c.IsDirty())
	}
}

func TestLoadPersistedWorlds_NoStore(t *testing.T) {
	m := NewManager(world.NewDirectory(nil), nil)

	n, err := m.LoadPersistedWorlds(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
