package region

import (
	"context"
	"os"
	"testing"

	"github.com/decinco/miniworld/internal/config"
	"github.com/decinco/miniworld/internal/vec"
	"github.com/decinco/miniworld/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorld(name string) *world.World {
	gen, _ := world.GetGenerator(world.EmptyGeneratorID)
	return world.NewWorld(name, world.Settings{GeneratorID: world.EmptyGeneratorID}, gen)
}

func spawnRegion() Region {
	return Region{
		Name:     "spawn",
		Min:      vec.Vec3{X: -16, Y: 0, Z: -16},
		Max:      vec.Vec3{X: 15, Y: 255, Z: 15},
		Priority: 10,
		Flags:    map[string]string{"build": "deny"},
	}
}

func TestRegionValidate(t *testing.T) {
	assert.NoError(t, spawnRegion().Validate())

	bad := spawnRegion()
	bad.Name = "Spawn Area"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidRegion)

	inverted := spawnRegion()
	inverted.Min, inverted.Max = inverted.Max, inverted.Min
	assert.ErrorIs(t, inverted.Validate(), ErrInvalidRegion)
}

func TestRegionContains(t *testing.T) {
	r := spawnRegion()
	assert.True(t, r.Contains(vec.Vec3{X: 0, Y: 64, Z: 0}))
	assert.True(t, r.Contains(vec.Vec3{X: 15, Y: 255, Z: -16}), "границы включительно")
	assert.False(t, r.Contains(vec.Vec3{X: 16, Y: 64, Z: 0}))
}

func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "earth", spawnRegion()))
	require.NoError(t, store.Put(ctx, "earth", Region{Name: "arena", Max: vec.Vec3{X: 5, Y: 5, Z: 5}}))

	regions, err := store.List(ctx, "earth")
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, "arena", regions[0].Name)
	assert.Equal(t, "deny", regions[1].Flags["build"])

	require.NoError(t, store.Remove(ctx, "earth", "arena"))
	regions, err = store.List(ctx, "earth")
	require.NoError(t, err)
	assert.Len(t, regions, 1)

	require.NoError(t, store.Replace(ctx, "copy", regions))
	copied, err := store.List(ctx, "copy")
	require.NoError(t, err)
	assert.Equal(t, regions, copied)

	require.NoError(t, store.Drop(ctx, "copy"))
	copied, err = store.List(ctx, "copy")
	require.NoError(t, err)
	assert.Empty(t, copied)

	assert.ErrorIs(t, store.Put(ctx, "earth", Region{Name: "BAD"}), ErrInvalidRegion)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_IsolatesFlags(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	r := spawnRegion()
	require.NoError(t, store.Put(ctx, "earth", r))
	r.Flags["build"] = "allow"

	regions, err := store.List(ctx, "earth")
	require.NoError(t, err)
	assert.Equal(t, "deny", regions[0].Flags["build"])
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("MMWU_TEST_REDIS")
	if addr == "" {
		t.Skip("MMWU_TEST_REDIS не задан")
	}

	store, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr, KeyPrefix: "mmwu:test:regions:"})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Drop(ctx, "earth"))
	require.NoError(t, store.Drop(ctx, "copy"))

	runStoreContract(t, store)
}

func TestServiceCopyRegions(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	source := testWorld("earth")
	target := testWorld("mmwu.miniature.0_earth")

	require.NoError(t, svc.Define(ctx, source, spawnRegion()))
	require.NoError(t, svc.Define(ctx, target, Region{Name: "stale", Max: vec.Vec3{X: 1, Y: 1, Z: 1}}))

	require.NoError(t, svc.CopyRegions(ctx, source, target))

	regions, err := svc.Regions(ctx, target)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "spawn", regions[0].Name)

	require.NoError(t, svc.DropRegions(ctx, target))
	regions, err = svc.Regions(ctx, target)
	require.NoError(t, err)
	assert.Empty(t, regions)

	// Исходный мир не затронут
	regions, err = svc.Regions(ctx, source)
	require.NoError(t, err)
	assert.Len(t, regions, 1)
}

func TestServiceRegionsAt(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	w := testWorld("earth")

	require.NoError(t, svc.Define(ctx, w, spawnRegion()))
	require.NoError(t, svc.Define(ctx, w, Region{
		Name:     "vault",
		Min:      vec.Vec3{X: 0, Y: 60, Z: 0},
		Max:      vec.Vec3{X: 4, Y: 70, Z: 4},
		Priority: 50,
	}))

	at, err := svc.RegionsAt(ctx, w, vec.Vec3{X: 2, Y: 64, Z: 2})
	require.NoError(t, err)
	require.Len(t, at, 2)
	assert.Equal(t, "vault", at[0].Name, "сначала регион с большим приоритетом")

	at, err = svc.RegionsAt(ctx, w, vec.Vec3{X: 100, Y: 64, Z: 100})
	require.NoError(t, err)
	assert.Empty(t, at)
}

func TestDetect(t *testing.T) {
	ctx := context.Background()

	svc, ok := Detect(ctx, config.RegionConfig{Integration: false, Backend: "memory"})
	assert.False(t, ok)
	assert.Nil(t, svc)

	svc, ok = Detect(ctx, config.RegionConfig{Integration: true, Backend: "memory"})
	assert.True(t, ok)
	require.NotNil(t, svc)

	svc, ok = Detect(ctx, config.RegionConfig{Integration: true, Backend: "etcd"})
	assert.False(t, ok)
	assert.Nil(t, svc)
}

func TestDetect_RedisUnavailableDegrades(t *testing.T) {
	// Порт 1 заведомо закрыт
	svc, ok := Detect(context.Background(), config.RegionConfig{
		Integration: true,
		Backend:     "redis",
		RedisAddr:   "127.0.0.1:1",
	})
	assert.False(t, ok)
	assert.Nil(t, svc)
}
