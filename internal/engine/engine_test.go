package engine

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/annel0/voxel-engine/internal/collision"
	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/observability"
	"github.com/annel0/voxel-engine/internal/physics"
	"github.com/annel0/voxel-engine/internal/render"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/voxel"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const tick = time.Second / 60

var air = voxel.GeneratorFunc(func(x, y, z int) voxel.Voxel { return voxel.Air })

func testConfig(chunkSize, distance int) *config.Config {
	cfg := config.Default()
	cfg.World.ChunkSize = chunkSize
	cfg.World.ChunkDistance = distance
	cfg.World.RemoveDistance = distance + 1
	cfg.World.StartPosition = [3]float64{0.5, 0.5, 0.5}
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config, gen voxel.Generator, opts ...Option) *Engine {
	t.Helper()
	quiet := logging.NewWriterLogger("engine", io.Discard, logging.ERROR)
	opts = append([]Option{WithLogger(quiet)}, opts...)
	e, err := New(cfg, gen, opts...)
	require.NoError(t, err)
	return e
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(16, 2)
	cfg.World.RemoveDistance = 2
	_, err := New(cfg, air)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSetVoxelRemeshesOncePerTick(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testConfig(16, 1), air)
	require.NoError(t, e.SetObserver(mgl64.Vec3{50, 50, 50}))
	require.NoError(t, e.Preload(ctx))

	updates := 0
	e.OnChunkUpdated(func(*world.Chunk) { updates++ })

	pos := mgl64.Vec3{50, 50, 50}
	old, err := e.SetVoxel(pos, voxel.Stone)
	require.NoError(t, err)
	assert.Equal(t, voxel.Air, old)
	_, err = e.SetVoxel(mgl64.Vec3{51, 50, 50}, voxel.Stone)
	require.NoError(t, err)

	v, err := e.GetVoxel(pos)
	require.NoError(t, err)
	assert.Equal(t, voxel.Stone, v)

	c, err := e.Store().ChunkAt(pos)
	require.NoError(t, err)
	assert.Equal(t, vec.Vec3{X: 3, Y: 3, Z: 3}, c.Coord)
	assert.Equal(t, world.StateStale, c.State)
	assert.Equal(t, 1, e.Store().Dirty())

	require.NoError(t, e.Tick(ctx, tick))
	assert.Equal(t, 0, e.Store().Dirty())
	assert.Equal(t, world.StateMeshed, c.State)
	assert.Equal(t, 1, updates)
	assert.Equal(t, uint64(1), e.Stats().World.Remeshed)
	require.NotNil(t, c.Mesh)
	assert.Equal(t, 10, c.Mesh.SurfaceArea(), "две соседние клетки дают 10 единичных граней")
}

func TestChunkAtFlushesPendingEdits(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testConfig(16, 0), air)
	require.NoError(t, e.Preload(ctx))

	_, err := e.SetVoxel(mgl64.Vec3{3, 3, 3}, voxel.Stone)
	require.NoError(t, err)

	c, err := e.ChunkAt(mgl64.Vec3{3, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, world.StateMeshed, c.State)
	assert.Len(t, c.Mesh.Quads, 6)
}

func TestGetVoxelMissingChunk(t *testing.T) {
	e := newEngine(t, testConfig(16, 1), air)

	_, err := e.GetVoxel(mgl64.Vec3{1000, 0, 0})
	assert.ErrorIs(t, err, world.ErrNoChunk)

	_, err = e.SetVoxel(mgl64.Vec3{1000, 0, 0}, voxel.Stone)
	assert.ErrorIs(t, err, world.ErrNoChunk)
}

func TestFallingBodyRestsOnFloor(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(16, 1)
	cfg.World.StartPosition = [3]float64{0.5, 2.5, 0.5}
	e := newEngine(t, cfg, voxel.Floor(1, voxel.Stone))
	require.NoError(t, e.Preload(ctx))

	b := e.MakePhysical(mgl64.Vec3{0.5, 2.5, 0.5}, mgl64.Vec3{0.5, 0.5, 0.5}, false)

	for i := 0; i < 18; i++ {
		require.NoError(t, e.Tick(ctx, tick))
	}
	assert.InDelta(t, 2.0, b.Position.Y(), 1e-9)
	assert.True(t, b.IsResting())
	assert.Equal(t, 0.0, b.Velocity.Y())
}

func TestChunkLifecycleFollowsObserver(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testConfig(8, 1), air)
	require.NoError(t, e.SetObserver(mgl64.Vec3{0.5, 0.5, 0.5}))
	require.NoError(t, e.Preload(ctx))
	assert.Equal(t, 27, e.Store().Len())

	// Дальше (remove - chunk) * chunkSize по x
	require.NoError(t, e.SetObserver(mgl64.Vec3{24.5, 0.5, 0.5}))
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Tick(ctx, tick))
	}

	center := e.ObserverChunk()
	assert.Equal(t, vec.Vec3{X: 3}, center)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				_, ok := e.Store().Get(center.Add(vec.Vec3{X: dx, Y: dy, Z: dz}))
				assert.True(t, ok, "чанк %d,%d,%d", dx, dy, dz)
			}
		}
	}
	for _, key := range e.Store().Keys() {
		assert.LessOrEqual(t, key.Unpack().ChebyshevDistance(center), 2)
	}
}

func TestObserverOscillationDoesNotThrash(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testConfig(8, 1), air)
	require.NoError(t, e.SetObserver(mgl64.Vec3{7.5, 0.5, 0.5}))
	require.NoError(t, e.Preload(ctx))

	removed := 0
	e.OnChunkRemoved(func(*world.Chunk) { removed++ })

	for i := 0; i < 20; i++ {
		x := 7.9
		if i%2 == 1 {
			x = 8.1
		}
		require.NoError(t, e.SetObserver(mgl64.Vec3{x, 0.5, 0.5}))
		require.NoError(t, e.Tick(ctx, tick))
	}
	assert.Equal(t, 0, removed)
	assert.Equal(t, uint64(36), e.Stats().World.Generated, "27 исходных и 9 новых, без повторов")
}

func TestCreateBlockBlockedByPlayer(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(16, 1)
	e := newEngine(t, cfg, voxel.Floor(1, voxel.Stone))
	player := e.SpawnPlayer(mgl64.Vec3{0.5, 2 + cfg.Physics.PlayerHeight, 0.5})
	require.NoError(t, e.Preload(ctx))

	ok, err := e.CanCreateBlock(mgl64.Vec3{0.5, 2.5, 0.5})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, e.CreateBlock(mgl64.Vec3{0.5, 2.5, 0.5}, voxel.Stone), ErrBlocked)

	require.NoError(t, e.CreateBlock(mgl64.Vec3{5.5, 2.5, 5.5}, voxel.Stone))
	v, err := e.GetVoxel(mgl64.Vec3{5.5, 2.5, 5.5})
	require.NoError(t, err)
	assert.Equal(t, voxel.Stone, v)

	_, gone := e.RemoveItem(player.ID)
	require.True(t, gone)
	require.NoError(t, e.CreateBlock(mgl64.Vec3{0.5, 2.5, 0.5}, voxel.Stone))
}

func TestRaycastHitsSphere(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testConfig(16, 2), voxel.Sphere(20, voxel.Stone))
	require.NoError(t, e.Preload(ctx))

	hit, ok, err := e.Raycast(mgl64.Vec3{-40, 0.5, 0.5}, mgl64.Vec3{1, 0, 0}, 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, -20.0, hit.Position.X(), 1.0)
	assert.Equal(t, [3]int{-1, 0, 0}, hit.Normal)
	assert.Equal(t, voxel.Stone, hit.Value)
}

func TestResolveCollisionRejectsNonFinite(t *testing.T) {
	e := newEngine(t, testConfig(16, 1), air)
	box := collision.NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})

	_, err := e.ResolveCollision(box, mgl64.Vec3{nan(), 0, 0}, nil)
	assert.ErrorIs(t, err, world.ErrInvalidCoordinate)

	res, err := e.ResolveCollision(box, mgl64.Vec3{1, 0, 0}, nil)
	require.NoError(t, err)
	assert.Equal(t, mgl64.Vec3{1, 0, 0}, res.Velocity)

	assert.ErrorIs(t, e.SetObserver(mgl64.Vec3{0, nan(), 0}), world.ErrInvalidCoordinate)
}

func TestResolveCollisionRejectsSweepOutsideWorld(t *testing.T) {
	e := newEngine(t, testConfig(16, 1), air)
	box := collision.NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1})

	_, err := e.ResolveCollision(box, mgl64.Vec3{1e12, 0, 0}, nil)
	assert.ErrorIs(t, err, world.ErrInvalidCoordinate)
	_, err = e.ResolveCollision(box, mgl64.Vec3{0, -1e300, 0}, nil)
	assert.ErrorIs(t, err, world.ErrInvalidCoordinate)

	e.Store().SetBounds(world.Bounds{
		Low:  vec.Vec3{X: -8, Y: -8, Z: -8},
		High: vec.Vec3{X: 8, Y: 8, Z: 8},
	})
	_, err = e.ResolveCollision(box, mgl64.Vec3{7, 0, 0}, nil)
	require.NoError(t, err)
	_, err = e.ResolveCollision(box, mgl64.Vec3{8, 0, 0}, nil)
	assert.ErrorIs(t, err, world.ErrInvalidCoordinate)
}

func TestSetObserverRejectsUnrepresentablePosition(t *testing.T) {
	e := newEngine(t, testConfig(16, 1), air)
	require.NoError(t, e.SetObserver(mgl64.Vec3{20, 0.5, 0.5}))

	assert.ErrorIs(t, e.SetObserver(mgl64.Vec3{1e300, 0, 0}), world.ErrInvalidCoordinate)
	assert.Equal(t, mgl64.Vec3{20, 0.5, 0.5}, e.Observer())
	assert.Equal(t, vec.Vec3{X: 1}, e.ObserverChunk())

	// Тело, улетевшее за пределы ключей, оставляет последний чанк
	b := e.MakePhysical(mgl64.Vec3{0.5, 0.5, 0.5}, mgl64.Vec3{0.5, 0.5, 0.5}, false)
	e.Follow(b)
	assert.Equal(t, vec.Vec3{}, e.ObserverChunk())
	b.Position = mgl64.Vec3{0.5, -1e300, 0.5}
	assert.Equal(t, vec.Vec3{}, e.ObserverChunk())
}

func TestSinkReceivesUploadsAndReleases(t *testing.T) {
	ctx := context.Background()
	codec, err := render.NewCodec(zstd.SpeedFastest)
	require.NoError(t, err)
	defer codec.Close()

	var buf bytes.Buffer
	rec := render.NewRecorder(&buf, codec)
	e := newEngine(t, testConfig(8, 1), voxel.Floor(0, voxel.Grass), WithSink(rec))
	require.NoError(t, e.Preload(ctx))
	assert.Equal(t, uint64(27), rec.Stats().Uploads)

	require.NoError(t, e.SetObserver(mgl64.Vec3{40, 0.5, 0.5}))
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Tick(ctx, tick))
	}
	assert.Equal(t, e.Stats().World.Evicted, rec.Stats().Releases)
	assert.Positive(t, rec.Stats().Releases)

	packets, err := render.ReadPackets(&buf, codec)
	require.NoError(t, err)
	assert.Len(t, packets, int(rec.Stats().Uploads+rec.Stats().Releases))
}

func TestMetricsObservedPerTick(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	col, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	e := newEngine(t, testConfig(8, 1), air, WithMetrics(col))
	require.NoError(t, e.Tick(ctx, tick))
	require.NoError(t, e.Tick(ctx, tick))

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		m := f.GetMetric()[0]
		switch {
		case m.GetGauge() != nil:
			values[f.GetName()] = m.GetGauge().GetValue()
		case m.GetCounter() != nil:
			values[f.GetName()] = m.GetCounter().GetValue()
		case m.GetHistogram() != nil:
			values[f.GetName()] = float64(m.GetHistogram().GetSampleCount())
		}
	}
	assert.Equal(t, 27.0, values["voxel_chunks_resident"])
	assert.Equal(t, 27.0, values["voxel_chunks_generated_total"])
	assert.Equal(t, 2.0, values["voxel_tick_duration_seconds"])
}

func TestTickEmitsSpans(t *testing.T) {
	ctx := context.Background()
	exp := tracetest.NewInMemoryExporter()
	shutdown, err := observability.InitTelemetry(ctx, observability.Options{ServiceName: "engine-test", Exporter: exp})
	require.NoError(t, err)
	defer func() { assert.NoError(t, shutdown(ctx)) }()

	e := newEngine(t, testConfig(8, 0), air)
	require.NoError(t, e.Tick(ctx, tick))
	require.NoError(t, e.Tick(ctx, tick))

	names := map[string]int{}
	for _, s := range exp.GetSpans() {
		names[s.Name]++
	}
	assert.Equal(t, 2, names["engine.Tick"])
	assert.Equal(t, 1, names["world.LoadPending"], "генерация идёт только во втором тике")
}

func TestPauseStopsTicks(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testConfig(8, 0), air)
	e.Pause()
	require.NoError(t, e.Tick(ctx, tick))
	n, err := e.Advance(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, uint64(0), e.Stats().Tick)
	assert.True(t, e.Stats().Paused)

	e.Resume()
	require.NoError(t, e.Tick(ctx, tick))
	assert.Equal(t, uint64(1), e.Stats().Tick)
}

func TestAdvanceFixedStep(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, testConfig(8, 0), air)

	n, err := e.Advance(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = e.Advance(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, maxCatchUp, n)
	assert.Equal(t, uint64(3+maxCatchUp), e.Stats().Tick)
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(8, 0)
	cfg.Physics.TickRateHz = 200
	e := newEngine(t, cfg, air)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))
	assert.Positive(t, e.Stats().Tick)
}

func TestPickupAndExpire(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(16, 1)
	e := newEngine(t, cfg, voxel.Floor(1, voxel.Stone))
	e.SpawnPlayer(mgl64.Vec3{0.5, 2 + cfg.Physics.PlayerHeight, 0.5})
	require.NoError(t, e.Preload(ctx))

	var picked, expired []*physics.Body
	e.OnPickup(func(b *physics.Body) { picked = append(picked, b) })
	e.OnExpire(func(b *physics.Body) { expired = append(expired, b) })

	coin := e.SpawnItem(mgl64.Vec3{1.5, 2, 0.5}, 5, 2, 0)
	debris := e.SpawnItem(mgl64.Vec3{10.5, 2, 10.5}, 0, 0, 50*time.Millisecond)

	for i := 0; i < 4; i++ {
		require.NoError(t, e.Tick(ctx, tick))
	}
	require.Len(t, picked, 1)
	assert.Equal(t, coin.ID, picked[0].ID)
	require.Len(t, expired, 1)
	assert.Equal(t, debris.ID, expired[0].ID)
	assert.Equal(t, 1, e.Items().Len(), "остаётся только игрок")
}

func nan() float64 {
	var zero float64
	return zero / zero
}
