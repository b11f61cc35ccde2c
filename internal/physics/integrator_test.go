package physics

import (
	"bytes"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/annel0/voxel-engine/internal/collision"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = time.Second / 60

// layerLookup мир, где сплошной только слой y == level
func layerLookup(level int) collision.Lookup {
	return func(x, y, z int) (voxel.Voxel, bool) {
		if y == level {
			return voxel.Stone, true
		}
		return voxel.Air, true
	}
}

func TestFallingBodyRestsOnFloor(t *testing.T) {
	in := NewIntegrator(collision.NewResolver(layerLookup(1), 1))
	b := NewBody(KindGeneric, mgl64.Vec3{0.5, 2.5, 0.5}, mgl64.Vec3{0.8, 1, 0.8})

	// 300 мс при 60 тиках в секунду
	for i := 0; i < 18; i++ {
		in.Step(tick, b)
	}

	assert.InDelta(t, 2.0, b.Position[1], 1e-9)
	assert.True(t, b.IsResting())
	assert.Equal(t, 0.0, b.Velocity[1])
}

func TestFallingBodyRestsOnSingleVoxel(t *testing.T) {
	lookup := func(x, y, z int) (voxel.Voxel, bool) {
		if x == 0 && y == 1 && z == 0 {
			return voxel.Stone, true
		}
		return voxel.Air, true
	}
	in := NewIntegrator(collision.NewResolver(lookup, 1))
	b := NewBody(KindGeneric, mgl64.Vec3{0.5, 6, 0.5}, mgl64.Vec3{0.5, 0.5, 0.5})

	for i := 0; i < 120; i++ {
		in.Step(tick, b)
	}
	assert.InDelta(t, 2.0, b.AABB().Base[1], 1e-9, "нижняя грань совпадает с верхом вокселя")
	assert.True(t, b.IsResting())
}

func TestRestingBodyStaysPut(t *testing.T) {
	in := NewIntegrator(collision.NewResolver(layerLookup(1), 1))
	b := NewBody(KindGeneric, mgl64.Vec3{0.5, 2, 0.5}, mgl64.Vec3{0.8, 1, 0.8})

	for i := 0; i < 600; i++ {
		in.Step(tick, b)
		require.InDelta(t, 2.0, b.Position[1], 1e-9)
	}
}

func TestRestingBodyGetsNoGravity(t *testing.T) {
	in := NewIntegrator(collision.NewResolver(layerLookup(1), 1))
	b := NewBody(KindGeneric, mgl64.Vec3{0.5, 2, 0.5}, mgl64.Vec3{0.8, 1, 0.8})

	in.Step(tick, b)
	require.True(t, b.IsResting())
	for i := 0; i < 10; i++ {
		res := in.Step(tick, b)
		assert.Equal(t, 0.0, b.Velocity[1])
		assert.Equal(t, 0, res.Contacts[1], "без вертикального смещения обрезки нет")
		assert.True(t, b.IsResting())
	}
}

func TestBodyFallsWhenSupportRemoved(t *testing.T) {
	floor := true
	lookup := func(x, y, z int) (voxel.Voxel, bool) {
		if (y == 1 && floor) || y == -5 {
			return voxel.Stone, true
		}
		return voxel.Air, true
	}
	in := NewIntegrator(collision.NewResolver(lookup, 1))
	b := NewBody(KindGeneric, mgl64.Vec3{0.5, 2, 0.5}, mgl64.Vec3{0.8, 1, 0.8})
	in.Step(tick, b)
	require.True(t, b.IsResting())

	floor = false
	in.Step(tick, b)
	assert.False(t, b.IsResting())
	assert.InDelta(t, 2.0, b.Position[1], 1e-12, "падение начинается со следующего шага")

	for i := 0; i < 120; i++ {
		in.Step(tick, b)
	}
	assert.InDelta(t, -4.0, b.Position[1], 1e-9)
	assert.True(t, b.IsResting())
}

func TestLandingIsLogged(t *testing.T) {
	var buf bytes.Buffer
	in := NewIntegrator(collision.NewResolver(layerLookup(1), 1))
	in.Logger = logging.NewWriterLogger("physics", &buf, logging.DEBUG)
	b := NewBody(KindGeneric, mgl64.Vec3{0.5, 2.5, 0.5}, mgl64.Vec3{0.8, 1, 0.8})

	for i := 0; i < 18; i++ {
		in.Step(tick, b)
	}
	require.True(t, b.IsResting())
	assert.Contains(t, buf.String(), "опустилось")
	assert.Contains(t, buf.String(), b.ID.String())
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("опустилось")))
}

func TestGroundFrictionSlowsHorizontalMotion(t *testing.T) {
	in := NewIntegrator(collision.NewResolver(layerLookup(1), 1))
	b := NewBody(KindGeneric, mgl64.Vec3{0.5, 2, 0.5}, mgl64.Vec3{0.8, 1, 0.8})

	in.Step(tick, b)
	require.True(t, b.IsResting())
	assert.Equal(t, mgl64.Vec3{DefaultFriction, 1, DefaultFriction}, b.Friction)

	b.Velocity = mgl64.Vec3{5, 0, 0}
	in.Step(tick, b)
	assert.InDelta(t, 5*DefaultFriction, b.Velocity[0], 1e-12)

	// В воздухе трения нет
	air := NewBody(KindGeneric, mgl64.Vec3{0.5, 10, 0.5}, mgl64.Vec3{0.8, 1, 0.8})
	air.Velocity = mgl64.Vec3{5, 0, 0}
	in.Step(tick, air)
	assert.InDelta(t, 5.0, air.Velocity[0], 1e-12)
}

func TestTerminalVelocity(t *testing.T) {
	in := NewIntegrator(nil)
	b := NewBody(KindGeneric, mgl64.Vec3{}, mgl64.Vec3{1, 1, 1})
	b.Velocity = mgl64.Vec3{100, -100, -3}

	in.Step(tick, b)
	assert.Equal(t, DefaultTerminalVelocity[0], b.Velocity[0])
	assert.Equal(t, -DefaultTerminalVelocity[1], b.Velocity[1])
	assert.InDelta(t, -3, b.Velocity[2], 1e-12)

	b.TerminalVelocity = mgl64.Vec3{1, 1, 1}
	in.Step(tick, b)
	assert.Equal(t, 1.0, b.Velocity[0])
}

func TestWallContactZeroesAxis(t *testing.T) {
	lookup := func(x, y, z int) (voxel.Voxel, bool) {
		if x == 2 {
			return voxel.Brick, true
		}
		return voxel.Air, true
	}
	in := NewIntegrator(collision.NewResolver(lookup, 1))
	b := NewBody(KindGeneric, mgl64.Vec3{1, 0, 0.5}, mgl64.Vec3{1, 1, 1})
	b.Gravity = false
	b.Acceleration = mgl64.Vec3{30, 0, 0}
	b.Velocity = mgl64.Vec3{9, 0, 1}

	contact := false
	for i := 0; i < 30; i++ {
		res := in.Step(tick, b)
		if res.Contacts[0] == 1 {
			contact = true
			assert.Equal(t, 1, b.Resting[0])
		}
	}
	assert.True(t, contact)
	assert.InDelta(t, 1.5, b.Position[0], 1e-9)
	assert.Equal(t, 0.0, b.Velocity[0])
	assert.Equal(t, 0.0, b.Acceleration[0])
	assert.InDelta(t, 1.0, b.Velocity[2], 1e-12, "контакт по x не трогает z")
}

func TestGhostBodyIgnoresVoxels(t *testing.T) {
	in := NewIntegrator(collision.NewResolver(layerLookup(1), 1))
	b := NewBody(KindGeneric, mgl64.Vec3{0.5, 2.5, 0.5}, mgl64.Vec3{1, 1, 1})
	b.Collide = false

	for i := 0; i < 60; i++ {
		in.Step(tick, b)
	}
	assert.Less(t, b.Position[1], 1.0)
}

func TestZeroDeltaIsNoop(t *testing.T) {
	in := NewIntegrator(nil)
	b := NewBody(KindGeneric, mgl64.Vec3{1, 2, 3}, mgl64.Vec3{1, 1, 1})
	in.Step(0, b)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, b.Position)
	assert.Equal(t, mgl64.Vec3{}, b.Velocity)
}

func TestBodiesNeverPenetrate(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	solid := map[[3]int]bool{}
	for x := -6; x < 6; x++ {
		for z := -6; z < 6; z++ {
			solid[[3]int{x, 0, z}] = true
			if rng.Float64() < 0.3 {
				solid[[3]int{x, 1 + rng.Intn(3), z}] = true
			}
		}
	}
	lookup := func(x, y, z int) (voxel.Voxel, bool) {
		if solid[[3]int{x, y, z}] {
			return voxel.Stone, true
		}
		return voxel.Air, true
	}
	resolver := collision.NewResolver(lookup, 1)
	in := NewIntegrator(resolver)

	for n := 0; n < 20; n++ {
		b := NewBody(KindDebris, mgl64.Vec3{rng.Float64()*6 - 3, 6, rng.Float64()*6 - 3}, mgl64.Vec3{0.4, 0.4, 0.4})
		b.Velocity = mgl64.Vec3{rng.Float64()*10 - 5, rng.Float64() * 5, rng.Float64()*10 - 5}
		if len(resolver.Overlapping(b.AABB())) > 0 {
			continue
		}
		for i := 0; i < 120; i++ {
			res := in.Step(tick, b)
			require.Empty(t, resolver.Overlapping(res.Box))
			require.False(t, math.IsNaN(b.Position[1]))
		}
	}
}

func TestPlayerAABB(t *testing.T) {
	p := NewPlayer(mgl64.Vec3{1, 10, 1}, DefaultPlayerHeight)
	box := p.AABB()
	assert.Equal(t, PlayerAABB(p.Position, DefaultPlayerHeight), box)
	assert.InDelta(t, 10-DefaultPlayerHeight, box.Base[1], 1e-12)
	assert.InDelta(t, 0.75, box.Base[0], 1e-12)
	assert.InDelta(t, 0.5, box.Width(), 1e-12)
	assert.True(t, p.BlocksCreation)
}
