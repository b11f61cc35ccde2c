package world

import (
	"testing"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunkValidatesBuffer(t *testing.T) {
	_, err := NewChunk(vec.Vec3{}, 0, nil)
	assert.ErrorIs(t, err, ErrChunkSize)

	_, err = NewChunk(vec.Vec3{}, 4, make([]voxel.Voxel, 10))
	assert.ErrorIs(t, err, ErrChunkSize)

	c, err := NewChunk(vec.Vec3{X: 1, Y: -1, Z: 2}, 4, nil)
	require.NoError(t, err)
	assert.Len(t, c.Voxels, 64)
	assert.Equal(t, StateReady, c.State)
	assert.Equal(t, vec.Vec3{X: 4, Y: -4, Z: 8}, c.Origin())
}

func TestChunkSetMarksStale(t *testing.T) {
	c, err := NewChunk(vec.Vec3{}, 4, nil)
	require.NoError(t, err)
	require.NoError(t, c.Remesh())
	assert.Equal(t, StateMeshed, c.State)
	assert.True(t, c.Mesh.Empty())

	old := c.Set(1, 2, 3, voxel.Stone)
	assert.Equal(t, voxel.Air, old)
	assert.Equal(t, voxel.Stone, c.Get(1, 2, 3))
	assert.Equal(t, voxel.Stone, c.Voxels[1+2*4+3*16])
	assert.Equal(t, StateStale, c.State)
	assert.Equal(t, uint64(1), c.Version)

	require.NoError(t, c.Remesh())
	assert.Len(t, c.Mesh.Quads, 6)

	// Запись того же значения не портит меш
	c.Set(1, 2, 3, voxel.Stone)
	assert.Equal(t, StateMeshed, c.State)
	assert.Equal(t, uint64(1), c.Version)
}

func TestChunkDensity(t *testing.T) {
	c, err := NewChunk(vec.Vec3{}, 2, nil)
	require.NoError(t, err)
	c.Set(0, 0, 0, voxel.Stone)
	c.Set(1, 0, 0, voxel.Stone)
	c.Set(1, 1, 1, voxel.Glass)

	d := c.Density()
	assert.Equal(t, 5, d[voxel.Air])
	assert.Equal(t, 2, d[voxel.Stone])
	assert.Equal(t, 1, d[voxel.Glass])
	assert.Equal(t, 3, c.SolidCount())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "meshed", StateMeshed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
