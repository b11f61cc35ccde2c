package render

import (
	"github.com/annel0/voxel-engine/internal/mesher"
	"github.com/annel0/voxel-engine/internal/vec"
)

// Sink принимает готовые меши чанков. Upload вызывается при появлении и
// перестроении меша, Release когда ресурсы чанка больше не нужны.
type Sink interface {
	Upload(key vec.ChunkKey, coord vec.Vec3, mesh *mesher.Mesh) error
	Release(key vec.ChunkKey) error
}

// NopSink ничего не делает; используется в безголовом режиме
type NopSink struct{}

func (NopSink) Upload(vec.ChunkKey, vec.Vec3, *mesher.Mesh) error { return nil }
func (NopSink) Release(vec.ChunkKey) error                       { return nil }
