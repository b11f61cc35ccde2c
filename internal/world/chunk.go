package world

import (
	"fmt"

	"github.com/annel0/voxel-engine/internal/mesher"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/voxel"
)

// State стадия жизненного цикла чанка
type State int

const (
	StateGenerating State = iota // Буфер заполняется генератором, чанк ещё не виден
	StateReady                   // Воксели готовы, меша нет
	StateMeshed                  // Меш соответствует вокселям
	StateStale                   // Воксели изменены, меш устарел
	StateEvicted                 // Чанк выгружен
)

func (s State) String() string {
	switch s {
	case StateGenerating:
		return "generating"
	case StateReady:
		return "ready"
	case StateMeshed:
		return "meshed"
	case StateStale:
		return "stale"
	case StateEvicted:
		return "evicted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Chunk кубический участок мира размером Size^3 вокселей
type Chunk struct {
	Coord  vec.Vec3      // Координаты чанка в сетке чанков
	Size   int           // Длина ребра в вокселях
	Voxels []voxel.Voxel // x + y*Size + z*Size*Size
	Mesh   *mesher.Mesh
	State  State

	Version uint64 // Счетчик изменений вокселей
}

// NewChunk создаёт чанк поверх готового буфера. Буфер переходит во владение чанка.
func NewChunk(coord vec.Vec3, size int, voxels []voxel.Voxel) (*Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrChunkSize, size)
	}
	if voxels == nil {
		voxels = make([]voxel.Voxel, size*size*size)
	}
	if len(voxels) != size*size*size {
		return nil, fmt.Errorf("%w: буфер %d, ожидалось %d", ErrChunkSize, len(voxels), size*size*size)
	}
	return &Chunk{
		Coord:  coord,
		Size:   size,
		Voxels: voxels,
		State:  StateReady,
	}, nil
}

// Key возвращает ключ чанка в хранилище
func (c *Chunk) Key() vec.ChunkKey {
	return vec.PackKey(c.Coord)
}

// Origin возвращает координаты минимальной ячейки чанка в вокселях
func (c *Chunk) Origin() vec.Vec3 {
	return c.Coord.Scale(c.Size)
}

// Dims размеры буфера для мешера
func (c *Chunk) Dims() [3]int {
	return [3]int{c.Size, c.Size, c.Size}
}

// Index переводит локальные координаты в индекс буфера
func (c *Chunk) Index(x, y, z int) int {
	return x + y*c.Size + z*c.Size*c.Size
}

// InBounds проверяет локальные координаты
func (c *Chunk) InBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < c.Size && y < c.Size && z < c.Size
}

// Get возвращает воксель по локальным координатам
func (c *Chunk) Get(x, y, z int) voxel.Voxel {
	return c.Voxels[c.Index(x, y, z)]
}

// Set записывает воксель и возвращает предыдущее значение.
// Меш помечается устаревшим только если значение реально изменилось.
func (c *Chunk) Set(x, y, z int, v voxel.Voxel) voxel.Voxel {
	i := c.Index(x, y, z)
	old := c.Voxels[i]
	if old == v {
		return old
	}
	c.Voxels[i] = v
	c.Version++
	if c.State == StateMeshed {
		c.State = StateStale
	}
	return old
}

// Remesh перестраивает меш жадным мешером
func (c *Chunk) Remesh() error {
	mesh, err := mesher.Greedy(c.Voxels, c.Dims())
	if err != nil {
		return fmt.Errorf("мешинг чанка %v: %w", c.Coord, err)
	}
	c.Mesh = mesh
	c.State = StateMeshed
	return nil
}

// Density подсчитывает количество вокселей каждого значения
func (c *Chunk) Density() map[voxel.Voxel]int {
	density := make(map[voxel.Voxel]int)
	for _, v := range c.Voxels {
		density[v]++
	}
	return density
}

// SolidCount количество непустых вокселей
func (c *Chunk) SolidCount() int {
	n := 0
	for _, v := range c.Voxels {
		if v.IsSolid() {
			n++
		}
	}
	return n
}
