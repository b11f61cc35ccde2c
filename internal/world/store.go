package world

import (
	"fmt"
	"math"
	"sort"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
)

// Bounds ограничивает мир полуинтервалом ячеек [Low, High).
// Нулевое значение означает неограниченный мир.
type Bounds struct {
	Low  vec.Vec3
	High vec.Vec3
}

// IsZero сообщает, что границы не заданы
func (b Bounds) IsZero() bool {
	return b.Low == (vec.Vec3{}) && b.High == (vec.Vec3{})
}

// Contains проверяет ячейку
func (b Bounds) Contains(c vec.Vec3) bool {
	if b.IsZero() {
		return true
	}
	return c.X >= b.Low.X && c.Y >= b.Low.Y && c.Z >= b.Low.Z &&
		c.X < b.High.X && c.Y < b.High.Y && c.Z < b.High.Z
}

// overlapsChunk проверяет, пересекает ли чанк границы мира
func (b Bounds) overlapsChunk(coord vec.Vec3, size int) bool {
	if b.IsZero() {
		return true
	}
	low := coord.Scale(size)
	high := low.Add(vec.Vec3{X: size, Y: size, Z: size})
	return low.X < b.High.X && high.X > b.Low.X &&
		low.Y < b.High.Y && high.Y > b.Low.Y &&
		low.Z < b.High.Z && high.Z > b.Low.Z
}

// Store хранилище загруженных чанков. Не потокобезопасно: все вызовы
// выполняются из потока тика.
type Store struct {
	chunks   map[vec.ChunkKey]*Chunk
	dirty    map[vec.ChunkKey]struct{}
	size     int
	cubeSize float64
	bounds   Bounds
}

// NewStore создаёт пустое хранилище
func NewStore(chunkSize int, cubeSize float64) (*Store, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrChunkSize, chunkSize)
	}
	if !(cubeSize > 0) || math.IsInf(cubeSize, 0) {
		return nil, fmt.Errorf("%w: размер куба %v", ErrChunkSize, cubeSize)
	}
	return &Store{
		chunks:   make(map[vec.ChunkKey]*Chunk),
		dirty:    make(map[vec.ChunkKey]struct{}),
		size:     chunkSize,
		cubeSize: cubeSize,
	}, nil
}

// SetBounds задаёт границы мира в ячейках
func (s *Store) SetBounds(b Bounds) {
	s.bounds = b
}

// Bounds возвращает границы мира
func (s *Store) Bounds() Bounds {
	return s.bounds
}

// ChunkSize длина ребра чанка в вокселях
func (s *Store) ChunkSize() int {
	return s.size
}

// CubeSize размер вокселя в мировых единицах
func (s *Store) CubeSize() float64 {
	return s.cubeSize
}

// Get возвращает чанк по координатам сетки чанков
func (s *Store) Get(coord vec.Vec3) (*Chunk, bool) {
	c, ok := s.chunks[vec.PackKey(coord)]
	return c, ok
}

// GetKey возвращает чанк по ключу
func (s *Store) GetKey(key vec.ChunkKey) (*Chunk, bool) {
	c, ok := s.chunks[key]
	return c, ok
}

// Set публикует чанк. Чанк должен быть полностью сгенерирован.
func (s *Store) Set(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("%w: nil", ErrChunkSize)
	}
	if c.Size != s.size || len(c.Voxels) != s.size*s.size*s.size {
		return fmt.Errorf("%w: чанк %v размера %d, хранилище %d", ErrChunkSize, c.Coord, c.Size, s.size)
	}
	if !vec.InKeyRange(c.Coord) {
		return fmt.Errorf("%w: чанк %v вне диапазона ключей", ErrInvalidCoordinate, c.Coord)
	}
	if c.State == StateGenerating || c.State == StateEvicted {
		return fmt.Errorf("чанк %v в состоянии %s нельзя опубликовать", c.Coord, c.State)
	}
	s.chunks[c.Key()] = c
	return nil
}

// Delete удаляет чанк и снимает его из очереди перемешивания
func (s *Store) Delete(coord vec.Vec3) (*Chunk, bool) {
	key := vec.PackKey(coord)
	c, ok := s.chunks[key]
	if !ok {
		return nil, false
	}
	delete(s.chunks, key)
	delete(s.dirty, key)
	c.State = StateEvicted
	return c, true
}

// Len количество загруженных чанков
func (s *Store) Len() int {
	return len(s.chunks)
}

// Keys возвращает отсортированный снимок ключей. Снимок можно безопасно
// использовать при удалении чанков.
func (s *Store) Keys() []vec.ChunkKey {
	keys := make([]vec.ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// CellOf переводит мировую позицию в ячейку вокселя
func (s *Store) CellOf(pos mgl64.Vec3) (vec.Vec3, error) {
	var cell [3]int
	for i := 0; i < 3; i++ {
		f := pos[i]
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return vec.Vec3{}, fmt.Errorf("%w: %v", ErrInvalidCoordinate, pos)
		}
		f = math.Floor(f / s.cubeSize)
		limit := float64(vec.CellLimit(s.size))
		if f < -limit || f >= limit {
			return vec.Vec3{}, fmt.Errorf("%w: %v вне диапазона", ErrInvalidCoordinate, pos)
		}
		cell[i] = int(f)
	}
	c := vec.FromArray(cell)
	if !s.bounds.Contains(c) {
		return vec.Vec3{}, fmt.Errorf("%w: %v вне границ мира", ErrInvalidCoordinate, pos)
	}
	return c, nil
}

// ChunkCoordOf возвращает координаты чанка, содержащего ячейку
func (s *Store) ChunkCoordOf(cell vec.Vec3) vec.Vec3 {
	return vec.Vec3{
		X: vec.FloorDiv(cell.X, s.size),
		Y: vec.FloorDiv(cell.Y, s.size),
		Z: vec.FloorDiv(cell.Z, s.size),
	}
}

// locate возвращает чанк и локальные координаты ячейки
func (s *Store) locate(cell vec.Vec3) (*Chunk, vec.Vec3, bool) {
	c, ok := s.Get(s.ChunkCoordOf(cell))
	if !ok {
		return nil, vec.Vec3{}, false
	}
	local := vec.Vec3{
		X: vec.FloorMod(cell.X, s.size),
		Y: vec.FloorMod(cell.Y, s.size),
		Z: vec.FloorMod(cell.Z, s.size),
	}
	return c, local, true
}

// ChunkAt возвращает чанк, содержащий мировую позицию
func (s *Store) ChunkAt(pos mgl64.Vec3) (*Chunk, error) {
	cell, err := s.CellOf(pos)
	if err != nil {
		return nil, err
	}
	c, ok := s.Get(s.ChunkCoordOf(cell))
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNoChunk, s.ChunkCoordOf(cell))
	}
	return c, nil
}

// VoxelAt читает воксель по мировой позиции
func (s *Store) VoxelAt(pos mgl64.Vec3) (voxel.Voxel, error) {
	cell, err := s.CellOf(pos)
	if err != nil {
		return voxel.Air, err
	}
	c, local, ok := s.locate(cell)
	if !ok {
		return voxel.Air, fmt.Errorf("%w: %v", ErrNoChunk, s.ChunkCoordOf(cell))
	}
	return c.Get(local.X, local.Y, local.Z), nil
}

// SetVoxelAt записывает воксель по мировой позиции и ставит чанк в очередь
// на перемешивание. Возвращает предыдущее значение.
func (s *Store) SetVoxelAt(pos mgl64.Vec3, v voxel.Voxel) (voxel.Voxel, error) {
	cell, err := s.CellOf(pos)
	if err != nil {
		return voxel.Air, err
	}
	return s.SetVoxelAtCell(cell, v)
}

// SetVoxelAtCell записывает воксель по целочисленной ячейке
func (s *Store) SetVoxelAtCell(cell vec.Vec3, v voxel.Voxel) (voxel.Voxel, error) {
	if !s.bounds.Contains(cell) {
		return voxel.Air, fmt.Errorf("%w: ячейка %v вне границ мира", ErrInvalidCoordinate, cell)
	}
	c, local, ok := s.locate(cell)
	if !ok {
		return voxel.Air, fmt.Errorf("%w: %v", ErrNoChunk, s.ChunkCoordOf(cell))
	}
	old := c.Set(local.X, local.Y, local.Z, v)
	if old != v {
		s.MarkDirty(c.Key())
	}
	return old, nil
}

// VoxelAtCell читает воксель по ячейке; ok=false если чанк не загружен
func (s *Store) VoxelAtCell(x, y, z int) (voxel.Voxel, bool) {
	c, local, ok := s.locate(vec.Vec3{X: x, Y: y, Z: z})
	if !ok {
		return voxel.Air, false
	}
	return c.Get(local.X, local.Y, local.Z), true
}

// MarkDirty ставит чанк в очередь на перемешивание в конце тика
func (s *Store) MarkDirty(key vec.ChunkKey) {
	if _, ok := s.chunks[key]; ok {
		s.dirty[key] = struct{}{}
	}
}

// Dirty количество чанков, ожидающих перемешивания
func (s *Store) Dirty() int {
	return len(s.dirty)
}

// FlushDirty вызывает fn ровно один раз для каждого изменённого чанка
// в детерминированном порядке и очищает набор. Возвращает число чанков.
func (s *Store) FlushDirty(fn func(*Chunk)) int {
	if len(s.dirty) == 0 {
		return 0
	}
	keys := make([]vec.ChunkKey, 0, len(s.dirty))
	for k := range s.dirty {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	s.dirty = make(map[vec.ChunkKey]struct{})
	n := 0
	for _, k := range keys {
		c, ok := s.chunks[k]
		if !ok {
			continue
		}
		fn(c)
		n++
	}
	return n
}

// Blocks копирует прямоугольную область ячеек [low, high) в буфер
// x + y*dx + z*dx*dy. Незагруженные ячейки возвращаются как воздух.
func (s *Store) Blocks(low, high vec.Vec3) ([]voxel.Voxel, error) {
	dx, dy, dz := high.X-low.X, high.Y-low.Y, high.Z-low.Z
	if dx <= 0 || dy <= 0 || dz <= 0 {
		return nil, fmt.Errorf("%w: пустая область %v..%v", ErrInvalidCoordinate, low, high)
	}
	out := make([]voxel.Voxel, dx*dy*dz)
	i := 0
	for z := low.Z; z < high.Z; z++ {
		for y := low.Y; y < high.Y; y++ {
			for x := low.X; x < high.X; x++ {
				out[i], _ = s.VoxelAtCell(x, y, z)
				i++
			}
		}
	}
	return out, nil
}
