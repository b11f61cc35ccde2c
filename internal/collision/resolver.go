package collision

import (
	"math"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon допуск, с которым касание грани не считается проникновением
const Epsilon = 1e-8

// Lookup возвращает воксель ячейки; ok=false означает, что чанк не загружен
type Lookup func(x, y, z int) (v voxel.Voxel, ok bool)

// Hit описание контакта на одной оси
type Hit struct {
	Axis    int         // 0=x, 1=y, 2=z
	Voxel   voxel.Voxel // Значение ячейки
	Cell    vec.Vec3    // Координаты ячейки
	Dir     int         // Направление движения: +1 или -1
	Edge    float64     // Максимальное смещение по оси до касания
	Missing bool        // Ячейка в незагруженном чанке
}

// HitFunc решает, останавливает ли ячейка движение. true обрезает
// смещение по оси до h.Edge и прекращает обход этой оси.
type HitFunc func(h Hit) bool

// Result итог разрешения
type Result struct {
	Velocity mgl64.Vec3 // Скорректированное смещение
	Contacts [3]int     // Направление контакта по каждой оси, 0 если его не было
	Box      AABB       // Параллелепипед после сдвига
}

// DefaultCellLimit граница представимых ячеек для чанков размера 32
var DefaultCellLimit = vec.CellLimit(32)

// Resolver обрезает смещение параллелепипеда о твёрдые воксели
type Resolver struct {
	Lookup       Lookup
	CubeSize     float64
	MissingSolid bool // Незагруженные чанки считаются твёрдыми

	// CellLimit ограничивает обход ячейками [-CellLimit, CellLimit).
	// Ячейки за границей считаются незагруженными; 0 = DefaultCellLimit.
	CellLimit int
}

// NewResolver создаёт резолвер; по умолчанию незагруженные области прозрачны
func NewResolver(lookup Lookup, cubeSize float64) *Resolver {
	return &Resolver{Lookup: lookup, CubeSize: cubeSize}
}

// Resolve сдвигает box на displacement по осям в порядке x, y, z. Для каждой
// оси перебираются слои ячеек от ведущей грани вперёд; первый слой, в
// котором onHit вернул true, задаёт ближайшую грань. onHit вызывается для
// непустых ячеек; nil означает "любая непустая ячейка блокирует".
func (r *Resolver) Resolve(box AABB, displacement mgl64.Vec3, onHit HitFunc) Result {
	if onHit == nil {
		onHit = func(Hit) bool { return true }
	}

	res := Result{Velocity: displacement}
	for axis := 0; axis < 3; axis++ {
		d := res.Velocity[axis]
		if math.IsNaN(d) || math.IsInf(d, 0) {
			res.Velocity[axis] = 0
			continue
		}
		if d == 0 {
			continue
		}
		if hit, ok := r.sweepAxis(box, axis, d, onHit); ok {
			res.Velocity[axis] = hit.Edge
			res.Contacts[axis] = hit.Dir
		}
		var step mgl64.Vec3
		step[axis] = res.Velocity[axis]
		box = box.Translate(step)
	}
	res.Box = box
	return res
}

// sweepAxis ищет ближайшую блокирующую ячейку вдоль одной оси
func (r *Resolver) sweepAxis(box AABB, axis int, d float64, onHit HitFunc) (Hit, bool) {
	cs := r.CubeSize
	limit := r.limit()
	u, v := (axis+1)%3, (axis+2)%3
	low, high := box.Cells(cs, Epsilon)
	lo, hi := low.Array(), high.Array()
	for _, a := range [2]int{u, v} {
		lo[a] = max(lo[a], -limit)
		hi[a] = min(hi[a], limit)
	}

	dir := 1
	leading := box.Max[axis]
	first := math.Ceil((leading - Epsilon) / cs)
	if d < 0 {
		dir = -1
		leading = box.Base[axis]
		first = math.Floor((leading+Epsilon)/cs) - 1
	}
	// За пределами [-limit-1, limit] ячейки уже не представимы
	first = math.Max(math.Min(first, float64(limit)), float64(-limit-1))
	start := int(first)
	target := leading + d

	var cell [3]int
	for i := start; ; i += dir {
		var edge float64
		if dir > 0 {
			face := float64(i) * cs
			if face >= target {
				break
			}
			edge = face - leading
		} else {
			face := float64(i+1) * cs
			if face <= target {
				break
			}
			edge = face - leading
		}

		outside := i >= limit || i < -limit
		if outside && !r.MissingSolid {
			break
		}

		for j := lo[u]; j < hi[u]; j++ {
			for k := lo[v]; k < hi[v]; k++ {
				cell[axis], cell[u], cell[v] = i, j, k
				var h Hit
				var ok bool
				if outside {
					h, ok = Hit{Cell: vec.FromArray(cell), Missing: true}, true
				} else {
					h, ok = r.cellHit(cell)
				}
				if !ok {
					continue
				}
				h.Axis = axis
				h.Dir = dir
				h.Edge = edge
				if onHit(h) {
					return h, true
				}
			}
		}
		if outside {
			// Обработчик пропустил границу мира
			break
		}
	}
	return Hit{}, false
}

func (r *Resolver) limit() int {
	if r.CellLimit > 0 {
		return r.CellLimit
	}
	return DefaultCellLimit
}

// cellHit возвращает описание ячейки, если она может участвовать в контакте
func (r *Resolver) cellHit(cell [3]int) (Hit, bool) {
	h := Hit{Cell: vec.FromArray(cell)}
	val, loaded := r.Lookup(cell[0], cell[1], cell[2])
	if !loaded {
		if !r.MissingSolid {
			return h, false
		}
		h.Missing = true
		return h, true
	}
	if val == voxel.Air {
		return h, false
	}
	h.Voxel = val
	return h, true
}

// Overlapping перечисляет непустые ячейки, строго пересекающие box
func (r *Resolver) Overlapping(box AABB) []vec.Vec3 {
	low, high := box.Cells(r.CubeSize, Epsilon)
	var out []vec.Vec3
	for z := low.Z; z < high.Z; z++ {
		for y := low.Y; y < high.Y; y++ {
			for x := low.X; x < high.X; x++ {
				if _, ok := r.cellHit([3]int{x, y, z}); ok {
					out = append(out, vec.Vec3{X: x, Y: y, Z: z})
				}
			}
		}
	}
	return out
}
