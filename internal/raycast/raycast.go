package raycast

import (
	"errors"
	"fmt"
	"math"

	"github.com/annel0/voxel-engine/internal/collision"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidRay луч с нулевым или неконечным направлением, началом вне
// представимых ячеек либо неконечной или отрицательной дальностью
var ErrInvalidRay = errors.New("invalid ray")

// Hit результат попадания луча
type Hit struct {
	Position mgl64.Vec3  // Точка входа в воксель, мировые единицы
	Voxel    vec.Vec3    // Ячейка попадания
	Value    voxel.Voxel // Значение ячейки
	Normal   [3]int      // Нормаль грани входа; нулевая, если луч начат внутри
	Adjacent vec.Vec3    // Соседняя ячейка со стороны луча, куда ставится новый блок
	Distance float64     // Пройденное расстояние в мировых единицах
}

// Caster пускает лучи по сетке вокселей
type Caster struct {
	Lookup   collision.Lookup
	CubeSize float64

	// CellLimit ограничивает обход ячейками [-CellLimit, CellLimit);
	// 0 = collision.DefaultCellLimit
	CellLimit int
}

// Cast пускает луч в сетке с единичным размером вокселя
func Cast(lookup collision.Lookup, origin, dir mgl64.Vec3, maxDist float64) (Hit, bool, error) {
	return Caster{Lookup: lookup, CubeSize: 1}.Cast(origin, dir, maxDist)
}

// Cast обходит ячейки вдоль луча (Amanatides-Woo) до первой непустой ячейки
// или до maxDist. Незагруженные чанки считаются пустыми.
func (c Caster) Cast(origin, dir mgl64.Vec3, maxDist float64) (Hit, bool, error) {
	if !finite(origin) || !finite(dir) {
		return Hit{}, false, fmt.Errorf("%w: origin %v dir %v", ErrInvalidRay, origin, dir)
	}
	if math.IsNaN(maxDist) || math.IsInf(maxDist, 0) || maxDist < 0 {
		return Hit{}, false, fmt.Errorf("%w: дальность %v", ErrInvalidRay, maxDist)
	}
	length := dir.Len()
	if length == 0 {
		return Hit{}, false, fmt.Errorf("%w: нулевое направление", ErrInvalidRay)
	}
	d := dir.Mul(1 / length)

	cs := c.CubeSize
	if cs <= 0 {
		cs = 1
	}
	p := origin.Mul(1 / cs)
	maxT := maxDist / cs
	limit := c.CellLimit
	if limit <= 0 {
		limit = collision.DefaultCellLimit
	}
	for i := 0; i < 3; i++ {
		if p[i] < -float64(limit) || p[i] >= float64(limit) {
			return Hit{}, false, fmt.Errorf("%w: начало %v вне мира", ErrInvalidRay, origin)
		}
	}

	var cell, step [3]int
	var tMax, tDelta [3]float64
	for i := 0; i < 3; i++ {
		cell[i] = int(math.Floor(p[i]))
		switch {
		case d[i] > 0:
			step[i] = 1
			tMax[i] = (float64(cell[i]+1) - p[i]) / d[i]
			tDelta[i] = 1 / d[i]
		case d[i] < 0:
			step[i] = -1
			tMax[i] = (p[i] - float64(cell[i])) / -d[i]
			tDelta[i] = -1 / d[i]
		default:
			tMax[i] = math.Inf(1)
			tDelta[i] = math.Inf(1)
		}
	}

	if v, ok := c.Lookup(cell[0], cell[1], cell[2]); ok && v != voxel.Air {
		at := vec.FromArray(cell)
		return Hit{Position: origin, Voxel: at, Value: v, Adjacent: at}, true, nil
	}

	for {
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		t := tMax[axis]
		if t > maxT {
			return Hit{}, false, nil
		}
		cell[axis] += step[axis]
		tMax[axis] += tDelta[axis]
		if cell[axis] < -limit || cell[axis] >= limit {
			return Hit{}, false, nil
		}

		v, ok := c.Lookup(cell[0], cell[1], cell[2])
		if !ok || v == voxel.Air {
			continue
		}

		var normal [3]int
		normal[axis] = -step[axis]
		adjacent := cell
		adjacent[axis] -= step[axis]
		return Hit{
			Position: origin.Add(d.Mul(t * cs)),
			Voxel:    vec.FromArray(cell),
			Value:    v,
			Normal:   normal,
			Adjacent: vec.FromArray(adjacent),
			Distance: t * cs,
		}, true, nil
	}
}

func finite(v mgl64.Vec3) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
