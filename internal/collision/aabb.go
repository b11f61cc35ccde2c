package collision

import (
	"math"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

// AABB выровненный по осям ограничивающий параллелепипед в мировых единицах
type AABB struct {
	Base mgl64.Vec3 // Минимальный угол
	Max  mgl64.Vec3 // Максимальный угол
}

// NewAABB создаёт параллелепипед по углу и размерам
func NewAABB(base, extent mgl64.Vec3) AABB {
	return AABB{Base: base, Max: base.Add(extent)}
}

// CellAABB возвращает параллелепипед ячейки вокселя
func CellAABB(cell vec.Vec3, cubeSize float64) AABB {
	base := mgl64.Vec3{float64(cell.X), float64(cell.Y), float64(cell.Z)}.Mul(cubeSize)
	return NewAABB(base, mgl64.Vec3{cubeSize, cubeSize, cubeSize})
}

// Width размер по x
func (b AABB) Width() float64 { return b.Max[0] - b.Base[0] }

// Height размер по y
func (b AABB) Height() float64 { return b.Max[1] - b.Base[1] }

// Depth размер по z
func (b AABB) Depth() float64 { return b.Max[2] - b.Base[2] }

// Extent размеры по всем осям
func (b AABB) Extent() mgl64.Vec3 { return b.Max.Sub(b.Base) }

// Center центр параллелепипеда
func (b AABB) Center() mgl64.Vec3 { return b.Base.Add(b.Max).Mul(0.5) }

// Translate возвращает сдвинутую копию
func (b AABB) Translate(d mgl64.Vec3) AABB {
	return AABB{Base: b.Base.Add(d), Max: b.Max.Add(d)}
}

// Expand возвращает объём, заметаемый при сдвиге на d
func (b AABB) Expand(d mgl64.Vec3) AABB {
	out := b
	for i := 0; i < 3; i++ {
		if d[i] < 0 {
			out.Base[i] += d[i]
		} else {
			out.Max[i] += d[i]
		}
	}
	return out
}

// Intersects проверяет строгое пересечение: касание гранями не считается
func (b AABB) Intersects(o AABB) bool {
	return b.Base[0] < o.Max[0] && b.Max[0] > o.Base[0] &&
		b.Base[1] < o.Max[1] && b.Max[1] > o.Base[1] &&
		b.Base[2] < o.Max[2] && b.Max[2] > o.Base[2]
}

// ContainsPoint проверяет точку по полуинтервалам [Base, Max)
func (b AABB) ContainsPoint(p mgl64.Vec3) bool {
	return p[0] >= b.Base[0] && p[0] < b.Max[0] &&
		p[1] >= b.Base[1] && p[1] < b.Max[1] &&
		p[2] >= b.Base[2] && p[2] < b.Max[2]
}

// IsFinite проверяет, что все координаты конечны
func (b AABB) IsFinite() bool {
	return finite(b.Base) && finite(b.Max)
}

// Cells возвращает диапазон ячеек [low, high), которые строго пересекает
// параллелепипед. Касание границы ячейки с точностью eps не считается.
func (b AABB) Cells(cubeSize, eps float64) (low, high vec.Vec3) {
	var lo, hi [3]int
	for i := 0; i < 3; i++ {
		lo[i] = clampCell(math.Floor((b.Base[i] + eps) / cubeSize))
		hi[i] = clampCell(math.Ceil((b.Max[i] - eps) / cubeSize))
	}
	return vec.FromArray(lo), vec.FromArray(hi)
}

// cellRange держит преобразование float -> int в определённой области
const cellRange = 1 << 53

func clampCell(f float64) int {
	return int(math.Max(math.Min(f, cellRange), -cellRange))
}

func finite(v mgl64.Vec3) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
