package mesher

import (
	"github.com/annel0/voxel-engine/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
)

// Quad прямоугольная грань, лежащая в плоскости, перпендикулярной оси Axis.
// Origin - минимальный угол в локальных координатах чанка, Du и Dv - стороны.
type Quad struct {
	Origin   [3]int
	Du       [3]int
	Dv       [3]int
	Axis     int  // Ось нормали: 0=x, 1=y, 2=z
	Positive bool // Нормаль смотрит в положительную сторону оси
	Material voxel.Voxel
}

// Width возвращает длину стороны Du
func (q Quad) Width() int {
	return q.Du[0] + q.Du[1] + q.Du[2]
}

// Height возвращает длину стороны Dv
func (q Quad) Height() int {
	return q.Dv[0] + q.Dv[1] + q.Dv[2]
}

// Area площадь грани в единичных гранях вокселей
func (q Quad) Area() int {
	return q.Width() * q.Height()
}

// Normal возвращает единичную нормаль
func (q Quad) Normal() [3]int {
	var n [3]int
	if q.Positive {
		n[q.Axis] = 1
	} else {
		n[q.Axis] = -1
	}
	return n
}

// Corners возвращает 4 угла против часовой стрелки, если смотреть со стороны нормали
func (q Quad) Corners() [4][3]int {
	o := q.Origin
	a := add3(o, q.Du)
	b := add3(a, q.Dv)
	c := add3(o, q.Dv)
	if q.Positive {
		return [4][3]int{o, a, b, c}
	}
	return [4][3]int{o, c, b, a}
}

// Face единичная грань: ячейка, которая её излучает, и направление
type Face struct {
	Cell     [3]int
	Axis     int
	Positive bool
}

// Mesh результат мешинга одного чанка
type Mesh struct {
	Dims  [3]int
	Quads []Quad
}

// Empty сообщает, что в меше нет ни одной грани
func (m *Mesh) Empty() bool {
	return m == nil || len(m.Quads) == 0
}

// SurfaceArea суммарная площадь видимой поверхности
func (m *Mesh) SurfaceArea() int {
	if m == nil {
		return 0
	}
	total := 0
	for _, q := range m.Quads {
		total += q.Area()
	}
	return total
}

// FaceCoverage раскладывает меш на единичные грани с их материалом
func (m *Mesh) FaceCoverage() map[Face]voxel.Voxel {
	faces := make(map[Face]voxel.Voxel, m.SurfaceArea())
	if m == nil {
		return faces
	}
	for _, q := range m.Quads {
		u, v := (q.Axis+1)%3, (q.Axis+2)%3
		cell := q.Origin
		if q.Positive {
			cell[q.Axis]--
		}
		for j := 0; j < q.Height(); j++ {
			for i := 0; i < q.Width(); i++ {
				c := cell
				c[u] += i
				c[v] += j
				faces[Face{Cell: c, Axis: q.Axis, Positive: q.Positive}] = q.Material
			}
		}
	}
	return faces
}

// VertexData плоские массивы для загрузки в рендерер
type VertexData struct {
	Positions []float32 // xyz на вершину
	Normals   []float32 // xyz на вершину
	Materials []uint16  // материал на вершину
	Indices   []uint32  // по два треугольника на грань
}

// Vertices переводит грани в мировые координаты: origin + local*scale
func (m *Mesh) Vertices(scale float64, origin mgl64.Vec3) VertexData {
	var vd VertexData
	if m == nil {
		return vd
	}

	n := len(m.Quads)
	vd.Positions = make([]float32, 0, n*12)
	vd.Normals = make([]float32, 0, n*12)
	vd.Materials = make([]uint16, 0, n*4)
	vd.Indices = make([]uint32, 0, n*6)

	for _, q := range m.Quads {
		base := uint32(len(vd.Materials))
		normal := q.Normal()
		for _, c := range q.Corners() {
			p := origin.Add(mgl64.Vec3{float64(c[0]), float64(c[1]), float64(c[2])}.Mul(scale))
			vd.Positions = append(vd.Positions, float32(p[0]), float32(p[1]), float32(p[2]))
			vd.Normals = append(vd.Normals, float32(normal[0]), float32(normal[1]), float32(normal[2]))
			vd.Materials = append(vd.Materials, uint16(q.Material))
		}
		vd.Indices = append(vd.Indices, base, base+1, base+2, base+2, base+3, base)
	}
	return vd
}

func add3(a, b [3]int) [3]int {
	return [3]int{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}
