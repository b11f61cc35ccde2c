package mesher

import (
	"fmt"

	"github.com/annel0/voxel-engine/internal/voxel"
)

// faceVisible решает, излучает ли воксель self грань в сторону neighbor.
// Два непрозрачных соседа внутреннюю грань не дают, одинаковые прозрачные тоже.
func faceVisible(self, neighbor voxel.Voxel) bool {
	if !self.IsSolid() {
		return false
	}
	if neighbor == voxel.Air {
		return true
	}
	return neighbor.IsTransparent() && neighbor != self
}

// buffer обертка над плоским буфером x + y*sx + z*sx*sy
type buffer struct {
	data []voxel.Voxel
	dims [3]int
}

func newBuffer(data []voxel.Voxel, dims [3]int) (buffer, error) {
	if dims[0] <= 0 || dims[1] <= 0 || dims[2] <= 0 {
		return buffer{}, fmt.Errorf("некорректные размеры буфера %v", dims)
	}
	if len(data) != dims[0]*dims[1]*dims[2] {
		return buffer{}, fmt.Errorf("длина буфера %d не совпадает с размерами %v", len(data), dims)
	}
	return buffer{data: data, dims: dims}, nil
}

// at возвращает воксель или воздух за пределами буфера
func (b buffer) at(p [3]int) voxel.Voxel {
	if p[0] < 0 || p[1] < 0 || p[2] < 0 || p[0] >= b.dims[0] || p[1] >= b.dims[1] || p[2] >= b.dims[2] {
		return voxel.Air
	}
	return b.data[p[0]+p[1]*b.dims[0]+p[2]*b.dims[0]*b.dims[1]]
}

// Greedy строит меш, объединяя соседние компланарные грани одного материала
// и направления в максимальные прямоугольники. Шесть проходов: по оси и по знаку.
func Greedy(data []voxel.Voxel, dims [3]int) (*Mesh, error) {
	buf, err := newBuffer(data, dims)
	if err != nil {
		return nil, err
	}

	mesh := &Mesh{Dims: dims}
	for axis := 0; axis < 3; axis++ {
		mesh.Quads = sweep(buf, axis, true, mesh.Quads)
		mesh.Quads = sweep(buf, axis, false, mesh.Quads)
	}
	return mesh, nil
}

// sweep обрабатывает все слои вдоль оси axis для одного направления нормали
func sweep(buf buffer, axis int, positive bool, quads []Quad) []Quad {
	u, v := (axis+1)%3, (axis+2)%3
	su, sv := buf.dims[u], buf.dims[v]
	mask := make([]voxel.Voxel, su*sv)

	step := -1
	if positive {
		step = 1
	}

	var pos, nb [3]int
	for s := 0; s < buf.dims[axis]; s++ {
		// 1. Маска видимости для слоя
		n := 0
		for j := 0; j < sv; j++ {
			for i := 0; i < su; i++ {
				pos[axis], pos[u], pos[v] = s, i, j
				nb = pos
				nb[axis] += step

				self := buf.at(pos)
				if faceVisible(self, buf.at(nb)) {
					mask[n] = self
				} else {
					mask[n] = voxel.Air
				}
				n++
			}
		}

		// 2. Жадное наращивание прямоугольников
		plane := s
		if positive {
			plane = s + 1
		}
		n = 0
		for j := 0; j < sv; j++ {
			for i := 0; i < su; {
				m := mask[n]
				if m == voxel.Air {
					i++
					n++
					continue
				}

				w := 1
				for i+w < su && mask[n+w] == m {
					w++
				}

				h := 1
			grow:
				for j+h < sv {
					row := n + h*su
					for k := 0; k < w; k++ {
						if mask[row+k] != m {
							break grow
						}
					}
					h++
				}

				var q Quad
				q.Origin[axis], q.Origin[u], q.Origin[v] = plane, i, j
				q.Du[u] = w
				q.Dv[v] = h
				q.Axis = axis
				q.Positive = positive
				q.Material = m
				quads = append(quads, q)

				for l := 0; l < h; l++ {
					row := n + l*su
					for k := 0; k < w; k++ {
						mask[row+k] = voxel.Air
					}
				}

				i += w
				n += w
			}
		}
	}
	return quads
}

// Culled строит наивный меш: по одной единичной грани на каждую видимую сторону вокселя.
// Используется как эталон для проверки жадного мешера.
func Culled(data []voxel.Voxel, dims [3]int) (*Mesh, error) {
	buf, err := newBuffer(data, dims)
	if err != nil {
		return nil, err
	}

	mesh := &Mesh{Dims: dims}
	var p [3]int
	for p[2] = 0; p[2] < dims[2]; p[2]++ {
		for p[1] = 0; p[1] < dims[1]; p[1]++ {
			for p[0] = 0; p[0] < dims[0]; p[0]++ {
				self := buf.at(p)
				if !self.IsSolid() {
					continue
				}
				for axis := 0; axis < 3; axis++ {
					for _, positive := range [2]bool{true, false} {
						nb := p
						if positive {
							nb[axis]++
						} else {
							nb[axis]--
						}
						if !faceVisible(self, buf.at(nb)) {
							continue
						}
						u, v := (axis+1)%3, (axis+2)%3
						q := Quad{Origin: p, Axis: axis, Positive: positive, Material: self}
						if positive {
							q.Origin[axis]++
						}
						q.Du[u] = 1
						q.Dv[v] = 1
						mesh.Quads = append(mesh.Quads, q)
					}
				}
			}
		}
	}
	return mesh, nil
}
