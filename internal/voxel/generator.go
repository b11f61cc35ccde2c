package voxel

import (
	"errors"
	"fmt"

	"github.com/annel0/voxel-engine/internal/vec"
)

// ErrUnknownGenerator возвращается при запросе генератора по неизвестному имени
var ErrUnknownGenerator = errors.New("unknown generator")

// Generator чистая функция координат вокселя. Повторные вызовы с теми же
// координатами обязаны возвращать одно и то же значение: от этого зависит
// детерминизм мешей и коллизий.
type Generator interface {
	Voxel(x, y, z int) Voxel
}

// GeneratorFunc позволяет использовать обычную функцию как Generator
type GeneratorFunc func(x, y, z int) Voxel

// Voxel реализует Generator
func (f GeneratorFunc) Voxel(x, y, z int) Voxel {
	return f(x, y, z)
}

// ChunkGenerator генератор, умеющий заполнять целый буфер за раз.
// Буфер индексируется как x + y*dx + z*dx*dy относительно low.
type ChunkGenerator interface {
	Generator
	GenerateChunk(low, high vec.Vec3, buf []Voxel) error
}

// Generate заполняет новый буфер для полуинтервала [low, high)
func Generate(gen Generator, low, high vec.Vec3) ([]Voxel, error) {
	dx, dy, dz := high.X-low.X, high.Y-low.Y, high.Z-low.Z
	if dx <= 0 || dy <= 0 || dz <= 0 {
		return nil, fmt.Errorf("пустая область генерации %v..%v", low, high)
	}

	buf := make([]Voxel, dx*dy*dz)
	if cg, ok := gen.(ChunkGenerator); ok {
		if err := cg.GenerateChunk(low, high, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	i := 0
	for z := low.Z; z < high.Z; z++ {
		for y := low.Y; y < high.Y; y++ {
			for x := low.X; x < high.X; x++ {
				buf[i] = gen.Voxel(x, y, z)
				i++
			}
		}
	}
	return buf, nil
}

// Lookup возвращает встроенный генератор по имени из конфигурации
func Lookup(name string, seed int64) (Generator, error) {
	switch name {
	case "", "sphere":
		return Sphere(20, Stone), nil
	case "floor":
		return Floor(1, Grass), nil
	case "hill":
		return Hill(), nil
	case "valley":
		return Valley(), nil
	case "checker":
		return Checker(), nil
	case "hilly":
		return HillyTerrain(seed), nil
	case "terrain":
		return NewTerrainGenerator(seed), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, name)
}
