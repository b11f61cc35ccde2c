package voxel

import (
	"math"

	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/aquilax/go-perlin"
)

// BiomeType представляет тип биома
type BiomeType int

const (
	BiomePlains BiomeType = iota
	BiomeDesert
	BiomeForest
	BiomeMountains
)

// Пороги нормализованной высоты [0,1] для выбора биома
const (
	MountainStart = 0.75 // Выше - горы с рудами
	DesertBiome   = -0.3 // Значение шума биомов ниже - пустыня
	ForestBiome   = 0.3  // Значение шума биомов выше - лес
)

// TerrainGenerator генерирует ландшафт по карте высот из шума Перлина.
// Экземпляр неизменяем после создания и безопасен для параллельной генерации чанков.
type TerrainGenerator struct {
	Seed          int64   // Сид для генерации шума
	NoiseScale    float64 // Масштаб основного шума (высота)
	BiomeScale    float64 // Масштаб шума биомов
	BaseHeight    int     // Минимальная высота поверхности
	Amplitude     float64 // Размах высот
	WaterLevel    int     // Всё, что ниже и не занято землёй, заполняется водой
	ForestDensity float64 // Плотность лесов (от 0 до 1)

	height *perlin.Perlin
	biome  *perlin.Perlin
}

// NewTerrainGenerator создаёт новый генератор ландшафта
func NewTerrainGenerator(seed int64) *TerrainGenerator {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав

	return &TerrainGenerator{
		Seed:          seed,
		NoiseScale:    0.02,
		BiomeScale:    0.005,
		BaseHeight:    0,
		Amplitude:     32,
		WaterLevel:    8,
		ForestDensity: 0.02,
		height:        perlin.NewPerlin(alpha, beta, n, seed),
		biome:         perlin.NewPerlin(alpha, beta, n, seed+42),
	}
}

// column описывает вертикальный столбец ландшафта
type column struct {
	surface int
	biome   BiomeType
	tree    int // высота ствола, 0 если дерева нет
}

func (tg *TerrainGenerator) column(x, z int) column {
	// Получаем значение шума (от -1 до 1) и преобразуем в диапазон от 0 до 1
	hn := (tg.height.Noise2D(float64(x)*tg.NoiseScale, float64(z)*tg.NoiseScale) + 1.0) / 2.0
	hn = math.Max(0, math.Min(1, hn))
	bn := tg.biome.Noise2D(float64(x)*tg.BiomeScale, float64(z)*tg.BiomeScale)

	col := column{
		surface: tg.BaseHeight + int(math.Floor(hn*tg.Amplitude)),
		biome:   biomeFor(hn, bn),
	}

	if col.surface > tg.WaterLevel {
		roll := float64(hash3(tg.Seed, x, 0, z)%10000) / 10000
		density := tg.ForestDensity
		if col.biome == BiomeForest {
			density *= 5
		}
		if col.biome != BiomeDesert && roll < density {
			col.tree = 3 + int(hash3(tg.Seed+1, x, 0, z)%3) // Высота дерева 3-5 блоков
		}
	}
	return col
}

func biomeFor(height, biomeValue float64) BiomeType {
	if height > MountainStart {
		return BiomeMountains
	}
	if biomeValue < DesertBiome {
		return BiomeDesert
	} else if biomeValue > ForestBiome {
		return BiomeForest
	}
	return BiomePlains
}

// Voxel реализует Generator
func (tg *TerrainGenerator) Voxel(x, y, z int) Voxel {
	return tg.voxelInColumn(tg.column(x, z), x, y, z)
}

func (tg *TerrainGenerator) voxelInColumn(col column, x, y, z int) Voxel {
	switch {
	case y > col.surface:
		if col.tree > 0 && y <= col.surface+col.tree {
			return Log
		}
		if y <= tg.WaterLevel {
			return Water
		}
		return Air
	case y == col.surface:
		switch col.biome {
		case BiomeDesert:
			return Sand
		case BiomeMountains:
			return Stone
		}
		if col.surface <= tg.WaterLevel {
			return Sand
		}
		return Grass
	case y > col.surface-3:
		if col.biome == BiomeDesert {
			return Sand
		}
		return Dirt
	default:
		// С некоторой вероятностью генерируем руду
		if hash3(tg.Seed, x, y, z)%10 == 0 {
			return Ore
		}
		return Stone
	}
}

// GenerateChunk реализует ChunkGenerator: шум считается один раз на столбец
func (tg *TerrainGenerator) GenerateChunk(low, high vec.Vec3, buf []Voxel) error {
	dx, dy := high.X-low.X, high.Y-low.Y
	for z := low.Z; z < high.Z; z++ {
		for x := low.X; x < high.X; x++ {
			col := tg.column(x, z)
			for y := low.Y; y < high.Y; y++ {
				i := (x - low.X) + (y-low.Y)*dx + (z-low.Z)*dx*dy
				buf[i] = tg.voxelInColumn(col, x, y, z)
			}
		}
	}
	return nil
}

// SurfaceHeight возвращает высоту поверхности в столбце (x, z)
func (tg *TerrainGenerator) SurfaceHeight(x, z int) int {
	return tg.column(x, z).surface
}
