package voxel

import "math"

// Sphere сплошной шар радиуса r с центром в начале координат.
// Ячейка считается заполненной, если её центр лежит внутри шара.
func Sphere(r float64, material Voxel) Generator {
	r2 := r * r
	return GeneratorFunc(func(x, y, z int) Voxel {
		cx, cy, cz := float64(x)+0.5, float64(y)+0.5, float64(z)+0.5
		if cx*cx+cy*cy+cz*cz <= r2 {
			return material
		}
		return Air
	})
}

// Floor один сплошной слой на высоте level
func Floor(level int, material Voxel) Generator {
	return GeneratorFunc(func(x, y, z int) Voxel {
		if y == level {
			return material
		}
		return Air
	})
}

// Hill гауссов холм высотой 16 в начале координат
func Hill() Generator {
	return GeneratorFunc(func(x, y, z int) Voxel {
		h := 16 * math.Exp(-float64(x*x+z*z)/64)
		if float64(y) <= h && y >= 0 {
			return Grass
		}
		return Air
	})
}

// Valley параболическая долина
func Valley() Generator {
	return GeneratorFunc(func(x, y, z int) Voxel {
		h := float64(x*x+z*z)*31/(32*32*2) + 1
		if float64(y) <= h && y >= 0 {
			return Dirt
		}
		return Air
	})
}

// Checker шахматная решетка из двух материалов
func Checker() Generator {
	return GeneratorFunc(func(x, y, z int) Voxel {
		if (x+y+z)&1 == 0 {
			return Air
		}
		if (x^y^z)&2 != 0 {
			return Stone
		}
		return Brick
	})
}

// HillyTerrain синусоидальные холмы: трава, земля, камень с рудой, лава на дне.
// Руда распределена детерминированным хешем от seed и координат.
func HillyTerrain(seed int64) Generator {
	return GeneratorFunc(func(x, y, z int) Voxel {
		fx, fz := float64(x), float64(z)
		h0 := 3.0*math.Sin(math.Pi*fx/12.0-math.Pi*fz*0.1) + 27
		fy := float64(y)
		if fy > h0+1 {
			return Air
		}
		if h0 <= fy {
			return Grass
		}
		h1 := 2.0*math.Sin(math.Pi*fx*0.25-math.Pi*fz*0.3) + 20
		if h1 <= fy {
			return Dirt
		}
		if y > 2 {
			if hash3(seed, x, y, z)%10 == 0 {
				return Ore
			}
			return Stone
		}
		return Lava
	})
}

// hash3 детерминированный хеш координат (splitmix64)
func hash3(seed int64, x, y, z int) uint64 {
	h := uint64(seed) ^ uint64(x)*0x9E3779B97F4A7C15 ^ uint64(y)*0xC2B2AE3D27D4EB4F ^ uint64(z)*0x165667B19E3779F9
	h ^= h >> 30
	h *= 0xBF58476D1CE4E5B9
	h ^= h >> 27
	h *= 0x94D049BB133111EB
	h ^= h >> 31
	return h
}
