package voxel

import (
	"fmt"
	"sort"
)

// Базовые материалы. Нумерация совпадает с идентификаторами блоков сервера.
const (
	Stone Voxel = 1
	Grass Voxel = 2
	Water       = Voxel(3) | TransparentFlag
	Sand  Voxel = 4
	Dirt  Voxel = 5

	// Декоративные материалы (начиная с 100)
	Log    Voxel = 100
	Leaves       = Voxel(101) | TransparentFlag
	Glass        = Voxel(102) | TransparentFlag
	Brick  Voxel = 103
	Crate  Voxel = 104
	Ore    Voxel = 105
	Lava   Voxel = 106
)

var materialNames = map[string]Voxel{
	"stone":  Stone,
	"grass":  Grass,
	"water":  Water,
	"sand":   Sand,
	"dirt":   Dirt,
	"log":    Log,
	"leaves": Leaves,
	"glass":  Glass,
	"brick":  Brick,
	"crate":  Crate,
	"ore":    Ore,
	"lava":   Lava,
}

// MaterialByName возвращает воксель по имени материала
func MaterialByName(name string) (Voxel, error) {
	v, ok := materialNames[name]
	if !ok {
		return Air, fmt.Errorf("неизвестный материал %q", name)
	}
	return v, nil
}

// MaterialNames возвращает отсортированный список известных материалов
func MaterialNames() []string {
	names := make([]string, 0, len(materialNames))
	for name := range materialNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
