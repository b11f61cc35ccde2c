package voxel

// Voxel значение ячейки сетки. 0 означает воздух, любое другое значение
// является идентификатором материала. Старший бит помечает материалы,
// которые не полностью непрозрачны (стекло, вода, листва).
type Voxel uint16

const (
	// Air пустая ячейка
	Air Voxel = 0

	// TransparentFlag помечает полупрозрачный материал
	TransparentFlag Voxel = 1 << 15

	materialMask = TransparentFlag - 1
)

// Material возвращает идентификатор материала без флагов
func (v Voxel) Material() uint16 {
	return uint16(v & materialMask)
}

// IsSolid сообщает, занята ли ячейка (для коллизий и лучей)
func (v Voxel) IsSolid() bool {
	return v != Air
}

// IsTransparent сообщает, пропускает ли материал свет
func (v Voxel) IsTransparent() bool {
	return v&TransparentFlag != 0
}

// IsOpaque сообщает, закрывает ли воксель соседнюю грань полностью
func (v Voxel) IsOpaque() bool {
	return v != Air && v&TransparentFlag == 0
}

// Transparent возвращает значение с выставленным флагом прозрачности
func Transparent(material uint16) Voxel {
	return Voxel(material)&materialMask | TransparentFlag
}
