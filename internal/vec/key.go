package vec

// ChunkKey упакованный ключ координат чанка.
// Каждая компонента занимает 21 бит (знаковое значение), что дает диапазон
// [-1048576, 1048575] чанков по каждой оси.
type ChunkKey uint64

const (
	keyBits = 21
	keyMask = 1<<keyBits - 1
	keyBias = 1 << (keyBits - 1)
)

// MinChunkCoord и MaxChunkCoord ограничивают координаты, которые можно упаковать
const (
	MinChunkCoord = -keyBias
	MaxChunkCoord = keyBias - 1
)

// PackKey упаковывает координаты чанка в ключ.
// Координаты вне [MinChunkCoord, MaxChunkCoord] дают коллизии, проверка на вызывающей стороне.
func PackKey(c Vec3) ChunkKey {
	x := uint64(c.X+keyBias) & keyMask
	y := uint64(c.Y+keyBias) & keyMask
	z := uint64(c.Z+keyBias) & keyMask
	return ChunkKey(x | y<<keyBits | z<<(2*keyBits))
}

// Unpack восстанавливает координаты чанка
func (k ChunkKey) Unpack() Vec3 {
	return Vec3{
		X: int(uint64(k)&keyMask) - keyBias,
		Y: int((uint64(k)>>keyBits)&keyMask) - keyBias,
		Z: int((uint64(k)>>(2*keyBits))&keyMask) - keyBias,
	}
}

// InKeyRange проверяет, что координаты чанка помещаются в ключ
func InKeyRange(c Vec3) bool {
	return c.X >= MinChunkCoord && c.X <= MaxChunkCoord &&
		c.Y >= MinChunkCoord && c.Y <= MaxChunkCoord &&
		c.Z >= MinChunkCoord && c.Z <= MaxChunkCoord
}

// CellLimit граница ячеек, представимых ключами чанков размера chunkSize:
// допустимы координаты из [-CellLimit, CellLimit)
func CellLimit(chunkSize int) int {
	return (MaxChunkCoord + 1) * chunkSize
}
