package physics

import (
	"time"

	"github.com/annel0/voxel-engine/internal/collision"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Kind тип тела
type Kind uint8

const (
	KindGeneric Kind = iota
	KindPlayer
	KindItem   // Подбираемый предмет
	KindDebris // Обломки, исчезают по истечении Lifetime
)

// DefaultPlayerHeight высота игрока в мировых единицах
const DefaultPlayerHeight = 1.62

// Body физическое тело с выровненным по осям параллелепипедом.
// Параллелепипед равен Position+Offset с размерами Extent.
type Body struct {
	ID   uuid.UUID
	Kind Kind

	Position     mgl64.Vec3
	Velocity     mgl64.Vec3 // Единиц в секунду
	Acceleration mgl64.Vec3 // Собственное ускорение (намерение управления)
	Offset       mgl64.Vec3 // Смещение минимального угла от Position
	Extent       mgl64.Vec3

	Friction mgl64.Vec3 // Множители скорости на следующий шаг, выставляются контактами
	Resting  [3]int     // Направление контакта по каждой оси на последнем шаге

	Gravity          bool
	Collide          bool
	TerminalVelocity mgl64.Vec3 // Нулевой вектор: использовать значение интегратора

	BlocksCreation  bool    // Не даёт ставить блоки внутрь себя
	Value           int     // Ценность предмета при подборе
	CollisionRadius float64 // Радиус подбора; 0 отключает подбор

	Lifetime time.Duration // 0 = бессрочно
	Age      time.Duration
}

// NewBody создаёт тело, у которого Position лежит в центре нижней грани
func NewBody(kind Kind, position, extent mgl64.Vec3) *Body {
	return &Body{
		ID:       uuid.New(),
		Kind:     kind,
		Position: position,
		Offset:   mgl64.Vec3{-extent[0] / 2, 0, -extent[2] / 2},
		Extent:   extent,
		Friction: mgl64.Vec3{1, 1, 1},
		Gravity:  true,
		Collide:  true,
	}
}

// NewPlayer создаёт игрока; Position соответствует уровню глаз
func NewPlayer(eye mgl64.Vec3, height float64) *Body {
	b := NewBody(KindPlayer, eye, mgl64.Vec3{0.5, height, 0.5})
	b.Offset = mgl64.Vec3{-0.25, -height, -0.25}
	b.BlocksCreation = true
	return b
}

// PlayerAABB параллелепипед игрока по позиции глаз
func PlayerAABB(eye mgl64.Vec3, height float64) collision.AABB {
	return collision.NewAABB(eye.Sub(mgl64.Vec3{0.25, height, 0.25}), mgl64.Vec3{0.5, height, 0.5})
}

// AABB текущий параллелепипед тела
func (b *Body) AABB() collision.AABB {
	return collision.NewAABB(b.Position.Add(b.Offset), b.Extent)
}

// IsResting сообщает, что тело стоит на опоре
func (b *Body) IsResting() bool {
	return b.Resting[1] < 0
}

// Expired сообщает, что время жизни тела истекло
func (b *Body) Expired() bool {
	return b.Lifetime > 0 && b.Age >= b.Lifetime
}
