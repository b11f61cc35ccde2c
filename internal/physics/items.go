package physics

import (
	"github.com/annel0/voxel-engine/internal/collision"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Items реестр физических тел мира. Как и хранилище чанков, используется
// только из потока тика.
type Items struct {
	bodies map[uuid.UUID]*Body
	order  []uuid.UUID
}

// NewItems создаёт пустой реестр
func NewItems() *Items {
	return &Items{bodies: make(map[uuid.UUID]*Body)}
}

// Add регистрирует тело; повторное добавление игнорируется
func (it *Items) Add(b *Body) bool {
	if b == nil {
		return false
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if _, ok := it.bodies[b.ID]; ok {
		return false
	}
	it.bodies[b.ID] = b
	it.order = append(it.order, b.ID)
	return true
}

// Remove удаляет тело по ID
func (it *Items) Remove(id uuid.UUID) (*Body, bool) {
	b, ok := it.bodies[id]
	if !ok {
		return nil, false
	}
	delete(it.bodies, id)
	for i, o := range it.order {
		if o == id {
			it.order = append(it.order[:i], it.order[i+1:]...)
			break
		}
	}
	return b, true
}

// Get возвращает тело по ID
func (it *Items) Get(id uuid.UUID) (*Body, bool) {
	b, ok := it.bodies[id]
	return b, ok
}

// Len количество тел
func (it *Items) Len() int {
	return len(it.order)
}

// Each обходит тела в порядке добавления. Снимок позволяет удалять тела из fn.
func (it *Items) Each(fn func(*Body)) {
	snapshot := append([]uuid.UUID(nil), it.order...)
	for _, id := range snapshot {
		if b, ok := it.bodies[id]; ok {
			fn(b)
		}
	}
}

// InRange возвращает тела, центр которых не дальше radius от center
func (it *Items) InRange(center mgl64.Vec3, radius float64) []*Body {
	var out []*Body
	it.Each(func(b *Body) {
		if b.AABB().Center().Sub(center).Len() <= radius {
			out = append(out, b)
		}
	})
	return out
}

// Pickup удаляет и возвращает подбираемые тела, до центра которых от
// point не больше их CollisionRadius
func (it *Items) Pickup(point mgl64.Vec3) []*Body {
	var picked []*Body
	it.Each(func(b *Body) {
		if b.CollisionRadius <= 0 {
			return
		}
		if b.AABB().Center().Sub(point).Len() <= b.CollisionRadius {
			it.Remove(b.ID)
			picked = append(picked, b)
		}
	})
	return picked
}

// DespawnExpired удаляет тела с истёкшим временем жизни
func (it *Items) DespawnExpired() []*Body {
	var gone []*Body
	it.Each(func(b *Body) {
		if b.Expired() {
			it.Remove(b.ID)
			gone = append(gone, b)
		}
	})
	return gone
}

// BlockingCreation возвращает тела, мешающие поставить блок в box
func (it *Items) BlockingCreation(box collision.AABB) []*Body {
	var out []*Body
	it.Each(func(b *Body) {
		if b.BlocksCreation && b.AABB().Intersects(box) {
			out = append(out, b)
		}
	})
	return out
}
