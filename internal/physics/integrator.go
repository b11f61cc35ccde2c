package physics

import (
	"math"
	"time"

	"github.com/annel0/voxel-engine/internal/collision"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/go-gl/mathgl/mgl64"
)

// Значения по умолчанию: единицы мира в секунду
var (
	DefaultGravity          = mgl64.Vec3{0, -20, 0}
	DefaultTerminalVelocity = mgl64.Vec3{10, 50, 10}
)

// DefaultFriction множитель горизонтальной скорости при опоре на землю
const DefaultFriction = 0.3

// supportDepth глубина проверки опоры под покоящимся телом
const supportDepth = 1e-6

// Integrator двигает тела и обрезает их движение о воксели
type Integrator struct {
	Resolver         *collision.Resolver
	Gravity          mgl64.Vec3
	Friction         float64
	TerminalVelocity mgl64.Vec3
	Logger           *logging.Logger // nil = logging.Default()
}

// NewIntegrator создаёт интегратор со значениями по умолчанию
func NewIntegrator(resolver *collision.Resolver) *Integrator {
	return &Integrator{
		Resolver:         resolver,
		Gravity:          DefaultGravity,
		Friction:         DefaultFriction,
		TerminalVelocity: DefaultTerminalVelocity,
	}
}

// Step продвигает тело на dt: ускорение и гравитация, трение с прошлого
// шага, ограничение скорости, пробное смещение и обрезка о воксели.
// Контакт по оси обнуляет скорость и ускорение по ней, контакт снизу
// задаёт трение по горизонтали. Тело, стоявшее на опоре, не получает
// гравитацию, пока опора под ним есть.
func (in *Integrator) Step(dt time.Duration, b *Body) collision.Result {
	secs := dt.Seconds()
	if secs <= 0 {
		return collision.Result{Box: b.AABB()}
	}

	wasResting := b.IsResting()
	acc := b.Acceleration
	if b.Gravity && !wasResting {
		acc = acc.Add(in.Gravity)
	}
	b.Velocity = b.Velocity.Add(acc.Mul(secs))

	terminal := b.TerminalVelocity
	if terminal == (mgl64.Vec3{}) {
		terminal = in.TerminalVelocity
	}
	for i := 0; i < 3; i++ {
		b.Velocity[i] *= b.Friction[i]
		if terminal[i] > 0 && math.Abs(b.Velocity[i]) > terminal[i] {
			b.Velocity[i] = math.Copysign(terminal[i], b.Velocity[i])
		}
	}

	desired := b.Velocity.Mul(secs)
	b.Friction = mgl64.Vec3{1, 1, 1}
	b.Resting = [3]int{}
	b.Age += dt

	if !b.Collide || in.Resolver == nil {
		b.Position = b.Position.Add(desired)
		return collision.Result{Velocity: desired, Box: b.AABB()}
	}

	contact := func(h collision.Hit) bool {
		b.Acceleration[h.Axis] = 0
		b.Resting[h.Axis] = h.Dir
		f := 1.0
		if h.Axis == 1 {
			f = in.Friction
		}
		b.Friction[(h.Axis+1)%3] = f
		b.Friction[(h.Axis+2)%3] = f
		return true
	}
	res := in.Resolver.Resolve(b.AABB(), desired, contact)

	b.Position = b.Position.Add(res.Velocity)
	for i := 0; i < 3; i++ {
		if res.Contacts[i] != 0 {
			b.Velocity[i] = 0
		}
	}

	// Без вертикального движения опору проверяем отдельно, не двигая тело
	if wasResting && b.Gravity && desired[1] == 0 {
		in.Resolver.Resolve(res.Box, mgl64.Vec3{0, -supportDepth, 0}, contact)
	}

	switch {
	case !wasResting && b.IsResting():
		in.logger().Debug("тело %s опустилось на %.3f", b.ID, res.Box.Base[1])
	case wasResting && !b.IsResting():
		in.logger().Debug("тело %s потеряло опору на %.3f", b.ID, res.Box.Base[1])
	}
	return res
}

func (in *Integrator) logger() *logging.Logger {
	if in.Logger != nil {
		return in.Logger
	}
	return logging.Default()
}

// StepAll продвигает все тела реестра в порядке добавления
func (in *Integrator) StepAll(dt time.Duration, items *Items) {
	items.Each(func(b *Body) {
		in.Step(dt, b)
	})
}
