package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/annel0/voxel-engine/internal/collision"
	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/physics"
	"github.com/annel0/voxel-engine/internal/raycast"
	"github.com/annel0/voxel-engine/internal/render"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/voxel"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/annel0/voxel-engine/internal/engine")

// ErrBlocked блок нельзя поставить: ячейку занимает тело
var ErrBlocked = errors.New("block creation blocked by body")

// maxCatchUp ограничивает число тиков, догоняемых Run за один кадр
const maxCatchUp = 5

// Option настраивает Engine
type Option func(*Engine)

// WithSink задаёт приёмник мешей
func WithSink(s render.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithMetrics задаёт Prometheus коллектор
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithLogger задаёт логгер движка
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithWorldLogger задаёт логгер менеджера чанков
func WithWorldLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.worldLogger = l }
}

// WithPhysicsLogger задаёт логгер интегратора тел
func WithPhysicsLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.physicsLogger = l }
}

// Stats состояние движка
type Stats struct {
	Tick           uint64
	ResidentChunks int
	PendingChunks  int
	DirtyChunks    int
	Bodies         int
	Paused         bool
	World          world.Stats
}

// Engine связывает хранилище чанков, менеджер загрузки, физику и
// рендер-приёмник. Все методы вызываются из одного потока тика.
type Engine struct {
	cfg           *config.Config
	store         *world.Store
	manager       *world.Manager
	resolver      *collision.Resolver
	integrator    *physics.Integrator
	caster        raycast.Caster
	items         *physics.Items
	sink          render.Sink
	metrics       *metrics.Collector
	logger        *logging.Logger
	worldLogger   *logging.Logger
	physicsLogger *logging.Logger

	observer mgl64.Vec3
	center   vec.Vec3 // Последний представимый чанк наблюдателя
	follow   *physics.Body
	onPickup []func(*physics.Body)
	onExpire []func(*physics.Body)

	paused      bool
	tick        uint64
	accumulator time.Duration
}

// New собирает движок по конфигурации и генератору
func New(cfg *config.Config, gen voxel.Generator, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, sink: render.NopSink{}}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.Default()
	}
	if e.worldLogger == nil {
		e.worldLogger = e.logger
	}
	if e.physicsLogger == nil {
		e.physicsLogger = e.logger
	}

	store, err := world.NewStore(cfg.World.ChunkSize, cfg.World.CubeSize)
	if err != nil {
		return nil, err
	}
	if b := cfg.World.Bounds; b != nil {
		store.SetBounds(world.Bounds{Low: vec.FromArray(b.Low), High: vec.FromArray(b.High)})
	}

	manager, err := world.NewManager(store, gen, ManagerConfig(cfg), e.worldLogger)
	if err != nil {
		return nil, err
	}

	resolver := collision.NewResolver(store.VoxelAtCell, cfg.World.CubeSize)
	resolver.MissingSolid = cfg.Physics.MissingChunkSolid
	resolver.CellLimit = vec.CellLimit(cfg.World.ChunkSize)

	integrator := physics.NewIntegrator(resolver)
	integrator.Gravity = mgl64.Vec3(cfg.Physics.Gravity)
	integrator.Friction = cfg.Physics.Friction
	integrator.TerminalVelocity = mgl64.Vec3(cfg.Physics.TerminalVelocity)
	integrator.Logger = e.physicsLogger

	e.store = store
	e.manager = manager
	e.resolver = resolver
	e.integrator = integrator
	e.caster = raycast.Caster{
		Lookup:    store.VoxelAtCell,
		CubeSize:  cfg.World.CubeSize,
		CellLimit: resolver.CellLimit,
	}
	e.items = physics.NewItems()
	e.observer = mgl64.Vec3(cfg.World.StartPosition)
	if cell, err := store.CellOf(e.observer); err == nil {
		e.center = store.ChunkCoordOf(cell)
	}

	manager.AddListener(world.ListenerFuncs{
		Ready:   e.upload,
		Updated: e.upload,
		Removed: e.release,
	})
	return e, nil
}

// ManagerConfig переводит секцию world в параметры менеджера чанков
func ManagerConfig(cfg *config.Config) world.ManagerConfig {
	return world.ManagerConfig{
		ChunkDistance:   cfg.World.ChunkDistance,
		RemoveDistance:  cfg.World.RemoveDistance,
		Async:           cfg.World.AsyncGeneration,
		AsyncFraction:   cfg.World.AsyncFraction,
		ChunksPerSecond: cfg.World.ChunksPerSecond,
		Workers:         cfg.World.GenerationWorkers,
	}
}

func (e *Engine) upload(c *world.Chunk) {
	if err := e.sink.Upload(c.Key(), c.Coord, c.Mesh); err != nil {
		e.logger.Error("❌ Выгрузка меша чанка %v: %v", c.Coord, err)
	}
}

func (e *Engine) release(c *world.Chunk) {
	if err := e.sink.Release(c.Key()); err != nil {
		e.logger.Error("❌ Освобождение меша чанка %v: %v", c.Coord, err)
	}
}

// Store хранилище чанков
func (e *Engine) Store() *world.Store { return e.store }

// Manager менеджер загрузки чанков
func (e *Engine) Manager() *world.Manager { return e.manager }

// Items реестр тел
func (e *Engine) Items() *physics.Items { return e.items }

// Integrator физический интегратор
func (e *Engine) Integrator() *physics.Integrator { return e.integrator }

// Config конфигурация движка
func (e *Engine) Config() *config.Config { return e.cfg }

// GetVoxel читает воксель. Для незагруженного чанка возвращает world.ErrNoChunk.
func (e *Engine) GetVoxel(pos mgl64.Vec3) (voxel.Voxel, error) {
	return e.store.VoxelAt(pos)
}

// SetVoxel записывает воксель и возвращает прежнее значение. Меш чанка
// перестраивается один раз в конце тика.
func (e *Engine) SetVoxel(pos mgl64.Vec3, v voxel.Voxel) (voxel.Voxel, error) {
	return e.store.SetVoxelAt(pos, v)
}

// ChunkAt возвращает чанк, содержащий позицию. Отложенные изменения
// вокселей сначала сшиваются мешем, так что меш всегда актуален.
func (e *Engine) ChunkAt(pos mgl64.Vec3) (*world.Chunk, error) {
	e.Flush()
	return e.store.ChunkAt(pos)
}

// Flush перестраивает меши изменённых чанков
func (e *Engine) Flush() int {
	if e.store.Dirty() == 0 {
		return 0
	}
	return e.manager.FlushDirty()
}

// Blocks копирует воксели области [low, high)
func (e *Engine) Blocks(low, high vec.Vec3) ([]voxel.Voxel, error) {
	return e.store.Blocks(low, high)
}

// OnChunkReady подписывает fn на появление чанков
func (e *Engine) OnChunkReady(fn func(*world.Chunk)) {
	e.manager.AddListener(world.ListenerFuncs{Ready: fn})
}

// OnChunkUpdated подписывает fn на перестроение меша
func (e *Engine) OnChunkUpdated(fn func(*world.Chunk)) {
	e.manager.AddListener(world.ListenerFuncs{Updated: fn})
}

// OnChunkRemoved подписывает fn на выгрузку чанков
func (e *Engine) OnChunkRemoved(fn func(*world.Chunk)) {
	e.manager.AddListener(world.ListenerFuncs{Removed: fn})
}

// OnPickup подписывает fn на подбор предметов наблюдаемым телом
func (e *Engine) OnPickup(fn func(*physics.Body)) {
	e.onPickup = append(e.onPickup, fn)
}

// OnExpire подписывает fn на исчезновение тел по времени жизни
func (e *Engine) OnExpire(fn func(*physics.Body)) {
	e.onExpire = append(e.onExpire, fn)
}

// ResolveCollision обрезает смещение box о воксели мира. onHit может быть nil.
// Весь заметаемый объём должен лежать в границах мира.
func (e *Engine) ResolveCollision(box collision.AABB, displacement mgl64.Vec3, onHit collision.HitFunc) (collision.Result, error) {
	if !box.IsFinite() || !finite(displacement) {
		return collision.Result{}, fmt.Errorf("%w: box %v..%v displacement %v",
			world.ErrInvalidCoordinate, box.Base, box.Max, displacement)
	}
	swept := box.Expand(displacement)
	last := swept.Max.Sub(mgl64.Vec3{collision.Epsilon, collision.Epsilon, collision.Epsilon})
	for _, corner := range [2]mgl64.Vec3{swept.Base, last} {
		if _, err := e.store.CellOf(corner); err != nil {
			return collision.Result{}, fmt.Errorf("смещение %v: %w", displacement, err)
		}
	}
	return e.resolver.Resolve(box, displacement, onHit), nil
}

// CanCreateBlock сообщает, можно ли поставить блок в ячейку с позицией pos
func (e *Engine) CanCreateBlock(pos mgl64.Vec3) (bool, error) {
	cell, err := e.store.CellOf(pos)
	if err != nil {
		return false, err
	}
	box := collision.CellAABB(cell, e.cfg.World.CubeSize)
	return len(e.items.BlockingCreation(box)) == 0, nil
}

// CreateBlock ставит блок, если ячейку не занимает тело с BlocksCreation
func (e *Engine) CreateBlock(pos mgl64.Vec3, v voxel.Voxel) error {
	ok, err := e.CanCreateBlock(pos)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %v", ErrBlocked, pos)
	}
	_, err = e.store.SetVoxelAt(pos, v)
	return err
}

// Raycast пускает луч по вокселям мира
func (e *Engine) Raycast(origin, dir mgl64.Vec3, maxDist float64) (raycast.Hit, bool, error) {
	return e.caster.Cast(origin, dir, maxDist)
}

// AddItem регистрирует тело в симуляции
func (e *Engine) AddItem(b *physics.Body) bool {
	return e.items.Add(b)
}

// RemoveItem убирает тело из симуляции
func (e *Engine) RemoveItem(id uuid.UUID) (*physics.Body, bool) {
	if e.follow != nil && e.follow.ID == id {
		e.follow = nil
	}
	return e.items.Remove(id)
}

// MakePhysical создаёт тело с нижним центром в pos и регистрирует его
func (e *Engine) MakePhysical(pos, extent mgl64.Vec3, blocksCreation bool) *physics.Body {
	b := physics.NewBody(physics.KindGeneric, pos, extent)
	b.BlocksCreation = blocksCreation
	e.items.Add(b)
	return b
}

// SpawnPlayer создаёт игрока с глазами в eye и делает его наблюдателем
func (e *Engine) SpawnPlayer(eye mgl64.Vec3) *physics.Body {
	b := physics.NewPlayer(eye, e.cfg.Physics.PlayerHeight)
	e.items.Add(b)
	e.Follow(b)
	return b
}

// SpawnItem бросает подбираемый предмет
func (e *Engine) SpawnItem(pos mgl64.Vec3, value int, radius float64, lifetime time.Duration) *physics.Body {
	b := physics.NewBody(physics.KindItem, pos, mgl64.Vec3{0.25, 0.25, 0.25})
	b.Value = value
	b.CollisionRadius = radius
	b.Lifetime = lifetime
	e.items.Add(b)
	return b
}

// SetObserver задаёт точку, вокруг которой загружаются чанки, и
// отключает слежение за телом
func (e *Engine) SetObserver(pos mgl64.Vec3) error {
	cell, err := e.store.CellOf(pos)
	if err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	e.follow = nil
	e.observer = pos
	e.center = e.store.ChunkCoordOf(cell)
	return nil
}

// Follow делает тело наблюдателем: чанки загружаются вокруг него,
// предметы подбираются им
func (e *Engine) Follow(b *physics.Body) {
	e.follow = b
	if b != nil {
		e.observer = b.Position
	}
}

// Observer текущая позиция наблюдателя
func (e *Engine) Observer() mgl64.Vec3 {
	if e.follow != nil {
		return e.follow.Position
	}
	return e.observer
}

// ObserverChunk координаты чанка наблюдателя. Если отслеживаемое тело
// покинуло мир, остаётся последний чанк, где оно было.
func (e *Engine) ObserverChunk() vec.Vec3 {
	if cell, err := e.store.CellOf(e.Observer()); err == nil {
		e.center = e.store.ChunkCoordOf(cell)
	}
	return e.center
}

// Preload синхронно загружает все чанки в радиусе наблюдателя
func (e *Engine) Preload(ctx context.Context) error {
	e.manager.Update(e.ObserverChunk())
	for e.manager.Pending() > 0 {
		before := e.manager.Pending()
		n, err := e.manager.LoadPending(ctx)
		if err != nil {
			return err
		}
		if n == 0 && e.manager.Pending() >= before {
			// Асинхронный лимитер или постоянные ошибки генерации
			break
		}
	}
	return nil
}

// Pause останавливает симуляцию
func (e *Engine) Pause() {
	e.paused = true
	e.accumulator = 0
}

// Resume продолжает симуляцию
func (e *Engine) Resume() {
	e.paused = false
}

// Paused сообщает, остановлена ли симуляция
func (e *Engine) Paused() bool {
	return e.paused
}

// Tick выполняет один шаг: физика тел, подбор и исчезновение предметов,
// загрузка ожидающих чанков, перестроение изменённых мешей, пересчёт
// области вокруг наблюдателя
func (e *Engine) Tick(ctx context.Context, dt time.Duration) error {
	if e.paused {
		return nil
	}
	start := time.Now()
	e.tick++

	ctx, span := tracer.Start(ctx, "engine.Tick", trace.WithAttributes(
		attribute.Int64("tick", int64(e.tick)),
		attribute.Int("bodies", e.items.Len()),
	))
	defer span.End()

	e.integrator.StepAll(dt, e.items)
	e.collectItems()

	_, loadErr := e.manager.LoadPending(ctx)
	if loadErr != nil {
		span.RecordError(loadErr)
		span.SetStatus(codes.Error, loadErr.Error())
	}
	e.Flush()
	requested, evicted := e.manager.Update(e.ObserverChunk())
	span.SetAttributes(
		attribute.Int("chunks.requested", requested),
		attribute.Int("chunks.evicted", evicted),
	)

	if e.metrics != nil {
		e.metrics.Observe(e.snapshot())
		e.metrics.ObserveTick(time.Since(start))
	}
	return loadErr
}

// collectItems подбирает предметы наблюдаемым телом и убирает истёкшие
func (e *Engine) collectItems() {
	if e.follow != nil {
		for _, b := range e.items.Pickup(e.follow.AABB().Center()) {
			if b == e.follow {
				continue
			}
			e.logger.Debug("Подобран предмет %s (ценность %d)", b.ID, b.Value)
			for _, fn := range e.onPickup {
				fn(b)
			}
		}
	}
	for _, b := range e.items.DespawnExpired() {
		if b == e.follow {
			e.follow = nil
		}
		e.logger.Debug("Тело %s исчезло после %v", b.ID, b.Age)
		for _, fn := range e.onExpire {
			fn(b)
		}
	}
}

// Advance накапливает прошедшее время и выполняет нужное число
// фиксированных тиков, не больше maxCatchUp за вызов
func (e *Engine) Advance(ctx context.Context, elapsed time.Duration) (int, error) {
	if e.paused {
		return 0, nil
	}
	step := e.cfg.Physics.TickInterval()
	e.accumulator += elapsed
	ticks := 0
	for e.accumulator >= step {
		if ticks == maxCatchUp {
			e.logger.Warn("⚠️ Симуляция отстаёт, пропущено %v", e.accumulator)
			e.accumulator = 0
			break
		}
		if err := e.Tick(ctx, step); err != nil {
			return ticks, err
		}
		e.accumulator -= step
		ticks++
	}
	return ticks, nil
}

// Run крутит цикл с фиксированным шагом до отмены ctx
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Physics.TickInterval())
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if _, err := e.Advance(ctx, elapsed); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				e.logger.Error("❌ Ошибка тика %d: %v", e.tick, err)
			}
		}
	}
}

// Stats возвращает текущее состояние движка
func (e *Engine) Stats() Stats {
	return Stats{
		Tick:           e.tick,
		ResidentChunks: e.store.Len(),
		PendingChunks:  e.manager.Pending(),
		DirtyChunks:    e.store.Dirty(),
		Bodies:         e.items.Len(),
		Paused:         e.paused,
		World:          e.manager.Stats(),
	}
}

func (e *Engine) snapshot() metrics.Snapshot {
	s := e.Stats()
	return metrics.Snapshot{
		ResidentChunks: s.ResidentChunks,
		PendingChunks:  s.PendingChunks,
		DirtyChunks:    s.DirtyChunks,
		Bodies:         s.Bodies,
		Generated:      s.World.Generated,
		Evicted:        s.World.Evicted,
		Remeshed:       s.World.Remeshed,
		Failures:       s.World.Failures,
		DroppedStale:   s.World.DroppedStale,
	}
}

func finite(v mgl64.Vec3) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
