package world

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/voxel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("github.com/annel0/voxel-engine/internal/world")

// Listener получает уведомления о жизненном цикле чанков.
// Все методы вызываются из потока тика.
type Listener interface {
	ChunkReady(c *Chunk)   // Чанк сгенерирован, сшит мешем и опубликован
	ChunkUpdated(c *Chunk) // Меш перестроен после изменения вокселей
	ChunkRemoved(c *Chunk) // Чанк выгружен
}

// ListenerFuncs адаптер Listener из отдельных функций; nil поля игнорируются
type ListenerFuncs struct {
	Ready   func(*Chunk)
	Updated func(*Chunk)
	Removed func(*Chunk)
}

func (l ListenerFuncs) ChunkReady(c *Chunk) {
	if l.Ready != nil {
		l.Ready(c)
	}
}

func (l ListenerFuncs) ChunkUpdated(c *Chunk) {
	if l.Updated != nil {
		l.Updated(c)
	}
}

func (l ListenerFuncs) ChunkRemoved(c *Chunk) {
	if l.Removed != nil {
		l.Removed(c)
	}
}

// ManagerConfig параметры загрузки и выгрузки чанков
type ManagerConfig struct {
	ChunkDistance  int // Радиус загрузки в чанках (метрика Чебышёва)
	RemoveDistance int // Радиус выгрузки, строго больше ChunkDistance

	Async           bool    // Обрабатывать за тик только долю очереди
	AsyncFraction   float64 // Доля очереди за тик, (0, 1]
	ChunksPerSecond float64 // Ограничение скорости генерации в async режиме, 0 без ограничения
	Workers         int     // Параллельные генераторы, 0 = GOMAXPROCS
}

// DefaultManagerConfig значения по умолчанию
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ChunkDistance:  2,
		RemoveDistance: 3,
		AsyncFraction:  0.1,
	}
}

// Validate проверяет согласованность параметров
func (c ManagerConfig) Validate() error {
	if c.ChunkDistance < 0 {
		return fmt.Errorf("chunk distance %d < 0", c.ChunkDistance)
	}
	if c.RemoveDistance <= c.ChunkDistance {
		return fmt.Errorf("remove distance %d должна быть больше chunk distance %d", c.RemoveDistance, c.ChunkDistance)
	}
	if c.Async && (c.AsyncFraction <= 0 || c.AsyncFraction > 1) {
		return fmt.Errorf("async fraction %v вне (0, 1]", c.AsyncFraction)
	}
	if c.ChunksPerSecond < 0 {
		return fmt.Errorf("chunks per second %v < 0", c.ChunksPerSecond)
	}
	return nil
}

// Stats накопительные счетчики менеджера
type Stats struct {
	Generated    uint64
	Evicted      uint64
	Remeshed     uint64
	Failures     uint64
	DroppedStale uint64
}

// Manager управляет жизненным циклом чанков вокруг наблюдателя:
// запрашивает недостающие, генерирует, публикует и выгружает дальние.
type Manager struct {
	store     *Store
	gen       voxel.Generator
	cfg       ManagerConfig
	queue     *requestQueue
	limiter   *rate.Limiter
	listeners []Listener
	offsets   []vec.Vec3
	logger    *logging.Logger

	observer    vec.Vec3
	hasObserver bool
	stats       Stats
}

// NewManager создаёт менеджер чанков
func NewManager(store *Store, gen voxel.Generator, cfg ManagerConfig, logger *logging.Logger) (*Manager, error) {
	if store == nil || gen == nil {
		return nil, errors.New("store и generator обязательны")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = logging.Default()
	}

	m := &Manager{
		store:   store,
		gen:     gen,
		cfg:     cfg,
		queue:   newRequestQueue(),
		offsets: loadOffsets(cfg.ChunkDistance),
		logger:  logger,
	}
	if cfg.Async && cfg.ChunksPerSecond > 0 {
		burst := int(math.Ceil(cfg.ChunksPerSecond))
		m.limiter = rate.NewLimiter(rate.Limit(cfg.ChunksPerSecond), burst)
	}
	return m, nil
}

// loadOffsets смещения куба радиуса d, ближние первыми
func loadOffsets(d int) []vec.Vec3 {
	offsets := make([]vec.Vec3, 0, (2*d+1)*(2*d+1)*(2*d+1))
	for x := -d; x <= d; x++ {
		for y := -d; y <= d; y++ {
			for z := -d; z <= d; z++ {
				offsets = append(offsets, vec.Vec3{X: x, Y: y, Z: z})
			}
		}
	}
	origin := vec.Vec3{}
	sort.SliceStable(offsets, func(i, j int) bool {
		return offsets[i].DistanceTo(origin) < offsets[j].DistanceTo(origin)
	})
	return offsets
}

// Store возвращает хранилище чанков
func (m *Manager) Store() *Store {
	return m.store
}

// Config возвращает параметры менеджера
func (m *Manager) Config() ManagerConfig {
	return m.cfg
}

// AddListener подписывает слушателя
func (m *Manager) AddListener(l Listener) {
	m.listeners = append(m.listeners, l)
}

// Observer возвращает чанк наблюдателя и признак, что он задан
func (m *Manager) Observer() (vec.Vec3, bool) {
	return m.observer, m.hasObserver
}

// Pending число запросов в очереди
func (m *Manager) Pending() int {
	return m.queue.len()
}

// IsPending сообщает, что чанк ожидает генерации
func (m *Manager) IsPending(coord vec.Vec3) bool {
	return m.queue.contains(vec.PackKey(coord))
}

// Stats возвращает копию счетчиков
func (m *Manager) Stats() Stats {
	return m.stats
}

// Request ставит чанк в очередь генерации, если он не загружен
func (m *Manager) Request(coord vec.Vec3) bool {
	if !vec.InKeyRange(coord) || !m.store.bounds.overlapsChunk(coord, m.store.size) {
		return false
	}
	if _, ok := m.store.Get(coord); ok {
		return false
	}
	return m.queue.push(coord)
}

// Update пересчитывает область вокруг чанка наблюдателя: выгружает чанки
// дальше RemoveDistance и запрашивает недостающие в пределах ChunkDistance.
func (m *Manager) Update(observer vec.Vec3) (requested, evicted int) {
	m.observer = observer
	m.hasObserver = true

	for _, key := range m.store.Keys() {
		coord := key.Unpack()
		if coord.ChebyshevDistance(observer) <= m.cfg.RemoveDistance {
			continue
		}
		c, ok := m.store.Delete(coord)
		if !ok {
			continue
		}
		evicted++
		m.stats.Evicted++
		logging.LogChunkEvicted(m.logger, coord.X, coord.Y, coord.Z)
		for _, l := range m.listeners {
			l.ChunkRemoved(c)
		}
	}

	dropped := m.queue.removeIf(func(r Request) bool {
		return r.Coord.ChebyshevDistance(observer) > m.cfg.RemoveDistance
	})
	m.stats.DroppedStale += uint64(dropped)

	for _, off := range m.offsets {
		if m.Request(observer.Add(off)) {
			requested++
		}
	}
	return requested, evicted
}

type genResult struct {
	chunk *Chunk
	err   error
	done  bool
}

// LoadPending генерирует чанки из очереди. В синхронном режиме обрабатывается
// вся очередь, в асинхронном доля AsyncFraction (не меньше одного запроса),
// дополнительно ограниченная лимитером. Генерация идёт параллельно в
// собственные буферы, публикация последовательно в порядке очереди.
func (m *Manager) LoadPending(ctx context.Context) (int, error) {
	n := m.queue.len()
	if n == 0 {
		return 0, nil
	}

	batch := n
	if m.cfg.Async {
		batch = int(math.Ceil(m.cfg.AsyncFraction * float64(n)))
		if batch < 1 {
			batch = 1
		}
		if m.limiter != nil {
			allowed := 0
			for allowed < batch && m.limiter.Allow() {
				allowed++
			}
			batch = allowed
		}
		if batch == 0 {
			return 0, nil
		}
	}

	live := make([]Request, 0, batch)
	for _, r := range m.queue.popN(batch) {
		if m.isStale(r) {
			m.stats.DroppedStale++
			continue
		}
		live = append(live, r)
	}
	if len(live) == 0 {
		return 0, nil
	}

	ctx, span := tracer.Start(ctx, "world.LoadPending", trace.WithAttributes(
		attribute.Int("chunks.requested", len(live)),
		attribute.Int("chunks.queued", m.queue.len()),
	))
	defer span.End()

	results := make([]genResult, len(live))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for i, r := range live {
		i, r := i, r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = m.generate(r)
			return nil
		})
	}
	waitErr := g.Wait()

	published := 0
	for i, r := range live {
		res := results[i]
		switch {
		case !res.done:
			m.queue.push(r.Coord)
		case res.err != nil:
			m.stats.Failures++
			m.logger.Warn("⚠️ Генерация чанка %v не удалась: %v", r.Coord, res.err)
		case m.isStale(r):
			m.stats.DroppedStale++
		default:
			if err := m.store.Set(res.chunk); err != nil {
				m.stats.Failures++
				m.logger.Error("❌ Публикация чанка %v: %v", r.Coord, err)
				continue
			}
			published++
			m.stats.Generated++
			logging.LogChunkGenerated(m.logger, r.Coord.X, r.Coord.Y, r.Coord.Z, res.chunk.SolidCount())
			for _, l := range m.listeners {
				l.ChunkReady(res.chunk)
			}
		}
	}

	span.SetAttributes(attribute.Int("chunks.published", published))
	if waitErr != nil {
		span.RecordError(waitErr)
		span.SetStatus(codes.Error, waitErr.Error())
		return published, fmt.Errorf("генерация прервана: %w", waitErr)
	}
	return published, nil
}

// isStale сообщает, что запрос больше не нужен
func (m *Manager) isStale(r Request) bool {
	if _, ok := m.store.GetKey(r.Key); ok {
		return true
	}
	return m.hasObserver && r.Coord.ChebyshevDistance(m.observer) > m.cfg.ChunkDistance
}

// generate заполняет и сшивает мешем новый чанк. Паника генератора
// превращается в ошибку, чанк остаётся отсутствующим.
func (m *Manager) generate(r Request) (res genResult) {
	defer func() {
		if p := recover(); p != nil {
			res = genResult{err: fmt.Errorf("паника генератора: %v", p), done: true}
		}
	}()

	size := m.store.size
	low := r.Coord.Scale(size)
	high := low.Add(vec.Vec3{X: size, Y: size, Z: size})

	c := &Chunk{Coord: r.Coord, Size: size, State: StateGenerating}
	buf, err := voxel.Generate(m.gen, low, high)
	if err != nil {
		return genResult{err: err, done: true}
	}
	c.Voxels = buf
	c.State = StateReady

	if err := c.Remesh(); err != nil {
		return genResult{err: err, done: true}
	}
	return genResult{chunk: c, done: true}
}

// FlushDirty перестраивает меши всех изменённых за тик чанков, по одному
// разу на чанк, и уведомляет слушателей.
func (m *Manager) FlushDirty() int {
	return m.store.FlushDirty(func(c *Chunk) {
		if err := c.Remesh(); err != nil {
			m.logger.Error("❌ Перестроение меша %v: %v", c.Coord, err)
			return
		}
		m.stats.Remeshed++
		for _, l := range m.listeners {
			l.ChunkUpdated(c)
		}
	})
}
