package metrics

import (
	"net/http"
	"time"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voxel"

// Snapshot состояние движка на конец тика. Счетчики накопительные.
type Snapshot struct {
	ResidentChunks int
	PendingChunks  int
	DirtyChunks    int
	Bodies         int

	Generated    uint64
	Evicted      uint64
	Remeshed     uint64
	Failures     uint64
	DroppedStale uint64
}

// Collector Prometheus-метрики движка
type Collector struct {
	resident prometheus.Gauge
	pending  prometheus.Gauge
	dirty    prometheus.Gauge
	bodies   prometheus.Gauge

	generated    prometheus.Counter
	evicted      prometheus.Counter
	remeshed     prometheus.Counter
	failures     prometheus.Counter
	droppedStale prometheus.Counter

	tickDuration prometheus.Histogram

	// Для Counter храним прошлый снимок и прибавляем дельту
	prev Snapshot
}

// NewCollector создаёт метрики и регистрирует их в reg
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chunks_resident",
			Help:      "Количество загруженных чанков.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chunks_pending",
			Help:      "Запросы на генерацию в очереди.",
		}),
		dirty: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chunks_dirty",
			Help:      "Чанки, ожидающие перестроения меша.",
		}),
		bodies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bodies",
			Help:      "Количество физических тел.",
		}),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_generated_total",
			Help:      "Сгенерированные и опубликованные чанки.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_evicted_total",
			Help:      "Выгруженные чанки.",
		}),
		remeshed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_remeshed_total",
			Help:      "Перестроения меша после изменения вокселей.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_generation_failures_total",
			Help:      "Неудачные генерации чанков.",
		}),
		droppedStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_requests_dropped_total",
			Help:      "Запросы, отброшенные как устаревшие.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Длительность тика движка.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}

	for _, m := range []prometheus.Collector{
		c.resident, c.pending, c.dirty, c.bodies,
		c.generated, c.evicted, c.remeshed, c.failures, c.droppedStale,
		c.tickDuration,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Observe обновляет метрики по снимку состояния
func (c *Collector) Observe(s Snapshot) {
	c.resident.Set(float64(s.ResidentChunks))
	c.pending.Set(float64(s.PendingChunks))
	c.dirty.Set(float64(s.DirtyChunks))
	c.bodies.Set(float64(s.Bodies))

	addDelta(c.generated, s.Generated, c.prev.Generated)
	addDelta(c.evicted, s.Evicted, c.prev.Evicted)
	addDelta(c.remeshed, s.Remeshed, c.prev.Remeshed)
	addDelta(c.failures, s.Failures, c.prev.Failures)
	addDelta(c.droppedStale, s.DroppedStale, c.prev.DroppedStale)

	c.prev = s
}

// ObserveTick записывает длительность тика
func (c *Collector) ObserveTick(d time.Duration) {
	c.tickDuration.Observe(d.Seconds())
}

func addDelta(counter prometheus.Counter, cur, prev uint64) {
	if cur > prev {
		counter.Add(float64(cur - prev))
	}
}

// StartHTTP запускает HTTP-эндпоинт /metrics на addr (например, ":2112").
// Метод неблокирующий; возвращает сервер для последующей остановки.
func StartHTTP(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return srv
}
