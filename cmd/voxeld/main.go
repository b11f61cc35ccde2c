package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/engine"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/observability"
	"github.com/annel0/voxel-engine/internal/render"
	"github.com/annel0/voxel-engine/internal/voxel"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (по умолчанию $VOXEL_CONFIG)")
	ticks := flag.Int("ticks", 0, "число тиков до выхода; 0 = до сигнала")
	recordPath := flag.String("record", "", "файл для записи пакетов мешей")
	flag.Parse()

	if err := logging.InitDefaultLogger("voxeld"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	level, err := logging.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	logging.Default().SetLevel(level)
	logging.GetLoggerManager().SetLevel(level)

	logging.Info("🧊 Запуск voxeld: генератор=%s seed=%d чанк=%d радиус=%d/%d",
		cfg.World.Generator, cfg.World.Seed, cfg.World.ChunkSize,
		cfg.World.ChunkDistance, cfg.World.RemoveDistance)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === TELEMETRY ===
	if cfg.Server.Telemetry.Enabled {
		tc := cfg.Server.Telemetry
		shutdown, err := observability.InitTelemetry(ctx, observability.Options{
			ServiceName:    tc.ServiceName,
			ServiceVersion: version,
			Endpoint:       tc.Endpoint,
			SampleRatio:    tc.SampleRatio,
		})
		if err != nil {
			logging.Error("❌ Ошибка инициализации OpenTelemetry: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logging.Warn("⚠️ Остановка OpenTelemetry: %v", err)
				}
			}()
		}
	}

	// === METRICS ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		log.Fatalf("❌ Ошибка регистрации метрик: %v", err)
	}
	srv := metrics.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()), reg)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// === RENDER SINK ===
	var sink render.Sink = render.NopSink{}
	var recorder *render.Recorder
	if *recordPath != "" {
		f, err := os.Create(*recordPath)
		if err != nil {
			log.Fatalf("❌ Ошибка создания файла записи: %v", err)
		}
		defer f.Close()
		codec, err := render.NewCodec(zstd.SpeedDefault)
		if err != nil {
			log.Fatalf("❌ Ошибка создания кодека: %v", err)
		}
		defer codec.Close()
		recorder = render.NewRecorder(f, codec)
		sink = recorder
		logging.Info("💾 Пакеты мешей пишутся в %s", *recordPath)
	}

	// === ENGINE ===
	gen, err := voxel.Lookup(cfg.World.Generator, cfg.World.Seed)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	eng, err := engine.New(cfg, gen,
		engine.WithSink(sink),
		engine.WithMetrics(collector),
		engine.WithLogger(logging.GetEngineLogger()),
		engine.WithWorldLogger(logging.GetWorldLogger()),
		engine.WithPhysicsLogger(logging.GetPhysicsLogger()),
	)
	if err != nil {
		log.Fatalf("❌ Ошибка создания движка: %v", err)
	}

	player := eng.SpawnPlayer(mgl64.Vec3(cfg.World.StartPosition))
	logging.Info("🧍 Игрок %s в точке %v", player.ID, player.Position)

	start := time.Now()
	if err := eng.Preload(ctx); err != nil {
		logging.Error("❌ Начальная загрузка чанков: %v", err)
	}
	logging.Info("✅ Загружено %d чанков за %v", eng.Store().Len(), time.Since(start))

	if *ticks > 0 {
		step := cfg.Physics.TickInterval()
		for i := 0; i < *ticks && ctx.Err() == nil; i++ {
			if err := eng.Tick(ctx, step); err != nil {
				logging.Error("❌ Ошибка тика %d: %v", i, err)
			}
		}
	} else {
		logging.Info("▶️ Цикл симуляции %d Гц, Ctrl+C для остановки", cfg.Physics.TickRateHz)
		if err := eng.Run(ctx); err != nil {
			logging.Error("❌ Цикл симуляции: %v", err)
		}
	}

	stats := eng.Stats()
	logging.Info("📊 Тиков=%d чанков=%d сгенерировано=%d выгружено=%d ошибок=%d",
		stats.Tick, stats.ResidentChunks, stats.World.Generated, stats.World.Evicted, stats.World.Failures)
	if recorder != nil {
		rs := recorder.Stats()
		logging.Info("💾 Записано: загрузок=%d освобождений=%d байт=%d", rs.Uploads, rs.Releases, rs.Bytes)
	}
	logging.Info("👋 voxeld остановлен, игрок в %v (опора: %v)", player.Position, player.IsResting())
}
