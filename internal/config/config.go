package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig конфигурация не прошла проверку схемы или семантики
var ErrInvalidConfig = errors.New("invalid config")

//go:embed schema.json
var schemaJSON string

// Config корневая структура конфигурации движка
type Config struct {
	World   WorldConfig   `yaml:"world"`
	Physics PhysicsConfig `yaml:"physics"`
	Server  ServerConfig  `yaml:"server"`
}

// WorldConfig параметры мира и загрузки чанков
type WorldConfig struct {
	ChunkSize         int           `yaml:"chunk_size"`
	CubeSize          float64       `yaml:"cube_size"`
	ChunkDistance     int           `yaml:"chunk_distance"`
	RemoveDistance    int           `yaml:"remove_distance"` // 0 = chunk_distance + 1
	Bounds            *BoundsConfig `yaml:"bounds"`
	Generator         string        `yaml:"generator"`
	Seed              int64         `yaml:"seed"`
	AsyncGeneration   bool          `yaml:"async_generation"`
	AsyncFraction     float64       `yaml:"async_fraction"`
	ChunksPerSecond   float64       `yaml:"chunks_per_second"`
	GenerationWorkers int           `yaml:"generation_workers"`
	StartPosition     [3]float64    `yaml:"start_position"`
}

// BoundsConfig границы мира в ячейках, полуинтервал [low, high)
type BoundsConfig struct {
	Low  [3]int `yaml:"low"`
	High [3]int `yaml:"high"`
}

// PhysicsConfig параметры интегратора. Скорости в единицах мира в секунду.
type PhysicsConfig struct {
	Gravity           [3]float64 `yaml:"gravity"`
	Friction          float64    `yaml:"friction"`
	TerminalVelocity  [3]float64 `yaml:"terminal_velocity"`
	MissingChunkSolid bool       `yaml:"missing_chunk_solid"`
	TickRateHz        int        `yaml:"tick_rate_hz"`
	PlayerHeight      float64    `yaml:"player_height"`
}

// ServerConfig параметры процесса voxeld
type ServerConfig struct {
	MetricsPort int             `yaml:"metrics_port"`
	LogLevel    string          `yaml:"log_level"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// TelemetryConfig настройки OpenTelemetry
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		World: WorldConfig{
			ChunkSize:      32,
			CubeSize:       1,
			ChunkDistance:  2,
			RemoveDistance: 3,
			Generator:      "sphere",
			AsyncFraction:  0.1,
			StartPosition:  [3]float64{0, 30, 0},
		},
		Physics: PhysicsConfig{
			Gravity:          [3]float64{0, -20, 0},
			Friction:         0.3,
			TerminalVelocity: [3]float64{10, 50, 10},
			TickRateHz:       60,
			PlayerHeight:     1.62,
		},
		Server: ServerConfig{
			LogLevel: "INFO",
			Telemetry: TelemetryConfig{
				ServiceName: "voxeld",
			},
		},
	}
}

// TickInterval длительность фиксированного шага симуляции
func (p *PhysicsConfig) TickInterval() time.Duration {
	if p.TickRateHz <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(p.TickRateHz)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "VOXEL_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}
	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", используется ENV VOXEL_CONFIG; если и он пуст, возвращаются значения по умолчанию.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse проверяет документ по схеме, накладывает его на значения по
// умолчанию и выполняет семантическую проверку
func Parse(data []byte) (*Config, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	cfg := Default()
	explicitRemove := false
	var explicit struct {
		World struct {
			RemoveDistance *int `yaml:"remove_distance"`
		} `yaml:"world"`
	}
	if err := yaml.Unmarshal(data, &explicit); err == nil && explicit.World.RemoveDistance != nil {
		explicitRemove = true
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !explicitRemove || cfg.World.RemoveDistance == 0 {
		cfg.World.RemoveDistance = cfg.World.ChunkDistance + 1
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateSchema проверяет YAML документ по встроенной JSON-схеме
func validateSchema(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if doc == nil {
		return nil
	}

	// YAML -> JSON, чтобы схема видела только JSON-типы
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	var jsonDoc interface{}
	if err := json.Unmarshal(raw, &jsonDoc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	schema, err := compileSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(jsonDoc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.schema.json", strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}
	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}
	return schema, nil
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	w := c.World
	switch {
	case w.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk_size %d", ErrInvalidConfig, w.ChunkSize)
	case !(w.CubeSize > 0) || math.IsInf(w.CubeSize, 0):
		return fmt.Errorf("%w: cube_size %v", ErrInvalidConfig, w.CubeSize)
	case w.ChunkDistance < 0:
		return fmt.Errorf("%w: chunk_distance %d", ErrInvalidConfig, w.ChunkDistance)
	case w.RemoveDistance <= w.ChunkDistance:
		return fmt.Errorf("%w: remove_distance %d должна быть больше chunk_distance %d",
			ErrInvalidConfig, w.RemoveDistance, w.ChunkDistance)
	case w.AsyncGeneration && (w.AsyncFraction <= 0 || w.AsyncFraction > 1):
		return fmt.Errorf("%w: async_fraction %v вне (0, 1]", ErrInvalidConfig, w.AsyncFraction)
	case w.ChunksPerSecond < 0:
		return fmt.Errorf("%w: chunks_per_second %v", ErrInvalidConfig, w.ChunksPerSecond)
	}
	if b := w.Bounds; b != nil {
		for i := 0; i < 3; i++ {
			if b.High[i] <= b.Low[i] {
				return fmt.Errorf("%w: пустые границы мира %v..%v", ErrInvalidConfig, b.Low, b.High)
			}
		}
	}

	p := c.Physics
	if p.TickRateHz <= 0 {
		return fmt.Errorf("%w: tick_rate_hz %d", ErrInvalidConfig, p.TickRateHz)
	}
	if p.Friction < 0 || p.Friction > 1 {
		return fmt.Errorf("%w: friction %v", ErrInvalidConfig, p.Friction)
	}
	if p.PlayerHeight <= 0 {
		return fmt.Errorf("%w: player_height %v", ErrInvalidConfig, p.PlayerHeight)
	}
	for i := 0; i < 3; i++ {
		if math.IsNaN(p.Gravity[i]) || math.IsInf(p.Gravity[i], 0) || p.TerminalVelocity[i] < 0 {
			return fmt.Errorf("%w: gravity %v terminal_velocity %v", ErrInvalidConfig, p.Gravity, p.TerminalVelocity)
		}
	}
	return nil
}
