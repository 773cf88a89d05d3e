package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервиса миниатюр.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Region    RegionConfig    `yaml:"region"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	RESTPort        int    `yaml:"rest_port"`
	MetricsPort     int    `yaml:"metrics_port"`
	DataPath        string `yaml:"data_path"`
	ShutdownSeconds int    `yaml:"shutdown_timeout_seconds"`
	Console         bool   `yaml:"console"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" или "console"
}

// RegionConfig - интеграция с защитой регионов.
// Integration читается один раз при старте.
type RegionConfig struct {
	Integration   bool   `yaml:"integration"`
	Backend       string `yaml:"backend"` // "memory" или "redis"
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто - in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type StorageConfig struct {
	Compression         bool `yaml:"compression"`
	AutoSaveIntervalSec int  `yaml:"autosave_interval_seconds"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // base64, не меньше 32 байт; пусто - API без авторизации
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default возвращает конфигурацию, с которой сервис стартует без файла.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			DataPath:        "data",
			ShutdownSeconds: 30,
			Console:         true,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Region:  RegionConfig{Integration: false, Backend: "memory"},
		EventBus: EventBusConfig{
			Stream:    "MINIATURES",
			Retention: 24,
			Buffer:    1024,
		},
		Storage:   StorageConfig{Compression: true, AutoSaveIntervalSec: 300},
		Telemetry: TelemetryConfig{ServiceName: "miniworld"},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "MMWU_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "MMWU_METRICS_PORT", 2112)
}

// ShutdownTimeout возвращает таймаут на очистку миниатюр при остановке
func (s *ServerConfig) ShutdownTimeout() time.Duration {
	if s.ShutdownSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.ShutdownSeconds) * time.Second
}

// AutoSaveInterval возвращает период автосохранения миров
func (s *StorageConfig) AutoSaveInterval() time.Duration {
	if s.AutoSaveIntervalSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.AutoSaveIntervalSec) * time.Second
}

// RetentionDuration возвращает срок хранения событий в стриме
func (e *EventBusConfig) RetentionDuration() time.Duration {
	if e.Retention <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(e.Retention) * time.Hour
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

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", пытается прочитать из ENV MMWU_CONFIG; если и он пуст - возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("MMWU_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
