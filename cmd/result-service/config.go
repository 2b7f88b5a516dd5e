package main

import (
	"fmt"
	"os"
	"time"

	"judgeresult/internal/common/cache"
	"judgeresult/internal/common/db"
	"judgeresult/internal/common/mq"
	"judgeresult/internal/result/model"
	"judgeresult/internal/result/queue"
	"judgeresult/internal/result/service"
	"judgeresult/internal/result/viewer"
	"judgeresult/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8088"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	storageMemory = "memory"
	storageSQL    = "sql"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// DatabaseConfig selects the SQL driver and its pool.
type DatabaseConfig struct {
	Driver        string `yaml:"driver"` // mysql or postgres
	EnsureSchema  bool   `yaml:"ensureSchema"`
	db.PoolConfig `yaml:",inline"`
}

// StorageConfig selects where results live.
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory or sql
	// Fixtures seeds problems, users and labels for the memory backend.
	Fixtures string `yaml:"fixtures"`
}

// CacheConfig holds cache TTLs. Caching is off when redis.addr is empty.
type CacheConfig struct {
	ResultTTL      time.Duration `yaml:"resultTTL"`
	EntityTTL      time.Duration `yaml:"entityTTL"`
	EntityEmptyTTL time.Duration `yaml:"entityEmptyTTL"`
}

// EventsConfig routes final-status events. Publishing is off when kafka.brokers is empty.
type EventsConfig struct {
	FinalStatusTopic string `yaml:"finalStatusTopic"`
}

// WorkerConfig runs an in-process grading worker that forwards claims to a remote judge.
type WorkerConfig struct {
	Enabled            bool          `yaml:"enabled"`
	GraderURL          string        `yaml:"graderURL"`
	GraderTimeout      time.Duration `yaml:"graderTimeout"`
	queue.WorkerConfig `yaml:",inline"`
}

// AppConfig holds result-service configuration.
type AppConfig struct {
	Server   ServerConfig      `yaml:"server"`
	Logger   logger.Config     `yaml:"logger"`
	Storage  StorageConfig     `yaml:"storage"`
	Database DatabaseConfig    `yaml:"database"`
	Redis    cache.RedisConfig `yaml:"redis"`
	Cache    CacheConfig       `yaml:"cache"`
	Kafka    mq.KafkaConfig    `yaml:"kafka"`
	Events   EventsConfig      `yaml:"events"`
	Queue    queue.Config      `yaml:"queue"`
	Worker   WorkerConfig      `yaml:"worker"`
	Service  service.Config    `yaml:"service"`
	Auth     viewer.Config     `yaml:"auth"`
}

// Fixtures is the seed data of the memory backend.
type Fixtures struct {
	Problems []model.Problem          `yaml:"problems"`
	Users    []model.User             `yaml:"users"`
	Labels   []model.ContestTaskLabel `yaml:"labels"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = storageSQL
	}
	if cfg.Storage.Backend != storageMemory && cfg.Storage.Backend != storageSQL {
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = string(db.DialectMySQL)
	}
	if cfg.Storage.Backend == storageSQL && cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required for the sql backend")
	}

	if cfg.Redis.Addr != "" {
		applyRedisDefaults(&cfg.Redis)
	}
	if cfg.Events.FinalStatusTopic == "" {
		cfg.Events.FinalStatusTopic = "result.status.final"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "result-service"
	}
	if cfg.Worker.Enabled && cfg.Worker.GraderURL == "" {
		return nil, fmt.Errorf("worker.graderURL is required when the worker is enabled")
	}
	return &cfg, nil
}

func loadFixtures(path string) (*Fixtures, error) {
	var f Fixtures
	if path == "" {
		return &f, nil
	}
	if err := loadYAML(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MinRetryBackoff == 0 {
		cfg.MinRetryBackoff = defaults.MinRetryBackoff
	}
	if cfg.MaxRetryBackoff == 0 {
		cfg.MaxRetryBackoff = defaults.MaxRetryBackoff
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = defaults.ConnMaxLifetime
	}
}
