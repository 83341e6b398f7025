package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ----------------------------
	// Database
	// ----------------------------
	DatabaseURL    string        `envconfig:"DATABASE_URL" required:"true"`
	ConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"10s"`

	// ----------------------------
	// Dispatch
	// ----------------------------
	BatchSize     int           `envconfig:"BATCH_SIZE" default:"100"`
	ChunkInterval time.Duration `envconfig:"CHUNK_INTERVAL" default:"100ms"`
	TickInterval  time.Duration `envconfig:"TICK_INTERVAL" default:"0s"`

	// ----------------------------
	// Metrics (loop mode only)
	// ----------------------------
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
}

func Load() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return &cfg, err
}
