package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_ENV"` specify the environment variable name.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // development, staging, production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	LogFormat  string `envconfig:"LOG_FORMAT" default:""`         // json or console; empty picks by AppEnv
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Postgres   PostgresConfig
	Keepa      KeepaConfig
	Refresh    RefreshConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host         string `envconfig:"POSTGRES_HOST" required:"true"`
	Port         string `envconfig:"POSTGRES_PORT" default:"5432"`
	User         string `envconfig:"POSTGRES_USER" required:"true"`
	Password     string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName       string `envconfig:"POSTGRES_DBNAME" required:"true"`
	SSLMode      string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
	MaxOpenConns int    `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"10"`
}

// KeepaConfig configures the pricing provider client used by the refresh job.
type KeepaConfig struct {
	APIKey            string        `envconfig:"KEEPA_API_KEY"`
	BaseURL           string        `envconfig:"KEEPA_BASE_URL" default:"https://api.keepa.com"`
	Domain            int           `envconfig:"KEEPA_DOMAIN" default:"1"` // 1 = amazon.com
	Timeout           time.Duration `envconfig:"KEEPA_TIMEOUT" default:"30s"`
	RequestsPerMinute int           `envconfig:"KEEPA_REQUESTS_PER_MINUTE" default:"20"`
}

// RefreshConfig configures the price and rating refresh job.
type RefreshConfig struct {
	BatchSize int `envconfig:"REFRESH_BATCH_SIZE" default:"100"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if cfg.Refresh.BatchSize <= 0 || cfg.Refresh.BatchSize > 100 {
		return nil, fmt.Errorf("invalid REFRESH_BATCH_SIZE %d: must be between 1 and 100", cfg.Refresh.BatchSize)
	}
	if cfg.Keepa.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("invalid KEEPA_REQUESTS_PER_MINUTE %d: must be positive", cfg.Keepa.RequestsPerMinute)
	}
	return &cfg, nil
}
