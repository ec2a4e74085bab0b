// Package config loads engine configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full engine configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	API      APIConfig

	// PresetsFile optionally overrides the compiled-in feature presets.
	PresetsFile string `env:"FG_PRESETS_FILE"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `env:"FG_SERVER_HOST,default=0.0.0.0"`
	Port int    `env:"FG_SERVER_PORT,default=8080"`
}

// DatabaseConfig controls persistence. An empty DSN selects the in-memory
// store, which keeps local development dependency-free.
type DatabaseConfig struct {
	Driver          string `env:"FG_DB_DRIVER,default=postgres"`
	DSN             string `env:"FG_DB_DSN"`
	MaxOpenConns    int    `env:"FG_DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int    `env:"FG_DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime int    `env:"FG_DB_CONN_MAX_LIFETIME_SECONDS,default=300"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `env:"FG_LOG_LEVEL,default=info"`
	Format string `env:"FG_LOG_FORMAT,default=text"`
	Output string `env:"FG_LOG_OUTPUT,default=stdout"`
}

// APIConfig controls HTTP middleware behaviour. A zero rate limit disables
// throttling.
type APIConfig struct {
	RateLimitPerSecond int    `env:"FG_RATE_LIMIT_RPS,default=0"`
	RateLimitBurst     int    `env:"FG_RATE_LIMIT_BURST,default=0"`
	AuditLimit         int    `env:"FG_AUDIT_LIMIT,default=200"`
	AuditFile          string `env:"FG_AUDIT_FILE"`
	EventsBuffer       int    `env:"FG_EVENTS_BUFFER,default=1000"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	return &cfg, nil
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
