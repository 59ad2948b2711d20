package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Sync       SyncConfig       `yaml:"sync"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// UpstreamConfig holds settings for the citizen-request portal client.
type UpstreamConfig struct {
	BaseURL       string        `yaml:"base_url"       env:"UPSTREAM_BASE_URL"       env-required:"true"`
	Token         string        `yaml:"token"          env:"UPSTREAM_TOKEN"`
	Timeout       time.Duration `yaml:"timeout"        env:"UPSTREAM_TIMEOUT"        env-default:"15s"`
	RetryAttempts int           `yaml:"retry_attempts" env:"UPSTREAM_RETRY_ATTEMPTS" env-default:"3"`
	RetryDelay    time.Duration `yaml:"retry_delay"    env:"UPSTREAM_RETRY_DELAY"    env-default:"2s"`
}

// SyncConfig holds scheduler settings.
type SyncConfig struct {
	Enabled  bool          `yaml:"enabled"  env:"SYNC_ENABLED"  env-default:"true"`
	Interval time.Duration `yaml:"interval" env:"SYNC_INTERVAL" env-default:"5m"`
	// Lookback bounds the very first sync window when no watermark exists yet.
	Lookback time.Duration `yaml:"lookback" env:"SYNC_LOOKBACK" env-default:"24h"`
}

// ClassifierConfig holds settings for the optional LLM classification hook.
type ClassifierConfig struct {
	Enabled bool   `yaml:"enabled" env:"CLASSIFIER_ENABLED" env-default:"false"`
	APIKey  string `yaml:"api_key" env:"CLASSIFIER_API_KEY"`
	Model   string `yaml:"model"   env:"CLASSIFIER_MODEL"   env-default:"claude-3-5-haiku-latest"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
