// Package config loads server settings from defaults, an optional YAML file
// and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config is the complete server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Session SessionConfig `yaml:"session"`
	Gateway GatewayConfig `yaml:"gateway"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects and configures the durable store
type StorageConfig struct {
	Type        string `yaml:"type"`
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// SessionConfig holds gameplay timing and limits
type SessionConfig struct {
	GracePeriod          time.Duration `yaml:"grace_period"`
	RegistrationAttempts int           `yaml:"registration_attempts"`
	RegistrationWindow   time.Duration `yaml:"registration_window"`
}

// GatewayConfig holds websocket connection settings
type GatewayConfig struct {
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	PingPeriod     time.Duration `yaml:"ping_period"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBuffer     int           `yaml:"send_buffer"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Type:        StorageMemory,
			AutoMigrate: true,
		},
		Session: SessionConfig{
			GracePeriod:          30 * time.Second,
			RegistrationAttempts: 3,
			RegistrationWindow:   10 * time.Second,
		},
		Gateway: GatewayConfig{
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			PingPeriod:     54 * time.Second,
			MaxMessageSize: 8 * 1024,
			SendBuffer:     256,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("PADDLE_HOST"); ok {
		c.Server.Host = v
	}
	if err := envInt("PORT", &c.Server.Port); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("STORAGE_TYPE"); ok {
		c.Storage.Type = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := os.LookupEnv("REDIS_URL"); ok {
		c.Storage.RedisURL = v
	}
	if v, ok := os.LookupEnv("DATABASE_URL"); ok {
		c.Storage.DatabaseURL = v
	}
	if err := envDuration("PADDLE_GRACE_PERIOD", &c.Session.GracePeriod); err != nil {
		return err
	}
	if err := envInt("PADDLE_REGISTRATION_ATTEMPTS", &c.Session.RegistrationAttempts); err != nil {
		return err
	}
	if err := envDuration("PADDLE_REGISTRATION_WINDOW", &c.Session.RegistrationWindow); err != nil {
		return err
	}
	if err := envInt("PADDLE_SEND_BUFFER", &c.Gateway.SendBuffer); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("PADDLE_ALLOWED_ORIGINS"); ok {
		c.Gateway.AllowedOrigins = splitList(v)
	}
	if v, ok := os.LookupEnv("PADDLE_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("PADDLE_LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	return nil
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("REDIS_URL required when storage type is redis")
		}
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("DATABASE_URL required when storage type is postgres")
		}
	default:
		return fmt.Errorf("invalid storage type %q: must be memory, redis or postgres", c.Storage.Type)
	}
	if c.Session.GracePeriod <= 0 {
		return errors.New("grace period must be positive")
	}
	if c.Session.RegistrationAttempts < 1 || c.Session.RegistrationWindow <= 0 {
		return errors.New("registration limit must allow at least one attempt per positive window")
	}
	if c.Gateway.PingPeriod >= c.Gateway.PongWait {
		return errors.New("gateway ping period must be shorter than pong wait")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the configured log level
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", l.Level)
	}
	return level, nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
