package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when neither a flag nor QRSTOCK_CONFIG names a file.
const DefaultConfigPath = "config.yaml"

// AppConfig holds process-level options supplied on the command line.
type AppConfig struct {
	ConfigPath string
}

// Config is the file-backed service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors-origins"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max-open-conns"`
	ConnMaxLifetime time.Duration `yaml:"conn-max-lifetime"`
	TimeZone        string        `yaml:"time-zone"`
	SlowThreshold   time.Duration `yaml:"slow-threshold"`
}

// JWTConfig configures admin token signing.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// RedisConfig configures the optional Redis used for alert caching and locks.
// An empty Addr disables both.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig configures logrus output.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// ResolveConfigPath picks the config path from the flag value, QRSTOCK_CONFIG, or the default.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv("QRSTOCK_CONFIG")); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Load reads .env, the YAML file at path (a missing file is not an error) and
// environment overrides, then fills defaults and validates the result.
func Load(path string) (Config, error) {
	if errEnv := godotenv.Load(); errEnv != nil && !errors.Is(errEnv, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", errEnv)
	}

	cfg := Config{}
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errYAML := yaml.Unmarshal(data, &cfg); errYAML != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, errYAML)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

// Validate reports missing required values.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt.secret is required")
	}
	if c.JWT.Expiry <= 0 {
		return errors.New("config: jwt.expiry must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "HTTP_ADDR")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Database.TimeZone, "DATABASE_TIME_ZONE")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.File, "LOG_FILE")
	if raw, ok := os.LookupEnv("JWT_EXPIRY"); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
			cfg.JWT.Expiry = d
		}
	}
	if raw, ok := os.LookupEnv("REDIS_DB"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			cfg.Redis.DB = n
		}
	}
	if raw, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		cfg.Server.CORSOrigins = splitList(raw)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.JWT.Expiry == 0 {
		cfg.JWT.Expiry = 12 * time.Hour
	}
	if cfg.Database.TimeZone == "" {
		cfg.Database.TimeZone = "UTC"
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 500 * time.Millisecond
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 50
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 14
	}
}

func setString(dst *string, key string) {
	if value, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			*dst = trimmed
		}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
