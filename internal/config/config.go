// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is "development" or "production"; development logs to the console writer.
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// DatabaseURL is the Postgres DSN. Required.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DBMaxConns caps the pool size.
	DBMaxConns int32 `mapstructure:"DB_MAX_CONNS"`
	// DBConnectTimeout bounds dialing and the startup ping.
	DBConnectTimeout time.Duration `mapstructure:"DB_CONNECT_TIMEOUT"`
	// DBQueryTimeout bounds pool acquisition plus one repository operation.
	DBQueryTimeout time.Duration `mapstructure:"DB_QUERY_TIMEOUT"`
	// RunMigrations applies the embedded migrations at startup.
	RunMigrations bool `mapstructure:"RUN_MIGRATIONS"`

	// RedisAddr enables the cache when set (host:port or redis:// URL).
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL"`

	// CORSAllowedOrigins is a comma-separated list of frontend origins.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// JWTSecret enables bearer auth on write routes when set.
	JWTSecret string `mapstructure:"JWT_SECRET"`

	// CacheRefreshInterval schedules the provider cache warm-up job; 0 disables it.
	CacheRefreshInterval time.Duration `mapstructure:"CACHE_REFRESH_INTERVAL"`
	// AuditRetentionDays schedules the daily audit purge; 0 keeps history forever.
	AuditRetentionDays int `mapstructure:"AUDIT_RETENTION_DAYS"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Env vars override .env.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":5000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_CONNECT_TIMEOUT", "5s")
	v.SetDefault("DB_QUERY_TIMEOUT", "5s")
	v.SetDefault("RUN_MIGRATIONS", true)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("CACHE_REFRESH_INTERVAL", "10m")
	v.SetDefault("AUDIT_RETENTION_DAYS", 365)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set")
	}
	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.DBMaxConns < 1 {
		return nil, errors.New("config: DB_MAX_CONNS must be at least 1")
	}
	if cfg.DBQueryTimeout <= 0 {
		return nil, errors.New("config: DB_QUERY_TIMEOUT must be positive")
	}
	if cfg.AuditRetentionDays < 0 {
		return nil, errors.New("config: AUDIT_RETENTION_DAYS must not be negative")
	}

	return &cfg, nil
}

// AllowedOrigins splits CORSAllowedOrigins. An empty list allows every origin.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// AuditRetention converts AuditRetentionDays to a duration.
func (c *Config) AuditRetention() time.Duration {
	return time.Duration(c.AuditRetentionDays) * 24 * time.Hour
}

// IsDevelopment reports whether the app runs with local developer settings.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
