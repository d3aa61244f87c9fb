// Package config loads and validates app config from env and an optional
// .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DevTokenSecret is the fallback signing secret for local development.
// Load rejects it when APP_ENV=production.
const DevTokenSecret = "dev-secret-change-in-production"

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8001).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// AdminDatabaseURL is the Postgres DSN of the admin database
	// (admin_users, admin_login_logs, and the admin-side CRUD tables).
	AdminDatabaseURL string `mapstructure:"ADMIN_DATABASE_URL"`
	// AppDatabaseURL is the Postgres DSN of the application database consumed
	// by the member-facing CRUD routers. Falls back to AdminDatabaseURL.
	AppDatabaseURL string `mapstructure:"APP_DATABASE_URL"`
	// RedisAddr is the session-cache address (host:port).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional session-cache password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RedisDB selects the Redis logical database.
	RedisDB int `mapstructure:"REDIS_DB"`
	// TokenSecret signs access and refresh tokens (HS256). Must be distinct
	// per deployment; the dev default is refused in production.
	TokenSecret string `mapstructure:"TOKEN_SECRET_KEY"`
	// AccessTokenTTLMinutes is the access-token lifetime in minutes.
	AccessTokenTTLMinutes int `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	// RefreshTokenTTLDays is the refresh-token lifetime in days.
	RefreshTokenTTLDays int `mapstructure:"REFRESH_TOKEN_EXPIRE_DAYS"`
	// Organization is the label stamped into access-token claims.
	Organization string `mapstructure:"ORGANIZATION_NAME"`
	// CORSOrigins is a comma-separated allow list for the admin frontend.
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// BcryptCost is the cost used when hashing new admin passwords (4-31).
	BcryptCost int `mapstructure:"BCRYPT_COST"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Missing .env is ignored (e.g. in CI); env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8001")
	v.SetDefault("ADMIN_DATABASE_URL", "")
	v.SetDefault("APP_DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TOKEN_SECRET_KEY", DevTokenSecret)
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 60)
	v.SetDefault("REFRESH_TOKEN_EXPIRE_DAYS", 7)
	v.SetDefault("ORGANIZATION_NAME", "OniCare HQ")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("BCRYPT_COST", 12)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the invariants Load promises. Exposed so tests can
// exercise hand-built configs.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.TokenSecret == "" {
		return errors.New("config: TOKEN_SECRET_KEY must be set")
	}
	if c.Env == "production" && c.TokenSecret == DevTokenSecret {
		return errors.New("config: TOKEN_SECRET_KEY must not use the development default when APP_ENV=production")
	}
	if c.AccessTokenTTLMinutes <= 0 {
		return errors.New("config: ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.RefreshTokenTTLDays <= 0 {
		return errors.New("config: REFRESH_TOKEN_EXPIRE_DAYS must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	return nil
}

// AccessTTL returns the configured access-token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTTL returns the configured refresh-token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTLDays) * 24 * time.Hour
}

// AppDSN returns the app-database DSN, falling back to the admin database
// when no separate app database is configured.
func (c *Config) AppDSN() string {
	if c.AppDatabaseURL != "" {
		return c.AppDatabaseURL
	}
	return c.AdminDatabaseURL
}

// CORSOriginList splits the comma-separated allow list, dropping blanks.
func (c *Config) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
