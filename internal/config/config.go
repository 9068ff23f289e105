// Package config loads service configuration from a YAML file with an
// environment-variable overlay.
package config

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Environment names recognized by the service.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the root service configuration. Value sources in
// descending priority:
//  1. explicit path via the --config flag;
//  2. path from the CONFIG_PATH environment variable;
//  3. ./local.yaml in the working directory;
//  4. environment variables only.
type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"development"`
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	Lockout LockoutConfig `yaml:"lockout"`
	Audit   AuditConfig   `yaml:"audit"`
	CORS    CORSConfig    `yaml:"cors"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr returns the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig holds token issuance and validation parameters.
type AuthConfig struct {
	AccessSecret    string        `yaml:"access_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	RefreshSecret   string        `yaml:"refresh_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	Issuer          string        `yaml:"issuer" env:"TOKEN_ISSUER" env-default:"literati-auth"`
	StoreTimeout    time.Duration `yaml:"store_timeout" env:"AUTH_STORE_TIMEOUT" env-default:"3s"`
	ReuseInterval   time.Duration `yaml:"reuse_interval" env:"REFRESH_REUSE_INTERVAL" env-default:"10s"`
}

// DBConfig holds database connection settings.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
}

// RedisConfig holds Redis connection settings. An empty URL selects
// the in-memory token stores, which is only suitable for a single
// replica.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
}

// LockoutConfig bounds failed login attempts per account.
type LockoutConfig struct {
	MaxAttempts int           `yaml:"max_attempts" env:"LOCKOUT_MAX_ATTEMPTS" env-default:"5"`
	Window      time.Duration `yaml:"window" env:"LOCKOUT_WINDOW" env-default:"15m"`
}

// AuditConfig sizes the async audit pipeline.
type AuditConfig struct {
	BufferSize int `yaml:"buffer_size" env:"AUDIT_BUFFER_SIZE" env-default:"256"`
}

// CORSConfig lists the origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000"`
}

// CookiePolicy describes how auth cookies are written.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
}

// CookiePolicy returns the cookie attributes for the configured
// environment. Production needs SameSite=None with Secure so the
// browser sends cookies on cross-site requests from the web client,
// development keeps Lax so plain http://localhost works.
func (c *Config) CookiePolicy() CookiePolicy {
	if c.Env == EnvProduction {
		return CookiePolicy{Secure: true, SameSite: http.SameSiteNoneMode}
	}
	return CookiePolicy{Secure: false, SameSite: http.SameSiteLaxMode}
}

// MustLoad wraps Load and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load resolves the configuration source by priority and reads it.
// Environment variables are overlaid on top of any file values.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("read config %q: %w", p, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("overlay env: %w", err)
		}
		return &cfg, nil
	}

	if path != "" {
		return tryRead(path)
	}

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, nil
}
