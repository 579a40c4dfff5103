package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/store"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// ACCOUNTS_AUTH_SECRET maps to auth.secret.
const EnvPrefix = "ACCOUNTS_"

// minProductionSecret is the shortest signing secret accepted in production.
const minProductionSecret = 32

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	CORS     CORSConfig     `koanf:"cors"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port      int    `koanf:"port"`
	Env       string `koanf:"env"`
	AccessLog bool   `koanf:"accesslog"`
}

// DatabaseConfig selects the account store backend.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// AuthConfig configures hashing and session tokens.
type AuthConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
	Cookie string        `koanf:"cookie"`
	Cost   int           `koanf:"cost"`
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaults() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"port":      8080,
			"env":       "development",
			"accesslog": true,
		},
		"database": map[string]any{
			"driver": "sqlite",
			"dsn":    "./accounts.db",
		},
		"auth": map[string]any{
			"ttl":    auth.DefaultTokenTTL,
			"cookie": auth.DefaultCookieName,
			"cost":   auth.DefaultCost,
		},
		"cors": map[string]any{
			"origins": []string{"http://localhost:3000"},
		},
		"log": map[string]any{
			"level":  "info",
			"format": "console",
		},
	}
}

// legacyEnv maps the variable names the service historically read.
var legacyEnv = map[string]string{
	"PORT":         "server.port",
	"DATABASE_URL": "database.dsn",
	"JWT_SECRET":   "auth.secret",
}

// Load builds the configuration. Later sources override earlier ones:
// defaults, the YAML file at path (if any), legacy variables, then ACCOUNTS_* variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	legacy := env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, fmt.Errorf("load legacy env: %w", err)
	}

	prefixed := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORS.Origins = splitList(cfg.CORS.Origins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if _, err := store.ParseDialect(c.Database.Driver); err != nil {
		return err
	}
	if c.Auth.Secret == "" {
		return errors.New("auth.secret is required (set ACCOUNTS_AUTH_SECRET or JWT_SECRET)")
	}
	if c.IsProduction() && len(c.Auth.Secret) < minProductionSecret {
		return fmt.Errorf("auth.secret must be at least %d bytes in production", minProductionSecret)
	}
	if c.Auth.TTL <= 0 {
		return fmt.Errorf("invalid auth.ttl %s", c.Auth.TTL)
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// Dialect returns the configured store dialect.
func (c *Config) Dialect() store.Dialect {
	d, _ := store.ParseDialect(c.Database.Driver)
	return d
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
