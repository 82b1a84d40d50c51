// Package config reads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every AZIF_* setting.
type Config struct {
	Addr      string `env:"AZIF_ADDR"       envDefault:":8080"`
	LogLevel  string `env:"AZIF_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"AZIF_LOG_FORMAT" envDefault:"text"`

	// Empty selects the in-memory game store and user directory.
	DatabaseURL string `env:"AZIF_DATABASE_URL"`
	// Empty selects the in-memory event log.
	RedisURL       string        `env:"AZIF_REDIS_URL"`
	EventRetention time.Duration `env:"AZIF_EVENT_RETENTION" envDefault:"2160h"`

	CatalogPath string `env:"AZIF_CATALOG_PATH" envDefault:"azif-catalog.db"`
	CatalogSeed string `env:"AZIF_CATALOG_SEED"`

	JWTSecret string        `env:"AZIF_JWT_SECRET"`
	TokenTTL  time.Duration `env:"AZIF_TOKEN_TTL" envDefault:"24h"`

	Workers        int           `env:"AZIF_WORKERS"         envDefault:"8"`
	QueueSize      int           `env:"AZIF_QUEUE_SIZE"      envDefault:"64"`
	ReadLimit      int64         `env:"AZIF_READ_LIMIT"      envDefault:"65536"`
	WriteTimeout   time.Duration `env:"AZIF_WRITE_TIMEOUT"   envDefault:"5s"`
	AllowedOrigins []string      `env:"AZIF_ALLOWED_ORIGINS" envSeparator:","`

	// DevUsers is a list of name:password pairs created in the memory directory.
	DevUsers []string `env:"AZIF_DEV_USERS" envSeparator:","`
}

// Load reads the named .env files (missing ones are skipped) and then parses
// the environment. Variables already set take precedence over the files.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that env tags cannot express.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("AZIF_WORKERS must be positive, got %d", c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("AZIF_QUEUE_SIZE must not be negative, got %d", c.QueueSize)
	}
	if c.ReadLimit <= 0 {
		return fmt.Errorf("AZIF_READ_LIMIT must be positive, got %d", c.ReadLimit)
	}
	if _, err := c.Credentials(); err != nil {
		return err
	}
	return nil
}

// Credential is one development account.
type Credential struct {
	Username string
	Password string
}

// Credentials parses DevUsers.
func (c Config) Credentials() ([]Credential, error) {
	out := make([]Credential, 0, len(c.DevUsers))
	for _, entry := range c.DevUsers {
		name, password, ok := strings.Cut(entry, ":")
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("AZIF_DEV_USERS entry %q is not name:password", entry)
		}
		out = append(out, Credential{Username: name, Password: password})
	}
	return out, nil
}
