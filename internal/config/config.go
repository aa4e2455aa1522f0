// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.trai.ch/zerr"
)

// Prefix is prepended to every variable name.
const Prefix = "FRAGCACHE_"

var (
	// ErrParse is returned when a variable cannot be parsed.
	ErrParse = errors.New("config: parse failed")
	// ErrInvalid is returned for values outside their allowed range.
	ErrInvalid = errors.New("config: invalid value")
)

// Config holds every FRAGCACHE_* setting.
type Config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Capacity bounds the resolver memo.
	Capacity   int  `env:"CAPACITY" envDefault:"100"`
	DigestKeys bool `env:"DIGEST_KEYS" envDefault:"false"`
	// Manifest is a YAML module map; empty means the built-in components.
	Manifest string `env:"MANIFEST"`

	// RedisURL selects the Redis payload store; empty keeps payloads in memory.
	RedisURL           string        `env:"REDIS_URL"`
	RedisRetryAttempts int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RedisRetryInterval time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"1s"`
	StoreCapacity      int           `env:"STORE_CAPACITY" envDefault:"1024"`
	PayloadTTL         time.Duration `env:"PAYLOAD_TTL" envDefault:"5m"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the given .env files (".env" when none are named; missing
// files are skipped) and then parses the process environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, zerr.With(zerr.Wrap(fmt.Errorf("%w: %w", ErrParse, err), "load dotenv "+f), "file", f)
		}
	}
	return parse(env.Options{Prefix: Prefix})
}

// FromMap parses settings from environ instead of the process environment.
func FromMap(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return zerr.With(zerr.Wrap(ErrInvalid, fmt.Sprintf("capacity must be positive, got %d", c.Capacity)), "capacity", c.Capacity)
	case c.StoreCapacity <= 0:
		return zerr.With(zerr.Wrap(ErrInvalid, fmt.Sprintf("store capacity must be positive, got %d", c.StoreCapacity)), "store_capacity", c.StoreCapacity)
	case c.PayloadTTL < 0:
		return zerr.With(zerr.Wrap(ErrInvalid, fmt.Sprintf("payload ttl must not be negative, got %s", c.PayloadTTL)), "payload_ttl", c.PayloadTTL.String())
	}
	return nil
}
