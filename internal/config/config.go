package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	LockNone  = "none"
	LockLocal = "local"
	LockRedis = "redis"
)

// Duration decodes TOML strings such as "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type LogConfig struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	AddSource bool   `toml:"add_source"`
}

type LockConfig struct {
	Backend   string   `toml:"backend"`
	RedisAddr string   `toml:"redis_addr"`
	TTL       Duration `toml:"ttl"`
	Retries   int      `toml:"retries"`
	Backoff   Duration `toml:"backoff"`
}

type Config struct {
	DBSource        string     `toml:"db_source"`
	Port            string     `toml:"port"`
	Env             string     `toml:"environment"`
	JWTSecret       string     `toml:"jwt_secret"`
	StoreBackend    string     `toml:"store_backend"`
	FixturePath     string     `toml:"fixture_path"`
	CatalogCache    int        `toml:"catalog_cache_size"`
	ShutdownTimeout Duration   `toml:"shutdown_timeout"`
	Log             LogConfig  `toml:"log"`
	Lock            LockConfig `toml:"lock"`
}

func Default() *Config {
	return &Config{
		Port:            "8080",
		Env:             "development",
		StoreBackend:    BackendPostgres,
		CatalogCache:    1024,
		ShutdownTimeout: Duration{10 * time.Second},
		Log:             LogConfig{Level: "info", Format: "text"},
		Lock: LockConfig{
			Backend: LockLocal,
			TTL:     Duration{5 * time.Second},
			Retries: 3,
			Backoff: Duration{100 * time.Millisecond},
		},
	}
}

// Load reads the optional TOML file at path, then applies environment
// overrides. Environment wins.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"DB_SOURCE":     &c.DBSource,
		"SERVER_PORT":   &c.Port,
		"ENVIRONMENT":   &c.Env,
		"JWT_SECRET":    &c.JWTSecret,
		"STORE_BACKEND": &c.StoreBackend,
		"FIXTURE_PATH":  &c.FixturePath,
		"LOG_LEVEL":     &c.Log.Level,
		"LOG_FORMAT":    &c.Log.Format,
		"LOCK_BACKEND":  &c.Lock.Backend,
		"REDIS_ADDR":    &c.Lock.RedisAddr,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CATALOG_CACHE_SIZE": &c.CatalogCache,
		"LOCK_RETRIES":       &c.Lock.Retries,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*Duration{
		"LOCK_TTL":         &c.Lock.TTL,
		"LOCK_BACKOFF":     &c.Lock.Backoff,
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	// A REDIS_ADDR on its own selects the redis lock.
	if os.Getenv("REDIS_ADDR") != "" && os.Getenv("LOCK_BACKEND") == "" {
		c.Lock.Backend = LockRedis
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DBSource == "" {
			return fmt.Errorf("DB_SOURCE environment variable is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}

	switch c.Lock.Backend {
	case LockNone, LockLocal:
	case LockRedis:
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis lock")
		}
		if c.Lock.TTL.Duration <= 0 {
			return fmt.Errorf("lock ttl must be positive")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}

	if c.Lock.Retries < 0 {
		return fmt.Errorf("lock retries must not be negative")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
