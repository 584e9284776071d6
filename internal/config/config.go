// Package config loads the runtime configuration: defaults, then an optional
// YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"waterflow/internal/opt"
)

type Search struct {
	opt.Params `yaml:",inline"`
	Seed       int64 `yaml:"seed"`
	// Workers is the number of solver instances in the oracle pool.
	Workers int `yaml:"workers"`
}

type Oracle struct {
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"ratePerSecond"`
	Burst         int           `yaml:"burst"`
	CacheTTL      time.Duration `yaml:"cacheTTL"`
	TwoOptRounds  int           `yaml:"twoOptRounds"`
}

// Instance either names a file or sizes a generated instance.
type Instance struct {
	Path            string  `yaml:"path"`
	Points          int     `yaml:"points"`
	Sites           int     `yaml:"sites"`
	Vehicles        int     `yaml:"vehicles"`
	VehicleCapacity float64 `yaml:"vehicleCapacity"`
	Seed            int64   `yaml:"seed"`
}

type HTTP struct {
	Addr string `yaml:"addr"`
	// KeepServing keeps the HTTP server up after the run has finished.
	KeepServing bool `yaml:"keepServing"`
}

type Config struct {
	Search      Search   `yaml:"search"`
	Oracle      Oracle   `yaml:"oracle"`
	Instance    Instance `yaml:"instance"`
	HTTP        HTTP     `yaml:"http"`
	LogLevel    string   `yaml:"logLevel"`
	Environment string   `yaml:"environment"`
	DatabaseURL string   `yaml:"databaseURL"`
	RedisURL    string   `yaml:"redisURL"`
}

func Default() Config {
	return Config{
		Search: Search{
			Params: opt.Params{
				MaxCloud:     5,
				MaxPop:       10,
				MaxUIE:       5,
				MinEro:       2,
				MaxAttempts:  1000,
				MaxRepairs:   200,
				CloudRetries: 2,
				Backoff:      time.Second,
			},
			Seed:    1,
			Workers: 4,
		},
		Oracle: Oracle{
			Timeout:      10 * time.Second,
			CacheTTL:     time.Hour,
			TwoOptRounds: 4,
		},
		Instance: Instance{
			Points:          20,
			Sites:           8,
			Vehicles:        2,
			VehicleCapacity: 100,
			Seed:            1,
		},
		HTTP:        HTTP{Addr: ":8080"},
		LogLevel:    "info",
		Environment: "development",
	}
}

var ErrInvalid = errors.New("invalid config")

// Load reads path (if non-empty) over the defaults and applies the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	var port string
	str("PORT", &port)
	if port != "" {
		c.HTTP.Addr = ":" + port
	}
	str("WATERFLOW_ENV", &c.Environment)
	str("WATERFLOW_LOG_LEVEL", &c.LogLevel)
	str("WATERFLOW_INSTANCE", &c.Instance.Path)

	num("WATERFLOW_MAX_CLOUD", &c.Search.MaxCloud)
	num("WATERFLOW_MAX_POP", &c.Search.MaxPop)
	num("WATERFLOW_MAX_UIE", &c.Search.MaxUIE)
	num("WATERFLOW_MIN_ERO", &c.Search.MinEro)
	num("WATERFLOW_MAX_ATTEMPTS", &c.Search.MaxAttempts)
	num("WATERFLOW_WORKERS", &c.Search.Workers)
	if v, ok := lookup("WATERFLOW_SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("WATERFLOW_SEED: %w", err))
		} else {
			c.Search.Seed = n
		}
	}
	dur("WATERFLOW_ORACLE_TIMEOUT", &c.Oracle.Timeout)
	if v, ok := lookup("WATERFLOW_KEEP_SERVING"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("WATERFLOW_KEEP_SERVING: %w", err))
		} else {
			c.HTTP.KeepServing = b
		}
	}
	return errors.Join(errs...)
}

// Validate rejects non-positive search parameters and an unusable instance.
func (c Config) Validate() error {
	s := c.Search
	for name, v := range map[string]int{
		"maxCloud":    s.MaxCloud,
		"maxPop":      s.MaxPop,
		"maxUIE":      s.MaxUIE,
		"minEro":      s.MinEro,
		"maxAttempts": s.MaxAttempts,
		"workers":     s.Workers,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: search.%s must be positive, got %d", ErrInvalid, name, v)
		}
	}
	if s.CloudRetries < 0 || s.MaxRepairs < 0 {
		return fmt.Errorf("%w: search.cloudRetries and search.maxRepairs must not be negative", ErrInvalid)
	}
	if c.Oracle.RatePerSecond < 0 || c.Oracle.Timeout < 0 {
		return fmt.Errorf("%w: oracle limits must not be negative", ErrInvalid)
	}
	if c.Instance.Path == "" {
		in := c.Instance
		if in.Points <= 0 || in.Sites <= 0 || in.Vehicles <= 0 || in.VehicleCapacity <= 0 {
			return fmt.Errorf("%w: generated instance needs positive points, sites, vehicles and vehicleCapacity", ErrInvalid)
		}
	}
	return nil
}

func (c Config) Development() bool { return c.Environment == "development" }
