package config

import (
	"time"

	"github.com/spf13/pflag"
)

// ServeConfig holds configuration for the serve command.
type ServeConfig struct {
	Pool    PoolConfig
	Persist PersistConfig

	Listen string
	// APIKeys holds holder=key pairs; see ParseAPIKeys.
	APIKeys              map[string]string
	AllowUnauthenticated bool

	RateLimit       float64
	RateBurst       int
	RequestTimeout  time.Duration
	FlushInterval   time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, merge(poolDefaults(), persistDefaults(), map[string]interface{}{
		"listen":           "127.0.0.1:8080",
		"rate-limit":       20.0,
		"rate-burst":       40,
		"request-timeout":  10 * time.Second,
		"flush-interval":   time.Second,
		"shutdown-timeout": 10 * time.Second,
		"out":              "./data/pool_events.jsonl",
		"snapshot":         "./data/pool_state.json",
	}))
	if err != nil {
		return ServeConfig{}, err
	}

	return ServeConfig{
		Pool:                 readPool(v),
		Persist:              readPersist(v),
		Listen:               v.GetString("listen"),
		APIKeys:              getStringMap(v, "api-key"),
		AllowUnauthenticated: v.GetBool("allow-unauthenticated"),
		RateLimit:            v.GetFloat64("rate-limit"),
		RateBurst:            v.GetInt("rate-burst"),
		RequestTimeout:       v.GetDuration("request-timeout"),
		FlushInterval:        v.GetDuration("flush-interval"),
		ShutdownTimeout:      v.GetDuration("shutdown-timeout"),
		LogLevel:             v.GetString("log-level"),
	}, nil
}
