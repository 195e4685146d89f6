package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for the aggregate command.
type AggregateConfig struct {
	In            string
	Out           string
	Window        time.Duration
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom uint64
	LogLevel      string
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"window":     "5m",
		"batch-size": 1000,
		"out":        "./data/pool_windows.jsonl",
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	window, err := time.ParseDuration(v.GetString("window"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("parse window: %w", err)
	}
	if window < time.Second {
		return AggregateConfig{}, fmt.Errorf("window must be at least 1s")
	}

	return AggregateConfig{
		In:            v.GetString("in"),
		Out:           v.GetString("out"),
		Window:        window,
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetUint64("recompute-from"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}
