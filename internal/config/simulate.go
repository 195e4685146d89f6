package config

import "github.com/spf13/pflag"

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Pool    PoolConfig
	Persist PersistConfig

	Script   string
	Results  string
	Start    string
	FailFast bool
	LogLevel string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, merge(poolDefaults(), persistDefaults(), map[string]interface{}{
		"out":     "./data/sim_events.jsonl",
		"results": "./data/sim_results.jsonl",
	}))
	if err != nil {
		return SimulateConfig{}, err
	}

	return SimulateConfig{
		Pool:     readPool(v),
		Persist:  readPersist(v),
		Script:   v.GetString("script"),
		Results:  v.GetString("results"),
		Start:    v.GetString("start"),
		FailFast: v.GetBool("fail-fast"),
		LogLevel: v.GetString("log-level"),
	}, nil
}
