// Package config loads command configuration from flags, POOL_* environment
// variables and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "POOL"

// PoolConfig describes the pool and its two in-memory tokens.
type PoolConfig struct {
	PoolAddress string
	TokenA      string
	TokenB      string
	SymbolA     string
	SymbolB     string
	Owner       string
	// Mint seeds token balances as holder=amount pairs, applied to both tokens.
	Mint map[string]string
}

// PersistConfig describes where events and snapshots go.
type PersistConfig struct {
	Out          string
	Snapshot     string
	PGDSN        string
	MaxRetries   int
	RetryBackoff time.Duration
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func poolDefaults() map[string]interface{} {
	return map[string]interface{}{
		"pool-address": "0x00000000000000000000000000000000000000f0",
		"token-a":      "0x000000000000000000000000000000000000a000",
		"token-b":      "0x000000000000000000000000000000000000b000",
		"symbol-a":     "TKA",
		"symbol-b":     "TKB",
	}
}

func persistDefaults() map[string]interface{} {
	return map[string]interface{}{
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
	}
}

func readPool(v *viper.Viper) PoolConfig {
	return PoolConfig{
		PoolAddress: v.GetString("pool-address"),
		TokenA:      v.GetString("token-a"),
		TokenB:      v.GetString("token-b"),
		SymbolA:     v.GetString("symbol-a"),
		SymbolB:     v.GetString("symbol-b"),
		Owner:       v.GetString("owner"),
		Mint:        getStringMap(v, "mint"),
	}
}

func readPersist(v *viper.Viper) PersistConfig {
	return PersistConfig{
		Out:          v.GetString("out"),
		Snapshot:     v.GetString("snapshot"),
		PGDSN:        v.GetString("pg-dsn"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
	}
}

func merge(maps ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return parseStringMap(strings.Join(items, ","))
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
