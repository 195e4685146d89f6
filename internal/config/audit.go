package config

import "github.com/spf13/pflag"

// AuditConfig holds configuration for the audit command.
type AuditConfig struct {
	RPCURL      string
	Block       uint64
	Snapshot    string
	PGDSN       string
	PoolAddress string
	LogLevel    string
}

// LoadAudit merges config file, environment variables, and flags into AuditConfig.
func LoadAudit(cfgFile string, flags *pflag.FlagSet) (AuditConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"snapshot": "./data/pool_state.json",
	})
	if err != nil {
		return AuditConfig{}, err
	}

	return AuditConfig{
		RPCURL:      v.GetString("rpc"),
		Block:       v.GetUint64("block"),
		Snapshot:    v.GetString("snapshot"),
		PGDSN:       v.GetString("pg-dsn"),
		PoolAddress: v.GetString("pool-address"),
		LogLevel:    v.GetString("log-level"),
	}, nil
}
