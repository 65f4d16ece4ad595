package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// RunConfig holds configuration for the replay command, merged from flags,
// environment variables, and an optional config file.
type RunConfig struct {
	RPCURL          string
	ChainID         uint64
	Ops             string
	Out             string
	PGDSN           string
	Cursor          string
	CursorEnabled   bool
	Snapshot        string
	BatchSize       int
	MaxRetries      int
	RetryBackoff    time.Duration
	LogLevel        string
	Admin           string
	Emission        string
	BonusMultiplier uint64
	StartBlock      uint64
	MaxSupply       string
	RewardAsset     string
	FarmAccount     string
	DevAddress      string
	FeeAddress      string
	ReferralBonusBP uint16
}

// PendingConfig holds configuration for the pending query command.
type PendingConfig struct {
	Snapshot string
	Pool     uint64
	Account  string
	Height   uint64
	RPCURL   string
	LogLevel string
}

// LoadRun merges config file, environment variables, and flags into RunConfig.
func LoadRun(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return RunConfig{}, err
	}

	v.SetDefault("ops", "./data/ops.jsonl")
	v.SetDefault("out", "./data/events.jsonl")
	v.SetDefault("cursor", "./data/cursor.json")
	v.SetDefault("cursor-enabled", true)
	v.SetDefault("snapshot", "./data/snapshot.json")
	v.SetDefault("batch-size", 1000)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("emission", "0")
	v.SetDefault("bonus-multiplier", uint64(1))
	v.SetDefault("log-level", "info")

	cfg := RunConfig{
		RPCURL:          v.GetString("rpc"),
		ChainID:         v.GetUint64("chain-id"),
		Ops:             v.GetString("ops"),
		Out:             v.GetString("out"),
		PGDSN:           v.GetString("pg-dsn"),
		Cursor:          v.GetString("cursor"),
		CursorEnabled:   v.GetBool("cursor-enabled"),
		Snapshot:        v.GetString("snapshot"),
		BatchSize:       v.GetInt("batch-size"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		LogLevel:        v.GetString("log-level"),
		Admin:           v.GetString("admin"),
		Emission:        v.GetString("emission"),
		BonusMultiplier: v.GetUint64("bonus-multiplier"),
		StartBlock:      v.GetUint64("start-block"),
		MaxSupply:       v.GetString("max-supply"),
		RewardAsset:     v.GetString("reward-asset"),
		FarmAccount:     v.GetString("farm-account"),
		DevAddress:      v.GetString("dev-address"),
		FeeAddress:      v.GetString("fee-address"),
		ReferralBonusBP: uint16(v.GetUint32("referral-bonus-bp")),
	}
	return cfg, nil
}

// LoadPending merges config file, environment variables, and flags into
// PendingConfig.
func LoadPending(cfgFile string, flags *pflag.FlagSet) (PendingConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return PendingConfig{}, err
	}

	v.SetDefault("snapshot", "./data/snapshot.json")
	v.SetDefault("log-level", "info")

	cfg := PendingConfig{
		Snapshot: v.GetString("snapshot"),
		Pool:     v.GetUint64("pool"),
		Account:  v.GetString("account"),
		Height:   v.GetUint64("height"),
		RPCURL:   v.GetString("rpc"),
		LogLevel: v.GetString("log-level"),
	}
	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("FARM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

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
