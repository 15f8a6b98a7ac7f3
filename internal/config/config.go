package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "AMMPOOL"

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Scenario     string
	Out          string
	PGDSN        string
	RPCURL       string
	Deployer     string
	AdminBadges  bool
	BatchSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	MetricsOut   string
	LogLevel     string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v := newViper()
	v.SetDefault("out", "./data/events.jsonl")
	v.SetDefault("deployer", "0x000000000000000000000000000000000000a11c")
	v.SetDefault("admin-badges", true)
	v.SetDefault("batch-size", 500)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if err := readInto(v, cfgFile, flags); err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		Scenario:     v.GetString("scenario"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		RPCURL:       v.GetString("rpc"),
		Deployer:     v.GetString("deployer"),
		AdminBadges:  v.GetBool("admin-badges"),
		BatchSize:    v.GetInt("batch-size"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		MetricsOut:   v.GetString("metrics-out"),
		LogLevel:     v.GetString("log-level"),
	}
	if cfg.Scenario == "" {
		return SimulateConfig{}, fmt.Errorf("scenario is required")
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// readInto binds flags and reads the config file, or config.* from the
// working directory when none is given.
func readInto(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
