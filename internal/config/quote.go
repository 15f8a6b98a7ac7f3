package config

import (
	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for a one-off swap quote.
type QuoteConfig struct {
	ReserveIn  string
	ReserveOut string
	AmountIn   string
	Fee        string
	LogLevel   string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v := newViper()
	v.SetDefault("fee", "0.003")
	v.SetDefault("log-level", "warn")

	if err := readInto(v, cfgFile, flags); err != nil {
		return QuoteConfig{}, err
	}

	return QuoteConfig{
		ReserveIn:  v.GetString("reserve-in"),
		ReserveOut: v.GetString("reserve-out"),
		AmountIn:   v.GetString("amount-in"),
		Fee:        v.GetString("fee"),
		LogLevel:   v.GetString("log-level"),
	}, nil
}
