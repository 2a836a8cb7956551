// Package config loads the runner configuration from a viper config file
// with environment overrides. A .env file, when present, is folded into
// the environment first.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	RPCURL       string   `mapstructure:"rpc_url"`
	PostgresURL  string   `mapstructure:"postgres_url"`
	JupiterURL   string   `mapstructure:"jupiter_url"`
	OwnWallet    string   `mapstructure:"own_wallet"`
	TrackWallets []string `mapstructure:"track_wallets"`
	CopyMode     bool     `mapstructure:"copy_mode"`
	PollInterval int      `mapstructure:"poll_interval_seconds"`
	SigWindow    int      `mapstructure:"signature_window"`
	RPCRate      int      `mapstructure:"rpc_rate"`
	MaxTradePct  float64  `mapstructure:"max_trade_percent"`
	MinTradeSOL  float64  `mapstructure:"min_trade_sol"`
	MaxTradeSOL  float64  `mapstructure:"max_trade_sol"`
	DebugLogging bool     `mapstructure:"debug_logging"`
}

const (
	DefaultPollInterval = 10
	DefaultSigWindow    = 10
	DefaultRPCRate      = 5
	DefaultMaxTradePct  = 5.0
	DefaultMinTradeSOL  = 0.01
	DefaultMaxTradeSOL  = 1.0
)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Every key gets a default so environment overrides reach Unmarshal
	// even when no config file exists.
	defaults := map[string]interface{}{
		"rpc_url":               "",
		"postgres_url":          "",
		"jupiter_url":           "",
		"own_wallet":            "",
		"track_wallets":         []string{},
		"copy_mode":             false,
		"debug_logging":         false,
		"poll_interval_seconds": DefaultPollInterval,
		"signature_window":      DefaultSigWindow,
		"rpc_rate":              DefaultRPCRate,
		"max_trade_percent":     DefaultMaxTradePct,
		"min_trade_sol":         DefaultMinTradeSOL,
		"max_trade_sol":         DefaultMaxTradeSOL,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("SOLANACOPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Env-only operation is fine; a broken file is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, validate(&cfg)
}

func validate(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("missing rpc_url in configuration")
	}
	if len(cfg.TrackWallets) == 0 {
		return errors.New("track_wallets is empty")
	}
	if cfg.CopyMode {
		if cfg.OwnWallet == "" {
			return errors.New("copy_mode requires own_wallet")
		}
		if cfg.JupiterURL == "" {
			return errors.New("copy_mode requires jupiter_url")
		}
	}
	if cfg.PollInterval <= 0 {
		return errors.New("invalid poll_interval_seconds")
	}
	if cfg.SigWindow <= 0 {
		return errors.New("invalid signature_window")
	}
	if cfg.RPCRate <= 0 {
		return errors.New("invalid rpc_rate")
	}
	if cfg.MaxTradePct <= 0 || cfg.MaxTradePct > 100 {
		return errors.New("invalid max_trade_percent")
	}
	if cfg.MinTradeSOL < 0 || cfg.MaxTradeSOL <= 0 || cfg.MaxTradeSOL < cfg.MinTradeSOL {
		return errors.New("invalid trade size bounds")
	}
	return nil
}

func (c *Config) PollDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}
