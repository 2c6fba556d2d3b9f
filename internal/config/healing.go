package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// HealingConfig drives the self-healing scheduler. It is re-read on every tick.
type HealingConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	InitialDelay time.Duration `mapstructure:"initialDelay"`
	MinAge       time.Duration `mapstructure:"minAge"`
	BatchSize    int           `mapstructure:"batchSize"`
}

// ReconciliationConfig controls the optional automatic reconciliation job.
type ReconciliationConfig struct {
	AutoEnabled bool          `mapstructure:"autoEnabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Lookback    time.Duration `mapstructure:"lookback"`
}

type RuntimeConfig struct {
	Healing        HealingConfig        `mapstructure:"healing"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Healing: HealingConfig{
			Enabled:      true,
			Interval:     5 * time.Minute,
			InitialDelay: time.Minute,
			MinAge:       5 * time.Minute,
			BatchSize:    25,
		},
		Reconciliation: ReconciliationConfig{
			AutoEnabled: false,
			Interval:    time.Hour,
			Lookback:    24 * time.Hour,
		},
	}
}

type RuntimeConfigHolder struct {
	current atomic.Value // holds RuntimeConfig
}

// NewStaticRuntimeConfigHolder returns a holder that never reloads.
func NewStaticRuntimeConfigHolder(cfg RuntimeConfig) *RuntimeConfigHolder {
	holder := &RuntimeConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewRuntimeConfigHolder() (*RuntimeConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("healing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/paysettle/config")
	v.AddConfigPath("/etc/paysettle")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAYSETTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRuntimeConfig()
	v.SetDefault("healing.enabled", defaults.Healing.Enabled)
	v.SetDefault("healing.interval", defaults.Healing.Interval)
	v.SetDefault("healing.initialDelay", defaults.Healing.InitialDelay)
	v.SetDefault("healing.minAge", defaults.Healing.MinAge)
	v.SetDefault("healing.batchSize", defaults.Healing.BatchSize)
	v.SetDefault("reconciliation.autoEnabled", defaults.Reconciliation.AutoEnabled)
	v.SetDefault("reconciliation.interval", defaults.Reconciliation.Interval)
	v.SetDefault("reconciliation.lookback", defaults.Reconciliation.Lookback)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	cfg, err := decodeRuntimeConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticRuntimeConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRuntimeConfig(v)
		if err != nil {
			log.Printf("[healing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[healing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *RuntimeConfigHolder) Get() RuntimeConfig {
	return h.current.Load().(RuntimeConfig)
}

func (h *RuntimeConfigHolder) Set(cfg RuntimeConfig) error {
	if err := validateRuntimeConfig(cfg); err != nil {
		return err
	}
	h.current.Store(cfg)
	return nil
}

func decodeRuntimeConfig(v *viper.Viper) (RuntimeConfig, error) {
	var cfg RuntimeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RuntimeConfig{}, err
	}
	if err := validateRuntimeConfig(cfg); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}

func validateRuntimeConfig(cfg RuntimeConfig) error {
	if cfg.Healing.Interval <= 0 {
		return errors.New("healing.interval must be positive")
	}
	if cfg.Healing.InitialDelay < 0 {
		return errors.New("healing.initialDelay cannot be negative")
	}
	if cfg.Healing.MinAge < 0 {
		return errors.New("healing.minAge cannot be negative")
	}
	if cfg.Healing.BatchSize <= 0 {
		return errors.New("healing.batchSize must be positive")
	}
	if cfg.Reconciliation.AutoEnabled {
		if cfg.Reconciliation.Interval <= 0 {
			return errors.New("reconciliation.interval must be positive")
		}
		if cfg.Reconciliation.Lookback <= 0 {
			return errors.New("reconciliation.lookback must be positive")
		}
	}
	return nil
}
