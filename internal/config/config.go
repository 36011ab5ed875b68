package config

import (
	"flag"
	"os"
	"time"

	"codeberg.org/mutker/battmon/internal/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultInterval    = 2000 // milliseconds
	defaultOverheat    = 45.0 // Celsius
	defaultChargeLimit = 80   // percent
	defaultCooldown    = 5    // minutes
	defaultCapacityWh  = 50.0 // typical pack capacity for time estimates
	defaultHistoryFile = "battery_history.json"
	defaultDatabase    = "/var/lib/battmon/telemetry.db"
)

type Config struct {
	Interval             int     `mapstructure:"interval"`
	SaveJSON             bool    `mapstructure:"save_json"`
	HistoryFile          string  `mapstructure:"history_file"`
	LowBatteryThresholds []int   `mapstructure:"low_battery_thresholds"`
	OverheatThreshold    float64 `mapstructure:"overheat_threshold"`
	ChargeLimit          int     `mapstructure:"charge_limit"`
	Cooldown             int     `mapstructure:"cooldown"`
	CapacityWh           float64 `mapstructure:"capacity_wh"`
	BatteryPath          string  `mapstructure:"battery_path"`
	Telemetry            bool    `mapstructure:"telemetry"`
	Database             string  `mapstructure:"database"`
	LogLevel             string  `mapstructure:"log_level"`
	Debug                bool    `mapstructure:"debug"`
	Verbose              bool    `mapstructure:"verbose"`
}

// UpdateInterval returns the tick pacing as a duration.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.Interval) * time.Millisecond
}

// CooldownDuration returns the alert cooldown as a duration.
func (c *Config) CooldownDuration() time.Duration {
	return time.Duration(c.Cooldown) * time.Minute
}

func Load() (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	v.SetDefault("interval", defaultInterval)
	v.SetDefault("save_json", false)
	v.SetDefault("history_file", defaultHistoryFile)
	v.SetDefault("low_battery_thresholds", []int{15, 10, 5})
	v.SetDefault("overheat_threshold", defaultOverheat)
	v.SetDefault("charge_limit", defaultChargeLimit)
	v.SetDefault("cooldown", defaultCooldown)
	v.SetDefault("capacity_wh", defaultCapacityWh)
	v.SetDefault("telemetry", false)
	v.SetDefault("database", defaultDatabase)
	v.SetDefault("log_level", DefaultLogLevel)

	// BATTMON_CONFIG points at an explicit config file, otherwise
	// /etc/battmon.conf is used when present
	if path := os.Getenv("BATTMON_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("battmon.conf")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err).
				WithMessage("Failed to read config file")
		}
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	debugFlag := fs.Bool("debug", false, "Enable debugging mode")
	verboseFlag := fs.Bool("verbose", false, "Enable verbose logging")
	fs.String("log-level", "", "Log level (debug, info, warning, error)")
	fs.Int("interval", 0, "Interval between updates in milliseconds")
	fs.Bool("save-json", false, "Persist sampling history to the JSON file")
	fs.String("history-file", "", "Path to the JSON history file")
	fs.Float64("overheat-threshold", 0, "Overheat alert threshold in Celsius")
	fs.Int("charge-limit", 0, "Charge limit alert threshold in percent")
	fs.Int("cooldown", 0, "Alert cooldown in minutes")
	fs.String("battery-path", "", "Explicit power supply sysfs directory")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}

	// Command line flags override config file values
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			v.Set("debug", *debugFlag)
		case "verbose":
			v.Set("verbose", *verboseFlag)
		case "log-level":
			v.Set("log_level", f.Value.String())
		case "save-json":
			v.Set("save_json", f.Value.String())
		case "history-file":
			v.Set("history_file", f.Value.String())
		case "overheat-threshold":
			v.Set("overheat_threshold", f.Value.String())
		case "charge-limit":
			v.Set("charge_limit", f.Value.String())
		case "battery-path":
			v.Set("battery_path", f.Value.String())
		default:
			v.Set(f.Name, f.Value.String())
		}
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	applyLogLevel(config)

	return config, nil
}

// Validate rejects out-of-range thresholds and non-positive intervals.
// Callers holding a previously valid Config keep using it when a
// re-configuration fails validation.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	if len(c.LowBatteryThresholds) != 3 {
		return errFactory.WithMessage(errors.ErrInvalidConfig,
			"low_battery_thresholds requires exactly three values")
	}
	for _, threshold := range c.LowBatteryThresholds {
		if threshold < 1 || threshold > 100 {
			return errFactory.WithData(errors.ErrInvalidConfig, threshold)
		}
	}

	if c.OverheatThreshold <= 0 || c.OverheatThreshold > 150 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.OverheatThreshold)
	}

	if c.ChargeLimit < 1 || c.ChargeLimit > 100 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.ChargeLimit)
	}

	if c.Cooldown < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.Cooldown)
	}

	if c.CapacityWh <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.CapacityWh)
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

func applyLogLevel(c *Config) {
	switch {
	case c.Debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case c.Verbose:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		switch LogLevel(c.LogLevel) {
		case LogLevelDebug:
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		case LogLevelInfo:
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		case LogLevelWarning:
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		case LogLevelError:
			zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		}
	}
}
