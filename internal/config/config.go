package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/perfwatch/internal/analyzer"
	"codeberg.org/mutker/perfwatch/internal/errors"
	"codeberg.org/mutker/perfwatch/internal/sample"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogPath         = "perfwatch.csv"
	DefaultIntervalSeconds = 5
	DefaultDurationMinutes = 5
	DefaultTopProcesses    = 5
)

type Config struct {
	LogPath         string
	IntervalSeconds int
	DurationMinutes int
	TopProcesses    int
	Debug           bool
	Verbose         bool
	Telemetry       bool
	Database        string
	Analyze         string

	thresholds analyzer.ThresholdSet
}

// Load merges defaults, the TOML config file and command-line flags.
// Flags win over the file. The file is perfwatch.toml in /etc or the
// working directory, or the path in PERFWATCH_CONFIG.
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("perfwatch", pflag.ContinueOnError)
	fs.String("logpath", DefaultLogPath, "Output log file, overwritten at run start")
	fs.Int("interval", DefaultIntervalSeconds, "Seconds between samples")
	fs.Int("duration", DefaultDurationMinutes, "Total collection length in minutes")
	fs.Int("top", DefaultTopProcesses, "Processes reported per ranking category")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.Bool("telemetry", false, "Archive samples to a SQLite database")
	fs.String("database", "", "Telemetry database path")
	fs.String("analyze", "", "Analyze an existing log file instead of collecting")
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetConfigName("perfwatch")
	v.SetConfigType("toml")
	v.AddConfigPath("/etc")
	v.AddConfigPath(".")
	if path := os.Getenv("PERFWATCH_CONFIG"); path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	// Re-apply flags the user actually set so they win over the file.
	fs.Visit(func(f *pflag.Flag) {
		v.Set(f.Name, f.Value.String())
	})

	cfg := &Config{
		LogPath:         v.GetString("logpath"),
		IntervalSeconds: v.GetInt("interval"),
		DurationMinutes: v.GetInt("duration"),
		TopProcesses:    v.GetInt("top"),
		Debug:           v.GetBool("debug"),
		Verbose:         v.GetBool("verbose"),
		Telemetry:       v.GetBool("telemetry"),
		Database:        v.GetString("database"),
		Analyze:         v.GetString("analyze"),
		thresholds:      loadThresholds(v),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Analyze != "" {
		// Offline analysis takes its parameters from the log itself.
		return nil
	}
	if c.IntervalSeconds <= 0 {
		return errFactory.New(errors.ErrInvalidInterval)
	}
	if c.DurationMinutes <= 0 {
		return errFactory.New(errors.ErrInvalidDuration)
	}
	if c.TopProcesses < 1 {
		return errFactory.New(errors.ErrInvalidTopCount)
	}
	if c.LogPath == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "log path must not be empty")
	}

	return nil
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c *Config) Duration() time.Duration {
	return time.Duration(c.DurationMinutes) * time.Minute
}

// Thresholds returns the breach thresholds with any [thresholds] table
// overrides applied.
func (c *Config) Thresholds() analyzer.ThresholdSet {
	return c.thresholds
}

// loadThresholds merges the [thresholds] config table over the stock
// threshold set. Viper lowercases keys, so they are mapped back to the
// canonical metric names.
func loadThresholds(v *viper.Viper) analyzer.ThresholdSet {
	thresholds := analyzer.DefaultThresholds()

	canonical := make(map[string]string, len(sample.Metrics()))
	for _, d := range sample.Metrics() {
		canonical[strings.ToLower(d.Name)] = d.Name
	}

	for key := range v.GetStringMap("thresholds") {
		value := v.GetFloat64("thresholds." + key)
		if key == "dpcaveragepercent" {
			thresholds.DPCAveragePercent = value
			continue
		}
		if name, ok := canonical[key]; ok {
			thresholds.Breach[name] = value
		}
	}

	return thresholds
}
