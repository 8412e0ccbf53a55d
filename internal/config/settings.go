package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/sensitivity-calculator/internal/logging"
	"github.com/signalsfoundry/sensitivity-calculator/internal/observability"
	"github.com/signalsfoundry/sensitivity-calculator/internal/runner"
	"github.com/signalsfoundry/sensitivity-calculator/internal/trial"
	"github.com/signalsfoundry/sensitivity-calculator/model"
)

// EnvPrefix prefixes every settings environment variable, e.g.
// SENS_TRIALS or SENS_SPEC_RES.
const EnvPrefix = "SENS"

// Settings are the program-level run parameters.
type Settings struct {
	Experiment   string  `mapstructure:"experiment"`
	Trials       int     `mapstructure:"trials"`
	Observations int     `mapstructure:"observations"`
	Workers      int     `mapstructure:"workers"`
	Seed         uint64  `mapstructure:"seed"`
	Nominal      bool    `mapstructure:"nominal"`
	Elevation    string  `mapstructure:"elevation"` // deg or NA
	PWV          string  `mapstructure:"pwv"`       // mm or NA
	SpecRes      float64 `mapstructure:"spec_res"`  // GHz
	Foregrounds  bool    `mapstructure:"foregrounds"`
	Correlations bool    `mapstructure:"correlations"`
	Bunching     float64 `mapstructure:"bunching"`

	AtmosphereDir string `mapstructure:"atmosphere_dir"`
	// CorrelationFiles maps correlation table names to CSV paths.
	CorrelationFiles map[string]string `mapstructure:"correlation_files"`

	OutputDir string        `mapstructure:"output_dir"`
	Plot      string        `mapstructure:"plot"`     // png, svg or none
	Progress  time.Duration `mapstructure:"progress"` // 0 disables progress logs

	// Log and Tracing are read from their sections, or SENS_LOG_* and
	// SENS_TRACING_*.
	Log     logging.Config              `mapstructure:"log"`
	Tracing observability.TracingConfig `mapstructure:"tracing"`
}

// DefaultSettings returns the settings used when nothing overrides them.
func DefaultSettings() Settings {
	return Settings{
		Trials:       1,
		Observations: 1,
		Elevation:    "NA",
		PWV:          "NA",
		SpecRes:      1.0,
		Bunching:     1.0,
		OutputDir:    ".",
		Plot:         "png",
		Progress:     30 * time.Second,
		Log:          logging.DefaultConfig(),
		Tracing:      observability.DefaultTracingConfig(),
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("experiment", d.Experiment)
	v.SetDefault("trials", d.Trials)
	v.SetDefault("observations", d.Observations)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("nominal", d.Nominal)
	v.SetDefault("elevation", d.Elevation)
	v.SetDefault("pwv", d.PWV)
	v.SetDefault("spec_res", d.SpecRes)
	v.SetDefault("foregrounds", d.Foregrounds)
	v.SetDefault("correlations", d.Correlations)
	v.SetDefault("bunching", d.Bunching)
	v.SetDefault("atmosphere_dir", d.AtmosphereDir)
	v.SetDefault("correlation_files", map[string]string{})
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("plot", d.Plot)
	v.SetDefault("progress", d.Progress)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.add_source", d.Log.AddSource)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.sample_ratio", d.Tracing.SampleRatio)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// LoadSettings layers defaults, the optional settings file, SENS_*
// environment variables and any flags that were set on fs, in increasing
// priority. Flag names use dashes for underscores.
func LoadSettings(path string, fs *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read settings %s: %v: %w", path, err, ErrInvalidConfig)
		}
	}
	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !isSettingKey(key) {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return Settings{}, fmt.Errorf("bind flags: %v: %w", bindErr, ErrInvalidConfig)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %v: %w", err, ErrInvalidConfig)
	}
	return s, s.Validate()
}

func isSettingKey(key string) bool {
	switch key {
	case "experiment", "trials", "observations", "workers", "seed", "nominal",
		"elevation", "pwv", "spec_res", "foregrounds", "correlations", "bunching",
		"atmosphere_dir", "output_dir", "plot", "progress":
		return true
	}
	return false
}

// Validate checks ranges and the override notation.
func (s Settings) Validate() error {
	switch {
	case s.Trials <= 0:
		return fmt.Errorf("trials must be positive, got %d: %w", s.Trials, ErrInvalidConfig)
	case s.Observations <= 0:
		return fmt.Errorf("observations must be positive, got %d: %w", s.Observations, ErrInvalidConfig)
	case s.Workers < 0:
		return fmt.Errorf("workers must not be negative, got %d: %w", s.Workers, ErrInvalidConfig)
	case s.SpecRes <= 0:
		return fmt.Errorf("spec_res must be positive, got %g: %w", s.SpecRes, ErrInvalidConfig)
	case s.Bunching < 0:
		return fmt.Errorf("bunching must not be negative, got %g: %w", s.Bunching, ErrInvalidConfig)
	case s.Progress < 0:
		return fmt.Errorf("progress interval must not be negative, got %s: %w", s.Progress, ErrInvalidConfig)
	}
	switch strings.ToLower(s.Plot) {
	case "", "none", "png", "svg":
	default:
		return fmt.Errorf("plot format %q: %w", s.Plot, ErrInvalidConfig)
	}
	if err := s.Log.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidConfig)
	}
	if err := s.Tracing.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidConfig)
	}
	if _, err := override("elevation", s.Elevation); err != nil {
		return err
	}
	if _, err := override("pwv", s.PWV); err != nil {
		return err
	}
	return nil
}

// override parses an optional scalar site override.
func override(name, s string) (model.Value, error) {
	p, err := ParseParameter(s, UnitNone)
	if err != nil {
		return model.NA, fmt.Errorf("%s: %w", name, err)
	}
	if p.IsNA() {
		return model.NA, nil
	}
	if len(p.Mean) != 1 {
		return model.NA, fmt.Errorf("%s override must be a single value: %w", name, ErrInvalidConfig)
	}
	return model.Some(p.Mean[0]), nil
}

// TrialOptions converts the settings into trial evaluation options.
func (s Settings) TrialOptions() (trial.Options, error) {
	elev, err := override("elevation", s.Elevation)
	if err != nil {
		return trial.Options{}, err
	}
	pwv, err := override("pwv", s.PWV)
	if err != nil {
		return trial.Options{}, err
	}
	return trial.Options{
		Observations: s.Observations,
		SpecRes:      s.SpecRes * UnitGHz,
		Nominal:      s.Nominal,
		Elevation:    elev,
		PWV:          pwv,
		Foregrounds:  s.Foregrounds,
		Correlations: s.Correlations,
		Bunching:     s.Bunching,
	}, nil
}

// RunnerConfig converts the settings into the runner configuration.
func (s Settings) RunnerConfig() runner.Config {
	return runner.Config{Trials: s.Trials, Workers: s.Workers, Seed: s.Seed}
}
