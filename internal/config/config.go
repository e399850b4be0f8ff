// Package config loads the run parameters. Every field has a default
// mirroring the values the procedure has historically used, so an empty or
// missing file yields a working configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses yaml strings like "200ms" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) D() time.Duration { return time.Duration(d) }

// Measure parameterizes averaged reads.
type Measure struct {
	Count          int      `yaml:"count"`
	Delay          Duration `yaml:"delay"`
	MaxFluctuation float64  `yaml:"max_fluctuation"`
	// MaxRetries caps fluctuation retries; 0 keeps asking the operator.
	MaxRetries int `yaml:"max_retries"`
}

// Motion parameterizes the movers.
type Motion struct {
	GapTolerance        float64  `yaml:"gap_tolerance"`
	InterspaceTolerance float64  `yaml:"interspace_tolerance"`
	Poll                Duration `yaml:"poll"`
	Settle              Duration `yaml:"settle"`
	Timeout             Duration `yaml:"timeout"`
	MovingDone          float64  `yaml:"moving_done"`
}

type Config struct {
	// DataDir is the base calibration-data directory.
	DataDir string `yaml:"data_dir"`

	Gap0      float64   `yaml:"gap0"`
	Gap1      float64   `yaml:"gap1"`
	Blocks    []float64 `yaml:"blocks"`
	GapSettle Duration  `yaml:"gap_settle"`

	Measure Measure `yaml:"measure"`
	Motion  Motion  `yaml:"motion"`

	// CATimeout is the per-call channel access timeout.
	CATimeout Duration `yaml:"ca_timeout"`
}

// Default mirrors the historical procedure constants.
func Default() Config {
	return Config{
		DataDir: filepath.Join(os.Getenv("PHYSICS_DATA"), "undMotion"),
		Gap0:    10,
		Gap1:    22,
		Blocks: []float64{
			7.4, 7,
			6.5, 6,
			5.5, 5,
			4.5, 4,
			3.5, 3,
			2.5, 2,
			1.5, 1,
			0.0,
		},
		GapSettle: Duration(500 * time.Millisecond),
		Measure: Measure{
			Count:          10,
			Delay:          Duration(200 * time.Millisecond),
			MaxFluctuation: 0.007,
		},
		Motion: Motion{
			GapTolerance:        0.001,
			InterspaceTolerance: 0.005,
			Poll:                Duration(500 * time.Millisecond),
			Settle:              Duration(100 * time.Millisecond),
			Timeout:             Duration(5 * time.Minute),
			MovingDone:          1,
		},
		CATimeout: Duration(time.Second),
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is empty (set PHYSICS_DATA or data_dir)")
	}
	if c.Gap0 == c.Gap1 {
		return fmt.Errorf("reference gaps must differ (both %v)", c.Gap0)
	}
	if len(c.Blocks) == 0 {
		return fmt.Errorf("no block thicknesses configured")
	}
	seen := map[float64]bool{}
	for _, b := range c.Blocks {
		if seen[b] {
			return fmt.Errorf("duplicate block thickness %v", b)
		}
		seen[b] = true
	}
	if c.Measure.Count <= 0 {
		return fmt.Errorf("measure.count must be > 0")
	}
	if c.Measure.MaxFluctuation <= 0 {
		return fmt.Errorf("measure.max_fluctuation must be > 0")
	}
	if c.Motion.GapTolerance <= 0 || c.Motion.InterspaceTolerance <= 0 {
		return fmt.Errorf("motion tolerances must be > 0")
	}
	return nil
}
