// Package config provides configuration loading and management for dosevolume.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"dosevolume/pkg/rterr"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores is the number of workers for voxelization and threshold
		// evaluation; 0 uses every available core
		NumCores int `yaml:"numCores"`

		// Strict rejects self-intersecting or overlapping contours
		Strict bool `yaml:"strict"`

		// MaskEngine selects the voxelization engine: "contour" or "center"
		MaskEngine string `yaml:"maskEngine"`

		// ZTolerance is the contour planarity tolerance in slice index units
		ZTolerance float64 `yaml:"zTolerance"`
	} `yaml:"processing"`

	// Histogram parameters
	DVH struct {
		// NumberOfBins is the number of dose bins
		NumberOfBins int `yaml:"numberOfBins"`

		// DeltaD is the bin width in Gy; 0 derives it from the maximum dose
		DeltaD float64 `yaml:"deltaD"`
	} `yaml:"dvh"`

	// Statistics parameters
	Statistics struct {
		// Complex enables the Dx/Vx/MOHx/MOCx/MaxOHx/MinOCx measures
		Complex bool `yaml:"complex"`

		// DoseThresholds are fractions of the reference dose evaluated by Vx
		DoseThresholds []float64 `yaml:"doseThresholds"`

		// VolumeThresholds are fractions of the structure volume evaluated by
		// the volume based measures
		VolumeThresholds []float64 `yaml:"volumeThresholds"`

		// ReferenceDose in Gy; 0 uses the maximum dose
		ReferenceDose float64 `yaml:"referenceDose"`
	} `yaml:"statistics"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// PlotFile receives the DVH plot when set (.png, .svg or .pdf)
		PlotFile string `yaml:"plotFile"`

		// MaskImageDir receives one JPEG per mask slice when set
		MaskImageDir string `yaml:"maskImageDir"`

		// MaskThreshold hides mask voxels at or below this fraction in listings
		MaskThreshold float64 `yaml:"maskThreshold"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = 0
	cfg.Processing.Strict = false
	cfg.Processing.MaskEngine = "contour"
	cfg.Processing.ZTolerance = 1e-3

	cfg.DVH.NumberOfBins = 201
	cfg.DVH.DeltaD = 0

	cfg.Statistics.Complex = false
	cfg.Statistics.DoseThresholds = []float64{0.02, 0.05, 0.1, 0.9, 0.95, 0.98}
	cfg.Statistics.VolumeThresholds = []float64{0.02, 0.05, 0.1, 0.9, 0.95, 0.98}
	cfg.Statistics.ReferenceDose = 0

	cfg.Output.Verbose = false
	cfg.Output.MaskThreshold = 0

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", configPath)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Processing.MaskEngine {
	case "", "contour", "center":
	default:
		return errors.Wrapf(rterr.ErrInvalidParameter, "unknown mask engine %q", c.Processing.MaskEngine)
	}
	if c.Processing.NumCores < 0 {
		return errors.Wrapf(rterr.ErrInvalidParameter, "numCores must not be negative, got %d", c.Processing.NumCores)
	}
	if c.Processing.ZTolerance < 0 {
		return errors.Wrapf(rterr.ErrInvalidParameter, "zTolerance must not be negative, got %g", c.Processing.ZTolerance)
	}
	if c.DVH.NumberOfBins <= 0 {
		return errors.Wrapf(rterr.ErrInvalidParameter, "numberOfBins must be positive, got %d", c.DVH.NumberOfBins)
	}
	if c.DVH.DeltaD < 0 {
		return errors.Wrapf(rterr.ErrInvalidParameter, "deltaD must not be negative, got %g", c.DVH.DeltaD)
	}
	if c.Statistics.ReferenceDose < 0 {
		return errors.Wrapf(rterr.ErrInvalidParameter, "referenceDose must not be negative, got %g", c.Statistics.ReferenceDose)
	}
	for _, list := range [][]float64{c.Statistics.DoseThresholds, c.Statistics.VolumeThresholds} {
		for _, v := range list {
			if v < 0 || v > 1 {
				return errors.Wrapf(rterr.ErrInvalidParameter, "threshold %g outside [0,1]", v)
			}
		}
	}
	if c.Output.MaskThreshold < 0 || c.Output.MaskThreshold >= 1 {
		return errors.Wrapf(rterr.ErrInvalidParameter, "maskThreshold must be in [0,1), got %g", c.Output.MaskThreshold)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
