// Package config provides configuration loading and management for dcm2dzi.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"dcm2dzi/internal/models"
)

// AllowedTileSizes are the tile edge lengths the viewer is built for.
var AllowedTileSizes = []int{128, 256, 512}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Output parameters
	Output struct {
		// Dir receives .dzi descriptors, tile directories and series manifests
		Dir string `yaml:"dir"`
	} `yaml:"output"`

	// Tiling parameters are passed through unchanged to the pyramid writer
	Tiling models.TileParams `yaml:"tiling"`

	// Processing parameters
	Processing struct {
		// Workers is the number of frames of a series converted concurrently
		Workers int `yaml:"workers"`
	} `yaml:"processing"`

	// Logging parameters
	Logging struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level"`

		// Format is console for human-readable output or json
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Metrics parameters
	Metrics struct {
		// Textfile, when set, receives batch metrics in Prometheus text format
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Output.Dir = filepath.Join("output", "dzi")

	cfg.Tiling.TileSize = 256
	cfg.Tiling.Quality = 90
	cfg.Tiling.Overlap = 1

	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	return cfg
}

// Validate checks that every value is usable
func (c *Config) Validate() error {
	validSize := false
	for _, s := range AllowedTileSizes {
		if c.Tiling.TileSize == s {
			validSize = true
		}
	}
	if !validSize {
		return fmt.Errorf("tile size must be one of %v, got %d", AllowedTileSizes, c.Tiling.TileSize)
	}
	if c.Tiling.Quality < 1 || c.Tiling.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", c.Tiling.Quality)
	}
	if c.Tiling.Overlap < 0 {
		return fmt.Errorf("overlap must be non-negative, got %d", c.Tiling.Overlap)
	}
	if c.Processing.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Processing.Workers)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output directory must be set")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes cfg to configPath as YAML, creating parent directories.
// The file is replaced atomically.
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# dcm2dzi configuration. Command-line flags override these values.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	tmp := configPath + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	if err := os.Rename(tmp, configPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// CreateDefaultConfigFile writes the default configuration to configPath.
// An existing file is left alone and reported with an error wrapping
// fs.ErrExist.
func CreateDefaultConfigFile(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file %s: %w", configPath, fs.ErrExist)
	}
	return SaveConfig(DefaultConfig(), configPath)
}
