package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfigIsValid verifies defaults match the viewer's expectations
func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
	if cfg.Tiling.TileSize != 256 || cfg.Tiling.Quality != 90 || cfg.Tiling.Overlap != 1 {
		t.Errorf("Unexpected tiling defaults %+v", cfg.Tiling)
	}
}

// TestLoadMissingConfig verifies a missing file yields defaults
func TestLoadMissingConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Output.Dir != DefaultConfig().Output.Dir {
		t.Errorf("Expected default output dir, got %q", cfg.Output.Dir)
	}
}

// TestLoadPartialConfig verifies file values override only what they set
func TestLoadPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcm2dzi.yaml")
	data := []byte("tiling:\n  tileSize: 512\n  quality: 95\nprocessing:\n  workers: 3\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Tiling.TileSize != 512 || cfg.Tiling.Quality != 95 {
		t.Errorf("Expected tile size 512 quality 95, got %+v", cfg.Tiling)
	}
	if cfg.Tiling.Overlap != 1 {
		t.Errorf("Expected default overlap 1, got %d", cfg.Tiling.Overlap)
	}
	if cfg.Processing.Workers != 3 {
		t.Errorf("Expected 3 workers, got %d", cfg.Processing.Workers)
	}
}

// TestSaveAndLoadConfig verifies a saved config reads back the same
func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dcm2dzi.yaml")
	cfg := DefaultConfig()
	cfg.Logging.Format = "json"
	cfg.Metrics.Textfile = "/var/lib/node_exporter/dcm2dzi.prom"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("Expected %+v, got %+v", *cfg, *loaded)
	}
}

// TestLoadInvalidYAML verifies parse errors are reported
func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("tiling: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for invalid YAML, got nil")
	}
}

// TestValidate verifies each rule
func TestValidate(t *testing.T) {
	mutations := map[string]func(*Config){
		"tile size":  func(c *Config) { c.Tiling.TileSize = 300 },
		"quality":    func(c *Config) { c.Tiling.Quality = 0 },
		"overlap":    func(c *Config) { c.Tiling.Overlap = -1 },
		"workers":    func(c *Config) { c.Processing.Workers = 0 },
		"output dir": func(c *Config) { c.Output.Dir = "" },
	}
	for name, mutate := range mutations {
		cfg := DefaultConfig()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error, got nil", name)
		}
	}
}

// TestCreateDefaultConfigFile verifies the file is written once and never clobbered
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "dcm2dzi.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("Expected defaults, got %+v", *cfg)
	}

	if err := os.WriteFile(path, []byte("tiling:\n  tileSize: 128\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := CreateDefaultConfigFile(path); !errors.Is(err, fs.ErrExist) {
		t.Errorf("Expected fs.ErrExist, got %v", err)
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Tiling.TileSize != 128 {
		t.Errorf("Expected existing file to be kept, got tile size %d", cfg.Tiling.TileSize)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("Expected no temp file left behind, got %v", err)
	}
}
