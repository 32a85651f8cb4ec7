package main

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"dcm2dzi/pkg/config"
)

// TestInitConfig verifies the default config is written and then protected
func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dcm2dzi.yaml")

	var out bytes.Buffer
	if err := initConfig(&out, path); err != nil {
		t.Fatalf("initConfig failed: %v", err)
	}
	if !strings.Contains(out.String(), path) {
		t.Errorf("Expected path in output, got %q", out.String())
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected written config to be valid, got %v", err)
	}
	if cfg.Tiling != config.DefaultConfig().Tiling {
		t.Errorf("Expected default tiling, got %+v", cfg.Tiling)
	}

	if err := initConfig(&out, path); !errors.Is(err, fs.ErrExist) {
		t.Errorf("Expected fs.ErrExist on second run, got %v", err)
	}
}
