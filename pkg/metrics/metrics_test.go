package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	c := New()
	c.Converted(200*time.Millisecond, 12, 4096)
	c.Converted(100*time.Millisecond, 3, 1024)
	c.Failed()
	c.Skipped()
	c.Skipped()

	if got := testutil.ToFloat64(c.FramesConverted); got != 2 {
		t.Errorf("Expected 2 converted, got %v", got)
	}
	if got := testutil.ToFloat64(c.FramesFailed); got != 1 {
		t.Errorf("Expected 1 failed, got %v", got)
	}
	if got := testutil.ToFloat64(c.FramesSkipped); got != 2 {
		t.Errorf("Expected 2 skipped, got %v", got)
	}
	if got := testutil.ToFloat64(c.TilesWritten); got != 15 {
		t.Errorf("Expected 15 tiles, got %v", got)
	}
	if got := testutil.ToFloat64(c.BytesWritten); got != 5120 {
		t.Errorf("Expected 5120 bytes, got %v", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.Converted(time.Second, 1, 1)
	c.Failed()
	c.Skipped()
	if err := c.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if c.Registry() != nil {
		t.Error("Expected nil registry")
	}
}

func TestWriteTextfile(t *testing.T) {
	c := New()
	c.Failed()

	path := filepath.Join(t.TempDir(), "dcm2dzi.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "dcm2dzi_frames_failed_total 1") {
		t.Errorf("Expected failed counter in output, got:\n%s", data)
	}
}
