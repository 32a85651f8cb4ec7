package tiling

import (
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"dcm2dzi/internal/models"
)

func testWriter(t *testing.T, params models.TileParams) *Writer {
	t.Helper()
	w, err := NewWriter(t.TempDir(), params, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	return w
}

func gradient(rows, cols, channels int) *models.NormalizedRaster {
	r := models.NewNormalizedRaster(rows, cols, channels)
	for i := range r.Pix {
		r.Pix[i] = uint8(i % 256)
	}
	return r
}

// TestMaxLevel verifies the level count matches ceil(log2(max(w,h)))
func TestMaxLevel(t *testing.T) {
	cases := []struct{ w, h, want int }{
		{1, 1, 0},
		{2, 1, 1},
		{5, 3, 3},
		{512, 512, 9},
		{513, 10, 10},
		{50000, 40000, 16},
	}
	for _, tc := range cases {
		if got := MaxLevel(tc.w, tc.h); got != tc.want {
			t.Errorf("MaxLevel(%d, %d): expected %d, got %d", tc.w, tc.h, tc.want, got)
		}
	}
}

// TestTileRect verifies overlap only extends interior edges
func TestTileRect(t *testing.T) {
	cases := []struct {
		col, row int
		want     image.Rectangle
	}{
		{0, 0, image.Rect(0, 0, 257, 257)},
		{1, 0, image.Rect(255, 0, 513, 257)},
		{3, 1, image.Rect(767, 255, 800, 300)},
	}
	for _, tc := range cases {
		got := TileRect(tc.col, tc.row, 256, 1, 800, 300)
		if got != tc.want {
			t.Errorf("Tile %d_%d: expected %v, got %v", tc.col, tc.row, tc.want, got)
		}
	}
}

// TestWriteGrayPyramid verifies the directory layout, tile sizes and descriptor
func TestWriteGrayPyramid(t *testing.T) {
	w := testWriter(t, models.TileParams{TileSize: 2, Quality: 90, Overlap: 1})

	res, err := w.Write("scan", gradient(3, 5, 1))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Levels 3..0 are 5x3, 3x2, 2x1 and 1x1: 6 + 2 + 1 + 1 tiles.
	if res.Levels != 4 {
		t.Errorf("Expected 4 levels, got %d", res.Levels)
	}
	if res.Tiles != 10 {
		t.Errorf("Expected 10 tiles, got %d", res.Tiles)
	}
	if res.Bytes <= 0 {
		t.Errorf("Expected positive byte count, got %d", res.Bytes)
	}

	tile := filepath.Join(w.TilesDir("scan"), "3", "1_0.jpg")
	f, err := os.Open(tile)
	if err != nil {
		t.Fatalf("Expected tile %s: %v", tile, err)
	}
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Failed to decode tile: %v", err)
	}
	if cfg.Width != 4 || cfg.Height != 3 {
		t.Errorf("Expected 4x3 tile, got %dx%d", cfg.Width, cfg.Height)
	}

	if _, err := os.Stat(filepath.Join(w.TilesDir("scan"), "0", "0_0.jpg")); err != nil {
		t.Errorf("Expected 1x1 level 0 tile: %v", err)
	}

	d, err := ReadDescriptor(w.DescriptorPath("scan"))
	if err != nil {
		t.Fatalf("ReadDescriptor failed: %v", err)
	}
	if d.Size.Width != 5 || d.Size.Height != 3 || d.TileSize != 2 || d.Overlap != 1 || d.Format != "jpg" {
		t.Errorf("Unexpected descriptor %+v", *d)
	}
}

// TestWriteRGBPyramid verifies colour rasters are tiled
func TestWriteRGBPyramid(t *testing.T) {
	w := testWriter(t, models.TileParams{TileSize: 128, Quality: 75, Overlap: 0})

	res, err := w.Write("photo", gradient(40, 300, 3))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	// Full resolution is 300x40 at level 9: 3 tiles across, 1 down.
	if _, err := os.Stat(filepath.Join(w.TilesDir("photo"), "9", "2_0.jpg")); err != nil {
		t.Errorf("Expected tile 2_0 at level 9: %v", err)
	}
	if res.Levels != 10 {
		t.Errorf("Expected 10 levels, got %d", res.Levels)
	}
}

// TestExistsAndOverwrite verifies completion detection and stale tile removal
func TestExistsAndOverwrite(t *testing.T) {
	w := testWriter(t, models.TileParams{TileSize: 4, Quality: 90, Overlap: 0})

	ok, err := w.Exists("frame")
	if err != nil || ok {
		t.Fatalf("Expected no output yet, got %v (%v)", ok, err)
	}

	if _, err := w.Write("frame", gradient(16, 16, 1)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	ok, err = w.Exists("frame")
	if err != nil || !ok {
		t.Fatalf("Expected output to exist, got %v (%v)", ok, err)
	}

	// A smaller rewrite must not leave tiles from the larger pyramid behind.
	if _, err := w.Write("frame", gradient(4, 4, 1)); err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(w.TilesDir("frame"), "4")); !os.IsNotExist(err) {
		t.Errorf("Expected stale level 4 to be removed, got %v", err)
	}
}

// TestWriterAccessors verifies the writer reports its configuration
func TestWriterAccessors(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dzi")
	params := models.TileParams{TileSize: 512, Quality: 80, Overlap: 2}
	w, err := NewWriter(dir, params, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	if w.Dir() != dir {
		t.Errorf("Expected dir %s, got %s", dir, w.Dir())
	}
	if w.Params() != params {
		t.Errorf("Expected params %+v, got %+v", params, w.Params())
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Expected output directory to be created: %v", err)
	}
	if got := w.DescriptorPath("scan"); got != filepath.Join(dir, "scan.dzi") {
		t.Errorf("Expected descriptor in %s, got %s", dir, got)
	}
}

// TestNewWriterValidation verifies parameter checks
func TestNewWriterValidation(t *testing.T) {
	bad := []models.TileParams{
		{TileSize: 0, Quality: 90},
		{TileSize: 256, Quality: 0},
		{TileSize: 256, Quality: 101},
		{TileSize: 256, Quality: 90, Overlap: -1},
	}
	for _, p := range bad {
		if _, err := NewWriter(t.TempDir(), p, zerolog.Nop()); err == nil {
			t.Errorf("Expected error for %+v, got nil", p)
		}
	}
}

// TestHalveKeepsGray verifies downscaled grayscale levels stay grayscale
func TestHalveKeepsGray(t *testing.T) {
	img, err := gradient(5, 7, 1).Image()
	if err != nil {
		t.Fatal(err)
	}
	half := halve(img)
	if _, ok := half.(*image.Gray); !ok {
		t.Errorf("Expected *image.Gray, got %T", half)
	}
	if b := half.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("Expected 4x3, got %dx%d", b.Dx(), b.Dy())
	}
}
