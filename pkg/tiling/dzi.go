// Package tiling writes finished rasters as Deep Zoom Image (DZI) pyramids:
// a <name>.dzi XML descriptor next to a <name>_files directory holding one
// sub-directory of JPEG tiles per zoom level.
package tiling

import (
	"encoding/xml"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"dcm2dzi/internal/models"
)

// DeepZoomNamespace is the XML namespace of DZI descriptors.
const DeepZoomNamespace = "http://schemas.microsoft.com/deepzoom/2008"

// Descriptor is the content of a .dzi file.
type Descriptor struct {
	XMLName  xml.Name `xml:"Image"`
	Xmlns    string   `xml:"xmlns,attr"`
	Format   string   `xml:"Format,attr"`
	Overlap  int      `xml:"Overlap,attr"`
	TileSize int      `xml:"TileSize,attr"`
	Size     Size     `xml:"Size"`
}

// Size is the full-resolution size recorded in a descriptor.
type Size struct {
	Height int `xml:"Height,attr"`
	Width  int `xml:"Width,attr"`
}

// Result summarises one written pyramid.
type Result struct {
	// Width and Height of the full-resolution level
	Width  int
	Height int

	// Levels is the number of zoom levels, from 1x1 up to full resolution
	Levels int

	// Tiles is the number of JPEG tiles written
	Tiles int

	// Bytes is the total size of the tiles and the descriptor
	Bytes int64
}

// Writer produces DZI pyramids in a single output directory.
type Writer struct {
	// dir receives <name>.dzi and <name>_files/
	dir string

	// params controls tile size, overlap and JPEG quality
	params models.TileParams

	logger zerolog.Logger
}

// NewWriter creates a writer rooted at dir, creating it if needed.
func NewWriter(dir string, params models.TileParams, logger zerolog.Logger) (*Writer, error) {
	if params.TileSize <= 0 {
		return nil, fmt.Errorf("tile size must be positive, got %d", params.TileSize)
	}
	if params.Quality < 1 || params.Quality > 100 {
		return nil, fmt.Errorf("quality must be between 1 and 100, got %d", params.Quality)
	}
	if params.Overlap < 0 {
		return nil, fmt.Errorf("overlap must be non-negative, got %d", params.Overlap)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Writer{
		dir:    dir,
		params: params,
		logger: logger.With().Str("component", "dzi").Logger(),
	}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Params returns the tiling parameters.
func (w *Writer) Params() models.TileParams {
	return w.params
}

// DescriptorPath returns the path of the .dzi file for name.
func (w *Writer) DescriptorPath(name string) string {
	return filepath.Join(w.dir, name+".dzi")
}

// TilesDir returns the tile directory for name.
func (w *Writer) TilesDir(name string) string {
	return filepath.Join(w.dir, name+"_files")
}

// Exists reports whether a complete pyramid for name is present. The
// descriptor is written last, so its presence marks completion.
func (w *Writer) Exists(name string) (bool, error) {
	_, err := os.Stat(w.DescriptorPath(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Write tiles r under name, replacing any previous output of that name.
func (w *Writer) Write(name string, r *models.NormalizedRaster) (Result, error) {
	img, err := r.Image()
	if err != nil {
		return Result{}, err
	}

	// Drop the descriptor first so a half-written pyramid is never reported
	// as complete.
	if err := os.Remove(w.DescriptorPath(name)); err != nil && !os.IsNotExist(err) {
		return Result{}, fmt.Errorf("failed to remove old descriptor: %w", err)
	}
	if err := os.RemoveAll(w.TilesDir(name)); err != nil {
		return Result{}, fmt.Errorf("failed to remove old tiles: %w", err)
	}

	width, height := r.Cols, r.Rows
	maxLevel := MaxLevel(width, height)
	res := Result{Width: width, Height: height, Levels: maxLevel + 1}

	level := img
	for l := maxLevel; l >= 0; l-- {
		if l < maxLevel {
			level = halve(level)
		}
		n, size, err := w.writeLevel(name, l, level)
		if err != nil {
			return res, fmt.Errorf("level %d: %w", l, err)
		}
		res.Tiles += n
		res.Bytes += size
	}

	size, err := w.writeDescriptor(name, width, height)
	if err != nil {
		return res, err
	}
	res.Bytes += size

	w.logger.Debug().
		Str("name", name).
		Int("levels", res.Levels).
		Int("tiles", res.Tiles).
		Int64("bytes", res.Bytes).
		Msg("pyramid written")
	return res, nil
}

// MaxLevel returns the index of the full-resolution level: the smallest l
// with 2^l >= max(width, height).
func MaxLevel(width, height int) int {
	m := width
	if height > m {
		m = height
	}
	l := 0
	for (1 << l) < m {
		l++
	}
	return l
}

// TileRect returns the pixel rectangle covered by tile (col, row) in a level
// of the given size. Interior edges are extended by overlap pixels.
func TileRect(col, row, tileSize, overlap, levelWidth, levelHeight int) image.Rectangle {
	x0 := col * tileSize
	y0 := row * tileSize
	if col > 0 {
		x0 -= overlap
	}
	if row > 0 {
		y0 -= overlap
	}
	x1 := min((col+1)*tileSize+overlap, levelWidth)
	y1 := min((row+1)*tileSize+overlap, levelHeight)
	return image.Rect(x0, y0, x1, y1)
}

func (w *Writer) writeLevel(name string, level int, img image.Image) (int, int64, error) {
	dir := filepath.Join(w.TilesDir(name), fmt.Sprint(level))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, 0, err
	}

	sub, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return 0, 0, fmt.Errorf("image type %T cannot be tiled", img)
	}

	b := img.Bounds()
	ts := w.params.TileSize
	cols := (b.Dx() + ts - 1) / ts
	rows := (b.Dy() + ts - 1) / ts

	var tiles int
	var total int64
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			rect := TileRect(col, row, ts, w.params.Overlap, b.Dx(), b.Dy()).Add(b.Min)
			path := filepath.Join(dir, fmt.Sprintf("%d_%d.jpg", col, row))
			size, err := w.saveTile(sub.SubImage(rect), path)
			if err != nil {
				return tiles, total, err
			}
			tiles++
			total += size
		}
	}
	return tiles, total, nil
}

// saveTile encodes one tile as JPEG.
func (w *Writer) saveTile(img image.Image, filename string) (int64, error) {
	file, err := os.Create(filename)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: w.params.Quality}); err != nil {
		return 0, err
	}
	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (w *Writer) writeDescriptor(name string, width, height int) (int64, error) {
	d := Descriptor{
		Xmlns:    DeepZoomNamespace,
		Format:   "jpg",
		Overlap:  w.params.Overlap,
		TileSize: w.params.TileSize,
		Size:     Size{Height: height, Width: width},
	}
	data, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return 0, err
	}
	data = append([]byte(xml.Header), data...)
	data = append(data, '\n')

	path := w.DescriptorPath(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write descriptor: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to write descriptor: %w", err)
	}
	return int64(len(data)), nil
}

// ReadDescriptor parses a .dzi file.
func ReadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Descriptor
	if err := xml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("error parsing descriptor: %w", err)
	}
	return &d, nil
}

// halve returns img downscaled to ceil(w/2) x ceil(h/2), keeping grayscale
// images grayscale.
func halve(img image.Image) image.Image {
	b := img.Bounds()
	rect := image.Rect(0, 0, (b.Dx()+1)/2, (b.Dy()+1)/2)

	var dst draw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewRGBA(rect)
	}
	draw.BiLinear.Scale(dst, rect, img, b, draw.Src, nil)
	return dst
}
