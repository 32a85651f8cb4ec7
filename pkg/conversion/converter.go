// Package conversion turns scan files into tiled outputs. A Converter handles
// one input: it loads the dataset, classifies its layout and either converts a
// single frame or hands a multi-frame series to the batch Orchestrator.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"dcm2dzi/internal/models"
	"dcm2dzi/pkg/dataset"
	"dcm2dzi/pkg/layout"
	"dcm2dzi/pkg/metadata"
	"dcm2dzi/pkg/metrics"
	"dcm2dzi/pkg/radiometric"
	"dcm2dzi/pkg/tiling"
)

// Loader reads a scan file into a RawDataset.
type Loader interface {
	Load(path string) (*models.RawDataset, error)
}

// Sink receives finished rasters. *tiling.Writer is the production sink.
type Sink interface {
	// Exists reports whether a complete output named name is present
	Exists(name string) (bool, error)

	// Write stores r under name, replacing any previous output
	Write(name string, r *models.NormalizedRaster) (tiling.Result, error)
}

// Options configures a Converter.
type Options struct {
	// OutputDir receives series manifests
	OutputDir string

	// Params are recorded in series manifests
	Params models.TileParams

	// Workers bounds the number of frames converted at once. Values below 1
	// mean one.
	Workers int

	// Overwrite lets single conversions replace an existing output
	Overwrite bool

	Metrics *metrics.Collector
	Logger  zerolog.Logger
}

// Request describes one input to convert.
type Request struct {
	// Input is the path of the scan or image
	Input string

	// BaseName names the outputs; empty means the input file name without
	// its extension
	BaseName string

	// Frame selects a frame, or all frames, of a multi-frame dataset
	Frame layout.FrameRequest
}

// Result describes a finished conversion. Batch is set when the input was
// converted as a series; otherwise Name and Tiles describe the single output.
type Result struct {
	Name     string
	Layout   layout.FrameLayout
	Metadata models.ImageMetadata
	Frame    int
	Tiles    tiling.Result
	Batch    *Report
}

// Converter converts single inputs.
type Converter struct {
	loader Loader
	sink   Sink
	opts   Options
	logger zerolog.Logger
}

// New creates a converter.
func New(loader Loader, sink Sink, opts Options) *Converter {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Converter{
		loader: loader,
		sink:   sink,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "converter").Logger(),
	}
}

// BaseName returns the default output name for an input path.
func BaseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Convert converts req.Input. Generic images are tiled as they are. Scans are
// loaded and classified; a multi-frame stack goes to the batch path when a
// frame or all frames were requested, and otherwise fails with
// *layout.NeedsDisambiguationError before any output is written.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	base := req.BaseName
	if base == "" {
		base = BaseName(req.Input)
	}
	logger := c.logger.With().Str("file", req.Input).Str("base_name", base).Logger()

	if dataset.IsRaster(req.Input) {
		return c.ConvertRaster(req.Input, base)
	}
	if !dataset.IsDICOM(req.Input) {
		return nil, &dataset.LoadError{Path: req.Input, Err: fmt.Errorf("unsupported file type %q", filepath.Ext(req.Input))}
	}

	ds, err := c.loader.Load(req.Input)
	if err != nil {
		return nil, err
	}
	meta := metadata.Extract(ds)
	l := layout.Classify(ds.Shape)

	logger.Info().
		Stringer("layout", l).
		Str("modality", meta.Modality).
		Str("photometric", ds.Photometric()).
		Msg("dataset loaded")

	if l.Kind == layout.Unsupported {
		return nil, &layout.UnsupportedLayoutError{Shape: l.Shape, Reason: l.Reason}
	}

	if l.Kind == layout.MultiFrameStack && l.Frames > 1 && (req.Frame.AllFrames || req.Frame.Index != nil) {
		frames, err := framesFor(l, req.Frame)
		if err != nil {
			return nil, err
		}
		orch := NewOrchestrator(c.sink, c.opts)
		report, err := orch.Run(ctx, Series{Dataset: ds, Layout: l, Metadata: meta, BaseName: base}, frames)
		if report == nil {
			return nil, err
		}
		return &Result{Name: base, Layout: l, Metadata: meta, Batch: report}, err
	}

	index, err := layout.Select(l, req.Frame)
	if err != nil {
		return nil, err
	}
	if err := c.guard(base); err != nil {
		return nil, err
	}

	start := time.Now()
	raster, err := convertFrame(ds, l, radiometric.FromAttributes(ds.Attributes), index, logger)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", index, err)
	}
	tiles, err := c.sink.Write(base, raster)
	if err != nil {
		return nil, fmt.Errorf("error writing %s: %w", base, err)
	}
	c.opts.Metrics.Converted(time.Since(start), tiles.Tiles, tiles.Bytes)

	logger.Info().
		Int("frame", index).
		Int("width", tiles.Width).
		Int("height", tiles.Height).
		Int("levels", tiles.Levels).
		Int("tiles", tiles.Tiles).
		Msg("conversion complete")

	return &Result{Name: base, Layout: l, Metadata: meta, Frame: index, Tiles: tiles}, nil
}

// ConvertRaster tiles a generic image without radiometric processing.
func (c *Converter) ConvertRaster(path, base string) (*Result, error) {
	if base == "" {
		base = BaseName(path)
	}
	if err := c.guard(base); err != nil {
		return nil, err
	}

	start := time.Now()
	raster, err := dataset.LoadRaster(path)
	if err != nil {
		return nil, err
	}
	tiles, err := c.sink.Write(base, raster)
	if err != nil {
		return nil, fmt.Errorf("error writing %s: %w", base, err)
	}
	c.opts.Metrics.Converted(time.Since(start), tiles.Tiles, tiles.Bytes)

	c.logger.Info().
		Str("file", path).
		Str("base_name", base).
		Str("mode", raster.Mode()).
		Int("tiles", tiles.Tiles).
		Msg("image converted")

	meta := metadata.Empty()
	meta.Rows, meta.Columns = raster.Rows, raster.Cols
	return &Result{
		Name:     base,
		Layout:   layout.Classify(raster.Shape()),
		Metadata: meta,
		Tiles:    tiles,
	}, nil
}

// guard refuses to replace an existing output unless Overwrite is set.
func (c *Converter) guard(name string) error {
	if c.opts.Overwrite {
		return nil
	}
	exists, err := c.sink.Exists(name)
	if err != nil {
		return fmt.Errorf("error checking output %s: %w", name, err)
	}
	if exists {
		return fmt.Errorf("%s: %w", name, ErrOutputExists)
	}
	return nil
}

// framesFor lists the frames a batch request covers. An explicit index is
// validated here so that an out-of-range request fails before any work.
func framesFor(l layout.FrameLayout, req layout.FrameRequest) ([]int, error) {
	if req.Index != nil {
		i, err := layout.Select(l, layout.FrameRequest{Index: req.Index})
		if err != nil {
			return nil, err
		}
		return []int{i}, nil
	}
	frames := make([]int, l.Frames)
	for i := range frames {
		frames[i] = i
	}
	return frames, nil
}

// convertFrame runs extraction, the radiometric transform and normalization
// for one frame. It only reads ds.
func convertFrame(ds *models.RawDataset, l layout.FrameLayout, t radiometric.Transform, index int, logger zerolog.Logger) (*models.NormalizedRaster, error) {
	frame, err := layout.Extract(l, ds.Pixels, index)
	if err != nil {
		return nil, err
	}
	values, err := t.Apply(frame.Pixels)
	if err != nil {
		return nil, err
	}

	if e := logger.Debug(); e.Enabled() {
		mean, std := stat.MeanStdDev(values, nil)
		e.Int("frame", index).Float64("mean", mean).Float64("stddev", std).Msg("frame transformed")
	}

	return radiometric.Normalize(values, frame.Rows, frame.Cols, frame.Channels, ds.Photometric())
}

// IsControl reports whether err asks the caller for more input rather than
// reporting a failure.
func IsControl(err error) bool {
	var nd *layout.NeedsDisambiguationError
	return errors.As(err, &nd)
}
