package conversion

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dcm2dzi/internal/models"
	"dcm2dzi/pkg/layout"
	"dcm2dzi/pkg/radiometric"
)

// Series is a loaded multi-frame dataset ready for batch conversion.
type Series struct {
	Dataset  *models.RawDataset
	Layout   layout.FrameLayout
	Metadata models.ImageMetadata
	BaseName string
}

// FrameFailure records one frame that could not be converted.
type FrameFailure struct {
	Index int
	Err   error
}

// Report summarises a batch run.
type Report struct {
	// Requested is the number of frames the run covered
	Requested int

	// Converted frames were written by this run
	Converted int

	// Skipped frames already had a complete output
	Skipped int

	// Failures are the frames that failed, in no particular order
	Failures []FrameFailure

	// Manifest is what was written to ManifestPath
	Manifest     models.SeriesManifest
	ManifestPath string

	Duration time.Duration
}

// Failed returns the number of failed frames.
func (r *Report) Failed() int {
	return len(r.Failures)
}

// Orchestrator converts the frames of a series. Every frame is independent:
// a failing frame is logged and counted and the run goes on.
type Orchestrator struct {
	sink   Sink
	opts   Options
	logger zerolog.Logger
}

// NewOrchestrator creates an orchestrator writing frames to sink and the
// manifest to opts.OutputDir.
func NewOrchestrator(sink Sink, opts Options) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Orchestrator{
		sink:   sink,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "batch").Logger(),
	}
}

// Run converts the given frames of s, skipping frames whose output already
// exists, and then writes the series manifest. A nil frames slice means every
// frame. The manifest is written even when frames fail or ctx is cancelled;
// only a manifest write failure returns a nil Report.
func (o *Orchestrator) Run(ctx context.Context, s Series, frames []int) (*Report, error) {
	if s.Layout.Kind != layout.MultiFrameStack {
		return nil, fmt.Errorf("batch conversion needs a multi-frame stack, got %s", s.Layout)
	}
	if frames == nil {
		frames = make([]int, s.Layout.Frames)
		for i := range frames {
			frames[i] = i
		}
	}

	logger := o.logger.With().Str("base_name", s.BaseName).Logger()
	start := time.Now()
	report := &Report{Requested: len(frames)}

	// Existence checks happen here, before any worker starts, so no frame is
	// both skipped and written.
	var pending []int
	for _, i := range frames {
		exists, err := o.sink.Exists(FrameName(s.BaseName, i))
		if err != nil {
			logger.Warn().Err(err).Int("frame", i).Msg("could not check existing output")
		}
		if exists {
			report.Skipped++
			o.opts.Metrics.Skipped()
			logger.Info().Int("frame", i).Msg("frame already converted, skipping")
			continue
		}
		pending = append(pending, i)
	}

	logger.Info().
		Int("total_frames", s.Layout.Frames).
		Int("requested", len(frames)).
		Int("pending", len(pending)).
		Int("workers", o.opts.Workers).
		Msg("converting series")

	transform := radiometric.FromAttributes(s.Dataset.Attributes)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.opts.Workers)

	for _, i := range pending {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := o.convert(s, transform, i, logger)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, FrameFailure{Index: i, Err: err})
				o.opts.Metrics.Failed()
				logger.Warn().Err(err).Int("frame", i).Msg("frame failed")
				return nil
			}
			report.Converted++
			if report.Converted%10 == 0 {
				logger.Info().Int("converted", report.Converted).Int("pending", len(pending)).Msg("progress")
			}
			return nil
		})
	}
	g.Wait()

	report.Duration = time.Since(start)
	report.Manifest = models.SeriesManifest{
		BaseName:        s.BaseName,
		TotalFrames:     s.Layout.Frames,
		ConvertedFrames: report.Converted,
		Metadata:        s.Metadata,
		TileSize:        o.opts.Params.TileSize,
		Quality:         o.opts.Params.Quality,
	}
	report.ManifestPath = ManifestPath(o.opts.OutputDir, s.BaseName)

	if err := os.MkdirAll(o.opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating output directory: %w", err)
	}
	if err := WriteManifest(report.ManifestPath, report.Manifest); err != nil {
		return nil, err
	}

	logger.Info().
		Int("converted", report.Converted).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed()).
		Dur("duration", report.Duration).
		Str("manifest", report.ManifestPath).
		Msg("series complete")

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("series %s interrupted: %w", s.BaseName, err)
	}
	return report, nil
}

// convert produces and writes one frame.
func (o *Orchestrator) convert(s Series, t radiometric.Transform, index int, logger zerolog.Logger) error {
	start := time.Now()
	raster, err := convertFrame(s.Dataset, s.Layout, t, index, logger)
	if err != nil {
		return err
	}
	res, err := o.sink.Write(FrameName(s.BaseName, index), raster)
	if err != nil {
		return err
	}
	o.opts.Metrics.Converted(time.Since(start), res.Tiles, res.Bytes)
	return nil
}
