package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	"dcm2dzi/pkg/config"
	"dcm2dzi/pkg/conversion"
	"dcm2dzi/pkg/dataset"
	"dcm2dzi/pkg/layout"
	"dcm2dzi/pkg/logging"
	"dcm2dzi/pkg/metrics"
	"dcm2dzi/pkg/tiling"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line arguments
	configPath := flag.String("config", "dcm2dzi.yaml", "YAML configuration file (optional)")
	tileSize := flag.Int("tile-size", 256, "Tile size in pixels (128, 256 or 512)")
	quality := flag.Int("quality", 90, "JPEG quality 1-100")
	overlap := flag.Int("overlap", 1, "Pixel overlap between tiles")
	allFrames := flag.Bool("all-frames", false, "Convert all frames of a multi-frame file")
	frame := flag.Int("frame", 0, "Convert one frame (0-indexed) of a multi-frame file")
	outputDir := flag.String("output-dir", "", "Directory for DZI output (default from config: output/dzi)")
	workers := flag.Int("workers", 0, "Frames converted concurrently (default: all available cores)")
	force := flag.Bool("force", false, "Overwrite an existing single-image output")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Log format: console or json")
	metricsFile := flag.String("metrics-textfile", "", "Write conversion metrics to this Prometheus textfile")
	initConf := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	flag.Usage = usage
	flag.Parse()

	if *initConf {
		if err := initConfig(os.Stdout, *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create config: %v\n", err)
			return 1
		}
		return 0
	}

	// Validate inputs
	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		return 1
	}
	input := flag.Arg(0)
	outputName := flag.Arg(1)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Flags given on the command line win over the config file.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["tile-size"] {
		cfg.Tiling.TileSize = *tileSize
	}
	if set["quality"] {
		cfg.Tiling.Quality = *quality
	}
	if set["overlap"] {
		cfg.Tiling.Overlap = *overlap
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *workers > 0 {
		cfg.Processing.Workers = *workers
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *metricsFile != "" {
		cfg.Metrics.Textfile = *metricsFile
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: "dcm2dzi",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid logging configuration: %v\n", err)
		return 1
	}

	if _, err := os.Stat(input); err != nil {
		logger.Error().Err(err).Str("file", input).Msg("input not found")
		return 1
	}

	req := conversion.Request{
		Input:    input,
		BaseName: outputName,
		Frame:    layout.FrameRequest{AllFrames: *allFrames},
	}
	if set["frame"] {
		req.Frame.Index = frame
	}

	writer, err := tiling.NewWriter(cfg.Output.Dir, cfg.Tiling, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to prepare output")
		return 1
	}

	collector := metrics.New()
	conv := conversion.New(dataset.DICOMLoader{}, writer, conversion.Options{
		OutputDir: writer.Dir(),
		Params:    writer.Params(),
		Workers:   cfg.Processing.Workers,
		Overwrite: *force,
		Metrics:   collector,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("================================")
	fmt.Println("DCM2DZI: MEDICAL IMAGE TO DEEP ZOOM CONVERTER")
	fmt.Println("================================")

	startTime := time.Now()
	res, err := conv.Convert(ctx, req)
	code := report(logger, res, err, writer.Dir())

	if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("failed to write metrics")
	}
	if code == 0 {
		fmt.Printf("\nCompleted in %.2f seconds\n", time.Since(startTime).Seconds())
	}
	return code
}

// initConfig writes the default configuration to path, refusing to replace
// an existing file.
func initConfig(w io.Writer, path string) error {
	if err := config.CreateDefaultConfigFile(path); err != nil {
		return err
	}
	fmt.Fprintf(w, "Default configuration written to %s\n", path)
	return nil
}

// report prints the outcome of a conversion and returns the exit code.
func report(logger zerolog.Logger, res *conversion.Result, err error, outputDir string) int {
	var nd *layout.NeedsDisambiguationError
	switch {
	case errors.As(err, &nd):
		fmt.Printf("\nThis file contains %d frames. Choose what to convert:\n", nd.Frames)
		fmt.Println("  -all-frames   convert every frame as a series")
		fmt.Printf("  -frame N      convert a single frame (0-%d)\n", nd.Frames-1)
		return 1
	case errors.Is(err, conversion.ErrOutputExists):
		logger.Error().Err(err).Msg("output exists, use -force to overwrite")
		return 1
	case res == nil:
		logger.Error().Err(err).Msg("conversion failed")
		return 1
	}

	if b := res.Batch; b != nil {
		fmt.Printf("\nSeries %s: %d of %d frames converted\n", res.Name, b.Manifest.ConvertedFrames, b.Manifest.TotalFrames)
		fmt.Printf("- Skipped (already present): %d\n", b.Skipped)
		if b.Failed() > 0 {
			fmt.Printf("- Failed: %d\n", b.Failed())
		}
		fmt.Printf("- Manifest: %s\n", b.ManifestPath)
		if err != nil {
			logger.Error().Err(err).Msg("series incomplete")
			return 1
		}
		return 0
	}

	fmt.Printf("\nOutput: %s/%s.dzi\n", outputDir, res.Name)
	fmt.Printf("- Size: %d x %d (%s)\n", res.Tiles.Width, res.Tiles.Height, res.Layout.Kind)
	fmt.Printf("- Levels: %d, tiles: %d, %.1f KB\n", res.Tiles.Levels, res.Tiles.Tiles, float64(res.Tiles.Bytes)/1024)
	if res.Metadata.Modality != "" {
		fmt.Printf("- Modality: %s, patient: %s\n", res.Metadata.Modality, res.Metadata.PatientID)
	}
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: dcm2dzi [flags] input [output_name]
       dcm2dzi -init-config [-config path]

Converts a DICOM scan or a PNG/JPEG/TIFF/BMP/GIF/WEBP image to Deep Zoom tiles.

Examples:
  dcm2dzi xray.dcm
  dcm2dzi ct_slice.dcm patient_001
  dcm2dzi -all-frames angiogram.dcm study
  dcm2dzi -frame 50 cine.dcm cardiac
  dcm2dzi -init-config -config dcm2dzi.yaml

Flags:
`)
	flag.PrintDefaults()
}
