// Package metrics records conversion counters on a private Prometheus
// registry and can dump them in the node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the batch conversion metrics. A nil *Collector is valid
// and records nothing.
type Collector struct {
	registry *prometheus.Registry

	FramesConverted prometheus.Counter
	FramesFailed    prometheus.Counter
	FramesSkipped   prometheus.Counter
	FrameDuration   prometheus.Histogram
	TilesWritten    prometheus.Counter
	BytesWritten    prometheus.Counter
}

// New creates a collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		FramesConverted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dcm2dzi_frames_converted_total",
			Help: "Frames written as DZI pyramids",
		}),
		FramesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dcm2dzi_frames_failed_total",
			Help: "Frames whose conversion failed",
		}),
		FramesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "dcm2dzi_frames_skipped_total",
			Help: "Frames skipped because their output already existed",
		}),
		FrameDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dcm2dzi_frame_duration_seconds",
			Help:    "Time to convert and tile one frame",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		TilesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "dcm2dzi_tiles_written_total",
			Help: "JPEG tiles written",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "dcm2dzi_bytes_written_total",
			Help: "Bytes of tiles and descriptors written",
		}),
	}
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Converted records one successfully tiled frame.
func (c *Collector) Converted(d time.Duration, tiles int, bytes int64) {
	if c == nil {
		return
	}
	c.FramesConverted.Inc()
	c.FrameDuration.Observe(d.Seconds())
	c.TilesWritten.Add(float64(tiles))
	c.BytesWritten.Add(float64(bytes))
}

// Failed records one failed frame.
func (c *Collector) Failed() {
	if c == nil {
		return
	}
	c.FramesFailed.Inc()
}

// Skipped records one frame whose output already existed.
func (c *Collector) Skipped() {
	if c == nil {
		return
	}
	c.FramesSkipped.Inc()
}

// WriteTextfile writes every metric to path in Prometheus text format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
