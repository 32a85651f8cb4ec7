// Package radiometric turns stored pixel values into display values: the
// modality rescale, clinical windowing, and the final 8-bit normalization.
package radiometric

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"dcm2dzi/internal/models"
)

// ErrNonFinite is returned when a transform would produce NaN or Inf values.
var ErrNonFinite = errors.New("non-finite pixel value")

// Window is a clinical display window in rescaled units.
type Window struct {
	Center float64
	Width  float64
}

// Bounds returns the clip range [center - width/2, center + width/2].
func (w Window) Bounds() (lo, hi float64) {
	return w.Center - w.Width/2, w.Center + w.Width/2
}

// Transform is the rescale followed by the optional window applied to every
// frame of a dataset.
type Transform struct {
	Slope     float64
	Intercept float64

	// Window is nil when the dataset declares no window
	Window *Window
}

// Identity returns a transform that leaves values unchanged.
func Identity() Transform {
	return Transform{Slope: 1}
}

// FromAttributes builds the transform a dataset's header declares. Slope and
// intercept default to 1 and 0. A window is only used when both center and
// width are present.
func FromAttributes(a models.Attributes) Transform {
	t := Identity()
	if a.RescaleSlope != nil {
		t.Slope = *a.RescaleSlope
	}
	if a.RescaleIntercept != nil {
		t.Intercept = *a.RescaleIntercept
	}
	if a.WindowCenter != nil && a.WindowWidth != nil {
		t.Window = &Window{Center: *a.WindowCenter, Width: *a.WindowWidth}
	}
	return t
}

// Apply returns a new slice holding pixels rescaled and then clipped to the
// window. pixels is not modified.
func (t Transform) Apply(pixels []float64) ([]float64, error) {
	if len(pixels) == 0 {
		return nil, errors.New("empty frame")
	}
	if math.IsNaN(t.Slope) || math.IsInf(t.Slope, 0) || math.IsNaN(t.Intercept) || math.IsInf(t.Intercept, 0) {
		return nil, fmt.Errorf("rescale slope %v intercept %v: %w", t.Slope, t.Intercept, ErrNonFinite)
	}

	out := make([]float64, len(pixels))
	copy(out, pixels)

	// Windows are expressed in rescaled units, so the rescale comes first.
	if t.Slope != 1 {
		floats.Scale(t.Slope, out)
	}
	if t.Intercept != 0 {
		floats.AddConst(t.Intercept, out)
	}

	if t.Window != nil {
		// A zero width collapses the frame onto the center value.
		if !(t.Window.Width >= 0) || math.IsInf(t.Window.Width, 0) || math.IsNaN(t.Window.Center) || math.IsInf(t.Window.Center, 0) {
			return nil, fmt.Errorf("invalid window center %v width %v", t.Window.Center, t.Window.Width)
		}
		lo, hi := t.Window.Bounds()
		Clip(out, lo, hi)
	}

	if !allFinite(out) {
		return nil, ErrNonFinite
	}
	return out, nil
}

// Clip limits every value of data to [lo, hi] in place.
func Clip(data []float64, lo, hi float64) {
	for i, v := range data {
		if v < lo {
			data[i] = lo
		} else if v > hi {
			data[i] = hi
		}
	}
}

func allFinite(data []float64) bool {
	if floats.HasNaN(data) {
		return false
	}
	for _, v := range data {
		if math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
