package radiometric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"dcm2dzi/internal/models"
)

// Normalize stretches values to [0, 255] and applies the photometric
// correction. A constant frame maps to all zeros before inversion. The result
// has exactly rows*cols*channels samples.
func Normalize(values []float64, rows, cols, channels int, photometric string) (*models.NormalizedRaster, error) {
	if channels != 1 && channels != 3 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if n := rows * cols * channels; n == 0 || len(values) != n {
		return nil, fmt.Errorf("frame %dx%dx%d does not match %d samples", rows, cols, channels, len(values))
	}
	if !allFinite(values) {
		return nil, ErrNonFinite
	}

	scaled := make([]float64, len(values))
	copy(scaled, values)

	floats.AddConst(-floats.Min(scaled), scaled)
	peak := floats.Max(scaled)

	raster := models.NewNormalizedRaster(rows, cols, channels)
	invert := photometric == models.Monochrome1
	for i, v := range scaled {
		if peak > 0 {
			v /= peak
		}
		p := uint8(math.Round(v * 255))
		if invert {
			p = 255 - p
		}
		raster.Pix[i] = p
	}
	return raster, nil
}
