package models

import (
	"fmt"
	"image"
)

// NormalizedRaster is a display-ready 8-bit frame. Channels is 1 for
// grayscale and 3 for interleaved RGB.
type NormalizedRaster struct {
	// Rows and Cols are the spatial dimensions of the source frame
	Rows int
	Cols int

	// Channels is the number of interleaved samples per pixel (1 or 3)
	Channels int

	// Pix holds Rows*Cols*Channels samples in row-major order
	Pix []uint8
}

// NewNormalizedRaster allocates a zeroed raster.
func NewNormalizedRaster(rows, cols, channels int) *NormalizedRaster {
	return &NormalizedRaster{
		Rows:     rows,
		Cols:     cols,
		Channels: channels,
		Pix:      make([]uint8, rows*cols*channels),
	}
}

// Shape returns [rows cols] for grayscale and [rows cols 3] for RGB.
func (r *NormalizedRaster) Shape() []int {
	if r.Channels == 1 {
		return []int{r.Rows, r.Cols}
	}
	return []int{r.Rows, r.Cols, r.Channels}
}

// Mode returns a short description of the pixel format.
func (r *NormalizedRaster) Mode() string {
	if r.Channels == 1 {
		return "L"
	}
	return "RGB"
}

// Image wraps the raster in an image.Image without resampling. Grayscale
// rasters share Pix with the returned *image.Gray.
func (r *NormalizedRaster) Image() (image.Image, error) {
	if len(r.Pix) != r.Rows*r.Cols*r.Channels {
		return nil, fmt.Errorf("raster buffer holds %d samples, expected %d", len(r.Pix), r.Rows*r.Cols*r.Channels)
	}

	switch r.Channels {
	case 1:
		return &image.Gray{
			Pix:    r.Pix,
			Stride: r.Cols,
			Rect:   image.Rect(0, 0, r.Cols, r.Rows),
		}, nil
	case 3:
		img := image.NewRGBA(image.Rect(0, 0, r.Cols, r.Rows))
		for i, j := 0, 0; i < len(r.Pix); i, j = i+3, j+4 {
			img.Pix[j] = r.Pix[i]
			img.Pix[j+1] = r.Pix[i+1]
			img.Pix[j+2] = r.Pix[i+2]
			img.Pix[j+3] = 0xff
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported channel count %d", r.Channels)
	}
}
