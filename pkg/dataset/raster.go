package dataset

import (
	"bufio"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"dcm2dzi/internal/models"
)

// RasterExtensions lists the generic image formats that can be tiled directly.
var RasterExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
	".gif":  true,
}

// IsRaster reports whether path has a supported generic image extension.
func IsRaster(path string) bool {
	return RasterExtensions[strings.ToLower(filepath.Ext(path))]
}

// IsDICOM reports whether path looks like a DICOM file: a .dcm/.dicom
// extension or the "DICM" marker after the 128-byte preamble.
func IsDICOM(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dcm", ".dicom":
		return true
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 132)
	if _, err := io.ReadFull(f, buf); err != nil {
		return false
	}
	return string(buf[128:132]) == "DICM"
}

// LoadRaster decodes a generic image into a display-ready raster. Grayscale
// images stay single-channel (16-bit samples keep their high byte); every
// other colour model becomes RGB with alpha dropped. No radiometric processing
// is applied.
func LoadRaster(path string) (*models.NormalizedRaster, error) {
	if !IsRaster(path) {
		return nil, loadErr(path, "unsupported image format %q", filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, loadErr(path, "image has no pixels")
	}

	switch src := img.(type) {
	case *image.Gray:
		r := models.NewNormalizedRaster(b.Dy(), b.Dx(), 1)
		for y := 0; y < b.Dy(); y++ {
			copy(r.Pix[y*b.Dx():(y+1)*b.Dx()], src.Pix[y*src.Stride:y*src.Stride+b.Dx()])
		}
		return r, nil

	case *image.Gray16:
		r := models.NewNormalizedRaster(b.Dy(), b.Dx(), 1)
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				r.Pix[y*b.Dx()+x] = uint8(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y >> 8)
			}
		}
		return r, nil
	}

	r := models.NewNormalizedRaster(b.Dy(), b.Dx(), 3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			r.Pix[i] = c.R
			r.Pix[i+1] = c.G
			r.Pix[i+2] = c.B
			i += 3
		}
	}
	return r, nil
}
