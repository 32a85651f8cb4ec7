package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"os"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dcm2dzi/internal/models"
)

// DICOMLoader reads DICOM Part 10 files.
type DICOMLoader struct{}

// Load parses path and decodes every frame of its pixel data. The declared
// shape is [rows cols], with a leading frame dimension when the header
// declares NumberOfFrames or holds more than one frame, and a trailing sample
// dimension for colour data. A header without rows or columns yields a flat
// shape.
func (DICOMLoader) Load(path string) (*models.RawDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	parsed, err := dicom.Parse(f, info.Size(), nil)
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("error parsing dicom: %w", err)}
	}

	attrs := readAttributes(parsed)
	pixels, frames, err := readPixels(parsed, attrs)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	shape := declaredShape(attrs, frames, len(pixels))
	if n := product(shape); n != len(pixels) {
		return nil, loadErr(path, "pixel data corrupt: %d samples, header declares shape %v (%d samples)", len(pixels), shape, n)
	}

	ds := &models.RawDataset{
		Path:       path,
		Attributes: attrs,
		Pixels:     pixels,
		Shape:      shape,
	}
	if attrs.BitsStored != nil {
		ds.BitsStored = *attrs.BitsStored
	}
	return ds, nil
}

func readAttributes(ds dicom.Dataset) models.Attributes {
	return models.Attributes{
		PatientID:        firstString(ds, tag.PatientID),
		PatientName:      firstString(ds, tag.PatientName),
		StudyDate:        firstString(ds, tag.StudyDate),
		StudyDescription: firstString(ds, tag.StudyDescription),
		Modality:         firstString(ds, tag.Modality),

		Rows:                      firstInt(ds, tag.Rows),
		Columns:                   firstInt(ds, tag.Columns),
		BitsAllocated:             firstInt(ds, tag.BitsAllocated),
		BitsStored:                firstInt(ds, tag.BitsStored),
		SamplesPerPixel:           firstInt(ds, tag.SamplesPerPixel),
		PixelRepresentation:       firstInt(ds, tag.PixelRepresentation),
		PlanarConfiguration:       firstInt(ds, tag.PlanarConfiguration),
		NumberOfFrames:            firstInt(ds, tag.NumberOfFrames),
		PhotometricInterpretation: firstString(ds, tag.PhotometricInterpretation),

		RescaleSlope:     firstFloat(ds, tag.RescaleSlope),
		RescaleIntercept: firstFloat(ds, tag.RescaleIntercept),
		WindowCenter:     firstFloat(ds, tag.WindowCenter),
		WindowWidth:      firstFloat(ds, tag.WindowWidth),
	}
}

// firstString returns the first value of a text attribute, or nil when the
// attribute is absent or empty.
func firstString(ds dicom.Dataset, t tag.Tag) *string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return nil
	}

	var s string
	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) == 0 {
			return nil
		}
		s = v[0]
	case []int:
		if len(v) == 0 {
			return nil
		}
		s = strconv.Itoa(v[0])
	case []float64:
		if len(v) == 0 {
			return nil
		}
		s = strconv.FormatFloat(v[0], 'f', -1, 64)
	default:
		return nil
	}

	s = strings.TrimRight(s, " \x00")
	return &s
}

func firstFloat(ds dicom.Dataset, t tag.Tag) *float64 {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return nil
	}

	switch v := elem.Value.GetValue().(type) {
	case []string:
		// DS and IS values may be backslash-joined lists; only the first is kept.
		if len(v) == 0 {
			return nil
		}
		first := strings.TrimSpace(strings.Split(v[0], `\`)[0])
		f, err := strconv.ParseFloat(first, 64)
		if err != nil {
			return nil
		}
		return &f
	case []float64:
		if len(v) == 0 {
			return nil
		}
		f := v[0]
		return &f
	case []int:
		if len(v) == 0 {
			return nil
		}
		f := float64(v[0])
		return &f
	}
	return nil
}

func firstInt(ds dicom.Dataset, t tag.Tag) *int {
	f := firstFloat(ds, t)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

// readPixels decodes every frame into one flat sample buffer and returns it
// with the number of frames it holds.
func readPixels(ds dicom.Dataset, attrs models.Attributes) ([]float64, int, error) {
	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, 0, errors.New("pixel data absent")
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, 0, errors.New("pixel data element holds no frames")
	}
	if len(info.Frames) == 0 {
		return nil, 0, errors.New("pixel data contains no frames")
	}

	samples := intOr(attrs.SamplesPerPixel, 1)
	if samples != 1 && samples != 3 {
		return nil, 0, fmt.Errorf("unsupported samples per pixel %d", samples)
	}
	bits := intOr(attrs.BitsStored, intOr(attrs.BitsAllocated, 0))
	signed := intOr(attrs.PixelRepresentation, 0) == 1
	planar := samples == 3 && intOr(attrs.PlanarConfiguration, 0) == 1

	var pixels []float64
	for i, fr := range info.Frames {
		if fr == nil {
			return nil, 0, fmt.Errorf("frame %d is missing", i)
		}

		var data []float64
		if fr.Encapsulated {
			data, err = decodeEncapsulated(fr.EncapsulatedData.Data, samples)
		} else {
			data, err = nativeSamples(fr.NativeData, bits, signed)
			if err == nil && planar {
				data = interleave(data)
			}
		}
		if err != nil {
			return nil, 0, fmt.Errorf("frame %d: %w", i, err)
		}
		pixels = append(pixels, data...)
	}
	return pixels, len(info.Frames), nil
}

// nativeSamples widens a native frame to float64. Unsigned storage of signed
// data is sign-extended from bitsStored.
func nativeSamples(nf any, bitsStored int, signed bool) ([]float64, error) {
	switch f := nf.(type) {
	case *frame.NativeFrame[uint8]:
		return widenUnsigned(f.RawData, bitsStored, signed), nil
	case *frame.NativeFrame[uint16]:
		return widenUnsigned(f.RawData, bitsStored, signed), nil
	case *frame.NativeFrame[uint32]:
		return widenUnsigned(f.RawData, bitsStored, signed), nil
	case nil:
		return nil, errors.New("native frame has no data")
	default:
		return nil, fmt.Errorf("unsupported native frame type %T", nf)
	}
}

func widenUnsigned[T uint8 | uint16 | uint32](raw []T, bitsStored int, signed bool) []float64 {
	out := make([]float64, len(raw))
	if !signed || bitsStored <= 0 || bitsStored > 32 {
		for i, v := range raw {
			out[i] = float64(v)
		}
		return out
	}

	mask := int64(1)<<bitsStored - 1
	sign := int64(1) << (bitsStored - 1)
	for i, v := range raw {
		s := int64(v) & mask
		if s&sign != 0 {
			s -= mask + 1
		}
		out[i] = float64(s)
	}
	return out
}

// interleave converts one colour-by-plane frame (RRR..GGG..BBB) to
// colour-by-pixel order (RGBRGB..).
func interleave(planar []float64) []float64 {
	n := len(planar) / 3
	out := make([]float64, len(planar))
	for i := 0; i < n; i++ {
		out[3*i] = planar[i]
		out[3*i+1] = planar[n+i]
		out[3*i+2] = planar[2*n+i]
	}
	return out
}

// decodeEncapsulated decodes a compressed frame with the registered image
// codecs (baseline JPEG).
func decodeEncapsulated(data []byte, samples int) ([]float64, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported or corrupt encapsulated frame: %w", err)
	}

	b := img.Bounds()
	out := make([]float64, 0, b.Dx()*b.Dy()*samples)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if samples == 1 {
				g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				out = append(out, float64(g.Y>>8))
				continue
			}
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, float64(r>>8), float64(g>>8), float64(bl>>8))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s frame", format)
	}
	return out, nil
}

func declaredShape(attrs models.Attributes, frames, samples int) []int {
	rows := intOr(attrs.Rows, 0)
	cols := intOr(attrs.Columns, 0)
	if rows <= 0 || cols <= 0 {
		return []int{samples}
	}

	shape := []int{rows, cols}
	if spp := intOr(attrs.SamplesPerPixel, 1); spp > 1 {
		shape = append(shape, spp)
	}
	if attrs.NumberOfFrames != nil || frames > 1 {
		shape = append([]int{frames}, shape...)
	}
	return shape
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
