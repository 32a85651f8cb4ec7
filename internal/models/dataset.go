package models

// Photometric interpretations that change how pixels are displayed.
const (
	Monochrome1 = "MONOCHROME1"
	Monochrome2 = "MONOCHROME2"
	RGB         = "RGB"
)

// Attributes is the set of header attributes the pipeline cares about.
// Every field is optional: a nil pointer means the attribute was absent from
// the source header. It is populated once, at load time.
type Attributes struct {
	// Descriptive attributes
	PatientID        *string
	PatientName      *string
	StudyDate        *string
	StudyDescription *string
	Modality         *string

	// Image pixel module
	Rows                      *int
	Columns                   *int
	BitsAllocated             *int
	BitsStored                *int
	SamplesPerPixel           *int
	PixelRepresentation       *int
	PlanarConfiguration       *int
	NumberOfFrames            *int
	PhotometricInterpretation *string

	// Radiometric attributes. Only the first value of a multi-valued window
	// center/width is kept.
	RescaleSlope     *float64
	RescaleIntercept *float64
	WindowCenter     *float64
	WindowWidth      *float64
}

// RawDataset is a loaded scan: header attributes, the decoded pixel buffer and
// the shape the header declares for it. It must not be mutated after load.
type RawDataset struct {
	// Path is the file the dataset was read from
	Path string

	// Attributes holds the header attributes present in the file
	Attributes Attributes

	// Pixels is the decoded sample buffer in row-major order matching Shape
	Pixels []float64

	// Shape is the declared ordered dimensions of Pixels, e.g. [rows cols],
	// [frames rows cols] or [rows cols 3]
	Shape []int

	// BitsStored is the declared bit depth (0 when undeclared)
	BitsStored int
}

// Photometric returns the declared photometric interpretation, defaulting to
// MONOCHROME2 when the header does not carry one.
func (d *RawDataset) Photometric() string {
	if p := d.Attributes.PhotometricInterpretation; p != nil && *p != "" {
		return *p
	}
	return Monochrome2
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }
