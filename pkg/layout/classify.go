// Package layout classifies decoded pixel buffers by their dimensionality and
// selects single frames out of them.
package layout

import "fmt"

// Kind identifies the variant of a FrameLayout.
type Kind int

const (
	Unsupported Kind = iota
	Single2D
	ColorRGB
	MultiFrameStack
)

func (k Kind) String() string {
	switch k {
	case Single2D:
		return "Single2D"
	case ColorRGB:
		return "ColorRGB"
	case MultiFrameStack:
		return "MultiFrameStack"
	default:
		return "Unsupported"
	}
}

// Reasons reported for unsupported layouts.
const (
	ReasonEmpty       = "no dimensions declared"
	ReasonZeroSized   = "zero-sized dimension"
	ReasonOneDim      = "1D data, not an image"
	ReasonTooManyDims = "dimensionality > 3 unsupported"
)

// FrameLayout is the classified shape of a pixel buffer. Only the fields that
// belong to Kind are meaningful:
//
//	Single2D        Rows, Cols
//	ColorRGB        Rows, Cols (Channels == 3)
//	MultiFrameStack Frames, Rows, Cols
//	Unsupported     Shape, Reason
type FrameLayout struct {
	Kind     Kind
	Frames   int
	Rows     int
	Cols     int
	Channels int

	// Shape is the declared shape the layout was derived from
	Shape []int

	// Reason explains why an Unsupported layout was rejected
	Reason string
}

func (l FrameLayout) String() string {
	switch l.Kind {
	case Single2D:
		return fmt.Sprintf("Single2D{%d,%d}", l.Rows, l.Cols)
	case ColorRGB:
		return fmt.Sprintf("ColorRGB{%d,%d,3}", l.Rows, l.Cols)
	case MultiFrameStack:
		return fmt.Sprintf("MultiFrameStack{%d,%d,%d}", l.Frames, l.Rows, l.Cols)
	default:
		return fmt.Sprintf("Unsupported{%v, %s}", l.Shape, l.Reason)
	}
}

// FrameSize is the number of samples in one frame of the layout.
func (l FrameLayout) FrameSize() int {
	return l.Rows * l.Cols * l.Channels
}

// Classify maps a declared shape to exactly one FrameLayout. It never fails:
// shapes the pipeline cannot render come back as Unsupported.
func Classify(shape []int) FrameLayout {
	s := append([]int(nil), shape...)

	if len(s) == 0 {
		return unsupported(s, ReasonEmpty)
	}
	for _, d := range s {
		if d <= 0 {
			return unsupported(s, ReasonZeroSized)
		}
	}

	switch len(s) {
	case 1:
		return unsupported(s, ReasonOneDim)
	case 2:
		return FrameLayout{Kind: Single2D, Frames: 1, Rows: s[0], Cols: s[1], Channels: 1, Shape: s}
	case 3:
		switch {
		case s[2] == 3:
			return FrameLayout{Kind: ColorRGB, Frames: 1, Rows: s[0], Cols: s[1], Channels: 3, Shape: s}
		case s[0] == 1:
			// A leading unit dimension is squeezed away.
			return FrameLayout{Kind: Single2D, Frames: 1, Rows: s[1], Cols: s[2], Channels: 1, Shape: s}
		default:
			return FrameLayout{Kind: MultiFrameStack, Frames: s[0], Rows: s[1], Cols: s[2], Channels: 1, Shape: s}
		}
	default:
		return unsupported(s, ReasonTooManyDims)
	}
}

func unsupported(shape []int, reason string) FrameLayout {
	return FrameLayout{Kind: Unsupported, Shape: shape, Reason: reason}
}
