package layout

import "fmt"

// FrameRequest is the caller's choice of frame. Index is 0-based; a nil Index
// means no particular frame was asked for.
type FrameRequest struct {
	Index     *int
	AllFrames bool
}

// FrameAt returns a request for a single frame.
func FrameAt(i int) FrameRequest {
	return FrameRequest{Index: &i}
}

// Frame is a view of one frame's samples inside a dataset buffer. Pixels
// aliases the dataset and must be treated as read-only.
type Frame struct {
	Index    int
	Rows     int
	Cols     int
	Channels int
	Pixels   []float64
}

// Select resolves a request against a layout and returns the index of the
// frame to convert.
func Select(l FrameLayout, req FrameRequest) (int, error) {
	switch l.Kind {
	case Single2D, ColorRGB:
		return 0, nil

	case MultiFrameStack:
		if req.Index != nil {
			i := *req.Index
			if i < 0 || i >= l.Frames {
				return 0, &FrameIndexOutOfRangeError{Index: i, Frames: l.Frames}
			}
			return i, nil
		}
		if l.Frames == 1 {
			return 0, nil
		}
		if req.AllFrames {
			return 0, ErrAllFramesRequested
		}
		return 0, &NeedsDisambiguationError{Frames: l.Frames}

	default:
		return 0, &UnsupportedLayoutError{Shape: l.Shape, Reason: l.Reason}
	}
}

// Extract returns frame index of pixels laid out as l. The index must already
// have been validated by Select.
func Extract(l FrameLayout, pixels []float64, index int) (Frame, error) {
	if l.Kind == Unsupported {
		return Frame{}, &UnsupportedLayoutError{Shape: l.Shape, Reason: l.Reason}
	}

	size := l.FrameSize()
	start := index * size
	end := start + size
	if index < 0 || end > len(pixels) {
		return Frame{}, fmt.Errorf("frame %d needs samples [%d:%d] but buffer holds %d", index, start, end, len(pixels))
	}

	return Frame{
		Index:    index,
		Rows:     l.Rows,
		Cols:     l.Cols,
		Channels: l.Channels,
		Pixels:   pixels[start:end:end],
	}, nil
}
