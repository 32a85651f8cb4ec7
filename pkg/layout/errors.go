package layout

import (
	"errors"
	"fmt"
)

// ErrAllFramesRequested is returned by Select when a multi-frame stack is
// asked for all of its frames; that request belongs to the batch path.
var ErrAllFramesRequested = errors.New("all frames requested: use batch conversion")

// UnsupportedLayoutError reports a buffer whose dimensionality cannot be
// rendered as a 2D or RGB raster.
type UnsupportedLayoutError struct {
	Shape  []int
	Reason string
}

func (e *UnsupportedLayoutError) Error() string {
	return fmt.Sprintf("unsupported pixel layout %v: %s", e.Shape, e.Reason)
}

// FrameIndexOutOfRangeError reports a requested frame outside [0, Frames).
type FrameIndexOutOfRangeError struct {
	Index  int
	Frames int
}

func (e *FrameIndexOutOfRangeError) Error() string {
	return fmt.Sprintf("frame index %d out of range (0-%d)", e.Index, e.Frames-1)
}

// NeedsDisambiguationError signals that a multi-frame stack was given without
// saying whether one frame or all frames should be converted. No work has been
// done when it is returned.
type NeedsDisambiguationError struct {
	Frames int
}

func (e *NeedsDisambiguationError) Error() string {
	return fmt.Sprintf("multi-frame dataset with %d frames: choose a frame or all frames", e.Frames)
}
