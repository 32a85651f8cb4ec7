package conversion

import "errors"

// ErrOutputExists is returned by single conversions when the output is
// already present and Overwrite is not set.
var ErrOutputExists = errors.New("output already exists")
