// Package dataset loads scan files into RawDatasets and generic raster images
// into display-ready rasters.
package dataset

import "fmt"

// LoadError reports a file that could not be turned into a dataset: missing,
// unreadable, a corrupt header, or absent pixel data.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func loadErr(path string, format string, args ...any) error {
	return &LoadError{Path: path, Err: fmt.Errorf(format, args...)}
}
