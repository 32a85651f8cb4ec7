package conversion

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dcm2dzi/internal/models"
)

// ManifestPath returns where the series manifest of base lives in dir.
func ManifestPath(dir, base string) string {
	return filepath.Join(dir, base+"_series.json")
}

// FrameName returns the output name of frame i of a series.
func FrameName(base string, i int) string {
	return fmt.Sprintf("%s_frame_%04d", base, i)
}

// WriteManifest replaces path with m. The file is written next to its final
// location and renamed into place, so readers never see a partial manifest.
func WriteManifest(path string, m models.SeriesManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling manifest: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error writing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a series manifest.
func ReadManifest(path string) (*models.SeriesManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m models.SeriesManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("error parsing manifest: %w", err)
	}
	return &m, nil
}
