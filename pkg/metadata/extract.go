// Package metadata derives the descriptive record attached to every output of
// a conversion.
package metadata

import (
	"strings"

	"dcm2dzi/internal/models"
)

// Extract builds the ImageMetadata for a dataset. Absent strings become
// "Unknown" and absent integers 0; it never fails.
func Extract(ds *models.RawDataset) models.ImageMetadata {
	if ds == nil {
		return Empty()
	}
	a := ds.Attributes

	return models.ImageMetadata{
		PatientID:        str(a.PatientID),
		PatientName:      str(a.PatientName),
		StudyDate:        str(a.StudyDate),
		StudyDescription: str(a.StudyDescription),
		Modality:         str(a.Modality),
		Rows:             num(a.Rows),
		Columns:          num(a.Columns),
		BitsStored:       num(a.BitsStored),
		Photometric:      str(a.PhotometricInterpretation),
	}
}

// Empty returns the record for a dataset with no descriptive header at all.
func Empty() models.ImageMetadata {
	return Extract(&models.RawDataset{})
}

func str(v *string) string {
	if v == nil {
		return models.Unknown
	}
	// Padding is part of the stored value, not of the attribute.
	s := strings.TrimRight(*v, " \x00")
	if s == "" {
		return models.Unknown
	}
	return s
}

func num(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
