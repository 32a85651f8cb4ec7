package models

// Unknown is the value given to descriptive metadata absent from the header.
const Unknown = "Unknown"

// ImageMetadata holds the descriptive fields attached to every raster and
// series manifest produced from one dataset.
type ImageMetadata struct {
	PatientID        string `json:"patient_id"`
	PatientName      string `json:"patient_name"`
	StudyDate        string `json:"study_date"`
	StudyDescription string `json:"study_description"`
	Modality         string `json:"modality"`
	Rows             int    `json:"rows"`
	Columns          int    `json:"columns"`
	BitsStored       int    `json:"bits_stored"`
	Photometric      string `json:"photometric"`
}

// TileParams are passed through unchanged to the tiling step.
type TileParams struct {
	// TileSize is the edge length of each square tile in pixels
	TileSize int `yaml:"tileSize"`

	// Quality is the JPEG quality of encoded tiles (1-100)
	Quality int `yaml:"quality"`

	// Overlap is the number of pixels shared between neighbouring tiles
	Overlap int `yaml:"overlap"`
}

// SeriesManifest describes the outcome of converting a multi-frame series.
// Its JSON form is read by the gallery generator.
type SeriesManifest struct {
	BaseName        string        `json:"base_name"`
	TotalFrames     int           `json:"total_frames"`
	ConvertedFrames int           `json:"converted_frames"`
	Metadata        ImageMetadata `json:"metadata"`
	TileSize        int           `json:"tile_size"`
	Quality         int           `json:"quality"`
}
