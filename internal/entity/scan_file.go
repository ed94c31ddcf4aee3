package entity

import (
	"time"

	"github.com/google/uuid"
)

// ScanFile represents an ingested form image for data transfer between layers.
type ScanFile struct {
	ID          uuid.UUID `json:"id"`
	SourcePath  string    `json:"source_path"`
	ContentHash []byte    `json:"content_hash"`
	Filename    string    `json:"filename"`
	FileExt     string    `json:"file_ext"`
	FileSize    int       `json:"file_size"`
	Year        string    `json:"year"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
