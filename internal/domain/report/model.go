package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Parsed is the structured reading of a report produced by the assistant.
type Parsed struct {
	Summary         string         `json:"summary"`
	Recommendations []string       `json:"recommendations"`
	Extracted       map[string]any `json:"extracted,omitempty"`
	AnalyzedAt      time.Time      `json:"analyzed_at"`
}

// Report is an uploaded medical document. The file itself lives in the blob
// store under BlobKey.
type Report struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	BlobKey     string    `db:"blob_key" json:"blob_key"`
	URL         string    `db:"url" json:"url"`
	FileName    string    `db:"file_name" json:"file_name"`
	ContentType string    `db:"content_type" json:"content_type"`
	Size        int64     `db:"size" json:"size"`
	Hash        string    `db:"hash" json:"hash,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	UploadedBy  string    `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploaded_at"`
	Parsed      *Parsed   `db:"parsed" json:"parsed,omitempty"`
}

// BlobKey names the object for a patient's upload:
// user-reports/{patientId}/{uuid}-{filename}.
func BlobKey(patientID, objectID uuid.UUID, fileName string) string {
	return fmt.Sprintf("user-reports/%s/%s-%s", patientID, objectID, cleanFileName(fileName))
}

func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r == '/' || r < 0x20:
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." {
		return "report"
	}
	return name
}
