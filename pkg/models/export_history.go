package models

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Export formats. Only pptx is produced; the others are recognised and rejected.
const (
	ExportPPTX = "pptx"
	ExportPDF  = "pdf"
	ExportDOCX = "docx"
)

// ExportHistory records one export of a talk-script to a file.
type ExportHistory struct {
	ID           uuid.UUID  `json:"id"`
	TalkScriptID uuid.UUID  `json:"talk_script_id"`
	ExportType   string     `json:"export_type"`
	FilePath     string     `json:"-"`
	FileSize     int64      `json:"file_size"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedBy    *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// FileName returns the base name of the exported file.
func (e *ExportHistory) FileName() string {
	if e.FilePath == "" {
		return ""
	}
	return filepath.Base(e.FilePath)
}
