package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/alienxp03/gempt/internal/core"
)

// JSONExporter exports sessions to JSON format.
type JSONExporter struct{}

// ExportData represents the full export structure.
type ExportData struct {
	Session    *core.Session `json:"session"`
	ExportedAt time.Time     `json:"exported_at"`
}

// Export writes the session as JSON.
func (e *JSONExporter) Export(session *core.Session, w io.Writer) error {
	data := ExportData{
		Session:    session,
		ExportedAt: time.Now(),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return "json"
}

// ContentType returns the MIME type for JSON.
func (e *JSONExporter) ContentType() string {
	return "application/json"
}
