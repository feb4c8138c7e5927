// Package export handles exporting sessions to various formats.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alienxp03/gempt/internal/core"
)

// Format represents an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatPDF      Format = "pdf"
	FormatJSON     Format = "json"
)

// Formats lists the supported formats.
var Formats = []Format{FormatMarkdown, FormatJSON, FormatPDF}

// Exporter defines the interface for exporting sessions.
type Exporter interface {
	Export(session *core.Session, w io.Writer) error
	FileExtension() string
	ContentType() string
}

// FormatNames returns the supported formats as a comma-separated list.
func FormatNames() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// GetExporter returns an exporter for the given format.
func GetExporter(format Format) (Exporter, error) {
	switch format {
	case FormatMarkdown, "md":
		return &MarkdownExporter{}, nil
	case FormatPDF:
		return &PDFExporter{}, nil
	case FormatJSON:
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s (available: %s)", format, FormatNames())
	}
}

// GenerateFilename creates a filename for the export.
func GenerateFilename(session *core.Session, ext string) string {
	project := session.ProjectID
	if runes := []rune(project); len(runes) > 40 {
		project = string(runes[:40])
	}

	// Replace unsafe characters
	replacer := strings.NewReplacer(
		" ", "_",
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	project = replacer.Replace(project)

	id := session.ID
	if len(id) > 8 {
		id = id[:8]
	}

	timestamp := session.CreatedAt.Format("20060102")
	return fmt.Sprintf("gempt_%s_%s_%s.%s", timestamp, project, id, ext)
}

// winnerText describes the outcome, or the status when undecided.
func winnerText(session *core.Session) string {
	if session.Decision == nil {
		return string(session.Status)
	}
	return session.Decision.Winner.String()
}

// Helper to format duration
func formatDuration(start, end time.Time) string {
	d := end.Sub(start)
	if d < time.Minute {
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return fmt.Sprintf("%.1f hours", d.Hours())
}
