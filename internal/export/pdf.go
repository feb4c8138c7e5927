package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/alienxp03/gempt/internal/core"
)

// PDFExporter exports sessions to PDF format.
type PDFExporter struct{}

// Export writes the session as PDF.
func (e *PDFExporter) Export(session *core.Session, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(sanitizeText(s)) }

	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 16)
	pdf.MultiCell(0, 9, text(session.Question), "", "C", false)
	pdf.Ln(5)

	// Metadata section
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Session Information")
	pdf.Ln(8)

	id := session.ID
	if len(id) > 8 {
		id = id[:8] + "..."
	}
	e.addMetadataRow(pdf, "ID:", id)
	e.addMetadataRow(pdf, "Project:", text(session.ProjectID))
	e.addMetadataRow(pdf, "Status:", string(session.Status))
	e.addMetadataRow(pdf, "Created:", session.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	if session.CompletedAt != nil {
		e.addMetadataRow(pdf, "Duration:", formatDuration(session.CreatedAt, *session.CompletedAt))
	}
	pdf.Ln(5)

	// Outcome
	if d := session.Decision; d != nil {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Outcome")
		pdf.Ln(8)

		e.addMetadataRow(pdf, "Winner:", winnerText(session))
		e.addMetadataRow(pdf, "Rounds:", fmt.Sprintf("%d", len(d.Transcript)))
		e.addMetadataRow(pdf, "Scores:", fmt.Sprintf("Solver %d, Verifier %d (before: %d, %d)",
			d.Scores.Solver, d.Scores.Verifier, d.PreviousScores.Solver, d.PreviousScores.Verifier))
		pdf.Ln(3)

		pdf.SetFillColor(255, 245, 200) // Light yellow
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, "Final Answer", "", 1, "", true, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, text(d.FinalAnswer), "", "", false)
		pdf.Ln(5)
	}

	if session.Error != "" {
		pdf.SetFillColor(255, 200, 200) // Light red
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 7, "Error", "", 1, "", true, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, text(session.Error), "", "", false)
		pdf.Ln(5)
	}

	// Process log
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Process")
	pdf.Ln(8)

	if len(session.Process) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No steps recorded.")
		pdf.Ln(6)
	}
	for i, step := range session.Process {
		if pdf.GetY() > 250 {
			pdf.AddPage()
		}

		r, g, b := actorColor(step.Actor)
		pdf.SetFillColor(r, g, b)
		pdf.SetFont("Arial", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, text(step.Name), step.Actor)
		pdf.CellFormat(0, 7, header, "", 1, "", true, 0, "")

		pdf.SetFont("Arial", "", 9)
		pdf.SetFillColor(255, 255, 255)
		pdf.MultiCell(0, 5, text(step.Content), "", "", false)
		pdf.Ln(5)
	}

	if session.Summary != "" {
		if pdf.GetY() > 230 {
			pdf.AddPage()
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(0, 8, "Summary")
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, text(session.Summary), "", "", false)
	}

	// Footer
	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 10, "Exported from gempt", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}

// ContentType returns the MIME type for PDF.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

// Helper to add a metadata row
func (e *PDFExporter) addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, value)
	pdf.Ln(5)
}

func actorColor(actor string) (int, int, int) {
	switch actor {
	case string(core.Solver):
		return 200, 230, 255 // Light blue
	case string(core.Verifier):
		return 200, 255, 200 // Light green
	default:
		return 230, 230, 230
	}
}

// sanitizeText replaces typographic characters that the core fonts lack.
func sanitizeText(text string) string {
	replacer := strings.NewReplacer(
		"\u2018", "'",   // Left single quote
		"\u2019", "'",   // Right single quote
		"\u201C", "\"",  // Left double quote
		"\u201D", "\"",  // Right double quote
		"\u2013", "-",   // En dash
		"\u2014", "--",  // Em dash
		"\u2026", "...", // Ellipsis
		"\u2022", "*",   // Bullet
		"\u00A0", " ",   // Non-breaking space
	)
	return replacer.Replace(text)
}
