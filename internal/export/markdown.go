package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/alienxp03/gempt/internal/core"
)

// MarkdownExporter exports sessions to Markdown format.
type MarkdownExporter struct{}

// Export writes the session as Markdown.
func (e *MarkdownExporter) Export(session *core.Session, w io.Writer) error {
	var sb strings.Builder

	// Title
	sb.WriteString(fmt.Sprintf("# %s\n\n", session.Question))

	// Metadata
	sb.WriteString("## Session Information\n\n")
	sb.WriteString(fmt.Sprintf("- **ID:** `%s`\n", session.ID))
	sb.WriteString(fmt.Sprintf("- **Project:** %s\n", session.ProjectID))
	sb.WriteString(fmt.Sprintf("- **Dialect:** %s\n", session.Dialect))
	sb.WriteString(fmt.Sprintf("- **Status:** %s\n", session.Status))
	if session.Subject != "" {
		sb.WriteString(fmt.Sprintf("- **Subject:** %s\n", session.Subject))
	}
	sb.WriteString(fmt.Sprintf("- **Created:** %s\n", session.CreatedAt.Format("January 2, 2006 at 3:04 PM")))
	if session.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("- **Completed:** %s\n", session.CompletedAt.Format("January 2, 2006 at 3:04 PM")))
		sb.WriteString(fmt.Sprintf("- **Duration:** %s\n", formatDuration(session.CreatedAt, *session.CompletedAt)))
	}
	sb.WriteString("\n")

	// Outcome
	if d := session.Decision; d != nil {
		sb.WriteString("## Outcome\n\n")
		sb.WriteString(fmt.Sprintf("- **Winner:** %s\n", winnerText(session)))
		sb.WriteString(fmt.Sprintf("- **Rounds:** %d\n\n", len(d.Transcript)))

		sb.WriteString("| | Solver | Verifier |\n")
		sb.WriteString("|---|---:|---:|\n")
		sb.WriteString(fmt.Sprintf("| Before | %d | %d |\n", d.PreviousScores.Solver, d.PreviousScores.Verifier))
		sb.WriteString(fmt.Sprintf("| After | %d | %d |\n\n", d.Scores.Solver, d.Scores.Verifier))

		sb.WriteString("### Final Answer\n\n")
		sb.WriteString(d.FinalAnswer)
		sb.WriteString("\n\n")

		if len(d.Diagnostics) > 0 {
			sb.WriteString("### Diagnostics\n\n")
			for _, note := range d.Diagnostics {
				sb.WriteString(fmt.Sprintf("- %s\n", note))
			}
			sb.WriteString("\n")
		}
	}

	if session.Error != "" {
		sb.WriteString("## Error\n\n")
		sb.WriteString(fmt.Sprintf("```\n%s\n```\n\n", session.Error))
	}

	// Process log
	sb.WriteString("## Process\n\n")
	if len(session.Process) == 0 {
		sb.WriteString("*No steps recorded.*\n\n")
	} else {
		for i, step := range session.Process {
			sb.WriteString(fmt.Sprintf("### %d. %s (%s)\n\n", i+1, step.Name, step.Actor))
			if !step.At.IsZero() {
				sb.WriteString(fmt.Sprintf("*%s*\n\n", step.At.Format("3:04:05 PM")))
			}
			sb.WriteString(step.Content)
			sb.WriteString("\n\n---\n\n")
		}
	}

	if session.Summary != "" {
		sb.WriteString("## Summary\n\n")
		sb.WriteString(session.Summary)
		sb.WriteString("\n\n")
	}

	// Footer
	sb.WriteString("---\n\n")
	sb.WriteString("*Exported from gempt*\n")

	_, err := w.Write([]byte(sb.String()))
	return err
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}

// ContentType returns the MIME type for Markdown.
func (e *MarkdownExporter) ContentType() string {
	return "text/markdown; charset=utf-8"
}
