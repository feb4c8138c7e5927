package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alienxp03/gempt/internal/core"
	"github.com/alienxp03/gempt/internal/knowledge"
	"github.com/alienxp03/gempt/internal/oracle"
	"github.com/alienxp03/gempt/internal/prompt"
)

// DebateSummary is the structured digest of a debate.
type DebateSummary struct {
	CalculationSummary string   `json:"calculation_summary"`
	SolverErrors       []string `json:"solver_errors"`
	VerifierEvidence   []string `json:"verifier_evidence"`
}

// Report is the five-part post-debate report.
type Report struct {
	FinalAnswer string
	Summary     DebateSummary
	Conclusion  string
}

// summarize builds the report. Oracle or parse failures fall back to fixed
// text and never fail the session.
func (o *Orchestrator) summarize(ctx context.Context, r *run) string {
	sess, labels := r.sess, r.dialect.Labels
	decision := sess.Decision

	report := Report{
		FinalAnswer: decision.FinalAnswer,
		Summary: DebateSummary{
			CalculationSummary: labels.NotApplicable,
			SolverErrors:       []string{labels.NoErrors},
			VerifierEvidence:   []string{labels.NoVerification},
		},
	}

	if decision.Winner.Kind != core.WinnerAgreement {
		ds, err := o.debateSummary(ctx, r)
		if err != nil {
			slog.Warn("Failed to generate debate summary", "session_id", sess.ID, "error", err)
			report.Summary.SolverErrors = []string{labels.ExtractFailed}
			report.Summary.VerifierEvidence = []string{sess.InitialVerification}
		} else {
			report.Summary.merge(ds)
		}
	}

	conclusion, err := o.conclusion(ctx, r)
	if err != nil {
		slog.Warn("Failed to generate conclusion", "session_id", sess.ID, "error", err)
		conclusion = labels.ConclusionFailed
	}
	report.Conclusion = conclusion

	return report.Render(labels)
}

func (o *Orchestrator) debateSummary(ctx context.Context, r *run) (DebateSummary, error) {
	var ds DebateSummary

	text, err := prompt.Render(r.dialect.DebateSummary, prompt.Data{
		Solution:     r.sess.InitialSolution,
		Verification: r.sess.InitialVerification,
	})
	if err != nil {
		return ds, err
	}
	out, err := oracle.Invoke(ctx, o.verifier, o.cfg.Timeout, oracle.Request{Role: core.Verifier, Prompt: text})
	if err != nil {
		return ds, err
	}
	if err := json.Unmarshal([]byte(knowledge.StripFences(out)), &ds); err != nil {
		return ds, fmt.Errorf("failed to parse debate summary: %w", err)
	}
	return ds, nil
}

func (o *Orchestrator) conclusion(ctx context.Context, r *run) (string, error) {
	text, err := prompt.Render(r.dialect.Conclusion, prompt.Data{
		Winner:      r.sess.Decision.Winner.String(),
		FinalAnswer: r.sess.Decision.FinalAnswer,
	})
	if err != nil {
		return "", err
	}
	out, err := oracle.Invoke(ctx, o.verifier, o.cfg.Timeout, oracle.Request{Role: core.Verifier, Prompt: text})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// merge overwrites fields that the oracle actually filled.
func (s *DebateSummary) merge(other DebateSummary) {
	if strings.TrimSpace(other.CalculationSummary) != "" {
		s.CalculationSummary = other.CalculationSummary
	}
	if len(other.SolverErrors) > 0 {
		s.SolverErrors = other.SolverErrors
	}
	if len(other.VerifierEvidence) > 0 {
		s.VerifierEvidence = other.VerifierEvidence
	}
}

// Render formats the report with the dialect's headings.
func (rep Report) Render(labels prompt.Labels) string {
	var sb strings.Builder

	section := func(heading, body string) {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(heading)
		sb.WriteString("\n")
		sb.WriteString(body)
	}

	section(labels.ReportFinal, rep.FinalAnswer)
	section(labels.ReportBasis, rep.Summary.CalculationSummary)
	section(labels.ReportErrors, bullets(rep.Summary.SolverErrors))
	section(labels.ReportEvidence, bullets(rep.Summary.VerifierEvidence))
	section(labels.ReportConclusion, rep.Conclusion)

	return strings.TrimSpace(sb.String())
}

func bullets(items []string) string {
	return "- " + strings.Join(items, "\n- ")
}
