// Package verdict extracts categorical outcomes from oracle text.
package verdict

import (
	"strings"

	"github.com/alienxp03/gempt/internal/core"
	"github.com/alienxp03/gempt/internal/prompt"
)

// Parser recognises verdicts by the marker phrases of one dialect.
type Parser struct {
	markers prompt.Markers
}

// New creates a parser for the given markers.
func New(markers prompt.Markers) *Parser {
	return &Parser{markers: markers}
}

// ForDialect creates a parser for a dialect.
func ForDialect(d *prompt.Dialect) *Parser {
	return New(d.Markers)
}

// Markers returns the markers the parser matches.
func (p *Parser) Markers() prompt.Markers {
	return p.markers
}

func (p *Parser) marker(kind core.VerdictKind) string {
	switch kind {
	case core.VerdictCorrect:
		return p.markers.Correct
	case core.VerdictIncorrect:
		return p.markers.Incorrect
	case core.VerdictAdmit:
		return p.markers.Admit
	case core.VerdictRebut:
		return p.markers.Rebut
	case core.VerdictResolved:
		return p.markers.Resolved
	case core.VerdictConceded:
		return p.markers.Conceded
	case core.VerdictRejected:
		return p.markers.Rejected
	}
	return ""
}

// Parse returns exactly one verdict for raw, restricted to the expected kinds.
//
// The explicit marker that occurs first in the text wins; equal positions
// fall back to the order of expected. A kind whose marker is empty is
// implicit and is chosen only when no explicit marker matched. With no
// match at all the result is VerdictUnrecognized carrying the raw text.
func (p *Parser) Parse(raw string, expected []core.VerdictKind) core.Verdict {
	kind, marker := core.VerdictUnrecognized, ""
	best := -1
	implicit := core.VerdictKind("")

	for _, k := range expected {
		m := p.marker(k)
		if m == "" {
			if implicit == "" {
				implicit = k
			}
			continue
		}
		idx := strings.Index(raw, m)
		if idx < 0 {
			continue
		}
		if best < 0 || idx < best {
			best, kind, marker = idx, k, m
		}
	}

	if best < 0 && implicit != "" && strings.TrimSpace(raw) != "" {
		kind = implicit
	}

	v := core.Verdict{Kind: kind, Raw: raw, Body: stripMarker(raw, marker)}

	switch kind {
	case core.VerdictIncorrect, core.VerdictRejected:
		v.Critique = p.critique(v.Body)
		v.Solution = section(v.Body, p.markers.SolutionHeading, p.headings())
	case core.VerdictAdmit:
		v.Solution = section(v.Body, p.markers.CorrectedHeading, p.headings())
	}

	return v
}

// ParseVerification parses the Verifier's initial audit.
func (p *Parser) ParseVerification(raw string) core.Verdict {
	return p.Parse(raw, core.VerifyDecisions)
}

// ParseDefense parses the Solver's reply to a critique.
func (p *Parser) ParseDefense(raw string) core.Verdict {
	return p.Parse(raw, core.DefenseDecisions)
}

// ParseReaction parses the Verifier's reaction to a rebuttal.
func (p *Parser) ParseReaction(raw string) core.Verdict {
	return p.Parse(raw, core.ReactionDecisions)
}

// ProposedSolution returns the solution section of a critique text, if any.
func (p *Parser) ProposedSolution(text string) string {
	return section(text, p.markers.SolutionHeading, p.headings())
}

// critique returns the critique section when delimited, otherwise the
// text preceding the proposed solution.
func (p *Parser) critique(body string) string {
	if c := section(body, p.markers.CritiqueHeading, p.headings()); c != "" {
		return c
	}
	if h := p.markers.SolutionHeading; h != "" {
		if idx := strings.Index(body, h); idx >= 0 {
			return strings.TrimSpace(body[:idx])
		}
	}
	return body
}

func (p *Parser) headings() []string {
	var hs []string
	for _, h := range []string{p.markers.CritiqueHeading, p.markers.SolutionHeading, p.markers.CorrectedHeading} {
		if h != "" {
			hs = append(hs, h)
		}
	}
	return hs
}

// section returns the text following heading up to the next known heading.
func section(text, heading string, stops []string) string {
	if heading == "" {
		return ""
	}
	idx := strings.Index(text, heading)
	if idx < 0 {
		return ""
	}
	rest := text[idx+len(heading):]

	end := len(rest)
	for _, s := range stops {
		if s == heading {
			continue
		}
		if i := strings.Index(rest, s); i >= 0 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(rest[:end])
}

func stripMarker(raw, marker string) string {
	if marker == "" {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(strings.Replace(raw, marker, "", 1))
}
