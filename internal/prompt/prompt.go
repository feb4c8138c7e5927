// Package prompt defines the prompt dialects used to talk to the oracles.
//
// A dialect bundles the role prompts with the marker phrases the oracles are
// instructed to emit. The verdict parser reads those same markers, so one
// dialect must be used for the whole of a session.
package prompt

import (
	"bytes"
	"fmt"
	"text/template"
)

// Markers are the literal phrases that signal a verdict.
//
// An empty marker is implicit: it matches whenever none of the other
// expected markers of the same stage is present.
type Markers struct {
	Correct   string `json:"correct"`
	Incorrect string `json:"incorrect"`
	Admit     string `json:"admit"`
	Rebut     string `json:"rebut"`
	Resolved  string `json:"resolved"`
	Conceded  string `json:"conceded"`
	Rejected  string `json:"rejected"`

	// Section headings that delimit payloads.
	CritiqueHeading  string `json:"critique_heading"`
	SolutionHeading  string `json:"solution_heading"`
	CorrectedHeading string `json:"corrected_heading"`
}

// Labels are the human-readable names used in process logs and reports.
type Labels struct {
	Subject         string
	Crawl           string
	Package         string
	InitialSolution string
	Verification    string
	Defense         string // formatted with the round number
	Reaction        string // formatted with the round number
	Summary         string

	// Five-part report headings.
	ReportFinal      string
	ReportBasis      string
	ReportErrors     string
	ReportEvidence   string
	ReportConclusion string

	// Fallback texts.
	NotApplicable     string
	NoErrors          string
	NoVerification    string
	ExtractFailed     string
	ConclusionFailed  string
	NoSearchResults   string
	SearchFailed      string // formatted with the error
	DefaultQuestion   string
	SearchResultLabel string // formatted with the query
}

// Dialect is one language/format for the whole debate.
type Dialect struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	SubjectClassifier string `json:"-"`
	QueryGenerator    string `json:"-"`
	PackageGenerator  string `json:"-"`
	SolverInit        string `json:"-"`
	VerifierInit      string `json:"-"`
	SolverDefense     string `json:"-"`
	VerifierRebuttal  string `json:"-"`
	DebateSummary     string `json:"-"`
	Conclusion        string `json:"-"`

	Markers Markers `json:"markers"`
	Labels  Labels  `json:"-"`
}

// Data is the template input shared by every prompt.
type Data struct {
	Question         string
	Subject          string
	SearchResults    string
	KnowledgePackage string
	Solution         string
	Critique         string
	Defense          string
	Verification     string
	Winner           string
	FinalAnswer      string
}

// Render executes a prompt template against data.
func Render(promptTemplate string, data Data) (string, error) {
	tmpl, err := template.New("prompt").Parse(promptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

// DefaultDialects returns the built-in dialects.
func DefaultDialects() []Dialect {
	return []Dialect{english(), korean()}
}

// Get returns a dialect by ID.
func Get(id string) *Dialect {
	for _, d := range DefaultDialects() {
		if d.ID == id {
			return &d
		}
	}
	return nil
}

// List returns all available dialect IDs.
func List() []string {
	dialects := DefaultDialects()
	ids := make([]string, len(dialects))
	for i, d := range dialects {
		ids[i] = d.ID
	}
	return ids
}

// Valid checks if a dialect ID is valid.
func Valid(id string) bool {
	return Get(id) != nil
}

// Default returns the default dialect.
func Default() *Dialect {
	return Get("en")
}
