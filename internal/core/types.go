// Package core contains the core domain types for gempt.
package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// SessionStatus represents the current status of a session.
type SessionStatus string

const (
	StatusPending    SessionStatus = "pending"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
)

// Participant identifies one side of a debate.
type Participant string

const (
	Solver   Participant = "Solver"
	Verifier Participant = "Verifier"
)

// Scores holds the cumulative credit of both participants for one project.
type Scores struct {
	Solver   int `json:"Solver"`
	Verifier int `json:"Verifier"`
}

// Of returns the score of the given participant.
func (s Scores) Of(p Participant) int {
	if p == Verifier {
		return s.Verifier
	}
	return s.Solver
}

// Award returns a copy of s with points added to the participant.
// Non-positive points leave the scores untouched.
func (s Scores) Award(p Participant, points int) Scores {
	if points <= 0 {
		return s
	}
	switch p {
	case Solver:
		s.Solver += points
	case Verifier:
		s.Verifier += points
	}
	return s
}

// NonNegative returns s with negative values raised to zero.
func (s Scores) NonNegative() Scores {
	s.Solver = max(s.Solver, 0)
	s.Verifier = max(s.Verifier, 0)
	return s
}

// UnmarshalJSON also accepts the legacy {"GPT": n, "Gemini": n} form.
// Negative values are read as zero.
func (s *Scores) UnmarshalJSON(data []byte) error {
	var raw struct {
		Solver   *int `json:"Solver"`
		Verifier *int `json:"Verifier"`
		GPT      *int `json:"GPT"`
		Gemini   *int `json:"Gemini"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Scores{}
	switch {
	case raw.Solver != nil:
		s.Solver = *raw.Solver
	case raw.GPT != nil:
		s.Solver = *raw.GPT
	}
	switch {
	case raw.Verifier != nil:
		s.Verifier = *raw.Verifier
	case raw.Gemini != nil:
		s.Verifier = *raw.Gemini
	}
	*s = s.NonNegative()
	return nil
}

// Delta returns the per-participant difference s - prev.
func (s Scores) Delta(prev Scores) Scores {
	return Scores{Solver: s.Solver - prev.Solver, Verifier: s.Verifier - prev.Verifier}
}

// WinnerKind is the outcome category of a resolved debate.
type WinnerKind string

const (
	WinnerAgreement WinnerKind = "Draw-by-agreement"
	WinnerVerifier  WinnerKind = "Verifier"
	WinnerSolver    WinnerKind = "Solver"
	WinnerTiebreak  WinnerKind = "Draw-by-credit-tiebreak"
)

// Winner describes who prevailed. For a credit tie-break, Scores holds the
// two compared scores and Leader the side whose material was adopted.
type Winner struct {
	Kind   WinnerKind  `json:"kind"`
	Leader Participant `json:"leader,omitempty"`
	Scores *Scores     `json:"scores,omitempty"`
}

// String renders the winner for reports.
func (w Winner) String() string {
	if w.Kind == WinnerTiebreak && w.Scores != nil {
		return fmt.Sprintf("%s (%s leads: Solver %d vs Verifier %d)",
			w.Kind, w.Leader, w.Scores.Solver, w.Scores.Verifier)
	}
	return string(w.Kind)
}

// Round is one defend/re-verify iteration. Rounds are immutable once recorded.
type Round struct {
	Index            int         `json:"index"`
	DefenseText      string      `json:"defense_text"`
	DefenseDecision  VerdictKind `json:"defense_decision"`
	ReactionText     string      `json:"reaction_text,omitempty"`
	ReactionDecision VerdictKind `json:"reaction_decision,omitempty"`
	AwardedTo        Participant `json:"awarded_to,omitempty"`
	Award            int         `json:"award,omitempty"`
	Note             string      `json:"note,omitempty"`
}

// DecisionRecord is the engine's output for one session.
type DecisionRecord struct {
	ProjectID      string   `json:"project_id"`
	Winner         Winner   `json:"winner"`
	FinalAnswer    string   `json:"final_answer"`
	PreviousScores Scores   `json:"previous_scores"`
	Scores         Scores   `json:"scores"`
	Transcript     []Round  `json:"transcript"`
	Diagnostics    []string `json:"diagnostics,omitempty"`
}

// Step is one entry of a session's process log, in the order it happened.
type Step struct {
	Actor   string    `json:"model"`
	Name    string    `json:"step"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session represents one debate instance for a single (image, question) pair.
type Session struct {
	ID                  string          `json:"id"`
	ProjectID           string          `json:"project_id"`
	Question            string          `json:"question"`
	Dialect             string          `json:"dialect"`
	MediaName           string          `json:"media_name,omitempty"`
	MediaType           string          `json:"media_type,omitempty"`
	Subject             string          `json:"subject,omitempty"`
	InitialSolution     string          `json:"initial_solution,omitempty"`
	InitialVerification string          `json:"initial_verification,omitempty"`
	Status              SessionStatus   `json:"status"`
	Decision            *DecisionRecord `json:"decision,omitempty"`
	Summary             string          `json:"summary,omitempty"`
	Process             []Step          `json:"process"`
	Error               string          `json:"error,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
}

// AddStep appends an entry to the process log.
func (s *Session) AddStep(actor, name, content string) {
	s.Process = append(s.Process, Step{
		Actor:   actor,
		Name:    name,
		Content: content,
		At:      time.Now(),
	})
}

// IsFinished returns true once the session reached a terminal status.
func (s *Session) IsFinished() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// SessionSummary is a lightweight representation for listing sessions.
type SessionSummary struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"project_id"`
	Question  string        `json:"question"`
	Status    SessionStatus `json:"status"`
	Winner    WinnerKind    `json:"winner,omitempty"`
	Rounds    int           `json:"rounds"`
	CreatedAt time.Time     `json:"created_at"`
}
