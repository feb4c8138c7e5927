// Package engine resolves disagreements between the Solver and the Verifier.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alienxp03/gempt/internal/core"
	"github.com/alienxp03/gempt/internal/ledger"
	"github.com/alienxp03/gempt/internal/verdict"
)

const (
	// DefaultMaxRounds is the number of defend/re-verify rounds before the
	// credit tie-break decides.
	DefaultMaxRounds = 5
	// DefaultMaxUnrecognizedRatio is the share of MaxRounds that may end
	// without a recognised verdict before the session fails.
	DefaultMaxUnrecognizedRatio = 0.5
	// MaxRoundsLimit keeps awards inside int range.
	MaxRoundsLimit = 30
)

var (
	// ErrTooManyUnrecognized is returned when too many rounds produced no
	// recognised verdict.
	ErrTooManyUnrecognized = errors.New("too many unrecognized verdicts")
	// ErrInvalidInput is returned when an Input is missing a collaborator.
	ErrInvalidInput = errors.New("invalid engine input")
)

// Config controls the debate loop.
type Config struct {
	MaxRounds            int
	MaxUnrecognizedRatio float64
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxRounds:            DefaultMaxRounds,
		MaxUnrecognizedRatio: DefaultMaxUnrecognizedRatio,
	}
}

func (c Config) normalized() Config {
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.MaxRounds > MaxRoundsLimit {
		c.MaxRounds = MaxRoundsLimit
	}
	if c.MaxUnrecognizedRatio <= 0 {
		c.MaxUnrecognizedRatio = DefaultMaxUnrecognizedRatio
	}
	return c
}

// VerifierAward returns the Verifier's credit for winning at round n:
// 2^(2n-1) - 1, i.e. 1, 7, 31, 127, 511.
func VerifierAward(n int) int {
	if n <= 0 {
		return 0
	}
	return 1<<(2*n-1) - 1
}

// SolverAward returns the Solver's credit for winning at round n:
// 2^(2n) - 1, i.e. 3, 15, 63, 255, 1023.
func SolverAward(n int) int {
	if n <= 0 {
		return 0
	}
	return 1<<(2*n) - 1
}

// DefendRequest asks the Solver to answer a critique.
type DefendRequest struct {
	Round    int
	Critique string
	Media    *core.Media
}

// ReactRequest asks the Verifier to judge a defense.
type ReactRequest struct {
	Round   int
	Defense string
	Media   *core.Media
}

// DefendFunc invokes the Solver. Errors are transport faults.
type DefendFunc func(ctx context.Context, req DefendRequest) (string, error)

// ReactFunc invokes the Verifier. Errors are transport faults.
type ReactFunc func(ctx context.Context, req ReactRequest) (string, error)

// RoundCallback is called after each round is recorded.
type RoundCallback func(round core.Round)

// Input is everything one resolution needs. The initial solve and verify
// happen before the engine runs.
type Input struct {
	ProjectID       string
	InitialSolution string
	InitialVerdict  core.Verdict
	Media           *core.Media
	Parser          *verdict.Parser
	Defend          DefendFunc
	React           ReactFunc
	OnRound         RoundCallback
}

// Engine drives the round loop and owns the score update.
type Engine struct {
	ledger ledger.Ledger
	cfg    Config
}

// New creates a new engine.
func New(l ledger.Ledger, cfg Config) *Engine {
	return &Engine{
		ledger: l,
		cfg:    cfg.normalized(),
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Scores returns the ledger scores of a project.
func (e *Engine) Scores(ctx context.Context, projectID string) core.Scores {
	return e.ledger.Load(ctx, projectID)
}

// resolution is the mutable state of one Resolve call.
type resolution struct {
	in     Input
	record *core.DecisionRecord
	scores core.Scores

	critique         string // text the Solver must answer next
	proposedSolution string // solution carried by that critique
	latestSolution   string // newest Verifier material: restated solution or critique
	unrecognized     int
	settled          bool
}

// Resolve runs the debate for one session and persists the updated scores
// exactly once. On any error nothing is persisted.
func (e *Engine) Resolve(ctx context.Context, in Input) (*core.DecisionRecord, error) {
	if in.ProjectID == "" {
		return nil, fmt.Errorf("%w: project ID is required", ErrInvalidInput)
	}
	if in.Parser == nil || in.Defend == nil || in.React == nil {
		return nil, fmt.Errorf("%w: parser, defend and react are required", ErrInvalidInput)
	}

	prev := e.ledger.Load(ctx, in.ProjectID)
	r := &resolution{
		in:     in,
		scores: prev,
		record: &core.DecisionRecord{
			ProjectID:      in.ProjectID,
			PreviousScores: prev,
			Transcript:     []core.Round{},
		},
	}

	slog.Debug("Resolving debate", "project_id", in.ProjectID, "initial_verdict", in.InitialVerdict.Kind)

	initial := in.InitialVerdict
	if initial.Kind == core.VerdictCorrect {
		r.record.Winner = core.Winner{Kind: core.WinnerAgreement}
		r.record.FinalAnswer = in.InitialSolution
		r.settled = true
	} else {
		if !initial.Recognized() {
			r.note("initial verification had no recognised verdict; treated as incorrect")
		}
		r.critique = firstNonEmpty(initial.Body, initial.Raw)
		r.proposedSolution = initial.Solution
		r.latestSolution = firstNonEmpty(initial.Solution, r.critique)

		if err := e.debate(ctx, r); err != nil {
			return nil, err
		}
	}

	if !r.settled {
		r.tiebreak()
	}

	if err := e.ledger.Save(ctx, in.ProjectID, r.scores); err != nil {
		return nil, fmt.Errorf("failed to save scores: %w", err)
	}
	r.record.Scores = r.scores

	slog.Info("Debate resolved",
		"project_id", in.ProjectID,
		"winner", r.record.Winner.Kind,
		"rounds", len(r.record.Transcript),
		"solver", r.scores.Solver,
		"verifier", r.scores.Verifier)

	return r.record, nil
}

func (e *Engine) debate(ctx context.Context, r *resolution) error {
	in := r.in

	for n := 1; n <= e.cfg.MaxRounds && !r.settled; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		round, err := e.playRound(ctx, r, n)
		if err != nil {
			return err
		}

		r.record.Transcript = append(r.record.Transcript, round)
		if in.OnRound != nil {
			in.OnRound(round)
		}

		if ratio := float64(r.unrecognized) / float64(e.cfg.MaxRounds); ratio > e.cfg.MaxUnrecognizedRatio {
			slog.Warn("Too many unrecognized verdicts",
				"project_id", in.ProjectID, "unrecognized", r.unrecognized, "max_rounds", e.cfg.MaxRounds)
			return fmt.Errorf("%w: %d of %d rounds", ErrTooManyUnrecognized, r.unrecognized, e.cfg.MaxRounds)
		}
	}

	return nil
}

// playRound runs one Defending (and possibly Reacting) step.
func (e *Engine) playRound(ctx context.Context, r *resolution, n int) (core.Round, error) {
	in := r.in
	round := core.Round{Index: n}

	defense, err := in.Defend(ctx, DefendRequest{Round: n, Critique: r.critique, Media: in.Media})
	if err != nil {
		return round, fmt.Errorf("round %d: solver defense failed: %w", n, err)
	}
	dv := in.Parser.ParseDefense(defense)
	round.DefenseText = defense
	round.DefenseDecision = dv.Kind

	slog.Debug("Defense parsed", "project_id", in.ProjectID, "round", n, "decision", dv.Kind)

	switch dv.Kind {
	case core.VerdictAdmit:
		r.award(&round, core.Verifier, VerifierAward(n))
		r.settle(core.WinnerVerifier, firstNonEmpty(dv.Solution, r.proposedSolution, dv.Body))
		return round, nil

	case core.VerdictRebut:
		// handled below

	default:
		r.unrecognized++
		round.Note = "defense had no recognised decision; treated as rejected"
		r.note(fmt.Sprintf("round %d: %s", n, round.Note))
		return round, nil
	}

	reaction, err := in.React(ctx, ReactRequest{Round: n, Defense: defense, Media: in.Media})
	if err != nil {
		return round, fmt.Errorf("round %d: verifier reaction failed: %w", n, err)
	}
	rv := in.Parser.ParseReaction(reaction)
	round.ReactionText = reaction
	round.ReactionDecision = rv.Kind

	slog.Debug("Reaction parsed", "project_id", in.ProjectID, "round", n, "decision", rv.Kind)

	switch rv.Kind {
	case core.VerdictResolved:
		r.award(&round, core.Verifier, VerifierAward(n))
		r.settle(core.WinnerVerifier, dv.Body)

	case core.VerdictConceded:
		r.award(&round, core.Solver, SolverAward(n))
		r.settle(core.WinnerSolver, dv.Body)

	case core.VerdictRejected:
		r.critique = firstNonEmpty(rv.Body, reaction)
		r.proposedSolution = rv.Solution
		r.latestSolution = firstNonEmpty(rv.Solution, r.critique)

	default:
		r.unrecognized++
		round.Note = "reaction had no recognised decision; treated as rejected"
		r.note(fmt.Sprintf("round %d: %s", n, round.Note))
		r.critique = reaction
		r.proposedSolution = in.Parser.ProposedSolution(reaction)
		r.latestSolution = firstNonEmpty(r.proposedSolution, r.critique)
	}

	return round, nil
}

func (r *resolution) award(round *core.Round, p core.Participant, points int) {
	r.scores = r.scores.Award(p, points)
	round.AwardedTo = p
	round.Award = points
}

func (r *resolution) settle(kind core.WinnerKind, final string) {
	r.record.Winner = core.Winner{Kind: kind}
	r.record.FinalAnswer = final
	r.settled = true
}

// tiebreak decides a debate that ran out of rounds. Equal scores favour
// the Solver.
func (r *resolution) tiebreak() {
	compared := r.scores
	w := core.Winner{Kind: core.WinnerTiebreak, Scores: &compared}

	if r.scores.Solver >= r.scores.Verifier {
		w.Leader = core.Solver
		r.record.FinalAnswer = r.in.InitialSolution
	} else {
		w.Leader = core.Verifier
		r.record.FinalAnswer = r.latestSolution
	}

	r.record.Winner = w
	r.settled = true
}

func (r *resolution) note(msg string) {
	r.record.Diagnostics = append(r.record.Diagnostics, msg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
