// Package session runs one solve request end to end: the optional
// knowledge pre-step, the initial solve and verify, debate resolution and
// the optional summary. Every session is persisted with its process log.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alienxp03/gempt/internal/core"
	"github.com/alienxp03/gempt/internal/engine"
	"github.com/alienxp03/gempt/internal/knowledge"
	"github.com/alienxp03/gempt/internal/oracle"
	"github.com/alienxp03/gempt/internal/prompt"
	"github.com/alienxp03/gempt/internal/storage"
	"github.com/alienxp03/gempt/internal/verdict"
)

// DefaultProject is used when a request carries no project ID.
const DefaultProject = "default"

var (
	// ErrNoMedia is returned when a request has no image.
	ErrNoMedia = errors.New("an image is required")
	// ErrUnknownDialect is returned for a dialect ID that is not built in.
	ErrUnknownDialect = errors.New("unknown dialect")
	// ErrSessionRunning is returned when deleting a session that has not
	// finished.
	ErrSessionRunning = errors.New("session is still running")
)

// Config holds orchestrator settings.
type Config struct {
	// DefaultProject replaces an empty project ID.
	DefaultProject string
	// Dialect is the default dialect ID.
	Dialect string
	// Timeout bounds each oracle call.
	Timeout time.Duration
	// Summary enables the post-debate report.
	Summary bool
}

// Request is one solve request.
type Request struct {
	ProjectID     string
	Question      string
	Dialect       string
	Media         *core.Media
	SkipKnowledge bool
	SkipSummary   bool
}

// Callbacks report progress while a session runs.
type Callbacks struct {
	OnStep  func(step core.Step)
	OnRound func(round core.Round)
}

// Result is the outcome returned to callers.
type Result struct {
	ID          string      `json:"id"`
	Winner      string      `json:"winner"`
	FinalAnswer string      `json:"final_answer"`
	Scores      core.Scores `json:"scores"`
	Summary     string      `json:"summary,omitempty"`
	Process     []core.Step `json:"process"`

	Session *core.Session `json:"-"`
}

// Orchestrator composes the oracles, the engine and storage.
type Orchestrator struct {
	store     storage.Storage
	engine    *engine.Engine
	solver    oracle.Oracle
	verifier  oracle.Oracle
	knowledge *knowledge.Builder
	cfg       Config
}

// New creates an orchestrator. kb may be nil to disable the knowledge
// pre-step.
func New(store storage.Storage, eng *engine.Engine, solver, verifier oracle.Oracle, kb *knowledge.Builder, cfg Config) *Orchestrator {
	if cfg.DefaultProject == "" {
		cfg.DefaultProject = DefaultProject
	}
	if cfg.Dialect == "" {
		cfg.Dialect = prompt.Default().ID
	}
	return &Orchestrator{
		store:     store,
		engine:    eng,
		solver:    solver,
		verifier:  verifier,
		knowledge: kb,
		cfg:       cfg,
	}
}

// Engine returns the debate engine.
func (o *Orchestrator) Engine() *engine.Engine {
	return o.engine
}

// Storage returns the session store.
func (o *Orchestrator) Storage() storage.Storage {
	return o.store
}

// run carries the state of one session.
type run struct {
	sess    *core.Session
	dialect *prompt.Dialect
	parser  *verdict.Parser
	media   *core.Media
	cb      Callbacks
}

func (r *run) step(actor, name, content string) {
	r.sess.AddStep(actor, name, content)
	if r.cb.OnStep != nil {
		r.cb.OnStep(r.sess.Process[len(r.sess.Process)-1])
	}
}

// Solve runs a session without progress callbacks.
func (o *Orchestrator) Solve(ctx context.Context, req Request) (*Result, error) {
	return o.SolveWithCallbacks(ctx, req, Callbacks{})
}

// SolveWithCallbacks runs a session and reports each step and round.
func (o *Orchestrator) SolveWithCallbacks(ctx context.Context, req Request, cb Callbacks) (*Result, error) {
	if req.Media == nil {
		return nil, ErrNoMedia
	}
	dialectID := req.Dialect
	if dialectID == "" {
		dialectID = o.cfg.Dialect
	}
	d := prompt.Get(dialectID)
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, dialectID)
	}

	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" {
		projectID = o.cfg.DefaultProject
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = d.Labels.DefaultQuestion
	}

	now := time.Now()
	sess := &core.Session{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Question:  question,
		Dialect:   d.ID,
		MediaName: req.Media.Name,
		MediaType: req.Media.MIMEType,
		Status:    core.StatusPending,
		Process:   []core.Step{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.store.CreateSession(sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sess.Status = core.StatusInProgress
	if err := o.store.UpdateSession(sess); err != nil {
		slog.Warn("Failed to update session status", "session_id", sess.ID, "error", err)
	}

	slog.Info("Session started",
		"session_id", sess.ID,
		"project_id", projectID,
		"dialect", d.ID,
	)

	r := &run{
		sess:    sess,
		dialect: d,
		parser:  verdict.ForDialect(d),
		media:   req.Media,
		cb:      cb,
	}

	if err := o.execute(ctx, r, req); err != nil {
		return nil, o.fail(sess, err)
	}

	completed := time.Now()
	sess.Status = core.StatusCompleted
	sess.CompletedAt = &completed
	if err := o.store.UpdateSession(sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("Session completed",
		"session_id", sess.ID,
		"project_id", projectID,
		"winner", sess.Decision.Winner.Kind,
		"rounds", len(sess.Decision.Transcript),
		"duration", completed.Sub(sess.CreatedAt),
	)

	return &Result{
		ID:          sess.ID,
		Winner:      sess.Decision.Winner.String(),
		FinalAnswer: sess.Decision.FinalAnswer,
		Scores:      sess.Decision.Scores,
		Summary:     sess.Summary,
		Process:     sess.Process,
		Session:     sess,
	}, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run, req Request) error {
	sess, d := r.sess, r.dialect

	var knowledgeText string
	if o.knowledge != nil && !req.SkipKnowledge {
		res, err := o.knowledge.Build(ctx, d, sess.Question, r.media, sess)
		switch {
		case err == nil:
			sess.Subject = res.Subject
			knowledgeText = res.Text
			if r.cb.OnStep != nil {
				for _, st := range sess.Process {
					r.cb.OnStep(st)
				}
			}
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			// Knowledge is optional; continue with a bare prompt.
			slog.Warn("Knowledge pre-step failed, continuing without it",
				"session_id", sess.ID,
				"error", err,
			)
		}
	}

	solverPrompt, err := prompt.Render(d.SolverInit, prompt.Data{
		Question:         sess.Question,
		KnowledgePackage: knowledgeText,
	})
	if err != nil {
		return err
	}
	solution, err := oracle.Invoke(ctx, o.solver, o.cfg.Timeout, oracle.Request{
		Role:   core.Solver,
		System: solverPrompt,
		Prompt: sess.Question,
		Media:  r.media,
	})
	if err != nil {
		return fmt.Errorf("failed to get initial solution: %w", err)
	}
	sess.InitialSolution = solution
	r.step(string(core.Solver), d.Labels.InitialSolution, solution)

	verifyPrompt, err := prompt.Render(d.VerifierInit, prompt.Data{
		Question: sess.Question,
		Solution: solution,
	})
	if err != nil {
		return err
	}
	verification, err := oracle.Invoke(ctx, o.verifier, o.cfg.Timeout, oracle.Request{
		Role:   core.Verifier,
		Prompt: verifyPrompt,
		Media:  r.media,
	})
	if err != nil {
		return fmt.Errorf("failed to verify initial solution: %w", err)
	}
	sess.InitialVerification = verification
	r.step(string(core.Verifier), d.Labels.Verification, verification)

	decision, err := o.engine.Resolve(ctx, engine.Input{
		ProjectID:       sess.ProjectID,
		InitialSolution: solution,
		InitialVerdict:  r.parser.ParseVerification(verification),
		Media:           r.media,
		Parser:          r.parser,
		Defend:          o.defend(r),
		React:           o.react(r),
		OnRound:         r.cb.OnRound,
	})
	if err != nil {
		return err
	}
	sess.Decision = decision

	if o.cfg.Summary && !req.SkipSummary {
		sess.Summary = o.summarize(ctx, r)
		r.step(knowledge.Actor, d.Labels.Summary, sess.Summary)
	}
	return nil
}

// defend asks the Solver to answer a critique. The initial solution travels
// as context since oracles keep no history.
func (o *Orchestrator) defend(r *run) engine.DefendFunc {
	return func(ctx context.Context, req engine.DefendRequest) (string, error) {
		text, err := prompt.Render(r.dialect.SolverDefense, prompt.Data{Critique: req.Critique})
		if err != nil {
			return "", err
		}
		out, err := oracle.Invoke(ctx, o.solver, o.cfg.Timeout, oracle.Request{
			Role:    core.Solver,
			Prompt:  text,
			Context: r.sess.InitialSolution,
			Media:   req.Media,
		})
		if err != nil {
			return "", fmt.Errorf("failed to get round %d defense: %w", req.Round, err)
		}
		r.step(string(core.Solver), fmt.Sprintf(r.dialect.Labels.Defense, req.Round), out)
		return out, nil
	}
}

func (o *Orchestrator) react(r *run) engine.ReactFunc {
	return func(ctx context.Context, req engine.ReactRequest) (string, error) {
		text, err := prompt.Render(r.dialect.VerifierRebuttal, prompt.Data{Defense: req.Defense})
		if err != nil {
			return "", err
		}
		out, err := oracle.Invoke(ctx, o.verifier, o.cfg.Timeout, oracle.Request{
			Role:   core.Verifier,
			Prompt: text,
			Media:  req.Media,
		})
		if err != nil {
			return "", fmt.Errorf("failed to get round %d reaction: %w", req.Round, err)
		}
		r.step(string(core.Verifier), fmt.Sprintf(r.dialect.Labels.Reaction, req.Round), out)
		return out, nil
	}
}

// fail marks the session failed and returns the wrapped cause.
func (o *Orchestrator) fail(sess *core.Session, cause error) error {
	sess.Status = core.StatusFailed
	sess.Error = cause.Error()
	if err := o.store.UpdateSession(sess); err != nil {
		slog.Error("Failed to record session failure", "session_id", sess.ID, "error", err)
	}

	slog.Error("Session failed",
		"session_id", sess.ID,
		"project_id", sess.ProjectID,
		"error", cause,
	)
	return fmt.Errorf("session %s failed: %w", sess.ID, cause)
}

// Get returns a stored session.
func (o *Orchestrator) Get(id string) (*core.Session, error) {
	sess, err := o.store.GetSession(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, storage.ErrNotFound
	}
	return sess, nil
}

// List returns stored session summaries.
func (o *Orchestrator) List(limit, offset int, projectID string) ([]*core.SessionSummary, error) {
	return o.store.ListSessions(limit, offset, projectID)
}

// Delete removes a finished session.
func (o *Orchestrator) Delete(id string) error {
	sess, err := o.Get(id)
	if err != nil {
		return err
	}
	if !sess.IsFinished() {
		return fmt.Errorf("%w: %s", ErrSessionRunning, sess.Status)
	}
	return o.store.DeleteSession(id)
}

// Scores returns the ledger scores of a project.
func (o *Orchestrator) Scores(ctx context.Context, projectID string) core.Scores {
	if projectID == "" {
		projectID = o.cfg.DefaultProject
	}
	return o.engine.Scores(ctx, projectID)
}
