package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alienxp03/gempt/internal/core"
	"github.com/alienxp03/gempt/internal/ledger"
	"github.com/alienxp03/gempt/internal/prompt"
	"github.com/alienxp03/gempt/internal/verdict"
)

const project = "team_hackathon_demo"

// script feeds queued oracle replies to the engine.
type script struct {
	defenses  []string
	reactions []string
	defendN   int
	reactN    int
	defendErr error
	critiques []string
}

func (s *script) defend(ctx context.Context, req DefendRequest) (string, error) {
	s.critiques = append(s.critiques, req.Critique)
	if s.defendErr != nil {
		return "", s.defendErr
	}
	if s.defendN >= len(s.defenses) {
		return "", fmt.Errorf("unexpected defense call %d", s.defendN+1)
	}
	out := s.defenses[s.defendN]
	s.defendN++
	return out, nil
}

func (s *script) react(ctx context.Context, req ReactRequest) (string, error) {
	if s.reactN >= len(s.reactions) {
		return "", fmt.Errorf("unexpected reaction call %d", s.reactN+1)
	}
	out := s.reactions[s.reactN]
	s.reactN++
	return out, nil
}

func setupTestEngine(t *testing.T, cfg Config) (*Engine, *ledger.Memory) {
	t.Helper()
	mem := ledger.NewMemory()
	return New(mem, cfg), mem
}

func input(s *script, initial core.Verdict) Input {
	return Input{
		ProjectID:       project,
		InitialSolution: "initial: x = 1",
		InitialVerdict:  initial,
		Parser:          verdict.ForDialect(prompt.Get("en")),
		Defend:          s.defend,
		React:           s.react,
	}
}

func incorrect() core.Verdict {
	return verdict.ForDialect(prompt.Get("en")).ParseVerification(
		"VERDICT: INCORRECT\n## Critique\nsign error\n## Correct Solution\nx = -1")
}

func TestAwards(t *testing.T) {
	verifier := []int{1, 7, 31, 127, 511}
	solver := []int{3, 15, 63, 255, 1023}

	for i := range verifier {
		n := i + 1
		if got := VerifierAward(n); got != verifier[i] {
			t.Errorf("VerifierAward(%d) = %d, want %d", n, got, verifier[i])
		}
		if got := SolverAward(n); got != solver[i] {
			t.Errorf("SolverAward(%d) = %d, want %d", n, got, solver[i])
		}
		if SolverAward(n) <= VerifierAward(n) {
			t.Errorf("round %d: solver award must exceed verifier award", n)
		}
	}

	if VerifierAward(0) != 0 || SolverAward(-1) != 0 {
		t.Error("non-positive rounds must award nothing")
	}
}

func TestAgreementShortCircuit(t *testing.T) {
	eng, mem := setupTestEngine(t, DefaultConfig())
	mem.Save(context.Background(), project, core.Scores{Solver: 3, Verifier: 1})

	s := &script{}
	rec, err := eng.Resolve(context.Background(), input(s, core.Verdict{Kind: core.VerdictCorrect}))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if rec.Winner.Kind != core.WinnerAgreement {
		t.Errorf("wrong winner: %s", rec.Winner.Kind)
	}
	if rec.FinalAnswer != "initial: x = 1" {
		t.Errorf("wrong final answer: %q", rec.FinalAnswer)
	}
	if len(rec.Transcript) != 0 || s.defendN != 0 {
		t.Error("no round may run on agreement")
	}
	if rec.Scores != rec.PreviousScores {
		t.Errorf("scores changed on agreement: %+v -> %+v", rec.PreviousScores, rec.Scores)
	}
	// Existing saves: 1 from setup, 1 from the session.
	if mem.Saves() != 2 {
		t.Errorf("expected exactly one session save, got %d", mem.Saves()-1)
	}
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name       string
		defenses   []string
		reactions  []string
		wantWinner core.WinnerKind
		wantFinal  string
		wantScores core.Scores
		wantRounds int
	}{
		{
			name:       "ImmediateAdmit",
			defenses:   []string{"[DECISION]: ADMIT\nmy bad\n## Corrected Solution\nx = -1 (fixed)"},
			wantWinner: core.WinnerVerifier,
			wantFinal:  "x = -1 (fixed)",
			wantScores: core.Scores{Verifier: 1},
			wantRounds: 1,
		},
		{
			name:       "SuccessfulRebut",
			defenses:   []string{"[DECISION]: REBUT\nthe image shows 1"},
			reactions:  []string{"VERDICT: CONCEDED"},
			wantWinner: core.WinnerSolver,
			wantFinal:  "the image shows 1",
			wantScores: core.Scores{Solver: 3},
			wantRounds: 1,
		},
		{
			name:       "ResolvedAfterRebut",
			defenses:   []string{"[DECISION]: REBUT\nfixed inline"},
			reactions:  []string{"VERDICT: RESOLVED"},
			wantWinner: core.WinnerVerifier,
			wantFinal:  "fixed inline",
			wantScores: core.Scores{Verifier: 1},
			wantRounds: 1,
		},
		{
			name: "ConcededInRoundTwo",
			defenses: []string{
				"[DECISION]: REBUT\nfirst try",
				"[DECISION]: REBUT\nsecond try",
			},
			reactions: []string{
				"VERDICT: REJECTED\n## Correct Solution\nx = -1",
				"VERDICT: CONCEDED",
			},
			wantWinner: core.WinnerSolver,
			wantFinal:  "second try",
			wantScores: core.Scores{Solver: 15},
			wantRounds: 2,
		},
		{
			name: "AdmitInRoundThree",
			defenses: []string{
				"[DECISION]: REBUT\none",
				"[DECISION]: REBUT\ntwo",
				"[DECISION]: ADMIT\n## Corrected Solution\nx = -1",
			},
			reactions: []string{
				"VERDICT: REJECTED",
				"VERDICT: REJECTED",
			},
			wantWinner: core.WinnerVerifier,
			wantFinal:  "x = -1",
			wantScores: core.Scores{Verifier: 31},
			wantRounds: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, mem := setupTestEngine(t, DefaultConfig())
			s := &script{defenses: tt.defenses, reactions: tt.reactions}

			rec, err := eng.Resolve(context.Background(), input(s, incorrect()))
			if err != nil {
				t.Fatalf("resolve failed: %v", err)
			}

			if rec.Winner.Kind != tt.wantWinner {
				t.Errorf("wrong winner: got %s, want %s", rec.Winner.Kind, tt.wantWinner)
			}
			if rec.FinalAnswer != tt.wantFinal {
				t.Errorf("wrong final answer: got %q, want %q", rec.FinalAnswer, tt.wantFinal)
			}
			if rec.Scores != tt.wantScores {
				t.Errorf("wrong scores: got %+v, want %+v", rec.Scores, tt.wantScores)
			}
			if len(rec.Transcript) != tt.wantRounds {
				t.Errorf("wrong rounds: got %d, want %d", len(rec.Transcript), tt.wantRounds)
			}
			if got := mem.Load(context.Background(), project); got != tt.wantScores {
				t.Errorf("ledger not updated: %+v", got)
			}
			if mem.Saves() != 1 {
				t.Errorf("expected exactly one save, got %d", mem.Saves())
			}
		})
	}
}

func TestTranscript(t *testing.T) {
	eng, _ := setupTestEngine(t, DefaultConfig())
	s := &script{
		defenses:  []string{"[DECISION]: REBUT\nno", "[DECISION]: REBUT\nstill no"},
		reactions: []string{"VERDICT: REJECTED\n## Critique\nwrong again", "VERDICT: CONCEDED"},
	}

	var seen []int
	in := input(s, incorrect())
	in.OnRound = func(r core.Round) { seen = append(seen, r.Index) }

	rec, err := eng.Resolve(context.Background(), in)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	want := []core.Round{
		{
			Index:            1,
			DefenseText:      "[DECISION]: REBUT\nno",
			DefenseDecision:  core.VerdictRebut,
			ReactionText:     "VERDICT: REJECTED\n## Critique\nwrong again",
			ReactionDecision: core.VerdictRejected,
		},
		{
			Index:            2,
			DefenseText:      "[DECISION]: REBUT\nstill no",
			DefenseDecision:  core.VerdictRebut,
			ReactionText:     "VERDICT: CONCEDED",
			ReactionDecision: core.VerdictConceded,
			AwardedTo:        core.Solver,
			Award:            15,
		},
	}
	if diff := cmp.Diff(want, rec.Transcript); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2}, seen); diff != "" {
		t.Errorf("callback rounds mismatch (-want +got):\n%s", diff)
	}

	// The restated critique is what the Solver answers next.
	if len(s.critiques) != 2 || s.critiques[1] != "## Critique\nwrong again" {
		t.Errorf("unexpected critiques: %q", s.critiques)
	}
}

func TestTimeoutTiebreak(t *testing.T) {
	rejectAll := func(n int) *script {
		s := &script{}
		for i := 0; i < n; i++ {
			s.defenses = append(s.defenses, "[DECISION]: REBUT\nno")
			s.reactions = append(s.reactions, fmt.Sprintf("VERDICT: REJECTED\n## Correct Solution\nverifier answer %d", i+1))
		}
		return s
	}

	t.Run("TieFavoursSolver", func(t *testing.T) {
		eng, mem := setupTestEngine(t, Config{MaxRounds: 3})
		s := rejectAll(3)

		rec, err := eng.Resolve(context.Background(), input(s, incorrect()))
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if rec.Winner.Kind != core.WinnerTiebreak || rec.Winner.Leader != core.Solver {
			t.Errorf("wrong winner: %+v", rec.Winner)
		}
		if rec.FinalAnswer != "initial: x = 1" {
			t.Errorf("wrong final answer: %q", rec.FinalAnswer)
		}
		if len(rec.Transcript) != 3 || s.defendN != 3 {
			t.Errorf("must stop after exactly 3 rounds, ran %d", len(rec.Transcript))
		}
		if mem.Saves() != 1 {
			t.Errorf("expected one save, got %d", mem.Saves())
		}
	})

	t.Run("VerifierLeads", func(t *testing.T) {
		eng, mem := setupTestEngine(t, Config{MaxRounds: 2})
		mem.Save(context.Background(), project, core.Scores{Solver: 3, Verifier: 7})
		s := rejectAll(2)

		rec, err := eng.Resolve(context.Background(), input(s, incorrect()))
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if rec.Winner.Leader != core.Verifier {
			t.Errorf("wrong leader: %+v", rec.Winner)
		}
		if rec.Winner.Scores == nil || *rec.Winner.Scores != (core.Scores{Solver: 3, Verifier: 7}) {
			t.Errorf("tie-break scores missing: %+v", rec.Winner.Scores)
		}
		if rec.FinalAnswer != "verifier answer 2" {
			t.Errorf("wrong final answer: %q", rec.FinalAnswer)
		}
		if rec.Scores != rec.PreviousScores {
			t.Errorf("tie-break must not award: %+v", rec.Scores)
		}
	})

	t.Run("VerifierLeadsWithoutSolution", func(t *testing.T) {
		eng, mem := setupTestEngine(t, Config{MaxRounds: 1})
		mem.Save(context.Background(), project, core.Scores{Verifier: 1})
		s := &script{
			defenses:  []string{"[DECISION]: REBUT\nno"},
			reactions: []string{"VERDICT: REJECTED\nyou are still wrong"},
		}

		initial := core.Verdict{Kind: core.VerdictIncorrect, Body: "bad", Critique: "bad"}
		rec, err := eng.Resolve(context.Background(), input(s, initial))
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if rec.FinalAnswer != "you are still wrong" {
			t.Errorf("expected latest critique, got %q", rec.FinalAnswer)
		}
	})

	t.Run("VerifierLeadsNewestCritiqueWins", func(t *testing.T) {
		eng, mem := setupTestEngine(t, Config{MaxRounds: 2})
		mem.Save(context.Background(), project, core.Scores{Verifier: 7})
		s := &script{
			defenses: []string{"[DECISION]: REBUT\nno", "[DECISION]: REBUT\nstill no"},
			reactions: []string{
				"VERDICT: REJECTED\n## Correct Solution\nold answer",
				"VERDICT: REJECTED\nnewest critique, answer is 42",
			},
		}

		rec, err := eng.Resolve(context.Background(), input(s, incorrect()))
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if rec.Winner.Leader != core.Verifier {
			t.Fatalf("wrong leader: %+v", rec.Winner)
		}
		if rec.FinalAnswer != "newest critique, answer is 42" {
			t.Errorf("expected the round-2 critique, got %q", rec.FinalAnswer)
		}
	})
}

func TestNoDoubleCredit(t *testing.T) {
	eng, mem := setupTestEngine(t, DefaultConfig())
	start := core.Scores{Solver: 100, Verifier: 200}
	mem.Save(context.Background(), project, start)

	s := &script{
		defenses:  []string{"[DECISION]: REBUT\na", "[DECISION]: ADMIT\n## Corrected Solution\nb"},
		reactions: []string{"VERDICT: REJECTED"},
	}
	rec, err := eng.Resolve(context.Background(), input(s, incorrect()))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	delta := rec.Scores.Delta(start)
	if delta != (core.Scores{Verifier: 7}) {
		t.Errorf("expected a single round-2 verifier award, got delta %+v", delta)
	}

	awarded := 0
	for _, r := range rec.Transcript {
		if r.Award > 0 {
			awarded++
		}
	}
	if awarded != 1 {
		t.Errorf("expected one awarded round, got %d", awarded)
	}
}

func TestAdmitFallbacks(t *testing.T) {
	t.Run("CritiqueProposedSolution", func(t *testing.T) {
		eng, _ := setupTestEngine(t, DefaultConfig())
		s := &script{defenses: []string{"[DECISION]: ADMIT\nyou are right"}}

		rec, err := eng.Resolve(context.Background(), input(s, incorrect()))
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if rec.FinalAnswer != "x = -1" {
			t.Errorf("expected critique's proposed solution, got %q", rec.FinalAnswer)
		}
	})

	t.Run("DefenseText", func(t *testing.T) {
		eng, _ := setupTestEngine(t, DefaultConfig())
		s := &script{defenses: []string{"[DECISION]: ADMIT\nthe answer is 5"}}
		initial := core.Verdict{Kind: core.VerdictIncorrect, Critique: "wrong", Body: "wrong"}

		rec, err := eng.Resolve(context.Background(), input(s, initial))
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if rec.FinalAnswer != "the answer is 5" {
			t.Errorf("expected defense text, got %q", rec.FinalAnswer)
		}
	})
}

func TestOracleFailureSavesNothing(t *testing.T) {
	eng, mem := setupTestEngine(t, DefaultConfig())
	boom := errors.New("connection reset")
	s := &script{defendErr: boom}

	rec, err := eng.Resolve(context.Background(), input(s, incorrect()))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped oracle error, got %v", err)
	}
	if rec != nil {
		t.Error("expected no record on failure")
	}
	if mem.Saves() != 0 {
		t.Errorf("nothing may be saved on failure, got %d saves", mem.Saves())
	}

	t.Run("ReactionFailure", func(t *testing.T) {
		eng, mem := setupTestEngine(t, DefaultConfig())
		// No reactions queued, so the Verifier call fails.
		s := &script{defenses: []string{"[DECISION]: REBUT\nno"}}

		if _, err := eng.Resolve(context.Background(), input(s, incorrect())); err == nil {
			t.Fatal("expected error")
		}
		if mem.Saves() != 0 {
			t.Error("nothing may be saved on failure")
		}
	})
}

func TestLedgerWriteFailure(t *testing.T) {
	eng, mem := setupTestEngine(t, DefaultConfig())
	mem.SaveErr = errors.New("disk full")

	s := &script{}
	_, err := eng.Resolve(context.Background(), input(s, core.Verdict{Kind: core.VerdictCorrect}))
	if err == nil || !errors.Is(err, mem.SaveErr) {
		t.Errorf("expected save error to propagate, got %v", err)
	}
}

func TestUnrecognizedVerdicts(t *testing.T) {
	t.Run("TreatedAsRejected", func(t *testing.T) {
		eng, _ := setupTestEngine(t, DefaultConfig())
		s := &script{
			defenses:  []string{"[DECISION]: REBUT\nno", "[DECISION]: REBUT\nno again"},
			reactions: []string{"hmm, unclear", "VERDICT: CONCEDED"},
		}

		rec, err := eng.Resolve(context.Background(), input(s, incorrect()))
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if rec.Transcript[0].ReactionDecision != core.VerdictUnrecognized {
			t.Errorf("wrong decision: %s", rec.Transcript[0].ReactionDecision)
		}
		if rec.Transcript[0].Note == "" || len(rec.Diagnostics) != 1 {
			t.Error("unrecognized round must carry a diagnostic note")
		}
		if rec.Transcript[0].Award != 0 {
			t.Error("unrecognized round must not award")
		}
		if rec.Winner.Kind != core.WinnerSolver || rec.Scores.Solver != 15 {
			t.Errorf("unexpected outcome: %+v %+v", rec.Winner, rec.Scores)
		}
		if s.critiques[1] != "hmm, unclear" {
			t.Errorf("reaction should become the next critique, got %q", s.critiques[1])
		}
	})

	t.Run("UnrecognizedDefenseSkipsReaction", func(t *testing.T) {
		eng, _ := setupTestEngine(t, DefaultConfig())
		s := &script{
			defenses:  []string{"I would rather not say", "[DECISION]: REBUT\nok"},
			reactions: []string{"VERDICT: CONCEDED"},
		}

		rec, err := eng.Resolve(context.Background(), input(s, incorrect()))
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if s.reactN != 1 {
			t.Errorf("verifier should react once, reacted %d times", s.reactN)
		}
		if rec.Scores.Solver != 15 {
			t.Errorf("expected round 2 solver award, got %+v", rec.Scores)
		}
	})

	t.Run("TooMany", func(t *testing.T) {
		eng, mem := setupTestEngine(t, Config{MaxRounds: 4, MaxUnrecognizedRatio: 0.5})
		s := &script{defenses: []string{"?", "?", "?", "?"}}

		_, err := eng.Resolve(context.Background(), input(s, incorrect()))
		if !errors.Is(err, ErrTooManyUnrecognized) {
			t.Fatalf("expected ErrTooManyUnrecognized, got %v", err)
		}
		if s.defendN != 3 {
			t.Errorf("should fail on the third unrecognized round, ran %d", s.defendN)
		}
		if mem.Saves() != 0 {
			t.Error("nothing may be saved on failure")
		}
	})

	t.Run("InitialVerdictUnrecognized", func(t *testing.T) {
		eng, _ := setupTestEngine(t, DefaultConfig())
		s := &script{defenses: []string{"[DECISION]: ADMIT\n## Corrected Solution\nfixed"}}
		initial := verdict.ForDialect(prompt.Get("en")).ParseVerification("I think it's wrong somewhere.")

		rec, err := eng.Resolve(context.Background(), input(s, initial))
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if rec.Winner.Kind == core.WinnerAgreement {
			t.Error("unrecognized verification must never count as agreement")
		}
		if len(rec.Diagnostics) == 0 {
			t.Error("expected a diagnostic note")
		}
		if s.critiques[0] != "I think it's wrong somewhere." {
			t.Errorf("raw verification should be the critique, got %q", s.critiques[0])
		}
	})
}

func TestCancellation(t *testing.T) {
	eng, mem := setupTestEngine(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &script{
		defenses:  []string{"[DECISION]: REBUT\nno", "[DECISION]: REBUT\nno"},
		reactions: []string{"VERDICT: REJECTED", "VERDICT: REJECTED"},
	}
	in := input(s, incorrect())
	in.OnRound = func(core.Round) { cancel() }

	_, err := eng.Resolve(ctx, in)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.defendN != 1 {
		t.Errorf("expected to stop after round 1, ran %d", s.defendN)
	}
	if mem.Saves() != 0 {
		t.Error("an abandoned session must not save")
	}
}

func TestInvalidInput(t *testing.T) {
	eng, _ := setupTestEngine(t, DefaultConfig())
	s := &script{}

	missingProject := input(s, incorrect())
	missingProject.ProjectID = ""
	if _, err := eng.Resolve(context.Background(), missingProject); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	missingParser := input(s, incorrect())
	missingParser.Parser = nil
	if _, err := eng.Resolve(context.Background(), missingParser); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestConfigNormalized(t *testing.T) {
	eng := New(ledger.NewMemory(), Config{})
	if eng.Config().MaxRounds != DefaultMaxRounds {
		t.Errorf("wrong default rounds: %d", eng.Config().MaxRounds)
	}
	if eng.Config().MaxUnrecognizedRatio != DefaultMaxUnrecognizedRatio {
		t.Errorf("wrong default ratio: %v", eng.Config().MaxUnrecognizedRatio)
	}

	capped := New(ledger.NewMemory(), Config{MaxRounds: 1000})
	if capped.Config().MaxRounds != MaxRoundsLimit {
		t.Errorf("rounds not capped: %d", capped.Config().MaxRounds)
	}
}

func TestKoreanDialectDebate(t *testing.T) {
	eng, _ := setupTestEngine(t, DefaultConfig())
	p := verdict.ForDialect(prompt.Get("ko"))

	initial := p.ParseVerification("모델 01의 해결책에는 다음과 같은 오류가 있습니다.\n계산 실수\n## 올바른 해결책\n답: 4")
	s := &script{
		defenses:  []string{"제 풀이가 맞습니다. 이미지를 다시 보세요."},
		reactions: []string{"해결사의 반박을 검토한 결과, 제 지적이 틀렸으며 해결사의 원래 주장이 옳았음을 인정합니다."},
	}
	in := input(s, initial)
	in.Parser = p

	rec, err := eng.Resolve(context.Background(), in)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if rec.Winner.Kind != core.WinnerSolver || rec.Scores.Solver != 3 {
		t.Errorf("implicit rebut should let the solver win: %+v %+v", rec.Winner, rec.Scores)
	}
}
