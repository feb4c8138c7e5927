package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alienxp03/gempt/internal/core"
)

func testMedia(t *testing.T) *core.Media {
	t.Helper()
	m, err := core.NewMedia("question.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	if err != nil {
		t.Fatalf("failed to create media: %v", err)
	}
	return m
}

// blockingOracle waits until its context is done.
type blockingOracle struct{}

func (blockingOracle) Name() string    { return "blocking" }
func (blockingOracle) Available() bool { return true }
func (blockingOracle) Invoke(ctx context.Context, req Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestOpenAIOracle(t *testing.T) {
	t.Run("SendsImageAsDataURL", func(t *testing.T) {
		var got openAIRequest
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/chat/completions" {
				t.Errorf("wrong path: %s", r.URL.Path)
			}
			auth = r.Header.Get("Authorization")
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"image_url"`) {
				t.Errorf("request has no image part: %s", body)
			}
			if err := json.Unmarshal(body, &got); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"x = 4"}}]}`))
		}))
		defer srv.Close()

		o := NewOpenAIOracle(Config{APIKey: "sk-test", BaseURL: srv.URL})
		out, err := o.Invoke(context.Background(), Request{
			Role:   core.Solver,
			System: "be precise",
			Prompt: "solve it",
			Media:  testMedia(t),
		})
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
		if out != "x = 4" {
			t.Errorf("wrong output: %q", out)
		}
		if auth != "Bearer sk-test" {
			t.Errorf("wrong auth header: %q", auth)
		}
		if got.Model != "gpt-4o" {
			t.Errorf("wrong model: %q", got.Model)
		}
		if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
			t.Errorf("expected system and user messages, got %+v", got.Messages)
		}
	})

	t.Run("PlainTextWithoutMedia", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"content":"solve it\n\nprior work"`) {
				t.Errorf("expected string content, got %s", body)
			}
			w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
		}))
		defer srv.Close()

		o := NewOpenAIOracle(Config{APIKey: "k", BaseURL: srv.URL, Model: "gpt-4.1"})
		if _, err := o.Invoke(context.Background(), Request{Prompt: "solve it", Context: "prior work"}); err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
	})

	t.Run("RateLimited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		o := NewOpenAIOracle(Config{APIKey: "k", BaseURL: srv.URL})
		_, err := o.Invoke(context.Background(), Request{Prompt: "p"})
		if !errors.Is(err, ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
		if !IsTransportError(err) {
			t.Errorf("expected transport error, got %T", err)
		}
	})

	t.Run("ServerError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}))
		defer srv.Close()

		o := NewOpenAIOracle(Config{APIKey: "k", BaseURL: srv.URL})
		_, err := o.Invoke(context.Background(), Request{Prompt: "p"})
		if err == nil || !strings.Contains(err.Error(), "HTTP 502") {
			t.Errorf("expected HTTP 502 error, got %v", err)
		}
	})

	t.Run("EmptyChoices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		o := NewOpenAIOracle(Config{APIKey: "k", BaseURL: srv.URL})
		_, err := o.Invoke(context.Background(), Request{Prompt: "p"})
		if !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("expected ErrEmptyResponse, got %v", err)
		}
	})

	t.Run("NoAPIKey", func(t *testing.T) {
		o := NewOpenAIOracle(Config{})
		if o.Available() {
			t.Error("oracle without key should not be available")
		}
		_, err := o.Invoke(context.Background(), Request{Prompt: "p"})
		if !errors.Is(err, ErrNoAPIKey) {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})
}

func TestGeminiOracle(t *testing.T) {
	t.Run("SendsInlineData", func(t *testing.T) {
		var got geminiRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/models/gemini-2.5-pro:generateContent" {
				t.Errorf("wrong path: %s", r.URL.Path)
			}
			if r.URL.Query().Get("key") != "g-key" {
				t.Errorf("missing key param")
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"VERDICT: "},{"text":"CORRECT"}]}}]}`))
		}))
		defer srv.Close()

		o := NewGeminiOracle(Config{APIKey: "g-key", BaseURL: srv.URL})
		out, err := o.Invoke(context.Background(), Request{
			Role:   core.Verifier,
			System: "audit",
			Prompt: "check it",
			Media:  testMedia(t),
		})
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
		if out != "VERDICT: CORRECT" {
			t.Errorf("wrong output: %q", out)
		}
		if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "audit" {
			t.Errorf("missing system instruction: %+v", got.SystemInstruction)
		}
		if len(got.Contents) != 1 || len(got.Contents[0].Parts) != 2 {
			t.Fatalf("expected one content with two parts, got %+v", got.Contents)
		}
		blob := got.Contents[0].Parts[1].InlineData
		if blob == nil || blob.MimeType != "image/png" || blob.Data == "" {
			t.Errorf("wrong inline data: %+v", blob)
		}
	})

	t.Run("EmptyCandidate", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`))
		}))
		defer srv.Close()

		o := NewGeminiOracle(Config{APIKey: "k", BaseURL: srv.URL})
		_, err := o.Invoke(context.Background(), Request{Prompt: "p"})
		if !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("expected ErrEmptyResponse, got %v", err)
		}
		if !strings.Contains(err.Error(), "SAFETY") {
			t.Errorf("expected finish reason in error, got %v", err)
		}
	})

	t.Run("RateLimited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		o := NewGeminiOracle(Config{APIKey: "k", BaseURL: srv.URL})
		_, err := o.Invoke(context.Background(), Request{Prompt: "p"})
		if !errors.Is(err, ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("ConnectionErrorHidesKey", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		o := NewGeminiOracle(Config{APIKey: "secret-key", BaseURL: srv.URL})
		_, err := o.Invoke(context.Background(), Request{Prompt: "p"})
		if err == nil {
			t.Fatal("expected error")
		}
		if strings.Contains(err.Error(), "secret-key") {
			t.Errorf("error leaks API key: %v", err)
		}
	})
}

func TestCLIOracle(t *testing.T) {
	t.Run("PassesPromptAndMedia", func(t *testing.T) {
		o := NewCLIOracle(Config{Name: "echo", Command: "echo", MediaFlag: "--image"})
		out, err := o.Invoke(context.Background(), Request{
			System: "sys",
			Prompt: "solve",
			Media:  testMedia(t),
		})
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
		if !strings.Contains(out, "--image ") || !strings.Contains(out, ".png") {
			t.Errorf("expected media path in args, got %q", out)
		}
		if !strings.HasSuffix(out, "sys\n\nsolve") {
			t.Errorf("expected prompt as last arg, got %q", out)
		}
	})

	t.Run("MediaWithoutFlagIsDropped", func(t *testing.T) {
		o := NewCLIOracle(Config{Command: "echo"})
		out, err := o.Invoke(context.Background(), Request{Prompt: "solve", Media: testMedia(t)})
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
		if out != "solve" {
			t.Errorf("wrong output: %q", out)
		}
	})

	t.Run("MissingExecutable", func(t *testing.T) {
		o := NewCLIOracle(Config{Command: "gempt-no-such-binary"})
		if o.Available() {
			t.Error("missing binary should not be available")
		}
		_, err := o.Invoke(context.Background(), Request{Prompt: "p"})
		if !IsTransportError(err) {
			t.Errorf("expected transport error, got %v", err)
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		o := NewCLIOracle(Config{
			Command: "sh",
			Args:    []string{"-c", "exec sleep 5", "sh"},
			Timeout: 100 * time.Millisecond,
		})
		_, err := o.Invoke(context.Background(), Request{Prompt: "p"})
		if err == nil || !strings.Contains(err.Error(), "timed out") {
			t.Errorf("expected timeout error, got %v", err)
		}
	})

	t.Run("RetriesTransientFailure", func(t *testing.T) {
		o := NewCLIOracle(Config{
			Command:    "sh",
			Args:       []string{"-c", "echo 'connection reset' >&2; exit 1", "sh"},
			MaxRetries: 1,
		})
		o.backoff = func(int) time.Duration { return time.Millisecond }

		_, err := o.Invoke(context.Background(), Request{Prompt: "p"})
		if err == nil || !strings.Contains(err.Error(), "failed after 2 attempts") {
			t.Errorf("expected retry exhaustion, got %v", err)
		}
	})
}

func TestLimitedWriter(t *testing.T) {
	var sb strings.Builder
	w := newLimitedWriter(&sb, 5)
	n, err := w.Write([]byte("abcdefgh"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if n != 5 || sb.String() != "abcde" || !w.limited {
		t.Errorf("got n=%d out=%q limited=%v", n, sb.String(), w.limited)
	}
	if n, _ := w.Write([]byte("more")); n != 4 {
		t.Errorf("expected discarded write to report full length, got %d", n)
	}
}

func TestScriptedOracle(t *testing.T) {
	t.Run("RepliesInOrder", func(t *testing.T) {
		o := NewScriptedOracle("s", "one", "two")
		for _, want := range []string{"one", "two"} {
			got, err := o.Invoke(context.Background(), Request{Prompt: want})
			if err != nil || got != want {
				t.Errorf("got %q, %v; want %q", got, err, want)
			}
		}
		_, err := o.Invoke(context.Background(), Request{})
		if !errors.Is(err, ErrScriptExhausted) {
			t.Errorf("expected ErrScriptExhausted, got %v", err)
		}
		if o.Calls() != 3 {
			t.Errorf("expected 3 calls, got %d", o.Calls())
		}
		if reqs := o.Requests(); reqs[1].Prompt != "two" {
			t.Errorf("request not recorded: %+v", reqs[1])
		}
	})

	t.Run("Cycle", func(t *testing.T) {
		o := NewScriptedOracle("s", "a").Cycle()
		for i := 0; i < 3; i++ {
			if got, _ := o.Invoke(context.Background(), Request{}); got != "a" {
				t.Errorf("call %d: got %q", i, got)
			}
		}
	})

	t.Run("FailAt", func(t *testing.T) {
		boom := errors.New("boom")
		o := NewScriptedOracle("s", "a", "b").FailAt(1, boom)
		if _, err := o.Invoke(context.Background(), Request{}); err != nil {
			t.Fatalf("first call failed: %v", err)
		}
		if _, err := o.Invoke(context.Background(), Request{}); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})
}

func TestInvokeTimeout(t *testing.T) {
	_, err := Invoke(context.Background(), blockingOracle{}, 20*time.Millisecond, Request{Prompt: "p"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if te.Message != "call timed out" {
		t.Errorf("wrong message: %q", te.Message)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{name: "OpenAI", cfg: Config{Provider: "openai"}, want: "openai"},
		{name: "GeminiNamed", cfg: Config{Provider: "gemini", Name: "verifier"}, want: "verifier"},
		{name: "CLI", cfg: Config{Provider: "cli", Command: "/usr/bin/llm"}, want: "llm"},
		{name: "CLIWithoutCommand", cfg: Config{Provider: "cli"}, wantErr: true},
		{name: "Scripted", cfg: Config{Provider: "scripted", Replies: []string{"x"}}, want: "scripted"},
		{name: "Unknown", cfg: Config{Provider: "carrier-pigeon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && o.Name() != tt.want {
				t.Errorf("got name %q, want %q", o.Name(), tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewScriptedOracle("zeta", "z"))
	r.Register(NewOpenAIOracle(Config{Name: "alpha"}))

	if !r.Has("zeta") {
		t.Error("expected zeta to be registered")
	}
	if _, err := r.Get("missing"); err == nil {
		t.Error("expected error for missing oracle")
	}
	if names := r.Names(); strings.Join(names, ",") != "alpha,zeta" {
		t.Errorf("wrong order: %v", names)
	}
	if avail := r.Available(); len(avail) != 1 || avail[0].Name() != "zeta" {
		t.Errorf("expected only zeta available, got %d", len(avail))
	}
}

func TestHealthCheck(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		o := NewScriptedOracle("s", "2")
		status := HealthCheck(context.Background(), o)
		if !status.Healthy {
			t.Fatalf("expected healthy, got error %q", status.Error)
		}
		if got := o.Requests()[0].Prompt; got != HealthCheckPrompt {
			t.Errorf("wrong prompt: %q", got)
		}
	})

	t.Run("InvalidResponse", func(t *testing.T) {
		status := HealthCheck(context.Background(), NewScriptedOracle("s", "two"))
		if status.Healthy || status.Error == "" {
			t.Errorf("expected unhealthy with error, got %+v", status)
		}
	})

	t.Run("Unavailable", func(t *testing.T) {
		status := HealthCheck(context.Background(), NewOpenAIOracle(Config{}))
		if status.Available || status.Healthy {
			t.Errorf("expected unavailable, got %+v", status)
		}
	})
}
