// Package knowledge gathers background material for the Solver before the
// initial solve: subject classification, web search and a structured
// knowledge package.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alienxp03/gempt/internal/core"
	"github.com/alienxp03/gempt/internal/oracle"
	"github.com/alienxp03/gempt/internal/prompt"
	"github.com/alienxp03/gempt/internal/search"
)

const (
	// DefaultMaxQueries caps the number of generated search queries.
	DefaultMaxQueries = 4

	// DefaultParallel bounds concurrent searches.
	DefaultParallel = 4

	// Actor is the process-log actor for knowledge steps.
	Actor = "System"
)

// Config holds knowledge pre-step settings.
type Config struct {
	MaxQueries int           `yaml:"max_queries"`
	Parallel   int           `yaml:"parallel"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// Builder runs the knowledge pre-step.
type Builder struct {
	oracle   oracle.Oracle
	searcher search.Searcher
	cfg      Config
}

// NewBuilder creates a Builder. The oracle classifies, writes queries and
// builds the package; the searcher runs the queries.
func NewBuilder(o oracle.Oracle, s search.Searcher, cfg Config) *Builder {
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = DefaultMaxQueries
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = DefaultParallel
	}
	return &Builder{oracle: o, searcher: s, cfg: cfg}
}

// Result is the output of one knowledge pre-step.
type Result struct {
	Subject       string
	Queries       []string
	SearchResults string
	Package       Package

	// Text is the knowledge package as handed to the Solver.
	Text string
}

// Build runs classification, query generation, search and packaging. Each
// stage appends a step to sess.
func (b *Builder) Build(ctx context.Context, d *prompt.Dialect, question string, media *core.Media, sess *core.Session) (*Result, error) {
	labels := d.Labels
	res := &Result{}

	classify, err := prompt.Render(d.SubjectClassifier, prompt.Data{Question: question})
	if err != nil {
		return nil, err
	}
	subject, err := b.call(ctx, classify, media)
	if err != nil {
		return nil, fmt.Errorf("failed to classify subject: %w", err)
	}
	res.Subject = strings.TrimSpace(subject)
	sess.AddStep(Actor, labels.Subject, res.Subject)

	queryPrompt, err := prompt.Render(d.QueryGenerator, prompt.Data{Subject: res.Subject})
	if err != nil {
		return nil, err
	}
	rawQueries, err := b.call(ctx, queryPrompt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate search queries: %w", err)
	}
	res.Queries = ParseQueries(rawQueries, b.cfg.MaxQueries)

	res.SearchResults, err = b.search(ctx, labels, res.Queries)
	if err != nil {
		return nil, err
	}
	sess.AddStep(Actor, labels.Crawl, strings.Join(res.Queries, "\n")+"\n\n---\n\n"+res.SearchResults)

	packagePrompt, err := prompt.Render(d.PackageGenerator, prompt.Data{
		Subject:       res.Subject,
		SearchResults: res.SearchResults,
	})
	if err != nil {
		return nil, err
	}
	rawPackage, err := b.call(ctx, packagePrompt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate knowledge package: %w", err)
	}
	res.Text = StripFences(rawPackage)
	res.Package = ParsePackage(res.Text)
	sess.AddStep(Actor, labels.Package, res.Text)

	slog.Debug("Knowledge package built",
		"session_id", sess.ID,
		"subject", res.Subject,
		"queries", len(res.Queries),
	)
	return res, nil
}

func (b *Builder) call(ctx context.Context, text string, media *core.Media) (string, error) {
	return oracle.Invoke(ctx, b.oracle, b.cfg.Timeout, oracle.Request{
		Role:   core.Verifier,
		Prompt: text,
		Media:  media,
	})
}

// search runs every query concurrently. Results keep query order; a failed
// query is reported inline instead of failing the step.
func (b *Builder) search(ctx context.Context, labels prompt.Labels, queries []string) (string, error) {
	blocks := make([]string, len(queries))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Parallel)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			var body string
			snippets, err := b.searcher.Search(gCtx, q)
			switch {
			case err != nil:
				slog.Warn("Search failed", "query", q, "error", err)
				body = fmt.Sprintf(labels.SearchFailed, err)
			case len(snippets) == 0:
				body = labels.NoSearchResults
			default:
				body = search.Format(snippets)
			}
			blocks[i] = fmt.Sprintf(labels.SearchResultLabel, q) + "\n" + body
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.Join(blocks, "\n\n"), nil
}

// ParseQueries splits the oracle's reply into at most limit queries, dropping
// blank lines, list bullets and numbering.
func ParseQueries(raw string, limit int) []string {
	var queries []string
	for _, line := range strings.Split(raw, "\n") {
		q := strings.TrimSpace(line)
		q = strings.TrimLeft(q, "-*• ")
		if i := strings.IndexAny(q, ".)"); i > 0 && i <= 2 && isDigits(q[:i]) {
			q = strings.TrimSpace(q[i+1:])
		}
		q = strings.Trim(q, "\"'`")
		if q == "" {
			continue
		}
		queries = append(queries, q)
		if limit > 0 && len(queries) == limit {
			break
		}
	}
	return queries
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// StripFences removes markdown code fences around a JSON reply.
func StripFences(raw string) string {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// Package is the structured knowledge package.
type Package struct {
	Field       string `json:"field"`
	Symbols     Items  `json:"symbols"`
	Formulas    Items  `json:"formulas"`
	Definitions Items  `json:"definitions"`
	Examples    Items  `json:"examples"`
	ContextText string `json:"context_text"`
}

// ParsePackage decodes a knowledge package. Text that is not a JSON object
// becomes the context text.
func ParsePackage(text string) Package {
	var p Package
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		slog.Debug("Knowledge package is not JSON", "error", err)
		return Package{ContextText: text}
	}
	return p
}

// Items is a list of package entries. Models return these as arrays of
// strings, arrays of objects, objects or plain strings; all decode to
// strings.
type Items []string

// UnmarshalJSON implements json.Unmarshaler.
func (it *Items) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case nil:
		*it = nil
	case string:
		*it = Items{v}
	case []any:
		out := make(Items, 0, len(v))
		for _, e := range v {
			out = append(out, itemString(e))
		}
		*it = out
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(Items, 0, len(v))
		for _, k := range keys {
			out = append(out, k+": "+itemString(v[k]))
		}
		*it = out
	default:
		*it = Items{itemString(v)}
	}
	return nil
}

func itemString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
