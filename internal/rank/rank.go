// Package rank scores and orders memories against a free-text query or task
// description, combining lexical match, delegated semantic similarity,
// salience, and recency.
package rank

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/memgate/memgate/internal/model"
)

// Weights control the contribution of each scoring signal. They are
// configuration, not behavior: any non-negative mix is valid.
type Weights struct {
	Lexical  float64 `yaml:"lexical" json:"lexical"`
	Semantic float64 `yaml:"semantic" json:"semantic"`
	Salience float64 `yaml:"salience" json:"salience"`
	Recency  float64 `yaml:"recency" json:"recency"`
}

// DefaultWeights returns the standard signal mix.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.3, Semantic: 0.3, Salience: 0.2, Recency: 0.2}
}

// Validate rejects negative weights and an all-zero mix.
func (w Weights) Validate() error {
	if w.Lexical < 0 || w.Semantic < 0 || w.Salience < 0 || w.Recency < 0 {
		return fmt.Errorf("%w: weights must be non-negative: %+v", model.ErrInvalidArgument, w)
	}
	if w.Lexical+w.Semantic+w.Salience+w.Recency == 0 {
		return fmt.Errorf("%w: all weights are zero", model.ErrInvalidArgument)
	}
	return nil
}

// Similarity is the delegated embedding-similarity collaborator. Score
// returns one value in [0,1] per memory. The engine treats it as optional:
// a failing or absent collaborator degrades every semantic score to zero.
type Similarity interface {
	Score(ctx context.Context, query string, memories []model.Memory) ([]float64, error)
}

// Hit is a memory with its composite score.
type Hit struct {
	Memory model.Memory `json:"memory"`
	Score  float64      `json:"score"`
}

// DefaultHalfLife is the recency decay half-life, matching a week of
// conversational drift.
const DefaultHalfLife = 7 * 24 * time.Hour

// DefaultSimilarityTimeout bounds a single delegated similarity call.
const DefaultSimilarityTimeout = 2 * time.Second

// Engine ranks memories. It is stateless between calls and safe for
// concurrent use.
type Engine struct {
	weights    Weights
	halfLife   time.Duration
	sim        Similarity
	simTimeout time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights overrides the default signal weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithHalfLife sets the recency decay half-life.
func WithHalfLife(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.halfLife = d
		}
	}
}

// WithSimilarity plugs in the semantic-similarity collaborator.
func WithSimilarity(sim Similarity) Option {
	return func(e *Engine) { e.sim = sim }
}

// WithSimilarityTimeout bounds each delegated similarity call.
func WithSimilarityTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.simTimeout = d
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock overrides the time source, for deterministic recency in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates a ranking engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		weights:    DefaultWeights(),
		halfLife:   DefaultHalfLife,
		simTimeout: DefaultSimilarityTimeout,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.weights.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Rank scores the pool against the query and returns the topK hits ordered
// by score descending, ties broken by id ascending. When the caller's
// deadline expires mid-ranking, whatever has been scored so far is returned;
// if nothing was scored yet, ErrDeadlineExceeded.
func (e *Engine) Rank(ctx context.Context, query string, pool []model.Memory, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", model.ErrInvalidArgument, topK)
	}
	if len(pool) == 0 {
		return []Hit{}, nil
	}

	sems := e.similarities(ctx, query, pool)

	hits := make([]Hit, 0, len(pool))
	for i, m := range pool {
		if ctx.Err() != nil {
			if len(hits) == 0 {
				return nil, fmt.Errorf("ranking %q: %w", query, model.ErrDeadlineExceeded)
			}
			break
		}
		score := e.weights.Lexical*LexicalScore(query, &m) +
			e.weights.Semantic*sems[i] +
			e.weights.Salience*m.Salience +
			e.weights.Recency*e.recency(m.UpdatedAt)
		hits = append(hits, Hit{Memory: m, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Memory.ID < hits[j].Memory.ID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// similarities asks the collaborator for semantic scores under a bounded
// timeout. On any failure the semantic signal degrades to zero and the
// request continues.
func (e *Engine) similarities(ctx context.Context, query string, pool []model.Memory) []float64 {
	zeros := make([]float64, len(pool))
	if e.sim == nil {
		return zeros
	}

	simCtx, cancel := context.WithTimeout(ctx, e.simTimeout)
	defer cancel()

	scores, err := e.sim.Score(simCtx, query, pool)
	if err != nil || len(scores) != len(pool) {
		e.logger.Warn("semantic similarity degraded to zero",
			"err", err, "reason", model.ErrDependencyUnavailable)
		return zeros
	}
	for i := range scores {
		scores[i] = clamp01(scores[i])
	}
	return scores
}

// recency is an exponential decay of age since last update, 1.0 for a
// just-updated memory, halving every halfLife.
func (e *Engine) recency(updatedAt time.Time) float64 {
	age := e.now().Sub(updatedAt)
	if age <= 0 {
		return 1
	}
	return math.Exp(-math.Ln2 * age.Hours() / e.halfLife.Hours())
}

// LexicalScore is a normalized token-overlap score in [0,1]. A whole-query
// substring match on the title or content counts as a full match; otherwise
// the score is the fraction of query tokens found in the memory's title,
// branch, or content text.
func LexicalScore(query string, m *model.Memory) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}

	title := strings.ToLower(m.Title)
	content := strings.ToLower(m.ContentText())
	if strings.Contains(title, q) || strings.Contains(content, q) {
		return 1
	}

	haystack := title + " " + strings.ToLower(m.Branch) + " " + content
	words := tokenSet(haystack)

	tokens := tokenize(q)
	if len(tokens) == 0 {
		return 0
	}
	matched := 0
	for _, t := range tokens {
		if words[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
	})
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, t := range tokenize(s) {
		set[t] = true
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
