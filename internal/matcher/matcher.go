// Package matcher scores a resume against a job description.
package matcher

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/internal/embedding"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/scoring"
	"github.com/hyperjump/resumatch/internal/textnorm"
)

// Matcher combines semantic similarity with a token-overlap fallback.
type Matcher struct {
	embedder embedding.Embedder
	scorer   scoring.Scorer
	logger   *zap.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithScorer overrides the default verdict thresholds.
func WithScorer(s scoring.Scorer) Option {
	return func(m *Matcher) { m.scorer = s }
}

// New returns a Matcher. A nil embedder disables the semantic path.
func New(e embedding.Embedder, opts ...Option) *Matcher {
	if e == nil {
		e = embedding.Disabled{}
	}
	m := &Matcher{
		embedder: e,
		scorer:   scoring.NewScorer(0, 0),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Backend returns the name of the embedding backend in use.
func (m *Matcher) Backend() string {
	return m.embedder.Name()
}

// Evaluate scores resumeText against jdText. It never fails: an embedding error
// downgrades to token overlap. Missing skills are the distinct JD tokens absent
// from the resume, sorted.
func (m *Matcher) Evaluate(ctx context.Context, resumeText, jdText string) models.MatchResult {
	resumeTokens := textnorm.Tokenize(resumeText)
	jdTokens := textnorm.Tokenize(jdText)

	if len(jdTokens) == 0 {
		return models.MatchResult{
			Score:         0,
			Verdict:       models.VerdictLow,
			MissingSkills: []string{},
			Method:        models.MethodEmpty,
		}
	}

	result := models.MatchResult{Method: models.MethodSemantic}
	score, err := m.semanticScore(ctx, resumeText, jdText)
	if err != nil {
		m.logger.Debug("semantic scoring failed, using token overlap",
			zap.String("backend", m.embedder.Name()), zap.Error(err))
		score = OverlapScore(resumeTokens, jdTokens)
		result.Method = models.MethodOverlap
	}
	result.Score = score
	result.Verdict = m.scorer.Classify(score)
	result.MissingSkills = MissingSkills(resumeTokens, jdTokens)
	return result
}

func (m *Matcher) semanticScore(ctx context.Context, resumeText, jdText string) (score int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("embedder panic: %v", r)
		}
	}()

	rv, err := m.embedder.Embed(ctx, textnorm.Normalize(resumeText))
	if err != nil {
		return 0, fmt.Errorf("embed resume: %w", err)
	}
	jv, err := m.embedder.Embed(ctx, textnorm.Normalize(jdText))
	if err != nil {
		return 0, fmt.Errorf("embed job description: %w", err)
	}
	if len(rv) != len(jv) {
		return 0, fmt.Errorf("embedding length mismatch: %d != %d", len(rv), len(jv))
	}
	return m.scorer.Score(m.scorer.Similarity(rv, jv)), nil
}

// OverlapScore is floor(100 * |resume ∩ jd| / max(1, |unique jd|)).
func OverlapScore(resumeTokens, jdTokens []string) int {
	resume := textnorm.Set(resumeTokens)
	jd := textnorm.Unique(jdTokens)
	overlap := 0
	for _, t := range jd {
		if _, ok := resume[t]; ok {
			overlap++
		}
	}
	denom := len(jd)
	if denom < 1 {
		denom = 1
	}
	return int(math.Floor(float64(overlap) * 100 / float64(denom)))
}

// MissingSkills returns the sorted distinct jd tokens not present in the resume.
func MissingSkills(resumeTokens, jdTokens []string) []string {
	resume := textnorm.Set(resumeTokens)
	missing := []string{}
	for _, t := range textnorm.Unique(jdTokens) {
		if _, ok := resume[t]; !ok {
			missing = append(missing, t)
		}
	}
	sort.Strings(missing)
	return missing
}
