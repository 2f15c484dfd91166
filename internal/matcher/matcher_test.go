package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/resumatch/internal/embedding"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/scoring"
)

type failingEmbedder struct{ embedding.Disabled }

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model crashed")
}

type panickingEmbedder struct{ embedding.Disabled }

func (panickingEmbedder) Embed(context.Context, string) ([]float32, error) {
	panic("cgo fault")
}

type fixedEmbedder struct {
	embedding.Disabled
	vectors map[string][]float32
}

func (f fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return f.vectors[text], nil
}

func TestEvaluate_OverlapScenarios(t *testing.T) {
	m := New(nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		resume  string
		jd      string
		score   int
		verdict models.Verdict
		missing []string
	}{
		{"partial overlap", "python flask developer", "python django developer", 66, models.VerdictMedium, []string{"django"}},
		{"empty resume", "", "java spring boot", 0, models.VerdictLow, []string{"boot", "java", "spring"}},
		{"identical", "Go Kubernetes Postgres", "Go Kubernetes Postgres", 100, models.VerdictHigh, []string{}},
		{"disjoint", "rust wasm", "java spring", 0, models.VerdictLow, []string{"java", "spring"}},
		{"case and digits ignored", "PYTHON3 Developer", "python developer", 100, models.VerdictHigh, []string{}},
		{"duplicates in jd counted once", "go", "go go go rust", 50, models.VerdictMedium, []string{"rust"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Evaluate(ctx, tt.resume, tt.jd)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.verdict, got.Verdict)
			assert.Equal(t, tt.missing, got.MissingSkills)
			assert.Equal(t, models.MethodOverlap, got.Method)
		})
	}
}

func TestEvaluate_EmptyJD(t *testing.T) {
	for _, e := range []embedding.Embedder{nil, embedding.NewHashEmbedder(0), failingEmbedder{}} {
		m := New(e)
		for _, jd := range []string{"", "   ", "2024 !!"} {
			got := m.Evaluate(context.Background(), "python developer", jd)
			assert.Equal(t, 0, got.Score)
			assert.Equal(t, models.VerdictLow, got.Verdict)
			assert.Empty(t, got.MissingSkills)
			assert.NotNil(t, got.MissingSkills)
		}
	}
}

func TestEvaluate_SemanticWithHashEmbedder(t *testing.T) {
	m := New(embedding.NewHashEmbedder(embedding.DefaultDimensions))
	ctx := context.Background()

	same := m.Evaluate(ctx, "Senior Go engineer", "senior   go ENGINEER")
	assert.Equal(t, models.MethodSemantic, same.Method)
	assert.Equal(t, 100, same.Score)
	assert.Equal(t, models.VerdictHigh, same.Verdict)
	assert.Empty(t, same.MissingSkills)

	empty := m.Evaluate(ctx, "", "java spring boot")
	assert.Equal(t, 0, empty.Score)
	assert.Equal(t, models.VerdictLow, empty.Verdict)
	assert.ElementsMatch(t, []string{"java", "spring", "boot"}, empty.MissingSkills)
}

func TestEvaluate_Deterministic(t *testing.T) {
	m := New(embedding.NewHashEmbedder(embedding.DefaultDimensions))
	ctx := context.Background()
	first := m.Evaluate(ctx, "python flask developer with sql", "python django developer")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Evaluate(ctx, "python flask developer with sql", "python django developer"))
	}
}

func TestEvaluate_FallsBackOnEmbedderFailure(t *testing.T) {
	for name, e := range map[string]embedding.Embedder{
		"error": failingEmbedder{},
		"panic": panickingEmbedder{},
	} {
		t.Run(name, func(t *testing.T) {
			got := New(e).Evaluate(context.Background(), "python flask developer", "python django developer")
			assert.Equal(t, 66, got.Score)
			assert.Equal(t, models.VerdictMedium, got.Verdict)
			assert.Equal(t, models.MethodOverlap, got.Method)
		})
	}
}

func TestEvaluate_SemanticScoreAndThresholds(t *testing.T) {
	e := fixedEmbedder{vectors: map[string][]float32{
		"resume text": {1, 0},
		"jd text":     {0.8, 0.6},
	}}
	got := New(e).Evaluate(context.Background(), "resume text", "jd text")
	assert.Equal(t, 80, got.Score)
	assert.Equal(t, models.VerdictHigh, got.Verdict)

	strict := New(e, WithScorer(scoring.NewScorer(90, 85)))
	assert.Equal(t, models.VerdictLow, strict.Evaluate(context.Background(), "resume text", "jd text").Verdict)
}

func TestEvaluate_LengthMismatchFallsBack(t *testing.T) {
	e := fixedEmbedder{vectors: map[string][]float32{
		"go":   {1, 0, 0},
		"go x": {1, 0},
	}}
	got := New(e).Evaluate(context.Background(), "go", "go x")
	require.Equal(t, models.MethodOverlap, got.Method)
	assert.Equal(t, 50, got.Score)
}

func TestOverlapScore(t *testing.T) {
	assert.Equal(t, 0, OverlapScore(nil, nil))
	assert.Equal(t, 33, OverlapScore([]string{"a"}, []string{"a", "b", "c"}))
	assert.Equal(t, 57, OverlapScore(manyTokens(57), manyTokens(100)))
}

func manyTokens(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a'+i/26)) + string(rune('a'+i%26))
	}
	return out
}
