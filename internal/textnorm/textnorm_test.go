package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"  Senior\tGo\n\nEngineer  ", "senior go engineer"},
		{"Python,  Flask", "python, flask"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{}, Tokenize(""))
	assert.Equal(t, []string{}, Tokenize("123 456 !!"))
	assert.Equal(t, []string{"python", "flask", "developer"}, Tokenize("Python/Flask developer"))
	assert.Equal(t, []string{"k", "s", "go"}, Tokenize("k8s go1"))
	assert.Equal(t, []string{"c", "c"}, Tokenize("C++ c#"))
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"go", "sql"}, Unique([]string{"go", "sql", "go"}))
	assert.Empty(t, Unique(nil))
}

func TestClean(t *testing.T) {
	assert.Equal(t, "see for details", Clean("See https://example.com/jobs?id=1 for details!"))
	assert.Equal(t, "nodejs and react", Clean("Node.js   and React"))
	assert.Equal(t, "", Clean(""))
}

func TestPipeline_Process(t *testing.T) {
	t.Run("defaults keep all alphabetic tokens", func(t *testing.T) {
		p := NewPipeline(Options{})
		assert.Equal(t, []string{"the", "python", "developer"}, p.Process("The Python developer, 2024"))
	})

	t.Run("numbers", func(t *testing.T) {
		p := NewPipeline(Options{IncludeNumbers: true})
		assert.Equal(t, []string{"python", "3", "developer"}, p.Process("Python 3 developer"))
	})

	t.Run("stopwords", func(t *testing.T) {
		p := NewPipeline(Options{RemoveStopwords: true})
		assert.Equal(t, []string{"experience", "kubernetes"}, p.Process("The experience with a Kubernetes"))
	})

	t.Run("lemmatize", func(t *testing.T) {
		p := NewPipeline(Options{Lemmatize: true})
		assert.Equal(t, []string{"run", "servic"}, p.Process("running services"))
	})

	t.Run("ngrams appended after unigrams", func(t *testing.T) {
		p := NewPipeline(Options{NGram: 2})
		assert.Equal(t,
			[]string{"machine", "learning", "engineer", "machine_learning", "learning_engineer"},
			p.Process("Machine learning engineer"))
	})

	t.Run("empty input", func(t *testing.T) {
		p := NewPipeline(Options{RemoveStopwords: true, Lemmatize: true, NGram: 3})
		assert.Equal(t, []string{}, p.Process(""))
	})
}

func TestNGrams(t *testing.T) {
	assert.Nil(t, NGrams([]string{"a"}, 2))
	assert.Equal(t, []string{"a_b_c"}, NGrams([]string{"a", "b", "c"}, 3))
}
