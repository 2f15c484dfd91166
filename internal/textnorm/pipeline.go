package textnorm

import (
	"regexp"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

var (
	urlPattern       = regexp.MustCompile(`http\S+`)
	alnumRun         = regexp.MustCompile(`[a-z0-9]+`)
	asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// Options controls the optional stages of a Pipeline.
type Options struct {
	RemoveStopwords bool `yaml:"remove_stopwords"`
	Lemmatize       bool `yaml:"lemmatize"`
	IncludeNumbers  bool `yaml:"include_numbers"`
	// NGram appends joined n-length windows after the unigrams; values below 2 disable it.
	NGram int `yaml:"ngram"`
}

// Pipeline runs clean -> tokenize -> stopwords -> lemmatize -> n-grams.
type Pipeline struct {
	opts      Options
	stopwords analysis.TokenMap
}

var (
	englishStopwords     analysis.TokenMap
	englishStopwordsOnce sync.Once
)

func loadStopwords() analysis.TokenMap {
	englishStopwordsOnce.Do(func() {
		m := analysis.NewTokenMap()
		if err := m.LoadBytes(en.EnglishStopWords); err != nil {
			// an unreadable list leaves tokens unchanged
			englishStopwords = analysis.NewTokenMap()
			return
		}
		englishStopwords = m
	})
	return englishStopwords
}

// NewPipeline returns a pipeline with the given options.
func NewPipeline(opts Options) *Pipeline {
	p := &Pipeline{opts: opts}
	if opts.RemoveStopwords {
		p.stopwords = loadStopwords()
	}
	return p
}

// Clean lowercases, strips URLs and ASCII punctuation, and collapses whitespace.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, "")
	text = strings.Map(func(r rune) rune {
		if strings.ContainsRune(asciiPunctuation, r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(text), " ")
}

// Process returns the processed tokens of text.
func (p *Pipeline) Process(text string) []string {
	cleaned := Clean(text)
	if cleaned == "" {
		return []string{}
	}

	var tokens []string
	if p.opts.IncludeNumbers {
		tokens = alnumRun.FindAllString(cleaned, -1)
	} else {
		tokens = Tokenize(cleaned)
	}

	if p.opts.RemoveStopwords && len(p.stopwords) > 0 {
		kept := tokens[:0]
		for _, t := range tokens {
			if !p.stopwords[t] {
				kept = append(kept, t)
			}
		}
		tokens = kept
	}

	if p.opts.Lemmatize {
		for i, t := range tokens {
			tokens[i] = porterstemmer.StemString(t)
		}
	}

	if p.opts.NGram > 1 {
		tokens = append(tokens, NGrams(tokens, p.opts.NGram)...)
	}
	if tokens == nil {
		return []string{}
	}
	return tokens
}

// NGrams joins each consecutive window of n tokens with "_".
func NGrams(tokens []string, n int) []string {
	if n < 1 || len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], "_"))
	}
	return out
}
