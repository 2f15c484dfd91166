package keyword

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hyperjump/resumatch/internal/textnorm"
)

// BleveIndex implements Index using bleve.
type BleveIndex struct {
	index    bleve.Index
	pipeline *textnorm.Pipeline
}

// indexDoc is the stored shape of an Entry.
type indexDoc struct {
	Kind    string `json:"kind"`
	Owner   string `json:"owner"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// pipelineAnalyzer only splits and lowercases. Stopword removal and stemming
// belong to the textnorm pipeline so the configured options decide them.
const pipelineAnalyzer = "pipeline_text"

func newMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(pipelineAnalyzer, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = pipelineAnalyzer
	docMapping.AddFieldMappingsAt("content", textField)
	docMapping.AddFieldMappingsAt("title", textField)

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keywordanalyzer.Name
	docMapping.AddFieldMappingsAt("kind", exact)
	docMapping.AddFieldMappingsAt("owner", exact)

	im.AddDocumentMapping("document", docMapping)
	im.DefaultType = "document"
	im.DefaultMapping = docMapping
	return im, nil
}

// NewBleveIndex creates or opens the index at path. An empty path keeps the
// index in memory. Text is passed through pipeline before indexing and querying;
// nil uses cleaning only.
func NewBleveIndex(path string, pipeline *textnorm.Pipeline) (*BleveIndex, error) {
	if pipeline == nil {
		pipeline = textnorm.NewPipeline(textnorm.Options{IncludeNumbers: true})
	}
	if path == "" {
		m, err := newMapping()
		if err != nil {
			return nil, err
		}
		index, err := bleve.NewMemOnly(m)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return &BleveIndex{index: index, pipeline: pipeline}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index, pipeline: pipeline}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	m, err := newMapping()
	if err != nil {
		return nil, err
	}
	index, err := bleve.New(path, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index, pipeline: pipeline}, nil
}

func (b *BleveIndex) process(text string) string {
	return strings.Join(b.pipeline.Process(text), " ")
}

// Index adds or replaces e.
func (b *BleveIndex) Index(ctx context.Context, e Entry) error {
	doc := indexDoc{
		Kind:    string(e.Kind),
		Owner:   strconv.FormatInt(e.OwnerID, 10),
		Title:   b.process(e.Title),
		Content: b.process(e.Content),
	}
	if err := b.index.Index(entryID(e.Kind, e.DocID), doc); err != nil {
		return fmt.Errorf("index %s %d: %w", e.Kind, e.DocID, err)
	}
	return nil
}

// Delete removes a document. Deleting an absent document is not an error.
func (b *BleveIndex) Delete(ctx context.Context, kind Kind, docID int64) error {
	return b.index.Delete(entryID(kind, docID))
}

// Search returns up to limit documents of kind owned by ownerID that match query.
func (b *BleveIndex) Search(ctx context.Context, kind Kind, ownerID int64, query string, limit int, opts *SearchOptions) ([]Hit, error) {
	terms := b.pipeline.Process(query)
	if len(terms) == 0 {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 10
	}
	titleBoost := 1.0
	if opts != nil && opts.TitleBoost > 1 {
		titleBoost = opts.TitleBoost
	}

	joined := strings.Join(terms, " ")
	content := bleve.NewMatchQuery(joined)
	content.SetField("content")
	title := bleve.NewMatchQuery(joined)
	title.SetField("title")
	title.SetBoost(titleBoost)

	kindQ := bleve.NewTermQuery(string(kind))
	kindQ.SetField("kind")
	ownerQ := bleve.NewTermQuery(strconv.FormatInt(ownerID, 10))
	ownerQ.SetField("owner")

	q := bleve.NewConjunctionQuery(bleve.NewDisjunctionQuery(content, title), kindQ, ownerQ)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		_, id, err := parseEntryID(h.ID)
		if err != nil {
			continue
		}
		out = append(out, Hit{DocID: id, Score: h.Score})
	}
	return out, nil
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
