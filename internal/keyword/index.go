// Package keyword indexes resume and job description text in bleve and runs
// owner-scoped keyword searches over it.
package keyword

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes the two document collections sharing one index.
type Kind string

const (
	KindResume Kind = "resume"
	KindJD     Kind = "jd"
)

// Entry is one document to index.
type Entry struct {
	Kind    Kind
	OwnerID int64
	DocID   int64
	Title   string
	Content string
}

// SearchOptions tunes a query. Nil means defaults.
type SearchOptions struct {
	// TitleBoost multiplies matches in the filename/title field. Values <= 1 disable it.
	TitleBoost float64
}

// Hit is one ranked search result.
type Hit struct {
	DocID int64
	Score float64
}

// Index is the keyword search index used by the documents service.
type Index interface {
	Index(ctx context.Context, e Entry) error
	Delete(ctx context.Context, kind Kind, docID int64) error
	Search(ctx context.Context, kind Kind, ownerID int64, query string, limit int, opts *SearchOptions) ([]Hit, error)
	DocCount() (uint64, error)
	Close() error
}

func entryID(kind Kind, docID int64) string {
	return string(kind) + ":" + strconv.FormatInt(docID, 10)
}

func parseEntryID(id string) (Kind, int64, error) {
	kind, num, ok := strings.Cut(id, ":")
	if !ok {
		return "", 0, fmt.Errorf("malformed index id %q", id)
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed index id %q: %w", id, err)
	}
	return Kind(kind), n, nil
}
