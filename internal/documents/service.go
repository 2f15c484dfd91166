// Package documents manages uploaded resumes and job descriptions: stored
// files, extracted text, records and the keyword index.
package documents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/internal/extract"
	"github.com/hyperjump/resumatch/internal/keyword"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/storage"
	"github.com/hyperjump/resumatch/pkg/apperror"
	"github.com/hyperjump/resumatch/pkg/utils"
)

// DefaultMaxUploadBytes bounds an upload when no limit is configured.
const DefaultMaxUploadBytes = 8 << 20

const previewLength = 160

// Upload is a file received from a client or the intake watcher.
type Upload struct {
	Filename string
	Content  []byte
}

// Service stores uploads and keeps records and the keyword index in sync.
type Service struct {
	store     storage.Storage
	extractor *extract.Extractor
	index     keyword.Index
	uploadDir string
	maxBytes  int64
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = utils.OrNop(l) }
}

// WithIndex enables keyword indexing and ranked search.
func WithIndex(idx keyword.Index) Option {
	return func(s *Service) { s.index = idx }
}

// WithMaxUploadBytes overrides DefaultMaxUploadBytes.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// NewService returns a documents service writing files under uploadDir.
func NewService(store storage.Storage, extractor *extract.Extractor, uploadDir string, opts ...Option) *Service {
	s := &Service{
		store:     store,
		extractor: extractor,
		uploadDir: uploadDir,
		maxBytes:  DefaultMaxUploadBytes,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// stored describes a file written to disk together with its extracted text.
type stored struct {
	original string
	name     string
	path     string
	ext      string
	text     string
}

func (s *Service) validate(up Upload) error {
	name := filepath.Base(strings.TrimSpace(up.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) || extract.Ext(name) == "" {
		return apperror.Validation("invalid file")
	}
	if !s.extractor.Supported(name) {
		return apperror.Validation("file type not allowed: " + extract.Ext(name))
	}
	if len(up.Content) == 0 {
		return apperror.Validation("no file provided")
	}
	if int64(len(up.Content)) > s.maxBytes {
		return apperror.Validation(fmt.Sprintf("file too large: limit is %d bytes", s.maxBytes))
	}
	return nil
}

// save validates up, writes it as <dir>/<uuid8>_<name> and extracts its text.
func (s *Service) save(dir string, up Upload) (*stored, error) {
	if err := s.validate(up); err != nil {
		return nil, err
	}
	original := filepath.Base(strings.TrimSpace(up.Filename))
	name := uuid.New().String()[:8] + "_" + original
	full := filepath.Join(s.uploadDir, dir)
	if err := os.MkdirAll(full, 0755); err != nil {
		return nil, apperror.Internal(fmt.Errorf("create upload directory: %w", err))
	}
	path := filepath.Join(full, name)
	if err := os.WriteFile(path, up.Content, 0644); err != nil {
		return nil, apperror.Internal(fmt.Errorf("write upload: %w", err))
	}
	return &stored{
		original: original,
		name:     name,
		path:     path,
		ext:      extract.Ext(original),
		text:     s.extractor.ExtractText(up.Content, original),
	}, nil
}

func (s *Service) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove stored file", zap.String("path", path), zap.Error(err))
	}
}

func (s *Service) reindex(ctx context.Context, e keyword.Entry) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, e); err != nil {
		s.logger.Warn("failed to index document", zap.String("kind", string(e.Kind)), zap.Int64("id", e.DocID), zap.Error(err))
	}
}

func (s *Service) unindex(ctx context.Context, kind keyword.Kind, id int64) {
	if s.index == nil {
		return
	}
	if err := s.index.Delete(ctx, kind, id); err != nil {
		s.logger.Warn("failed to remove document from index", zap.String("kind", string(kind)), zap.Int64("id", id), zap.Error(err))
	}
}

func userDir(id int64) string  { return fmt.Sprintf("user_%d", id) }
func adminDir(id int64) string { return fmt.Sprintf("admin_%d", id) }

// SearchResult pairs the substring scan of every owned document with the
// keyword-ranked hits.
type SearchResult struct {
	Keyword   string             `json:"keyword"`
	Documents []models.SearchHit `json:"documents"`
	Ranked    []models.SearchHit `json:"ranked"`
}

func (s *Service) rank(ctx context.Context, kind keyword.Kind, ownerID int64, kw string, byID map[int64]models.SearchHit) []models.SearchHit {
	ranked := []models.SearchHit{}
	if s.index == nil {
		return ranked
	}
	hits, err := s.index.Search(ctx, kind, ownerID, kw, len(byID), &keyword.SearchOptions{TitleBoost: 2})
	if err != nil {
		s.logger.Warn("keyword search failed", zap.String("keyword", kw), zap.Error(err))
		return ranked
	}
	for _, h := range hits {
		doc, ok := byID[h.DocID]
		if !ok {
			continue
		}
		doc.Score = h.Score
		ranked = append(ranked, doc)
	}
	return ranked
}

func searchHit(id int64, filename, text, kw string) models.SearchHit {
	return models.SearchHit{
		ID:         id,
		Filename:   filename,
		MatchFound: strings.Contains(strings.ToLower(text), kw),
		Preview:    utils.Truncate(text, previewLength),
	}
}

func normalizeKeyword(kw string) (string, error) {
	kw = strings.ToLower(strings.TrimSpace(kw))
	if kw == "" {
		return "", apperror.Validation("keyword is required")
	}
	return kw, nil
}

func dateRange(start, end *time.Time) storage.DocumentFilter {
	return storage.DocumentFilter{From: start, To: end}
}
