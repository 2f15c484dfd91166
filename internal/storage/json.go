package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/pkg/utils"
)

// document is the whole persisted state of a JSONStorage file. Admin and user
// accounts are managed elsewhere; their entries are carried through unchanged.
type document struct {
	Admins      []json.RawMessage        `json:"admins"`
	Users       []json.RawMessage        `json:"users"`
	Resumes     []*models.Resume         `json:"resumes"`
	JDs         []*models.JobDescription `json:"jds"`
	Evaluations []*models.Evaluation     `json:"evaluations"`
	Sequences   map[string]int64         `json:"sequences"`
}

func emptyDocument() *document {
	return &document{
		Admins:      []json.RawMessage{},
		Users:       []json.RawMessage{},
		Resumes:     []*models.Resume{},
		JDs:         []*models.JobDescription{},
		Evaluations: []*models.Evaluation{},
		Sequences:   map[string]int64{},
	}
}

// nextID returns the next id for kind. Ids are never reused, even after deletes.
func (d *document) nextID(kind string) int64 {
	d.Sequences[kind]++
	return d.Sequences[kind]
}

// JSONStorage keeps all records in one JSON file. Every operation loads the
// whole file, and writes replace it atomically; a single mutex serializes the
// load-mutate-save cycle.
type JSONStorage struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// JSONOption configures a JSONStorage.
type JSONOption func(*JSONStorage)

// WithJSONLogger sets the logger used to report corrupt files.
func WithJSONLogger(l *zap.Logger) JSONOption {
	return func(s *JSONStorage) { s.logger = utils.OrNop(l) }
}

// NewJSONStorage opens the file at path, creating an empty schema if it does not exist.
func NewJSONStorage(path string, opts ...JSONOption) (*JSONStorage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	s := &JSONStorage{path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.save(emptyDocument()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// load reads the file. A missing file yields an empty schema; an unparsable one
// is logged and treated as empty.
func (s *JSONStorage) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return emptyDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	doc := emptyDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		s.logger.Warn("data file is corrupt, resetting to empty schema", zap.String("path", s.path), zap.Error(err))
		return emptyDocument(), nil
	}
	if doc.hasNullRecord() {
		s.logger.Warn("data file holds null records, resetting to empty schema", zap.String("path", s.path))
		return emptyDocument(), nil
	}
	if doc.Sequences == nil {
		doc.Sequences = map[string]int64{}
	}
	doc.reconcileSequences()
	return doc, nil
}

func (d *document) hasNullRecord() bool {
	for _, r := range d.Resumes {
		if r == nil {
			return true
		}
	}
	for _, jd := range d.JDs {
		if jd == nil {
			return true
		}
	}
	for _, ev := range d.Evaluations {
		if ev == nil {
			return true
		}
	}
	return false
}

// reconcileSequences keeps sequences ahead of existing ids for files written
// without them.
func (d *document) reconcileSequences() {
	for _, r := range d.Resumes {
		if r.ID > d.Sequences["resumes"] {
			d.Sequences["resumes"] = r.ID
		}
	}
	for _, jd := range d.JDs {
		if jd.ID > d.Sequences["jds"] {
			d.Sequences["jds"] = jd.ID
		}
	}
	for _, ev := range d.Evaluations {
		if ev.ID > d.Sequences["evaluations"] {
			d.Sequences["evaluations"] = ev.ID
		}
	}
}

func (s *JSONStorage) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".resumatch-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace data file: %w", err)
	}
	return nil
}

// withLock runs fn on the loaded state under the store mutex and saves the
// state afterwards unless fn fails.
func (s *JSONStorage) withLock(ctx context.Context, fn func(doc *document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

// view runs fn on the loaded state without saving.
func (s *JSONStorage) view(ctx context.Context, fn func(doc *document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	return fn(doc)
}

func (s *JSONStorage) CreateResume(ctx context.Context, r *models.Resume) error {
	if r.UploadedAt.IsZero() {
		r.UploadedAt = time.Now().UTC()
	}
	return s.withLock(ctx, func(doc *document) error {
		r.ID = doc.nextID("resumes")
		cp := *r
		doc.Resumes = append(doc.Resumes, &cp)
		return nil
	})
}

func (s *JSONStorage) GetResume(ctx context.Context, id int64) (*models.Resume, error) {
	var out *models.Resume
	err := s.view(ctx, func(doc *document) error {
		for _, r := range doc.Resumes {
			if r.ID == id {
				out = r
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (s *JSONStorage) UpdateResume(ctx context.Context, r *models.Resume) error {
	return s.withLock(ctx, func(doc *document) error {
		for i, existing := range doc.Resumes {
			if existing.ID == r.ID {
				cp := *r
				cp.UserID = existing.UserID
				doc.Resumes[i] = &cp
				return nil
			}
		}
		return ErrNotFound
	})
}

func (s *JSONStorage) DeleteResume(ctx context.Context, id int64) error {
	return s.withLock(ctx, func(doc *document) error {
		for i, r := range doc.Resumes {
			if r.ID == id {
				doc.Resumes = append(doc.Resumes[:i], doc.Resumes[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

func (s *JSONStorage) ListResumes(ctx context.Context, f DocumentFilter) ([]*models.Resume, error) {
	var out []*models.Resume
	err := s.view(ctx, func(doc *document) error {
		for _, r := range doc.Resumes {
			if f.OwnerID != nil && r.UserID != *f.OwnerID {
				continue
			}
			if !f.inRange(r.UploadedAt) {
				continue
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func (s *JSONStorage) CreateJD(ctx context.Context, jd *models.JobDescription) error {
	if jd.UploadedAt.IsZero() {
		jd.UploadedAt = time.Now().UTC()
	}
	return s.withLock(ctx, func(doc *document) error {
		jd.ID = doc.nextID("jds")
		cp := *jd
		doc.JDs = append(doc.JDs, &cp)
		return nil
	})
}

func (s *JSONStorage) GetJD(ctx context.Context, id int64) (*models.JobDescription, error) {
	var out *models.JobDescription
	err := s.view(ctx, func(doc *document) error {
		for _, jd := range doc.JDs {
			if jd.ID == id {
				out = jd
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (s *JSONStorage) UpdateJD(ctx context.Context, jd *models.JobDescription) error {
	return s.withLock(ctx, func(doc *document) error {
		for i, existing := range doc.JDs {
			if existing.ID == jd.ID {
				cp := *jd
				cp.AdminID = existing.AdminID
				doc.JDs[i] = &cp
				return nil
			}
		}
		return ErrNotFound
	})
}

func (s *JSONStorage) DeleteJD(ctx context.Context, id int64) error {
	return s.withLock(ctx, func(doc *document) error {
		for i, jd := range doc.JDs {
			if jd.ID == id {
				doc.JDs = append(doc.JDs[:i], doc.JDs[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

func (s *JSONStorage) ListJDs(ctx context.Context, f DocumentFilter) ([]*models.JobDescription, error) {
	var out []*models.JobDescription
	err := s.view(ctx, func(doc *document) error {
		for _, jd := range doc.JDs {
			if f.OwnerID != nil && jd.AdminID != *f.OwnerID {
				continue
			}
			if !f.inRange(jd.UploadedAt) {
				continue
			}
			out = append(out, jd)
		}
		return nil
	})
	return out, err
}

// CreateEvaluation checks for an existing pair and appends inside one critical section.
func (s *JSONStorage) CreateEvaluation(ctx context.Context, ev *models.Evaluation) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.MissingSkills == nil {
		ev.MissingSkills = []string{}
	}
	return s.withLock(ctx, func(doc *document) error {
		for _, existing := range doc.Evaluations {
			if existing.ResumeID == ev.ResumeID && existing.JDID == ev.JDID {
				return ErrConflict
			}
		}
		ev.ID = doc.nextID("evaluations")
		cp := *ev
		cp.MissingSkills = append([]string{}, ev.MissingSkills...)
		doc.Evaluations = append(doc.Evaluations, &cp)
		return nil
	})
}

func (s *JSONStorage) GetEvaluation(ctx context.Context, id int64) (*models.Evaluation, error) {
	var out *models.Evaluation
	err := s.view(ctx, func(doc *document) error {
		for _, ev := range doc.Evaluations {
			if ev.ID == id {
				out = withSkills(ev)
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (s *JSONStorage) FindEvaluation(ctx context.Context, resumeID, jdID int64) (*models.Evaluation, error) {
	var out *models.Evaluation
	err := s.view(ctx, func(doc *document) error {
		for _, ev := range doc.Evaluations {
			if ev.ResumeID == resumeID && ev.JDID == jdID {
				out = withSkills(ev)
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (s *JSONStorage) UpdateEvaluation(ctx context.Context, id int64, patch models.EvaluationPatch) (*models.Evaluation, error) {
	var out *models.Evaluation
	err := s.withLock(ctx, func(doc *document) error {
		for _, ev := range doc.Evaluations {
			if ev.ID == id {
				patch.Apply(ev)
				out = withSkills(ev)
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (s *JSONStorage) DeleteEvaluation(ctx context.Context, id int64) error {
	return s.withLock(ctx, func(doc *document) error {
		for i, ev := range doc.Evaluations {
			if ev.ID == id {
				doc.Evaluations = append(doc.Evaluations[:i], doc.Evaluations[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

func (s *JSONStorage) ListEvaluations(ctx context.Context, f EvaluationFilter) ([]*models.Evaluation, error) {
	var out []*models.Evaluation
	err := s.view(ctx, func(doc *document) error {
		var userResumes, adminJDs map[int64]bool
		if f.UserID != nil {
			userResumes = make(map[int64]bool)
			for _, r := range doc.Resumes {
				if r.UserID == *f.UserID {
					userResumes[r.ID] = true
				}
			}
		}
		if f.AdminID != nil {
			adminJDs = make(map[int64]bool)
			for _, jd := range doc.JDs {
				if jd.AdminID == *f.AdminID {
					adminJDs[jd.ID] = true
				}
			}
		}
		for _, ev := range doc.Evaluations {
			if userResumes != nil && !userResumes[ev.ResumeID] {
				continue
			}
			if adminJDs != nil && !adminJDs[ev.JDID] {
				continue
			}
			if !f.matchFields(ev) {
				continue
			}
			out = append(out, withSkills(ev))
		}
		return nil
	})
	return out, err
}

func (s *JSONStorage) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.view(ctx, func(doc *document) error {
		st = Stats{
			Resumes:     int64(len(doc.Resumes)),
			JDs:         int64(len(doc.JDs)),
			Evaluations: int64(len(doc.Evaluations)),
		}
		return nil
	})
	return st, err
}

// Close is a no-op; every operation already persisted its changes.
func (s *JSONStorage) Close() error {
	return nil
}

// Path returns the data file path.
func (s *JSONStorage) Path() string {
	return s.path
}

func withSkills(ev *models.Evaluation) *models.Evaluation {
	cp := *ev
	if cp.MissingSkills == nil {
		cp.MissingSkills = []string{}
	}
	return &cp
}
