package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/internal/documents"
	"github.com/hyperjump/resumatch/internal/fileid"
	"github.com/hyperjump/resumatch/pkg/apperror"
)

const (
	resumesDir = "resumes"
	jdsDir     = "jds"
	stateFile  = ".intake.json"
)

// ErrNotIntakePath is returned for files outside <root>/resumes/<userId>/ and
// <root>/jds/<adminId>/.
var ErrNotIntakePath = errors.New("not an intake path")

// Target identifies where an intake file belongs.
type Target struct {
	Root    string
	Kind    string
	OwnerID int64
}

// record links an intake file to the document created from it.
type record struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	OwnerID  int64  `json:"owner_id"`
	RecordID int64  `json:"record_id"`
	Content  string `json:"content"`
}

// Intake ingests files dropped into intake roots. A new file becomes an
// upload, a changed file replaces its record and a removed file deletes it.
// The path to record mapping is kept in <root>/.intake.json so restarts do
// not ingest the same file twice.
type Intake struct {
	roots      []string
	docs       *documents.Service
	extensions []string
	watchOpts  []Option
	logger     *zap.Logger

	mu      sync.Mutex
	records map[string]map[string]*record // root -> path id -> record
	watcher *Watcher
	ctx     context.Context
}

// IntakeOption configures an Intake.
type IntakeOption func(*Intake)

// WithIntakeLogger sets the intake logger; it is shared with the watcher.
func WithIntakeLogger(l *zap.Logger) IntakeOption {
	return func(i *Intake) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithIntakeDebounce sets the watcher debounce.
func WithIntakeDebounce(d time.Duration) IntakeOption {
	return func(i *Intake) { i.watchOpts = append(i.watchOpts, WithDebounce(d)) }
}

// NewIntake loads the state of every root. extensions limits which files are
// picked up; files of other types are ignored rather than rejected.
func NewIntake(roots []string, docs *documents.Service, extensions []string, opts ...IntakeOption) (*Intake, error) {
	i := &Intake{
		docs:       docs,
		extensions: extensions,
		logger:     zap.NewNop(),
		records:    make(map[string]map[string]*record),
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(i)
	}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("intake root %s: %w", root, err)
		}
		for _, sub := range []string{resumesDir, jdsDir} {
			if err := os.MkdirAll(filepath.Join(abs, sub), 0755); err != nil {
				return nil, fmt.Errorf("create intake directory: %w", err)
			}
		}
		recs, err := loadState(abs)
		if err != nil {
			i.logger.Warn("intake state unreadable, starting empty", zap.String("root", abs), zap.Error(err))
			recs = make(map[string]*record)
		}
		i.roots = append(i.roots, abs)
		i.records[abs] = recs
	}
	return i, nil
}

// Roots returns the absolute intake roots.
func (i *Intake) Roots() []string {
	return append([]string(nil), i.roots...)
}

// Start watches the roots and ingests files already present.
func (i *Intake) Start(ctx context.Context) error {
	i.mu.Lock()
	i.ctx = ctx
	opts := append([]Option{WithLogger(i.logger)}, i.watchOpts...)
	i.watcher = New(i.roots, i.extensions, i.onChange, i.onRemove, opts...)
	w := i.watcher
	i.mu.Unlock()
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start intake watcher: %w", err)
	}
	i.logger.Info("intake watching", zap.Strings("roots", i.roots))
	w.Sync()
	return nil
}

// Stop stops watching. Ingested records are kept.
func (i *Intake) Stop() {
	i.mu.Lock()
	w := i.watcher
	i.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

func (i *Intake) onChange(path string) {
	if err := i.Ingest(i.context(), path); err != nil && !errors.Is(err, ErrNotIntakePath) {
		i.logger.Warn("intake ingest failed", zap.String("path", path), zap.Error(err))
	}
}

func (i *Intake) onRemove(path string) {
	if err := i.Forget(i.context(), path); err != nil && !errors.Is(err, ErrNotIntakePath) {
		i.logger.Warn("intake removal failed", zap.String("path", path), zap.Error(err))
	}
}

func (i *Intake) context() context.Context {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ctx
}

// Resolve maps path to its intake target.
func (i *Intake) Resolve(path string) (Target, error) {
	clean := filepath.Clean(path)
	for _, root := range i.roots {
		rel, err := filepath.Rel(root, clean)
		if err != nil || !inDir(root, clean) {
			continue
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 || (parts[0] != resumesDir && parts[0] != jdsDir) {
			return Target{}, ErrNotIntakePath
		}
		owner, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || owner <= 0 {
			return Target{}, ErrNotIntakePath
		}
		return Target{Root: root, Kind: parts[0], OwnerID: owner}, nil
	}
	return Target{}, ErrNotIntakePath
}

// Ingest uploads path, or replaces the record created from it when its
// content changed. Unchanged files are skipped.
func (i *Intake) Ingest(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	target, err := i.Resolve(path)
	if err != nil {
		return err
	}
	if !matchExtension(path, i.extensions) {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read intake file: %w", err)
	}
	if len(content) == 0 {
		// a file still being copied in; the next write event retries
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	key := fileid.PathID(path)
	digest := fileid.ContentID(content)
	recs := i.records[target.Root]
	prev := recs[key]
	if prev != nil && prev.Content == digest {
		return nil
	}

	up := documents.Upload{Filename: filepath.Base(path), Content: content}
	var id int64
	if prev != nil {
		id, err = i.replace(ctx, target, prev.RecordID, up)
		if apperror.Is(err, apperror.KindNotFound) {
			// the record was deleted through the API
			prev = nil
		}
	}
	if prev == nil {
		id, err = i.upload(ctx, target, up)
	}
	if err != nil {
		return err
	}

	recs[key] = &record{Path: path, Kind: target.Kind, OwnerID: target.OwnerID, RecordID: id, Content: digest}
	i.logger.Info("intake file ingested", zap.String("path", path), zap.String("kind", target.Kind), zap.Int64("id", id))
	return saveState(target.Root, recs)
}

// Forget deletes the record created from path.
func (i *Intake) Forget(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	target, err := i.Resolve(path)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	key := fileid.PathID(path)
	recs := i.records[target.Root]
	prev, ok := recs[key]
	if !ok {
		return nil
	}
	if target.Kind == resumesDir {
		err = i.docs.DeleteResume(ctx, prev.RecordID, prev.OwnerID)
	} else {
		err = i.docs.DeleteJD(ctx, prev.RecordID, prev.OwnerID)
	}
	if err != nil && !apperror.Is(err, apperror.KindNotFound) {
		return err
	}
	delete(recs, key)
	i.logger.Info("intake file removed", zap.String("path", path), zap.Int64("id", prev.RecordID))
	return saveState(target.Root, recs)
}

// RecordID returns the record created from path, if any.
func (i *Intake) RecordID(path string) (int64, bool) {
	target, err := i.Resolve(path)
	if err != nil {
		return 0, false
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	rec, ok := i.records[target.Root][fileid.PathID(path)]
	if !ok {
		return 0, false
	}
	return rec.RecordID, true
}

func (i *Intake) upload(ctx context.Context, t Target, up documents.Upload) (int64, error) {
	if t.Kind == resumesDir {
		r, err := i.docs.UploadResume(ctx, t.OwnerID, up)
		if err != nil {
			return 0, err
		}
		return r.ID, nil
	}
	jd, err := i.docs.UploadJD(ctx, t.OwnerID, up)
	if err != nil {
		return 0, err
	}
	return jd.ID, nil
}

func (i *Intake) replace(ctx context.Context, t Target, id int64, up documents.Upload) (int64, error) {
	if t.Kind == resumesDir {
		r, err := i.docs.ReplaceResume(ctx, id, t.OwnerID, up)
		if err != nil {
			return 0, err
		}
		return r.ID, nil
	}
	jd, err := i.docs.ReplaceJD(ctx, id, t.OwnerID, up)
	if err != nil {
		return 0, err
	}
	return jd.ID, nil
}

func loadState(root string) (map[string]*record, error) {
	data, err := os.ReadFile(filepath.Join(root, stateFile))
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]*record), nil
	}
	if err != nil {
		return nil, err
	}
	var list []*record
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	recs := make(map[string]*record, len(list))
	for _, r := range list {
		recs[fileid.PathID(r.Path)] = r
	}
	return recs, nil
}

func saveState(root string, recs map[string]*record) error {
	list := make([]*record, 0, len(recs))
	for _, r := range recs {
		list = append(list, r)
	}
	sort.Slice(list, func(a, b int) bool { return list[a].Path < list[b].Path })
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(root, stateFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write intake state: %w", err)
	}
	return os.Rename(tmp, filepath.Join(root, stateFile))
}
