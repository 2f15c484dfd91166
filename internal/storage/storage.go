// Package storage persists resumes, job descriptions and evaluations.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hyperjump/resumatch/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an evaluation already exists for a resume/JD pair.
	ErrConflict = errors.New("record already exists")
)

// Storage defines typed persistence for the three record kinds.
type Storage interface {
	CreateResume(ctx context.Context, r *models.Resume) error
	GetResume(ctx context.Context, id int64) (*models.Resume, error)
	UpdateResume(ctx context.Context, r *models.Resume) error
	DeleteResume(ctx context.Context, id int64) error
	ListResumes(ctx context.Context, f DocumentFilter) ([]*models.Resume, error)

	CreateJD(ctx context.Context, jd *models.JobDescription) error
	GetJD(ctx context.Context, id int64) (*models.JobDescription, error)
	UpdateJD(ctx context.Context, jd *models.JobDescription) error
	DeleteJD(ctx context.Context, id int64) error
	ListJDs(ctx context.Context, f DocumentFilter) ([]*models.JobDescription, error)

	// CreateEvaluation assigns ev.ID. It returns ErrConflict if the pair already
	// has an evaluation; the check and the insert are atomic.
	CreateEvaluation(ctx context.Context, ev *models.Evaluation) error
	GetEvaluation(ctx context.Context, id int64) (*models.Evaluation, error)
	FindEvaluation(ctx context.Context, resumeID, jdID int64) (*models.Evaluation, error)
	UpdateEvaluation(ctx context.Context, id int64, patch models.EvaluationPatch) (*models.Evaluation, error)
	DeleteEvaluation(ctx context.Context, id int64) error
	ListEvaluations(ctx context.Context, f EvaluationFilter) ([]*models.Evaluation, error)

	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats holds record counts.
type Stats struct {
	Resumes     int64 `json:"resumes"`
	JDs         int64 `json:"jds"`
	Evaluations int64 `json:"evaluations"`
}

// DocumentFilter selects resumes (owner = user) or job descriptions (owner = admin).
type DocumentFilter struct {
	OwnerID *int64
	From    *time.Time
	To      *time.Time
}

func (f DocumentFilter) inRange(t time.Time) bool {
	return inRange(t, f.From, f.To)
}

// EvaluationFilter selects evaluations. UserID joins through resumes and
// AdminID through job descriptions. Verdict is a case-insensitive substring.
type EvaluationFilter struct {
	UserID   *int64
	AdminID  *int64
	From     *time.Time
	To       *time.Time
	MinScore *int
	Verdict  string
}

// Scoped reports whether the filter restricts by owner.
func (f EvaluationFilter) Scoped() bool {
	return f.UserID != nil || f.AdminID != nil
}

func (f EvaluationFilter) matchFields(ev *models.Evaluation) bool {
	if !inRange(ev.CreatedAt, f.From, f.To) {
		return false
	}
	if f.MinScore != nil && ev.Score < *f.MinScore {
		return false
	}
	if f.Verdict != "" && !strings.Contains(strings.ToLower(string(ev.Verdict)), strings.ToLower(f.Verdict)) {
		return false
	}
	return true
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

// Int64 returns a pointer to v, for building filters.
func Int64(v int64) *int64 { return &v }
