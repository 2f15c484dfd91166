// Package evaluation owns the lifecycle of evaluation records: creation through
// the matcher, the one-per-pair guard, batch comparison, updates and feedback.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/internal/matcher"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/storage"
	"github.com/hyperjump/resumatch/pkg/apperror"
)

// Service creates, reads, updates and deletes evaluations.
type Service struct {
	store    storage.Storage
	matcher  *matcher.Matcher
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithValidator replaces the default validator instance.
func WithValidator(v *validator.Validate) Option {
	return func(s *Service) {
		if v != nil {
			s.validate = v
		}
	}
}

// WithClock sets the time source for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service backed by store and m.
func NewService(store storage.Storage, m *matcher.Matcher, opts ...Option) *Service {
	s := &Service{
		store:    store,
		matcher:  m,
		validate: validator.New(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create scores the resume against the job description and stores the result.
// Missing documents are NotFound; an existing evaluation for the pair is Conflict.
func (s *Service) Create(ctx context.Context, resumeID, jdID int64) (*models.Evaluation, error) {
	resume, err := s.store.GetResume(ctx, resumeID)
	if err != nil {
		return nil, notFoundOr(err, "resume not found")
	}
	jd, err := s.store.GetJD(ctx, jdID)
	if err != nil {
		return nil, notFoundOr(err, "job description not found")
	}
	if _, err := s.store.FindEvaluation(ctx, resumeID, jdID); err == nil {
		return nil, apperror.Conflict("evaluation already exists")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperror.Internal(err)
	}

	ev := s.score(ctx, resume, jd)
	if err := s.insert(ctx, ev); err != nil {
		return nil, err
	}
	s.logger.Info("evaluation created",
		zap.Int64("id", ev.ID),
		zap.Int64("resume_id", resumeID),
		zap.Int64("jd_id", jdID),
		zap.Int("score", ev.Score),
		zap.String("verdict", string(ev.Verdict)))
	return ev, nil
}

// score runs the matcher outside of any storage lock.
func (s *Service) score(ctx context.Context, resume *models.Resume, jd *models.JobDescription) *models.Evaluation {
	res := s.matcher.Evaluate(ctx, resume.ParsedText, jd.ParsedText)
	return &models.Evaluation{
		ResumeID:      resume.ID,
		JDID:          jd.ID,
		Score:         res.Score,
		Verdict:       res.Verdict,
		MissingSkills: res.MissingSkills,
		CreatedAt:     s.now().UTC(),
	}
}

func (s *Service) insert(ctx context.Context, ev *models.Evaluation) error {
	err := s.store.CreateEvaluation(ctx, ev)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrConflict):
		return apperror.Conflict("evaluation already exists")
	default:
		return apperror.Internal(fmt.Errorf("store evaluation: %w", err))
	}
}

// Link records a pending evaluation for the pair without scoring it.
func (s *Service) Link(ctx context.Context, resumeID, jdID int64) (*models.Evaluation, error) {
	if _, err := s.store.GetResume(ctx, resumeID); err != nil {
		return nil, notFoundOr(err, "resume not found")
	}
	if _, err := s.store.GetJD(ctx, jdID); err != nil {
		return nil, notFoundOr(err, "job description not found")
	}
	ev := &models.Evaluation{
		ResumeID:      resumeID,
		JDID:          jdID,
		Verdict:       models.VerdictPending,
		MissingSkills: []string{},
		CreatedAt:     s.now().UTC(),
	}
	if err := s.insert(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Get returns one evaluation.
func (s *Service) Get(ctx context.Context, id int64) (*models.Evaluation, error) {
	ev, err := s.store.GetEvaluation(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "evaluation not found")
	}
	return ev, nil
}

// ListAll returns every evaluation, possibly none.
func (s *Service) ListAll(ctx context.Context) ([]*models.Evaluation, error) {
	evs, err := s.store.ListEvaluations(ctx, storage.EvaluationFilter{})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return nonNil(evs), nil
}

// ListByUser returns evaluations of resumes owned by userID. An empty result is NotFound.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*models.Evaluation, error) {
	evs, err := s.store.ListEvaluations(ctx, storage.EvaluationFilter{UserID: storage.Int64(userID)})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if len(evs) == 0 {
		return nil, apperror.NotFound("no evaluations for this user")
	}
	return evs, nil
}

// ListByAdmin returns evaluations of job descriptions owned by adminID. An empty result is NotFound.
func (s *Service) ListByAdmin(ctx context.Context, adminID int64) ([]*models.Evaluation, error) {
	evs, err := s.store.ListEvaluations(ctx, storage.EvaluationFilter{AdminID: storage.Int64(adminID)})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if len(evs) == 0 {
		return nil, apperror.NotFound("no evaluations for this admin")
	}
	return evs, nil
}

// Update applies the supplied fields of patch.
func (s *Service) Update(ctx context.Context, id int64, patch models.EvaluationPatch) (*models.Evaluation, error) {
	if patch.Empty() {
		return nil, apperror.Validation("no fields to update")
	}
	if err := s.validate.Struct(patch); err != nil {
		return nil, apperror.New(apperror.KindValidation, validationMessage(err), err)
	}
	ev, err := s.store.UpdateEvaluation(ctx, id, patch)
	if err != nil {
		return nil, notFoundOr(err, "evaluation not found")
	}
	return ev, nil
}

// Delete removes one evaluation.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteEvaluation(ctx, id); err != nil {
		return notFoundOr(err, "evaluation not found")
	}
	return nil
}

// CompareResumesToJD evaluates every resume of userID against jdID. Pairs that
// already have an evaluation are skipped and left out of the result.
func (s *Service) CompareResumesToJD(ctx context.Context, userID, jdID int64) ([]*models.Evaluation, error) {
	resumes, err := s.store.ListResumes(ctx, storage.DocumentFilter{OwnerID: storage.Int64(userID)})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if len(resumes) == 0 {
		return nil, apperror.NotFound("no resumes found")
	}
	jd, err := s.store.GetJD(ctx, jdID)
	if err != nil {
		return nil, notFoundOr(err, "job description not found")
	}

	out := []*models.Evaluation{}
	for _, r := range resumes {
		ev, err := s.compareOne(ctx, r, jd)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			out = append(out, ev)
		}
	}
	return out, nil
}

// CompareJDsToResume evaluates resumeID against every job description of adminID.
func (s *Service) CompareJDsToResume(ctx context.Context, resumeID, adminID int64) ([]*models.Evaluation, error) {
	resume, err := s.store.GetResume(ctx, resumeID)
	if err != nil {
		return nil, notFoundOr(err, "resume not found")
	}
	jds, err := s.store.ListJDs(ctx, storage.DocumentFilter{OwnerID: storage.Int64(adminID)})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if len(jds) == 0 {
		return nil, apperror.NotFound("no job descriptions found")
	}

	out := []*models.Evaluation{}
	for _, jd := range jds {
		ev, err := s.compareOne(ctx, resume, jd)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			out = append(out, ev)
		}
	}
	return out, nil
}

// compareOne returns nil without error when the pair is already evaluated,
// including when a concurrent caller wins the insert.
func (s *Service) compareOne(ctx context.Context, resume *models.Resume, jd *models.JobDescription) (*models.Evaluation, error) {
	if _, err := s.store.FindEvaluation(ctx, resume.ID, jd.ID); err == nil {
		return nil, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperror.Internal(err)
	}
	ev := s.score(ctx, resume, jd)
	if err := s.insert(ctx, ev); err != nil {
		if apperror.Is(err, apperror.KindConflict) {
			s.logger.Debug("pair evaluated concurrently, skipping",
				zap.Int64("resume_id", resume.ID), zap.Int64("jd_id", jd.ID))
			return nil, nil
		}
		return nil, err
	}
	return ev, nil
}

// Match scores two texts without storing anything.
func (s *Service) Match(ctx context.Context, resumeText, jdText string) models.MatchResult {
	return s.matcher.Evaluate(ctx, resumeText, jdText)
}

// Backend names the embedding backend behind the matcher.
func (s *Service) Backend() string {
	return s.matcher.Backend()
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperror.NotFound(msg)
	}
	return apperror.Internal(err)
}

func nonNil(evs []*models.Evaluation) []*models.Evaluation {
	if evs == nil {
		return []*models.Evaluation{}
	}
	return evs
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid evaluation fields"
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Score":
		return "score must be between 0 and 100"
	case "Verdict":
		return "verdict must not be empty"
	default:
		return fmt.Sprintf("invalid field %s", fe.Field())
	}
}
