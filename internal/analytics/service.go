package analytics

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/storage"
	"github.com/hyperjump/resumatch/pkg/apperror"
)

// NoEvaluations is the message of a report computed over an empty collection.
const NoEvaluations = "no evaluations found"

// Report is the outcome of one aggregation.
type Report struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Empty   bool        `json:"-"`
}

// Service runs the reducers over evaluations read from storage.
type Service struct {
	store  storage.Storage
	logger *zap.Logger
}

// NewService returns an analytics service.
func NewService(store storage.Storage, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Evaluations returns the evaluations selected by f, possibly none.
func (s *Service) Evaluations(ctx context.Context, f Filter) ([]*models.Evaluation, error) {
	evs, err := s.store.ListEvaluations(ctx, f.storageFilter())
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list evaluations: %w", err))
	}
	if evs == nil {
		evs = []*models.Evaluation{}
	}
	return evs, nil
}

func (s *Service) report(ctx context.Context, f Filter, done string, reduce func([]*models.Evaluation) (interface{}, error)) (*Report, error) {
	evs, err := s.Evaluations(ctx, f)
	if err != nil {
		return nil, err
	}
	data, err := reduce(evs)
	if err != nil {
		return nil, err
	}
	if len(evs) == 0 {
		return &Report{Message: NoEvaluations, Data: data, Empty: true}, nil
	}
	s.logger.Debug("analytics computed", zap.String("report", done), zap.Int("evaluations", len(evs)))
	return &Report{Message: done, Data: data}, nil
}

// ScoreDistribution reports bucket counts.
func (s *Service) ScoreDistribution(ctx context.Context, f Filter) (*Report, error) {
	return s.report(ctx, f, "score distribution calculated", func(evs []*models.Evaluation) (interface{}, error) {
		return ScoreDistribution(evs), nil
	})
}

// VerdictBreakdown reports counts per tier.
func (s *Service) VerdictBreakdown(ctx context.Context, f Filter) (*Report, error) {
	return s.report(ctx, f, "verdict breakdown calculated", func(evs []*models.Evaluation) (interface{}, error) {
		return VerdictBreakdown(evs), nil
	})
}

// Timeline reports counts per day.
func (s *Service) Timeline(ctx context.Context, f Filter) (*Report, error) {
	return s.report(ctx, f, "timeline calculated", func(evs []*models.Evaluation) (interface{}, error) {
		return Timeline(evs), nil
	})
}

// AvgScorePerJD reports the mean score of each job description.
func (s *Service) AvgScorePerJD(ctx context.Context, f Filter) (*Report, error) {
	return s.report(ctx, f, "avg score per jd calculated", func(evs []*models.Evaluation) (interface{}, error) {
		jds, err := s.jdIndex(ctx, f.AdminID)
		if err != nil {
			return nil, err
		}
		return AvgScorePerJD(evs, jds), nil
	})
}

func (s *Service) jdIndex(ctx context.Context, adminID *int64) (map[int64]*models.JobDescription, error) {
	jds, err := s.store.ListJDs(ctx, storage.DocumentFilter{OwnerID: adminID})
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list job descriptions: %w", err))
	}
	out := make(map[int64]*models.JobDescription, len(jds))
	for _, jd := range jds {
		out[jd.ID] = jd
	}
	return out, nil
}
