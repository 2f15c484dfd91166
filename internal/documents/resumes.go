package documents

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/internal/keyword"
	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/internal/storage"
	"github.com/hyperjump/resumatch/pkg/apperror"
)

func resumeEntry(r *models.Resume) keyword.Entry {
	return keyword.Entry{Kind: keyword.KindResume, OwnerID: r.UserID, DocID: r.ID, Title: r.OriginalFilename, Content: r.ParsedText}
}

// UploadResume stores a new resume for userID.
func (s *Service) UploadResume(ctx context.Context, userID int64, up Upload) (*models.Resume, error) {
	f, err := s.save(userDir(userID), up)
	if err != nil {
		return nil, err
	}
	r := &models.Resume{
		UserID:           userID,
		OriginalFilename: f.original,
		Filename:         f.name,
		FilePath:         f.path,
		FileType:         f.ext,
		ParsedText:       f.text,
	}
	if err := s.store.CreateResume(ctx, r); err != nil {
		return nil, apperror.Internal(err)
	}
	s.reindex(ctx, resumeEntry(r))
	s.logger.Info("resume uploaded", zap.Int64("id", r.ID), zap.Int64("user_id", userID), zap.String("file", r.Filename))
	return r, nil
}

// GetResume returns a resume owned by userID.
func (s *Service) GetResume(ctx context.Context, id, userID int64) (*models.Resume, error) {
	r, err := s.store.GetResume(ctx, id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && r.UserID != userID) {
		return nil, apperror.NotFound("resume not found")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return r, nil
}

// ListResumes returns the resumes of userID.
func (s *Service) ListResumes(ctx context.Context, userID int64) ([]*models.Resume, error) {
	return s.listResumes(ctx, storage.DocumentFilter{OwnerID: storage.Int64(userID)})
}

// ListResumesByDate returns resumes uploaded within [start, end], optionally
// restricted to userID.
func (s *Service) ListResumesByDate(ctx context.Context, userID *int64, start, end *time.Time) ([]*models.Resume, error) {
	f := dateRange(start, end)
	f.OwnerID = userID
	return s.listResumes(ctx, f)
}

func (s *Service) listResumes(ctx context.Context, f storage.DocumentFilter) ([]*models.Resume, error) {
	rs, err := s.store.ListResumes(ctx, f)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if rs == nil {
		rs = []*models.Resume{}
	}
	return rs, nil
}

// ReplaceResume re-uploads the file of an existing resume.
func (s *Service) ReplaceResume(ctx context.Context, id, userID int64, up Upload) (*models.Resume, error) {
	r, err := s.GetResume(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	f, err := s.save(userDir(userID), up)
	if err != nil {
		return nil, err
	}
	oldPath := r.FilePath
	r.OriginalFilename = f.original
	r.Filename = f.name
	r.FilePath = f.path
	r.FileType = f.ext
	r.ParsedText = f.text
	r.UploadedAt = time.Now().UTC()
	if err := s.store.UpdateResume(ctx, r); err != nil {
		s.removeFile(f.path)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound("resume not found")
		}
		return nil, apperror.Internal(err)
	}
	s.removeFile(oldPath)
	s.reindex(ctx, resumeEntry(r))
	return r, nil
}

// DeleteResume removes a resume, its file and its index entry. Evaluations
// referencing it are kept.
func (s *Service) DeleteResume(ctx context.Context, id, userID int64) error {
	r, err := s.GetResume(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteResume(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperror.NotFound("resume not found")
		}
		return apperror.Internal(err)
	}
	s.removeFile(r.FilePath)
	s.unindex(ctx, keyword.KindResume, id)
	return nil
}

// SearchResumes reports which of the user's resumes contain kw.
func (s *Service) SearchResumes(ctx context.Context, userID int64, kw string) (*SearchResult, error) {
	kw, err := normalizeKeyword(kw)
	if err != nil {
		return nil, err
	}
	rs, err := s.ListResumes(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := &SearchResult{Keyword: kw, Documents: make([]models.SearchHit, 0, len(rs))}
	byID := make(map[int64]models.SearchHit, len(rs))
	for _, r := range rs {
		h := searchHit(r.ID, r.OriginalFilename, r.ParsedText, kw)
		res.Documents = append(res.Documents, h)
		byID[r.ID] = h
	}
	res.Ranked = s.rank(ctx, keyword.KindResume, userID, kw, byID)
	return res, nil
}
