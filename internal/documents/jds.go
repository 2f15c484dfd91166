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

func jdEntry(jd *models.JobDescription) keyword.Entry {
	return keyword.Entry{Kind: keyword.KindJD, OwnerID: jd.AdminID, DocID: jd.ID, Title: jd.DisplayTitle(), Content: jd.ParsedText}
}

// UploadJD stores a new job description for adminID. The title defaults to the
// original filename.
func (s *Service) UploadJD(ctx context.Context, adminID int64, up Upload) (*models.JobDescription, error) {
	f, err := s.save(adminDir(adminID), up)
	if err != nil {
		return nil, err
	}
	jd := &models.JobDescription{
		AdminID:    adminID,
		Filename:   f.name,
		FilePath:   f.path,
		FileType:   f.ext,
		Title:      f.original,
		ParsedText: f.text,
	}
	if err := s.store.CreateJD(ctx, jd); err != nil {
		return nil, apperror.Internal(err)
	}
	s.reindex(ctx, jdEntry(jd))
	s.logger.Info("job description uploaded", zap.Int64("id", jd.ID), zap.Int64("admin_id", adminID), zap.String("file", jd.Filename))
	return jd, nil
}

// GetJD returns a job description owned by adminID.
func (s *Service) GetJD(ctx context.Context, id, adminID int64) (*models.JobDescription, error) {
	jd, err := s.store.GetJD(ctx, id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && jd.AdminID != adminID) {
		return nil, apperror.NotFound("job description not found")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return jd, nil
}

// ListJDs returns the job descriptions of adminID.
func (s *Service) ListJDs(ctx context.Context, adminID int64) ([]*models.JobDescription, error) {
	return s.listJDs(ctx, storage.DocumentFilter{OwnerID: storage.Int64(adminID)})
}

// ListJDsByDate returns job descriptions uploaded within [start, end],
// optionally restricted to adminID.
func (s *Service) ListJDsByDate(ctx context.Context, adminID *int64, start, end *time.Time) ([]*models.JobDescription, error) {
	f := dateRange(start, end)
	f.OwnerID = adminID
	return s.listJDs(ctx, f)
}

func (s *Service) listJDs(ctx context.Context, f storage.DocumentFilter) ([]*models.JobDescription, error) {
	jds, err := s.store.ListJDs(ctx, f)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if jds == nil {
		jds = []*models.JobDescription{}
	}
	return jds, nil
}

// ReplaceJD re-uploads the file of an existing job description. A title that
// still equals the old filename follows the new one.
func (s *Service) ReplaceJD(ctx context.Context, id, adminID int64, up Upload) (*models.JobDescription, error) {
	jd, err := s.GetJD(ctx, id, adminID)
	if err != nil {
		return nil, err
	}
	f, err := s.save(adminDir(adminID), up)
	if err != nil {
		return nil, err
	}
	oldPath := jd.FilePath
	oldOriginal := originalName(jd.Filename)
	jd.Filename = f.name
	jd.FilePath = f.path
	jd.FileType = f.ext
	jd.ParsedText = f.text
	if jd.Title == "" || jd.Title == oldOriginal {
		jd.Title = f.original
	}
	jd.UploadedAt = time.Now().UTC()
	if err := s.store.UpdateJD(ctx, jd); err != nil {
		s.removeFile(f.path)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperror.NotFound("job description not found")
		}
		return nil, apperror.Internal(err)
	}
	s.removeFile(oldPath)
	s.reindex(ctx, jdEntry(jd))
	return jd, nil
}

// DeleteJD removes a job description, its file and its index entry.
func (s *Service) DeleteJD(ctx context.Context, id, adminID int64) error {
	jd, err := s.GetJD(ctx, id, adminID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteJD(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperror.NotFound("job description not found")
		}
		return apperror.Internal(err)
	}
	s.removeFile(jd.FilePath)
	s.unindex(ctx, keyword.KindJD, id)
	return nil
}

// SearchJDs reports which of the admin's job descriptions contain kw.
func (s *Service) SearchJDs(ctx context.Context, adminID int64, kw string) (*SearchResult, error) {
	kw, err := normalizeKeyword(kw)
	if err != nil {
		return nil, err
	}
	jds, err := s.ListJDs(ctx, adminID)
	if err != nil {
		return nil, err
	}
	res := &SearchResult{Keyword: kw, Documents: make([]models.SearchHit, 0, len(jds))}
	byID := make(map[int64]models.SearchHit, len(jds))
	for _, jd := range jds {
		h := searchHit(jd.ID, jd.DisplayTitle(), jd.ParsedText, kw)
		res.Documents = append(res.Documents, h)
		byID[jd.ID] = h
	}
	res.Ranked = s.rank(ctx, keyword.KindJD, adminID, kw, byID)
	return res, nil
}

// originalName strips the 8-character upload prefix from a stored filename.
func originalName(stored string) string {
	if len(stored) > 9 && stored[8] == '_' {
		return stored[9:]
	}
	return stored
}
