package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/internal/documents"
	"github.com/hyperjump/resumatch/pkg/apperror"
)

// multipartOverhead is allowed on top of the upload limit for form framing.
const multipartOverhead = 1 << 20

// readUpload reads the multipart "file" field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (documents.Upload, error) {
	limit := s.config.MaxUploadBytes
	if limit <= 0 {
		limit = documents.DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return documents.Upload{}, apperror.Validation(fmt.Sprintf("file too large: limit is %d bytes", limit))
		}
		return documents.Upload{}, apperror.Validation("no file provided")
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return documents.Upload{}, apperror.Validation("no file provided")
	}
	return documents.Upload{Filename: header.Filename, Content: content}, nil
}

func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Debug("upload resume request", zap.Int64("user_id", userID), zap.String("filename", up.Filename))
	res, err := s.deps.Documents.UploadResume(r.Context(), userID, up)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, res)
}

func (s *Server) handleListResumes(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	list, err := s.deps.Documents.ListResumes(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, list)
}

func (s *Server) handleGetResume(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "id", "user_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.deps.Documents.GetResume(r.Context(), ids[0], ids[1])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, res)
}

func (s *Server) handleReplaceResume(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "id", "user_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.deps.Documents.ReplaceResume(r.Context(), ids[0], ids[1], up)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, res)
}

func (s *Server) handleDeleteResume(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "id", "user_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.deps.Documents.DeleteResume(r.Context(), ids[0], ids[1]); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondMessage(w, http.StatusOK, fmt.Sprintf("resume %d deleted", ids[0]), nil)
}

func (s *Server) handleSearchResumes(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.deps.Documents.SearchResumes(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, res)
}

func (s *Server) handleUploadJD(w http.ResponseWriter, r *http.Request) {
	adminID, err := pathID(r, "admin_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Debug("upload jd request", zap.Int64("admin_id", adminID), zap.String("filename", up.Filename))
	jd, err := s.deps.Documents.UploadJD(r.Context(), adminID, up)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, jd)
}

func (s *Server) handleListJDs(w http.ResponseWriter, r *http.Request) {
	adminID, err := pathID(r, "admin_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	list, err := s.deps.Documents.ListJDs(r.Context(), adminID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, list)
}

func (s *Server) handleGetJD(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "id", "admin_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	jd, err := s.deps.Documents.GetJD(r.Context(), ids[0], ids[1])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, jd)
}

func (s *Server) handleReplaceJD(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "id", "admin_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	jd, err := s.deps.Documents.ReplaceJD(r.Context(), ids[0], ids[1], up)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, jd)
}

func (s *Server) handleDeleteJD(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "id", "admin_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.deps.Documents.DeleteJD(r.Context(), ids[0], ids[1]); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondMessage(w, http.StatusOK, fmt.Sprintf("job description %d deleted", ids[0]), nil)
}

func (s *Server) handleSearchJDs(w http.ResponseWriter, r *http.Request) {
	adminID, err := pathID(r, "admin_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.deps.Documents.SearchJDs(r.Context(), adminID, r.URL.Query().Get("q"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, res)
}
