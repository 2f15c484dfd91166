package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hyperjump/resumatch/internal/analytics"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type reportFunc func(ctx context.Context, f analytics.Filter) (*analytics.Report, error)

// handleReport serves one analytics reducer. An empty selection is still a
// success, reported with the "no evaluations found" message.
func (s *Server) handleReport(report reportFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := analytics.ParseFilter(r.URL.Query())
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		rep, err := report(r.Context(), f)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		s.respondMessage(w, http.StatusOK, rep.Message, rep.Data)
	}
}

func (s *Server) handleAnalyticsEvaluations(w http.ResponseWriter, r *http.Request) {
	f, err := analytics.ParseFilter(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	evs, err := s.deps.Analytics.Evaluations(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if len(evs) == 0 {
		s.respondMessage(w, http.StatusOK, analytics.NoEvaluations, evs)
		return
	}
	s.respondData(w, http.StatusOK, evs)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := analytics.ParseFilter(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	data, filename, err := s.deps.Analytics.Export(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleResumesByDate lists resumes uploaded within start_date..end_date,
// optionally for one user_id.
func (s *Server) handleResumesByDate(w http.ResponseWriter, r *http.Request) {
	f, err := analytics.ParseFilter(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	rs, err := s.deps.Documents.ListResumesByDate(r.Context(), f.UserID, f.Start, f.End)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondMessage(w, http.StatusOK, "resumes fetched", rs)
}

// handleJDsByDate lists job descriptions uploaded within start_date..end_date,
// optionally for one admin_id.
func (s *Server) handleJDsByDate(w http.ResponseWriter, r *http.Request) {
	f, err := analytics.ParseFilter(r.URL.Query())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	jds, err := s.deps.Documents.ListJDsByDate(r.Context(), f.AdminID, f.Start, f.End)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondMessage(w, http.StatusOK, "job descriptions fetched", jds)
}
