package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/resumatch/internal/models"
	"github.com/hyperjump/resumatch/pkg/apperror"
)

func (s *Server) handleCreateEvaluation(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "resume_id", "jd_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Debug("create evaluation request", zap.Int64("resume_id", ids[0]), zap.Int64("jd_id", ids[1]))
	ev, err := s.deps.Evaluations.Create(r.Context(), ids[0], ids[1])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, ev)
}

func (s *Server) handleLinkEvaluation(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "resume_id", "jd_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ev, err := s.deps.Evaluations.Link(r.Context(), ids[0], ids[1])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, ev)
}

func (s *Server) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	evs, err := s.deps.Evaluations.ListAll(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, evs)
}

func (s *Server) handleEvaluationsByUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	evs, err := s.deps.Evaluations.ListByUser(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, evs)
}

func (s *Server) handleEvaluationsByAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "admin_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	evs, err := s.deps.Evaluations.ListByAdmin(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, evs)
}

func (s *Server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ev, err := s.deps.Evaluations.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, ev)
}

func (s *Server) handleUpdateEvaluation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	patch, err := decodePatch(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if patch.Verdict != nil {
		v := models.Verdict(strings.TrimSpace(string(*patch.Verdict)))
		patch.Verdict = &v
	}
	ev, err := s.deps.Evaluations.Update(r.Context(), id, patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvaluation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.deps.Evaluations.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondMessage(w, http.StatusOK, fmt.Sprintf("evaluation %d deleted", id), nil)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	fb, err := s.deps.Evaluations.Feedback(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusOK, fb)
}

func (s *Server) handleCompareResumesToJD(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "user_id", "jd_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	evs, err := s.deps.Evaluations.CompareResumesToJD(r.Context(), ids[0], ids[1])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, evs)
}

func (s *Server) handleCompareJDsToResume(w http.ResponseWriter, r *http.Request) {
	ids, err := pathIDs(r, "resume_id", "admin_id")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	evs, err := s.deps.Evaluations.CompareJDsToResume(r.Context(), ids[0], ids[1])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondData(w, http.StatusCreated, evs)
}

// decodePatch rejects a missing, malformed or empty JSON object body.
func decodePatch(r *http.Request) (models.EvaluationPatch, error) {
	var patch models.EvaluationPatch
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return patch, apperror.Validation("invalid or missing json body")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		return patch, apperror.Validation("invalid or missing json body")
	}
	if err := json.Unmarshal(body, &patch); err != nil {
		return patch, apperror.Validation("invalid or missing json body")
	}
	return patch, nil
}

type matchRequest struct {
	ResumeText string `json:"resume_text"`
	JDText     string `json:"jd_text"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, apperror.Validation("invalid or missing json body"))
		return
	}
	s.respondData(w, http.StatusOK, s.deps.Evaluations.Match(r.Context(), req.ResumeText, req.JDText))
}
