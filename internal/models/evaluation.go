package models

import (
	"strings"
	"time"
)

// Verdict is the categorical outcome of an evaluation.
type Verdict string

const (
	VerdictHigh   Verdict = "high"
	VerdictMedium Verdict = "medium"
	VerdictLow    Verdict = "low"
	// VerdictPending marks an evaluation linked but not yet scored.
	VerdictPending Verdict = "pending"
)

// Tier maps a stored verdict onto high, medium or low. Matching is
// case-insensitive and anything unrecognized counts as low.
func (v Verdict) Tier() Verdict {
	switch Verdict(strings.ToLower(string(v))) {
	case VerdictHigh:
		return VerdictHigh
	case VerdictMedium:
		return VerdictMedium
	default:
		return VerdictLow
	}
}

// Evaluation is the stored result of comparing one resume with one job description.
// At most one exists per (ResumeID, JDID).
type Evaluation struct {
	ID            int64     `json:"id"`
	ResumeID      int64     `json:"resume_id"`
	JDID          int64     `json:"jd_id"`
	Score         int       `json:"score"`
	Verdict       Verdict   `json:"verdict"`
	MissingSkills []string  `json:"missing_skills"`
	CreatedAt     time.Time `json:"created_at"`
}

// EvaluationPatch holds the fields an update may change. Nil fields are left alone.
type EvaluationPatch struct {
	Score         *int      `json:"score,omitempty" validate:"omitempty,min=0,max=100"`
	Verdict       *Verdict  `json:"verdict,omitempty" validate:"omitempty,min=1"`
	MissingSkills *[]string `json:"missing_skills,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p EvaluationPatch) Empty() bool {
	return p.Score == nil && p.Verdict == nil && p.MissingSkills == nil
}

// Apply copies the supplied fields onto ev.
func (p EvaluationPatch) Apply(ev *Evaluation) {
	if p.Score != nil {
		ev.Score = *p.Score
	}
	if p.Verdict != nil {
		ev.Verdict = *p.Verdict
	}
	if p.MissingSkills != nil {
		ev.MissingSkills = append([]string{}, (*p.MissingSkills)...)
	}
}

// Method records how a match score was derived.
type Method string

const (
	MethodSemantic Method = "semantic"
	MethodOverlap  Method = "overlap"
	MethodEmpty    Method = "empty"
)

// MatchResult is the engine output for one resume/JD pair.
type MatchResult struct {
	Score         int      `json:"score"`
	Verdict       Verdict  `json:"verdict"`
	MissingSkills []string `json:"missing_skills"`
	Method        Method   `json:"method"`
}
