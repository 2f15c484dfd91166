package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/resumatch/internal/models"
)

// Feedback is candidate-facing advice derived from a stored evaluation.
type Feedback struct {
	EvaluationID int64  `json:"evaluation_id"`
	Summary      string `json:"summary"`
	SkillsAdvice string `json:"skills_advice"`
	ProTip       string `json:"pro_tip"`
}

const maxAdvisedSkills = 5

var proTips = []string{
	"Mirror the exact wording of the job description where it honestly describes your experience.",
	"Quantify results: numbers make impact easy to compare.",
	"Put the most relevant skills in the first third of your resume.",
	"Keep formatting simple so text extraction keeps every section.",
	"List tools next to the projects where you used them.",
	"Tailor the summary line for each role you apply to.",
}

// Feedback builds advice for evaluation id. The same evaluation always yields
// the same feedback.
func (s *Service) Feedback(ctx context.Context, id int64) (*Feedback, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildFeedback(ev), nil
}

// BuildFeedback renders feedback for ev.
func BuildFeedback(ev *models.Evaluation) *Feedback {
	return &Feedback{
		EvaluationID: ev.ID,
		Summary:      fmt.Sprintf("Your score is %d/100. ", ev.Score) + verdictAdvice(ev.Verdict),
		SkillsAdvice: skillsAdvice(ev.MissingSkills),
		ProTip:       proTip(ev.ID),
	}
}

func verdictAdvice(v models.Verdict) string {
	switch v.Tier() {
	case models.VerdictHigh:
		return "Strong match. Your resume covers most of what this role asks for."
	case models.VerdictMedium:
		return "Partial match. Closing a few gaps would make you a strong candidate."
	default:
		return "Weak match. Your resume does not yet reflect the core requirements of this role."
	}
}

func skillsAdvice(missing []string) string {
	if len(missing) == 0 {
		return "Great job! Your resume covers every skill in the job description."
	}
	if len(missing) > maxAdvisedSkills {
		missing = missing[:maxAdvisedSkills]
	}
	return "Consider adding or highlighting: " + strings.Join(missing, ", ") + "."
}

func proTip(id int64) string {
	n := int64(len(proTips))
	return proTips[((id%n)+n)%n]
}
