package grading

import (
	"github.com/prepdesk/prepdesk-backend/internal/catalog"
)

// Tally is the deterministic outcome of scoring one answer set against one
// assessment. Recomputing it from the same inputs yields identical fields.
type Tally struct {
	TotalScore      float64 `json:"total_score"`
	MaxScore        float64 `json:"max_score"`
	Percentage      float64 `json:"percentage"`
	CorrectCount    int     `json:"correct_count"`
	WrongCount      int     `json:"wrong_count"`
	UnansweredCount int     `json:"unanswered_count"`
	Passed          bool    `json:"passed"`
}

// Score walks every question in the assessment and looks up a merged answer
// (persisted answers plus any buffered selection the caller already folded
// in). A question with no answer counts as unanswered, never wrong; the three
// counts always partition the question set exactly.
//
// percentage is total/max*100, with 0 when max is 0: an assessment whose
// questions carry no points is an authoring data-quality problem, not a
// reason to fail the attempt.
func Score(a catalog.Assessment, selections map[string]string) Tally {
	var t Tally
	for _, q := range a.Questions {
		t.MaxScore += q.Points
		sel, ok := selections[q.ID]
		if !ok || Normalize(sel) == "" {
			t.UnansweredCount++
			continue
		}
		if IsCorrect(sel, q.CorrectKey) {
			t.CorrectCount++
			t.TotalScore += q.Points
		} else {
			t.WrongCount++
		}
	}
	if t.MaxScore > 0 {
		t.Percentage = t.TotalScore / t.MaxScore * 100
	}
	t.Passed = t.Percentage >= a.PassingGrade
	return t
}
