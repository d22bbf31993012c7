package grading

import (
	"math"
	"testing"

	"github.com/prepdesk/prepdesk-backend/internal/catalog"
)

func threeQuestionAssessment() catalog.Assessment {
	return catalog.Assessment{
		ID:           "asmt-1",
		Title:        "Sample",
		PassingGrade: 60,
		Questions: []catalog.Question{
			{ID: "q1", Seq: 0, CorrectKey: "A", Points: 5},
			{ID: "q2", Seq: 1, CorrectKey: "B", Points: 5},
			{ID: "q3", Seq: 2, CorrectKey: "C", Points: 5},
		},
	}
}

func TestScore_OneCorrectOfThree(t *testing.T) {
	a := threeQuestionAssessment()
	got := Score(a, map[string]string{"q1": "a."})

	if got.TotalScore != 5 {
		t.Errorf("total_score = %v, want 5", got.TotalScore)
	}
	if got.MaxScore != 15 {
		t.Errorf("max_score = %v, want 15", got.MaxScore)
	}
	if math.Abs(got.Percentage-100.0/3) > 1e-9 {
		t.Errorf("percentage = %v, want %v", got.Percentage, 100.0/3)
	}
	if got.Passed {
		t.Error("passed = true, want false (33.3 < 60)")
	}
	if got.CorrectCount != 1 || got.WrongCount != 0 || got.UnansweredCount != 2 {
		t.Errorf("counts = %d/%d/%d, want 1/0/2", got.CorrectCount, got.WrongCount, got.UnansweredCount)
	}
}

func TestScore_PartitionInvariant(t *testing.T) {
	a := threeQuestionAssessment()
	cases := []map[string]string{
		{},
		{"q1": "A"},
		{"q1": "A", "q2": "x"},
		{"q1": "A", "q2": "B", "q3": "C"},
		{"q1": "", "q2": "B"},
		{"q1": "A", "q2": "B", "q3": "C", "ghost": "D"}, // foreign key ignored
	}
	for i, sel := range cases {
		got := Score(a, sel)
		if sum := got.CorrectCount + got.WrongCount + got.UnansweredCount; sum != len(a.Questions) {
			t.Errorf("case %d: partition sum = %d, want %d", i, sum, len(a.Questions))
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	a := threeQuestionAssessment()
	sel := map[string]string{"q1": "A", "q2": "c", "q3": " b "}
	first := Score(a, sel)
	for i := 0; i < 5; i++ {
		if again := Score(a, sel); again != first {
			t.Fatalf("re-score diverged: %+v vs %+v", again, first)
		}
	}
}

func TestScore_ZeroMaxScore(t *testing.T) {
	a := catalog.Assessment{
		ID:           "empty-points",
		PassingGrade: 60,
		Questions:    []catalog.Question{{ID: "q1", CorrectKey: "A", Points: 0}},
	}
	got := Score(a, map[string]string{"q1": "A"})
	if got.Percentage != 0 {
		t.Errorf("percentage = %v, want 0 by the zero-division convention", got.Percentage)
	}
	if got.CorrectCount != 1 {
		t.Errorf("correct_count = %d, want 1", got.CorrectCount)
	}
}

func TestScore_EmptySelectionIsUnanswered(t *testing.T) {
	a := threeQuestionAssessment()
	got := Score(a, map[string]string{"q1": "  . "})
	if got.UnansweredCount != 3 {
		t.Errorf("unanswered = %d, want 3 (blank selection never counts as wrong)", got.UnansweredCount)
	}
}
