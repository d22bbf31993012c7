package catalog

// Option is one selectable choice of a multiple-choice question.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

type Question struct {
	ID        string   `json:"id"`
	Seq       int      `json:"seq"` // position within the assessment, 0-based
	SectionID string   `json:"section_id,omitempty"`
	Prompt    string   `json:"prompt"`
	ImageKey  string   `json:"image_key,omitempty"` // blob-store key for an illustration
	Options   []Option `json:"options"`
	// CorrectKey is stripped before an assessment is served to students.
	CorrectKey   string  `json:"correct_key,omitempty"`
	Points       float64 `json:"points"`
	TimeLimitSec int     `json:"time_limit_sec,omitempty"`
}

type Section struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Position    int    `json:"position"`
	DurationMin int    `json:"duration_min"`
}

// Assessment is a purchasable package of questions, optionally grouped into
// ordered sections. Immutable for the lifetime of a session: callers hold the
// loaded value and never re-read it mid-attempt.
type Assessment struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	DurationMin  int        `json:"duration_min"` // used only when no sections exist
	PassingGrade float64    `json:"passing_grade"`
	Sections     []Section  `json:"sections,omitempty"`
	Questions    []Question `json:"questions"`
	CreatedAt    int64      `json:"created_at,omitempty"`
}

// TimeBudgetSec is the authoritative attempt duration in seconds. With
// sections it is the sum of section durations; a section with no configured
// duration contributes zero (see ZeroDurationSections). Without sections the
// assessment-level duration applies.
func (a Assessment) TimeBudgetSec() int {
	if len(a.Sections) == 0 {
		return a.DurationMin * 60
	}
	total := 0
	for _, s := range a.Sections {
		total += s.DurationMin * 60
	}
	return total
}

// ZeroDurationSections reports sections configured without a duration. These
// are admin data-quality problems: they silently shrink the time budget, so
// callers surface them as warnings instead of defaulting.
func (a Assessment) ZeroDurationSections() []string {
	var out []string
	for _, s := range a.Sections {
		if s.DurationMin <= 0 {
			out = append(out, s.Name)
		}
	}
	return out
}

// MaxScore sums the point values of every question, answered or not.
func (a Assessment) MaxScore() float64 {
	total := 0.0
	for _, q := range a.Questions {
		total += q.Points
	}
	return total
}

func (a Assessment) QuestionAt(index int) (Question, bool) {
	if index < 0 || index >= len(a.Questions) {
		return Question{}, false
	}
	return a.Questions[index], true
}

func (a Assessment) QuestionByID(id string) (Question, bool) {
	for _, q := range a.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// SectionFor resolves the owning section for the question at index. When the
// assessment has no sections, everything belongs to one implicit section built
// from the assessment itself.
func (a Assessment) SectionFor(index int) (Section, bool) {
	q, ok := a.QuestionAt(index)
	if !ok {
		return Section{}, false
	}
	if len(a.Sections) == 0 {
		return Section{ID: a.ID, Name: a.Title, DurationMin: a.DurationMin}, true
	}
	for _, s := range a.Sections {
		if s.ID == q.SectionID {
			return s, true
		}
	}
	return Section{}, false
}

// SectionQuestionIDs lists question ids belonging to a section, in sequence
// order. An empty sectionID matches the implicit whole-assessment section.
func (a Assessment) SectionQuestionIDs(sectionID string) []string {
	out := make([]string, 0, len(a.Questions))
	for _, q := range a.Questions {
		if len(a.Sections) == 0 || q.SectionID == sectionID {
			out = append(out, q.ID)
		}
	}
	return out
}

// StripAnswerKeys blanks correct keys for student-facing responses.
func (a Assessment) StripAnswerKeys() Assessment {
	qs := make([]Question, len(a.Questions))
	copy(qs, a.Questions)
	for i := range qs {
		qs[i].CorrectKey = ""
	}
	a.Questions = qs
	return a
}

type Summary struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	QuestionCount int     `json:"question_count"`
	SectionCount  int     `json:"section_count"`
	DurationMin   int     `json:"duration_min"`
	PassingGrade  float64 `json:"passing_grade"`
	CreatedAt     int64   `json:"created_at"`
}
