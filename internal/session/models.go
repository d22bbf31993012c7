package session

// Status of an attempt. Transitions are monotonic:
// not_started -> in_progress -> completed, never back.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Session is one taker's run through an assessment. Timestamps are unix
// seconds; zero means unset.
type Session struct {
	ID            string `json:"id"`
	AssessmentID  string `json:"assessment_id"`
	UserID        string `json:"user_id"`
	EntitlementID string `json:"entitlement_id,omitempty"`
	Mode          Mode   `json:"mode"`
	Status        Status `json:"status"`
	StartedAt     int64  `json:"started_at,omitempty"`
	// ElapsedSec is the last heartbeat snapshot, a lower bound on real
	// elapsed time. Never written backward.
	ElapsedSec   int   `json:"elapsed_sec"`
	CurrentIndex int   `json:"current_index"`
	CompletedAt  int64 `json:"completed_at,omitempty"`
	CreatedAt    int64 `json:"created_at,omitempty"`
}

// Mode selects end-of-attempt scoring (exam) or per-question immediate
// feedback with auto-advance (practice).
type Mode string

const (
	ModeExam     Mode = "exam"
	ModePractice Mode = "practice"
)

// Answer is the live record for one (session, question) pair. A new selection
// replaces the previous one; there is no history. Seq is a per-session
// monotonic stamp issued at selection time: stores apply a write only when its
// Seq is at least the stored one, so selections persisted out of order (slow
// or retried background writes) cannot clobber a later correction. AnsweredAt
// is unix seconds and too coarse to order two quick selections.
type Answer struct {
	SessionID    string `json:"session_id"`
	QuestionID   string `json:"question_id"`
	Selected     string `json:"selected"`
	IsCorrect    bool   `json:"is_correct"`
	TimeSpentSec int    `json:"time_spent_sec"`
	AnsweredAt   int64  `json:"answered_at"`
	Seq          int64  `json:"seq"`
}

// Result is created exactly once per completed session and is immutable.
// RankPosition and Percentile are filled at read time from the assessment's
// completed population; they are not stored.
type Result struct {
	SessionID       string  `json:"session_id"`
	AssessmentID    string  `json:"assessment_id"`
	UserID          string  `json:"user_id"`
	TotalScore      float64 `json:"total_score"`
	MaxScore        float64 `json:"max_score"`
	Percentage      float64 `json:"percentage"`
	CorrectCount    int     `json:"correct_count"`
	WrongCount      int     `json:"wrong_count"`
	UnansweredCount int     `json:"unanswered_count"`
	Passed          bool    `json:"passed"`
	CompletedAt     int64   `json:"completed_at"`
	RankPosition    int     `json:"rank_position,omitempty"`
	Percentile      float64 `json:"percentile,omitempty"`
}

// PendingAnswer is a selection the taker made that may not have reached the
// store yet when submission triggers. Submit folds it into the scored view so
// the last answer a taker gave is never silently dropped.
type PendingAnswer struct {
	QuestionID string `json:"question_id"`
	OptionKey  string `json:"option_key"`
}
