package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/prepdesk/prepdesk-backend/internal/catalog"
	"github.com/prepdesk/prepdesk-backend/internal/grading"
)

const defaultAdvanceDelay = 2 * time.Second

// PracticeStats accumulate as each question is answered, instead of being
// derived in one scoring pass at the end.
type PracticeStats struct {
	Answered     int     `json:"answered"`
	Correct      int     `json:"correct"`
	Score        float64 `json:"score"`
	TotalTimeSec int     `json:"total_time_sec"`
}

// Feedback is returned immediately after each practice answer.
type Feedback struct {
	QuestionID string        `json:"question_id"`
	Selected   string        `json:"selected"`
	Correct    bool          `json:"correct"`
	CorrectKey string        `json:"correct_key"`
	Stats      PracticeStats `json:"stats"`
	NextIndex  int           `json:"next_index"`
}

// Practice is the immediate-feedback variant of an attempt. It shares the
// normalizer and the elapsed-time reconciler with the exam controller and
// differs only in when scoring happens and in auto-advancing after a short
// delay.
type Practice struct {
	store Store
	asmt  catalog.Assessment

	mu        sync.Mutex
	sess      Session
	answers   map[string]Answer
	stats     PracticeStats
	shownAt   time.Time
	answerSeq int64
	advance   *time.Timer

	clock        func() time.Time
	onError      func(error)
	advanceDelay time.Duration
}

type PracticeOption func(*Practice)

func PracticeClock(fn func() time.Time) PracticeOption {
	return func(p *Practice) { p.clock = fn }
}

func PracticeAdvanceDelay(d time.Duration) PracticeOption {
	return func(p *Practice) {
		if d >= 0 {
			p.advanceDelay = d
		}
	}
}

func PracticeErrorHandler(fn func(error)) PracticeOption {
	return func(p *Practice) { p.onError = fn }
}

func NewPractice(store Store, asmt catalog.Assessment, sess Session, opts ...PracticeOption) *Practice {
	p := &Practice{
		store:        store,
		asmt:         asmt,
		sess:         sess,
		answers:      map[string]Answer{},
		clock:        time.Now,
		onError:      func(err error) { log.Printf("practice %s: %v", sess.ID, err) },
		advanceDelay: defaultAdvanceDelay,
	}
	for _, o := range opts {
		o(p)
	}
	p.shownAt = p.clock()
	return p
}

// LoadPractice rebuilds a practice run from persisted state, replaying the
// stored answers into the incremental stats.
func LoadPractice(ctx context.Context, store Store, cat catalog.Store, sessionID string, opts ...PracticeOption) (*Practice, error) {
	sess, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	asmt, err := cat.GetAssessmentFull(ctx, sess.AssessmentID)
	if err != nil {
		return nil, err
	}
	answers, err := store.GetAnswers(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	p := NewPractice(store, asmt, sess, opts...)
	for _, a := range answers {
		q, ok := asmt.QuestionByID(a.QuestionID)
		if !ok {
			continue
		}
		p.answers[a.QuestionID] = a
		p.stats.Answered++
		p.stats.TotalTimeSec += a.TimeSpentSec
		if a.IsCorrect {
			p.stats.Correct++
			p.stats.Score += q.Points
		}
		if a.Seq > p.answerSeq {
			p.answerSeq = a.Seq
		}
	}
	return p, nil
}

func (p *Practice) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.sess.Status != StatusNotStarted {
		defer p.mu.Unlock()
		if p.sess.Status == StatusCompleted {
			return ErrCompleted
		}
		return nil
	}
	now := p.clock()
	p.sess.Status = StatusInProgress
	p.sess.StartedAt = now.Unix()
	p.sess.ElapsedSec = 0
	p.shownAt = now
	snapshot := p.sess
	p.mu.Unlock()

	if err := p.store.UpdateSession(ctx, snapshot); err != nil {
		return &PersistenceError{Op: "practice start", Err: err}
	}
	return nil
}

// Answer scores one question immediately, folds it into the running stats and
// schedules the auto-advance. Re-answering the same question replaces the
// stored record but is counted only once in the stats.
func (p *Practice) Answer(ctx context.Context, questionID, optionKey string) (Feedback, error) {
	p.mu.Lock()
	if p.sess.Status != StatusInProgress {
		p.mu.Unlock()
		if p.sess.Status == StatusCompleted {
			return Feedback{}, ErrCompleted
		}
		return Feedback{}, ErrNotStarted
	}
	q, ok := p.asmt.QuestionByID(questionID)
	if !ok {
		p.mu.Unlock()
		return Feedback{}, validationf("question %s not in assessment %s", questionID, p.asmt.ID)
	}
	if !hasOption(q, optionKey) {
		p.mu.Unlock()
		return Feedback{}, validationf("question %s has no option %q", questionID, optionKey)
	}

	now := p.clock()
	spent := int(now.Sub(p.shownAt) / time.Second)
	if spent < 0 {
		spent = 0
	}
	correct := grading.IsCorrect(optionKey, q.CorrectKey)
	p.answerSeq++
	a := Answer{
		SessionID:    p.sess.ID,
		QuestionID:   questionID,
		Selected:     optionKey,
		IsCorrect:    correct,
		TimeSpentSec: spent,
		AnsweredAt:   now.Unix(),
		Seq:          p.answerSeq,
	}

	if prev, replayed := p.answers[questionID]; replayed {
		// Replacement, not accumulation: back out the prior contribution.
		if prev.IsCorrect {
			p.stats.Correct--
			p.stats.Score -= q.Points
		}
	} else {
		p.stats.Answered++
	}
	p.answers[questionID] = a
	p.stats.TotalTimeSec += spent
	if correct {
		p.stats.Correct++
		p.stats.Score += q.Points
	}

	next := p.sess.CurrentIndex
	if next < len(p.asmt.Questions)-1 {
		next++
	}
	p.scheduleAdvanceLocked(next)
	fb := Feedback{
		QuestionID: questionID,
		Selected:   optionKey,
		Correct:    correct,
		CorrectKey: q.CorrectKey,
		Stats:      p.stats,
		NextIndex:  next,
	}
	p.mu.Unlock()

	go func() {
		if err := p.store.UpsertAnswer(context.Background(), a); err != nil {
			p.onError(&PersistenceError{Op: "practice answer " + questionID, Err: err})
		}
	}()
	return fb, nil
}

// scheduleAdvanceLocked arms the auto-advance timer, replacing any armed one.
// Caller holds p.mu. The timer fires well after the answering request has
// been served, so the persistence write runs on a fresh context rather than
// the request's, which is canceled by then.
func (p *Practice) scheduleAdvanceLocked(next int) {
	if p.advance != nil {
		p.advance.Stop()
	}
	p.advance = time.AfterFunc(p.advanceDelay, func() {
		p.mu.Lock()
		if p.sess.Status != StatusInProgress {
			p.mu.Unlock()
			return
		}
		p.sess.CurrentIndex = next
		p.shownAt = p.clock()
		snapshot := p.sess
		p.mu.Unlock()
		if err := p.store.UpdateSession(context.Background(), snapshot); err != nil {
			p.onError(&PersistenceError{Op: "practice advance", Err: err})
		}
	})
}

func (p *Practice) Stats() PracticeStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Practice) Elapsed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess.Status != StatusInProgress {
		return p.sess.ElapsedSec
	}
	return Reconcile(time.Unix(p.sess.StartedAt, 0), p.clock(), p.sess.ElapsedSec)
}

// Finish closes the run and records a result built from the incremental
// stats. Finishing twice returns the stored result unchanged.
func (p *Practice) Finish(ctx context.Context) (Result, error) {
	p.mu.Lock()
	if p.sess.Status == StatusCompleted {
		p.mu.Unlock()
		return p.store.GetResult(ctx, p.sess.ID)
	}
	if p.sess.Status == StatusNotStarted {
		p.mu.Unlock()
		return Result{}, ErrNotStarted
	}
	if p.advance != nil {
		p.advance.Stop()
	}
	now := p.clock()
	p.sess.ElapsedSec = Reconcile(time.Unix(p.sess.StartedAt, 0), now, p.sess.ElapsedSec)
	p.sess.Status = StatusCompleted
	p.sess.CompletedAt = now.Unix()

	max := p.asmt.MaxScore()
	pct := 0.0
	if max > 0 {
		pct = p.stats.Score / max * 100
	}
	res := Result{
		SessionID:       p.sess.ID,
		AssessmentID:    p.sess.AssessmentID,
		UserID:          p.sess.UserID,
		TotalScore:      p.stats.Score,
		MaxScore:        max,
		Percentage:      pct,
		CorrectCount:    p.stats.Correct,
		WrongCount:      p.stats.Answered - p.stats.Correct,
		UnansweredCount: len(p.asmt.Questions) - p.stats.Answered,
		Passed:          pct >= p.asmt.PassingGrade,
		CompletedAt:     p.sess.CompletedAt,
	}
	snapshot := p.sess
	p.mu.Unlock()

	if err := p.store.UpdateSession(ctx, snapshot); err != nil {
		p.onError(&PersistenceError{Op: "practice finish", Err: err})
	}
	if err := p.store.CreateResult(ctx, res); err != nil && !errors.Is(err, ErrResultExists) {
		p.onError(&PersistenceError{Op: "practice result", Err: err})
	}
	return res, nil
}
