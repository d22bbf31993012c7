package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prepdesk/prepdesk-backend/internal/catalog"
	"github.com/prepdesk/prepdesk-backend/internal/grading"
)

const (
	defaultHeartbeatInterval = 15 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = 250 * time.Millisecond
)

// Controller owns one attempt from start to scored result: status, position,
// the in-memory answer map, flags and timing. It is the sole writer of its
// session; the store is a write-through cache behind it. All mutating methods
// are safe to call from the scheduler goroutines.
type Controller struct {
	store Store
	asmt  catalog.Assessment // full catalog snapshot, immutable for the attempt

	mu        sync.Mutex
	sess      Session
	answers   map[string]Answer
	flags     map[string]bool
	result    *Result
	shownAt   time.Time
	answerSeq int64 // last issued selection stamp, see Answer.Seq
	expired   bool  // timeout latch: the countdown callback fires at most once

	clock         func() time.Time
	onError       func(error)
	onTick        func(remainingSec int)
	heartbeatStep time.Duration
	retryAttempts int
	retryBackoff  time.Duration

	clockMu   sync.Mutex
	countdown *Scheduler
	heartbeat *Scheduler
}

type Option func(*Controller)

// WithClock injects the time source. Tests drive it; production uses time.Now.
func WithClock(fn func() time.Time) Option { return func(c *Controller) { c.clock = fn } }

// WithErrorHandler receives background persistence failures after retries are
// exhausted. Default logs.
func WithErrorHandler(fn func(error)) Option { return func(c *Controller) { c.onError = fn } }

// WithTickHandler receives the countdown value on every tick.
func WithTickHandler(fn func(remainingSec int)) Option {
	return func(c *Controller) { c.onTick = fn }
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.heartbeatStep = d
		}
	}
}

func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Controller) {
		if attempts > 0 {
			c.retryAttempts = attempts
		}
		if backoff > 0 {
			c.retryBackoff = backoff
		}
	}
}

// NewController wires a controller over already-loaded state. Use Load to
// fetch that state from the stores.
func NewController(store Store, asmt catalog.Assessment, sess Session, answers []Answer, opts ...Option) *Controller {
	c := &Controller{
		store:         store,
		asmt:          asmt,
		sess:          sess,
		answers:       make(map[string]Answer, len(answers)),
		flags:         map[string]bool{},
		clock:         time.Now,
		onError:       func(err error) { log.Printf("session %s: %v", sess.ID, err) },
		heartbeatStep: defaultHeartbeatInterval,
		retryAttempts: defaultRetryAttempts,
		retryBackoff:  defaultRetryBackoff,
	}
	for _, a := range answers {
		c.answers[a.QuestionID] = a
		// Resume the stamp above everything already persisted, or fresh
		// selections would lose to the store's recency guard.
		if a.Seq > c.answerSeq {
			c.answerSeq = a.Seq
		}
	}
	for _, o := range opts {
		o(c)
	}
	c.shownAt = c.clock()
	return c
}

// Load resumes a session: fetches it with its answers and full catalog,
// reconciles elapsed time against the persisted snapshot and refreshes that
// snapshot. An attempt nobody swept while it sat IN_PROGRESS gets its budget
// recomputed right here.
func Load(ctx context.Context, store Store, cat catalog.Store, sessionID string, opts ...Option) (*Controller, error) {
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
	c := NewController(store, asmt, sess, answers, opts...)
	if sess.Status == StatusInProgress {
		if err := c.Heartbeat(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Start moves NOT_STARTED to IN_PROGRESS: records started_at once, keeps any
// persisted resume index and zeroes the elapsed snapshot. Starting an
// IN_PROGRESS session is a no-op resume; a COMPLETED one is refused.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.sess.Status {
	case StatusCompleted:
		c.mu.Unlock()
		return ErrCompleted
	case StatusInProgress:
		c.mu.Unlock()
		return nil
	}
	now := c.clock()
	c.sess.Status = StatusInProgress
	c.sess.StartedAt = now.Unix()
	c.sess.ElapsedSec = 0
	c.shownAt = now
	snapshot := c.sess
	c.mu.Unlock()

	if err := c.store.UpdateSession(ctx, snapshot); err != nil {
		return &PersistenceError{Op: "start", Err: err}
	}
	return nil
}

// SelectAnswer records a selection for a question. Correctness comes from the
// normalizer, time spent from the moment the question was shown. The
// in-memory map is updated synchronously (last write wins); the store write
// happens in the background with retry and never blocks the next
// interaction.
func (c *Controller) SelectAnswer(ctx context.Context, questionID, optionKey string) (Answer, error) {
	c.mu.Lock()
	if c.sess.Status != StatusInProgress {
		c.mu.Unlock()
		if c.sess.Status == StatusCompleted {
			return Answer{}, ErrCompleted
		}
		return Answer{}, ErrNotStarted
	}
	a, err := c.buildAnswerLocked(questionID, optionKey)
	if err != nil {
		c.mu.Unlock()
		return Answer{}, err
	}
	c.answers[questionID] = a
	c.mu.Unlock()

	go c.persistAnswer(a)
	return a, nil
}

// buildAnswerLocked validates the selection against the catalog and stamps
// correctness and time spent. Caller holds c.mu.
func (c *Controller) buildAnswerLocked(questionID, optionKey string) (Answer, error) {
	q, ok := c.asmt.QuestionByID(questionID)
	if !ok {
		return Answer{}, validationf("question %s not in assessment %s", questionID, c.asmt.ID)
	}
	if !hasOption(q, optionKey) {
		return Answer{}, validationf("question %s has no option %q", questionID, optionKey)
	}
	now := c.clock()
	spent := int(now.Sub(c.shownAt) / time.Second)
	if spent < 0 {
		spent = 0
	}
	c.answerSeq++
	return Answer{
		SessionID:    c.sess.ID,
		QuestionID:   questionID,
		Selected:     optionKey,
		IsCorrect:    grading.IsCorrect(optionKey, q.CorrectKey),
		TimeSpentSec: spent,
		AnsweredAt:   now.Unix(),
		Seq:          c.answerSeq,
	}, nil
}

func hasOption(q catalog.Question, key string) bool {
	for _, o := range q.Options {
		if grading.Normalize(o.Key) == grading.Normalize(key) {
			return true
		}
	}
	return false
}

// Navigate moves the current position, bounds-checked, and resets the
// shown-at stamp used for the next time-spent measurement.
func (c *Controller) Navigate(ctx context.Context, index int) error {
	c.mu.Lock()
	if c.sess.Status != StatusInProgress {
		c.mu.Unlock()
		return ErrNotStarted
	}
	if index < 0 || index >= len(c.asmt.Questions) {
		c.mu.Unlock()
		return validationf("index %d out of range [0,%d)", index, len(c.asmt.Questions))
	}
	c.sess.CurrentIndex = index
	c.shownAt = c.clock()
	snapshot := c.sess
	c.mu.Unlock()

	go c.persistSession(snapshot, "navigate")
	return nil
}

// ToggleFlag bookmarks a question in memory only; no scoring effect.
func (c *Controller) ToggleFlag(questionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.asmt.QuestionByID(questionID); !ok {
		return validationf("question %s not in assessment %s", questionID, c.asmt.ID)
	}
	c.flags[questionID] = !c.flags[questionID]
	return nil
}

func (c *Controller) Flagged(questionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flags[questionID]
}

// Heartbeat reconciles elapsed time and persists the snapshot so a crash
// loses at most one interval of progress. It also enforces the time budget
// lazily: once the countdown hits zero the attempt is force-submitted.
func (c *Controller) Heartbeat(ctx context.Context) error {
	c.mu.Lock()
	if c.sess.Status != StatusInProgress {
		c.mu.Unlock()
		return nil
	}
	elapsed := Reconcile(time.Unix(c.sess.StartedAt, 0), c.clock(), c.sess.ElapsedSec)
	c.sess.ElapsedSec = elapsed
	snapshot := c.sess
	timedOut := Remaining(c.asmt.TimeBudgetSec(), elapsed) == 0
	c.mu.Unlock()

	if err := c.store.UpdateSession(ctx, snapshot); err != nil {
		c.onError(&PersistenceError{Op: "heartbeat", Err: err})
	}
	if timedOut {
		c.fireTimeout(ctx)
	}
	return nil
}

// fireTimeout is the once-only countdown latch. Re-entry from overlapping
// tickers or a heartbeat racing a manual submit collapses into a single
// forced submission.
func (c *Controller) fireTimeout(ctx context.Context) {
	c.mu.Lock()
	if c.expired || c.sess.Status != StatusInProgress {
		c.mu.Unlock()
		return
	}
	c.expired = true
	c.mu.Unlock()

	if _, err := c.Submit(ctx, nil); err != nil {
		c.onError(fmt.Errorf("timeout submit: %w", err))
	}
}

// Submit completes the attempt, from either the taker's action or the
// countdown. The scored view is the persisted answers merged with the
// in-memory map plus, when the caller supplies one, the buffered selection
// that never reached the store: that merge is what keeps the last answer a
// taker gave from being dropped. Submitting an already-completed session is a
// no-op returning the previously computed result.
func (c *Controller) Submit(ctx context.Context, pending *PendingAnswer) (Result, error) {
	c.mu.Lock()
	if c.sess.Status == StatusCompleted {
		res := c.result
		c.mu.Unlock()
		if res != nil {
			return *res, nil
		}
		return c.store.GetResult(ctx, c.sess.ID)
	}
	if c.sess.Status == StatusNotStarted {
		c.mu.Unlock()
		return Result{}, ErrNotStarted
	}

	if pending != nil && pending.QuestionID != "" {
		if _, exists := c.answers[pending.QuestionID]; !exists {
			if a, err := c.buildAnswerLocked(pending.QuestionID, pending.OptionKey); err == nil {
				c.answers[pending.QuestionID] = a
				defer func() { go c.persistAnswer(a) }()
			}
		}
	}

	selections := make(map[string]string, len(c.answers))
	for qid, a := range c.answers {
		selections[qid] = a.Selected
	}
	tally := grading.Score(c.asmt, selections)

	now := c.clock()
	c.sess.ElapsedSec = Reconcile(time.Unix(c.sess.StartedAt, 0), now, c.sess.ElapsedSec)
	c.sess.Status = StatusCompleted
	c.sess.CompletedAt = now.Unix()
	res := Result{
		SessionID:       c.sess.ID,
		AssessmentID:    c.sess.AssessmentID,
		UserID:          c.sess.UserID,
		TotalScore:      tally.TotalScore,
		MaxScore:        tally.MaxScore,
		Percentage:      tally.Percentage,
		CorrectCount:    tally.CorrectCount,
		WrongCount:      tally.WrongCount,
		UnansweredCount: tally.UnansweredCount,
		Passed:          tally.Passed,
		CompletedAt:     c.sess.CompletedAt,
	}
	c.result = &res
	snapshot := c.sess
	c.mu.Unlock()

	c.StopClock()

	if err := c.store.UpdateSession(ctx, snapshot); err != nil {
		c.onError(&PersistenceError{Op: "submit/session", Err: err})
	}
	switch err := c.store.CreateResult(ctx, res); {
	case err == nil:
	case errors.Is(err, ErrResultExists):
		// A concurrent duplicate won the write; both computed the same fields.
	default:
		go c.retryResult(res)
	}
	return res, nil
}

func (c *Controller) retryResult(res Result) {
	err := retry(c.retryAttempts, c.retryBackoff, func() error {
		e := c.store.CreateResult(context.Background(), res)
		if errors.Is(e, ErrResultExists) {
			return nil
		}
		return e
	})
	if err != nil {
		c.onError(&PersistenceError{Op: "result", Err: err})
	}
}

// --- progress & timing views ---

func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

func (c *Controller) Answers() []Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Answer, 0, len(c.answers))
	for _, q := range c.asmt.Questions {
		if a, ok := c.answers[q.ID]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Elapsed returns reconciled elapsed seconds without persisting.
func (c *Controller) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess.Status == StatusNotStarted {
		return 0
	}
	if c.sess.Status == StatusCompleted {
		return c.sess.ElapsedSec
	}
	return Reconcile(time.Unix(c.sess.StartedAt, 0), c.clock(), c.sess.ElapsedSec)
}

func (c *Controller) RemainingSec() int {
	return Remaining(c.asmt.TimeBudgetSec(), c.Elapsed())
}

// Progress reports answered/total counts for the whole assessment and for the
// section owning the given index.
type Progress struct {
	Section         catalog.Section `json:"section"`
	SectionAnswered int             `json:"section_answered"`
	SectionTotal    int             `json:"section_total"`
	Answered        int             `json:"answered"`
	Total           int             `json:"total"`
}

func (c *Controller) ProgressAt(index int) (Progress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sec, ok := c.asmt.SectionFor(index)
	if !ok {
		return Progress{}, validationf("index %d out of range [0,%d)", index, len(c.asmt.Questions))
	}
	p := Progress{Section: sec, Total: len(c.asmt.Questions)}
	secQ := c.asmt.SectionQuestionIDs(sec.ID)
	p.SectionTotal = len(secQ)
	for _, qid := range secQ {
		if _, ok := c.answers[qid]; ok {
			p.SectionAnswered++
		}
	}
	p.Answered = len(c.answers)
	return p, nil
}

// Warnings surfaces non-fatal data-quality problems in the loaded catalog.
func (c *Controller) Warnings() []string {
	var out []string
	for _, name := range c.asmt.ZeroDurationSections() {
		out = append(out, "section without duration contributes zero to the time budget: "+name)
	}
	if c.asmt.MaxScore() == 0 {
		out = append(out, "assessment has zero total points; percentage fixed at 0")
	}
	return out
}

// --- clock loops ---

// StartClock runs the one-second countdown check and the slower heartbeat.
// Deployments that enforce the budget lazily (pure HTTP) skip this and rely
// on Heartbeat calls arriving from the client.
func (c *Controller) StartClock(ctx context.Context) {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	if c.countdown == nil {
		c.countdown = NewScheduler(time.Second, func() {
			rem := c.RemainingSec()
			if c.onTick != nil {
				c.onTick(rem)
			}
			if rem == 0 {
				c.fireTimeout(ctx)
			}
		})
		c.heartbeat = NewScheduler(c.heartbeatStep, func() {
			_ = c.Heartbeat(ctx)
		})
	}
	c.countdown.Start()
	c.heartbeat.Start()
}

func (c *Controller) StopClock() {
	c.clockMu.Lock()
	defer c.clockMu.Unlock()
	if c.countdown != nil {
		c.countdown.Stop()
		c.heartbeat.Stop()
	}
}

// --- background persistence ---

func (c *Controller) persistAnswer(a Answer) {
	err := retry(c.retryAttempts, c.retryBackoff, func() error {
		return c.store.UpsertAnswer(context.Background(), a)
	})
	if err != nil {
		c.onError(&PersistenceError{Op: "answer " + a.QuestionID, Err: err})
	}
}

func (c *Controller) persistSession(s Session, op string) {
	err := retry(c.retryAttempts, c.retryBackoff, func() error {
		return c.store.UpdateSession(context.Background(), s)
	})
	if err != nil {
		c.onError(&PersistenceError{Op: op, Err: err})
	}
}

func retry(attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(backoff << uint(i))
	}
	return err
}
