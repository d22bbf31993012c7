package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestPractice(t *testing.T) (*Practice, *fakeClock, Store) {
	t.Helper()
	store := NewInMemoryStore()
	clk := newFakeClock()
	sess := Session{ID: "prac-1", AssessmentID: "asmt-1", UserID: "u1", Mode: ModePractice, Status: StatusNotStarted}
	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	p := NewPractice(store, testAssessment(), sess,
		PracticeClock(clk.Now),
		PracticeAdvanceDelay(5*time.Millisecond),
		PracticeErrorHandler(func(error) {}),
	)
	return p, clk, store
}

func TestPractice_ImmediateFeedback(t *testing.T) {
	ctx := context.Background()
	p, clk, _ := newTestPractice(t)
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}

	clk.Advance(8 * time.Second)
	fb, err := p.Answer(ctx, "q1", "a.")
	if err != nil {
		t.Fatal(err)
	}
	if !fb.Correct || fb.CorrectKey != "A" {
		t.Errorf("feedback = %+v, want correct against key A", fb)
	}
	if fb.Stats.Answered != 1 || fb.Stats.Correct != 1 || fb.Stats.TotalTimeSec != 8 {
		t.Errorf("stats = %+v", fb.Stats)
	}

	fb, err = p.Answer(ctx, "q2", "D")
	if err != nil {
		t.Fatal(err)
	}
	if fb.Correct {
		t.Error("q2=D reported correct")
	}
	if fb.Stats.Answered != 2 || fb.Stats.Correct != 1 {
		t.Errorf("stats after wrong answer = %+v", fb.Stats)
	}
}

func TestPractice_AutoAdvance(t *testing.T) {
	ctx := context.Background()
	p, _, store := newTestPractice(t)
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	fb, err := p.Answer(ctx, "q1", "A")
	if err != nil {
		t.Fatal(err)
	}
	if fb.NextIndex != 1 {
		t.Fatalf("next index = %d, want 1", fb.NextIndex)
	}

	deadline := time.Now().Add(time.Second)
	for {
		s, err := store.GetSession(ctx, "prac-1")
		if err != nil {
			t.Fatal(err)
		}
		if s.CurrentIndex == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("auto-advance never persisted, index = %d", s.CurrentIndex)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// ctxCheckStore refuses writes carrying an already-canceled context, the way
// a real SQL driver would.
type ctxCheckStore struct {
	Store
}

func (s *ctxCheckStore) UpdateSession(ctx context.Context, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.UpdateSession(ctx, sess)
}

func TestPractice_AutoAdvanceOutlivesRequest(t *testing.T) {
	store := &ctxCheckStore{Store: NewInMemoryStore()}
	sess := Session{ID: "prac-2", AssessmentID: "asmt-1", UserID: "u1", Mode: ModePractice, Status: StatusNotStarted}
	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	p := NewPractice(store, testAssessment(), sess,
		PracticeAdvanceDelay(5*time.Millisecond),
		PracticeErrorHandler(func(error) {}),
	)
	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The answering request's context dies as soon as it is served; the
	// advance fires later and must still persist.
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := p.Answer(ctx, "q1", "A"); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for {
		s, err := store.GetSession(context.Background(), "prac-2")
		if err != nil {
			t.Fatal(err)
		}
		if s.CurrentIndex == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("auto-advance never persisted, index = %d", s.CurrentIndex)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPractice_ReplacementNotAccumulation(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPractice(t)
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Answer(ctx, "q1", "A"); err != nil {
		t.Fatal(err)
	}
	fb, err := p.Answer(ctx, "q1", "B") // changed their mind, now wrong
	if err != nil {
		t.Fatal(err)
	}
	if fb.Stats.Answered != 1 {
		t.Errorf("answered = %d, want 1 (replacement)", fb.Stats.Answered)
	}
	if fb.Stats.Correct != 0 || fb.Stats.Score != 0 {
		t.Errorf("prior correct contribution not backed out: %+v", fb.Stats)
	}
}

func TestPractice_FinishRecordsResult(t *testing.T) {
	ctx := context.Background()
	p, _, store := newTestPractice(t)
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Answer(ctx, "q1", "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Answer(ctx, "q2", "A"); err != nil {
		t.Fatal(err)
	}

	res, err := p.Finish(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.CorrectCount != 1 || res.WrongCount != 1 || res.UnansweredCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1", res.CorrectCount, res.WrongCount, res.UnansweredCount)
	}
	if res.TotalScore != 5 || res.MaxScore != 15 {
		t.Errorf("score = %v/%v, want 5/15", res.TotalScore, res.MaxScore)
	}
	if _, err := store.GetResult(ctx, "prac-1"); err != nil {
		t.Errorf("result not persisted: %v", err)
	}

	// Finishing again returns the stored result, no recompute.
	again, err := p.Finish(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again.TotalScore != res.TotalScore || again.CompletedAt != res.CompletedAt {
		t.Errorf("second finish diverged: %+v vs %+v", again, res)
	}
	if _, err := p.Answer(ctx, "q3", "C"); !errors.Is(err, ErrCompleted) {
		t.Errorf("answer after finish: %v", err)
	}
}
