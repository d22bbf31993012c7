package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prepdesk/prepdesk-backend/internal/db"
	"github.com/prepdesk/prepdesk-backend/internal/session"

	_ "modernc.org/sqlite" // driver for "sqlite"
)

func openTestStore(t *testing.T) *session.SQLStore {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	// sessions carry an FK to assessments
	if _, err := conn.Exec(`INSERT INTO assessments (id,title,duration_min,passing_grade,sections_json,questions_json,created_at)
		VALUES ('asmt-1','Test Assessment',60,60,'[]','[]',?)`, time.Now().Unix()); err != nil {
		t.Fatalf("seed assessments: %v", err)
	}
	return session.NewSQLStore(conn)
}

func TestSQLStore_SessionRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	sess := session.Session{
		ID:           "sess-1",
		AssessmentID: "asmt-1",
		UserID:       "u1",
		Mode:         session.ModeExam,
		Status:       session.StatusNotStarted,
		CreatedAt:    time.Now().Unix(),
	}
	if err := st.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := st.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Status != session.StatusNotStarted || got.Mode != session.ModeExam {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, err := st.GetSession(ctx, "nope"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSQLStore_UpdateSession_ElapsedNeverShrinks(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	sess := session.Session{
		ID: "sess-1", AssessmentID: "asmt-1", UserID: "u1",
		Mode: session.ModeExam, Status: session.StatusInProgress,
		StartedAt: time.Now().Unix(), ElapsedSec: 0,
	}
	if err := st.CreateSession(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	sess.ElapsedSec = 120
	if err := st.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("update to 120: %v", err)
	}

	// A stale heartbeat carrying a smaller snapshot must not win.
	sess.ElapsedSec = 90
	sess.CurrentIndex = 3
	if err := st.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("stale update: %v", err)
	}

	got, err := st.GetSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.ElapsedSec != 120 {
		t.Fatalf("elapsed moved backward: got %d, want 120", got.ElapsedSec)
	}
	if got.CurrentIndex != 3 {
		t.Fatalf("current index not updated: got %d", got.CurrentIndex)
	}

	if err := st.UpdateSession(ctx, session.Session{ID: "nope"}); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("want ErrNotFound for missing session, got %v", err)
	}
}

func TestSQLStore_UpsertAnswer_LastWriteWins(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.CreateSession(ctx, session.Session{
		ID: "sess-1", AssessmentID: "asmt-1", UserID: "u1",
		Mode: session.ModeExam, Status: session.StatusInProgress,
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	first := session.Answer{SessionID: "sess-1", QuestionID: "q1", Selected: "A", IsCorrect: false, TimeSpentSec: 10, AnsweredAt: 100, Seq: 1}
	if err := st.UpsertAnswer(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := session.Answer{SessionID: "sess-1", QuestionID: "q1", Selected: "C", IsCorrect: true, TimeSpentSec: 25, AnsweredAt: 130, Seq: 2}
	if err := st.UpsertAnswer(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	answers, err := st.GetAnswers(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("want 1 answer, got %d", len(answers))
	}
	if answers[0].Selected != "C" || !answers[0].IsCorrect || answers[0].TimeSpentSec != 25 {
		t.Fatalf("last write did not win: %+v", answers[0])
	}
}

func TestSQLStore_UpsertAnswer_StaleSeqIgnored(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.CreateSession(ctx, session.Session{
		ID: "sess-1", AssessmentID: "asmt-1", UserID: "u1",
		Mode: session.ModeExam, Status: session.StatusInProgress,
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	// The correction (seq 2) lands first; the original selection (seq 1) was
	// delayed by a retry and arrives after. It must not win.
	if err := st.UpsertAnswer(ctx, session.Answer{
		SessionID: "sess-1", QuestionID: "q1", Selected: "A", IsCorrect: true, AnsweredAt: 101, Seq: 2,
	}); err != nil {
		t.Fatalf("correction upsert: %v", err)
	}
	if err := st.UpsertAnswer(ctx, session.Answer{
		SessionID: "sess-1", QuestionID: "q1", Selected: "B", IsCorrect: false, AnsweredAt: 100, Seq: 1,
	}); err != nil {
		t.Fatalf("stale upsert: %v", err)
	}

	answers, err := st.GetAnswers(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("want 1 answer, got %d", len(answers))
	}
	if answers[0].Selected != "A" || !answers[0].IsCorrect || answers[0].Seq != 2 {
		t.Fatalf("stale write overwrote the correction: %+v", answers[0])
	}
}

func TestSQLStore_CreateResult_Once(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if err := st.CreateSession(ctx, session.Session{
		ID: "sess-1", AssessmentID: "asmt-1", UserID: "u1",
		Mode: session.ModeExam, Status: session.StatusCompleted,
	}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	res := session.Result{
		SessionID: "sess-1", AssessmentID: "asmt-1", UserID: "u1",
		TotalScore: 10, MaxScore: 15, Percentage: 66.7,
		CorrectCount: 2, WrongCount: 1, Passed: true, CompletedAt: 1000,
	}
	if err := st.CreateResult(ctx, res); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := st.CreateResult(ctx, res); !errors.Is(err, session.ErrResultExists) {
		t.Fatalf("want ErrResultExists on second create, got %v", err)
	}

	got, err := st.GetResult(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if got.TotalScore != 10 || !got.Passed {
		t.Fatalf("result mismatch: %+v", got)
	}

	if _, err := st.GetResult(ctx, "nope"); !errors.Is(err, session.ErrResultNotFound) {
		t.Fatalf("want ErrResultNotFound, got %v", err)
	}
}

func TestSQLStore_ListCompletedResults_Ordering(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	seed := []session.Result{
		{SessionID: "s1", AssessmentID: "asmt-1", UserID: "u1", TotalScore: 30, CompletedAt: 100},
		{SessionID: "s2", AssessmentID: "asmt-1", UserID: "u2", TotalScore: 45, CompletedAt: 200},
		{SessionID: "s3", AssessmentID: "asmt-1", UserID: "u3", TotalScore: 45, CompletedAt: 150},
	}
	for _, r := range seed {
		if err := st.CreateSession(ctx, session.Session{
			ID: r.SessionID, AssessmentID: "asmt-1", UserID: r.UserID,
			Mode: session.ModeExam, Status: session.StatusCompleted,
		}); err != nil {
			t.Fatalf("seed session %s: %v", r.SessionID, err)
		}
		if err := st.CreateResult(ctx, r); err != nil {
			t.Fatalf("seed result %s: %v", r.SessionID, err)
		}
	}

	out, err := st.ListCompletedResults(ctx, "asmt-1")
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	want := []string{"s3", "s2", "s1"} // score desc, earlier completion first on ties
	if len(out) != len(want) {
		t.Fatalf("want %d results, got %d", len(want), len(out))
	}
	for i, id := range want {
		if out[i].SessionID != id {
			t.Fatalf("position %d: want %s, got %s", i, id, out[i].SessionID)
		}
	}
}

func TestSQLStore_ListSessions_Filters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, s := range []session.Session{
		{ID: "s1", AssessmentID: "asmt-1", UserID: "u1", Mode: session.ModeExam, Status: session.StatusCompleted, CreatedAt: 1},
		{ID: "s2", AssessmentID: "asmt-1", UserID: "u2", Mode: session.ModeExam, Status: session.StatusInProgress, CreatedAt: 2},
		{ID: "s3", AssessmentID: "asmt-1", UserID: "u1", Mode: session.ModePractice, Status: session.StatusInProgress, CreatedAt: 3},
	} {
		if err := st.CreateSession(ctx, s); err != nil {
			t.Fatalf("seed %s: %v", s.ID, err)
		}
	}

	mine, err := st.ListSessions(ctx, session.ListOpts{UserID: "u1"})
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("want 2 sessions for u1, got %d", len(mine))
	}

	active, err := st.ListSessions(ctx, session.ListOpts{AssessmentID: "asmt-1", Status: string(session.StatusInProgress)})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("want 2 in-progress sessions, got %d", len(active))
	}
}
