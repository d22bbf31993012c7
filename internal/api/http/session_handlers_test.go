package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prepdesk/prepdesk-backend/internal/catalog"
	"github.com/prepdesk/prepdesk-backend/internal/entitlement"
	"github.com/prepdesk/prepdesk-backend/internal/rbac"
	"github.com/prepdesk/prepdesk-backend/internal/session"
)

// testIdentity injects subject and role from headers, standing in for the JWT
// middleware.
func testIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := rbac.WithSubject(r.Context(), r.Header.Get("X-Test-Sub"))
		ctx = rbac.WithRole(ctx, r.Header.Get("X-Test-Role"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sampleAssessment() catalog.Assessment {
	return catalog.Assessment{
		ID:           "asmt-1",
		Title:        "Sample",
		DurationMin:  30,
		PassingGrade: 50,
		Questions: []catalog.Question{
			{ID: "q1", Seq: 0, Prompt: "1+1?", Options: []catalog.Option{{Key: "A", Text: "2"}, {Key: "B", Text: "3"}}, CorrectKey: "A", Points: 5},
			{ID: "q2", Seq: 1, Prompt: "2+2?", Options: []catalog.Option{{Key: "A", Text: "3"}, {Key: "B", Text: "4"}}, CorrectKey: "B", Points: 5},
		},
	}
}

func newTestRouter(t *testing.T) (*chi.Mux, entitlement.Store) {
	t.Helper()
	cat := catalog.NewInMemoryStore()
	if err := cat.PutAssessment(context.Background(), sampleAssessment()); err != nil {
		t.Fatalf("seed assessment: %v", err)
	}
	store := session.NewInMemoryStore()
	ents := entitlement.NewMemoryStore()
	mgr := session.NewManager(store, cat, nil, []session.PracticeOption{session.PracticeAdvanceDelay(time.Millisecond)})

	r := chi.NewRouter()
	r.Use(testIdentity)
	r.With(rbac.Require("session:create")).Post("/sessions", CreateSessionHandler(mgr, ents))
	r.With(rbac.Require("session:save")).Post("/sessions/{sessionID}/start", StartSessionHandler(mgr, nil))
	r.With(rbac.Require("session:save")).Post("/sessions/{sessionID}/answers", AnswerHandler(mgr))
	r.With(rbac.Require("session:save")).Post("/sessions/{sessionID}/navigate", NavigateHandler(mgr))
	r.With(rbac.Require("session:submit")).Post("/sessions/{sessionID}/submit", SubmitHandler(mgr, nil))
	r.Get("/sessions/{sessionID}/result", GetResultHandler(store))
	r.With(rbac.Require("session:save")).Post("/practice/{sessionID}/start", StartPracticeHandler(mgr))
	r.With(rbac.Require("session:save")).Post("/practice/{sessionID}/answers", PracticeAnswerHandler(mgr))
	return r, ents
}

func doJSON(t *testing.T, r http.Handler, method, path, sub, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Sub", sub)
	req.Header.Set("X-Test-Role", role)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSession_RequiresEntitlement(t *testing.T) {
	r, ents := newTestRouter(t)

	w := doJSON(t, r, "POST", "/sessions", "u1", "student", map[string]string{"assessment_id": "asmt-1"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("want 403 without grant, got %d: %s", w.Code, w.Body.String())
	}

	if err := ents.Grant(context.Background(), entitlement.Entitlement{
		ID: "e1", UserID: "u1", AssessmentID: "asmt-1", GrantedAt: time.Now().Unix(),
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	w = doJSON(t, r, "POST", "/sessions", "u1", "student", map[string]string{"assessment_id": "asmt-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("want 201 with grant, got %d: %s", w.Code, w.Body.String())
	}
	var sess session.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.EntitlementID != "e1" || sess.Status != session.StatusNotStarted {
		t.Fatalf("unexpected session: %+v", sess)
	}

	// Admins open any assessment without a grant.
	w = doJSON(t, r, "POST", "/sessions", "root", "admin", map[string]string{"assessment_id": "asmt-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("want 201 for ungranted admin, got %d: %s", w.Code, w.Body.String())
	}
	sess = session.Session{}
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.EntitlementID != "" {
		t.Fatalf("admin session should carry no entitlement: %+v", sess)
	}
}

func TestExamFlow_OverHTTP(t *testing.T) {
	r, ents := newTestRouter(t)
	_ = ents.Grant(context.Background(), entitlement.Entitlement{
		ID: "e1", UserID: "u1", AssessmentID: "asmt-1", GrantedAt: time.Now().Unix(),
	})

	w := doJSON(t, r, "POST", "/sessions", "u1", "student", map[string]string{"assessment_id": "asmt-1"})
	var sess session.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	base := "/sessions/" + sess.ID

	if w = doJSON(t, r, "POST", base+"/start", "u1", "student", nil); w.Code != http.StatusOK {
		t.Fatalf("start: %d %s", w.Code, w.Body.String())
	}

	// Intruders cannot drive someone else's session.
	if w = doJSON(t, r, "POST", base+"/answers", "u2", "student",
		map[string]string{"question_id": "q1", "option_key": "A"}); w.Code != http.StatusForbidden {
		t.Fatalf("want 403 for non-owner, got %d", w.Code)
	}

	if w = doJSON(t, r, "POST", base+"/answers", "u1", "student",
		map[string]string{"question_id": "q1", "option_key": "A"}); w.Code != http.StatusOK {
		t.Fatalf("answer q1: %d %s", w.Code, w.Body.String())
	}
	if w = doJSON(t, r, "POST", base+"/navigate", "u1", "student", map[string]int{"index": 1}); w.Code != http.StatusOK {
		t.Fatalf("navigate: %d %s", w.Code, w.Body.String())
	}

	// The answer for q2 rides along with the submit request.
	w = doJSON(t, r, "POST", base+"/submit", "u1", "student", map[string]any{
		"pending": map[string]string{"question_id": "q2", "option_key": "b."},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}
	var res session.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.TotalScore != 10 || res.CorrectCount != 2 {
		t.Fatalf("want perfect score, got %+v", res)
	}
	if !res.Passed {
		t.Fatalf("100%% should pass at grade 50: %+v", res)
	}

	w = doJSON(t, r, "GET", base+"/result", "u1", "student", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get result: %d %s", w.Code, w.Body.String())
	}
	var stored session.Result
	if err := json.Unmarshal(w.Body.Bytes(), &stored); err != nil {
		t.Fatalf("decode stored result: %v", err)
	}
	if stored.RankPosition != 1 || stored.Percentile != 0 {
		t.Fatalf("sole finisher should rank first at percentile 0: %+v", stored)
	}
}

func TestPracticeFlow_OverHTTP(t *testing.T) {
	r, ents := newTestRouter(t)
	_ = ents.Grant(context.Background(), entitlement.Entitlement{
		ID: "e1", UserID: "u1", AssessmentID: "asmt-1", GrantedAt: time.Now().Unix(),
	})

	w := doJSON(t, r, "POST", "/sessions", "u1", "student",
		map[string]string{"assessment_id": "asmt-1", "mode": "practice"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create practice: %d %s", w.Code, w.Body.String())
	}
	var sess session.Session
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	base := "/practice/" + sess.ID

	if w = doJSON(t, r, "POST", base+"/start", "u1", "student", nil); w.Code != http.StatusOK {
		t.Fatalf("start: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, "POST", base+"/answers", "u1", "student",
		map[string]string{"question_id": "q1", "option_key": "B"})
	if w.Code != http.StatusOK {
		t.Fatalf("practice answer: %d %s", w.Code, w.Body.String())
	}
	var fb session.Feedback
	if err := json.Unmarshal(w.Body.Bytes(), &fb); err != nil {
		t.Fatalf("decode feedback: %v", err)
	}
	if fb.Correct {
		t.Fatalf("B is wrong for q1: %+v", fb)
	}
	if fb.CorrectKey != "A" {
		t.Fatalf("feedback must reveal the key: %+v", fb)
	}
	if fb.Stats.Answered != 1 || fb.Stats.Correct != 0 {
		t.Fatalf("stats after one wrong answer: %+v", fb.Stats)
	}
}
