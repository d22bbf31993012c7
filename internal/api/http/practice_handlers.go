package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepdesk/prepdesk-backend/internal/rbac"
	"github.com/prepdesk/prepdesk-backend/internal/session"
)

func practiceOwner(mgr *session.Manager, w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "sessionID")
	sub := rbac.SubjectFromContext(r.Context())
	if !mgr.Owns(r.Context(), id, sub) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return id, true
}

func StartPracticeHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := practiceOwner(mgr, w, r)
		if !ok {
			return
		}
		p, err := mgr.Practice(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := p.Start(r.Context()); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"stats":       p.Stats(),
			"elapsed_sec": p.Elapsed(),
		})
	}
}

// PracticeAnswerHandler scores the answer immediately and returns feedback
// with the correct key and the running stats.
func PracticeAnswerHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := practiceOwner(mgr, w, r)
		if !ok {
			return
		}
		var req struct {
			QuestionID string `json:"question_id" validate:"required"`
			OptionKey  string `json:"option_key" validate:"required"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		p, err := mgr.Practice(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		fb, err := p.Answer(r.Context(), req.QuestionID, req.OptionKey)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, fb)
	}
}

func PracticeStatsHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := practiceOwner(mgr, w, r)
		if !ok {
			return
		}
		p, err := mgr.Practice(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"stats":       p.Stats(),
			"elapsed_sec": p.Elapsed(),
		})
	}
}

func PracticeFinishHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := practiceOwner(mgr, w, r)
		if !ok {
			return
		}
		p, err := mgr.Practice(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		res, err := p.Finish(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		mgr.Release(id)
		writeJSON(w, http.StatusOK, res)
	}
}
