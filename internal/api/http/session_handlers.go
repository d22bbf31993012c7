package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prepdesk/prepdesk-backend/internal/entitlement"
	"github.com/prepdesk/prepdesk-backend/internal/rbac"
	"github.com/prepdesk/prepdesk-backend/internal/session"
	syncx "github.com/prepdesk/prepdesk-backend/internal/sync"
)

type sessionView struct {
	Session      session.Session  `json:"session"`
	Answers      []session.Answer `json:"answers"`
	Progress     session.Progress `json:"progress"`
	RemainingSec int              `json:"remaining_sec"`
	Warnings     []string         `json:"warnings,omitempty"`
}

func newSessionView(c *session.Controller) sessionView {
	snap := c.Snapshot()
	prog, _ := c.ProgressAt(snap.CurrentIndex)
	return sessionView{
		Session:      snap,
		Answers:      c.Answers(),
		Progress:     prog,
		RemainingSec: c.RemainingSec(),
		Warnings:     c.Warnings(),
	}
}

func CreateSessionHandler(mgr *session.Manager, ents entitlement.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AssessmentID string `json:"assessment_id" validate:"required"`
			Mode         string `json:"mode" validate:"omitempty,oneof=exam practice"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		userID := rbac.SubjectFromContext(r.Context())
		mode := session.Mode(req.Mode)
		if mode == "" {
			mode = session.ModeExam
		}

		// Admins may open any assessment without a purchase grant.
		var entID string
		if rbac.RoleFromContext(r.Context()) != "admin" {
			ent, err := ents.Lookup(r.Context(), userID, req.AssessmentID)
			if err != nil {
				writeErr(w, err)
				return
			}
			entID = ent.ID
		}
		sess, err := mgr.CreateSession(r.Context(), userID, req.AssessmentID, entID, mode)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

// requireOwner guards the mutating session routes: only the taker may drive
// their own session.
func requireOwner(mgr *session.Manager, w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "sessionID")
	sub := rbac.SubjectFromContext(r.Context())
	if !mgr.Owns(r.Context(), id, sub) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return id, true
}

func StartSessionHandler(mgr *session.Manager, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireOwner(mgr, w, r)
		if !ok {
			return
		}
		c, err := mgr.Exam(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := c.Start(r.Context()); err != nil {
			writeErr(w, err)
			return
		}
		if events != nil {
			snap := c.Snapshot()
			_ = events.Append(r.Context(), syncx.EventSessionStarted, snap.ID, map[string]any{
				"assessment_id": snap.AssessmentID,
				"user_id":       snap.UserID,
				"started_at":    snap.StartedAt,
			})
		}
		writeJSON(w, http.StatusOK, newSessionView(c))
	}
}

func AnswerHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireOwner(mgr, w, r)
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
		c, err := mgr.Exam(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		a, err := c.SelectAnswer(r.Context(), req.QuestionID, req.OptionKey)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func NavigateHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireOwner(mgr, w, r)
		if !ok {
			return
		}
		var req struct {
			Index int `json:"index" validate:"min=0"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		c, err := mgr.Exam(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := c.Navigate(r.Context(), req.Index); err != nil {
			writeErr(w, err)
			return
		}
		prog, err := c.ProgressAt(req.Index)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
	}
}

func FlagHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireOwner(mgr, w, r)
		if !ok {
			return
		}
		var req struct {
			QuestionID string `json:"question_id" validate:"required"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		c, err := mgr.Exam(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := c.ToggleFlag(req.QuestionID); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"question_id": req.QuestionID,
			"flagged":     c.Flagged(req.QuestionID),
		})
	}
}

func HeartbeatHandler(mgr *session.Manager, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireOwner(mgr, w, r)
		if !ok {
			return
		}
		c, err := mgr.Exam(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := c.Heartbeat(r.Context()); err != nil {
			writeErr(w, err)
			return
		}
		snap := c.Snapshot()
		if snap.Status == session.StatusCompleted {
			// The heartbeat crossed the budget and forced submission.
			mgr.Release(id)
			if events != nil {
				_ = events.Append(r.Context(), syncx.EventSessionTimedOut, id, map[string]any{
					"assessment_id": snap.AssessmentID,
					"user_id":       snap.UserID,
					"elapsed_sec":   snap.ElapsedSec,
				})
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        snap.Status,
			"elapsed_sec":   c.Elapsed(),
			"remaining_sec": c.RemainingSec(),
		})
	}
}

func SubmitHandler(mgr *session.Manager, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireOwner(mgr, w, r)
		if !ok {
			return
		}
		var req struct {
			Pending *struct {
				QuestionID string `json:"question_id" validate:"required"`
				OptionKey  string `json:"option_key" validate:"required"`
			} `json:"pending"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		c, err := mgr.Exam(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		var pending *session.PendingAnswer
		if req.Pending != nil {
			pending = &session.PendingAnswer{
				QuestionID: req.Pending.QuestionID,
				OptionKey:  req.Pending.OptionKey,
			}
		}
		res, err := c.Submit(r.Context(), pending)
		if err != nil {
			writeErr(w, err)
			return
		}
		mgr.Release(id)
		if events != nil {
			_ = events.Append(r.Context(), syncx.EventSessionSubmitted, id, map[string]any{
				"assessment_id": res.AssessmentID,
				"user_id":       res.UserID,
				"total_score":   res.TotalScore,
				"completed_at":  res.CompletedAt,
			})
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func GetSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		c, err := mgr.Exam(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newSessionView(c))
	}
}

func ListSessionsHandler(mgr *session.Manager, limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := session.ListOpts{
			AssessmentID: r.URL.Query().Get("assessment_id"),
			Status:       r.URL.Query().Get("status"),
			Limit:        limit,
		}
		// Students only ever see their own sessions.
		role := rbac.RoleFromContext(r.Context())
		if role == "student" {
			opts.UserID = rbac.SubjectFromContext(r.Context())
		} else if u := r.URL.Query().Get("user_id"); u != "" {
			opts.UserID = u
		}
		out, err := mgr.Store().ListSessions(r.Context(), opts)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GrantEntitlementHandler is the admin surface for recording a purchase.
func GrantEntitlementHandler(ents entitlement.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID       string `json:"user_id" validate:"required"`
			AssessmentID string `json:"assessment_id" validate:"required"`
			PurchaseRef  string `json:"purchase_ref"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		e := entitlement.Entitlement{
			ID:           uuid.NewString(),
			UserID:       req.UserID,
			AssessmentID: req.AssessmentID,
			PurchaseRef:  req.PurchaseRef,
			GrantedAt:    time.Now().Unix(),
		}
		if err := ents.Grant(r.Context(), e); err != nil {
			if errors.Is(err, entitlement.ErrExists) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

func ListMyEntitlementsHandler(ents entitlement.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := ents.ListForUser(r.Context(), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
