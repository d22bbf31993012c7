package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prepdesk/prepdesk-backend/internal/catalog"
)

// PutAssessmentHandler accepts a full assessment definition, answer keys
// included. Author-only.
func PutAssessmentHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID           string             `json:"id"`
			Title        string             `json:"title" validate:"required"`
			DurationMin  int                `json:"duration_min" validate:"min=0"`
			PassingGrade float64            `json:"passing_grade" validate:"min=0,max=100"`
			Sections     []catalog.Section  `json:"sections"`
			Questions    []catalog.Question `json:"questions" validate:"required,min=1,dive"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		a := catalog.Assessment{
			ID:           req.ID,
			Title:        req.Title,
			DurationMin:  req.DurationMin,
			PassingGrade: req.PassingGrade,
			Sections:     req.Sections,
			Questions:    req.Questions,
			CreatedAt:    time.Now().Unix(),
		}
		for i := range a.Questions {
			if a.Questions[i].ID == "" {
				a.Questions[i].ID = uuid.NewString()
			}
			a.Questions[i].Seq = i
		}
		if err := store.PutAssessment(r.Context(), a); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": a.ID})
	}
}

// GetAssessmentHandler returns the student-safe view: answer keys stripped.
func GetAssessmentHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetAssessment(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GetAssessmentFullHandler returns the authoring view with keys.
func GetAssessmentFullHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetAssessmentFull(r.Context(), chi.URLParam(r, "assessmentID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func ListAssessmentsHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		out, err := store.ListAssessments(r.Context(), catalog.ListOpts{
			Q:      r.URL.Query().Get("q"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
