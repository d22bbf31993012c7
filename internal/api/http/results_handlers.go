package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepdesk/prepdesk-backend/internal/grading"
	"github.com/prepdesk/prepdesk-backend/internal/session"
)

// rankFor computes the read-time standing of one session among all completed
// results for its assessment.
func rankFor(results []session.Result, sessionID string) (position int, percentile float64, ok bool) {
	entries := make([]grading.RankEntry, len(results))
	for i, r := range results {
		entries[i] = grading.RankEntry{
			SessionID:   r.SessionID,
			UserID:      r.UserID,
			TotalScore:  r.TotalScore,
			CompletedAt: r.CompletedAt,
		}
	}
	ranked := grading.Rank(entries)
	e, ok := grading.RankOf(ranked, sessionID)
	if !ok {
		return 0, 0, false
	}
	return e.Position, e.Percentile, true
}

// GetResultHandler returns the stored result enriched with its current rank.
// Rank is computed at read time, so later submissions shift it.
func GetResultHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		res, err := store.GetResult(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		all, err := store.ListCompletedResults(r.Context(), res.AssessmentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if pos, pct, ok := rankFor(all, id); ok {
			res.RankPosition = pos
			res.Percentile = pct
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// LeaderboardHandler returns every completed result for an assessment in rank
// order.
func LeaderboardHandler(store session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assessmentID := chi.URLParam(r, "assessmentID")
		all, err := store.ListCompletedResults(r.Context(), assessmentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		entries := make([]grading.RankEntry, len(all))
		for i, res := range all {
			entries[i] = grading.RankEntry{
				SessionID:   res.SessionID,
				UserID:      res.UserID,
				TotalScore:  res.TotalScore,
				CompletedAt: res.CompletedAt,
			}
		}
		writeJSON(w, http.StatusOK, grading.Rank(entries))
	}
}
