package http

import (
	"net/http"
	"strconv"

	syncx "github.com/prepdesk/prepdesk-backend/internal/sync"
)

// ListEventsHandler pages through the session event log, oldest first.
// Pollers pass the highest offset they have seen as ?since=.
func ListEventsHandler(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, err := parseIntParam(r, "since", 0)
		if err != nil {
			http.Error(w, "bad since", http.StatusBadRequest)
			return
		}
		limit, err := parseIntParam(r, "limit", 0)
		if err != nil {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		out, err := events.Since(r.Context(), since, int(limit))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func parseIntParam(r *http.Request, name string, def int64) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
