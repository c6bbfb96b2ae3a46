package http

import (
	"net/http"
	"strings"

	"github.com/learn-stack/learnstack-lms/internal/events"
)

// GET /admin/events?q=...&limit=100  (admin)
//
// Searches the append-only event log, newest first.
func EventSearchHandler(log *events.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		evts, err := log.Recent(r.Context(), q, limit)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if evts == nil {
			evts = []events.Event{}
		}
		writeJSON(w, http.StatusOK, evts)
	}
}
