package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/learn-stack/learnstack-lms/internal/assessment"
)

// GET /tests/{testID}/analytics  (teacher/admin)
func TestAnalyticsHandler(engine *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		stats, err := engine.GetAnalytics(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
