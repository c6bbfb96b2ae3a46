package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/learn-stack/learnstack-lms/internal/assessment"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain sentinels to HTTP statuses. Anything unrecognized is
// a 500 with a generic body so internals do not leak.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assessment.ErrTestNotFound),
		errors.Is(err, assessment.ErrAttemptNotFound),
		errors.Is(err, assessment.ErrNotGraded):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, assessment.ErrTestNotPublished),
		errors.Is(err, assessment.ErrAttemptLimitReached),
		errors.Is(err, assessment.ErrAttemptNotActive),
		errors.Is(err, assessment.ErrTimeExpired),
		errors.Is(err, assessment.ErrVersionConflict),
		errors.Is(err, assessment.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, assessment.ErrUnknownQuestion):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
