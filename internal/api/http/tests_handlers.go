package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/learn-stack/learnstack-lms/internal/assessment"
	"github.com/learn-stack/learnstack-lms/internal/rbac"
)

// POST /tests  (teacher/admin). Body is the full test definition; the server
// assigns missing ids and forces the draft status.
func CreateTestHandler(store assessment.TestStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in assessment.Test
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		t, err := assessment.NewTest(in)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := store.PutTest(r.Context(), t); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

// POST /tests/{testID}/publish
func PublishTestHandler(store assessment.TestStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		t, err := store.GetTest(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := t.CanPublish(); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err := store.SetTestStatus(r.Context(), id, assessment.TestStatusDraft, assessment.TestStatusPublished); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /tests/{testID}/archive
func ArchiveTestHandler(store assessment.TestStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		if err := store.SetTestStatus(r.Context(), id, assessment.TestStatusPublished, assessment.TestStatusArchived); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /tests/{testID}
//
// Students get the sanitized view of published tests only; teachers and
// admins get the full definition including answer keys.
func GetTestHandler(store assessment.TestStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		t, err := store.GetTest(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		if role == "teacher" || role == "admin" {
			writeJSON(w, http.StatusOK, t)
			return
		}
		if t.Status != assessment.TestStatusPublished {
			writeErr(w, assessment.ErrTestNotPublished)
			return
		}
		writeJSON(w, http.StatusOK, toTestView(t))
	}
}

// GET /tests?limit=50&offset=0
func ListTestsHandler(store assessment.TestStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
		tests, err := store.ListTests(r.Context(), limit, offset)
		if err != nil {
			writeErr(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		if role == "teacher" || role == "admin" {
			writeJSON(w, http.StatusOK, tests)
			return
		}
		views := make([]testView, 0, len(tests))
		for _, t := range tests {
			if t.Status != assessment.TestStatusPublished {
				continue
			}
			views = append(views, toTestView(t))
		}
		writeJSON(w, http.StatusOK, views)
	}
}
