package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/learn-stack/learnstack-lms/internal/assessment"
	"github.com/learn-stack/learnstack-lms/internal/rbac"
)

// POST /attempts  { "test_id": "..." }
//
// The user is the authenticated subject; nobody starts attempts on behalf
// of someone else.
func StartAttemptHandler(engine *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TestID string `json:"test_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TestID == "" {
			http.Error(w, "test_id required", http.StatusBadRequest)
			return
		}
		sub := rbac.SubjectFromContext(r.Context())
		a, err := engine.StartAttempt(r.Context(), req.TestID, sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// POST /attempts/{attemptID}/answers  { "question_id": "...", "answer": {...} }
func SaveAnswerHandler(engine *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var req struct {
			QuestionID string            `json:"question_id"`
			Answer     assessment.Answer `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID == "" {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}
		if !ownsAttempt(r, engine, id) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		a, err := engine.SaveAnswer(r.Context(), id, req.QuestionID, req.Answer)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// POST /attempts/{attemptID}/submit
func SubmitAttemptHandler(engine *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		if !ownsAttempt(r, engine, id) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		res, err := engine.SubmitAttempt(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /attempts/{attemptID}
//
// Returns the attempt together with its question snapshot in attempt
// order, sanitized the same way students see the test.
func GetAttemptHandler(engine *assessment.Engine, tests assessment.TestStore, attempts assessment.AttemptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := attempts.GetAttempt(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !canViewAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		t, err := tests.GetTest(r.Context(), a.TestID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Attempt assessment.Attempt `json:"attempt"`
			Test    testView           `json:"test"`
		}{a, attemptTestView(t, a)})
	}
}

// GET /attempts/{attemptID}/result
func GetResultHandler(engine *assessment.Engine, attempts assessment.AttemptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := attempts.GetAttempt(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !canViewAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		res, err := engine.GetResult(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /attempts?test_id=...&user_id=...&state=...&limit=50&offset=0
//
// Callers without attempt:view-all are scoped to their own attempts
// regardless of the user_id filter they pass.
func ListAttemptsHandler(store assessment.AttemptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())

		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if !viewAll(role) {
			userID = sub
		}
		list, err := store.ListAttempts(r.Context(), assessment.AttemptListOpts{
			TestID: strings.TrimSpace(r.URL.Query().Get("test_id")),
			UserID: userID,
			State:  strings.TrimSpace(r.URL.Query().Get("state")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		if list == nil {
			list = []assessment.Attempt{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /results  (own results across tests)
func ListMyResultsHandler(store assessment.AttemptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := rbac.SubjectFromContext(r.Context())
		results, err := store.ListUserResults(r.Context(), sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		if results == nil {
			results = []assessment.TestResult{}
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func viewAll(role string) bool { return role == "teacher" || role == "admin" }

func canViewAttempt(r *http.Request, a assessment.Attempt) bool {
	if viewAll(rbac.RoleFromContext(r.Context())) {
		return true
	}
	return a.UserID == rbac.SubjectFromContext(r.Context())
}

func ownsAttempt(r *http.Request, engine *assessment.Engine, id string) bool {
	a, err := engine.GetAttempt(r.Context(), id)
	if err != nil {
		// let the handler surface the not-found
		return true
	}
	return a.UserID == rbac.SubjectFromContext(r.Context())
}
