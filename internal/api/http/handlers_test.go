package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/learn-stack/learnstack-lms/internal/assessment"
	"github.com/learn-stack/learnstack-lms/internal/grading"
	"github.com/learn-stack/learnstack-lms/internal/rbac"
)

type fixture struct {
	router *chi.Mux
	store  interface {
		assessment.TestStore
		assessment.AttemptStore
	}
	engine *assessment.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := assessment.NewInMemoryStore()
	engine := assessment.NewEngine(store, store, grading.NewGrader())

	r := chi.NewRouter()
	r.Post("/tests", CreateTestHandler(store))
	r.Post("/tests/{testID}/publish", PublishTestHandler(store))
	r.Get("/tests/{testID}", GetTestHandler(store))
	r.Post("/attempts", StartAttemptHandler(engine))
	r.Post("/attempts/{attemptID}/answers", SaveAnswerHandler(engine))
	r.Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(engine))
	r.Get("/attempts", ListAttemptsHandler(store))
	r.Get("/attempts/{attemptID}/result", GetResultHandler(engine, store))
	return &fixture{router: r, store: store, engine: engine}
}

func (f *fixture) do(t *testing.T, method, path, role, sub string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	ctx := rbac.WithSubject(rbac.WithRole(req.Context(), role), sub)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func testBody() map[string]interface{} {
	return map[string]interface{}{
		"title": "Quiz",
		"questions": []map[string]interface{}{
			{
				"text":   "pick one",
				"type":   "single_choice",
				"points": 2,
				"options": []map[string]interface{}{
					{"id": "a", "text": "right", "correct": true},
					{"id": "b", "text": "wrong"},
				},
			},
		},
		"passing_score_percent": 50,
	}
}

func TestCreatePublishFetchFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/tests", "teacher", "t-1", testBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created assessment.Test
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, assessment.TestStatusDraft, created.Status)

	// students cannot see drafts
	rec = f.do(t, "GET", "/tests/"+created.ID, "student", "s-1", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, "POST", "/tests/"+created.ID+"/publish", "teacher", "t-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// double publish is a conflict
	rec = f.do(t, "POST", "/tests/"+created.ID+"/publish", "teacher", "t-1", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	// the student view must not leak the key
	rec = f.do(t, "GET", "/tests/"+created.ID, "student", "s-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "correct")

	// the teacher view keeps it
	rec = f.do(t, "GET", "/tests/"+created.ID, "teacher", "t-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"correct":true`)
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.do(t, "POST", "/tests", "teacher", "t-1", testBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var created assessment.Test
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NoError(t, f.store.SetTestStatus(ctx, created.ID, assessment.TestStatusDraft, assessment.TestStatusPublished))
	qID := created.Questions[0].ID

	rec = f.do(t, "POST", "/attempts", "student", "s-1", map[string]string{"test_id": created.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a assessment.Attempt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))

	// someone else's attempt is off limits
	rec = f.do(t, "POST", "/attempts/"+a.ID+"/submit", "student", "s-2", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, "POST", "/attempts/"+a.ID+"/answers", "student", "s-1", map[string]interface{}{
		"question_id": qID,
		"answer":      map[string]interface{}{"selected_option_ids": []string{"a"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, "POST", "/attempts/"+a.ID+"/submit", "student", "s-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res assessment.TestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.IsPassed)

	rec = f.do(t, "GET", "/attempts/"+a.ID+"/result", "student", "s-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// unknown attempt maps to 404
	rec = f.do(t, "GET", "/attempts/nope/result", "student", "s-1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAttemptsScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.do(t, "POST", "/tests", "teacher", "t-1", testBody())
	var created assessment.Test
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NoError(t, f.store.SetTestStatus(ctx, created.ID, assessment.TestStatusDraft, assessment.TestStatusPublished))

	for _, sub := range []string{"s-1", "s-2"} {
		rec = f.do(t, "POST", "/attempts", "student", sub, map[string]string{"test_id": created.ID})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	// students see only themselves, the user_id filter is overridden
	rec = f.do(t, "GET", "/attempts?user_id=s-2", "student", "s-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []assessment.Attempt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	require.Equal(t, "s-1", mine[0].UserID)

	// teachers see everything
	rec = f.do(t, "GET", "/attempts", "teacher", "t-1", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 2)
}

func TestStartAttemptValidation(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "POST", "/attempts", "student", "s-1", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "test_id"))
}
