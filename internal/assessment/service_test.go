package assessment

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/learn-stack/learnstack-lms/internal/grading"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
func newFakeClock(unix int64) *fakeClock     { return &fakeClock{now: time.Unix(unix, 0)} }

type recordingSink struct {
	mu     sync.Mutex
	events []string // "typ/key"
}

func (s *recordingSink) Append(_ context.Context, typ, key string, _ interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, typ+"/"+key)
	return nil
}

func reverseShuffle(ids []string) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

func quizFixture() Test {
	return Test{
		ID:     "quiz-1",
		Title:  "Fundamentals",
		Status: TestStatusPublished,
		Questions: []Question{
			{
				ID: "q1", Text: "pick one", Type: grading.SingleChoice, Points: 2,
				Options: []grading.Option{
					{ID: "a", Text: "right", Correct: true},
					{ID: "b", Text: "wrong"},
				},
				Explanation: "a is right because it is",
			},
			{
				ID: "q2", Text: "type it", Type: grading.TextInput, Points: 3,
				AcceptedAnswers: []string{"forty two"},
			},
		},
		PassingScorePercent: 50,
	}
}

func newTestEngine(t *testing.T, test Test, opts ...EngineOption) (*Engine, *fakeClock, *recordingSink) {
	t.Helper()
	store := NewInMemoryStore()
	require.NoError(t, store.PutTest(context.Background(), test))
	clock := newFakeClock(10_000)
	sink := &recordingSink{}
	all := append([]EngineOption{
		WithClock(clock),
		WithEventSink(sink),
		WithShuffle(reverseShuffle),
	}, opts...)
	return NewEngine(store, store, grading.NewGrader(), all...), clock, sink
}

func TestStartAttemptSnapshotsOrder(t *testing.T) {
	test := quizFixture()
	test.ShuffleQuestions = true
	test.QuestionsPerAttempt = 1
	e, _, _ := newTestEngine(t, test)

	a, err := e.StartAttempt(context.Background(), "quiz-1", "alice")
	require.NoError(t, err)
	// reverse shuffle then truncate to one
	require.Equal(t, []string{"q2"}, a.QuestionOrder)
	require.Equal(t, AttemptInProgress, a.State)
	require.Equal(t, 1, a.AttemptNumber)
	require.EqualValues(t, 10_000, a.StartedAt)
}

func TestStartAttemptRequiresPublished(t *testing.T) {
	test := quizFixture()
	test.Status = TestStatusDraft
	e, _, _ := newTestEngine(t, test)

	_, err := e.StartAttempt(context.Background(), "quiz-1", "alice")
	require.ErrorIs(t, err, ErrTestNotPublished)
}

func TestStartAttemptEnforcesLimit(t *testing.T) {
	test := quizFixture()
	test.AttemptsAllowed = 2
	e, _, _ := newTestEngine(t, test)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := e.StartAttempt(ctx, "quiz-1", "alice")
		require.NoError(t, err)
	}
	_, err := e.StartAttempt(ctx, "quiz-1", "alice")
	require.ErrorIs(t, err, ErrAttemptLimitReached)

	// a different user still has a fresh allowance
	_, err = e.StartAttempt(ctx, "quiz-1", "bob")
	require.NoError(t, err)
}

func TestSaveAnswerRejectsUnknownQuestion(t *testing.T) {
	e, _, _ := newTestEngine(t, quizFixture())
	ctx := context.Background()
	a, err := e.StartAttempt(ctx, "quiz-1", "alice")
	require.NoError(t, err)

	_, err = e.SaveAnswer(ctx, a.ID, "nope", Answer{Text: "x"})
	require.ErrorIs(t, err, ErrUnknownQuestion)
}

func TestSaveAnswerAfterDeadlineExpires(t *testing.T) {
	test := quizFixture()
	test.TimeLimitMinutes = 1
	e, clock, _ := newTestEngine(t, test)
	ctx := context.Background()

	a, err := e.StartAttempt(ctx, "quiz-1", "alice")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	got, err := e.SaveAnswer(ctx, a.ID, "q1", Answer{SelectedOptionIDs: []string{"a"}})
	require.ErrorIs(t, err, ErrTimeExpired)
	require.Equal(t, AttemptExpired, got.State)

	// a second save now fails as not active
	_, err = e.SaveAnswer(ctx, a.ID, "q1", Answer{SelectedOptionIDs: []string{"a"}})
	require.ErrorIs(t, err, ErrAttemptNotActive)
}

func TestSubmitGradesOnce(t *testing.T) {
	e, clock, sink := newTestEngine(t, quizFixture())
	ctx := context.Background()

	a, err := e.StartAttempt(ctx, "quiz-1", "alice")
	require.NoError(t, err)
	_, err = e.SaveAnswer(ctx, a.ID, "q1", Answer{SelectedOptionIDs: []string{"a"}})
	require.NoError(t, err)
	_, err = e.SaveAnswer(ctx, a.ID, "q2", Answer{Text: "  Forty   Two "})
	require.NoError(t, err)

	clock.Advance(90 * time.Second)
	res, err := e.SubmitAttempt(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 5.0, res.TotalScore)
	require.Equal(t, 5.0, res.MaxScore)
	require.Equal(t, 100.0, res.Percentage)
	require.True(t, res.IsPassed)
	require.EqualValues(t, 90, res.TotalTimeSeconds)
	require.EqualValues(t, 45, res.AverageTimePerQuestion)
	require.Len(t, res.QuestionResults, 2)

	final, err := e.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, AttemptGraded, final.State)

	// repeat submit returns the stored result, grades nothing again
	again, err := e.SubmitAttempt(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, res, again)
	require.Equal(t, []string{EventAttemptGraded + "/" + a.ID}, sink.events)
}

func TestSubmitFinishesInterruptedGrading(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	require.NoError(t, store.PutTest(ctx, quizFixture()))
	clock := newFakeClock(10_000)
	sink := &recordingSink{}
	e := NewEngine(store, store, grading.NewGrader(), WithClock(clock), WithEventSink(sink))

	a, err := e.StartAttempt(ctx, "quiz-1", "alice")
	require.NoError(t, err)
	_, err = e.SaveAnswer(ctx, a.ID, "q1", Answer{SelectedOptionIDs: []string{"a"}})
	require.NoError(t, err)

	// Freeze the attempt the way a submit caller would, then stop before
	// any result is written, as if that caller died mid-flight.
	clock.Advance(90 * time.Second)
	_, won, err := store.MarkSubmitted(ctx, a.ID, clock.Now().Unix())
	require.NoError(t, err)
	require.True(t, won)
	_, err = e.GetResult(ctx, a.ID)
	require.ErrorIs(t, err, ErrNotGraded)

	// A retried submit must pick the work back up, not report not-graded.
	res, err := e.SubmitAttempt(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 2.0, res.TotalScore)
	require.EqualValues(t, 90, res.TotalTimeSeconds)

	final, err := e.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, AttemptGraded, final.State)

	again, err := e.SubmitAttempt(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, res, again)
	require.Equal(t, []string{EventAttemptGraded + "/" + a.ID}, sink.events)
}

func TestSubmitCountsUnanswered(t *testing.T) {
	e, _, _ := newTestEngine(t, quizFixture())
	ctx := context.Background()

	a, err := e.StartAttempt(ctx, "quiz-1", "alice")
	require.NoError(t, err)
	_, err = e.SaveAnswer(ctx, a.ID, "q1", Answer{SelectedOptionIDs: []string{"b"}})
	require.NoError(t, err)

	res, err := e.SubmitAttempt(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, res.TotalScore)
	require.Equal(t, 5.0, res.MaxScore)
	require.False(t, res.IsPassed)
	require.Len(t, res.QuestionResults, 2)

	byID := map[string]grading.QuestionOutcome{}
	for _, q := range res.QuestionResults {
		byID[q.QuestionID] = q
	}
	require.True(t, byID["q1"].Answered)
	require.False(t, byID["q1"].Correct)
	require.False(t, byID["q2"].Answered)
}

func TestSubmitExpiredAttemptGradesSavedAnswers(t *testing.T) {
	test := quizFixture()
	test.TimeLimitMinutes = 1
	e, clock, _ := newTestEngine(t, test)
	ctx := context.Background()

	a, err := e.StartAttempt(ctx, "quiz-1", "alice")
	require.NoError(t, err)
	_, err = e.SaveAnswer(ctx, a.ID, "q1", Answer{SelectedOptionIDs: []string{"a"}})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	res, err := e.SubmitAttempt(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 2.0, res.TotalScore)
	// time spent is capped at the budget, not the wall-clock gap
	require.EqualValues(t, 60, res.TotalTimeSeconds)
}

func TestSubmitRevealGatedByShowCorrectAnswers(t *testing.T) {
	ctx := context.Background()

	hidden, _, _ := newTestEngine(t, quizFixture())
	a, err := hidden.StartAttempt(ctx, "quiz-1", "alice")
	require.NoError(t, err)
	res, err := hidden.SubmitAttempt(ctx, a.ID)
	require.NoError(t, err)
	for _, q := range res.QuestionResults {
		require.Empty(t, q.CorrectAnswer)
		require.Empty(t, q.Explanation)
	}

	revealed := quizFixture()
	revealed.ShowCorrectAnswers = true
	shown, _, _ := newTestEngine(t, revealed)
	a, err = shown.StartAttempt(ctx, "quiz-1", "alice")
	require.NoError(t, err)
	res, err = shown.SubmitAttempt(ctx, a.ID)
	require.NoError(t, err)
	byID := map[string]grading.QuestionOutcome{}
	for _, q := range res.QuestionResults {
		byID[q.QuestionID] = q
	}
	require.Equal(t, "right", byID["q1"].CorrectAnswer)
	require.Equal(t, "a is right because it is", byID["q1"].Explanation)
}

func TestGetAnalyticsRollsUpResults(t *testing.T) {
	e, _, _ := newTestEngine(t, quizFixture())
	ctx := context.Background()

	users := []string{"u1", "u2", "u3"}
	for i, u := range users {
		a, err := e.StartAttempt(ctx, "quiz-1", u)
		require.NoError(t, err)
		if i < 2 { // two pass, one submits blank
			_, err = e.SaveAnswer(ctx, a.ID, "q1", Answer{SelectedOptionIDs: []string{"a"}})
			require.NoError(t, err)
			_, err = e.SaveAnswer(ctx, a.ID, "q2", Answer{Text: "forty two"})
			require.NoError(t, err)
		}
		_, err = e.SubmitAttempt(ctx, a.ID)
		require.NoError(t, err)
	}
	// one more started but never submitted
	_, err := e.StartAttempt(ctx, "quiz-1", "u4")
	require.NoError(t, err)

	stats, err := e.GetAnalytics(ctx, "quiz-1")
	require.NoError(t, err)
	require.Equal(t, 4, stats.StartedAttempts)
	require.Equal(t, 3, stats.GradedAttempts)
	require.InDelta(t, 200.0/3, stats.AverageScore, 1e-9)
	require.InDelta(t, 0.75, stats.CompletionRate, 1e-9) // 3 graded of 4 started
	require.InDelta(t, 2.0/3, stats.PassRate, 1e-9)

	ids := make([]string, 0, len(stats.QuestionDifficulty))
	for id := range stats.QuestionDifficulty {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	require.Equal(t, []string{"q1", "q2"}, ids)
	require.InDelta(t, 0.0, stats.QuestionDifficulty["q1"], 1e-9)
}
