package assessment

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learn-stack/learnstack-lms/internal/analytics"
	"github.com/learn-stack/learnstack-lms/internal/grading"
)

// Clock abstracts time so attempt deadlines are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// EventSink receives domain events after they happen. The engine never calls
// downstream services synchronously; notification and sync consumers read
// the event log instead.
type EventSink interface {
	Append(ctx context.Context, typ, key string, payload interface{}) error
}

// EventAttemptGraded is appended exactly once per graded attempt, carrying
// the TestResult as payload.
const EventAttemptGraded = "attempt.graded"

// Engine runs attempts against published tests: it snapshots question
// order, accepts answers under the time budget, grades exactly once and
// rolls results up into analytics. All collaborators are injected.
type Engine struct {
	tests    TestStore
	attempts AttemptStore
	grader   grading.Grader
	clock    Clock
	events   EventSink
	log      *zap.Logger
	shuffle  func([]string)
}

type EngineOption func(*Engine)

func WithClock(c Clock) EngineOption          { return func(e *Engine) { e.clock = c } }
func WithEventSink(s EventSink) EngineOption  { return func(e *Engine) { e.events = s } }
func WithLogger(l *zap.Logger) EngineOption   { return func(e *Engine) { e.log = l } }
func WithShuffle(f func([]string)) EngineOption {
	return func(e *Engine) { e.shuffle = f }
}

// NewEngine wires the assessment engine. Tests, attempts and the grader are
// required; clock, events, logger and shuffle have sane defaults.
func NewEngine(tests TestStore, attempts AttemptStore, grader grading.Grader, opts ...EngineOption) *Engine {
	e := &Engine{
		tests:    tests,
		attempts: attempts,
		grader:   grader,
		clock:    systemClock{},
		log:      zap.NewNop(),
		shuffle: func(ids []string) {
			rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// StartAttempt opens a new attempt for (test, user). The question order is
// snapshotted here: full shuffle when the test asks for it, then truncation
// to the per-attempt subset. Returns ErrAttemptLimitReached without creating
// anything once the allowance is used up.
func (e *Engine) StartAttempt(ctx context.Context, testID, userID string) (Attempt, error) {
	t, err := e.tests.GetTest(ctx, testID)
	if err != nil {
		return Attempt{}, err
	}
	if t.Status != TestStatusPublished {
		return Attempt{}, ErrTestNotPublished
	}

	order := make([]string, len(t.Questions))
	for i, q := range t.Questions {
		order[i] = q.ID
	}
	if t.ShuffleQuestions {
		e.shuffle(order)
	}
	if n := t.QuestionsPerAttempt; n > 0 && n < len(order) {
		order = order[:n]
	}

	a := Attempt{
		ID:               uuid.NewString(),
		TestID:           testID,
		UserID:           userID,
		QuestionOrder:    order,
		Answers:          map[string]Answer{},
		State:            AttemptNotStarted,
		TimeLimitMinutes: t.TimeLimitMinutes,
		Version:          1,
	}
	// Starting is the first transition; only started attempts are persisted.
	if err := a.Transition(AttemptInProgress); err != nil {
		return Attempt{}, err
	}
	a.StartedAt = e.clock.Now().Unix()
	created, err := e.attempts.CreateAttempt(ctx, a, t.AttemptsAllowed)
	if err != nil {
		return Attempt{}, err
	}
	e.log.Info("attempt started",
		zap.String("attempt_id", created.ID),
		zap.String("test_id", testID),
		zap.String("user_id", userID),
		zap.Int("attempt_number", created.AttemptNumber))
	return created, nil
}

// SaveAnswer upserts one answer by question id. It is rejected once the
// attempt is submitted or expired; crossing the deadline here flips the
// attempt to expired before rejecting.
func (e *Engine) SaveAnswer(ctx context.Context, attemptID, questionID string, ans Answer) (Attempt, error) {
	a, err := e.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if !a.Active() {
		return a, ErrAttemptNotActive
	}
	now := e.clock.Now().Unix()
	if a.TimedOut(now) {
		expired, err := e.attempts.MarkExpired(ctx, attemptID, now)
		if err != nil {
			return a, err
		}
		return expired, ErrTimeExpired
	}
	if !a.HasQuestion(questionID) {
		return a, ErrUnknownQuestion
	}

	a.Answers[questionID] = ans
	updated, err := e.attempts.UpdateAttempt(ctx, a)
	if err != nil {
		return a, err
	}
	return updated, nil
}

// SubmitAttempt freezes the attempt and produces exactly one result.
// Concurrent submits race on the submitted transition; the first stored
// result wins, and once a result exists every repeat call returns it
// unchanged. A submitted attempt with no result is graded on the next
// call, so a caller that crashed after winning the freeze leaves nothing
// stuck.
func (e *Engine) SubmitAttempt(ctx context.Context, attemptID string) (TestResult, error) {
	a, err := e.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return TestResult{}, err
	}
	if r, err := e.attempts.GetResult(ctx, attemptID); err == nil {
		return r, nil
	} else if !errors.Is(err, ErrNotGraded) {
		return TestResult{}, err
	}

	now := e.clock.Now().Unix()
	if a.State == AttemptInProgress && a.TimedOut(now) {
		if a, err = e.attempts.MarkExpired(ctx, attemptID, now); err != nil {
			return TestResult{}, err
		}
	}

	a, won, err := e.attempts.MarkSubmitted(ctx, attemptID, now)
	if err != nil {
		return TestResult{}, err
	}
	if !won {
		if r, err := e.attempts.GetResult(ctx, attemptID); err == nil || !errors.Is(err, ErrNotGraded) {
			return r, err
		}
		if a.State != AttemptSubmitted {
			return TestResult{}, ErrNotGraded
		}
		// Frozen but no result yet: either a concurrent submit is still
		// grading, or an earlier winner died before its result landed.
		// Grading is re-entrant (SaveResult keeps the first write and
		// MarkGraded only moves submitted forward), so finish it here.
	}
	return e.grade(ctx, a)
}

// GetResult returns the persisted result, or ErrNotGraded.
func (e *Engine) GetResult(ctx context.Context, attemptID string) (TestResult, error) {
	return e.attempts.GetResult(ctx, attemptID)
}

func (e *Engine) GetAttempt(ctx context.Context, attemptID string) (Attempt, error) {
	return e.attempts.GetAttempt(ctx, attemptID)
}

// grade runs the checker over every question in the snapshot order,
// unanswered ones included, aggregates and persists the one result.
func (e *Engine) grade(ctx context.Context, a Attempt) (TestResult, error) {
	t, err := e.tests.GetTest(ctx, a.TestID)
	if err != nil {
		return TestResult{}, err
	}

	outcomes := make([]grading.QuestionOutcome, 0, len(a.QuestionOrder))
	for _, qid := range a.QuestionOrder {
		q, ok := t.Question(qid)
		if !ok {
			// Question removed after the snapshot; grade as an unanswerable zero.
			outcomes = append(outcomes, grading.QuestionOutcome{QuestionID: qid})
			continue
		}
		var resp *grading.Response
		ans, answered := a.Answers[qid]
		if answered {
			resp = &ans
		}
		res := e.grader.Grade(q.GradingView(), resp)
		out := grading.QuestionOutcome{
			QuestionID:  qid,
			Type:        q.Type,
			Answered:    answered,
			Correct:     res.Correct,
			NeedsManual: res.NeedsManual,
			Earned:      res.Earned,
			Max:         res.Max,
			Feedback:    res.Feedback,
		}
		if t.ShowCorrectAnswers {
			out.CorrectAnswer = res.CorrectAnswer
			out.Explanation = q.Explanation
		}
		outcomes = append(outcomes, out)
	}

	summary := grading.Aggregate(outcomes, t.PassingScorePercent, e.grader.Policy())
	elapsed := a.ElapsedSeconds(a.SubmittedAt)
	var avg int64
	if n := len(a.QuestionOrder); n > 0 {
		avg = elapsed / int64(n)
	}

	r := TestResult{
		AttemptID:              a.ID,
		TestID:                 a.TestID,
		UserID:                 a.UserID,
		TotalScore:             summary.TotalScore,
		MaxScore:               summary.MaxScore,
		Percentage:             summary.Percentage,
		IsPassed:               summary.Passed,
		PendingManual:          summary.PendingManual,
		QuestionResults:        outcomes,
		TotalTimeSeconds:       elapsed,
		AverageTimePerQuestion: avg,
		CompletedAt:            a.SubmittedAt,
	}
	if err := e.attempts.SaveResult(ctx, r); err != nil {
		return TestResult{}, err
	}
	if err := e.attempts.MarkGraded(ctx, a.ID); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// A concurrent grader finished first; its stored result wins.
			return e.attempts.GetResult(ctx, a.ID)
		}
		return TestResult{}, err
	}
	if e.events != nil {
		if err := e.events.Append(ctx, EventAttemptGraded, a.ID, r); err != nil {
			e.log.Warn("event append failed", zap.String("attempt_id", a.ID), zap.Error(err))
		}
	}
	e.log.Info("attempt graded",
		zap.String("attempt_id", a.ID),
		zap.String("test_id", a.TestID),
		zap.Float64("percentage", r.Percentage),
		zap.Bool("passed", r.IsPassed))
	return r, nil
}

// GetAnalytics recomputes the rollup for a test from all of its results.
func (e *Engine) GetAnalytics(ctx context.Context, testID string) (analytics.TestAnalytics, error) {
	if _, err := e.tests.GetTest(ctx, testID); err != nil {
		return analytics.TestAnalytics{}, err
	}
	results, err := e.attempts.ListResults(ctx, testID)
	if err != nil {
		return analytics.TestAnalytics{}, err
	}
	started, err := e.attempts.CountAttempts(ctx, testID)
	if err != nil {
		return analytics.TestAnalytics{}, err
	}

	views := make([]analytics.ResultView, 0, len(results))
	for _, r := range results {
		v := analytics.ResultView{
			Percentage:       r.Percentage,
			Passed:           r.IsPassed,
			TotalTimeSeconds: r.TotalTimeSeconds,
		}
		for _, q := range r.QuestionResults {
			v.Questions = append(v.Questions, analytics.QuestionView{
				QuestionID: q.QuestionID,
				Answered:   q.Answered,
				Correct:    q.Correct,
			})
		}
		views = append(views, v)
	}
	return analytics.Rollup(testID, views, started), nil
}
