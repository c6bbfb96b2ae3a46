package assessment

import "fmt"

// AttemptState is the lifecycle of one learner's run through a test.
type AttemptState string

const (
	// not_started never reaches storage; starting an attempt performs the
	// first transition before the row is created.
	AttemptNotStarted AttemptState = "not_started"
	AttemptInProgress AttemptState = "in_progress"
	AttemptSubmitted  AttemptState = "submitted"
	AttemptGraded     AttemptState = "graded"
	AttemptExpired    AttemptState = "expired"
)

// transitions lists the forward edges of the attempt state machine. An
// expired attempt may still be frozen into submitted so that whatever was
// answered before the deadline gets graded.
var transitions = map[AttemptState][]AttemptState{
	AttemptNotStarted: {AttemptInProgress},
	AttemptInProgress: {AttemptSubmitted, AttemptExpired},
	AttemptExpired:    {AttemptSubmitted},
	AttemptSubmitted:  {AttemptGraded},
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to AttemptState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Attempt tracks one learner's run through one test. Policy fields are
// copied from the test at start time so later test edits cannot change an
// in-flight attempt.
type Attempt struct {
	ID               string            `json:"id"`
	TestID           string            `json:"test_id"`
	UserID           string            `json:"user_id"`
	AttemptNumber    int               `json:"attempt_number"`
	QuestionOrder    []string          `json:"question_order"`
	Answers          map[string]Answer `json:"answers"`
	State            AttemptState      `json:"state"`
	StartedAt        int64             `json:"started_at"`
	SubmittedAt      int64             `json:"submitted_at,omitempty"`
	TimeLimitMinutes int               `json:"time_limit_minutes,omitempty"`
	Version          int64             `json:"version"`
}

// Deadline returns the unix second after which the attempt is expired, or 0
// when the attempt has no time limit.
func (a Attempt) Deadline() int64 {
	if a.TimeLimitMinutes <= 0 {
		return 0
	}
	return a.StartedAt + int64(a.TimeLimitMinutes)*60
}

// TimedOut reports whether the time budget is exhausted at the given moment.
func (a Attempt) TimedOut(nowUnix int64) bool {
	d := a.Deadline()
	return d > 0 && nowUnix > d
}

// Active reports whether the attempt still accepts answers.
func (a Attempt) Active() bool { return a.State == AttemptInProgress }

// HasQuestion reports whether the question id is part of this attempt's
// snapshot order.
func (a Attempt) HasQuestion(questionID string) bool {
	for _, id := range a.QuestionOrder {
		if id == questionID {
			return true
		}
	}
	return false
}

// ElapsedSeconds is the time spent in the attempt, capped at the time limit
// when one is set: an expired attempt graded late still reports the budget,
// not the wall-clock gap.
func (a Attempt) ElapsedSeconds(endUnix int64) int64 {
	elapsed := endUnix - a.StartedAt
	if elapsed < 0 {
		elapsed = 0
	}
	if d := a.Deadline(); d > 0 && a.StartedAt+elapsed > d {
		elapsed = d - a.StartedAt
	}
	return elapsed
}

// Transition moves the attempt to the target state, rejecting anything the
// state machine does not allow.
func (a *Attempt) Transition(to AttemptState) error {
	if !CanTransition(a.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, to)
	}
	a.State = to
	return nil
}

// Clone deep-copies the attempt so stores can hand out values without
// aliasing the answers map.
func (a Attempt) Clone() Attempt {
	out := a
	out.QuestionOrder = append([]string(nil), a.QuestionOrder...)
	out.Answers = make(map[string]Answer, len(a.Answers))
	for k, v := range a.Answers {
		out.Answers[k] = v
	}
	return out
}
