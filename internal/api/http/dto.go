package http

import (
	"sort"

	"github.com/learn-stack/learnstack-lms/internal/assessment"
	"github.com/learn-stack/learnstack-lms/internal/grading"
)

// Student-facing views. Everything that would give the answer away is
// stripped: correct flags, accepted answers, blank values, the correct
// order, pair assignments and explanations.

type optionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionView struct {
	ID       string               `json:"id"`
	Text     string               `json:"text"`
	Type     grading.QuestionType `json:"type"`
	Points   float64              `json:"points"`
	Options  []optionView         `json:"options,omitempty"`
	Lefts    []string             `json:"lefts,omitempty"`  // matching: items to assign
	Rights   []string             `json:"rights,omitempty"` // matching: pool, sorted
	Items    []string             `json:"items,omitempty"`  // ordering: items, sorted
	BlankIDs []string             `json:"blank_ids,omitempty"`
}

type testView struct {
	ID                  string                `json:"id"`
	Title               string                `json:"title"`
	Description         string                `json:"description,omitempty"`
	Status              assessment.TestStatus `json:"status"`
	Questions           []questionView        `json:"questions"`
	TimeLimitMinutes    int                   `json:"time_limit_minutes,omitempty"`
	PassingScorePercent float64               `json:"passing_score_percent"`
	AttemptsAllowed     int                   `json:"attempts_allowed,omitempty"`
	QuestionsPerAttempt int                   `json:"questions_per_attempt,omitempty"`
}

func toQuestionView(q assessment.Question) questionView {
	v := questionView{
		ID:     q.ID,
		Text:   q.Text,
		Type:   q.Type,
		Points: q.Points,
	}
	for _, o := range q.Options {
		v.Options = append(v.Options, optionView{ID: o.ID, Text: o.Text})
	}
	if q.Type == grading.Matching {
		for _, p := range q.Pairs {
			v.Lefts = append(v.Lefts, p.Left)
			v.Rights = append(v.Rights, p.Right)
		}
		// sorted pool so the row order does not reveal the pairing
		sort.Strings(v.Rights)
	}
	if q.Type == grading.Ordering {
		// sorted so the presentation does not leak the key order
		v.Items = append(v.Items, q.CorrectOrder...)
		sort.Strings(v.Items)
	}
	if q.Type == grading.FillInBlanks {
		for id := range q.Blanks {
			v.BlankIDs = append(v.BlankIDs, id)
		}
		sort.Strings(v.BlankIDs)
	}
	return v
}

func toTestView(t assessment.Test) testView {
	v := testView{
		ID:                  t.ID,
		Title:               t.Title,
		Description:         t.Description,
		Status:              t.Status,
		TimeLimitMinutes:    t.TimeLimitMinutes,
		PassingScorePercent: t.PassingScorePercent,
		AttemptsAllowed:     t.AttemptsAllowed,
		QuestionsPerAttempt: t.QuestionsPerAttempt,
	}
	for _, q := range t.Questions {
		v.Questions = append(v.Questions, toQuestionView(q))
	}
	return v
}

// attemptTestView narrows a test to the questions snapshotted into one
// attempt, in the attempt's order.
func attemptTestView(t assessment.Test, a assessment.Attempt) testView {
	v := toTestView(t)
	byID := make(map[string]questionView, len(v.Questions))
	for _, q := range v.Questions {
		byID[q.ID] = q
	}
	v.Questions = v.Questions[:0]
	for _, id := range a.QuestionOrder {
		if q, ok := byID[id]; ok {
			v.Questions = append(v.Questions, q)
		}
	}
	return v
}
