package assessment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/learn-stack/learnstack-lms/internal/grading"
)

// TestStatus is the lifecycle of a test definition.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "draft"
	TestStatusPublished TestStatus = "published"
	TestStatusArchived  TestStatus = "archived"
)

// Question is an immutable test question. Exactly one key field group is
// populated, matching Type. Build through Test validation; mutation after a
// test is published is not supported.
type Question struct {
	ID              string               `json:"id"`
	Text            string               `json:"text"`
	Type            grading.QuestionType `json:"type"`
	Points          float64              `json:"points"`
	Options         []grading.Option     `json:"options,omitempty"`
	AcceptedAnswers []string             `json:"accepted_answers,omitempty"`
	CaseSensitive   bool                 `json:"case_sensitive,omitempty"`
	Pairs           []grading.Pair       `json:"pairs,omitempty"`
	CorrectOrder    []string             `json:"correct_order,omitempty"`
	Blanks          map[string][]string  `json:"blanks,omitempty"`
	Explanation     string               `json:"explanation,omitempty"`
}

// GradingView converts the question into the grading package's minimal view.
func (q Question) GradingView() grading.Question {
	return grading.Question{
		ID:              q.ID,
		Type:            q.Type,
		Points:          q.Points,
		Options:         q.Options,
		AcceptedAnswers: q.AcceptedAnswers,
		CaseSensitive:   q.CaseSensitive,
		Pairs:           q.Pairs,
		CorrectOrder:    q.CorrectOrder,
		Blanks:          q.Blanks,
		Explanation:     q.Explanation,
	}
}

// Validate enforces the construction invariants for one question.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("question: missing id")
	}
	if q.Text == "" {
		return fmt.Errorf("question %s: missing text", q.ID)
	}
	if q.Type != grading.Essay && q.Points <= 0 {
		return fmt.Errorf("question %s: points must be positive", q.ID)
	}
	if q.Points < 0 {
		return fmt.Errorf("question %s: points must not be negative", q.ID)
	}

	populated := map[string]bool{
		"options":          len(q.Options) > 0,
		"accepted_answers": len(q.AcceptedAnswers) > 0,
		"pairs":            len(q.Pairs) > 0,
		"correct_order":    len(q.CorrectOrder) > 0,
		"blanks":           len(q.Blanks) > 0,
	}
	var want string
	switch q.Type {
	case grading.SingleChoice, grading.MultipleChoice, grading.TrueFalse:
		want = "options"
	case grading.TextInput:
		want = "accepted_answers"
	case grading.Matching:
		want = "pairs"
	case grading.Ordering:
		want = "correct_order"
	case grading.FillInBlanks:
		want = "blanks"
	case grading.Essay:
		want = ""
	default:
		return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}
	for field, set := range populated {
		if field == want && !set {
			return fmt.Errorf("question %s: type %s requires %s", q.ID, q.Type, field)
		}
		if field != want && set {
			return fmt.Errorf("question %s: type %s must not set %s", q.ID, q.Type, field)
		}
	}

	return q.validateKey()
}

func (q Question) validateKey() error {
	switch q.Type {
	case grading.SingleChoice, grading.TrueFalse:
		if q.Type == grading.TrueFalse && len(q.Options) != 2 {
			return fmt.Errorf("question %s: true_false needs exactly two options", q.ID)
		}
		if n := countCorrect(q.Options); n != 1 {
			return fmt.Errorf("question %s: %s needs exactly one correct option, has %d", q.ID, q.Type, n)
		}
	case grading.MultipleChoice:
		if countCorrect(q.Options) == 0 {
			return fmt.Errorf("question %s: no option marked correct", q.ID)
		}
	case grading.FillInBlanks:
		for blankID, accepted := range q.Blanks {
			if blankID == "" || len(accepted) == 0 {
				return fmt.Errorf("question %s: blank without id or accepted answers", q.ID)
			}
		}
	}
	if len(q.Options) > 0 {
		seen := map[string]bool{}
		for _, o := range q.Options {
			if o.ID == "" {
				return fmt.Errorf("question %s: option without id", q.ID)
			}
			if seen[o.ID] {
				return fmt.Errorf("question %s: duplicate option id %s", q.ID, o.ID)
			}
			seen[o.ID] = true
		}
	}
	return nil
}

func countCorrect(opts []grading.Option) int {
	n := 0
	for _, o := range opts {
		if o.Correct {
			n++
		}
	}
	return n
}

// Test is an ordered set of questions plus attempt policy.
type Test struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	Status              TestStatus `json:"status"`
	Questions           []Question `json:"questions"`
	TimeLimitMinutes    int        `json:"time_limit_minutes,omitempty"`    // 0 = unlimited
	PassingScorePercent float64    `json:"passing_score_percent"`           // [0,100]
	AttemptsAllowed     int        `json:"attempts_allowed,omitempty"`      // 0 = unlimited
	QuestionsPerAttempt int        `json:"questions_per_attempt,omitempty"` // 0 = all
	ShuffleQuestions    bool       `json:"shuffle_questions,omitempty"`
	ShowCorrectAnswers  bool       `json:"show_correct_answers,omitempty"`
	CreatedAt           int64      `json:"created_at,omitempty"`
}

// NewTest fills in missing ids, forces the draft status and validates. The
// returned value is the only way a test should enter a store.
func NewTest(t Test) (Test, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Status = TestStatusDraft
	for i := range t.Questions {
		if t.Questions[i].ID == "" {
			t.Questions[i].ID = uuid.NewString()
		}
		for j := range t.Questions[i].Options {
			if t.Questions[i].Options[j].ID == "" {
				t.Questions[i].Options[j].ID = uuid.NewString()
			}
		}
	}
	if err := t.Validate(); err != nil {
		return Test{}, err
	}
	return t, nil
}

// Validate checks the test-level invariants plus every question.
func (t Test) Validate() error {
	if t.Title == "" {
		return fmt.Errorf("test %s: missing title", t.ID)
	}
	if t.PassingScorePercent < 0 || t.PassingScorePercent > 100 {
		return fmt.Errorf("test %s: passing score %v out of [0,100]", t.ID, t.PassingScorePercent)
	}
	if t.TimeLimitMinutes < 0 || t.AttemptsAllowed < 0 || t.QuestionsPerAttempt < 0 {
		return fmt.Errorf("test %s: negative policy value", t.ID)
	}
	seen := map[string]bool{}
	for _, q := range t.Questions {
		if err := q.Validate(); err != nil {
			return err
		}
		if seen[q.ID] {
			return fmt.Errorf("test %s: duplicate question id %s", t.ID, q.ID)
		}
		seen[q.ID] = true
	}
	return nil
}

// CanPublish rejects tests that could never be graded.
func (t Test) CanPublish() error {
	if len(t.Questions) == 0 {
		return fmt.Errorf("test %s: cannot publish without questions", t.ID)
	}
	return t.Validate()
}

// Question returns the question with the given id, if present.
func (t Test) Question(id string) (Question, bool) {
	for _, q := range t.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Answer is a learner's submitted answer for one question. Its shape is
// interpreted against the question's type at grading time.
type Answer = grading.Response

// TestResult is the persisted outcome of one graded attempt. Created exactly
// once per attempt, immutable thereafter.
type TestResult struct {
	AttemptID              string                    `json:"attempt_id"`
	TestID                 string                    `json:"test_id"`
	UserID                 string                    `json:"user_id"`
	TotalScore             float64                   `json:"total_score"`
	MaxScore               float64                   `json:"max_score"`
	Percentage             float64                   `json:"percentage"`
	IsPassed               bool                      `json:"is_passed"`
	PendingManual          bool                      `json:"pending_manual,omitempty"`
	QuestionResults        []grading.QuestionOutcome `json:"question_results"`
	TotalTimeSeconds       int64                     `json:"total_time_seconds"`
	AverageTimePerQuestion int64                     `json:"average_time_per_question"`
	CompletedAt            int64                     `json:"completed_at"`
}
