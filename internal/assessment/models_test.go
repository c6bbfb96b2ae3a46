package assessment

import (
	"strings"
	"testing"

	"github.com/learn-stack/learnstack-lms/internal/grading"
)

func singleChoiceQ(id string) Question {
	return Question{
		ID:     id,
		Text:   "pick one",
		Type:   grading.SingleChoice,
		Points: 2,
		Options: []grading.Option{
			{ID: "a", Text: "right", Correct: true},
			{ID: "b", Text: "wrong"},
		},
	}
}

func TestQuestionValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Question)
		wantSub string
	}{
		{"valid", func(q *Question) {}, ""},
		{"missing text", func(q *Question) { q.Text = "" }, "missing text"},
		{"zero points", func(q *Question) { q.Points = 0 }, "points"},
		{"no correct option", func(q *Question) {
			q.Options[0].Correct = false
		}, "exactly one correct"},
		{"two correct options", func(q *Question) {
			q.Options[1].Correct = true
		}, "exactly one correct"},
		{"duplicate option id", func(q *Question) {
			q.Options[1].ID = "a"
		}, "duplicate option id"},
		{"wrong key field for type", func(q *Question) {
			q.AcceptedAnswers = []string{"x"}
		}, "must not set"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := singleChoiceQ("q1")
			tc.mutate(&q)
			err := q.Validate()
			if tc.wantSub == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %v, want substring %q", err, tc.wantSub)
			}
		})
	}
}

func TestQuestionValidatePerType(t *testing.T) {
	trueFalse := Question{
		ID: "tf", Text: "t or f", Type: grading.TrueFalse, Points: 1,
		Options: []grading.Option{
			{ID: "t", Text: "True", Correct: true},
			{ID: "f", Text: "False"},
		},
	}
	if err := trueFalse.Validate(); err != nil {
		t.Errorf("true_false: %v", err)
	}
	trueFalse.Options = append(trueFalse.Options, grading.Option{ID: "x", Text: "Maybe"})
	if err := trueFalse.Validate(); err == nil {
		t.Error("true_false with three options must fail")
	}

	blanks := Question{
		ID: "fb", Text: "fill", Type: grading.FillInBlanks, Points: 2,
		Blanks: map[string][]string{"b1": {"answer"}},
	}
	if err := blanks.Validate(); err != nil {
		t.Errorf("fill_in_blanks: %v", err)
	}
	blanks.Blanks["b2"] = nil
	if err := blanks.Validate(); err == nil {
		t.Error("blank without accepted answers must fail")
	}

	essay := Question{ID: "e", Text: "discuss", Type: grading.Essay}
	if err := essay.Validate(); err != nil {
		t.Errorf("essay with zero points: %v", err)
	}
}

func TestNewTest(t *testing.T) {
	in := Test{
		Title:     "Quiz",
		Status:    TestStatusPublished, // must be forced back to draft
		Questions: []Question{singleChoiceQ("")},
	}
	got, err := NewTest(in)
	if err != nil {
		t.Fatalf("NewTest: %v", err)
	}
	if got.ID == "" || got.Questions[0].ID == "" {
		t.Error("ids must be assigned")
	}
	if got.Status != TestStatusDraft {
		t.Errorf("status = %s, want draft", got.Status)
	}

	if _, err := NewTest(Test{Title: "bad", PassingScorePercent: 120}); err == nil {
		t.Error("passing score over 100 must fail")
	}
}

func TestCanPublish(t *testing.T) {
	empty := Test{ID: "t1", Title: "Empty"}
	if err := empty.CanPublish(); err == nil {
		t.Error("publishing without questions must fail")
	}
	ok := Test{ID: "t2", Title: "Quiz", Questions: []Question{singleChoiceQ("q1")}}
	if err := ok.CanPublish(); err != nil {
		t.Errorf("CanPublish: %v", err)
	}
}
