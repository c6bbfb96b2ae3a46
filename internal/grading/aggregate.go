package grading

// QuestionOutcome is one graded question inside an attempt, keyed by
// question id in the attempt's question order.
type QuestionOutcome struct {
	QuestionID    string       `json:"question_id"`
	Type          QuestionType `json:"type"`
	Answered      bool         `json:"answered"`
	Correct       bool         `json:"correct"`
	NeedsManual   bool         `json:"needs_manual,omitempty"`
	Earned        float64      `json:"earned"`
	Max           float64      `json:"max"`
	Feedback      string       `json:"feedback,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
}

// Summary is the aggregate verdict over all outcomes of one attempt.
type Summary struct {
	TotalScore    float64
	MaxScore      float64
	Percentage    float64
	Passed        bool
	PendingManual bool
}

// Aggregate sums per-question outcomes into a verdict. Under
// EssayPolicyDefer, questions that need manual review are excluded from the
// automatic percentage and pass decision; under EssayPolicyInclude they count
// with their zero earned score.
func Aggregate(outcomes []QuestionOutcome, passingPercent float64, policy EssayPolicy) Summary {
	var s Summary
	var verdictMax, verdictEarned float64
	for _, o := range outcomes {
		s.TotalScore += o.Earned
		s.MaxScore += o.Max
		if o.NeedsManual {
			s.PendingManual = true
			if policy == EssayPolicyDefer {
				continue
			}
		}
		verdictEarned += o.Earned
		verdictMax += o.Max
	}
	if verdictMax > 0 {
		s.Percentage = verdictEarned / verdictMax * 100
	}
	s.Passed = s.Percentage >= passingPercent
	return s
}
