package grading

// textInputStrategy matches the submitted text against any accepted answer,
// whitespace-trimmed and case-insensitive unless the question asks for
// case-sensitive matching. Binary score.
type textInputStrategy struct{}

func (textInputStrategy) Grade(q Question, resp *Response) Result {
	res := Result{Max: q.Points}
	if len(q.AcceptedAnswers) > 0 {
		res.CorrectAnswer = q.AcceptedAnswers[0]
	}
	if resp == nil || normalize(resp.Text, q.CaseSensitive) == "" {
		res.Feedback = feedbackNoAnswer
		return res
	}
	got := normalize(resp.Text, q.CaseSensitive)
	for _, accepted := range q.AcceptedAnswers {
		if got == normalize(accepted, q.CaseSensitive) {
			res.Correct = true
			res.Earned = q.Points
			res.Feedback = feedbackCorrect
			return res
		}
	}
	res.Feedback = feedbackIncorrect
	return res
}

// essayStrategy never auto-scores.
type essayStrategy struct{}

func (essayStrategy) Grade(q Question, resp *Response) Result {
	res := Result{Max: q.Points, NeedsManual: true, Feedback: "manual grading required"}
	if resp == nil || resp.Essay == "" {
		res.Feedback = feedbackNoAnswer
	}
	return res
}
