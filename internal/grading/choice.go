package grading

import "strings"

const (
	feedbackNoAnswer  = "no answer"
	feedbackCorrect   = "correct"
	feedbackIncorrect = "incorrect"
)

// singleChoiceStrategy covers single_choice and true_false: exactly one
// submitted option id must equal the single option marked correct. All or
// nothing.
type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(q Question, resp *Response) Result {
	res := Result{Max: q.Points, CorrectAnswer: correctOptionText(q.Options)}
	if resp == nil || len(resp.SelectedOptionIDs) == 0 {
		res.Feedback = feedbackNoAnswer
		return res
	}
	if len(resp.SelectedOptionIDs) != 1 {
		res.Feedback = feedbackIncorrect
		return res
	}
	for _, o := range q.Options {
		if o.Correct && o.ID == resp.SelectedOptionIDs[0] {
			res.Correct = true
			res.Earned = q.Points
			res.Feedback = feedbackCorrect
			return res
		}
	}
	res.Feedback = feedbackIncorrect
	return res
}

// multiChoiceStrategy awards points*(hits-misses)/|correct|, floored at 0,
// where a miss is any submitted id outside the correct set. Full correctness
// requires the submitted set to equal the correct set exactly.
type multiChoiceStrategy struct{}

func (multiChoiceStrategy) Grade(q Question, resp *Response) Result {
	res := Result{Max: q.Points, CorrectAnswer: correctOptionText(q.Options)}
	if resp == nil || len(resp.SelectedOptionIDs) == 0 {
		res.Feedback = feedbackNoAnswer
		return res
	}

	correct := map[string]struct{}{}
	for _, o := range q.Options {
		if o.Correct {
			correct[o.ID] = struct{}{}
		}
	}
	if len(correct) == 0 {
		// Construction-time validation forbids this; grade defensively as zero.
		res.Feedback = feedbackIncorrect
		return res
	}

	submitted := map[string]struct{}{}
	for _, id := range resp.SelectedOptionIDs {
		submitted[id] = struct{}{}
	}

	hits, misses := 0, 0
	for id := range submitted {
		if _, ok := correct[id]; ok {
			hits++
		} else {
			misses++
		}
	}

	net := float64(hits - misses)
	if net < 0 {
		net = 0
	}
	res.Earned = q.Points * net / float64(len(correct))
	res.Correct = hits == len(correct) && misses == 0
	if res.Correct {
		res.Feedback = feedbackCorrect
	} else {
		res.Feedback = feedbackIncorrect
	}
	return res
}

func correctOptionText(opts []Option) string {
	texts := make([]string, 0, len(opts))
	for _, o := range opts {
		if o.Correct {
			texts = append(texts, o.Text)
		}
	}
	return strings.Join(texts, ", ")
}
