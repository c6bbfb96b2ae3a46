package grading

import (
	"fmt"
	"strings"
)

// matchingStrategy awards proportional credit: one share per pair whose
// submitted right-value equals the key's right-value for that left-value.
type matchingStrategy struct{}

func (matchingStrategy) Grade(q Question, resp *Response) Result {
	res := Result{Max: q.Points, CorrectAnswer: renderPairs(q.Pairs)}
	if len(q.Pairs) == 0 {
		res.Feedback = feedbackIncorrect
		return res
	}
	if resp == nil || len(resp.Matches) == 0 {
		res.Feedback = feedbackNoAnswer
		return res
	}
	matched := 0
	for _, p := range q.Pairs {
		if resp.Matches[p.Left] == p.Right {
			matched++
		}
	}
	res.Earned = q.Points * float64(matched) / float64(len(q.Pairs))
	res.Correct = matched == len(q.Pairs)
	res.Feedback = fmt.Sprintf("matched %d of %d pairs", matched, len(q.Pairs))
	return res
}

// orderingStrategy scores the longest prefix of the submission that matches
// the correct order position for position. Mistakes early in the sequence
// cost the whole tail; full credit requires exact sequence equality.
type orderingStrategy struct{}

func (orderingStrategy) Grade(q Question, resp *Response) Result {
	res := Result{Max: q.Points, CorrectAnswer: strings.Join(q.CorrectOrder, ", ")}
	if len(q.CorrectOrder) == 0 {
		res.Feedback = feedbackIncorrect
		return res
	}
	if resp == nil || len(resp.Order) == 0 {
		res.Feedback = feedbackNoAnswer
		return res
	}
	prefix := 0
	for i, want := range q.CorrectOrder {
		if i >= len(resp.Order) || resp.Order[i] != want {
			break
		}
		prefix++
	}
	exact := prefix == len(q.CorrectOrder) && len(resp.Order) == len(q.CorrectOrder)
	res.Earned = q.Points * float64(prefix) / float64(len(q.CorrectOrder))
	res.Correct = exact
	if exact {
		res.Feedback = feedbackCorrect
	} else {
		res.Feedback = fmt.Sprintf("first %d of %d in order", prefix, len(q.CorrectOrder))
	}
	return res
}

// fillInBlanksStrategy scores each blank independently against its accepted
// set; credit is proportional to the number of correct blanks.
type fillInBlanksStrategy struct{}

func (fillInBlanksStrategy) Grade(q Question, resp *Response) Result {
	res := Result{Max: q.Points}
	if len(q.Blanks) == 0 {
		res.Feedback = feedbackIncorrect
		return res
	}
	if resp == nil || len(resp.Blanks) == 0 {
		res.Feedback = feedbackNoAnswer
		return res
	}
	correct := 0
	for blankID, accepted := range q.Blanks {
		got, ok := resp.Blanks[blankID]
		if !ok {
			continue
		}
		norm := normalize(got, q.CaseSensitive)
		for _, want := range accepted {
			if norm == normalize(want, q.CaseSensitive) {
				correct++
				break
			}
		}
	}
	res.Earned = q.Points * float64(correct) / float64(len(q.Blanks))
	res.Correct = correct == len(q.Blanks)
	res.Feedback = fmt.Sprintf("%d of %d blanks correct", correct, len(q.Blanks))
	return res
}

func renderPairs(pairs []Pair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.Left+": "+p.Right)
	}
	return strings.Join(parts, "; ")
}
