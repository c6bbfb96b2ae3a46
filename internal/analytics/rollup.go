// Package analytics derives per-test statistics from graded results. It is
// read-only: rollups are recomputed on demand and never mutate results.
package analytics

import "sort"

// ResultView is the minimal slice of a test result the rollup needs.
type ResultView struct {
	Percentage       float64
	Passed           bool
	TotalTimeSeconds int64
	Questions        []QuestionView
}

// QuestionView is one question's outcome inside a result.
type QuestionView struct {
	QuestionID string
	Answered   bool
	Correct    bool
}

// TestAnalytics is the rollup over all graded results of one test.
type TestAnalytics struct {
	TestID          string `json:"test_id"`
	StartedAttempts int    `json:"started_attempts"`
	GradedAttempts  int    `json:"graded_attempts"`

	AverageScore       float64 `json:"average_score"`   // mean result percentage
	CompletionRate     float64 `json:"completion_rate"` // graded / started
	PassRate           float64 `json:"pass_rate"`       // passed / graded
	AverageTimeSeconds int64   `json:"average_time_seconds"`

	// QuestionDifficulty maps question id to 1 - correct/answered.
	// A question nobody answered scores the maximum difficulty of 1.
	QuestionDifficulty map[string]float64 `json:"question_difficulty"`

	// HardestQuestions ranks question ids by ascending correctness over all
	// appearances (answered or skipped), keeping only questions seen at
	// least minAppearances times, capped at maxHardest entries.
	HardestQuestions []string `json:"hardest_questions,omitempty"`
}

const (
	minAppearances = 5
	maxHardest     = 10
)

type questionStat struct {
	appeared int
	answered int
	correct  int
}

// Rollup computes the analytics for one test. started is the total number
// of attempts ever created for the test, graded or not.
func Rollup(testID string, results []ResultView, started int) TestAnalytics {
	out := TestAnalytics{
		TestID:             testID,
		StartedAttempts:    started,
		GradedAttempts:     len(results),
		QuestionDifficulty: map[string]float64{},
	}
	if started > 0 {
		out.CompletionRate = float64(len(results)) / float64(started)
	}
	if len(results) == 0 {
		return out
	}

	var scoreSum float64
	var timeSum int64
	passed := 0
	stats := map[string]*questionStat{}
	for _, r := range results {
		scoreSum += r.Percentage
		timeSum += r.TotalTimeSeconds
		if r.Passed {
			passed++
		}
		for _, q := range r.Questions {
			st := stats[q.QuestionID]
			if st == nil {
				st = &questionStat{}
				stats[q.QuestionID] = st
			}
			st.appeared++
			if q.Answered {
				st.answered++
			}
			if q.Correct {
				st.correct++
			}
		}
	}

	n := float64(len(results))
	out.AverageScore = scoreSum / n
	out.PassRate = float64(passed) / n
	out.AverageTimeSeconds = timeSum / int64(len(results))

	for id, st := range stats {
		if st.answered == 0 {
			out.QuestionDifficulty[id] = 1
			continue
		}
		out.QuestionDifficulty[id] = 1 - float64(st.correct)/float64(st.answered)
	}
	out.HardestQuestions = rankHardest(stats)
	return out
}

func rankHardest(stats map[string]*questionStat) []string {
	type ranked struct {
		id   string
		rate float64
	}
	var rs []ranked
	for id, st := range stats {
		if st.appeared < minAppearances {
			continue
		}
		rs = append(rs, ranked{id: id, rate: float64(st.correct) / float64(st.appeared)})
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].rate != rs[j].rate {
			return rs[i].rate < rs[j].rate
		}
		return rs[i].id < rs[j].id
	})
	if len(rs) > maxHardest {
		rs = rs[:maxHardest]
	}
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.id
	}
	return ids
}
