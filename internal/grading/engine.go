package grading

// QuestionType tags the answer shape and checking algorithm of a question.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	TextInput      QuestionType = "text_input"
	Matching       QuestionType = "matching"
	Ordering       QuestionType = "ordering"
	FillInBlanks   QuestionType = "fill_in_blanks"
	Essay          QuestionType = "essay"
)

// Types lists every known question type.
var Types = []QuestionType{
	SingleChoice, MultipleChoice, TrueFalse, TextInput,
	Matching, Ordering, FillInBlanks, Essay,
}

type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Question is the minimal view of a question needed for grading.
// The assessment package converts its domain model into this.
type Question struct {
	ID              string
	Type            QuestionType
	Points          float64
	Options         []Option            // single/multiple choice, true/false
	AcceptedAnswers []string            // text input
	CaseSensitive   bool                // text input, fill-in-blanks
	Pairs           []Pair              // matching
	CorrectOrder    []string            // ordering
	Blanks          map[string][]string // fill-in-blanks: blank id -> accepted values
	Explanation     string
}

// Response carries a submitted answer. Exactly one field group is meaningful
// for a given question type; anything else is ignored. A nil Response, or a
// Response whose shape does not match the question type, grades as "no
// answer" and never fails.
type Response struct {
	SelectedOptionIDs []string          `json:"selected_option_ids,omitempty"`
	Text              string            `json:"text,omitempty"`
	Matches           map[string]string `json:"matches,omitempty"`
	Order             []string          `json:"order,omitempty"`
	Blanks            map[string]string `json:"blanks,omitempty"`
	Essay             string            `json:"essay,omitempty"`
}

// Result is the outcome of grading a single question response.
type Result struct {
	Correct       bool
	Earned        float64 // points awarded, in [0, Max]
	Max           float64 // the question's max points
	Feedback      string
	CorrectAnswer string // human-readable key, filled when the strategy can render one
	NeedsManual   bool   // true if teacher review is required
}

// Strategy grades a single question.
type Strategy interface {
	Grade(q Question, resp *Response) Result
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(q Question, resp *Response) Result
	Policy() EssayPolicy
}

// EssayPolicy controls how essay questions count toward the automatic
// pass/fail verdict.
type EssayPolicy string

const (
	// EssayPolicyInclude counts essay points in the automatic verdict with an
	// earned score of 0 until manual grading happens.
	EssayPolicyInclude EssayPolicy = "include"
	// EssayPolicyDefer excludes essay points from the automatic verdict and
	// marks the result pending manual review.
	EssayPolicyDefer EssayPolicy = "defer"
)

type config struct {
	essayPolicy EssayPolicy
}

type GraderOption func(*config)

func WithEssayPolicy(p EssayPolicy) GraderOption {
	return func(c *config) {
		if p == EssayPolicyDefer {
			c.essayPolicy = EssayPolicyDefer
			return
		}
		c.essayPolicy = EssayPolicyInclude
	}
}

type defaultGrader struct {
	strategies map[QuestionType]Strategy
	policy     EssayPolicy
}

// NewGrader installs the built-in strategies.
func NewGrader(opts ...GraderOption) Grader {
	cfg := &config{essayPolicy: EssayPolicyInclude}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		policy: cfg.essayPolicy,
		strategies: map[QuestionType]Strategy{
			SingleChoice:   singleChoiceStrategy{},
			TrueFalse:      singleChoiceStrategy{},
			MultipleChoice: multiChoiceStrategy{},
			TextInput:      textInputStrategy{},
			Matching:       matchingStrategy{},
			Ordering:       orderingStrategy{},
			FillInBlanks:   fillInBlanksStrategy{},
			Essay:          essayStrategy{},
		},
	}
}

func (g *defaultGrader) Policy() EssayPolicy { return g.policy }

func (g *defaultGrader) Grade(q Question, resp *Response) Result {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{Max: q.Points, NeedsManual: true, Feedback: "no strategy available"}
	}
	res := s.Grade(q, resp)
	// Clamp so a strategy can never award outside [0, points].
	if res.Earned < 0 {
		res.Earned = 0
	}
	if res.Earned > q.Points {
		res.Earned = q.Points
	}
	return res
}
