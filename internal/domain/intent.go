package domain

// IntentKind tags the variant carried by an Intent.
type IntentKind string

const (
	IntentAnswer             IntentKind = "answer"
	IntentSkip               IntentKind = "skip"
	IntentRating             IntentKind = "rating"
	IntentDifficultyChange   IntentKind = "difficulty_change"
	IntentPreferenceChange   IntentKind = "preference_change"
	IntentCategoryChange     IntentKind = "category_change"
	IntentStart              IntentKind = "start"
	IntentQuit               IntentKind = "quit"
	IntentExplanationRequest IntentKind = "explanation_request"
	IntentUnclear            IntentKind = "unclear"
)

// Polarity of a topic preference.
type Polarity string

const (
	PolarityLike    Polarity = "like"
	PolarityDislike Polarity = "dislike"
)

// Intent is one classified unit of meaning from a user's input.
// Only the fields relevant to Kind are populated.
type Intent struct {
	Kind         IntentKind `json:"kind"`
	Text         string     `json:"text,omitempty"`
	Rating       int        `json:"rating,omitempty"`
	Feedback     string     `json:"feedback,omitempty"`
	Direction    string     `json:"direction,omitempty"`
	Topic        string     `json:"topic,omitempty"`
	Polarity     Polarity   `json:"polarity,omitempty"`
	Category     string     `json:"category,omitempty"`
	Confirmation string     `json:"confirmation,omitempty"`
}

// Outcome is the result of evaluating one turn.
type Outcome string

const (
	OutcomeCorrect            Outcome = "correct"
	OutcomePartiallyCorrect   Outcome = "partially_correct"
	OutcomePartiallyIncorrect Outcome = "partially_incorrect"
	OutcomeIncorrect          Outcome = "incorrect"
	OutcomeSkipped            Outcome = "skipped"
)

// ScoreDelta is the credit awarded for the outcome.
func (o Outcome) ScoreDelta() float64 {
	switch o {
	case OutcomeCorrect:
		return 1.0
	case OutcomePartiallyCorrect:
		return 0.5
	case OutcomePartiallyIncorrect:
		return 0.25
	default:
		return 0
	}
}

// Evaluation pairs an outcome with its score delta.
type Evaluation struct {
	Outcome Outcome `json:"outcome"`
	Score   float64 `json:"score"`
	Judged  bool    `json:"judged"`
}

// NewEvaluation builds an Evaluation with the delta implied by o.
func NewEvaluation(o Outcome, judged bool) Evaluation {
	return Evaluation{Outcome: o, Score: o.ScoreDelta(), Judged: judged}
}
