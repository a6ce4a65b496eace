// Package intent turns classifier output into domain intents and folds those
// intents into session state.
package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"quiz-agent-service/internal/domain"
)

// ParseError explains why classifier output could not be used as-is.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse intents: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var errNoIntents = errors.New("no intents in output")

// Result is the outcome of parsing classifier output. When Fallback is set the
// output was unusable and Intents holds a single answer carrying the raw input.
type Result struct {
	Intents  []domain.Intent
	Fallback bool
	Err      *ParseError
}

// Fallback returns the result used when the classifier output is unusable.
func Fallback(rawInput string, raw []byte, cause error) Result {
	return Result{
		Intents:  []domain.Intent{{Kind: domain.IntentAnswer, Text: rawInput}},
		Fallback: true,
		Err:      &ParseError{Raw: string(raw), Err: cause},
	}
}

type wireEnvelope struct {
	Intents []wireIntent `json:"intents"`
}

type wireIntent struct {
	IntentType    string   `json:"intent_type"`
	ExtractedData wireData `json:"extracted_data"`
	Confirmation  *string  `json:"confirmation_message"`
}

type wireData struct {
	Answer             string   `json:"answer"`
	Rating             *int     `json:"rating"`
	Feedback           string   `json:"feedback"`
	AvoidTopics        []string `json:"avoid_topics"`
	PreferTopics       []string `json:"prefer_topics"`
	Difficulty         string   `json:"difficulty"`
	Category           string   `json:"category"`
	ExplanationRequest string   `json:"explanation_request"`
}

// Parse decodes classifier output of the form
//
//	{"intents":[{"intent_type":"answer","extracted_data":{"answer":"Paris"},"confirmation_message":null}]}
//
// A preference_change entry expands into one intent per topic plus optional
// difficulty and category changes. Unknown intent types become unclear.
func Parse(raw []byte, rawInput string) Result {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Fallback(rawInput, raw, err)
	}

	var out []domain.Intent
	for _, w := range env.Intents {
		out = append(out, w.expand()...)
	}
	if len(out) == 0 {
		return Fallback(rawInput, raw, errNoIntents)
	}
	return Result{Intents: out}
}

func (w wireIntent) expand() []domain.Intent {
	confirmation := ""
	if w.Confirmation != nil {
		confirmation = *w.Confirmation
	}
	d := w.ExtractedData
	base := domain.Intent{Confirmation: confirmation}

	switch kind := domain.IntentKind(strings.ToLower(strings.TrimSpace(w.IntentType))); kind {
	case domain.IntentAnswer:
		base.Kind = kind
		base.Text = d.Answer
		return []domain.Intent{base}
	case domain.IntentRating:
		base.Kind = kind
		if d.Rating != nil {
			base.Rating = *d.Rating
		}
		base.Feedback = d.Feedback
		return []domain.Intent{base}
	case domain.IntentDifficultyChange:
		base.Kind = kind
		base.Direction = d.Difficulty
		return []domain.Intent{base}
	case domain.IntentCategoryChange:
		base.Kind = kind
		base.Category = d.Category
		return []domain.Intent{base}
	case domain.IntentExplanationRequest:
		base.Kind = kind
		base.Topic = d.ExplanationRequest
		return []domain.Intent{base}
	case domain.IntentSkip, domain.IntentStart, domain.IntentQuit, domain.IntentUnclear:
		base.Kind = kind
		return []domain.Intent{base}
	case domain.IntentPreferenceChange:
		return expandPreferences(d, confirmation)
	default:
		base.Kind = domain.IntentUnclear
		return []domain.Intent{base}
	}
}

func expandPreferences(d wireData, confirmation string) []domain.Intent {
	var out []domain.Intent
	for _, topic := range d.PreferTopics {
		out = append(out, domain.Intent{Kind: domain.IntentPreferenceChange, Topic: topic, Polarity: domain.PolarityLike})
	}
	for _, topic := range d.AvoidTopics {
		out = append(out, domain.Intent{Kind: domain.IntentPreferenceChange, Topic: topic, Polarity: domain.PolarityDislike})
	}
	if d.Difficulty != "" {
		out = append(out, domain.Intent{Kind: domain.IntentDifficultyChange, Direction: d.Difficulty})
	}
	if d.Category != "" {
		out = append(out, domain.Intent{Kind: domain.IntentCategoryChange, Category: d.Category})
	}
	if len(out) == 0 {
		return []domain.Intent{{Kind: domain.IntentUnclear, Confirmation: confirmation}}
	}
	out[0].Confirmation = confirmation
	return out
}
