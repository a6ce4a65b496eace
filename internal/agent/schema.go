package agent

import "quiz-agent-service/internal/llm"

func nullable(typ string) map[string]any {
	return map[string]any{"type": []any{typ, "null"}}
}

func nullableList() map[string]any {
	return map[string]any{"type": []any{"array", "null"}, "items": map[string]any{"type": "string"}}
}

// IntentSchema describes classifier output. Every field is required and
// nullable so the schema works in strict structured-output mode.
var IntentSchema = &llm.Schema{
	Name:        "quiz_intents",
	Description: "Intents found in one quiz player utterance",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intents": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"intent_type": map[string]any{
							"type": "string",
							"enum": []any{"answer", "skip", "rating", "preference_change", "difficulty_change",
								"category_change", "start", "explanation_request", "quit", "unclear"},
						},
						"extracted_data": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"answer":              nullable("string"),
								"rating":              nullable("integer"),
								"feedback":            nullable("string"),
								"avoid_topics":        nullableList(),
								"prefer_topics":       nullableList(),
								"difficulty":          nullable("string"),
								"category":            nullable("string"),
								"explanation_request": nullable("string"),
							},
							"required": []any{"answer", "rating", "feedback", "avoid_topics", "prefer_topics",
								"difficulty", "category", "explanation_request"},
							"additionalProperties": false,
						},
						"confirmation_message": nullable("string"),
					},
					"required":             []any{"intent_type", "extracted_data", "confirmation_message"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"intents"},
		"additionalProperties": false,
	},
}

// VerdictSchema describes judge output.
var VerdictSchema = &llm.Schema{
	Name:        "answer_verdict",
	Description: "Grade of a quiz answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"verdict": map[string]any{
				"type": "string",
				"enum": []any{"correct", "partially_correct", "partially_incorrect", "incorrect"},
			},
		},
		"required":             []any{"verdict"},
		"additionalProperties": false,
	},
}

// CritiqueSchema describes critic output.
var CritiqueSchema = &llm.Schema{
	Name:        "question_critique",
	Description: "Quality review of a generated quiz question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"overall_score": map[string]any{"type": "number", "minimum": 0, "maximum": 10},
			"verdict":       map[string]any{"type": "string", "enum": []any{"excellent", "good", "acceptable", "poor"}},
			"issues":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"strengths":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required":             []any{"overall_score", "verdict", "issues", "strengths"},
		"additionalProperties": false,
	},
}

// QuestionBatchSchema describes generator output.
var QuestionBatchSchema = &llm.Schema{
	Name:        "question_batch",
	Description: "A batch of spoken-quiz questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question":            map[string]any{"type": "string"},
						"correct_answer":      map[string]any{"type": "string"},
						"alternative_answers": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"topic":               map[string]any{"type": "string"},
						"category":            map[string]any{"type": "string"},
						"difficulty":          map[string]any{"type": "string", "enum": []any{"easy", "medium", "hard"}},
						"explanation":         map[string]any{"type": "string"},
					},
					"required": []any{"question", "correct_answer", "alternative_answers", "topic", "category",
						"difficulty", "explanation"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}
