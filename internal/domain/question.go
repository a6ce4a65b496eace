package domain

import (
	"encoding/json"
	"slices"
	"time"
)

const (
	QuestionTypeText = "text"

	ReviewApproved      = "approved"
	ReviewPendingReview = "pending_review"
	ReviewRejected      = "rejected"
)

// Answers holds one or more accepted answer strings. The first entry is canonical.
// It decodes from either a JSON string or a JSON array of strings.
type Answers []string

// Canonical returns the first answer, or "" when empty.
func (a Answers) Canonical() string {
	if len(a) == 0 {
		return ""
	}
	return a[0]
}

func (a *Answers) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = Answers{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*a = many
	return nil
}

// Question is read-only content fetched from the question store.
type Question struct {
	ID                 string     `json:"id"`
	Text               string     `json:"question"`
	Type               string     `json:"type"`
	CorrectAnswer      Answers    `json:"correct_answer"`
	AlternativeAnswers []string   `json:"alternative_answers,omitempty"`
	Topic              string     `json:"topic"`
	Category           string     `json:"category"`
	Difficulty         Difficulty `json:"difficulty"`
	Embedding          []float32  `json:"embedding,omitempty"`
	ReviewStatus       string     `json:"review_status"`
	Explanation        string     `json:"explanation,omitempty"`
	Tags               []string   `json:"tags,omitempty"`
	Source             string     `json:"source,omitempty"`
	CreatedAt          time.Time  `json:"created_at,omitzero"`
}

// Public strips the answers so the question can be shown to players.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:         q.ID,
		Text:       q.Text,
		Topic:      q.Topic,
		Category:   q.Category,
		Difficulty: q.Difficulty,
	}
}

// PublicQuestion is what clients see while a question is open.
type PublicQuestion struct {
	ID         string     `json:"id"`
	Text       string     `json:"question"`
	Topic      string     `json:"topic"`
	Category   string     `json:"category"`
	Difficulty Difficulty `json:"difficulty"`
}

// QuestionFilter constrains a semantic search or count. Zero fields are unconstrained.
type QuestionFilter struct {
	Difficulty   Difficulty
	Type         string
	ReviewStatus string
	Categories   []string
}

// Matches reports whether q satisfies every set constraint.
func (f QuestionFilter) Matches(q Question) bool {
	if f.Difficulty != "" && q.Difficulty != f.Difficulty {
		return false
	}
	if f.Type != "" && q.Type != f.Type {
		return false
	}
	if f.ReviewStatus != "" && q.ReviewStatus != f.ReviewStatus {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, q.Category) {
		return false
	}
	return true
}

// Critique is the structured review of a generated question.
type Critique struct {
	Score     float64        `json:"overall_score"`
	Verdict   string         `json:"verdict"`
	Issues    []string       `json:"issues,omitempty"`
	Strengths []string       `json:"strengths,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Rating is one user's 1..5 rating of a question.
type Rating struct {
	ID               string     `json:"id"`
	QuestionID       string     `json:"questionId"`
	SessionID        string     `json:"sessionId"`
	UserID           string     `json:"userId"`
	Value            int        `json:"rating"`
	Feedback         string     `json:"feedback,omitempty"`
	WasCorrect       bool       `json:"wasCorrect"`
	UserAnswer       string     `json:"userAnswer,omitempty"`
	DifficultyAtTime Difficulty `json:"difficultyAtTime,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// QuestionRatingSummary aggregates ratings for one question.
type QuestionRatingSummary struct {
	QuestionID string  `json:"questionId"`
	Average    float64 `json:"average"`
	Count      int     `json:"count"`
}
