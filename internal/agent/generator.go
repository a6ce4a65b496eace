package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/generation"
	"quiz-agent-service/internal/llm"
)

// SourceGenerated marks questions written by the generator.
const SourceGenerated = "generated"

type Generator struct {
	provider llm.Provider
	now      func() time.Time
}

func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{provider: provider, now: time.Now}
}

type draft struct {
	Question           string   `json:"question"`
	CorrectAnswer      string   `json:"correct_answer"`
	AlternativeAnswers []string `json:"alternative_answers"`
	Topic              string   `json:"topic"`
	Category           string   `json:"category"`
	Difficulty         string   `json:"difficulty"`
	Explanation        string   `json:"explanation"`
}

// Generate asks the model for n drafts. Drafts with no text or answer are dropped.
func (g *Generator) Generate(ctx context.Context, req generation.Request, n int) ([]domain.Question, error) {
	ctx = llm.WithPurpose(ctx, "generate")
	prompt := llm.UserPrompt(generatorSystem, generatorPrompt(req, n), QuestionBatchSchema, 300*n+200)
	prompt.Temperature = 0.8

	resp, err := g.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var out struct {
		Questions []draft `json:"questions"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}

	now := g.now().UTC()
	questions := make([]domain.Question, 0, len(out.Questions))
	for _, d := range out.Questions {
		if strings.TrimSpace(d.Question) == "" || strings.TrimSpace(d.CorrectAnswer) == "" {
			continue
		}
		questions = append(questions, domain.Question{
			ID:                 uuid.NewString(),
			Text:               strings.TrimSpace(d.Question),
			Type:               domain.QuestionTypeText,
			CorrectAnswer:      domain.Answers{strings.TrimSpace(d.CorrectAnswer)},
			AlternativeAnswers: d.AlternativeAnswers,
			Topic:              d.Topic,
			Category:           d.Category,
			Difficulty:         draftDifficulty(d.Difficulty, req.Difficulty),
			ReviewStatus:       domain.ReviewPendingReview,
			Explanation:        d.Explanation,
			Source:             SourceGenerated,
			CreatedAt:          now,
		})
	}
	return questions, nil
}

func draftDifficulty(raw string, requested domain.Difficulty) domain.Difficulty {
	if d, err := domain.ParseDifficulty(raw); err == nil && d != domain.DifficultyRandom {
		return d
	}
	if requested != "" && requested != domain.DifficultyRandom {
		return requested
	}
	return domain.DifficultyMedium
}
