package agent

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/llm"
)

// NeutralScore is assigned when a critique cannot be read.
const NeutralScore = 7.0

type Critic struct {
	provider llm.Provider
	logger   *zap.Logger
}

func NewCritic(provider llm.Provider, logger *zap.Logger) *Critic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Critic{provider: provider, logger: logger}
}

// Critique scores q in [0,10]. Unreadable output scores NeutralScore with
// the parse error noted in the metadata; transport failures are returned.
func (c *Critic) Critique(ctx context.Context, q domain.Question) (domain.Critique, error) {
	ctx = llm.WithPurpose(ctx, "critique")
	req := llm.UserPrompt(criticSystem, criticPrompt(q), CritiqueSchema, 400)
	req.Temperature = 0.3

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		var invalid *llm.ErrInvalidResponse
		if errors.As(err, &invalid) {
			return c.neutral(q, err), nil
		}
		return domain.Critique{}, err
	}

	var out domain.Critique
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return c.neutral(q, err), nil
	}
	out.Metadata = map[string]any{"critique_model": c.provider.ModelID()}
	return out, nil
}

func (c *Critic) neutral(q domain.Question, cause error) domain.Critique {
	c.logger.Warn("critique unreadable, using neutral score",
		zap.String("question_id", q.ID), zap.Error(cause))
	return domain.Critique{
		Score:   NeutralScore,
		Verdict: "acceptable",
		Metadata: map[string]any{
			"critique_model": c.provider.ModelID(),
			"error":          cause.Error(),
		},
	}
}
