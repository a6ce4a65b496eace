package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/llm"
)

// Judge grades answers that did not match literally.
type Judge struct {
	provider llm.Provider
}

func NewJudge(provider llm.Provider) *Judge {
	return &Judge{provider: provider}
}

// JudgeAnswer returns the verdict word. Output that fails the schema is
// reported as domain.ErrMalformedOutput.
func (j *Judge) JudgeAnswer(ctx context.Context, q domain.Question, answer string) (string, error) {
	ctx = llm.WithPurpose(ctx, "judge")
	req := llm.UserPrompt(judgeSystem, judgePrompt(q, answer), VerdictSchema, 32)

	resp, err := j.provider.Generate(ctx, req)
	if err != nil {
		var invalid *llm.ErrInvalidResponse
		if errors.As(err, &invalid) {
			return "", fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
		}
		return "", err
	}

	var out struct {
		Verdict string `json:"verdict"`
	}
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}
	return out.Verdict, nil
}
