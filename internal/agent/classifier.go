// Package agent holds the model-backed collaborators of a quiz: the intent
// classifier, the answer judge, and the question critic and generator.
package agent

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/intent"
	"quiz-agent-service/internal/llm"
)

var (
	startWords = map[string]bool{"start": true, "begin": true, "play": true, "go": true}
	quitWords  = map[string]bool{"quit": true, "exit": true, "stop": true, "end": true}
	skipWords  = map[string]bool{"skip": true, "pass": true, "next": true}
)

// Classifier turns a free-form utterance into intents. Common one-word
// commands are answered locally; everything else goes to the model.
type Classifier struct {
	provider llm.Provider
	logger   *zap.Logger
}

func NewClassifier(provider llm.Provider, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{provider: provider, logger: logger}
}

// Classify returns the intents in raw. Model output that does not fit the
// schema degrades to a single answer carrying raw; transport failures are
// returned as *domain.CollaboratorError.
func (c *Classifier) Classify(ctx context.Context, raw, questionText string, phase domain.Phase) ([]domain.Intent, error) {
	if intents, ok := FastPath(raw, phase); ok {
		return intents, nil
	}

	ctx = llm.WithPurpose(ctx, "classify")
	req := llm.UserPrompt(classifierSystem, classifierPrompt(raw, questionText, phase), IntentSchema, 512)
	req.Temperature = 0.3

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		var invalid *llm.ErrInvalidResponse
		if errors.As(err, &invalid) {
			res := intent.Fallback(raw, invalid.Content, err)
			c.logger.Warn("classifier output rejected, treating input as answer", zap.Error(res.Err))
			return res.Intents, nil
		}
		return nil, domain.WrapCollaborator("classifier", "classify", err)
	}

	res := intent.Parse(resp.Content, raw)
	if res.Fallback {
		c.logger.Warn("classifier output unusable, treating input as answer", zap.Error(res.Err))
	}
	return res.Intents, nil
}

// FastPath recognises inputs that need no model call.
func FastPath(raw string, phase domain.Phase) ([]domain.Intent, bool) {
	trimmed := strings.TrimSpace(raw)
	if len([]rune(trimmed)) < 2 {
		return []domain.Intent{{Kind: domain.IntentSkip, Confirmation: "No input received"}}, true
	}
	word := strings.ToLower(trimmed)
	switch {
	case phase == domain.PhaseIdle && startWords[word]:
		return []domain.Intent{{Kind: domain.IntentStart}}, true
	case quitWords[word]:
		return []domain.Intent{{Kind: domain.IntentQuit}}, true
	case skipWords[word]:
		return []domain.Intent{{Kind: domain.IntentSkip, Confirmation: "Skipping question"}}, true
	}
	return nil, false
}
