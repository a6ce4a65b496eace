// Package evaluation scores a submitted answer against a question. Literal
// matches are decided locally; anything else goes to a judge.
package evaluation

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/textutil"
)

// Judge grades an answer that did not match literally. It returns the raw
// verdict word; transport failures come back as errors, unparseable output
// as an error wrapping domain.ErrMalformedOutput.
type Judge interface {
	JudgeAnswer(ctx context.Context, q domain.Question, answer string) (string, error)
}

// Evaluator implements the two-tier answer check.
type Evaluator struct {
	judge   Judge
	timeout time.Duration
	logger  *zap.Logger
}

// New builds an Evaluator. A zero timeout leaves the deadline to the caller.
func New(judge Judge, timeout time.Duration, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{judge: judge, timeout: timeout, logger: logger}
}

// Evaluate grades answer against q.
func (e *Evaluator) Evaluate(ctx context.Context, answer string, q domain.Question) (domain.Evaluation, error) {
	if textutil.Blank(answer) {
		return domain.NewEvaluation(domain.OutcomeSkipped, false), nil
	}
	if MatchesLiterally(answer, q) {
		return domain.NewEvaluation(domain.OutcomeCorrect, false), nil
	}
	if e.judge == nil {
		return domain.NewEvaluation(domain.OutcomeIncorrect, false), nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	raw, err := e.judge.JudgeAnswer(ctx, q, answer)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedOutput) {
			e.logger.Warn("judge output unparseable, grading incorrect",
				zap.String("question_id", q.ID), zap.Error(err))
			return domain.NewEvaluation(domain.OutcomeIncorrect, true), nil
		}
		return domain.Evaluation{}, domain.WrapCollaborator("judge", "judge answer", err)
	}

	outcome, ok := ParseVerdict(raw)
	if !ok {
		e.logger.Warn("judge verdict not recognised, grading incorrect",
			zap.String("question_id", q.ID), zap.String("verdict", raw))
	}
	return domain.NewEvaluation(outcome, true), nil
}

// MatchesLiterally reports whether answer normalizes to the canonical answer
// or to one of the alternates.
func MatchesLiterally(answer string, q domain.Question) bool {
	got := textutil.Normalize(answer)
	if got == "" {
		return false
	}
	if canonical := q.CorrectAnswer.Canonical(); canonical != "" && got == textutil.Normalize(canonical) {
		return true
	}
	for _, alt := range q.AlternativeAnswers {
		if got == textutil.Normalize(alt) {
			return true
		}
	}
	return false
}

var verdicts = map[string]domain.Outcome{
	"correct":             domain.OutcomeCorrect,
	"partially_correct":   domain.OutcomePartiallyCorrect,
	"partially_incorrect": domain.OutcomePartiallyIncorrect,
	"incorrect":           domain.OutcomeIncorrect,
}

// ParseVerdict maps a judge reply to an outcome. Verdict words only count
// as whole words: "partially" qualifies the word after it and "not correct"
// reads as incorrect. Unrecognised replies yield (OutcomeIncorrect, false).
func ParseVerdict(raw string) (domain.Outcome, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.Trim(v, ".!\"'`* ")
	v = strings.NewReplacer(" ", "_", "-", "_").Replace(v)
	if outcome, ok := verdicts[v]; ok {
		return outcome, true
	}

	words := strings.FieldsFunc(v, func(r rune) bool { return !unicode.IsLetter(r) })
	for i, w := range words {
		prev := ""
		if i > 0 {
			prev = words[i-1]
		}
		switch {
		case w == "correct" && prev == "not":
			return domain.OutcomeIncorrect, true
		case (w == "correct" || w == "incorrect") && prev == "partially":
			return verdicts["partially_"+w], true
		case w == "correct" || w == "incorrect":
			return verdicts[w], true
		}
	}
	return domain.OutcomeIncorrect, false
}
