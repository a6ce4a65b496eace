package intent

import (
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/textutil"
)

const (
	// MaxAnswerRunes is the longest answer accepted before it is treated as echoed text.
	MaxAnswerRunes = 100
	// MaxQuestionSimilarity is the ratio above which an answer is considered a copy of the question.
	MaxQuestionSimilarity = 0.70
	// minQuestionRunesForSimilarity keeps very short prompts out of the similarity check.
	minQuestionRunesForSimilarity = 10
)

// Delta summarises what a turn's intents asked for after they were applied.
type Delta struct {
	// Answer is set when the turn carries an answer to evaluate.
	Answer *string
	// Skipped is set when the current question is skipped.
	Skipped bool
	Start   bool
	Quit    bool
	// Ratings are forwarded to feedback; they never touch session state.
	Ratings              []domain.Intent
	ExplanationRequested bool
	ExplanationTopic     string
	// PreferencesChanged is set when topics, difficulty or categories changed.
	PreferencesChanged bool
	Demoted            int
	Unclear            bool
	Confirmations      []string
}

// Advances reports whether the delta consumes the current question.
func (d Delta) Advances() bool {
	return d.Answer != nil || d.Skipped
}

// Applier validates intents and folds them into a session.
type Applier struct {
	logger *zap.Logger
}

func NewApplier(logger *zap.Logger) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Applier{logger: logger}
}

// Validate demotes answer intents that look like the classifier echoed the
// question: longer than MaxAnswerRunes, identical to the question, or more
// similar to it than MaxQuestionSimilarity. Empty answer text is replaced by
// rawInput first. The input slice is not modified.
func (a *Applier) Validate(intents []domain.Intent, rawInput, questionText string) ([]domain.Intent, int) {
	out := make([]domain.Intent, len(intents))
	demoted := 0
	normQuestion := textutil.Normalize(questionText)
	for i, in := range intents {
		out[i] = in
		if in.Kind != domain.IntentAnswer {
			continue
		}
		text := in.Text
		if textutil.Blank(text) {
			text = rawInput
		}
		out[i].Text = text
		if reason := contamination(text, questionText, normQuestion); reason != "" {
			a.logger.Info("answer intent demoted to skip",
				zap.String("reason", reason),
				zap.Int("answer_runes", utf8.RuneCountInString(text)))
			out[i] = domain.Intent{Kind: domain.IntentSkip, Confirmation: in.Confirmation}
			demoted++
		}
	}
	return out, demoted
}

func contamination(answer, question, normQuestion string) string {
	if utf8.RuneCountInString(answer) > MaxAnswerRunes {
		return "too_long"
	}
	if normQuestion == "" {
		return ""
	}
	normAnswer := textutil.Normalize(answer)
	if normAnswer == normQuestion {
		return "echoes_question"
	}
	if utf8.RuneCountInString(question) > minQuestionRunesForSimilarity &&
		textutil.Similarity(normAnswer, normQuestion) > MaxQuestionSimilarity {
		return "similar_to_question"
	}
	return ""
}

// Apply validates intents and applies their effects to s. The first answer
// wins and takes precedence over any skip in the same turn.
func (a *Applier) Apply(intents []domain.Intent, s *domain.Session, rawInput, questionText string) Delta {
	validated, demoted := a.Validate(intents, rawInput, questionText)
	delta := Delta{Demoted: demoted}

	for _, in := range validated {
		if in.Confirmation != "" {
			delta.Confirmations = append(delta.Confirmations, in.Confirmation)
		}
		switch in.Kind {
		case domain.IntentAnswer:
			if delta.Answer == nil {
				text := in.Text
				delta.Answer = &text
			}
		case domain.IntentSkip:
			delta.Skipped = true
		case domain.IntentStart:
			delta.Start = true
		case domain.IntentQuit:
			delta.Quit = true
		case domain.IntentRating:
			delta.Ratings = append(delta.Ratings, in)
		case domain.IntentExplanationRequest:
			delta.ExplanationRequested = true
			delta.ExplanationTopic = in.Topic
		case domain.IntentDifficultyChange:
			if next, ok := StepDifficulty(s.Difficulty, in.Direction); ok && next != s.Difficulty {
				s.Difficulty = next
				delta.PreferencesChanged = true
			}
		case domain.IntentPreferenceChange:
			if applyPreference(s, in.Topic, in.Polarity) {
				delta.PreferencesChanged = true
			}
		case domain.IntentCategoryChange:
			if applyCategory(s, in.Category) {
				delta.PreferencesChanged = true
			}
		case domain.IntentUnclear:
			delta.Unclear = true
		}
	}

	if delta.Answer != nil {
		delta.Skipped = false
	}
	if delta.Skipped && s.CurrentQuestionID != "" && len(s.AskedQuestionIDs) > 0 {
		turn := len(s.AskedQuestionIDs) - 1
		if !slices.Contains(s.SkippedTurns, turn) {
			s.SkippedTurns = append(s.SkippedTurns, turn)
		}
	}
	return delta
}

// StepDifficulty resolves a difficulty change. "harder" and "easier" move one
// step along easy < medium < hard, clamped at the ends, with random treated as
// medium. A concrete level name is set directly.
func StepDifficulty(current domain.Difficulty, direction string) (domain.Difficulty, bool) {
	dir := strings.ToLower(strings.TrimSpace(direction))
	switch domain.Difficulty(dir) {
	case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard:
		return domain.Difficulty(dir), true
	}

	idx := slices.Index(domain.ConcreteDifficulties, current)
	if idx < 0 {
		idx = 1
	}
	switch dir {
	case "harder", "up", "increase":
		idx = min(idx+1, len(domain.ConcreteDifficulties)-1)
	case "easier", "down", "decrease":
		idx = max(idx-1, 0)
	default:
		return current, false
	}
	return domain.ConcreteDifficulties[idx], true
}

// applyPreference adds topic to the list for polarity and drops it from the
// opposite list. Returns whether anything changed.
func applyPreference(s *domain.Session, topic string, polarity domain.Polarity) bool {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return false
	}
	add, remove := &s.PreferredTopics, &s.DislikedTopics
	switch polarity {
	case domain.PolarityLike:
	case domain.PolarityDislike:
		add, remove = remove, add
	default:
		return false
	}

	changed := false
	if i := textutil.IndexFold(*remove, topic); i >= 0 {
		*remove = slices.Delete(*remove, i, i+1)
		changed = true
	}
	if !textutil.ContainsFold(*add, topic) {
		*add = append(*add, topic)
		changed = true
	}
	return changed
}

// applyCategory overwrites the category filter. "any", "all" or an empty value clears it.
func applyCategory(s *domain.Session, raw string) bool {
	var next []string
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "any", "all":
	default:
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" && !slices.Contains(next, part) {
				next = append(next, part)
			}
		}
	}
	if slices.Equal(next, s.Categories) {
		return false
	}
	s.Categories = next
	return true
}
