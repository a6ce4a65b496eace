package retrieval

import (
	"strings"

	"quiz-agent-service/internal/domain"
)

const (
	// GenericQuery is used when the contextual query finds nothing.
	GenericQuery = "quiz question"
	// LastResortQuery is used once every metadata constraint but type is dropped.
	LastResortQuery = "question"
)

var difficultyDescriptors = map[domain.Difficulty]string{
	domain.DifficultyEasy:   "accessible and straightforward",
	domain.DifficultyMedium: "moderately challenging",
	domain.DifficultyHard:   "advanced and complex",
	domain.DifficultyRandom: "engaging",
}

// BuildQuery describes the next question in words for the semantic store, e.g.
// "moderately challenging question about physics different from chemistry avoiding sports and music".
func BuildQuery(s *domain.Session) string {
	descriptor, ok := difficultyDescriptors[s.Difficulty]
	if !ok {
		descriptor = "interesting"
	}
	parts := []string{descriptor}

	if len(s.PreferredTopics) > 0 {
		parts = append(parts, "question about "+strings.Join(s.PreferredTopics, ", "))
	} else {
		parts = append(parts, "question")
	}
	if s.CurrentTopic != "" {
		parts = append(parts, "different from "+s.CurrentTopic)
	}
	if len(s.DislikedTopics) > 0 {
		parts = append(parts, "avoiding "+strings.Join(s.DislikedTopics, " and "))
	}
	return strings.Join(parts, " ")
}
