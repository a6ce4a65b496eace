package domain

import (
	"slices"
	"time"
)

// Phase is a step of the session state machine.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAsking         Phase = "asking"
	PhaseAwaitingAnswer Phase = "awaiting_answer"
	PhaseEvaluating     Phase = "evaluating"
	PhaseFinished       Phase = "finished"
)

// phaseEdges lists the allowed transitions out of each phase.
var phaseEdges = map[Phase][]Phase{
	PhaseIdle:           {PhaseAsking, PhaseFinished},
	PhaseAsking:         {PhaseAwaitingAnswer, PhaseFinished},
	PhaseAwaitingAnswer: {PhaseEvaluating, PhaseFinished},
	PhaseEvaluating:     {PhaseAsking, PhaseFinished},
}

// CanTransition reports whether next is a legal successor of p.
func (p Phase) CanTransition(next Phase) bool {
	return slices.Contains(phaseEdges[p], next)
}

// Mode distinguishes single player sessions from shared ones.
type Mode string

const (
	ModeSingle      Mode = "single"
	ModeMultiplayer Mode = "multiplayer"
)

// Difficulty of a question or the difficulty a session is currently asking at.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyRandom Difficulty = "random"
)

// ConcreteDifficulties is the ordered scale used for stepping.
var ConcreteDifficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty validates raw. An empty value means medium.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(raw); d {
	case "":
		return DifficultyMedium, nil
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyRandom:
		return d, nil
	default:
		return "", ErrInvalidDifficulty
	}
}

// FinishReason explains why a session reached PhaseFinished.
type FinishReason string

const (
	FinishCompleted  FinishReason = "completed"
	FinishStoreEmpty FinishReason = "store_empty"
	FinishExhausted  FinishReason = "exhausted"
	FinishQuit       FinishReason = "quit"
)

// Participant is a player inside a session and their running score.
type Participant struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId,omitempty"`
	DisplayName   string    `json:"displayName"`
	Score         float64   `json:"score"`
	AnsweredCount int       `json:"answeredCount"`
	CorrectCount  int       `json:"correctCount"`
	IsHost        bool      `json:"isHost"`
	JoinedAt      time.Time `json:"joinedAt"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Session is one quiz instance. Stores hand out copies; mutate a copy and write it back.
type Session struct {
	ID                string        `json:"id"`
	Mode              Mode          `json:"mode"`
	Phase             Phase         `json:"phase"`
	MaxQuestions      int           `json:"maxQuestions"`
	Difficulty        Difficulty    `json:"difficulty"`
	Language          string        `json:"language"`
	Categories        []string      `json:"categories,omitempty"`
	PreferredTopics   []string      `json:"preferredTopics,omitempty"`
	DislikedTopics    []string      `json:"dislikedTopics,omitempty"`
	AskedQuestionIDs  []string      `json:"askedQuestionIds"`
	SkippedTurns      []int         `json:"skippedTurns,omitempty"`
	CurrentQuestionID string        `json:"currentQuestionId,omitempty"`
	CurrentTopic      string        `json:"currentTopic,omitempty"`
	Participants      []Participant `json:"participants"`
	UserID            string        `json:"userId,omitempty"`
	FinishReason      FinishReason  `json:"finishReason,omitempty"`
	LastAnswerCorrect bool          `json:"lastAnswerCorrect"`
	TTL               time.Duration `json:"ttl"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
	ExpiresAt         time.Time     `json:"expiresAt"`
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Categories = slices.Clone(s.Categories)
	c.PreferredTopics = slices.Clone(s.PreferredTopics)
	c.DislikedTopics = slices.Clone(s.DislikedTopics)
	c.AskedQuestionIDs = slices.Clone(s.AskedQuestionIDs)
	c.SkippedTurns = slices.Clone(s.SkippedTurns)
	c.Participants = slices.Clone(s.Participants)
	return &c
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Touch refreshes the expiry without ever moving it backwards.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
	if next := now.Add(s.TTL); next.After(s.ExpiresAt) {
		s.ExpiresAt = next
	}
}

// HasAsked reports whether questionID was already used in this session.
func (s *Session) HasAsked(questionID string) bool {
	return slices.Contains(s.AskedQuestionIDs, questionID)
}

// Participant returns a pointer into the participant list. An empty id selects the first participant.
func (s *Session) Participant(id string) (*Participant, error) {
	if len(s.Participants) == 0 {
		return nil, ErrParticipantNotFound
	}
	if id == "" {
		return &s.Participants[0], nil
	}
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i], nil
		}
	}
	return nil, ErrParticipantNotFound
}

// Progress reports how far a session is through its question limit.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// ScoreboardEntry is a snapshot-friendly view of a participant.
type ScoreboardEntry struct {
	ParticipantID string  `json:"participantId"`
	DisplayName   string  `json:"displayName"`
	Score         float64 `json:"score"`
	Answered      int     `json:"answered"`
}

// Scoreboard captures the ordered standings of a session.
type Scoreboard struct {
	SessionID string            `json:"sessionId"`
	Phase     Phase             `json:"phase"`
	Entries   []ScoreboardEntry `json:"entries"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
