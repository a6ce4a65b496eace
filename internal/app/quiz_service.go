package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/intent"
	"quiz-agent-service/internal/metrics"
)

const (
	MinQuestions     = 1
	MaxQuestions     = 50
	DefaultQuestions = 10
	MinTTL           = 10 * time.Minute
	MaxTTL           = 120 * time.Minute
	DefaultTTL       = 30 * time.Minute

	defaultLanguage   = "en"
	defaultPlayerName = "Player"
)

// Deps wires the collaborators of a QuizService. Ratings and Logger are optional.
type Deps struct {
	Sessions   SessionStore
	Retriever  QuestionRetriever
	Questions  QuestionSource
	Classifier IntentClassifier
	Evaluator  AnswerEvaluator
	Ratings    RatingRecorder
	Logger     *zap.Logger
	DefaultTTL time.Duration
	Now        func() time.Time
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	sessions   SessionStore
	retriever  QuestionRetriever
	questions  QuestionSource
	classifier IntentClassifier
	evaluator  AnswerEvaluator
	ratings    RatingRecorder
	applier    *intent.Applier
	hub        *Hub
	logger     *zap.Logger
	defaultTTL time.Duration
	now        func() time.Time
}

func NewQuizService(d Deps) *QuizService {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.DefaultTTL <= 0 {
		d.DefaultTTL = DefaultTTL
	}
	return &QuizService{
		sessions:   d.Sessions,
		retriever:  d.Retriever,
		questions:  d.Questions,
		classifier: d.Classifier,
		evaluator:  d.Evaluator,
		ratings:    d.Ratings,
		applier:    intent.NewApplier(d.Logger),
		hub:        NewHub(),
		logger:     d.Logger,
		defaultTTL: d.DefaultTTL,
		now:        d.Now,
	}
}

// CreateRequest holds the options of a new session. Zero values take defaults.
type CreateRequest struct {
	MaxQuestions int           `json:"maxQuestions"`
	Difficulty   string        `json:"difficulty"`
	UserID       string        `json:"userId"`
	Mode         domain.Mode   `json:"mode"`
	Category     string        `json:"category"`
	Language     string        `json:"language"`
	TTL          time.Duration `json:"-"`
}

func (r CreateRequest) validate() error {
	if r.MaxQuestions != 0 && (r.MaxQuestions < MinQuestions || r.MaxQuestions > MaxQuestions) {
		return fmt.Errorf("%w: maxQuestions must be between %d and %d", domain.ErrInvalidArgument, MinQuestions, MaxQuestions)
	}
	if r.TTL != 0 && (r.TTL < MinTTL || r.TTL > MaxTTL) {
		return fmt.Errorf("%w: ttl must be between %s and %s", domain.ErrInvalidArgument, MinTTL, MaxTTL)
	}
	switch r.Mode {
	case "", domain.ModeSingle, domain.ModeMultiplayer:
	default:
		return fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidArgument, r.Mode)
	}
	return nil
}

// Create registers a new idle session. Single player sessions get a host
// participant straight away.
func (s *QuizService) Create(ctx context.Context, req CreateRequest) (*domain.Session, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	difficulty, err := domain.ParseDifficulty(req.Difficulty)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &domain.Session{
		ID:               newSessionID(),
		Mode:             cmp.Or(req.Mode, domain.ModeSingle),
		Phase:            domain.PhaseIdle,
		MaxQuestions:     cmp.Or(req.MaxQuestions, DefaultQuestions),
		Difficulty:       difficulty,
		Language:         cmp.Or(req.Language, defaultLanguage),
		AskedQuestionIDs: []string{},
		UserID:           req.UserID,
		TTL:              cmp.Or(req.TTL, s.defaultTTL),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	session.ExpiresAt = now.Add(session.TTL)
	if c := strings.TrimSpace(req.Category); c != "" {
		session.Categories = []string{c}
	}
	if session.Mode == domain.ModeSingle {
		session.Participants = []domain.Participant{
			newParticipant(cmp.Or(req.UserID, defaultPlayerName), req.UserID, true, now),
		}
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("mode", string(session.Mode)),
		zap.Int("max_questions", session.MaxQuestions),
		zap.String("difficulty", string(session.Difficulty)))
	return session, nil
}

// Get returns a snapshot of the session.
func (s *QuizService) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.sessions.Get(ctx, id)
}

// Delete removes the session and disconnects its scoreboard subscribers. A
// turn still in flight fails its write-back instead of recreating it.
func (s *QuizService) Delete(ctx context.Context, id string) error {
	if err := s.sessions.Delete(ctx, id); err != nil {
		return err
	}
	s.hub.Close(id)
	s.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// Extend sets the expiry to now plus minutes.
func (s *QuizService) Extend(ctx context.Context, id string, minutes int) (*domain.Session, error) {
	if minutes <= 0 || time.Duration(minutes)*time.Minute > MaxTTL {
		return nil, fmt.Errorf("%w: minutes must be between 1 and %d", domain.ErrInvalidArgument, int(MaxTTL/time.Minute))
	}
	var out *domain.Session
	err := s.withSession(ctx, id, func(session *domain.Session) error {
		now := s.now()
		session.ExpiresAt = now.Add(time.Duration(minutes) * time.Minute)
		session.UpdatedAt = now
		if err := s.sessions.Update(ctx, session); err != nil {
			return err
		}
		out = session
		return nil
	})
	return out, err
}

// AddParticipant joins a player. The first participant becomes host.
func (s *QuizService) AddParticipant(ctx context.Context, id, displayName, userID string) (domain.Participant, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return domain.Participant{}, fmt.Errorf("%w: displayName is required", domain.ErrInvalidArgument)
	}
	var joined domain.Participant
	err := s.withSession(ctx, id, func(session *domain.Session) error {
		now := s.now()
		joined = newParticipant(displayName, userID, len(session.Participants) == 0, now)
		session.Participants = append(session.Participants, joined)
		session.Touch(now)
		if err := s.sessions.Update(ctx, session); err != nil {
			return err
		}
		s.hub.Publish(BuildScoreboard(session, now))
		return nil
	})
	return joined, err
}

// RemoveParticipant drops a player. When the host leaves, the earliest
// remaining participant takes over.
func (s *QuizService) RemoveParticipant(ctx context.Context, id, participantID string) error {
	return s.withSession(ctx, id, func(session *domain.Session) error {
		idx := slices.IndexFunc(session.Participants, func(p domain.Participant) bool {
			return p.ID == participantID
		})
		if idx < 0 {
			return domain.ErrParticipantNotFound
		}
		wasHost := session.Participants[idx].IsHost
		session.Participants = slices.Delete(session.Participants, idx, idx+1)
		if wasHost && len(session.Participants) > 0 {
			session.Participants[0].IsHost = true
		}
		now := s.now()
		session.Touch(now)
		if err := s.sessions.Update(ctx, session); err != nil {
			return err
		}
		s.hub.Publish(BuildScoreboard(session, now))
		return nil
	})
}

// QuestionView is the public state of the open question.
type QuestionView struct {
	SessionID string                 `json:"sessionId"`
	Phase     domain.Phase           `json:"phase"`
	Question  *domain.PublicQuestion `json:"question,omitempty"`
	Progress  domain.Progress        `json:"progress"`
}

// CurrentQuestion returns the open question without its answers.
func (s *QuizService) CurrentQuestion(ctx context.Context, id string) (QuestionView, error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return QuestionView{}, err
	}
	view := QuestionView{SessionID: session.ID, Phase: session.Phase, Progress: progress(session)}
	if session.CurrentQuestionID == "" {
		return view, nil
	}
	q, err := s.questions.Get(ctx, session.CurrentQuestionID)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) {
			return QuestionView{}, err
		}
		return QuestionView{}, domain.WrapCollaborator("question_store", "get", err)
	}
	pub := q.Public()
	view.Question = &pub
	return view, nil
}

// Subscribe returns a channel of scoreboard updates for a session, starting
// with the current standings. The caller must invoke cancel.
func (s *QuizService) Subscribe(ctx context.Context, id string) (<-chan domain.Scoreboard, func(), error) {
	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe(id, BuildScoreboard(session, s.now()))
	return ch, cancel, nil
}

// ActiveCount reports the number of live sessions.
func (s *QuizService) ActiveCount(ctx context.Context) (int, error) {
	n, err := s.sessions.Count(ctx)
	if err != nil {
		return 0, err
	}
	metrics.ActiveSessions.Set(float64(n))
	return n, nil
}

// SweepOnce evicts expired sessions.
func (s *QuizService) SweepOnce(ctx context.Context) (int, error) {
	removed, err := s.sessions.Sweep(ctx, s.now())
	if removed > 0 {
		metrics.SessionsEvicted.Add(float64(removed))
		s.logger.Info("expired sessions evicted", zap.Int("count", removed))
	}
	if err != nil {
		return removed, err
	}
	_, err = s.ActiveCount(ctx)
	return removed, err
}

// RunSweeper evicts expired sessions every interval until ctx is done.
func (s *QuizService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("session sweep failed", zap.Error(err))
			}
		}
	}
}

// withSession runs fn on a fresh copy of the session while holding its turn lock.
func (s *QuizService) withSession(ctx context.Context, id string, fn func(*domain.Session) error) error {
	unlock, err := s.sessions.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	return fn(session)
}

func newParticipant(displayName, userID string, host bool, now time.Time) domain.Participant {
	return domain.Participant{
		ID:          newParticipantID(),
		UserID:      userID,
		DisplayName: displayName,
		IsHost:      host,
		JoinedAt:    now,
		LastUpdated: now,
	}
}

func progress(s *domain.Session) domain.Progress {
	return domain.Progress{Current: len(s.AskedQuestionIDs), Total: s.MaxQuestions}
}

func newSessionID() string     { return "sess_" + hexID(12) }
func newParticipantID() string { return "p_" + hexID(8) }

func hexID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
