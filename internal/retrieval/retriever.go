// Package retrieval picks the next question for a session from the semantic
// question store.
package retrieval

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"quiz-agent-service/internal/domain"
	"quiz-agent-service/internal/metrics"
	"quiz-agent-service/internal/textutil"
)

// QuestionStore is the semantic search oracle the retriever reads from.
type QuestionStore interface {
	Search(ctx context.Context, query string, filter domain.QuestionFilter, limit int, exclude []string) ([]domain.Question, error)
	Get(ctx context.Context, id string) (domain.Question, error)
	Count(ctx context.Context, filter *domain.QuestionFilter) (int, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config tunes candidate retrieval and selection.
type Config struct {
	Candidates   int
	RecentWindow int
	TopK         int
	Timeout      time.Duration
}

// DefaultConfig returns the defaults used in production.
func DefaultConfig() Config {
	return Config{Candidates: 50, RecentWindow: 3, TopK: 5, Timeout: 10 * time.Second}
}

// Retriever implements the fallback chain and diversity selection.
type Retriever struct {
	store    QuestionStore
	embedder Embedder
	cfg      Config
	logger   *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option customises a Retriever.
type Option func(*Retriever)

// WithRand makes selection deterministic in tests.
func WithRand(r *rand.Rand) Option {
	return func(rt *Retriever) { rt.rnd = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(rt *Retriever) { rt.logger = l }
}

// New builds a Retriever. embedder may be nil when every stored question carries an embedding.
func New(store QuestionStore, embedder Embedder, cfg Config, opts ...Option) *Retriever {
	def := DefaultConfig()
	if cfg.Candidates <= 0 {
		cfg.Candidates = def.Candidates
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = def.RecentWindow
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	r := &Retriever{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   zap.NewNop(),
		rnd:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type attempt struct {
	step   string
	query  string
	filter domain.QuestionFilter
}

// Next returns a question the session has not seen. When nothing is left it
// returns domain.ErrStoreEmpty if the store holds no questions at all, and
// domain.ErrQuestionsExhausted otherwise. Store failures are returned as
// *domain.CollaboratorError.
func (r *Retriever) Next(ctx context.Context, s *domain.Session, excludeExtra []string) (domain.Question, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	exclude := mergeExclusions(s.AskedQuestionIDs, excludeExtra)
	difficulty := r.resolveDifficulty(s.Difficulty)

	for _, a := range r.plan(s, difficulty) {
		candidates, err := r.store.Search(ctx, a.query, a.filter, r.cfg.Candidates, exclude)
		if err != nil {
			return domain.Question{}, domain.WrapCollaborator("question_store", "search", err)
		}
		candidates = dropExcluded(candidates, exclude)
		if len(candidates) == 0 {
			continue
		}
		metrics.RetrievalSteps.WithLabelValues(a.step).Inc()
		r.logger.Debug("retrieved candidates",
			zap.String("session_id", s.ID),
			zap.String("step", a.step),
			zap.String("query", a.query),
			zap.Int("candidates", len(candidates)))
		return r.selectCandidate(ctx, s, candidates), nil
	}

	metrics.RetrievalSteps.WithLabelValues("none").Inc()
	total, err := r.store.Count(ctx, nil)
	if err != nil {
		return domain.Question{}, domain.WrapCollaborator("question_store", "count", err)
	}
	if total == 0 {
		return domain.Question{}, domain.ErrStoreEmpty
	}
	r.logger.Info("questions exhausted for session",
		zap.String("session_id", s.ID),
		zap.Int("store_total", total),
		zap.Int("asked", len(s.AskedQuestionIDs)),
		zap.String("difficulty", string(difficulty)))
	return domain.Question{}, domain.ErrQuestionsExhausted
}

// plan lists the relaxation chain in order.
func (r *Retriever) plan(s *domain.Session, difficulty domain.Difficulty) []attempt {
	base := domain.QuestionFilter{
		Difficulty:   difficulty,
		Type:         domain.QuestionTypeText,
		ReviewStatus: domain.ReviewApproved,
		Categories:   slices.Clone(s.Categories),
	}
	plan := []attempt{
		{step: "semantic", query: BuildQuery(s), filter: base},
		{step: "generic", query: GenericQuery, filter: base},
	}
	for _, d := range domain.ConcreteDifficulties {
		if d == difficulty {
			continue
		}
		f := base
		f.Difficulty = d
		plan = append(plan, attempt{step: "other_difficulty", query: GenericQuery, filter: f})
	}
	plan = append(plan,
		attempt{step: "no_category", query: LastResortQuery, filter: domain.QuestionFilter{
			Type: domain.QuestionTypeText, ReviewStatus: domain.ReviewApproved,
		}},
		attempt{step: "type_only", query: LastResortQuery, filter: domain.QuestionFilter{
			Type: domain.QuestionTypeText,
		}},
	)
	return plan
}

func (r *Retriever) resolveDifficulty(d domain.Difficulty) domain.Difficulty {
	if d != domain.DifficultyRandom && slices.Contains(domain.ConcreteDifficulties, d) {
		return d
	}
	if d != domain.DifficultyRandom {
		return domain.DifficultyMedium
	}
	return domain.ConcreteDifficulties[r.intN(len(domain.ConcreteDifficulties))]
}

func (r *Retriever) intN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.IntN(n)
}

// selectCandidate picks one candidate. The first question of a session is a
// uniform draw; later ones favour distance from the recently asked questions.
func (r *Retriever) selectCandidate(ctx context.Context, s *domain.Session, candidates []domain.Question) domain.Question {
	if len(s.AskedQuestionIDs) == 0 {
		return candidates[r.intN(len(candidates))]
	}

	recent := r.recentEmbeddings(ctx, s)
	if len(recent) == 0 {
		return r.selectByTopic(s, candidates)
	}

	scored := r.ScoreDiversity(ctx, candidates, recent)
	top := min(r.cfg.TopK, len(scored))
	pick := scored[r.intN(top)]
	r.logger.Debug("selected diverse question",
		zap.String("session_id", s.ID),
		zap.String("question_id", pick.Question.ID),
		zap.Float64("diversity", pick.Diversity))
	return pick.Question
}

// Scored is a candidate with its diversity score.
type Scored struct {
	Question  domain.Question
	Diversity float64
}

// ScoreDiversity scores candidates by mean cosine distance to recent and
// returns them sorted best first. Candidates whose embedding cannot be
// produced score 0.
func (r *Retriever) ScoreDiversity(ctx context.Context, candidates []domain.Question, recent [][]float32) []Scored {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{Question: c}
		vec, err := r.embedding(ctx, c)
		if err != nil {
			r.logger.Warn("candidate embedding failed", zap.String("question_id", c.ID), zap.Error(err))
			continue
		}
		scored[i].Diversity = meanDistance(vec, recent)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Diversity > scored[j].Diversity
	})
	return scored
}

func meanDistance(vec []float32, recent [][]float32) float64 {
	var sum float64
	for _, other := range recent {
		sum += textutil.CosineDistance(vec, other)
	}
	return sum / float64(len(recent))
}

// recentEmbeddings loads the last RecentWindow asked questions. Questions that
// cannot be loaded or embedded are left out.
func (r *Retriever) recentEmbeddings(ctx context.Context, s *domain.Session) [][]float32 {
	ids := s.AskedQuestionIDs
	if len(ids) > r.cfg.RecentWindow {
		ids = ids[len(ids)-r.cfg.RecentWindow:]
	}
	var out [][]float32
	for _, id := range ids {
		q, err := r.store.Get(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrQuestionNotFound) {
				r.logger.Warn("recent question lookup failed", zap.String("question_id", id), zap.Error(err))
			}
			continue
		}
		vec, err := r.embedding(ctx, q)
		if err != nil {
			r.logger.Warn("recent question embedding failed", zap.String("question_id", id), zap.Error(err))
			continue
		}
		out = append(out, vec)
	}
	return out
}

var errNoEmbedder = errors.New("question has no embedding and no embedder is configured")

func (r *Retriever) embedding(ctx context.Context, q domain.Question) ([]float32, error) {
	if len(q.Embedding) > 0 {
		return q.Embedding, nil
	}
	if r.embedder == nil {
		return nil, errNoEmbedder
	}
	return r.embedder.Embed(ctx, q.Text)
}

// selectByTopic avoids the current topic when possible and draws uniformly.
func (r *Retriever) selectByTopic(s *domain.Session, candidates []domain.Question) domain.Question {
	pool := candidates
	if s.CurrentTopic != "" {
		var other []domain.Question
		current := textutil.Normalize(s.CurrentTopic)
		for _, c := range candidates {
			if textutil.Normalize(c.Topic) != current {
				other = append(other, c)
			}
		}
		if len(other) > 0 {
			pool = other
		}
	}
	return pool[r.intN(len(pool))]
}

func mergeExclusions(asked, extra []string) []string {
	out := make([]string, 0, len(asked)+len(extra))
	seen := make(map[string]struct{}, cap(out))
	for _, list := range [][]string{asked, extra} {
		for _, id := range list {
			if _, ok := seen[id]; ok || id == "" {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func dropExcluded(candidates []domain.Question, exclude []string) []domain.Question {
	if len(exclude) == 0 {
		return candidates
	}
	return slices.DeleteFunc(slices.Clone(candidates), func(q domain.Question) bool {
		return slices.Contains(exclude, q.ID)
	})
}
