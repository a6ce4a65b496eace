package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-agent-service/internal/domain"
)

// QuestionLoader fetches a question from the backing store.
type QuestionLoader interface {
	Get(ctx context.Context, id string) (domain.Question, error)
}

// QuestionCache keeps recently used questions in process so each turn does
// not hit the store for the current question.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestion),
	}
}

func (c *QuestionCache) Get(ctx context.Context, id string) (domain.Question, error) {
	if q, ok := c.lookup(id); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		if q, ok := c.lookup(id); ok {
			return q, nil
		}
		q, err := c.loader.Get(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}
		c.mu.Lock()
		c.cache[id] = cachedQuestion{question: q, expiresAt: c.clock().Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// Invalidate drops id so the next Get reloads it.
func (c *QuestionCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	delete(c.cache, id)
	c.mu.Unlock()
	return nil
}

func (c *QuestionCache) lookup(id string) (domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[id]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Question{}, false
	}
	return entry.question, true
}

// ttlWithJitter adds up to 10% so entries loaded together expire apart.
func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	return c.ttl + time.Duration(c.rnd.Int63n(int64(c.ttl)/10+1))
}
