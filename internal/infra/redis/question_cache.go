package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-agent-service/internal/domain"
)

// QuestionLoader fetches a question from the backing store.
type QuestionLoader interface {
	Get(ctx context.Context, id string) (domain.Question, error)
}

// QuestionCache shares loaded questions between instances as JSON strings
// under quiz:question:{id}. Embeddings are not cached.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Get(ctx context.Context, id string) (domain.Question, error) {
	if q, ok := c.lookup(ctx, id); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// another instance may have filled it meanwhile
		if q, ok := c.lookup(ctx, id); ok {
			return q, nil
		}
		q, err := c.loader.Get(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}
		cached := q
		cached.Embedding = nil
		if data, err := json.Marshal(cached); err == nil {
			_ = c.client.Set(ctx, c.key(id), data, c.ttlWithJitter()).Err()
		}
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *QuestionCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}

func (c *QuestionCache) lookup(ctx context.Context, id string) (domain.Question, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return domain.Question{}, false
	}
	var q domain.Question
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.Question{}, false
	}
	return q, true
}

func (c *QuestionCache) key(id string) string {
	return "quiz:question:" + id
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(int64(c.ttl)/10+1))
}
