package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quiz-agent-service/internal/domain"
)

const (
	sessionIndexKey = "quiz:sessions"
	lockTTL         = 30 * time.Second
	lockRetry       = 20 * time.Millisecond
)

// unlockScript deletes the lock only if this holder still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// renewScript extends the lock only if this holder still owns it.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// SessionStore persists sessions as JSON with a key expiry matching the
// session's own. Every id is also kept in an index set so Sweep and Count
// can find sessions without SCAN.
type SessionStore struct {
	client *redis.Client
	batch  int64
	clock  func() time.Time

	lockTTL   time.Duration
	lockRenew time.Duration
}

func NewSessionStore(client *redis.Client, batch int) *SessionStore {
	if batch <= 0 {
		batch = 100
	}
	return &SessionStore{
		client:    client,
		batch:     int64(batch),
		clock:     time.Now,
		lockTTL:   lockTTL,
		lockRenew: lockTTL / 3,
	}
}

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, s.key(session.ID), data, s.ttl(session)).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: session %s already exists", domain.ErrInvalidArgument, session.ID)
	}
	return s.client.SAdd(ctx, sessionIndexKey, session.ID).Err()
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.Expired(s.clock()) {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

// Update overwrites an existing session only (SET XX), so a session deleted
// mid-turn stays deleted.
func (s *SessionStore) Update(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	err = s.client.SetArgs(ctx, s.key(session.ID), data, redis.SetArgs{Mode: "XX", TTL: s.ttl(session)}).Err()
	if errors.Is(err, redis.Nil) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.key(id))
	pipe.SRem(ctx, sessionIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// Lock takes a per-session lock with SET NX and a safety expiry. It polls
// until the lock is acquired or ctx is done. While held, the expiry is
// extended every lockRenew and only lapses if the holder dies.
func (s *SessionStore) Lock(ctx context.Context, id string) (func(), error) {
	key := s.key(id) + ":lock"
	token := uuid.NewString()
	ticker := time.NewTicker(lockRetry)
	defer ticker.Stop()
	for {
		ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock session: %w", err)
		}
		if ok {
			return s.holdLock(key, token), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *SessionStore) holdLock(key, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.lockRenew)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				owned, err := renewScript.Run(context.Background(), s.client, []string{key}, token, s.lockTTL.Milliseconds()).Int()
				if err == nil && owned == 0 {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			_ = unlockScript.Run(context.Background(), s.client, []string{key}, token).Err()
		})
	}
}

// Sweep drops index entries whose session key has expired. Redis already
// removed the payloads; this keeps the index and Count honest.
func (s *SessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	var cursor uint64
	for {
		ids, next, err := s.client.SScan(ctx, sessionIndexKey, cursor, "", s.batch).Result()
		if err != nil {
			return removed, fmt.Errorf("scan sessions: %w", err)
		}
		if len(ids) > 0 {
			n, err := s.sweepBatch(ctx, ids, now)
			removed += n
			if err != nil {
				return removed, err
			}
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

func (s *SessionStore) sweepBatch(ctx context.Context, ids []string, now time.Time) (int, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("load sessions: %w", err)
	}
	var stale []any
	var staleKeys []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var session domain.Session
		if json.Unmarshal([]byte(raw), &session) == nil && session.Expired(now) {
			stale = append(stale, ids[i])
			staleKeys = append(staleKeys, keys[i])
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, sessionIndexKey, stale...)
	if len(staleKeys) > 0 {
		pipe.Del(ctx, staleKeys...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("remove expired sessions: %w", err)
	}
	return len(stale), nil
}

func (s *SessionStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, sessionIndexKey).Result()
	return int(n), err
}

func (s *SessionStore) key(id string) string {
	return "quiz:session:" + id
}

func (s *SessionStore) ttl(session *domain.Session) time.Duration {
	if session.ExpiresAt.IsZero() {
		return 0
	}
	ttl := session.ExpiresAt.Sub(s.clock())
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}
