package memory

import (
	"context"
	"sync"
	"time"

	"quiz-agent-service/internal/domain"
)

// SessionStore keeps sessions in process. Callers always receive clones, so
// a session is only changed through Update.
type SessionStore struct {
	batch int
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]*domain.Session
	locks    map[string]chan struct{}
}

// NewSessionStore creates a store whose Sweep removes expired sessions in
// batches of at most batch entries per lock acquisition.
func NewSessionStore(batch int) *SessionStore {
	if batch <= 0 {
		batch = 100
	}
	return &SessionStore{
		batch:    batch,
		clock:    time.Now,
		sessions: make(map[string]*domain.Session),
		locks:    make(map[string]chan struct{}),
	}
}

func (s *SessionStore) Create(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return domain.ErrInvalidArgument
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Get returns a copy of the session. Expired sessions are dropped on read.
func (s *SessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	now := s.clock()
	s.mu.RLock()
	session, ok := s.sessions[id]
	if ok && !session.Expired(now) {
		out := session.Clone()
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	s.mu.Lock()
	if current, ok := s.sessions[id]; ok && current.Expired(now) {
		delete(s.sessions, id)
		delete(s.locks, id)
	}
	s.mu.Unlock()
	return nil, domain.ErrSessionNotFound
}

// Update replaces a stored session. A session that was deleted or swept in
// the meantime is not recreated.
func (s *SessionStore) Update(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, id)
	delete(s.locks, id)
	return nil
}

// Lock serialises turns on one session. It blocks until the lock is free or
// ctx is done. Unknown ids get ErrSessionNotFound and leave no lock behind.
func (s *SessionStore) Lock(ctx context.Context, id string) (func(), error) {
	s.mu.Lock()
	if _, exists := s.sessions[id]; !exists {
		s.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	s.mu.Unlock()

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}

// Sweep removes sessions that expired before now and reports how many went.
func (s *SessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.RLock()
	var expired []string
	for id, session := range s.sessions {
		if session.Expired(now) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for start := 0; start < len(expired); start += s.batch {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		end := min(start+s.batch, len(expired))
		s.mu.Lock()
		for _, id := range expired[start:end] {
			// a turn may have refreshed it since the scan
			if session, ok := s.sessions[id]; ok && session.Expired(now) {
				delete(s.sessions, id)
				delete(s.locks, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed, nil
}

func (s *SessionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}
