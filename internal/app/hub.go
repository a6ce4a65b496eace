package app

import (
	"sort"
	"sync"
	"time"

	"quiz-agent-service/internal/domain"
)

const subscriberBuffer = 8

// Hub fans scoreboard updates out to the subscribers of each session.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[chan domain.Scoreboard]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[chan domain.Scoreboard]struct{})}
}

// Subscribe registers a channel for sessionID and primes it with initial.
// The returned cancel is safe to call more than once.
func (h *Hub) Subscribe(sessionID string, initial domain.Scoreboard) (<-chan domain.Scoreboard, func()) {
	ch := make(chan domain.Scoreboard, subscriberBuffer)
	ch <- initial

	h.mu.Lock()
	subs, ok := h.topics[sessionID]
	if !ok {
		subs = make(map[chan domain.Scoreboard]struct{})
		h.topics[sessionID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.topics[sessionID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.topics, sessionID)
		}
	}
	return ch, cancel
}

// Publish delivers sb to every subscriber of its session. A subscriber whose
// buffer is full loses its oldest pending update.
func (h *Hub) Publish(sb domain.Scoreboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.topics[sb.SessionID] {
		select {
		case ch <- sb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- sb
		}
	}
}

// Close disconnects every subscriber of sessionID.
func (h *Hub) Close(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.topics[sessionID] {
		close(ch)
	}
	delete(h.topics, sessionID)
}

// Subscribers reports how many channels listen on sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[sessionID])
}

// BuildScoreboard orders participants by score, then by who reached it
// first, then by name.
func BuildScoreboard(s *domain.Session, now time.Time) domain.Scoreboard {
	ps := make([]domain.Participant, len(s.Participants))
	copy(ps, s.Participants)
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].Score != ps[j].Score {
			return ps[i].Score > ps[j].Score
		}
		if !ps[i].LastUpdated.Equal(ps[j].LastUpdated) {
			return ps[i].LastUpdated.Before(ps[j].LastUpdated)
		}
		return ps[i].DisplayName < ps[j].DisplayName
	})

	entries := make([]domain.ScoreboardEntry, len(ps))
	for i, p := range ps {
		entries[i] = domain.ScoreboardEntry{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Score:         p.Score,
			Answered:      p.AnsweredCount,
		}
	}
	return domain.Scoreboard{
		SessionID: s.ID,
		Phase:     s.Phase,
		Entries:   entries,
		UpdatedAt: now,
	}
}
