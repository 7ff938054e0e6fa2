package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealdossier/internal/domain"
)

const sessionEventBuffer = 16

// SessionHub fans session lifecycle events out to subscribers.
// Slow subscribers miss events instead of blocking the publisher.
type SessionHub struct {
	mu     sync.RWMutex
	subs   map[uint64]sessionSub
	next   uint64
	closed bool
	logger *zap.Logger
}

type sessionSub struct {
	userID uuid.UUID
	ch     chan domain.SessionEvent
}

// NewSessionHub creates an empty hub.
func NewSessionHub(logger *zap.Logger) *SessionHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHub{subs: make(map[uint64]sessionSub), logger: logger}
}

// Subscribe returns a channel of events for userID, or for every user when userID is uuid.Nil.
// The returned func unsubscribes and closes the channel.
func (h *SessionHub) Subscribe(userID uuid.UUID) (<-chan domain.SessionEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.SessionEvent, sessionEventBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = sessionSub{userID: userID, ch: ch}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
		})
	}
}

// Publish delivers ev to matching subscribers.
func (h *SessionHub) Publish(kind domain.SessionEventKind, userID uuid.UUID, sess *domain.Session) {
	ev := domain.SessionEvent{Kind: kind, UserID: userID, Session: sess, At: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.userID != uuid.Nil && sub.userID != userID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("sessionHub.Publish: subscriber full, event dropped",
				zap.String("kind", string(kind)), zap.String("user_id", userID.String()))
		}
	}
}

// Close closes every subscriber channel. Later subscriptions receive a closed channel.
func (h *SessionHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}
