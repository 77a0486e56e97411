// Package sessionstore provides the registry of live chat sessions.
// Clean Architecture: Adapter holding usecases.Session values for front-ends
// that serve many chats at once (web clients, Telegram chats).
// Sessions live in memory only and disappear with the process.
package sessionstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/0xcro3dile/amplon-searchbot/internal/domain/usecases"
)

// ErrSessionNotFound is returned by Get for unknown or swept sessions.
var ErrSessionNotFound = errors.New("session not found")

// InMemoryStore maps session keys to sessions.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*usecases.Session // key -> session
	welcome  string
	onEvict  func(key string, sess *usecases.Session)
}

// NewInMemoryStore creates an empty registry. New sessions are seeded with welcome.
func NewInMemoryStore(welcome string) *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*usecases.Session),
		welcome:  welcome,
	}
}

// Create starts a new session keyed by its own ID.
func (s *InMemoryStore) Create() *usecases.Session {
	sess := usecases.NewSession(s.welcome)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID()] = sess
	return sess
}

// Get returns the session stored under key.
func (s *InMemoryStore) Get(key string) (*usecases.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// GetOrCreate returns the session stored under an external key such as a chat ID,
// creating it on first use.
func (s *InMemoryStore) GetOrCreate(key string) (sess *usecases.Session, created bool) {
	s.mu.RLock()
	sess, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok {
		return sess, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[key]; ok {
		return sess, false
	}
	sess = usecases.NewSession(s.welcome)
	s.sessions[key] = sess
	return sess, true
}

// Len returns the number of live sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// OnEvict registers fn to be called for every session Sweep removes.
func (s *InMemoryStore) OnEvict(fn func(key string, sess *usecases.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = fn
}

// Sweep drops sessions idle for longer than idle. Busy sessions are kept.
// The evict hook runs after the registry lock is released.
func (s *InMemoryStore) Sweep(idle time.Duration, now time.Time) int {
	type evicted struct {
		key  string
		sess *usecases.Session
	}

	s.mu.Lock()
	var gone []evicted
	for key, sess := range s.sessions {
		if sess.Busy() || now.Sub(sess.LastActive()) <= idle {
			continue
		}
		delete(s.sessions, key)
		gone = append(gone, evicted{key: key, sess: sess})
	}
	hook := s.onEvict
	s.mu.Unlock()

	if hook != nil {
		for _, e := range gone {
			hook(e.key, e.sess)
		}
	}
	return len(gone)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *InMemoryStore) RunSweeper(ctx context.Context, interval, idle time.Duration, logger *slog.Logger) {
	if interval <= 0 || idle <= 0 {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(idle, now); n > 0 {
				logger.Debug("sessions swept", slog.Int("removed", n), slog.Int("live", s.Len()))
			}
		}
	}
}
