// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// They contain NO framework code - just the chat session model and the search flow.
package usecases

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/amplon-searchbot/internal/domain/entities"
	"github.com/0xcro3dile/amplon-searchbot/internal/domain/ports"
)

// DefaultWelcome is the greeting a fresh session starts with.
const DefaultWelcome = "Hi! I'm Amplon Search Bot. I can help you find info from YouTube videos and PDFs. What would you like to search for?"

// ErrMessageNotFound is returned by Update when no message has the given id.
var ErrMessageNotFound = errors.New("message not found")

// Session is the state store of one chat widget instance: an append-only
// transcript, the busy flag and the input draft.
// Safe for concurrent use; observers run outside the lock.
type Session struct {
	id string

	mu         sync.Mutex
	messages   []entities.Message
	index      map[string]int // message ID -> position
	busy       bool
	draft      string
	lastActive time.Time
	seq        uint64 // bumped on every mutation
	observers  map[int]ports.SessionObserver
	nextObs    int

	now func() time.Time
}

// NewSession creates a session. A non-empty welcome is seeded as the first bot message.
func NewSession(welcome string) *Session {
	s := &Session{
		id:        uuid.NewString(),
		index:     make(map[string]int),
		observers: make(map[int]ports.SessionObserver),
		now:       time.Now,
	}
	s.lastActive = s.now()
	if welcome != "" {
		s.appendLocked(entities.Message{Role: entities.RoleBot, Text: welcome})
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Append assigns a fresh id and timestamp to msg, appends it and returns the id.
func (s *Session) Append(msg entities.Message) string {
	s.mu.Lock()
	id := s.appendLocked(msg)
	snap, obs := s.snapshotLocked()
	s.mu.Unlock()

	notify(obs, snap)
	return id
}

func (s *Session) appendLocked(msg entities.Message) string {
	msg = msg.Clone()
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.now()
	if msg.Role == entities.RoleUser {
		msg.VideoHits = nil
		msg.DocHits = nil
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
	s.lastActive = msg.CreatedAt
	s.seq++
	return msg.ID
}

// Update merges the set fields of patch into the message with the given id.
// An unknown id leaves every message untouched and returns ErrMessageNotFound.
func (s *Session) Update(id string, patch entities.Patch) error {
	s.mu.Lock()
	pos, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	patch.Apply(&s.messages[pos])
	if s.messages[pos].Role == entities.RoleUser {
		s.messages[pos].VideoHits = nil
		s.messages[pos].DocHits = nil
	}
	s.lastActive = s.now()
	s.seq++
	snap, obs := s.snapshotLocked()
	s.mu.Unlock()

	notify(obs, snap)
	return nil
}

// Messages returns a copy of the transcript in insertion order.
func (s *Session) Messages() []entities.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyMessagesLocked()
}

// Snapshot returns a copy of the whole session state.
func (s *Session) Snapshot() entities.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, _ := s.snapshotLocked()
	return snap
}

// Busy reports whether a submission is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Draft returns the current contents of the input field.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft replaces the input field contents.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.lastActive = s.now()
	s.seq++
	snap, obs := s.snapshotLocked()
	s.mu.Unlock()

	notify(obs, snap)
}

// LastActive returns the time of the last mutation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Subscribe registers o for change notifications. The returned func unregisters it.
func (s *Session) Subscribe(o ports.SessionObserver) (unsubscribe func()) {
	s.mu.Lock()
	key := s.nextObs
	s.nextObs++
	s.observers[key] = o
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, key)
			s.mu.Unlock()
		})
	}
}

// tryAcquire sets the busy flag unless it is already set.
func (s *Session) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	s.seq++
	return true
}

// release clears the busy flag and the input field.
func (s *Session) release() {
	s.mu.Lock()
	s.busy = false
	s.draft = ""
	s.lastActive = s.now()
	s.seq++
	snap, obs := s.snapshotLocked()
	s.mu.Unlock()

	notify(obs, snap)
}

func (s *Session) copyMessagesLocked() []entities.Message {
	out := make([]entities.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

func (s *Session) snapshotLocked() (entities.Snapshot, []ports.SessionObserver) {
	snap := entities.Snapshot{
		SessionID: s.id,
		Seq:       s.seq,
		Messages:  s.copyMessagesLocked(),
		Busy:      s.busy,
		Draft:     s.draft,
	}
	if len(s.observers) == 0 {
		return snap, nil
	}
	obs := make([]ports.SessionObserver, 0, len(s.observers))
	for _, o := range s.observers {
		obs = append(obs, o)
	}
	return snap, obs
}

// Observers are called outside the session lock, so two mutations racing on
// different goroutines may deliver their snapshots out of order.
func notify(obs []ports.SessionObserver, snap entities.Snapshot) {
	for _, o := range obs {
		o.SessionChanged(snap)
	}
}

// latestObserver forwards snapshots in Seq order, dropping any older than the
// last one delivered.
type latestObserver struct {
	mu   sync.Mutex
	last uint64
	seen bool
	next ports.SessionObserver
}

// Latest wraps o so that it only ever sees newer snapshots, one at a time.
func Latest(o ports.SessionObserver) ports.SessionObserver {
	return &latestObserver{next: o}
}

func (l *latestObserver) SessionChanged(snap entities.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen && snap.Seq <= l.last {
		return
	}
	l.last, l.seen = snap.Seq, true
	l.next.SessionChanged(snap)
}
