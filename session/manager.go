// Package session keeps live conversations addressable by handle so that
// front ends can run turns without owning conversation state themselves.
//
// Turns on one session run one at a time; turns on different sessions run
// in parallel.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/becomeliminal/sidekick/conversation"
	"github.com/becomeliminal/sidekick/turn"
)

// DefaultMaxSessions bounds the session table.
const DefaultMaxSessions = 1024

// ErrSessionNotFound is returned for unknown, closed or evicted handles.
var ErrSessionNotFound = errors.New("session not found")

// Processor runs a single turn against a conversation state.
type Processor interface {
	Process(ctx context.Context, state conversation.State, input string, choice string) (conversation.State, turn.Display, error)
}

// Info describes a live session.
type Info struct {
	ID       string
	Created  time.Time
	LastUsed time.Time
	Turns    int
}

type session struct {
	id      string
	created time.Time
	// sem serializes turns; a buffered channel so waiters can give up on ctx.
	sem chan struct{}

	mu       sync.Mutex
	state    conversation.State
	lastUsed time.Time
	turns    int
}

func (s *session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{ID: s.id, Created: s.created, LastUsed: s.lastUsed, Turns: s.turns}
}

// Manager owns the session table.
type Manager struct {
	processor Processor
	sessions  *lru.Cache[string, *session]
	onEvict   func(id string)
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures the manager.
type Option func(*managerOptions)

type managerOptions struct {
	maxSessions int
	onEvict     func(id string)
	logger      *zap.Logger
	now         func() time.Time
}

// WithMaxSessions sets how many sessions are kept before the least recently
// used one is evicted.
func WithMaxSessions(n int) Option {
	return func(o *managerOptions) {
		if n > 0 {
			o.maxSessions = n
		}
	}
}

// WithEvictHook is called with the handle of every evicted or closed session.
func WithEvictHook(fn func(id string)) Option {
	return func(o *managerOptions) {
		o.onEvict = fn
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *managerOptions) {
		o.logger = l.Named("session")
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) {
		o.now = now
	}
}

// NewManager creates a session manager driving turns through p.
func NewManager(p Processor, opts ...Option) (*Manager, error) {
	o := managerOptions{
		maxSessions: DefaultMaxSessions,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		processor: p,
		onEvict:   o.onEvict,
		logger:    o.logger,
		now:       o.now,
	}
	cache, err := lru.NewWithEvict[string, *session](o.maxSessions, m.evicted)
	if err != nil {
		return nil, fmt.Errorf("create session table: %w", err)
	}
	m.sessions = cache
	return m, nil
}

func (m *Manager) evicted(id string, _ *session) {
	m.logger.Debug("session removed", zap.String("session_id", id))
	if m.onEvict != nil {
		m.onEvict(id)
	}
}

// Create starts a fresh conversation and returns its handle.
func (m *Manager) Create() string {
	now := m.now()
	s := &session{
		id:       uuid.NewString(),
		created:  now,
		sem:      make(chan struct{}, 1),
		state:    conversation.New(),
		lastUsed: now,
	}
	m.sessions.Add(s.id, s)
	m.logger.Debug("session created", zap.String("session_id", s.id))
	return s.id
}

// Turn runs one turn on session id. It waits for any turn already running
// on the same session, giving up if ctx ends first. A failed turn leaves the
// session's state as it was.
func (m *Manager) Turn(ctx context.Context, id, input, choice string) (turn.Display, error) {
	s, ok := m.sessions.Get(id)
	if !ok {
		return turn.Display{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return turn.Display{}, ctx.Err()
	}
	defer func() { <-s.sem }()

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	next, display, err := m.processor.Process(ctx, state, input, choice)
	if err != nil {
		return turn.Display{}, err
	}

	s.mu.Lock()
	s.state = next
	s.lastUsed = m.now()
	s.turns++
	s.mu.Unlock()
	return display, nil
}

// State returns a snapshot of session id's conversation.
func (m *Manager) State(id string) (conversation.State, error) {
	s, ok := m.sessions.Peek(id)
	if !ok {
		return conversation.State{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

// Info returns metadata for session id.
func (m *Manager) Info(id string) (Info, error) {
	s, ok := m.sessions.Peek(id)
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.info(), nil
}

// Close discards session id. A turn already running completes but its
// result is not retained.
func (m *Manager) Close(id string) error {
	if !m.sessions.Remove(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}
