// Package session tracks relay connections: one Session per accepted
// connection and the ordered Registry the hub fans out over.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SoCo-NP/SoCo/pkg/interfaces"
	"github.com/SoCo-NP/SoCo/pkg/types"
)

// State is the lifecycle position of a Session
type State int

const (
	StateConnected State = iota // accepted, no JOIN yet
	StateJoined                 // JOIN processed
	StateActive                 // relayed at least one message after JOIN
	StateClosed                 // terminal
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the server side of one client connection.
// ARCHITECTURAL DISCOVERY: The read goroutine owns the lifecycle, the registry only
// borrows the session for fan-out, so identity fields are guarded for cross-goroutine reads
type Session struct {
	id          string
	conn        interfaces.Conn
	connectedAt time.Time

	mu       sync.RWMutex
	nickname string
	role     types.Role
	state    State
}

// New wraps an accepted connection with the default identity
func New(conn interfaces.Conn) *Session {
	return &Session{
		id:          uuid.NewString(),
		conn:        conn,
		connectedAt: time.Now(),
		nickname:    types.DefaultNickname,
		role:        types.DefaultRole,
		state:       StateConnected,
	}
}

// ID is a process-unique identifier used to correlate log lines
func (s *Session) ID() string {
	return s.id
}

func (s *Session) Conn() interfaces.Conn {
	return s.conn
}

// ConnectedAt is the accept time; the hub logs session duration from it
func (s *Session) ConnectedAt() time.Time {
	return s.connectedAt
}

func (s *Session) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

func (s *Session) Role() types.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Joined reports whether JOIN has been processed and the session is still open
func (s *Session) Joined() bool {
	st := s.State()
	return st == StateJoined || st == StateActive
}

// Participant returns the roster view of the session
func (s *Session) Participant() types.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.Participant{Nickname: s.nickname, Role: s.role}
}

// Join records the declared identity. Only the first JOIN counts.
// An empty nickname keeps the default.
func (s *Session) Join(nickname string, role types.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return ErrSessionClosed
	case StateJoined, StateActive:
		return ErrAlreadyJoined
	}

	if nickname != "" {
		s.nickname = nickname
	}
	s.role = role
	s.state = StateJoined
	return nil
}

// Touch moves a joined session to Active
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateJoined {
		s.state = StateActive
	}
}

// Send writes one line to the client
func (s *Session) Send(line string) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	return s.conn.WriteLine(line)
}

// Close marks the session closed and closes its connection. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.mu.Unlock()

	return s.conn.Close()
}
