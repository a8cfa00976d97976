package session

import (
	"log"
	"sync"

	"github.com/SoCo-NP/SoCo/pkg/types"
)

// Registry is the ordered set of live sessions.
//
// ARCHITECTURAL DISCOVERY: One mutex covers membership and every fan-out, so a
// broadcast never interleaves with a join announcement or a removal. A slow peer
// stalls the fan-out for everyone; there is no per-peer queue.
type Registry struct {
	mu       sync.Mutex
	sessions []*Session // connection order
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a freshly accepted session
func (r *Registry) Add(s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
	return nil
}

// Remove drops s and reports whether it was present
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, cur := range r.sessions {
		if cur == s {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			return true
		}
	}
	return false
}

// Broadcast sends line to every session except the sender and returns how
// many writes succeeded. Failed peers are logged and skipped; their own read
// loop notices the broken connection.
func (r *Registry) Broadcast(line string, except *Session) int {
	return r.Multicast(line, func(s *Session) bool { return s != except })
}

// Multicast sends line to every open session accepted by match
func (r *Registry) Multicast(line string, match func(*Session) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var targets []*Session
	for _, s := range r.sessions {
		if match(s) {
			targets = append(targets, s)
		}
	}
	return Deliver(targets, line, nil)
}

// Exclusive runs fn with the registry locked and the sessions in connection order.
// fn must not call back into the registry; use Deliver for fan-out inside it.
func (r *Registry) Exclusive(fn func(sessions []*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.sessions)
}

// Deliver is the unlocked fan-out used inside Exclusive
func Deliver(sessions []*Session, line string, except *Session) int {
	delivered := 0
	for _, s := range sessions {
		if s == except || s.State() == StateClosed {
			continue
		}
		if err := s.Send(line); err != nil {
			log.Printf("Delivery failed: session=%s nick=%s error=%v", s.ID(), s.Nickname(), err)
			continue
		}
		delivered++
	}
	return delivered
}

// Roster returns the joined participants in connection order. Duplicate
// nicknames appear once per session.
func (r *Registry) Roster() []types.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	roster := make([]types.Participant, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.Joined() {
			roster = append(roster, s.Participant())
		}
	}
	return roster
}

// SessionCount counts all live sessions, joined or not
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sessions returns a copy of the live sessions
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// CloseAll closes every session's connection; read loops then clean up
func (r *Registry) CloseAll() {
	for _, s := range r.Sessions() {
		if err := s.Close(); err != nil {
			log.Printf("Failed to close session %s: %v", s.ID(), err)
		}
	}
}
