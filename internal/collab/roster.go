package collab

import (
	"sync"

	"github.com/SoCo-NP/SoCo/pkg/types"
)

// Roster is the client's view of who is connected, built from ROLE_INFO.
// Keys are nicknames, so two participants with the same nickname merge into one entry.
type Roster struct {
	mu    sync.RWMutex
	roles map[string]types.Role
	order []string
}

func NewRoster() *Roster {
	return &Roster{roles: make(map[string]types.Role)}
}

// Add records or updates a participant
func (r *Roster) Add(nickname string, role types.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[nickname]; !ok {
		r.order = append(r.order, nickname)
	}
	r.roles[nickname] = role
}

func (r *Roster) Remove(nickname string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[nickname]; !ok {
		return
	}
	delete(r.roles, nickname)
	for i, n := range r.order {
		if n == nickname {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Role returns the last role announced for nickname
func (r *Roster) Role(nickname string) (types.Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[nickname]
	return role, ok
}

// Users lists nicknames in the order they were first seen
func (r *Roster) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Students lists nicknames announced with the Student role, for attendance
func (r *Roster) Students() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, n := range r.order {
		if r.roles[n] == types.RoleStudent {
			out = append(out, n)
		}
	}
	return out
}

// Color returns the cursor color for nickname
func (r *Roster) Color(nickname string) Color {
	return ColorFor(nickname)
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roles)
}

// Clear forgets everyone; called when the connection drops
func (r *Roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles = make(map[string]types.Role)
	r.order = nil
}
