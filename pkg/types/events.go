package types

import "time"

// EventKind classifies a journal entry
type EventKind string

const (
	EventJoin            EventKind = "join"
	EventLeave           EventKind = "leave"
	EventCompileGranted  EventKind = "compile_granted"
	EventCompileReleased EventKind = "compile_released"
	EventQuestion        EventKind = "question"
)

// Event is one journal row. RunID ties together the events of one server process.
type Event struct {
	ID       int64       `json:"id"`
	RunID    string      `json:"run_id"`
	Kind     EventKind   `json:"kind"`
	Nickname string      `json:"nickname"`
	Role     string      `json:"role,omitempty"`
	Path     VirtualPath `json:"path,omitempty"`
	Detail   string      `json:"detail,omitempty"`
	At       time.Time   `json:"at"`
}

// IsValidEventKind reports whether k is one the journal accepts
func IsValidEventKind(k EventKind) bool {
	switch k {
	case EventJoin, EventLeave, EventCompileGranted, EventCompileReleased, EventQuestion:
		return true
	default:
		return false
	}
}
