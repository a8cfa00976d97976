package interfaces

import "github.com/SoCo-NP/SoCo/pkg/types"

// RosterProvider exposes the live participants of the relay
type RosterProvider interface {
	// Roster returns a snapshot in connection order; duplicates are kept
	Roster() []types.Participant

	// SessionCount counts open connections, joined or not
	SessionCount() int
}
