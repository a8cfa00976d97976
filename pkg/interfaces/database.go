package interfaces

import (
	"context"

	"github.com/SoCo-NP/SoCo/pkg/types"
)

// Journal records relay events for later inspection.
// ARCHITECTURAL DISCOVERY: Write-mostly; nothing in the relay reads it back to rebuild state
type Journal interface {
	// Record stores one event. Implementations stamp At when it is zero.
	Record(ctx context.Context, event *types.Event) error

	// Events lists the events of one run in insertion order
	Events(ctx context.Context, runID string) ([]*types.Event, error)

	// HealthCheck verifies the backing store answers queries
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and releases the store
	Close() error
}
