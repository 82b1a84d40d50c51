// Package eventlog is the append-only, per-game record of accepted actions.
// Events are keyed by (game id, clock) and written at most once.
package eventlog

import (
	"context"
	"time"

	"github.com/cventus/azif/internal/models"
)

// PageSize bounds how many events a single List call returns.
const PageSize = 20

// DefaultRetention is how long events are kept before they may expire.
const DefaultRetention = 90 * 24 * time.Hour

// Range selects events with Since < clock <= Until. Nil bounds are open.
type Range struct {
	Since *int64
	Until *int64
}

func (r Range) contains(clock int64) bool {
	if r.Since != nil && clock <= *r.Since {
		return false
	}
	if r.Until != nil && clock > *r.Until {
		return false
	}
	return true
}

// Log is the event log contract.
type Log interface {
	// Write stores ev. It fails with an apperr conflict if an event already
	// exists at (ev.GameID, ev.Clock).
	Write(ctx context.Context, ev models.GameEvent) (models.GameEvent, error)
	// Get returns the event at clock or an apperr not-found error.
	Get(ctx context.Context, gameID string, clock int64) (models.GameEvent, error)
	// List returns up to PageSize events in r, most recent first. Expired events
	// are silently missing.
	List(ctx context.Context, gameID string, r Range) ([]models.GameEvent, error)
}
