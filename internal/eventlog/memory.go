// internal/eventlog/memory.go
package eventlog

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
)

type entry struct {
	ev      models.GameEvent
	expires time.Time
}

// Memory keeps events in process. Entries expire lazily once their retention
// has passed, mirroring a TTL-backed store.
type Memory struct {
	mu        sync.RWMutex
	games     map[string]map[int64]entry
	retention time.Duration
	now       func() time.Time
}

var _ Log = (*Memory)(nil)

// NewMemory creates an empty log. A zero retention uses DefaultRetention.
func NewMemory(retention time.Duration, now func() time.Time) *Memory {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if now == nil {
		now = time.Now
	}
	return &Memory{
		games:     make(map[string]map[int64]entry),
		retention: retention,
		now:       now,
	}
}

func (m *Memory) Write(_ context.Context, ev models.GameEvent) (models.GameEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	events, ok := m.games[ev.GameID]
	if !ok {
		events = make(map[int64]entry)
		m.games[ev.GameID] = events
	}
	if e, exists := events[ev.Clock]; exists && now.Before(e.expires) {
		return models.GameEvent{}, apperr.Conflictf("event %s@%d already written", ev.GameID, ev.Clock)
	}
	events[ev.Clock] = entry{ev: ev, expires: now.Add(m.retention)}
	return ev, nil
}

func (m *Memory) Get(_ context.Context, gameID string, clock int64) (models.GameEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.games[gameID][clock]
	if !ok || !m.now().Before(e.expires) {
		return models.GameEvent{}, apperr.NotFoundf("event %s@%d not found", gameID, clock)
	}
	return e.ev, nil
}

func (m *Memory) List(_ context.Context, gameID string, r Range) ([]models.GameEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	events := m.games[gameID]
	clocks := make([]int64, 0, len(events))
	for clock, e := range events {
		if r.contains(clock) && now.Before(e.expires) {
			clocks = append(clocks, clock)
		}
	}
	slices.Sort(clocks)
	slices.Reverse(clocks)
	if len(clocks) > PageSize {
		clocks = clocks[:PageSize]
	}

	out := make([]models.GameEvent, len(clocks))
	for i, clock := range clocks {
		out[i] = events[clock].ev
	}
	return out, nil
}
