// internal/store/memory.go
package store

import (
	"context"
	"sync"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
)

// Memberships records which games a user belongs to. The memory backend calls
// it inside its critical section so that the game and the user change together.
type Memberships interface {
	AddGame(ctx context.Context, userID, gameID string) error
	RemoveGame(ctx context.Context, userID, gameID string) error
}

// Memory is an in-process Backend.
type Memory struct {
	mu      sync.Mutex
	games   map[string]*models.Game
	members Memberships
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty backend. members may be nil when no user
// directory needs to track memberships.
func NewMemory(members Memberships) *Memory {
	return &Memory{
		games:   make(map[string]*models.Game),
		members: members,
	}
}

func (m *Memory) Insert(_ context.Context, g *models.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.games[g.ID]; exists {
		return apperr.Conflictf("game %s already exists", g.ID)
	}
	m.games[g.ID] = g.Clone()
	return nil
}

func (m *Memory) Load(_ context.Context, id string) (*models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[id]
	if !ok {
		return nil, apperr.NotFoundf("game %s not found", id)
	}
	return g.Clone(), nil
}

func (m *Memory) Commit(_ context.Context, next *models.Game, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.games[next.ID]
	if !ok {
		return apperr.NotFoundf("game %s not found", next.ID)
	}
	if stored.Clock != expected {
		return apperr.Conflictf("game %s is at clock %d, not %d", next.ID, stored.Clock, expected)
	}
	m.games[next.ID] = next.Clone()
	return nil
}

func (m *Memory) CommitMembership(ctx context.Context, next *models.Game, expected int64, change MembershipChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.games[next.ID]
	if !ok {
		return apperr.NotFoundf("game %s not found", next.ID)
	}
	if stored.Clock != expected {
		return ErrTxCancelled
	}
	if m.members != nil {
		var err error
		if change.Join {
			err = m.members.AddGame(ctx, change.UserID, change.GameID)
		} else {
			err = m.members.RemoveGame(ctx, change.UserID, change.GameID)
		}
		if err != nil {
			return err
		}
	}
	m.games[next.ID] = next.Clone()
	return nil
}
