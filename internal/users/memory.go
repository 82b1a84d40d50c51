// internal/users/memory.go
package users

import (
	"context"
	"slices"
	"sync"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
	"github.com/cventus/azif/internal/store"
	"github.com/google/uuid"
)

// Memory keeps users in process. It doubles as the store's membership
// tracker so the in-memory game store and directory stay consistent.
type Memory struct {
	mu         sync.RWMutex
	cost       int
	byID       map[string]*models.User
	byUsername map[string]string
}

var (
	_ Directory         = (*Memory)(nil)
	_ store.Memberships = (*Memory)(nil)
)

// NewMemory creates an empty directory. A zero cost uses bcrypt's default.
func NewMemory(cost int) *Memory {
	return &Memory{
		cost:       cost,
		byID:       make(map[string]*models.User),
		byUsername: make(map[string]string),
	}
}

func (m *Memory) Create(_ context.Context, username, password string) (*models.User, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}
	hash, err := hashPassword(password, m.cost)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byUsername[username]; taken {
		return nil, apperr.Conflictf("username %s is taken", username)
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		GameIDs:      []string{},
	}
	m.byID[u.ID] = u
	m.byUsername[username] = u.ID
	return clone(u), nil
}

func (m *Memory) Authenticate(_ context.Context, username, password string) (*models.User, error) {
	m.mu.RLock()
	id, ok := m.byUsername[username]
	var u *models.User
	if ok {
		u = clone(m.byID[id])
	}
	m.mu.RUnlock()

	if u == nil {
		return nil, errBadCredentials
	}
	if err := checkPassword(u.PasswordHash, password); err != nil {
		return nil, err
	}
	return u, nil
}

func (m *Memory) Get(_ context.Context, userID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[userID]
	if !ok {
		return nil, apperr.NotFoundf("user %s not found", userID)
	}
	return clone(u), nil
}

// AddGame records that userID plays gameID. Recording it twice is a conflict.
func (m *Memory) AddGame(_ context.Context, userID, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[userID]
	if !ok {
		return apperr.NotFoundf("user %s not found", userID)
	}
	if slices.Contains(u.GameIDs, gameID) {
		return apperr.Conflictf("user %s already in game %s", userID, gameID)
	}
	u.GameIDs = append(u.GameIDs, gameID)
	return nil
}

// RemoveGame forgets that userID plays gameID.
func (m *Memory) RemoveGame(_ context.Context, userID, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[userID]
	if !ok {
		return apperr.NotFoundf("user %s not found", userID)
	}
	i := slices.Index(u.GameIDs, gameID)
	if i < 0 {
		return apperr.NotFoundf("user %s is not in game %s", userID, gameID)
	}
	u.GameIDs = slices.Delete(u.GameIDs, i, i+1)
	return nil
}

func clone(u *models.User) *models.User {
	c := *u
	c.GameIDs = slices.Clone(u.GameIDs)
	if c.GameIDs == nil {
		c.GameIDs = []string{}
	}
	return &c
}
