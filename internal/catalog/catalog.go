// Package catalog serves the read-only card content that games are built from.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
)

// Catalog looks up content sets.
type Catalog interface {
	// Get returns a full content set or an apperr not-found error.
	Get(ctx context.Context, id string) (*models.ContentSet, error)
	// List returns previews of every content set, sorted by id.
	List(ctx context.Context) ([]models.ContentPreview, error)
}

// DecodeJSON reads a JSON array of content sets, as used for seeding.
func DecodeJSON(r io.Reader) ([]models.ContentSet, error) {
	var sets []models.ContentSet
	if err := json.NewDecoder(r).Decode(&sets); err != nil {
		return nil, fmt.Errorf("decode content sets: %w", err)
	}
	for _, s := range sets {
		if s.ID == "" {
			return nil, fmt.Errorf("content set %q has no id", s.Name)
		}
	}
	return sets, nil
}

// Memory is a Catalog over a fixed slice of sets.
type Memory struct {
	mu   sync.RWMutex
	sets map[string]models.ContentSet
}

var _ Catalog = (*Memory)(nil)

// NewMemory creates a catalog holding sets.
func NewMemory(sets ...models.ContentSet) *Memory {
	m := &Memory{sets: make(map[string]models.ContentSet, len(sets))}
	for _, s := range sets {
		m.sets[s.ID] = s
	}
	return m
}

func (m *Memory) Get(_ context.Context, id string) (*models.ContentSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sets[id]
	if !ok {
		return nil, apperr.NotFoundf("content set %s not found", id)
	}
	s.Cards = slices.Clone(s.Cards)
	return &s, nil
}

func (m *Memory) List(_ context.Context) ([]models.ContentPreview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ContentPreview, 0, len(m.sets))
	for _, s := range m.sets {
		out = append(out, models.ContentPreview{ID: s.ID, Name: s.Name})
	}
	slices.SortFunc(out, func(a, b models.ContentPreview) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}
