package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/cventus/azif/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRejectsDuplicateConnection(t *testing.T) {
	r := NewRegistry()
	s, err := r.Create("c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)

	_, err = r.Create("c1", "u2")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, ok := r.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID, "failed create must not replace the session")
}

func TestSubscribeMovesConnectionBetweenGames(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("c1", "u1")
	require.NoError(t, err)

	s, err := r.Subscribe("c1", "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", s.GameID)
	assert.ElementsMatch(t, []string{"c1"}, r.GameConnections("g1"))

	_, err = r.Subscribe("c1", "g2")
	require.NoError(t, err)
	assert.Empty(t, r.GameConnections("g1"))
	assert.ElementsMatch(t, []string{"c1"}, r.GameConnections("g2"))

	s, err = r.Subscribe("c1", "")
	require.NoError(t, err)
	assert.Empty(t, s.GameID)
	assert.Empty(t, r.GameConnections("g2"))
}

func TestSubscribeWithoutSession(t *testing.T) {
	r := NewRegistry()
	_, err := r.Subscribe("ghost", "g1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, r.GameConnections("g1"))
}

func TestUnsubscribeUserCoversAllConnections(t *testing.T) {
	r := NewRegistry()
	for conn, user := range map[string]string{"c1": "u1", "c2": "u1", "c3": "u2", "c4": "u1"} {
		_, err := r.Create(conn, user)
		require.NoError(t, err)
	}
	for conn, game := range map[string]string{"c1": "g1", "c2": "g1", "c3": "g1", "c4": "g2"} {
		_, err := r.Subscribe(conn, game)
		require.NoError(t, err)
	}

	dropped := r.UnsubscribeUser("u1", "g1")
	assert.ElementsMatch(t, []string{"c1", "c2"}, dropped)
	assert.ElementsMatch(t, []string{"c3"}, r.GameConnections("g1"))
	assert.ElementsMatch(t, []string{"c4"}, r.GameConnections("g2"), "other games are untouched")

	s, ok := r.Get("c2")
	require.True(t, ok)
	assert.Empty(t, s.GameID)

	assert.Empty(t, r.UnsubscribeUser("u1", "g1"))
}

func TestRemoveIsIdempotentAndClearsSubscription(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("c1", "u1")
	require.NoError(t, err)
	_, err = r.Subscribe("c1", "g1")
	require.NoError(t, err)

	r.Remove("c1")
	r.Remove("c1")
	r.Remove("never-existed")

	_, ok := r.Get("c1")
	assert.False(t, ok)
	assert.Empty(t, r.GameConnections("g1"))
	assert.Equal(t, 0, r.Len())
}

func TestConcurrentMembership(t *testing.T) {
	r := NewRegistry()
	const conns = 64

	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("c%d", i)
			_, err := r.Create(connID, fmt.Sprintf("u%d", i))
			assert.NoError(t, err)
			_, err = r.Subscribe(connID, "g1")
			assert.NoError(t, err)
			_ = r.GameConnections("g1")
			if i%2 == 0 {
				r.Remove(connID)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.GameConnections("g1"), conns/2)
	assert.Equal(t, conns/2, r.Len())
}
