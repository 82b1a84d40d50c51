package users

import (
	"context"
	"os"
	"testing"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/database"
	"github.com/cventus/azif/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMemoryCreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	d := NewMemory(bcrypt.MinCost)

	u, err := d.Create(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "s3cret", u.PasswordHash)
	assert.Empty(t, u.GameIDs)

	_, err = d.Create(ctx, "alice", "other")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := d.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = d.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, err = d.Authenticate(ctx, "bob", "s3cret")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestMemoryCreateValidates(t *testing.T) {
	d := NewMemory(bcrypt.MinCost)
	_, err := d.Create(context.Background(), " ", "pw")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = d.Create(context.Background(), "carol", "")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestMemoryMemberships(t *testing.T) {
	ctx := context.Background()
	d := NewMemory(bcrypt.MinCost)
	u, err := d.Create(ctx, "alice", "pw")
	require.NoError(t, err)

	require.NoError(t, d.AddGame(ctx, u.ID, "g1"))
	require.NoError(t, d.AddGame(ctx, u.ID, "g2"))
	assert.ErrorIs(t, d.AddGame(ctx, u.ID, "g1"), apperr.ErrConflict)
	assert.ErrorIs(t, d.AddGame(ctx, "ghost", "g1"), apperr.ErrNotFound)

	got, err := d.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, got.GameIDs)

	got.GameIDs[0] = "mutated"
	again, err := d.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "g1", again.GameIDs[0], "Get returns a copy")

	require.NoError(t, d.RemoveGame(ctx, u.ID, "g1"))
	assert.ErrorIs(t, d.RemoveGame(ctx, u.ID, "g1"), apperr.ErrNotFound)

	got, err = d.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"g2"}, got.GameIDs)

	_, err = d.Get(ctx, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMemoryBacksGameStore(t *testing.T) {
	ctx := context.Background()
	d := NewMemory(bcrypt.MinCost)
	u, err := d.Create(ctx, "alice", "pw")
	require.NoError(t, err)

	s := store.New(store.NewMemory(d))
	g, err := s.CreateGame(ctx, "Night at the museum", []string{"core"})
	require.NoError(t, err)

	_, err = s.AddPlayer(ctx, g.ID, u.ID)
	require.NoError(t, err)
	got, err := d.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{g.ID}, got.GameIDs)

	_, err = s.AddPlayer(ctx, g.ID, "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.RemovePlayer(ctx, g.ID, u.ID)
	require.NoError(t, err)
	got, err = d.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.GameIDs)
}

func TestPostgresDirectory(t *testing.T) {
	url := os.Getenv("AZIF_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AZIF_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := database.Connect(ctx, url)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, database.Migrate(ctx, pool))

	d := NewPostgres(pool, bcrypt.MinCost)
	name := "user-" + uuid.NewString()
	u, err := d.Create(ctx, name, "pw")
	require.NoError(t, err)

	_, err = d.Create(ctx, name, "pw")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = d.Authenticate(ctx, name, "nope")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	authed, err := d.Authenticate(ctx, name, "pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, authed.ID)

	s := store.New(store.NewPostgres(pool))
	g, err := s.CreateGame(ctx, "Shared tables", []string{"core"})
	require.NoError(t, err)
	_, err = s.AddPlayer(ctx, g.ID, u.ID)
	require.NoError(t, err)

	got, err := d.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{g.ID}, got.GameIDs)

	_, err = s.AddPlayer(ctx, g.ID, uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrNotFound, "unknown users violate the foreign key")

	_, err = d.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
