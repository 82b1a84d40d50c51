package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedJSON = `[
	{"id": "core", "name": "Core Set", "cards": [
		{"id": "c-02", "name": "Paranoia", "kind": "condition", "condition": "madness"},
		{"id": "c-01", "name": "Amnesia", "kind": "condition", "condition": "madness"},
		{"id": "a-01", "name": "Flashlight", "kind": "asset"}
	]},
	{"id": "alpha", "name": "Alpha", "cards": []}
]`

func catalogs(t *testing.T) map[string]Catalog {
	sets, err := DecodeJSON(strings.NewReader(seedJSON))
	require.NoError(t, err)

	db, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Import(context.Background(), sets))

	return map[string]Catalog{
		"memory": NewMemory(sets...),
		"sqlite": db,
	}
}

func TestList(t *testing.T) {
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			got, err := c.List(context.Background())
			require.NoError(t, err)
			assert.Equal(t, []models.ContentPreview{
				{ID: "alpha", Name: "Alpha"},
				{ID: "core", Name: "Core Set"},
			}, got)
		})
	}
}

func TestGet(t *testing.T) {
	for name, c := range catalogs(t) {
		t.Run(name, func(t *testing.T) {
			set, err := c.Get(context.Background(), "core")
			require.NoError(t, err)
			assert.Equal(t, "Core Set", set.Name)
			assert.Len(t, set.Cards, 3)
			assert.Contains(t, set.Cards, models.Card{ID: "c-01", Name: "Amnesia", Kind: "condition", Condition: "madness"})

			_, err = c.Get(context.Background(), "missing")
			assert.ErrorIs(t, err, apperr.ErrNotFound)
		})
	}
}

func TestImportReplacesCards(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Import(ctx, []models.ContentSet{{ID: "s", Name: "Old", Cards: []models.Card{{ID: "x", Name: "X", Kind: "asset"}}}}))
	require.NoError(t, db.Import(ctx, []models.ContentSet{{ID: "s", Name: "New", Cards: []models.Card{{ID: "y", Name: "Y", Kind: "asset"}}}}))

	set, err := db.Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "New", set.Name)
	assert.Equal(t, []models.Card{{ID: "y", Name: "Y", Kind: "asset"}}, set.Cards)
}

func TestDecodeJSONRequiresIDs(t *testing.T) {
	_, err := DecodeJSON(strings.NewReader(`[{"name": "anonymous"}]`))
	assert.Error(t, err)
}
