package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"type":"action","requestId":"r1","gameId":"g1","action":{"type":"chat","message":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, RequestAction, req.Type)
	assert.Equal(t, "r1", req.RequestID)
	require.NotNil(t, req.Action)
	assert.Equal(t, models.ActionChat, req.Action.Type)

	_, err = DecodeRequest([]byte(`{"type":"login"}`))
	assert.ErrorIs(t, err, ErrMissingRequestID)

	_, err = DecodeRequest([]byte(`not json`))
	assert.Error(t, err)
}

func TestFailureUsesPublicCodes(t *testing.T) {
	cases := map[error]string{
		apperr.Conflictf("x"):                                   "conflict",
		apperr.Unauthenticatedf("x"):                            "unauthenticated",
		apperr.New(apperr.CodeNotImplemented, "x"):              "not-implemented",
		apperr.New(apperr.CodeSystemInconsistency, "user gone"): "internal",
		assert.AnError:                                          "internal",
	}
	for err, want := range cases {
		assert.Equal(t, want, Failure("r", err).Message)
	}
}

func TestGameEventEncoding(t *testing.T) {
	g := models.NewGame("g1", "Game", []string{"core"}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	data, err := GameEvent(models.GameEvent{GameID: "g1", Clock: 3}, g).Encode()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "game-event", m["type"])
	assert.NotContains(t, m, "requestId")
	assert.Contains(t, m, "event")
	assert.Contains(t, m, "game")
}

func TestParseResource(t *testing.T) {
	since, until := int64(4), int64(9)
	cases := []struct {
		in   string
		want Resource
	}{
		{"session", Resource{Kind: ResourceSession}},
		{"contents", Resource{Kind: ResourceContents}},
		{"contents/core", Resource{Kind: ResourceContentSet, ID: "core"}},
		{"games/g1", Resource{Kind: ResourceGame, ID: "g1"}},
		{"games/g1/events", Resource{Kind: ResourceGameEvents, ID: "g1"}},
		{"games/g1/events?since=4&until=9", Resource{Kind: ResourceGameEvents, ID: "g1"}},
	}
	for _, tc := range cases {
		got, err := ParseResource(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want.Kind, got.Kind, tc.in)
		assert.Equal(t, tc.want.ID, got.ID, tc.in)
	}

	got, err := ParseResource("games/g1/events?since=4&until=9")
	require.NoError(t, err)
	assert.Equal(t, &since, got.Range.Since)
	assert.Equal(t, &until, got.Range.Until)

	for _, bad := range []string{"", "games", "games/", "users/u1", "games/g1/events?since=x", "http://host/session", "contents/a/b"} {
		_, err := ParseResource(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalid, bad)
	}
}
