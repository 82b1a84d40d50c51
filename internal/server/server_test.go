package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/websocket"
	"github.com/cventus/azif/internal/config"
	"github.com/cventus/azif/internal/protocol"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = `[{"id":"core","name":"Core","cards":[{"id":"m-1","name":"Amnesia","kind":"condition","condition":"madness"}]}]`

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(seedPath, []byte(seed), 0o600))
	mr := miniredis.RunT(t)
	return config.Config{
		CatalogPath:  filepath.Join(dir, "catalog.db"),
		CatalogSeed:  seedPath,
		RedisURL:     "redis://" + mr.Addr(),
		JWTSecret:    "test",
		TokenTTL:     time.Hour,
		Workers:      2,
		QueueSize:    8,
		ReadLimit:    1 << 16,
		WriteTimeout: time.Second,
		DevUsers:     []string{"alice:pw"},
	}
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (c *client) call(req protocol.Request) protocol.Response {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(req)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.Write(ctx, websocket.MessageText, data))
	for {
		_, data, err := c.conn.Read(ctx)
		require.NoError(c.t, err)
		var resp protocol.Response
		require.NoError(c.t, json.Unmarshal(data, &resp))
		if resp.RequestID == req.RequestID {
			return resp
		}
	}
}

func TestEndToEnd(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(ctx, testConfig(t), logger)
	require.NoError(t, err)
	defer app.Close()
	go app.Dispatcher.Run(ctx)

	srv := httptest.NewServer(app.Handler)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()
	c := &client{t: t, conn: conn}

	login := c.call(protocol.Request{Type: protocol.RequestLogin, RequestID: "1", Username: "alice", Password: "pw"})
	require.Equal(t, protocol.ResponseLogin, login.Type, login.Message)

	created := c.call(protocol.Request{Type: protocol.RequestCreateGame, RequestID: "2", Name: "Museum", ContentSetIDs: []string{"core"}})
	require.Equal(t, protocol.ResponseCreateGame, created.Type, created.Message)
	gameID := created.Game.ID

	for i, req := range []protocol.Request{
		{Type: protocol.RequestJoinGame, GameID: gameID},
		{Type: protocol.RequestSubscribeToGame, GameID: gameID},
	} {
		req.RequestID = "setup-" + string(rune('a'+i))
		resp := c.call(req)
		require.Equal(t, protocol.ResponseSuccess, resp.Type, resp.Message)
	}

	got := c.call(protocol.Request{Type: protocol.RequestGet, RequestID: "3", Resource: "games/" + gameID + "/events"})
	require.Equal(t, protocol.ResponseGet, got.Type, got.Message)
	assert.Len(t, got.Payload, 1, "the join was logged in redis")

	contents := c.call(protocol.Request{Type: protocol.RequestGet, RequestID: "4", Resource: "contents"})
	require.Equal(t, protocol.ResponseGet, contents.Type, contents.Message)
	assert.Len(t, contents.Payload, 1, "the catalog was seeded")
}

func TestBuildRejectsBadSeed(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	cfg := testConfig(t)
	cfg.CatalogSeed = filepath.Join(t.TempDir(), "missing.json")
	_, err := Build(context.Background(), cfg, logger)
	assert.Error(t, err)
}
