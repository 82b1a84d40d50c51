package wsgateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/dispatch"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanSink forwards events to a channel for inspection.
type chanSink chan dispatch.Event

func (s chanSink) Submit(ctx context.Context, ev dispatch.Event) error {
	select {
	case s <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s chanSink) next(t *testing.T) dispatch.Event {
	t.Helper()
	select {
	case ev := <-s:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return dispatch.Event{}
	}
}

func startGateway(t *testing.T, opts ...Option) (*Gateway, chanSink, string) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	gw := New(append([]Option{WithLogger(logger)}, opts...)...)
	sink := make(chanSink, 16)
	srv := httptest.NewServer(gw.Handler(sink))
	t.Cleanup(srv.Close)
	return gw, sink, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func TestMessagesRoundTrip(t *testing.T) {
	gw, sink, url := startGateway(t)
	c := dial(t, url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	connect := sink.next(t)
	assert.Equal(t, dispatch.EventConnect, connect.Kind)
	assert.NotEmpty(t, connect.ConnectionID)

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{"type":"login"}`)))
	msg := sink.next(t)
	assert.Equal(t, dispatch.EventMessage, msg.Kind)
	assert.Equal(t, connect.ConnectionID, msg.ConnectionID)
	assert.JSONEq(t, `{"type":"login"}`, string(msg.Data))

	require.NoError(t, gw.Send(ctx, connect.ConnectionID, []byte(`{"type":"success","requestId":"r1"}`)))
	typ, data, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.JSONEq(t, `{"type":"success","requestId":"r1"}`, string(data))

	require.NoError(t, c.Close(websocket.StatusNormalClosure, "bye"))
	disc := sink.next(t)
	assert.Equal(t, dispatch.EventDisconnect, disc.Kind)
	assert.Equal(t, connect.ConnectionID, disc.ConnectionID)
	assert.Eventually(t, func() bool { return gw.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSendToUnknownConnection(t *testing.T) {
	gw := New()
	err := gw.Send(context.Background(), "nope", []byte("{}"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, gw.Disconnect(context.Background(), "nope"), apperr.ErrNotFound)
}

func TestDisconnectIsPolicyViolation(t *testing.T) {
	gw, sink, url := startGateway(t)
	c := dial(t, url)
	connect := sink.next(t)

	require.NoError(t, gw.Disconnect(context.Background(), connect.ConnectionID))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	assert.Equal(t, dispatch.EventDisconnect, sink.next(t).Kind)
}

func TestReadLimit(t *testing.T) {
	_, sink, url := startGateway(t, WithReadLimit(16))
	c := dial(t, url)
	sink.next(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// The write may or may not succeed before the server closes the socket.
	c.Write(ctx, websocket.MessageText, []byte(strings.Repeat("x", 64)))

	ev := sink.next(t)
	assert.Equal(t, dispatch.EventDisconnect, ev.Kind, "oversized messages are never forwarded")
}
