// Package wsgateway carries the protocol over WebSockets. It assigns each
// socket a connection id, forwards socket events to a Sink and implements the
// dispatcher's Transport.
package wsgateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/cventus/azif/internal/apperr"
	"github.com/cventus/azif/internal/dispatch"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Defaults applied when options are not given.
const (
	DefaultReadLimit    = 64 << 10
	DefaultWriteTimeout = 5 * time.Second
)

// Sink receives connection events, in order per connection.
type Sink interface {
	Submit(ctx context.Context, ev dispatch.Event) error
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithReadLimit bounds the size of a single inbound message.
func WithReadLimit(n int64) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.readLimit = n
		}
	}
}

// WithWriteTimeout bounds each outbound write.
func WithWriteTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.writeTimeout = d
		}
	}
}

// WithOriginPatterns allows cross-origin sockets from hosts matching the patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(g *Gateway) { g.originPatterns = patterns }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(g *Gateway) { g.log = l }
}

// Gateway tracks open sockets by connection id.
type Gateway struct {
	mu    sync.RWMutex
	conns map[string]*websocket.Conn

	readLimit      int64
	writeTimeout   time.Duration
	originPatterns []string
	log            logrus.FieldLogger
}

var _ dispatch.Transport = (*Gateway)(nil)

// New creates a gateway with no open connections.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		conns:        make(map[string]*websocket.Conn),
		readLimit:    DefaultReadLimit,
		writeTimeout: DefaultWriteTimeout,
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.WithField("component", "wsgateway")
	return g
}

// Handler upgrades requests to sockets whose events go to sink.
func (g *Gateway) Handler(sink Sink) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.serve(w, r, sink)
	})
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request, sink Sink) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: g.originPatterns})
	if err != nil {
		// Accept has already written an HTTP error.
		g.log.WithError(err).WithField("remote_addr", r.RemoteAddr).Debug("websocket upgrade failed")
		return
	}
	c.SetReadLimit(g.readLimit)

	connID := uuid.NewString()
	log := g.log.WithField("connection_id", connID)
	g.mu.Lock()
	g.conns[connID] = c
	g.mu.Unlock()

	ctx := r.Context()
	defer func() {
		g.mu.Lock()
		delete(g.conns, connID)
		g.mu.Unlock()
		c.CloseNow()
		// The request context is gone by now; the disconnect must still be queued.
		submitCtx, cancel := context.WithTimeout(context.Background(), g.writeTimeout)
		defer cancel()
		if err := sink.Submit(submitCtx, dispatch.Event{Kind: dispatch.EventDisconnect, ConnectionID: connID}); err != nil {
			log.WithError(err).Warn("disconnect event dropped")
		}
	}()

	if err := sink.Submit(ctx, dispatch.Event{Kind: dispatch.EventConnect, ConnectionID: connID}); err != nil {
		log.WithError(err).Warn("connect event dropped")
		return
	}
	log.WithField("remote_addr", r.RemoteAddr).Debug("socket opened")

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				log.Debug("socket closed by peer")
			} else {
				log.WithError(err).Debug("socket read ended")
			}
			return
		}
		if typ != websocket.MessageText {
			log.Warn("binary frame received, closing socket")
			c.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}
		if err := sink.Submit(ctx, dispatch.Event{Kind: dispatch.EventMessage, ConnectionID: connID, Data: data}); err != nil {
			log.WithError(err).Warn("message event dropped")
			return
		}
	}
}

func (g *Gateway) conn(connID string) (*websocket.Conn, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.conns[connID]
	if !ok {
		return nil, apperr.NotFoundf("connection %s is not open", connID)
	}
	return c, nil
}

// Send writes one text message to the connection.
func (g *Gateway) Send(ctx context.Context, connID string, data []byte) error {
	c, err := g.conn(connID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, g.writeTimeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, data)
}

// Disconnect closes the connection for violating the protocol. The close
// handshake completes in the background.
func (g *Gateway) Disconnect(_ context.Context, connID string) error {
	c, err := g.conn(connID)
	if err != nil {
		return err
	}
	go c.Close(websocket.StatusPolicyViolation, "protocol violation")
	return nil
}

// Len returns the number of open sockets.
func (g *Gateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// Shutdown closes every open socket with StatusGoingAway.
func (g *Gateway) Shutdown() {
	g.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Close(websocket.StatusGoingAway, "server shutting down"); err != nil && !errors.Is(err, context.Canceled) {
				g.log.WithError(err).Debug("close during shutdown")
			}
		}()
	}
	wg.Wait()
}
