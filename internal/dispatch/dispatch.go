// Package dispatch turns connection events into session, game and catalog
// operations and fans the results out to the affected connections.
package dispatch

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/cventus/azif/internal/auth"
	"github.com/cventus/azif/internal/catalog"
	"github.com/cventus/azif/internal/game"
	"github.com/cventus/azif/internal/session"
	"github.com/cventus/azif/internal/store"
	"github.com/cventus/azif/internal/users"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// EventKind discriminates inbound connection events.
type EventKind int

const (
	EventConnect EventKind = iota + 1
	EventMessage
	EventDisconnect
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventMessage:
		return "message"
	case EventDisconnect:
		return "disconnect"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one thing that happened on a connection.
type Event struct {
	Kind         EventKind
	ConnectionID string
	Data         []byte // EventMessage only
}

// Transport delivers bytes to connections.
type Transport interface {
	Send(ctx context.Context, connID string, data []byte) error
	Disconnect(ctx context.Context, connID string) error
}

// Defaults for the worker pool.
const (
	DefaultWorkers   = 8
	DefaultQueueSize = 64
)

// Deps are the collaborators a Dispatcher drives. Tokens may be nil, which
// disables token login.
type Deps struct {
	Transport Transport
	Sessions  *session.Registry
	Processor *game.Processor
	Games     store.GameStore
	Users     users.Directory
	Contents  catalog.Catalog
	Tokens    *auth.Issuer
	Logger    logrus.FieldLogger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the buffer of each worker queue.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.queueSize = n
		}
	}
}

// Dispatcher processes connection events on a fixed pool of workers. Events
// of one connection always land on the same worker and so stay ordered.
type Dispatcher struct {
	Deps
	log       logrus.FieldLogger
	workers   int
	queueSize int
	queues    []chan Event
}

// New creates a dispatcher. Call Run to start processing submitted events.
func New(deps Deps, opts ...Option) *Dispatcher {
	d := &Dispatcher{Deps: deps, workers: DefaultWorkers, queueSize: DefaultQueueSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	d.log = d.Logger.WithField("component", "dispatch")

	d.queues = make([]chan Event, d.workers)
	for i := range d.queues {
		d.queues[i] = make(chan Event, d.queueSize)
	}
	return d
}

// Submit queues ev for its connection's worker. It blocks while that queue
// is full.
func (d *Dispatcher) Submit(ctx context.Context, ev Event) error {
	select {
	case d.queues[d.shard(ev.ConnectionID)] <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) shard(connID string) int {
	h := fnv.New32a()
	h.Write([]byte(connID))
	return int(h.Sum32() % uint32(len(d.queues)))
}

// Run processes events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.WithField("workers", d.workers).Info("dispatcher started")
	eg, ctx := errgroup.WithContext(ctx)
	for _, q := range d.queues {
		eg.Go(func() error {
			for {
				select {
				case ev := <-q:
					d.Handle(ctx, ev)
				case <-ctx.Done():
					return nil
				}
			}
		})
	}
	err := eg.Wait()
	d.log.Info("dispatcher stopped")
	return err
}

// Handle processes a single event synchronously.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) {
	log := d.log.WithFields(logrus.Fields{
		"connection_id": ev.ConnectionID,
		"event":         ev.Kind.String(),
	})
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("recovered panic while handling connection event")
		}
	}()

	switch ev.Kind {
	case EventConnect:
		log.Debug("connection opened")
	case EventMessage:
		d.handleMessage(ctx, ev.ConnectionID, ev.Data)
	case EventDisconnect:
		d.Sessions.Remove(ev.ConnectionID)
		log.Debug("connection closed")
	default:
		log.Warn("ignoring unknown connection event")
	}
}
