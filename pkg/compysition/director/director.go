// Package director is the composition and supervision root: it registers
// actors, wires their queues together, auto-connects the default log and
// error sinks, and owns the process lifecycle (start, block, OS-signal
// triggered stop).
//
// Grounded on the original implementation's director.py line for line
// for register_module/connect/connect_error/_setup_default_connections/
// start/stop. OS-signal handling in Block uses the standard os/signal
// idiom directly; structured logging follows
// pkg/flowgraph/observability.
package director

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/fiebiga/compysition/internal/diagnostics/sqlitelog"
	"github.com/fiebiga/compysition/pkg/compysition/actor"
	cerrors "github.com/fiebiga/compysition/pkg/compysition/errors"
	"github.com/fiebiga/compysition/pkg/compysition/observability"
	"github.com/fiebiga/compysition/pkg/compysition/queue"
)

// Director owns a set of named actors and the queues wiring them
// together.
type Director struct {
	Logger *slog.Logger

	mu     sync.Mutex
	actors map[string]*actor.Actor
	order  []string

	logActors   []string
	errorActors []string

	audit *sqlitelog.Log

	running atomic.Bool
	block   chan struct{}
}

// New constructs an empty Director.
func New(opts ...Option) *Director {
	d := &Director{
		actors: make(map[string]*actor.Actor),
		block:  make(chan struct{}),
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Logger = observability.EnrichLogger(d.Logger, "director", "")
	return d
}

// Option configures a Director at construction time.
type Option func(*Director)

// WithLogger overrides the director's base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Director) { d.Logger = logger }
}

// WithAuditLog attaches a SQLite-backed lifecycle audit log. Registration,
// start, and stop events are recorded to it; actor/queue traffic never
// is. The caller owns closing log after the director is done with it.
func WithAuditLog(log *sqlitelog.Log) Option {
	return func(d *Director) { d.audit = log }
}

func (d *Director) record(kind, actorName, detail string) {
	if d.audit == nil {
		return
	}
	if err := d.audit.Record(kind, actorName, detail); err != nil {
		d.Logger.Warn("audit log write failed", "error", err)
	}
}

// RegisterActor adds a built actor under name. It returns
// ErrModuleInitFailure if name is already registered, matching the
// original implementation's register_module duplicate-name guard.
func (d *Director) RegisterActor(name string, a *actor.Actor) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.actors[name]; exists {
		return cerrors.NewInitError(fmt.Sprintf("register actor %q", name), cerrors.ErrModuleInitFailure)
	}
	d.actors[name] = a
	d.order = append(d.order, name)
	d.record("register", name, "")
	return nil
}

// Actor returns the registered actor named name.
func (d *Director) Actor(name string) (*actor.Actor, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.actors[name]
	return a, ok
}

// ConnectQueue wires fromActor's outbound queue fromQueue to toActor's
// inbound queue toQueue, creating the shared queue.Queue on first use
// (spec.md §4.6, grounded on director.py:connect).
func (d *Director) ConnectQueue(fromActor, fromQueue, toActor, toQueue string, size int) error {
	from, err := d.mustActor(fromActor)
	if err != nil {
		return err
	}
	to, err := d.mustActor(toActor)
	if err != nil {
		return err
	}
	q, err := bind(from, queue.Outbound, fromQueue, size)
	if err != nil {
		return err
	}
	_, err = to.RegisterConsumer(toQueue, q)
	return err
}

// ConnectErrorQueue wires fromActor's error queue to toActor's inbound
// queue, the error-handling counterpart of ConnectQueue (grounded on
// director.py:connect_error).
func (d *Director) ConnectErrorQueue(fromActor, toActor, toQueue string, size int) error {
	from, err := d.mustActor(fromActor)
	if err != nil {
		return err
	}
	to, err := d.mustActor(toActor)
	if err != nil {
		return err
	}
	q, err := bind(from, queue.ErrorQ, "error", size)
	if err != nil {
		return err
	}
	_, err = to.RegisterConsumer(toQueue, q)
	return err
}

// ConnectLogQueue wires fromActor's log queue to toActor's inbound queue
// (grounded on director.py:connect_log).
func (d *Director) ConnectLogQueue(fromActor, toActor, toQueue string, size int) error {
	from, err := d.mustActor(fromActor)
	if err != nil {
		return err
	}
	to, err := d.mustActor(toActor)
	if err != nil {
		return err
	}
	q, err := bind(from, queue.Logs, "logs", size)
	if err != nil {
		return err
	}
	_, err = to.RegisterConsumer(toQueue, q)
	return err
}

// RegisterLogActor marks name as a default sink for every actor's log
// queue; actors that don't already have one wired get connected to it on
// Start (grounded on director.py:_setup_default_connections).
func (d *Director) RegisterLogActor(name string, toQueue string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logActors = append(d.logActors, name+"\x00"+toQueue)
}

// RegisterErrorActor marks name as a default sink for every actor's error
// queue.
func (d *Director) RegisterErrorActor(name string, toQueue string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errorActors = append(d.errorActors, name+"\x00"+toQueue)
}

// bind returns the existing queue registered in actor a's group/name, or
// creates and registers a new one.
func bind(a *actor.Actor, group queue.Group, name string, size int) (*queue.Queue, error) {
	if q, ok := a.Pool.Get(group, name); ok {
		return q, nil
	}
	q := queue.New(name, size)
	switch group {
	case queue.Outbound:
		return a.RegisterProducer(name, q)
	case queue.ErrorQ:
		return a.RegisterErrorQueue(name, q)
	case queue.Logs:
		return a.RegisterLogQueue(name, q)
	default:
		return a.RegisterConsumer(name, q)
	}
}

func (d *Director) mustActor(name string) (*actor.Actor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.actors[name]
	if !ok {
		return nil, cerrors.NewInitError(fmt.Sprintf("connect queue: actor %q not registered", name), cerrors.ErrSetupError)
	}
	return a, nil
}

// Start auto-wires any actor that has no error or log queue to the
// registered default sinks, then starts every actor in registration
// order. If block is true, Start installs SIGINT/SIGTERM handlers and
// does not return until Stop is called or a signal arrives.
func (d *Director) Start(ctx context.Context, block bool) error {
	if !d.running.CompareAndSwap(false, true) {
		return nil
	}
	if err := d.setupDefaultConnections(); err != nil {
		return err
	}

	d.mu.Lock()
	order := append([]string(nil), d.order...)
	actors := make([]*actor.Actor, 0, len(order))
	for _, name := range order {
		actors = append(actors, d.actors[name])
	}
	d.mu.Unlock()

	for i, a := range actors {
		if err := a.Start(ctx); err != nil {
			return fmt.Errorf("director: start actor %q: %w", order[i], err)
		}
		d.record("start", order[i], "")
	}
	d.Logger.Info("director started", "actors", len(actors))
	d.record("director_start", "", fmt.Sprintf("actors=%d", len(actors)))

	if block {
		return d.Block(ctx)
	}
	return nil
}

// setupDefaultConnections connects every registered log/error actor
// target (in registration order) to each actor that doesn't already have
// one wired (director.py:_setup_default_connections).
func (d *Director) setupDefaultConnections() error {
	d.mu.Lock()
	logActors := append([]string(nil), d.logActors...)
	errorActors := append([]string(nil), d.errorActors...)
	names := append([]string(nil), d.order...)
	actors := make(map[string]*actor.Actor, len(d.actors))
	for k, v := range d.actors {
		actors[k] = v
	}
	d.mu.Unlock()

	for _, name := range names {
		a := actors[name]
		if len(a.Pool.Names(queue.Logs)) == 0 {
			for _, target := range logActors {
				sinkName, toQueue := splitTarget(target)
				if sinkName == name {
					continue
				}
				// Each source actor gets its own inbound queue name on the
				// sink so that fan-in from multiple actors never collides.
				if err := d.ConnectLogQueue(name, sinkName, toQueue+"."+name, 0); err != nil {
					return err
				}
			}
		}
		if len(a.Pool.Names(queue.ErrorQ)) == 0 {
			for _, target := range errorActors {
				sinkName, toQueue := splitTarget(target)
				if sinkName == name {
					continue
				}
				if err := d.ConnectErrorQueue(name, sinkName, toQueue+"."+name, 0); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func splitTarget(encoded string) (name, queueName string) {
	for i := 0; i < len(encoded); i++ {
		if encoded[i] == 0 {
			return encoded[:i], encoded[i+1:]
		}
	}
	return encoded, "default"
}

// Block waits until Stop is called or ctx is canceled, installing
// SIGINT/SIGTERM handlers that call Stop (director.py installs signal
// handlers for SIGINT and SIGTERM that invoke self.stop).
func (d *Director) Block(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		return d.Stop()
	case sig := <-sigCh:
		d.Logger.Info("received signal, stopping", "signal", sig.String())
		return d.Stop()
	case <-d.block:
		return nil
	}
}

// Stop stops every registered actor and unblocks any goroutine waiting in
// Block.
func (d *Director) Stop() error {
	if !d.running.CompareAndSwap(true, false) {
		return nil
	}
	d.mu.Lock()
	actors := make([]*actor.Actor, 0, len(d.actors))
	for _, name := range d.order {
		actors = append(actors, d.actors[name])
	}
	d.mu.Unlock()

	var firstErr error
	for _, a := range actors {
		if err := a.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	close(d.block)
	d.Logger.Info("director stopped")
	d.record("director_stop", "", "")
	return firstErr
}
