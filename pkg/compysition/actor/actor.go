// Package actor implements the consumer loop every compysition module is
// built from: a named unit that drains one or more inbound queues,
// transforms each event through a user-supplied ConsumeFunc, and forwards
// the result to its outbound queues — with required-attribute checking,
// widening-only input conversion, backpressure handling, and a bounded
// rescue-and-retry path on failure.
//
// Grounded on the original implementation's tools/consumer.py
// __doConsume control flow for the exact state machine, and on
// flowgraph's context.go/execute.go for the Go execution-context and
// functional-option idioms.
package actor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	cerrors "github.com/fiebiga/compysition/pkg/compysition/errors"
	"github.com/fiebiga/compysition/pkg/compysition/event"
	"github.com/fiebiga/compysition/pkg/compysition/observability"
	"github.com/fiebiga/compysition/pkg/compysition/queue"
	"github.com/fiebiga/compysition/pkg/compysition/restart"
)

// DefaultPollInterval bounds how long a consumer goroutine waits between
// checks of its queue's content-ready signal, matching the original
// implementation's blockdiag poll loop default.
const DefaultPollInterval = 200 * time.Millisecond

// DefaultRescueBackoffUnit is the per-attempt backoff multiplier a new
// Actor starts with; WithRescue replaces it with its unit argument. The
// same unit is the pause taken after a backpressure rescue.
const DefaultRescueBackoffUnit = 50 * time.Millisecond

// state values for Actor.state.
const (
	stateUnstarted int32 = iota
	stateRunning
	stateStopped
)

// ConsumeFunc is the user-supplied transformation every actor wraps. It
// receives the event, the name of the queue it arrived on, and that
// queue (so implementations needing queue-specific behavior, like a
// gateway replying on the same channel, can reach it). Returning
// cerrors.ErrQueueFull signals backpressure rather than failure; any
// other error enters the rescue/error path.
type ConsumeFunc func(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue) error

// Actor is a named consumer loop wired to a queue.Pool.
type Actor struct {
	Name string
	Size int

	Pool *queue.Pool

	Logger  *slog.Logger
	Metrics *observability.ActorMetrics
	Tracer  trace.Tracer

	Input  []event.Variant
	Output []event.Variant

	BlockingConsume bool

	RescueEnabled     bool
	MaxRescue         int
	RescueBackoffUnit time.Duration

	RequiredAttributes []string

	PreHook  func() error
	PostHook func() error

	consume ConsumeFunc

	checkOutput bool

	state       atomic.Int32
	ctx         context.Context
	cancel      context.CancelFunc
	restartPool *restart.Pool
	inflight    sync.WaitGroup
	gauges      []metric.Registration
}

// New constructs an Actor named name, dispatching consumed events through
// fn. The actor is not started; call Start to begin consuming.
func New(name string, fn ConsumeFunc, opts ...Option) *Actor {
	a := &Actor{
		Name:              name,
		Pool:              queue.NewPool(),
		Logger:            slog.Default(),
		Tracer:            otel.Tracer("compysition/actor"),
		consume:           fn,
		MaxRescue:         3,
		RescueBackoffUnit: DefaultRescueBackoffUnit,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Logger = observability.EnrichLogger(a.Logger, "actor", name)
	return a
}

// RegisterConsumer binds q as one of this actor's inbound queues under
// name. It must be called before Start.
func (a *Actor) RegisterConsumer(name string, q *queue.Queue) (*queue.Queue, error) {
	return a.Pool.Add(queue.Inbound, name, q)
}

// RegisterProducer binds q as one of this actor's outbound queues under
// name.
func (a *Actor) RegisterProducer(name string, q *queue.Queue) (*queue.Queue, error) {
	return a.Pool.Add(queue.Outbound, name, q)
}

// RegisterErrorQueue binds q as one of this actor's error queues under
// name.
func (a *Actor) RegisterErrorQueue(name string, q *queue.Queue) (*queue.Queue, error) {
	return a.Pool.Add(queue.ErrorQ, name, q)
}

// RegisterLogQueue binds q as one of this actor's log queues under name.
func (a *Actor) RegisterLogQueue(name string, q *queue.Queue) (*queue.Queue, error) {
	return a.Pool.Add(queue.Logs, name, q)
}

// Start runs PreHook (if any), transitions the actor to running, and
// spawns one supervised consumer goroutine per inbound queue. Calling
// Start twice is a no-op. A failing PreHook aborts Start and leaves the
// actor stopped.
func (a *Actor) Start(ctx context.Context) error {
	if !a.state.CompareAndSwap(stateUnstarted, stateRunning) {
		return nil
	}
	if a.PreHook != nil {
		if err := a.PreHook(); err != nil {
			a.state.Store(stateStopped)
			return fmt.Errorf("actor %q: pre-start hook: %w", a.Name, err)
		}
	}
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.restartPool = restart.New(a.ctx, a.Logger)

	inbound := a.Pool.Names(queue.Inbound)
	for _, name := range inbound {
		name := name
		q, _ := a.Pool.Get(queue.Inbound, name)
		a.restartPool.Spawn(name, func(ctx context.Context) error {
			return a.runQueue(ctx, name, q)
		}, true)
		if a.Metrics != nil {
			if reg, err := observability.RegisterQueueDepthGauge(a.Metrics.Meter, a.Name+"."+name, func() int64 { return int64(q.QSize()) }); err == nil {
				a.gauges = append(a.gauges, reg)
			}
		}
	}
	observability.LogActorStart(a.Logger, a.Name, len(inbound), len(a.Pool.Names(queue.Outbound)))
	return nil
}

// Stop cancels the actor's consumer loops, waits for in-flight consumes
// to finish, transitions the actor to stopped, and then runs PostHook
// (if any). Calling Stop before Start or twice is a no-op.
func (a *Actor) Stop() error {
	if !a.state.CompareAndSwap(stateRunning, stateStopped) {
		return nil
	}
	a.cancel()
	a.restartPool.Kill()
	a.inflight.Wait()
	for _, reg := range a.gauges {
		reg.Unregister()
	}
	a.gauges = nil
	observability.LogActorStop(a.Logger, a.Name)
	if a.PostHook != nil {
		if err := a.PostHook(); err != nil {
			return fmt.Errorf("actor %q: post-stop hook: %w", a.Name, err)
		}
	}
	return nil
}

// runQueue is the per-inbound-queue consumer loop: wait for content,
// drain it, repeat until ctx is done.
func (a *Actor) runQueue(ctx context.Context, name string, q *queue.Queue) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.ContentReady():
		case <-time.After(DefaultPollInterval):
		}

		for q.HasContent() {
			if ctx.Err() != nil {
				return nil
			}
			evt, err := q.Get(ctx, false)
			if err != nil {
				break
			}
			if a.BlockingConsume {
				a.doConsume(ctx, evt, name, q)
				continue
			}
			a.inflight.Add(1)
			go func(evt event.Event) {
				defer a.inflight.Done()
				a.doConsume(ctx, evt, name, q)
			}(evt)
		}
	}
}

// rescueKey is the per-actor extension-bag key an event's rescue attempt
// counter is stored under, mirroring the original implementation's
// per-actor __rescue_<name> private attribute.
func (a *Actor) rescueKey() string { return "__rescue_" + a.Name }

// doConsume runs the full per-event state machine: required-attribute
// check, input-widening conversion, ConsumeFunc, and the
// backpressure/rescue/error handling of whatever it returns.
func (a *Actor) doConsume(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue) {
	if a.Tracer != nil {
		var span trace.Span
		ctx, span = observability.SpanFromContext(ctx, a.Tracer, "doConsume", trace.WithAttributes(
			attribute.String("actor", a.Name),
			attribute.String("origin", origin),
			attribute.String("event.variant", evt.Variant().String()),
		))
		defer span.End()
	}
	if a.Metrics != nil {
		defer a.Metrics.RecordConsumed(ctx)
	}

	for _, attr := range a.RequiredAttributes {
		if _, ok := evt.Get(attr); !ok {
			a.sendError(ctx, evt, fmt.Errorf("%w: missing required attribute %q", cerrors.ErrInvalidActorInput, attr))
			return
		}
	}

	evt, err := a.widenToAcceptedInput(evt)
	if err != nil {
		a.sendError(ctx, evt, err)
		return
	}

	if err := a.consume(ctx, evt, origin, originQueue); err != nil {
		a.handleConsumeError(ctx, evt, origin, originQueue, err)
		return
	}
}

// widenToAcceptedInput returns evt unchanged if its variant is already
// accepted (or Input is unset), otherwise the first successful widening
// conversion to an accepted variant, or ErrInvalidEventConversion if none
// apply.
func (a *Actor) widenToAcceptedInput(evt event.Event) (event.Event, error) {
	if len(a.Input) == 0 {
		return evt, nil
	}
	for _, v := range a.Input {
		if evt.Variant() == v {
			return evt, nil
		}
	}
	for _, v := range a.Input {
		if converted, err := evt.Convert(v); err == nil {
			return converted, nil
		}
	}
	return evt, fmt.Errorf("%w: event variant %s is not accepted by actor %q", cerrors.ErrInvalidEventConversion, evt.Variant(), a.Name)
}

// handleConsumeError implements the backpressure/rescue/error branch of
// doConsume (spec.md §4.5.5): ErrQueueFull is backpressure and simply
// pauses before the event is re-attempted by rescuing it to its origin;
// any other error is rescued up to MaxRescue times with increasing
// backoff, then sent to the error queue.
func (a *Actor) handleConsumeError(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue, err error) {
	if cerrors.IsQueueFull(err) {
		if a.Metrics != nil {
			a.Metrics.RecordRescued(ctx)
		}
		originQueue.Rescue(evt)
		select {
		case <-ctx.Done():
		case <-time.After(a.RescueBackoffUnit):
		}
		return
	}

	if !a.RescueEnabled {
		a.sendError(ctx, evt, err)
		return
	}

	count := 0
	if v, ok := evt.Get(a.rescueKey()); ok {
		if n, ok := v.(int); ok {
			count = n
		}
	}
	count++
	if count > a.MaxRescue {
		a.sendError(ctx, evt, err)
		return
	}

	evt.Set(count, a.rescueKey())
	observability.LogConsumeError(a.Logger, a.Name, origin, err, count)
	if a.Metrics != nil {
		a.Metrics.RecordRescued(ctx)
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(count) * a.RescueBackoffUnit):
	}
	originQueue.Rescue(evt)
}
