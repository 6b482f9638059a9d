package actor

import (
	"log/slog"
	"time"

	"github.com/fiebiga/compysition/pkg/compysition/event"
	"github.com/fiebiga/compysition/pkg/compysition/observability"
)

// Option configures an Actor at construction time.
type Option func(*Actor)

// WithSize records size in the actor's Size field. Nothing in this module
// reads Size: queues the director creates for an actor take the size
// passed to the director's Connect methods, not this value.
func WithSize(size int) Option {
	return func(a *Actor) { a.Size = size }
}

// WithLogger overrides the actor's logger (default: slog.Default(),
// enriched with the actor's name).
func WithLogger(logger *slog.Logger) Option {
	return func(a *Actor) { a.Logger = logger }
}

// WithMetrics attaches OpenTelemetry instruments to the actor.
func WithMetrics(m *observability.ActorMetrics) Option {
	return func(a *Actor) { a.Metrics = m }
}

// WithInput restricts the variants this actor accepts. An incoming event
// of a different variant is widened to the first compatible entry, or
// rejected with ErrInvalidEventConversion if none apply. Unset means any
// variant is accepted as-is.
func WithInput(variants ...event.Variant) Option {
	return func(a *Actor) { a.Input = variants }
}

// WithOutput restricts the variants this actor may emit. Requires
// WithCheckOutput(true) to actually be enforced; see its doc for why
// enforcement defaults off.
func WithOutput(variants ...event.Variant) Option {
	return func(a *Actor) { a.Output = variants }
}

// WithCheckOutput enables output-variant validation on SendEvent,
// matching the original implementation's optional output_queue_check.
// Most actors leave this off because it requires Output to be kept in
// lockstep with ConsumeFunc's actual behavior.
func WithCheckOutput(check bool) Option {
	return func(a *Actor) { a.checkOutput = check }
}

// WithBlockingConsume runs each consume cycle inline on the queue's
// consumer goroutine rather than spawning a goroutine per event. Actors
// that must process events strictly in order set this.
func WithBlockingConsume(blocking bool) Option {
	return func(a *Actor) { a.BlockingConsume = blocking }
}

// WithRescue enables the rescue-on-error path: a failed event is
// reinserted at the head of its origin queue up to maxRescue times, with
// an increasing backoff of attempt*unit, before being sent to the error
// queue.
func WithRescue(maxRescue int, unit time.Duration) Option {
	return func(a *Actor) {
		a.RescueEnabled = true
		a.MaxRescue = maxRescue
		a.RescueBackoffUnit = unit
	}
}

// WithRequiredAttributes rejects, with ErrInvalidActorInput, any event
// whose Get(attr) fails to resolve for one of attrs.
func WithRequiredAttributes(attrs ...string) Option {
	return func(a *Actor) { a.RequiredAttributes = attrs }
}

// WithPreHook registers fn to run once, immediately before Start spawns
// the actor's consumer goroutines; an error from fn aborts Start.
func WithPreHook(fn func() error) Option {
	return func(a *Actor) { a.PreHook = fn }
}

// WithPostHook registers fn to run once, after Stop has canceled the
// actor's consumer loops and waited for in-flight consumes to finish.
func WithPostHook(fn func() error) Option {
	return func(a *Actor) { a.PostHook = fn }
}
