package actor

import (
	"context"
	"errors"
	"fmt"

	cerrors "github.com/fiebiga/compysition/pkg/compysition/errors"
	"github.com/fiebiga/compysition/pkg/compysition/event"
	"github.com/fiebiga/compysition/pkg/compysition/observability"
	"github.com/fiebiga/compysition/pkg/compysition/queue"
)

// SendEvent delivers a distinct clone of evt to each named outbound
// queue, or to every outbound queue if dests is empty (spec.md §4.5.6).
// Each destination always receives its own clone, never the original
// event, so downstream mutation by one consumer cannot race with
// another's. If WithCheckOutput was set, each clone's variant is
// validated against Output first.
func (a *Actor) SendEvent(ctx context.Context, evt event.Event, dests ...string) error {
	targets, err := a.resolveOutbound(dests)
	if err != nil {
		return err
	}
	return a.deliver(ctx, evt, queue.Outbound, targets)
}

// Broadcast is SendEvent with no explicit destinations: evt is cloned to
// every outbound queue.
func (a *Actor) Broadcast(ctx context.Context, evt event.Event) error {
	return a.SendEvent(ctx, evt)
}

// SendError attaches err to evt and delivers a clone to every error
// queue. If no error queue is wired, the event is only logged, matching
// the original implementation's default error-sink-not-configured
// behavior.
func (a *Actor) SendError(ctx context.Context, evt event.Event, err error) {
	a.sendError(ctx, evt, err)
}

// Log delivers a LogEvent carrying message at the given severity to every
// queue in this actor's Logs group. If no log queue is wired, the call is
// a no-op beyond the structured log line.
func (a *Actor) Log(ctx context.Context, level event.LogLevel, message string) {
	observability.LogActorMessage(a.Logger, a.Name, level.String(), message)
	targets := a.Pool.All(queue.Logs)
	if len(targets) == 0 {
		return
	}
	_ = a.deliver(ctx, event.NewLogEvent(a.Name, level, message), queue.Logs, targets)
}

func (a *Actor) sendError(ctx context.Context, evt event.Event, err error) {
	evt.SetErr(err)
	targets := a.Pool.All(queue.ErrorQ)
	if a.Metrics != nil {
		a.Metrics.RecordErrored(ctx)
	}
	observability.LogConsumeError(a.Logger, a.Name, "", err, 0)
	if len(targets) == 0 {
		return
	}
	_ = a.deliver(ctx, evt, queue.ErrorQ, targets)
}

func (a *Actor) resolveOutbound(dests []string) ([]*queue.Queue, error) {
	if len(dests) == 0 {
		return a.Pool.All(queue.Outbound), nil
	}
	targets := make([]*queue.Queue, 0, len(dests))
	for _, name := range dests {
		q, ok := a.Pool.Get(queue.Outbound, name)
		if !ok {
			return nil, fmt.Errorf("actor %q: no outbound queue named %q", a.Name, name)
		}
		targets = append(targets, q)
	}
	return targets, nil
}

func (a *Actor) deliver(ctx context.Context, evt event.Event, group queue.Group, targets []*queue.Queue) error {
	var errs []error
	for _, q := range targets {
		clone := evt.Clone()
		if group == queue.Outbound && a.checkOutput && len(a.Output) > 0 && !acceptsVariant(a.Output, clone.Variant()) {
			errs = append(errs, fmt.Errorf("%w: actor %q produced %s, not in %v", cerrors.ErrInvalidActorOutput, a.Name, clone.Variant(), a.Output))
			continue
		}
		if err := q.Put(ctx, clone, true); err != nil {
			errs = append(errs, err)
			continue
		}
		if a.Metrics != nil && group == queue.Outbound {
			a.Metrics.RecordSent(ctx, 1)
		}
	}
	return errors.Join(errs...)
}

func acceptsVariant(variants []event.Variant, v event.Variant) bool {
	for _, candidate := range variants {
		if candidate == v {
			return true
		}
	}
	return false
}
