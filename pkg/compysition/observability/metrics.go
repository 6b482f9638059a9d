package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ActorMetrics holds the OpenTelemetry instruments an actor updates over
// its lifetime: events consumed/sent/errored, and current queue depth.
// Grounded on flowgraph's observability/metrics.go instrument set,
// relabeled for the actor/queue domain.
type ActorMetrics struct {
	Meter metric.Meter

	Consumed metric.Int64Counter
	Sent     metric.Int64Counter
	Errored  metric.Int64Counter
	Rescued  metric.Int64Counter
}

// NewActorMetrics registers the counters under meter. actorName is not
// attached to the counters: they carry no attributes. A nil meter yields
// a no-op ActorMetrics (every Add call becomes a no-op), which is what
// callers get when no MeterProvider was configured.
func NewActorMetrics(meter metric.Meter, actorName string) (*ActorMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("compysition")
	}
	consumed, err := meter.Int64Counter("compysition.actor.consumed",
		metric.WithDescription("events consumed by this actor"))
	if err != nil {
		return nil, err
	}
	sent, err := meter.Int64Counter("compysition.actor.sent",
		metric.WithDescription("events sent by this actor"))
	if err != nil {
		return nil, err
	}
	errored, err := meter.Int64Counter("compysition.actor.errored",
		metric.WithDescription("events that reached the error queue"))
	if err != nil {
		return nil, err
	}
	rescued, err := meter.Int64Counter("compysition.actor.rescued",
		metric.WithDescription("events rescued back to their origin queue"))
	if err != nil {
		return nil, err
	}
	return &ActorMetrics{Meter: meter, Consumed: consumed, Sent: sent, Errored: errored, Rescued: rescued}, nil
}

// RecordConsumed increments the consumed counter.
func (m *ActorMetrics) RecordConsumed(ctx context.Context) {
	if m == nil {
		return
	}
	m.Consumed.Add(ctx, 1)
}

// RecordSent increments the sent counter.
func (m *ActorMetrics) RecordSent(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.Sent.Add(ctx, n)
}

// RecordErrored increments the errored counter.
func (m *ActorMetrics) RecordErrored(ctx context.Context) {
	if m == nil {
		return
	}
	m.Errored.Add(ctx, 1)
}

// RecordRescued increments the rescued counter.
func (m *ActorMetrics) RecordRescued(ctx context.Context) {
	if m == nil {
		return
	}
	m.Rescued.Add(ctx, 1)
}

// RegisterQueueDepthGauge registers an observable gauge under meter that
// reports depthFn() on every collection, labeled with queueName. Used by
// Actor.Start, one gauge per inbound queue, to expose live queue depth
// per spec.md §5's backpressure
// concerns without the actor loop pushing a sample on every Put/Get.
func RegisterQueueDepthGauge(meter metric.Meter, queueName string, depthFn func() int64) (metric.Registration, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("compysition")
	}
	gauge, err := meter.Int64ObservableGauge("compysition.queue.depth",
		metric.WithDescription("current number of events queued"))
	if err != nil {
		return nil, err
	}
	return meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, depthFn(), metric.WithAttributes(attribute.String("queue", queueName)))
		return nil
	}, gauge)
}
