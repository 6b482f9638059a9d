// Package queue implements the bounded FIFO queues actors use to pass
// events between each other: blocking or non-blocking put/get, a
// content-ready signal for the actor consumer loop to wait on, and a
// rescue path that reinserts an event at the head rather than the tail.
//
// Grounded on flowgraph's event/bus.go subscription-channel idiom
// (adapted here from pub/sub fan-out to a single bounded buffer) and
// spec.md §3.3/§4.1, itself tracing to the original compysition's
// WishboneQueue (gevent Queue subclass).
package queue

import (
	"context"
	"sync"

	cerrors "github.com/fiebiga/compysition/pkg/compysition/errors"
	"github.com/fiebiga/compysition/pkg/compysition/event"
)

// DefaultMaxSize is the queue depth used when none is specified, matching
// the original implementation's default maxsize of 100.
const DefaultMaxSize = 100

// Queue is a bounded FIFO queue of events with blocking and non-blocking
// put/get, safe for concurrent use.
type Queue struct {
	name    string
	maxSize int

	mu      sync.Mutex
	items   []event.Event
	notFull *sync.Cond

	// contentCh is signaled (non-blocking send) whenever an item is
	// enqueued; the actor consumer loop selects on it instead of polling
	// QSize() directly.
	contentCh chan struct{}
}

// New constructs a Queue named name with the given capacity. A maxSize of
// 0 is unbounded: Put never blocks or fails for capacity reasons. A
// negative maxSize uses DefaultMaxSize.
func New(name string, maxSize int) *Queue {
	if maxSize < 0 {
		maxSize = DefaultMaxSize
	}
	q := &Queue{
		name:      name,
		maxSize:   maxSize,
		contentCh: make(chan struct{}, 1),
	}
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Name returns the queue's name.
func (q *Queue) Name() string { return q.name }

// QSize returns the current number of queued events.
func (q *Queue) QSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// HasContent reports whether the queue currently holds any events.
func (q *Queue) HasContent() bool {
	return q.QSize() > 0
}

// notifyContent signals the content-ready channel without blocking if a
// signal is already pending.
func (q *Queue) notifyContent() {
	select {
	case q.contentCh <- struct{}{}:
	default:
	}
}

// ContentReady returns a channel that receives a value after each Put or
// Rescue (at most one signal is pending at a time), for the actor
// consumer loop to select on instead of busy-polling QSize().
func (q *Queue) ContentReady() <-chan struct{} { return q.contentCh }

// Put enqueues evt. If the queue is full and block is true, Put waits
// until ctx is done or space frees up. If block is false and the queue is
// full, Put returns ErrQueueFull immediately.
func (q *Queue) Put(ctx context.Context, evt event.Event, block bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		if !block {
			return cerrors.NewQueueError(q.name, cerrors.ErrQueueFull)
		}
		if err := q.waitForSpace(ctx); err != nil {
			return err
		}
	}
	q.items = append(q.items, evt)
	q.notifyContent()
	return nil
}

// waitForSpace blocks until the queue has room or ctx is done. Callers
// must hold q.mu.
func (q *Queue) waitForSpace(ctx context.Context) error {
	done := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		close(done)
		q.notFull.Broadcast()
	})
	defer stop()

	for q.maxSize > 0 && len(q.items) >= q.maxSize {
		select {
		case <-done:
			return ctx.Err()
		default:
		}
		q.notFull.Wait()
	}
	return nil
}

// Get removes and returns the oldest queued event. If the queue is empty
// and block is true, Get waits until ctx is done or an event arrives. If
// block is false and the queue is empty, Get returns ErrQueueEmpty
// immediately.
func (q *Queue) Get(ctx context.Context, block bool) (event.Event, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			evt := q.items[0]
			q.items = q.items[1:]
			q.notFull.Broadcast()
			q.mu.Unlock()
			return evt, nil
		}
		q.mu.Unlock()

		if !block {
			return nil, cerrors.NewQueueError(q.name, cerrors.ErrQueueEmpty)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.contentCh:
			// loop and re-check; another getter may have won the race
		}
	}
}

// Rescue reinserts evt at the head of the queue, used by the actor
// consumer loop to put a failed event back for retry ahead of newer
// arrivals (spec.md §4.5.5).
func (q *Queue) Rescue(evt event.Event) {
	q.mu.Lock()
	q.items = append([]event.Event{evt}, q.items...)
	q.mu.Unlock()
	q.notifyContent()
}
