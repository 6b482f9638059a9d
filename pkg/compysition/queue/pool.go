package queue

import (
	"fmt"
	"sync"

	cerrors "github.com/fiebiga/compysition/pkg/compysition/errors"
)

// Group names the four named queue groupings an actor exposes, mirroring
// the original implementation's inbox/outbox/error_queue/logs attributes
// (spec.md §4.4).
type Group string

const (
	Inbound  Group = "inbound"
	Outbound Group = "outbound"
	ErrorQ   Group = "error"
	Logs     Group = "logs"
)

// Pool groups an actor's named queues by direction. Each (group, name)
// pair may be bound to exactly one queue; binding a different queue under
// an already-used name returns ErrQueueConnected.
type Pool struct {
	mu     sync.RWMutex
	queues map[Group]map[string]*Queue
}

// NewPool constructs an empty QueuePool.
func NewPool() *Pool {
	return &Pool{queues: map[Group]map[string]*Queue{
		Inbound:  {},
		Outbound: {},
		ErrorQ:   {},
		Logs:     {},
	}}
}

// Add binds q under (group, name). It returns ErrQueueConnected if a
// different queue is already bound under that name, and is a no-op if the
// same queue is bound again (idempotent re-connection, matching the
// original director.connect's tolerance for re-wiring the same queue).
func (p *Pool) Add(group Group, name string, q *Queue) (*Queue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bucket, ok := p.queues[group]
	if !ok {
		bucket = map[string]*Queue{}
		p.queues[group] = bucket
	}
	if existing, ok := bucket[name]; ok && existing != q {
		return nil, cerrors.NewQueueError(name, cerrors.ErrQueueConnected)
	}
	bucket[name] = q
	return q, nil
}

// Get returns the queue bound under (group, name), if any.
func (p *Pool) Get(group Group, name string) (*Queue, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	q, ok := p.queues[group][name]
	return q, ok
}

// Names returns the queue names currently bound in group, in no
// particular order.
func (p *Pool) Names(group Group) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.queues[group]))
	for name := range p.queues[group] {
		names = append(names, name)
	}
	return names
}

// All returns every queue bound in group.
func (p *Pool) All(group Group) []*Queue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Queue, 0, len(p.queues[group]))
	for _, q := range p.queues[group] {
		out = append(out, q)
	}
	return out
}

// String renders a human-readable summary, used in diagnostic logging.
func (p *Pool) String() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fmt.Sprintf("inbound=%d outbound=%d error=%d logs=%d",
		len(p.queues[Inbound]), len(p.queues[Outbound]), len(p.queues[ErrorQ]), len(p.queues[Logs]))
}
