package director

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiebiga/compysition/pkg/compysition/actor"
	"github.com/fiebiga/compysition/pkg/compysition/event"
	"github.com/fiebiga/compysition/pkg/compysition/queue"
)

func passthrough(name string) *actor.Actor {
	var self *actor.Actor
	self = actor.New(name, func(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue) error {
		return self.SendEvent(ctx, evt)
	}, actor.WithBlockingConsume(true))
	return self
}

func TestRegisterActorDuplicateNameFails(t *testing.T) {
	d := New()
	require.NoError(t, d.RegisterActor("a", passthrough("a")))
	err := d.RegisterActor("a", passthrough("a"))
	require.Error(t, err)
}

func TestConnectQueueWiresEventsThrough(t *testing.T) {
	d := New()
	src := passthrough("src")
	dst := passthrough("dst")
	require.NoError(t, d.RegisterActor("src", src))
	require.NoError(t, d.RegisterActor("dst", dst))
	require.NoError(t, d.ConnectQueue("src", "out", "dst", "in", 4))

	in := queue.New("entry", 4)
	_, err := src.RegisterConsumer("entry", in)
	require.NoError(t, err)

	finalOut := queue.New("final", 4)
	_, err = dst.RegisterProducer("final", finalOut)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx, false))
	defer d.Stop()

	require.NoError(t, in.Put(ctx, event.NewPlainEvent("hi"), true))

	out, err := finalOut.Get(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Data())
}

func TestDefaultErrorConnectionAutoWires(t *testing.T) {
	d := New()
	worker := actor.New("worker", func(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue) error {
		return assertAlwaysFails()
	}, actor.WithBlockingConsume(true))
	sink := passthrough("sink")

	require.NoError(t, d.RegisterActor("worker", worker))
	require.NoError(t, d.RegisterActor("sink", sink))
	d.RegisterErrorActor("sink", "incoming")

	in := queue.New("entry", 4)
	_, err := worker.RegisterConsumer("entry", in)
	require.NoError(t, err)
	sinkOut := queue.New("sink-out", 4)
	_, err = sink.RegisterProducer("sink-out", sinkOut)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx, false))
	defer d.Stop()

	require.NoError(t, in.Put(ctx, event.NewPlainEvent("boom"), true))

	out, err := sinkOut.Get(ctx, true)
	require.NoError(t, err)
	require.Error(t, out.Err())
}

func assertAlwaysFails() error {
	return errAlways
}

var errAlways = assertError("always fails")

type assertError string

func (e assertError) Error() string { return string(e) }

func TestBlockUnblocksOnStop(t *testing.T) {
	d := New()
	require.NoError(t, d.RegisterActor("a", passthrough("a")))
	ctx := context.Background()
	require.NoError(t, d.Start(ctx, false))

	done := make(chan struct{})
	go func() {
		_ = d.Block(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, d.Stop())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Block did not return after Stop")
	}
}
