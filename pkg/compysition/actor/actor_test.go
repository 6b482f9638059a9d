package actor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/fiebiga/compysition/pkg/compysition/errors"
	"github.com/fiebiga/compysition/pkg/compysition/event"
	"github.com/fiebiga/compysition/pkg/compysition/queue"
)

func uppercase(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue) error {
	s, _ := evt.Data().(string)
	return evt.SetData(stringsToUpper(s))
}

func stringsToUpper(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func wireActor(t *testing.T, a *Actor) (in, out *queue.Queue) {
	t.Helper()
	in = queue.New("in", 10)
	out = queue.New("out", 10)
	_, err := a.RegisterConsumer("in", in)
	require.NoError(t, err)
	_, err = a.RegisterProducer("out", out)
	require.NoError(t, err)
	return in, out
}

func TestActorConsumeForwardsToOutbound(t *testing.T) {
	var self *Actor
	self = New("upper", func(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue) error {
		if err := uppercase(ctx, evt, origin, originQueue); err != nil {
			return err
		}
		return self.SendEvent(ctx, evt)
	}, WithBlockingConsume(true))

	in, out := wireActor(t, self)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, self.Start(ctx))
	defer self.Stop()

	require.NoError(t, in.Put(ctx, event.NewPlainEvent("hello"), true))

	outEvt, err := out.Get(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", outEvt.Data())
}

func TestActorRequiredAttributeRejection(t *testing.T) {
	var self *Actor
	self = New("needs-attr", func(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue) error {
		return self.SendEvent(ctx, evt)
	}, WithBlockingConsume(true), WithRequiredAttributes("token"))

	in, out := wireActor(t, self)
	errQ := queue.New("err", 10)
	_, err := self.RegisterErrorQueue("err", errQ)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, self.Start(ctx))
	defer self.Stop()

	require.NoError(t, in.Put(ctx, event.NewPlainEvent("hello"), true))

	errEvt, getErr := errQ.Get(ctx, true)
	require.NoError(t, getErr)
	require.Error(t, errEvt.Err())
	assert.ErrorIs(t, errEvt.Err(), cerrors.ErrInvalidActorInput)
	assert.Equal(t, 0, out.QSize())
}

func TestActorRescueRetriesThenSendsError(t *testing.T) {
	attempts := 0
	var self *Actor
	self = New("always-fails", func(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue) error {
		attempts++
		return errors.New("boom")
	}, WithBlockingConsume(true), WithRescue(2, time.Millisecond))

	in, _ := wireActor(t, self)
	errQ := queue.New("err", 10)
	_, err := self.RegisterErrorQueue("err", errQ)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, self.Start(ctx))
	defer self.Stop()

	require.NoError(t, in.Put(ctx, event.NewPlainEvent("hello"), true))

	errEvt, getErr := errQ.Get(ctx, true)
	require.NoError(t, getErr)
	assert.EqualError(t, errEvt.Err(), "boom")
	assert.Equal(t, 3, attempts, "one initial attempt plus two rescues")
}

func TestActorHooksRunOncePerLifecycleNotPerEvent(t *testing.T) {
	var preCalls, postCalls atomic.Int32
	var self *Actor
	self = New("hooked", func(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue) error {
		return self.SendEvent(ctx, evt)
	},
		WithBlockingConsume(true),
		WithPreHook(func() error {
			preCalls.Add(1)
			return nil
		}),
		WithPostHook(func() error {
			postCalls.Add(1)
			return nil
		}),
	)

	in, out := wireActor(t, self)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, self.Start(ctx))

	require.NoError(t, in.Put(ctx, event.NewPlainEvent("a"), true))
	require.NoError(t, in.Put(ctx, event.NewPlainEvent("b"), true))
	require.NoError(t, in.Put(ctx, event.NewPlainEvent("c"), true))

	for i := 0; i < 3; i++ {
		_, err := out.Get(ctx, true)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), preCalls.Load(), "PreHook must run once from Start, not per event")
	require.NoError(t, self.Stop())
	assert.Equal(t, int32(1), postCalls.Load(), "PostHook must run once from Stop, not per event")
}

func TestActorFailingPreHookAbortsStart(t *testing.T) {
	self := New("bad-pre", func(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue) error {
		return nil
	}, WithBlockingConsume(true), WithPreHook(func() error {
		return errors.New("setup failed")
	}))
	wireActor(t, self)

	err := self.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, stateStopped, self.state.Load())
}

func TestActorLogDeliversToLogsGroup(t *testing.T) {
	var self *Actor
	self = New("logger", func(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue) error {
		self.Log(ctx, event.LevelWarn, "saw an event")
		return nil
	}, WithBlockingConsume(true))

	in, _ := wireActor(t, self)
	logQ := queue.New("logs", 10)
	_, err := self.RegisterLogQueue("logs", logQ)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, self.Start(ctx))
	defer self.Stop()

	require.NoError(t, in.Put(ctx, event.NewPlainEvent("hello"), true))

	logEvt, getErr := logQ.Get(ctx, true)
	require.NoError(t, getErr)
	le, ok := logEvt.(*event.LogEvent)
	require.True(t, ok)
	assert.Equal(t, "logger", le.Origin)
	assert.Equal(t, event.LevelWarn, le.Level)
	assert.Equal(t, "saw an event", le.Message)
}

func TestActorWidensInputToAcceptedVariant(t *testing.T) {
	var self *Actor
	var received event.Variant
	self = New("wants-mapping", func(ctx context.Context, evt event.Event, origin string, originQueue *queue.Queue) error {
		received = evt.Variant()
		return nil
	}, WithBlockingConsume(true), WithInput(event.Mapping))

	in, _ := wireActor(t, self)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, self.Start(ctx))
	defer self.Stop()

	require.NoError(t, in.Put(ctx, event.NewFormEvent(event.Form{{Key: "a", Values: []string{"1"}}}), true))

	require.Eventually(t, func() bool { return received == event.Mapping }, time.Second, 5*time.Millisecond)
}
