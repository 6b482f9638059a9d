package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/fiebiga/compysition/pkg/compysition/errors"
	"github.com/fiebiga/compysition/pkg/compysition/event"
)

func TestPutGetFIFOOrder(t *testing.T) {
	q := New("test", 4)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, event.NewPlainEvent("a"), true))
	require.NoError(t, q.Put(ctx, event.NewPlainEvent("b"), true))

	first, err := q.Get(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "a", first.Data())

	second, err := q.Get(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "b", second.Data())
}

func TestGetNonBlockingOnEmptyReturnsErrQueueEmpty(t *testing.T) {
	q := New("test", 4)
	_, err := q.Get(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrQueueEmpty)
}

func TestPutNonBlockingOnFullReturnsErrQueueFull(t *testing.T) {
	q := New("test", 1)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, event.NewPlainEvent("a"), true))
	err := q.Put(ctx, event.NewPlainEvent("b"), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrQueueFull)
}

func TestPutBlockingUnblocksWhenSpaceFrees(t *testing.T) {
	q := New("test", 1)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, event.NewPlainEvent("a"), true))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, q.Put(ctx, event.NewPlainEvent("b"), true))
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := q.Get(ctx, true)
	require.NoError(t, err)

	wg.Wait()
	assert.Equal(t, 1, q.QSize())
}

func TestGetBlockingRespectsContextCancellation(t *testing.T) {
	q := New("test", 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Get(ctx, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewZeroMaxSizeIsUnbounded(t *testing.T) {
	q := New("test", 0)
	ctx := context.Background()
	for i := 0; i < DefaultMaxSize*3; i++ {
		require.NoError(t, q.Put(ctx, event.NewPlainEvent("x"), false))
	}
	assert.Equal(t, DefaultMaxSize*3, q.QSize())

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, q.Put(ctx, event.NewPlainEvent("y"), true))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocking Put on an unbounded queue did not return")
	}
}

func TestRescueReinsertsAtHead(t *testing.T) {
	q := New("test", 4)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, event.NewPlainEvent("a"), true))
	q.Rescue(event.NewPlainEvent("rescued"))

	first, err := q.Get(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "rescued", first.Data())
}

func TestPoolAddConflictReturnsErrQueueConnected(t *testing.T) {
	p := NewPool()
	q1 := New("a", 4)
	q2 := New("a", 4)
	_, err := p.Add(Outbound, "a", q1)
	require.NoError(t, err)
	_, err = p.Add(Outbound, "a", q2)
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrQueueConnected)
}

func TestPoolAddSameQueueIsIdempotent(t *testing.T) {
	p := NewPool()
	q1 := New("a", 4)
	_, err := p.Add(Outbound, "a", q1)
	require.NoError(t, err)
	_, err = p.Add(Outbound, "a", q1)
	require.NoError(t, err)
}
