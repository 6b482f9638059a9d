package restart

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnRunsOnceWithoutRestartOnSuccess(t *testing.T) {
	p := New(context.Background(), nil)
	var calls atomic.Int32
	p.Spawn("once", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, true)
	p.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestSpawnRestartsOnErrorUntilSuccess(t *testing.T) {
	p := New(context.Background(), nil)
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	var calls atomic.Int32
	p.Spawn("flaky", func(ctx context.Context) error {
		n := calls.Add(1)
		if n < 3 {
			return errors.New("not yet")
		}
		return nil
	}, true)
	p.Wait()
	assert.Equal(t, int32(3), calls.Load())
}

func TestSpawnDoesNotRestartWhenRestartFalse(t *testing.T) {
	p := New(context.Background(), nil)
	var calls atomic.Int32
	p.Spawn("single-shot", func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("boom")
	}, false)
	p.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestSpawnRecoversFromPanicAndRestarts(t *testing.T) {
	p := New(context.Background(), nil)
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	var calls atomic.Int32
	p.Spawn("panicky", func(ctx context.Context) error {
		n := calls.Add(1)
		if n == 1 {
			panic("kaboom")
		}
		return nil
	}, true)
	p.Wait()
	assert.Equal(t, int32(2), calls.Load())
}

func TestKillStopsRestartLoop(t *testing.T) {
	p := New(context.Background(), nil)
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	var calls atomic.Int32
	p.Spawn("forever-broken", func(ctx context.Context) error {
		calls.Add(1)
		return errors.New("always fails")
	}, true)

	time.Sleep(20 * time.Millisecond)
	p.Kill()
	seen := calls.Load()
	require.Greater(t, seen, int32(0))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, seen, calls.Load(), "no further restarts after Kill")
}
