package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew_ClampsLimit(t *testing.T) {
	assert.Equal(t, 1, New(0).Limit())
	assert.Equal(t, 1, New(-3).Limit())
	assert.Equal(t, 4, New(4).Limit())
}

func TestSubmit_ReturnsResult(t *testing.T) {
	ex := New(1)
	h := Submit(context.Background(), ex, func(context.Context) (string, error) {
		return "ok", nil
	})

	got, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	<-h.Done()
	got, err = h.Result()
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	ex.Wait()
}

func TestSubmit_RecoversPanic(t *testing.T) {
	ex := New(1)
	h := Submit(context.Background(), ex, func(context.Context) (int, error) {
		panic("boom")
	})
	ex.Wait()

	_, err := h.Result()
	require.ErrorIs(t, err, ErrJobPanicked)
	assert.Contains(t, err.Error(), "boom")

	// The slot was released.
	h = Submit(context.Background(), ex, func(context.Context) (int, error) { return 7, nil })
	v, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	ex.Wait()
}

func TestSubmit_CancelledBeforeSlot(t *testing.T) {
	ex := New(1)
	release := make(chan struct{})
	started := make(chan struct{})
	blocker := Submit(context.Background(), ex, func(context.Context) (int, error) {
		close(started)
		<-release
		return 1, nil
	})
	<-started
	assert.Equal(t, 1, ex.InFlight())

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	waiting := Submit(ctx, ex, func(context.Context) (int, error) {
		ran.Store(true)
		return 2, nil
	})
	cancel()

	_, err := waiting.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())

	close(release)
	_, err = blocker.Wait(context.Background())
	assert.NoError(t, err)
	ex.Wait()
}

func TestMap_BoundsConcurrency(t *testing.T) {
	ex := New(2)

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	fn := func(_ context.Context, n int) (int, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return n * n, nil
	}

	handles := Map(context.Background(), ex, fn, []int{1, 2, 3, 4, 5})
	require.Len(t, handles, 5)

	var sum int
	for h := range Completed(handles) {
		v, err := h.Result()
		require.NoError(t, err)
		sum += v
	}
	ex.Wait()

	assert.Equal(t, 1+4+9+16+25, sum)
	assert.Equal(t, 2, peak)
	assert.Zero(t, ex.InFlight())
	for i, h := range handles {
		assert.Equal(t, i+1, h.Item)
	}
}

func TestMap_FailuresStayOnTheirHandle(t *testing.T) {
	ex := New(3)
	errBad := errors.New("bad item")
	fn := func(_ context.Context, s string) (string, error) {
		if s == "b" {
			return "", errBad
		}
		return s, nil
	}

	handles := Map(context.Background(), ex, fn, []string{"a", "b", "c"})
	ok, failed := 0, 0
	for h := range Completed(handles) {
		if _, err := h.Result(); err != nil {
			assert.ErrorIs(t, err, errBad)
			assert.Equal(t, "b", h.Item)
			failed++
			continue
		}
		ok++
	}
	ex.Wait()
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
}

func TestCompleted_YieldsInCompletionOrder(t *testing.T) {
	ex := New(3)
	delays := []time.Duration{60 * time.Millisecond, 0, 30 * time.Millisecond}
	fn := func(_ context.Context, d time.Duration) (time.Duration, error) {
		time.Sleep(d)
		return d, nil
	}

	var order []time.Duration
	for h := range Completed(Map(context.Background(), ex, fn, delays)) {
		v, _ := h.Result()
		order = append(order, v)
	}
	ex.Wait()
	assert.Equal(t, []time.Duration{0, 30 * time.Millisecond, 60 * time.Millisecond}, order)
}

func TestCompleted_EarlyBreak(t *testing.T) {
	ex := New(2)
	handles := Map(context.Background(), ex, func(_ context.Context, n int) (int, error) {
		return n, nil
	}, []int{1, 2, 3, 4})

	seen := 0
	for range Completed(handles) {
		seen++
		break
	}
	ex.Wait()
	assert.Equal(t, 1, seen)
}

func TestHandle_WaitRespectsContext(t *testing.T) {
	ex := New(1)
	release := make(chan struct{})
	h := Submit(context.Background(), ex, func(context.Context) (int, error) {
		<-release
		return 0, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	ex.Wait()
}
