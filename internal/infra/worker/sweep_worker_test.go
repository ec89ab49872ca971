package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/ligue-crm/internal/infra/http/middleware"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Cleanup() { s.calls.Add(1) }

func TestSweepWorkerRunsEverySweeper(t *testing.T) {
	a, b := &countingSweeper{}, &countingSweeper{}
	w := NewSweepWorker(5*time.Millisecond, a, b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return a.calls.Load() >= 2 && b.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep worker não encerrou")
	}
}

func TestSweepWorkerEvictsIdleVisitors(t *testing.T) {
	limiter := middleware.NewRateLimiter(60, 10*time.Millisecond)
	require.True(t, limiter.Allow("203.0.113.7"))
	require.Equal(t, 1, limiter.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewSweepWorker(5*time.Millisecond, limiter).Start(ctx)

	assert.Eventually(t, func() bool { return limiter.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestNewSweepWorkerDefaultsInterval(t *testing.T) {
	w := NewSweepWorker(0)

	assert.Equal(t, time.Minute, w.interval)
}
