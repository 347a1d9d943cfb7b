package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floguru/gurucore/internal/logger"
)

func collectResults(t *testing.T, p *Pool, n int) map[string]Result {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := make(map[string]Result, n)
	for i := 0; i < n; i++ {
		select {
		case r := <-p.Results():
			results[r.TaskID] = r
		case <-ctx.Done():
			t.Fatalf("timeout waiting for results, got %d/%d", len(results), n)
		}
	}
	return results
}

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := NewPool(3, 10, logger.NewNop())
	p.Start()
	defer p.Stop()

	var mu sync.Mutex
	ran := make(map[string]bool)

	const n = 5
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("automation-%d", i)
		p.Submit(Task{ID: id, Kind: "automation", Run: func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			ran[id] = true
			return nil
		}})
	}

	results := collectResults(t, p, n)
	assert.Len(t, results, n)
	for id, r := range results {
		assert.NoError(t, r.Err, id)
		mu.Lock()
		assert.True(t, ran[id], id)
		mu.Unlock()
	}

	m := p.Metrics()
	assert.Equal(t, uint64(n), m.TasksSubmitted)
	assert.Equal(t, uint64(n), m.TasksCompleted)
	assert.Equal(t, uint64(0), m.TasksFailed)
}

func TestPoolReportsTaskFailure(t *testing.T) {
	p := NewPool(1, 5, logger.NewNop())
	p.Start()
	defer p.Stop()

	boom := errors.New("automation blew up")
	p.Submit(Task{ID: "bad", Kind: "automation", Run: func(ctx context.Context) error {
		return boom
	}})

	results := collectResults(t, p, 1)
	require.Contains(t, results, "bad")
	assert.ErrorIs(t, results["bad"].Err, boom)
	assert.Equal(t, uint64(1), p.Metrics().TasksFailed)
}

func TestPoolRecoversFromTaskPanic(t *testing.T) {
	p := NewPool(1, 5, logger.NewNop())
	p.Start()
	defer p.Stop()

	p.Submit(Task{ID: "panics", Kind: "message", Run: func(ctx context.Context) error {
		panic("boom")
	}})
	p.Submit(Task{ID: "after", Kind: "message", Run: func(ctx context.Context) error {
		return nil
	}})

	results := collectResults(t, p, 2)
	require.Contains(t, results, "panics")
	assert.ErrorContains(t, results["panics"].Err, "task panic")
	// The worker survives the panic and keeps processing.
	require.Contains(t, results, "after")
	assert.NoError(t, results["after"].Err)
}

func TestPoolDoWaitsForOutcome(t *testing.T) {
	p := NewPool(2, 5, logger.NewNop())
	p.Start()
	defer p.Stop()

	err := p.Do(context.Background(), Task{ID: "sync", Kind: "automation",
		Run: func(ctx context.Context) error { return nil }})
	assert.NoError(t, err)

	boom := errors.New("nope")
	err = p.Do(context.Background(), Task{ID: "sync-fail", Kind: "automation",
		Run: func(ctx context.Context) error { return boom }})
	assert.ErrorIs(t, err, boom)
}

func TestPoolDoHonoursContext(t *testing.T) {
	p := NewPool(1, 1, logger.NewNop())
	p.Start()
	defer p.Stop()

	block := make(chan struct{})
	defer close(block)
	p.Submit(Task{ID: "blocker", Kind: "automation", Run: func(ctx context.Context) error {
		<-block
		return nil
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Do(ctx, Task{ID: "waiting", Kind: "automation",
		Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolDefaults(t *testing.T) {
	p := NewPool(0, 0, logger.NewNop())
	assert.Equal(t, DefaultPoolSize, p.WorkerCount())
	assert.Equal(t, DefaultQueueSize, cap(p.taskQueue))
	assert.Equal(t, 0, p.QueueSize())
}

func TestPoolStopWaitsForInflight(t *testing.T) {
	p := NewPool(2, 5, logger.NewNop())
	p.Start()

	started := make(chan struct{})
	finished := make(chan struct{})
	p.Submit(Task{ID: "slow", Kind: "automation", Run: func(ctx context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		close(finished)
		return nil
	}})

	<-started
	p.Stop()

	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before the in-flight task finished")
	}
}
