// Package workers provides a bounded worker pool for background execution of
// automation runs and inbound message handling. Results are published on a
// channel for asynchronous monitoring.
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/floguru/gurucore/internal/logger"
)

// Task is a unit of work for the pool.
type Task struct {
	ID   string                          // unique task identifier
	Kind string                          // "automation" or "message"
	Run  func(ctx context.Context) error // the work itself
}

// Result is the outcome of one task.
type Result struct {
	TaskID   string
	Kind     string
	Err      error
	Duration time.Duration
}

// PoolMetrics tracks cumulative pool counters.
type PoolMetrics struct {
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksFailed    uint64
	TotalDuration  time.Duration
}

const (
	DefaultPoolSize  = 5
	DefaultQueueSize = 100
)

// Pool runs tasks on a fixed set of goroutine workers.
type Pool struct {
	taskQueue chan Task
	resultCh  chan Result
	workers   int
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	log       *logger.Logger

	metricsMu sync.RWMutex
	metrics   PoolMetrics
}

// NewPool creates a pool with the given worker count and queue size. Zero or
// negative values fall back to the defaults.
func NewPool(workers, queueSize int, log *logger.Logger) *Pool {
	if workers <= 0 {
		workers = DefaultPoolSize
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		taskQueue: make(chan Task, queueSize),
		resultCh:  make(chan Result, queueSize),
		workers:   workers,
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	p.log.Info("starting worker pool",
		logger.Field{Key: "workers", Value: p.workers},
		logger.Field{Key: "queue_size", Value: cap(p.taskQueue)})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit enqueues a task, blocking if the queue is full.
func (p *Pool) Submit(task Task) {
	p.incrementSubmitted()
	p.taskQueue <- task
}

// SubmitWithContext enqueues a task, giving up when ctx is done.
func (p *Pool) SubmitWithContext(ctx context.Context, task Task) error {
	p.incrementSubmitted()

	select {
	case p.taskQueue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs a task through the pool and waits for its outcome, so callers get
// bounded concurrency with synchronous semantics.
func (p *Pool) Do(ctx context.Context, task Task) error {
	done := make(chan error, 1)
	run := task.Run
	task.Run = func(ctx context.Context) error {
		err := run(ctx)
		done <- err
		return err
	}

	if err := p.SubmitWithContext(ctx, task); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the channel task outcomes are published on.
func (p *Pool) Results() <-chan Result {
	return p.resultCh
}

// Stop shuts the pool down and waits for in-flight tasks to finish. Queued
// but unstarted tasks are dropped.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()

	m := p.Metrics()
	p.log.Info("worker pool stopped",
		logger.Field{Key: "tasks_submitted", Value: m.TasksSubmitted},
		logger.Field{Key: "tasks_completed", Value: m.TasksCompleted},
		logger.Field{Key: "tasks_failed", Value: m.TasksFailed})
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.workers
}

// QueueSize returns the number of tasks waiting in the queue.
func (p *Pool) QueueSize() int {
	return len(p.taskQueue)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.log.Debug("worker started", logger.Field{Key: "worker_id", Value: id})

	for {
		select {
		case task := <-p.taskQueue:
			p.processTask(id, task)
		case <-p.ctx.Done():
			p.log.Debug("worker stopping", logger.Field{Key: "worker_id", Value: id})
			return
		}
	}
}

func (p *Pool) processTask(workerID int, task Task) {
	start := time.Now()

	p.log.Debug("processing task",
		logger.Field{Key: "worker_id", Value: workerID},
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "task_kind", Value: task.Kind})

	result := Result{TaskID: task.ID, Kind: task.Kind}
	result.Err = p.runTask(task)
	result.Duration = time.Since(start)

	if result.Err != nil {
		p.incrementFailed()
		tasksTotal.WithLabelValues(task.Kind, "error").Inc()
	} else {
		p.incrementCompleted()
		tasksTotal.WithLabelValues(task.Kind, "ok").Inc()
	}
	p.recordDuration(result.Duration)

	select {
	case p.resultCh <- result:
	case <-p.ctx.Done():
		p.log.Warn("dropping task result, pool shutting down",
			logger.Field{Key: "task_id", Value: task.ID})
	}
}

// runTask executes the task body with panic containment.
func (p *Pool) runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
			p.log.Error("task panicked", err,
				logger.Field{Key: "task_id", Value: task.ID})
		}
	}()

	if task.Run == nil {
		return fmt.Errorf("task %s has no run function", task.ID)
	}
	return task.Run(p.ctx)
}
