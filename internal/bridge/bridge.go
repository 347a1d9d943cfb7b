// Package bridge manages one persistent worker subprocess and the
// newline-delimited JSON wire to it. The wire carries no request ids, so
// correctness depends on single-flight serialization: only the head of the
// request queue is ever on the wire, and the next valid response line always
// resolves the oldest pending call. Lines that fail to parse, and parsed
// lines without a success indicator, are worker noise and are dropped.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/floguru/gurucore/internal/logger"
)

// Config holds bridge configuration.
type Config struct {
	Command string   // worker executable
	Args    []string // worker arguments

	// Restart enables supervision: a crashed worker is respawned with
	// exponential backoff. Off by default; pending calls always fail on a
	// crash either way.
	Restart               bool
	RestartMaxAttempts    int
	RestartInitialBackoff time.Duration
	RestartMaxBackoff     time.Duration
}

type callResult struct {
	resp map[string]any
	err  error
}

type call struct {
	line      []byte
	done      chan callResult // buffered, exactly one result
	abandoned bool            // caller gave up; discard the response
}

// Bridge is the IPC layer to the worker. All methods are safe for concurrent
// use; concurrent Execute calls are serialized FIFO onto the wire.
type Bridge struct {
	cfg       Config
	log       *logger.Logger
	newWorker func() (WorkerProcess, error)

	mu      sync.Mutex
	proc    WorkerProcess
	pending []*call // pending[0] is on the wire, the rest are queued
	closed  bool
}

// New creates a bridge that spawns cfg.Command as its worker.
func New(cfg Config, log *logger.Logger) *Bridge {
	return NewWithFactory(cfg, log, func() (WorkerProcess, error) {
		return newExecWorker(cfg.Command, cfg.Args, log), nil
	})
}

// NewWithFactory creates a bridge with a custom worker factory. Tests use
// this to drive the wire in-memory.
func NewWithFactory(cfg Config, log *logger.Logger, factory func() (WorkerProcess, error)) *Bridge {
	return &Bridge{cfg: cfg, log: log, newWorker: factory}
}

// Start spawns the worker and begins consuming its output.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.proc != nil {
		return fmt.Errorf("bridge already started")
	}

	proc, err := b.newWorker()
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}
	if err := proc.Start(); err != nil {
		return err
	}

	b.proc = proc
	go b.readLoop(proc)
	return nil
}

// Close shuts the bridge down. Pending calls fail with ErrClosed; the worker
// is killed.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pending := b.pending
	b.pending = nil
	proc := b.proc
	b.mu.Unlock()

	for _, c := range pending {
		c.done <- callResult{err: ErrClosed}
	}
	queueDepth.Set(0)

	if proc != nil {
		return proc.Kill()
	}
	return nil
}

// Execute sends one command to the worker and returns its response. Calls
// are matched to response lines strictly FIFO: a call issued while another is
// outstanding waits in the queue and only reaches the wire once every earlier
// call has been resolved. Context cancellation abandons the call (a response
// already owed by the worker is discarded when it arrives; it cannot be
// preempted without desynchronizing the wire).
func (b *Bridge) Execute(ctx context.Context, command any) (map[string]any, error) {
	line, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}

	c := &call{line: line, done: make(chan callResult, 1)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	if b.proc == nil {
		b.mu.Unlock()
		return nil, ErrWorkerNotRunning
	}
	b.pending = append(b.pending, c)
	queueDepth.Set(float64(len(b.pending)))
	if len(b.pending) == 1 {
		b.writeHeadLocked()
	}
	b.mu.Unlock()

	start := time.Now()
	select {
	case r := <-c.done:
		status := "ok"
		if r.err != nil {
			status = "error"
		}
		executesTotal.WithLabelValues(status).Inc()
		roundtripSeconds.Observe(time.Since(start).Seconds())
		return r.resp, r.err
	case <-ctx.Done():
		b.abandon(c)
		executesTotal.WithLabelValues("cancelled").Inc()
		return nil, ctx.Err()
	}
}

// writeHeadLocked puts the queue head on the wire. A write failure resolves
// that call with the error and moves on to the next; the exit path cleans up
// if the worker is actually gone. Caller holds b.mu.
func (b *Bridge) writeHeadLocked() {
	for len(b.pending) > 0 {
		head := b.pending[0]
		err := b.proc.WriteLine(head.line)
		if err == nil {
			return
		}

		b.log.Error("failed to write request to worker", err)
		b.pending = b.pending[1:]
		queueDepth.Set(float64(len(b.pending)))
		if !head.abandoned {
			head.done <- callResult{err: err}
		}
	}
}

// abandon detaches a call whose caller stopped waiting. A queued call is
// removed outright; the call on the wire stays in the queue so FIFO matching
// survives, but its response will be discarded.
func (b *Bridge) abandon(c *call) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c.abandoned = true
	for i, pc := range b.pending {
		if pc == c && i > 0 {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			queueDepth.Set(float64(len(b.pending)))
			return
		}
	}
}

// readLoop consumes worker stdout until EOF, resolving pending calls in FIFO
// order, then runs the crash path.
func (b *Bridge) readLoop(proc WorkerProcess) {
	for line := range proc.Lines() {
		var resp map[string]any
		if err := json.Unmarshal(line, &resp); err != nil {
			// Not an error: workers are allowed to print debug noise.
			droppedLinesTotal.Inc()
			b.log.Debug("dropped unparseable worker line",
				logger.Field{Key: "line", Value: string(line)})
			continue
		}
		if _, ok := resp["success"]; !ok {
			// Parsed but not a terminal response (e.g. a structured log
			// event); ignore it the same way.
			droppedLinesTotal.Inc()
			b.log.Debug("ignored worker event line")
			continue
		}

		b.mu.Lock()
		if len(b.pending) == 0 {
			b.mu.Unlock()
			b.log.Warn("worker response with no pending call")
			continue
		}
		head := b.pending[0]
		b.pending = b.pending[1:]
		queueDepth.Set(float64(len(b.pending)))
		b.writeHeadLocked()
		deliver := !head.abandoned
		b.mu.Unlock()

		if deliver {
			head.done <- callResult{resp: resp}
		}
	}

	b.handleExit(proc)
}

// handleExit fails everything outstanding and, if supervision is enabled,
// schedules a restart.
func (b *Bridge) handleExit(proc WorkerProcess) {
	crash := &WorkerCrashedError{Err: proc.Wait()}

	b.mu.Lock()
	if b.proc != proc {
		// A restart already replaced this worker.
		b.mu.Unlock()
		return
	}
	b.proc = nil
	pending := make([]*call, 0, len(b.pending))
	for _, c := range b.pending {
		if !c.abandoned {
			pending = append(pending, c)
		}
	}
	b.pending = nil
	restart := b.cfg.Restart && !b.closed
	b.mu.Unlock()

	if b.isClosed() && len(pending) == 0 {
		return
	}

	crashesTotal.Inc()
	queueDepth.Set(0)
	b.log.Error("worker exited", crash.Err,
		logger.Field{Key: "pending_calls", Value: len(pending)})

	for _, c := range pending {
		c.done <- callResult{err: crash}
	}

	if restart {
		go b.superviseRestart()
	}
}

func (b *Bridge) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// superviseRestart respawns the worker with exponential backoff. Gives up
// after the configured number of attempts.
func (b *Bridge) superviseRestart() {
	maxAttempts := b.cfg.RestartMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultRestartMaxAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		delay := backoffDelay(attempt, b.cfg.RestartInitialBackoff, b.cfg.RestartMaxBackoff)
		b.log.Info("restarting worker",
			logger.Field{Key: "attempt", Value: attempt + 1},
			logger.Field{Key: "delay", Value: delay.String()})
		time.Sleep(delay)

		if b.isClosed() {
			return
		}

		proc, err := b.newWorker()
		if err == nil {
			err = proc.Start()
		}
		if err != nil {
			b.log.Error("worker restart failed", err,
				logger.Field{Key: "attempt", Value: attempt + 1})
			continue
		}

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			_ = proc.Kill()
			return
		}
		b.proc = proc
		b.mu.Unlock()

		go b.readLoop(proc)
		restartsTotal.Inc()
		b.log.Info("worker restarted")
		return
	}

	b.log.Warn("worker restart attempts exhausted",
		logger.Field{Key: "attempts", Value: maxAttempts})
}
