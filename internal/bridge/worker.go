package bridge

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/floguru/gurucore/internal/logger"
)

// maxLineSize bounds a single worker response line.
const maxLineSize = 1 * 1024 * 1024

// WorkerProcess abstracts the spawned worker subprocess so the bridge can be
// tested against an in-memory wire.
type WorkerProcess interface {
	// Start launches the worker.
	Start() error
	// WriteLine writes one newline-terminated request line to the worker.
	WriteLine(line []byte) error
	// Lines yields raw stdout lines. The channel closes when the worker's
	// stdout reaches EOF, which is the exit signal the bridge acts on.
	Lines() <-chan []byte
	// Wait blocks until the process has exited and returns its exit error.
	Wait() error
	// Kill terminates the process.
	Kill() error
}

// execWorker runs the worker as a child process over an os/exec pipe pair.
type execWorker struct {
	cmd    *exec.Cmd
	log    *logger.Logger
	stdin  io.WriteCloser
	lines  chan []byte
	waitMu sync.Mutex
	waited bool
	werr   error
}

func newExecWorker(command string, args []string, log *logger.Logger) *execWorker {
	return &execWorker{
		cmd:   exec.Command(command, args...),
		log:   log,
		lines: make(chan []byte, 16),
	}
}

func (w *execWorker) Start() error {
	stdin, err := w.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := w.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open worker stdout: %w", err)
	}
	stderr, err := w.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open worker stderr: %w", err)
	}

	if err := w.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	w.stdin = stdin

	go w.readStdout(stdout)
	go w.drainStderr(stderr)

	w.log.Info("worker started",
		logger.Field{Key: "command", Value: w.cmd.Path},
		logger.Field{Key: "pid", Value: w.cmd.Process.Pid})
	return nil
}

func (w *execWorker) readStdout(stdout io.Reader) {
	defer close(w.lines)

	reader := bufio.NewReaderSize(stdout, 64*1024)
	for {
		line, dropped, err := readBoundedLine(reader)
		if err != nil {
			if err != io.EOF {
				// The pipe failed while the process may still be running.
				// Kill it so the exit path's Wait can return.
				w.log.Error("worker stdout read failed", err)
				_ = w.Kill()
			}
			return
		}
		if dropped {
			droppedLinesTotal.Inc()
			w.log.Warn("dropped oversized worker line",
				logger.Field{Key: "limit_bytes", Value: maxLineSize})
			continue
		}
		w.lines <- line
	}
}

// readBoundedLine reads one line of at most maxLineSize bytes. A longer line
// is consumed to its end and reported as dropped so the caller can keep
// reading; the closed-stream condition is io.EOF.
func readBoundedLine(r *bufio.Reader) (line []byte, dropped bool, err error) {
	var buf []byte
	overflow := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && len(buf) > 0 && !overflow {
				return buf, false, nil
			}
			return nil, false, err
		}
		if !overflow {
			if len(buf)+len(chunk) > maxLineSize {
				overflow = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			return buf, overflow, nil
		}
	}
}

// drainStderr logs worker diagnostics. Stderr is never part of the wire
// protocol.
func (w *execWorker) drainStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		w.log.Debug("worker stderr", logger.Field{Key: "line", Value: scanner.Text()})
	}
}

func (w *execWorker) WriteLine(line []byte) error {
	if _, err := w.stdin.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write to worker: %w", err)
	}
	return nil
}

func (w *execWorker) Lines() <-chan []byte {
	return w.lines
}

func (w *execWorker) Wait() error {
	w.waitMu.Lock()
	defer w.waitMu.Unlock()
	if !w.waited {
		w.werr = w.cmd.Wait()
		w.waited = true
	}
	return w.werr
}

func (w *execWorker) Kill() error {
	if w.cmd.Process == nil {
		return nil
	}
	return w.cmd.Process.Kill()
}
