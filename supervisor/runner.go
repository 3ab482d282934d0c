package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var errDeadline = errors.New("job deadline exceeded")

// LineFunc receives one reassembled output line.
type LineFunc func(ctx context.Context, line string)

type Runner struct {
	ChunkSize      int
	MaxLineSize    int
	StderrTailSize int
	OnStdout       LineFunc
	OnStderr       LineFunc
	// OnStart is called with the child pid once the process is running.
	OnStart func(pid int)
}

type Result struct {
	Started  time.Time
	Stopped  time.Time
	ExitCode int
	// Err is nil on a zero exit, otherwise one of *SpawnError, *ExitError,
	// *TimeoutError or ErrCancelled.
	Err error
	// DrainErr is the first read error on stdout or stderr other than EOF.
	// The output seen by the line callbacks is incomplete when it is set.
	DrainErr error
}

// Run starts cmd and blocks until the process has exited and both streams
// are drained, or the deadline or ctx ends it.
func (r *Runner) Run(ctx context.Context, cmd Command) Result {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, cmd.Timeout, errDeadline)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.WaitDelay = cmd.WaitDelay
	setProcessGroup(c)

	res := Result{ExitCode: -1}

	stdout, err := c.StdoutPipe()
	if err != nil {
		res.Err = &SpawnError{Path: cmd.Path, Err: err}
		return res
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		res.Err = &SpawnError{Path: cmd.Path, Err: err}
		return res
	}

	res.Started = time.Now().UTC()
	if err := c.Start(); err != nil {
		res.Stopped = time.Now().UTC()
		res.Err = &SpawnError{Path: cmd.Path, Err: err}
		return res
	}
	if r.OnStart != nil {
		r.OnStart(c.Process.Pid)
	}

	// Unblock drains as soon as the deadline fires even if a grandchild
	// outside the process group still holds the write ends.
	stop := context.AfterFunc(ctx, func() {
		_ = stdout.Close()
		_ = stderr.Close()
	})
	defer stop()

	tail := newTailBuffer(r.StderrTailSize)
	onStderr := func(ctx context.Context, line string) {
		tail.add(line)
		if r.OnStderr != nil {
			r.OnStderr(ctx, line)
		}
	}

	var g errgroup.Group
	g.Go(func() error { return r.drain(ctx, stdout, r.OnStdout) })
	g.Go(func() error { return r.drain(ctx, stderr, onStderr) })
	res.DrainErr = g.Wait()

	waitErr := c.Wait()
	res.Stopped = time.Now().UTC()
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	switch {
	case waitErr == nil:
		res.Err = nil
	case errors.Is(context.Cause(ctx), errDeadline):
		res.Err = &TimeoutError{Timeout: cmd.Timeout}
	case ctx.Err() != nil:
		res.Err = ErrCancelled
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.Err = &ExitError{Code: exitErr.ExitCode(), Stderr: tail.String()}
		} else {
			res.Err = &ExitError{Code: res.ExitCode, Stderr: waitErr.Error()}
		}
	}
	return res
}

// drain copies a pipe into a LineBuffer chunk by chunk. A closed pipe ends
// the drain like EOF does.
func (r *Runner) drain(ctx context.Context, pipe io.Reader, fn LineFunc) error {
	lb := NewLineBuffer(r.MaxLineSize, func(line string) {
		if fn != nil {
			fn(ctx, line)
		}
	})
	defer lb.Flush()

	size := r.ChunkSize
	if size <= 0 {
		size = 4096
	}
	chunk := make([]byte, size)
	for {
		n, err := pipe.Read(chunk)
		if n > 0 {
			_, _ = lb.Write(chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to read job output: %w", err)
		}
	}
}

// tailBuffer keeps the last max bytes of stderr, cut at line boundaries.
type tailBuffer struct {
	mu    sync.Mutex
	max   int
	lines []string
	size  int
}

func newTailBuffer(max int) *tailBuffer {
	if max <= 0 {
		max = 16 * 1024
	}
	return &tailBuffer{max: max}
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(line) > t.max {
		line = line[len(line)-t.max:]
	}
	t.lines = append(t.lines, line)
	t.size += len(line) + 1
	for t.size > t.max && len(t.lines) > 1 {
		t.size -= len(t.lines[0]) + 1
		t.lines = t.lines[1:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(strings.Join(t.lines, "\n"))
}
