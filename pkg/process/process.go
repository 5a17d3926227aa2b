// Package process spawns the external test runner through a shell and captures its output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// AbnormalExitThreshold is the highest exit code a test runner uses for a
// regular outcome (0 passed, 1 failed, 2 usage). Anything above is a crash.
const AbnormalExitThreshold = 2

const (
	// DefaultKillGrace is how long a cancelled process group gets between the
	// terminate signal and the kill signal.
	DefaultKillGrace = 2 * time.Second
	// pipeDelay bounds how long Wait blocks on output pipes held open by
	// descendants after the shell itself exited.
	pipeDelay    = time.Second
	sweepTimeout = 5 * time.Second
)

var (
	// ErrEmptyCommand is returned when Run is called without a command.
	ErrEmptyCommand = errors.New("process: empty command")
	// ErrCancelled is returned when the context was cancelled while the command ran.
	ErrCancelled = errors.New("process: run cancelled")
)

// Result describes a finished invocation.
type Result struct {
	// ExitCode is the process exit code, -1 when it was terminated by a signal.
	ExitCode int
	// Signal is the name of the terminating signal, empty for a regular exit.
	Signal string
	// Output is stdout and stderr interleaved in arrival order.
	Output string
	// Duration is the wall time between start and exit.
	Duration time.Duration
}

// Abnormal reports whether the invocation crashed rather than reported a test outcome.
func (r *Result) Abnormal() bool {
	return r.Signal != "" || r.ExitCode > AbnormalExitThreshold
}

// Sweeper terminates processes that escaped process group termination.
type Sweeper interface {
	// Sweep terminates leftover processes started at or after since and
	// returns how many it signalled.
	Sweep(ctx context.Context, since time.Time) (int, error)
}

// Runner runs shell commands one at a time.
// A Runner is safe for concurrent use; each Run owns its own process.
type Runner struct {
	dir     string
	env     []string
	output  io.Writer
	sweeper Sweeper
	log     log.Logger
	grace   time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithDir sets the working directory. Empty means the current directory.
func WithDir(dir string) Option {
	return func(r *Runner) {
		r.dir = dir
	}
}

// WithEnv appends variables ("KEY=value") to the inherited environment.
func WithEnv(env ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// WithOutput tees live output, plus command start and exit lines, to w.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) {
		r.output = w
	}
}

// WithSweeper sets the orphan sweeper used after a cancelled run.
func WithSweeper(s Sweeper) Option {
	return func(r *Runner) {
		r.sweeper = s
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *Runner) {
		r.log = l
	}
}

// WithKillGrace sets the delay between terminate and kill on cancellation.
// Negative values are ignored.
func WithKillGrace(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.grace = d
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		log:   log.Root(),
		grace: DefaultKillGrace,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.New("component", "process")
	return r
}

// Run executes command through the platform shell and waits for it to exit.
// Cancelling ctx terminates the whole process group, then sweeps orphans;
// the partial Result is returned together with ErrCancelled.
// A non-zero exit is not an error: callers inspect Result.
func (r *Runner) Run(ctx context.Context, command string) (*Result, error) {
	if command == "" {
		return nil, ErrEmptyCommand
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	var captured bytes.Buffer
	sink := io.Writer(&captured)
	if r.output != nil {
		sink = io.MultiWriter(&captured, r.output)
		r.announce("Running command: %s\n", command)
	}
	out := &lockedWriter{w: sink}

	cmd := shellCommand(command)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), r.env...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = pipeDelay
	configure(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("process: start %q: %w", command, err)
	}
	r.log.Debug("Started command", "command", command, "pid", cmd.Process.Pid, "dir", r.dir)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var (
		waitErr   error
		cancelled bool
	)
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		cancelled = true
		waitErr = r.stop(cmd, done, start)
	}

	result := &Result{Duration: time.Since(start)}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil, errors.As(waitErr, &exitErr):
	case errors.Is(waitErr, exec.ErrWaitDelay):
		r.log.Warn("Descendant kept output open after exit", "command", command)
	default:
		return nil, fmt.Errorf("process: wait %q: %w", command, waitErr)
	}
	result.ExitCode, result.Signal = exitStatus(cmd.ProcessState)
	result.Output = captured.String()

	if result.Signal != "" {
		r.announce("Command terminated by signal: %s\n", result.Signal)
	} else {
		r.announce("Command exited with code: %d\n", result.ExitCode)
	}
	r.log.Debug("Command exited", "command", command, "code", result.ExitCode,
		"signal", result.Signal, "duration", result.Duration)

	if cancelled {
		return result, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
	return result, nil
}

// stop terminates the process group, escalates to kill after the grace
// period, sweeps orphans and returns the wait error.
func (r *Runner) stop(cmd *exec.Cmd, done <-chan error, start time.Time) error {
	r.log.Info("Cancelling command", "pid", cmd.Process.Pid)
	if err := terminate(cmd); err != nil {
		r.log.Debug("Terminate failed", "pid", cmd.Process.Pid, "err", err)
	}

	timer := time.NewTimer(r.grace)
	defer timer.Stop()

	select {
	case err := <-done:
		r.sweep(start)
		return err
	case <-timer.C:
	}

	r.log.Warn("Command ignored terminate signal, killing", "pid", cmd.Process.Pid)
	if err := kill(cmd); err != nil {
		r.log.Debug("Kill failed", "pid", cmd.Process.Pid, "err", err)
	}
	r.sweep(start)
	return <-done
}

func (r *Runner) sweep(start time.Time) {
	if r.sweeper == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := r.sweeper.Sweep(ctx, start)
	if err != nil {
		r.log.Warn("Orphan sweep failed", "err", err)
		return
	}
	if n > 0 {
		r.log.Info("Terminated orphaned processes", "count", n)
	}
}

func (r *Runner) announce(format string, args ...any) {
	if r.output == nil {
		return
	}
	_, _ = fmt.Fprintf(r.output, format, args...)
}

// lockedWriter serializes writes to the shared capture sink.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
