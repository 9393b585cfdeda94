// ABOUTME: Bounded subprocess execution with concurrent stdout/stderr draining
// ABOUTME: Arguments are passed as a discrete vector, never through a shell

package procrun

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

// DefaultTimeout is the wall-clock bound on any single external command.
const DefaultTimeout = 30 * time.Second

// drainGrace bounds how long the output pipes may stay open after the
// process has been killed or has exited. A child that forks a helper passes
// its pipe ends along; without this grace a backgrounded grandchild holding
// the pipes would stall the drain forever.
const drainGrace = 2 * time.Second

// Runner errors.
var (
	// ErrTimeout means the process exceeded the wall clock and was killed.
	ErrTimeout = errors.New("process timed out")
	// ErrExec wraps failures to start or wait on the process.
	ErrExec = errors.New("process execution failed")
)

// Result is the structured outcome of a completed process. A non-zero exit
// code is not an error at this layer; callers interpret exit codes and
// stderr content per their own domain logic.
type Result struct {
	ExitCode int
	Stdout   []string
	Stderr   []string
}

// Runner executes external administrative binaries with a timeout and
// captured output.
type Runner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Runner. A non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		timeout: timeout,
		logger:  logger.With("component", "procrun"),
	}
}

// Run spawns name with args, drains stdout and stderr concurrently, and
// waits up to the timeout for termination. On timeout the process is killed
// and ErrTimeout returned; a partial result is never returned silently.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	// Force-close the pipes shortly after the deadline kill so the drain
	// join below stays bounded even when a descendant inherited them.
	cmd.WaitDelay = drainGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrExec, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrExec, err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting %s: %v", ErrExec, name, err)
	}
	r.logger.Debug("process started", "command", name, "args", args, "pid", cmd.Process.Pid)

	// Two independent drainers so a full stderr buffer can never block
	// stdout or vice versa. Each goroutine owns its slice; no shared state.
	var wg sync.WaitGroup
	var outLines, errLines []string
	wg.Add(2)
	go func() {
		defer wg.Done()
		outLines = drainLines(stdout)
	}()
	go func() {
		defer wg.Done()
		errLines = drainLines(stderr)
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	// ErrWaitDelay means the command itself exited cleanly but a descendant
	// kept the pipes open past the grace; the outcome is the command's own.
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		r.logger.Warn("output pipes force-closed after exit", "command", name, "grace", drainGrace)
		waitErr = nil
	}

	// Timed out only if the process was actually killed. A command that
	// exited on its own before the deadline keeps its own exit status even
	// when pipe holders delayed the drain past it.
	killed := cmd.ProcessState != nil && !cmd.ProcessState.Exited()
	if ctx.Err() == context.DeadlineExceeded && killed {
		r.logger.Warn("process killed on timeout", "command", name, "timeout", r.timeout)
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, name, r.timeout)
	}

	result := &Result{ExitCode: 0, Stdout: outLines, Stderr: errLines}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("%w: waiting on %s: %v", ErrExec, name, waitErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	r.logger.Debug("process finished",
		"command", name,
		"exit_code", result.ExitCode,
		"duration", elapsed.Round(time.Millisecond),
	)
	return result, nil
}

// drainLines reads r line-wise until EOF. Read errors terminate the drain;
// whatever was captured up to that point is kept.
func drainLines(r io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}
