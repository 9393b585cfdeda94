// ABOUTME: Tests for bounded subprocess execution and stream draining
// ABOUTME: Covers exit codes, stream separation, timeout kill, and start failures

package procrun

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunner(t *testing.T, timeout time.Duration) *Runner {
	t.Helper()
	return New(timeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRun_CapturesStdout(t *testing.T) {
	r := testRunner(t, 5*time.Second)

	res, err := r.Run(context.Background(), "sh", "-c", "echo one; echo two")
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []string{"one", "two"}, res.Stdout)
	assert.Empty(t, res.Stderr)
}

func TestRun_SeparatesStreams(t *testing.T) {
	r := testRunner(t, 5*time.Second)

	res, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err 1>&2")
	require.NoError(t, err)

	assert.Equal(t, []string{"out"}, res.Stdout)
	assert.Equal(t, []string{"err"}, res.Stderr)
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	r := testRunner(t, 5*time.Second)

	res, err := r.Run(context.Background(), "sh", "-c", "echo failing 1>&2; exit 3")
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, []string{"failing"}, res.Stderr)
}

func TestRun_TimeoutKillsProcess(t *testing.T) {
	r := testRunner(t, 150*time.Millisecond)

	start := time.Now()
	_, err := r.Run(context.Background(), "sh", "-c", "sleep 10")
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, elapsed, 5*time.Second, "invocation must not wait out the sleep")
}

func TestRun_TimeoutWithBackgroundedPipeHolder(t *testing.T) {
	r := testRunner(t, 200*time.Millisecond)

	// The backgrounded sleep inherits the output pipes and outlives the
	// deadline kill of the direct child; the drain must still end within
	// the grace, not when the grandchild finally exits
	start := time.Now()
	_, err := r.Run(context.Background(), "sh", "-c", "sleep 10 & sleep 10")
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, elapsed, drainGrace+2*time.Second,
		"drain join must be bounded by the grace, not the grandchild's lifetime")
}

func TestRun_ExitBeforeDeadlineKeepsStatusDespitePipeHolder(t *testing.T) {
	r := testRunner(t, 300*time.Millisecond)

	start := time.Now()
	res, err := r.Run(context.Background(), "sh", "-c", "echo ready; sleep 10 & exit 7")
	elapsed := time.Since(start)

	require.NoError(t, err, "a command that exited on its own is not a timeout")
	assert.Equal(t, 7, res.ExitCode)
	assert.Equal(t, []string{"ready"}, res.Stdout)
	assert.Less(t, elapsed, drainGrace+2*time.Second)
}

func TestRun_StartFailure(t *testing.T) {
	r := testRunner(t, time.Second)

	_, err := r.Run(context.Background(), "/nonexistent/definitely-not-a-binary")
	assert.ErrorIs(t, err, ErrExec)
}

func TestRun_LargeOutput(t *testing.T) {
	r := testRunner(t, 10*time.Second)

	res, err := r.Run(context.Background(), "sh", "-c", "seq 1 5000")
	require.NoError(t, err)
	assert.Len(t, res.Stdout, 5000)
	assert.Equal(t, "5000", res.Stdout[4999])
}

func TestRun_BusyStderrDoesNotBlockStdout(t *testing.T) {
	r := testRunner(t, 10*time.Second)

	// Interleave enough output on both streams to overflow any single
	// pipe buffer if one side were drained serially
	res, err := r.Run(context.Background(), "sh", "-c", "seq 1 20000 1>&2; seq 1 20000")
	require.NoError(t, err)
	assert.Len(t, res.Stdout, 20000)
	assert.Len(t, res.Stderr, 20000)
}

func TestNew_DefaultTimeout(t *testing.T) {
	r := New(0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, DefaultTimeout, r.timeout)
}
