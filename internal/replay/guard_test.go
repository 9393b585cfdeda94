// ABOUTME: Tests for the replay ledger: durability, replay rejection, race behavior
// ABOUTME: Exactly one of N concurrent consumers of the same signature may win

package replay

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGuard(t *testing.T) (*Guard, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "consumed.log")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGuard(path, logger), path
}

func TestConsume_FirstUseWins(t *testing.T) {
	g, path := testGuard(t)

	require.NoError(t, g.Consume("sig-one"))

	err := g.Consume("sig-one")
	assert.ErrorIs(t, err, ErrReplayed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "sig-one"), "signature appended exactly once")
}

func TestConsume_LedgerLineFormat(t *testing.T) {
	g, path := testGuard(t)
	require.NoError(t, g.Consume("sig-abc"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z\] sig-abc$`, line)
}

func TestConsume_SurvivesProcessRestart(t *testing.T) {
	g1, path := testGuard(t)
	require.NoError(t, g1.Consume("sig-durable"))

	// A fresh guard over the same file must still reject the signature:
	// no in-memory cache is authoritative across runs
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g2 := NewGuard(path, logger)
	assert.ErrorIs(t, g2.Consume("sig-durable"), ErrReplayed)
}

func TestSeen_DoesNotConsume(t *testing.T) {
	g, _ := testGuard(t)

	seen, err := g.Seen("sig-x")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, g.Consume("sig-x"))

	seen, err = g.Seen("sig-x")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestConsume_ConcurrentSameSignature(t *testing.T) {
	g, _ := testGuard(t)

	const racers = 16
	var wg sync.WaitGroup
	results := make([]error, racers)

	wg.Add(racers)
	for i := 0; i < racers; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i] = g.Consume("contested-sig")
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrReplayed)
		}
	}
	assert.Equal(t, 1, wins, "exactly one racer reaches Consumed")
}

func TestConsume_ConcurrentAcrossGuards(t *testing.T) {
	// Separate Guard instances share no cache; only the flocked file
	// serializes them, as with concurrent gateway processes.
	path := filepath.Join(t.TempDir(), "consumed.log")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	const racers = 8
	var wg sync.WaitGroup
	results := make([]error, racers)

	wg.Add(racers)
	for i := 0; i < racers; i++ {
		i := i
		go func() {
			defer wg.Done()
			results[i] = NewGuard(path, logger).Consume("cross-process-sig")
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestConsume_DistinctSignaturesAllSucceed(t *testing.T) {
	g, _ := testGuard(t)
	for i := 0; i < 20; i++ {
		require.NoError(t, g.Consume(fmt.Sprintf("sig-%d", i)))
	}
}

func TestConsume_CreatesLedgerWithOwnerOnlyMode(t *testing.T) {
	g, path := testGuard(t)
	require.NoError(t, g.Consume("sig-mode"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCache_TTLAndEviction(t *testing.T) {
	c := NewCache(50*time.Millisecond, 2)

	c.Mark("a")
	assert.True(t, c.Seen("a"))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, c.Seen("a"), "expired entries are not seen")

	c.Mark("b")
	c.Mark("c")
	c.Mark("d") // exceeds cap, evicts something
	assert.True(t, c.Seen("d"))
}
