// ABOUTME: Tests for the SQLite invocation journal
// ABOUTME: Append/Tail roundtrips against a temp database

package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	j, err := Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestAppendAndTail(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rec := &Record{
		Command:   "PANEL.GET_SUBSCRIPTION 42",
		Status:    "ok",
		Message:   "subscription found",
		Signature: "q83vEjRWeJq8...",
		Duration:  120 * time.Millisecond,
	}
	require.NoError(t, j.Append(ctx, rec))

	// Append fills in ID and timestamp
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Time.IsZero())

	records, err := j.Tail(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "PANEL.GET_SUBSCRIPTION 42", got.Command)
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, "subscription found", got.Message)
	assert.Equal(t, "q83vEjRWeJq8...", got.Signature)
	assert.Equal(t, 120*time.Millisecond, got.Duration)
}

func TestTail_NewestFirstAndLimited(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := &Record{
			Time:    base.Add(time.Duration(i) * time.Minute),
			Command: fmt.Sprintf("DNS.GET_ZONE_MASTER zone%d.example", i),
			Status:  "ok",
		}
		require.NoError(t, j.Append(ctx, rec))
	}

	records, err := j.Tail(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Contains(t, records[0].Command, "zone4")
	assert.Contains(t, records[1].Command, "zone3")
	assert.Contains(t, records[2].Command, "zone2")
}

func TestTail_EmptyJournal(t *testing.T) {
	j := openTestJournal(t)

	records, err := j.Tail(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "audit.db")
	j, err := Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, j.Close())
}

func TestOpen_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	j, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, j.Append(context.Background(), &Record{Command: "DNS.RESTART_SERVICE", Status: "ok"}))
	require.NoError(t, j.Close())

	j, err = Open(path, logger)
	require.NoError(t, err)
	defer func() { _ = j.Close() }()

	records, err := j.Tail(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "DNS.RESTART_SERVICE", records[0].Command)
}
