// ABOUTME: Durable single-use ledger of consumed token signatures
// ABOUTME: check-then-append runs under an exclusive flock so concurrent consumers cannot both win

package replay

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Guard errors.
var (
	// ErrReplayed means the signature was already consumed.
	ErrReplayed = errors.New("token already used")
	// ErrLedger wraps I/O failures touching the ledger. A token whose
	// consumption cannot be durably recorded must not be authorized.
	ErrLedger = errors.New("replay ledger failure")
)

// ledgerFileMode matches the credential-file policy: owner read/write only.
const ledgerFileMode = 0o600

// cacheTTL bounds the in-process fast path; anything older is answered by
// the ledger file itself.
const cacheTTL = time.Hour

const cacheMaxSize = 10000

// Guard is the persistent replay protection for consumed tokens. One line is
// appended per consumed signature; a signature present anywhere in the file
// is never accepted again.
type Guard struct {
	path   string
	cache  *Cache
	logger *slog.Logger
}

// NewGuard creates a replay guard backed by the ledger file at path.
func NewGuard(path string, logger *slog.Logger) *Guard {
	return &Guard{
		path:   path,
		cache:  NewCache(cacheTTL, cacheMaxSize),
		logger: logger.With("component", "replay"),
	}
}

// Seen reports whether the signature has already been consumed, without
// consuming it. Used by offline token inspection.
func (g *Guard) Seen(signature string) (bool, error) {
	if g.cache.Seen(signature) {
		return true, nil
	}

	f, err := g.openLocked()
	if err != nil {
		return false, err
	}
	defer g.close(f)

	return g.scanLocked(f, signature)
}

// Consume atomically checks and records the signature. Exactly one of any
// set of concurrent calls with the same signature succeeds; the rest return
// ErrReplayed. The appended line is flushed to disk before Consume returns,
// so a crash after authorization cannot resurrect the token.
func (g *Guard) Consume(signature string) error {
	if g.cache.Seen(signature) {
		return ErrReplayed
	}

	f, err := g.openLocked()
	if err != nil {
		return err
	}
	defer g.close(f)

	found, err := g.scanLocked(f, signature)
	if err != nil {
		return err
	}
	if found {
		g.cache.Mark(signature)
		return ErrReplayed
	}

	line := fmt.Sprintf("[%s] %s\n", time.Now().UTC().Format(time.RFC3339), signature)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("%w: appending: %v", ErrLedger, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing: %v", ErrLedger, err)
	}

	g.cache.Mark(signature)
	g.logger.Debug("token consumed", "ledger", g.path)
	return nil
}

// openLocked opens the ledger for append and takes an exclusive flock on it.
// The lock is held until close, covering the scan+append critical section
// across processes.
func (g *Guard) openLocked() (*os.File, error) {
	if dir := filepath.Dir(g.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: creating ledger directory: %v", ErrLedger, err)
		}
	}

	f, err := os.OpenFile(g.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, ledgerFileMode)
	if err != nil {
		return nil, fmt.Errorf("%w: opening: %v", ErrLedger, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: locking: %v", ErrLedger, err)
	}
	return f, nil
}

// close releases the flock and closes the file.
func (g *Guard) close(f *os.File) {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		g.logger.Warn("unlocking ledger", "error", err)
	}
	if err := f.Close(); err != nil {
		g.logger.Warn("closing ledger", "error", err)
	}
}

// scanLocked reports whether any ledger line contains the signature. Must be
// called with the flock held; resets the read offset first since the handle
// is shared with the appender.
func (g *Guard) scanLocked(f *os.File, signature string) (bool, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return false, fmt.Errorf("%w: seeking: %v", ErrLedger, err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), signature) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("%w: scanning: %v", ErrLedger, err)
	}
	return false, nil
}
