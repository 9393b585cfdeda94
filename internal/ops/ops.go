// ABOUTME: Operation protocol and shared environment for administrative actions
// ABOUTME: Each operation owns its domain interpretation of exit codes and stderr

package ops

import (
	"context"
	"log/slog"

	"github.com/2389/opsgate/internal/envelope"
	"github.com/2389/opsgate/internal/procrun"
)

// Operation is one constructed, ready-to-run privileged action. Execute is
// called at most once per gateway invocation and produces the terminal
// envelope. A returned error means an unexpected internal failure; domain
// outcomes (including "not found") are expressed through the envelope.
type Operation interface {
	Execute(ctx context.Context) (*envelope.Envelope, error)
}

// Env carries the injected collaborators every operation may need. The
// dispatcher hands the same Env to each constructor.
type Env struct {
	Runner *procrun.Runner
	Logger *slog.Logger

	// Hosting-panel surface.
	PanelBin string // panel CLI, e.g. "plesk"

	// DNS surface.
	ServiceBin    string // service manager, e.g. "systemctl"
	DNSService    string // name-server unit, e.g. "named"
	DNSControlBin string // zone control CLI, e.g. "rndc"
	ZoneCatalogue string // zone catalogue file for master lookups
}
