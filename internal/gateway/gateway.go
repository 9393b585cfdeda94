// ABOUTME: The authorization-and-execution pipeline driving one gateway invocation
// ABOUTME: Wires keystore, replay guard, authorizer, dispatcher, runner, and journal

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/2389/opsgate/internal/audit"
	"github.com/2389/opsgate/internal/auth"
	"github.com/2389/opsgate/internal/command"
	"github.com/2389/opsgate/internal/config"
	"github.com/2389/opsgate/internal/dispatch"
	"github.com/2389/opsgate/internal/envelope"
	"github.com/2389/opsgate/internal/keystore"
	"github.com/2389/opsgate/internal/ops"
	"github.com/2389/opsgate/internal/procrun"
	"github.com/2389/opsgate/internal/replay"
	"github.com/2389/opsgate/internal/token"
)

// Gateway executes exactly one authorized operation per invocation.
type Gateway struct {
	authorizer *auth.Authorizer
	dispatcher *dispatch.Dispatcher
	journal    *audit.Journal
	logger     *slog.Logger
}

// New wires the pipeline from configuration. The journal is optional: when
// auditing is disabled or the journal cannot be opened, the gateway still
// runs and the failure is logged.
func New(cfg *config.Config, logger *slog.Logger) *Gateway {
	keys := keystore.New(cfg.Keystore.CachePath, cfg.Keystore.FetchURL, logger)
	guard := replay.NewGuard(cfg.Replay.LedgerPath, logger)
	authorizer := auth.New(keys, auth.Ed25519Verifier{}, guard, logger)

	env := &ops.Env{
		Runner:        procrun.New(cfg.Exec.Timeout, logger),
		Logger:        logger.With("component", "ops"),
		PanelBin:      cfg.Panel.Bin,
		ServiceBin:    cfg.DNS.ServiceBin,
		DNSService:    cfg.DNS.Service,
		DNSControlBin: cfg.DNS.ControlBin,
		ZoneCatalogue: cfg.DNS.ZoneCatalogue,
	}

	g := &Gateway{
		authorizer: authorizer,
		dispatcher: dispatch.New(env),
		logger:     logger.With("component", "gateway"),
	}

	if cfg.Audit.Enabled {
		journal, err := audit.Open(cfg.Audit.DatabasePath, logger)
		if err != nil {
			logger.Warn("audit journal unavailable", "error", err)
		} else {
			g.journal = journal
		}
	}
	return g
}

// Close releases the gateway's resources.
func (g *Gateway) Close() {
	if g.journal != nil {
		if err := g.journal.Close(); err != nil {
			g.logger.Warn("closing journal", "error", err)
		}
	}
}

// Invoke drives one raw token through parse, authorization, dispatch, and
// execution, and always returns a well-formed envelope. A panic anywhere in
// the pipeline is converted into an internal-error envelope, never a bare
// stack trace.
func (g *Gateway) Invoke(ctx context.Context, rawToken string) (result *envelope.Envelope) {
	start := time.Now()
	var journaled audit.Record

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("panic during invocation", "panic", r)
			result = envelope.New(envelope.StatusInternal, "internal error")
		}
		journaled.Status = string(result.Status)
		journaled.Message = result.Message
		journaled.Duration = time.Since(start)
		g.record(ctx, &journaled)
	}()

	tok, err := token.Parse(rawToken)
	if err != nil {
		journaled.Command = "(unparsed)"
		g.logger.Info("rejecting malformed token", "error", err)
		return envelope.Newf(envelope.StatusInvalid, "malformed token")
	}
	journaled.Command = tok.Command
	journaled.Signature = auth.RedactSig(tok.Signature)

	req, err := g.authorizer.Authorize(ctx, tok)
	if err != nil {
		return g.classify(err)
	}

	op, err := g.dispatcher.Dispatch(req)
	if err != nil {
		return g.classify(err)
	}

	result, err = op.Execute(ctx)
	if err != nil {
		return g.classify(err)
	}
	return result
}

// classify maps a pipeline error to the user-visible envelope. Authorization
// failures stay generic on purpose; the specific reason is already logged.
func (g *Gateway) classify(err error) *envelope.Envelope {
	switch {
	case auth.IsAuthFailure(err):
		return envelope.New(envelope.StatusDenied, "authorization failed")

	case errors.Is(err, keystore.ErrKeyResolution):
		g.logger.Error("key resolution failed", "error", err)
		return envelope.New(envelope.StatusInternal, "key resolution failed")

	case errors.Is(err, command.ErrUnknownCommand),
		errors.Is(err, command.ErrEmptyCommand),
		errors.Is(err, dispatch.ErrInvalidArgs):
		return envelope.Newf(envelope.StatusInvalid, "invalid request: %v", err)

	case errors.Is(err, procrun.ErrTimeout):
		g.logger.Error("operation timed out", "error", err)
		return envelope.New(envelope.StatusTimeout, "operation timed out")

	default:
		g.logger.Error("invocation failed", "error", err)
		return envelope.New(envelope.StatusInternal, "internal error")
	}
}

// record journals the invocation outcome, best effort.
func (g *Gateway) record(ctx context.Context, r *audit.Record) {
	if g.journal == nil {
		return
	}
	if err := g.journal.Append(ctx, r); err != nil {
		g.logger.Warn("journaling invocation", "error", err)
	}
}
