// ABOUTME: Token authorization state machine: expiry, signature, replay, consumption
// ABOUTME: Cheap checks run first; a token is only consumed after its signature verifies

package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/opsgate/internal/command"
	"github.com/2389/opsgate/internal/replay"
	"github.com/2389/opsgate/internal/token"
)

// Authorization errors. All of them surface externally as the generic
// "authorization failed"; the specific reason is only logged.
var (
	ErrExpired            = errors.New("token expired")
	ErrMalformedSignature = errors.New("malformed signature")
	ErrBadSignature       = errors.New("signature verification failed")
	ErrReplay             = errors.New("token replayed")
)

// KeyResolver resolves the verification public key.
type KeyResolver interface {
	Resolve(ctx context.Context) (ed25519.PublicKey, error)
}

// ReplayGuard atomically records consumed signatures.
type ReplayGuard interface {
	Consume(signature string) error
}

// Authorizer drives a token through expiry, signature, replay, and
// consumption checks, and finally parses the embedded command string.
type Authorizer struct {
	keys     KeyResolver
	verifier Verifier
	guard    ReplayGuard
	now      func() time.Time
	logger   *slog.Logger
}

// New creates an Authorizer with injected dependencies.
func New(keys KeyResolver, verifier Verifier, guard ReplayGuard, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		keys:     keys,
		verifier: verifier,
		guard:    guard,
		now:      time.Now,
		logger:   logger.With("component", "auth"),
	}
}

// Authorize validates the token and, on success, consumes it and returns the
// parsed command request. The check order is deliberate: expiry before any
// signature work, signature before the replay ledger is touched, durable
// consumption before the command string is even looked at. A token is never
// marked used unless its signature verified, and consumption failure fails
// the authorization.
func (a *Authorizer) Authorize(ctx context.Context, t *token.Token) (command.Request, error) {
	now := a.now()
	if now.Unix() > t.Expiry {
		a.logger.Info("rejecting expired token",
			"expiry", time.Unix(t.Expiry, 0).UTC().Format(time.RFC3339),
			"signature", RedactSig(t.Signature),
		)
		return command.Request{}, ErrExpired
	}

	sig, err := t.SignatureBytes()
	if err != nil {
		return command.Request{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != ed25519.SignatureSize {
		a.logger.Info("rejecting token with malformed signature",
			"length", len(sig), "signature", RedactSig(t.Signature))
		return command.Request{}, fmt.Errorf("%w: %d bytes, want %d", ErrMalformedSignature, len(sig), ed25519.SignatureSize)
	}

	key, err := a.keys.Resolve(ctx)
	if err != nil {
		return command.Request{}, err
	}

	if !a.verifier.Verify(t.SignedMessage(), sig, key) {
		a.logger.Info("rejecting token with invalid signature", "signature", RedactSig(t.Signature))
		return command.Request{}, ErrBadSignature
	}

	if err := a.guard.Consume(t.Signature); err != nil {
		if errors.Is(err, replay.ErrReplayed) {
			a.logger.Info("rejecting replayed token", "signature", RedactSig(t.Signature))
			return command.Request{}, ErrReplay
		}
		return command.Request{}, err
	}

	req, err := command.Parse(t.Command)
	if err != nil {
		// The caller authenticated; a bad command string is an invalid
		// request, not a security rejection. The token stays consumed.
		a.logger.Info("authorized token carries unusable command", "error", err)
		return command.Request{}, err
	}

	a.logger.Info("token authorized",
		"command", req.ID.String(),
		"args", len(req.Args),
		"signature", RedactSig(t.Signature),
	)
	return req, nil
}

// IsAuthFailure reports whether err belongs to the authorization failure
// class that must surface as the generic denied message.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrMalformedSignature) ||
		errors.Is(err, ErrBadSignature) ||
		errors.Is(err, ErrReplay) ||
		errors.Is(err, replay.ErrLedger)
}
