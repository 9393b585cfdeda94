// ABOUTME: Capability token value type and wire-format parsing
// ABOUTME: Supports base64-JSON envelopes and EdDSA-signed JWTs over the same claims

package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Parse errors.
var (
	ErrMalformed    = errors.New("malformed token")
	ErrMissingField = errors.New("missing token field")
)

// Token is a signed, time-bounded, single-use capability claim authorizing
// one command invocation. It is immutable once parsed; nothing in the
// pipeline mutates it.
type Token struct {
	Timestamp int64  // issue time, unix seconds
	Nonce     string // caller-supplied uniqueness marker
	Expiry    int64  // unix seconds
	Command   string // "SUBSYSTEM.ACTION arg1 arg2 ..."
	Signature string // base64, 64 raw bytes when decoded

	// message is the exact byte sequence the signature covers. For the
	// JSON envelope this is "timestamp|nonce|expiry|command"; for a JWT
	// it is the JWS signing input.
	message []byte
}

// SignedMessage returns the canonical byte sequence covered by the signature.
func (t *Token) SignedMessage() []byte {
	return t.message
}

// SignatureBytes decodes the signature from base64.
func (t *Token) SignatureBytes() ([]byte, error) {
	sig, err := base64.StdEncoding.DecodeString(t.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not valid base64", ErrMalformed)
	}
	return sig, nil
}

// wireToken mirrors the base64-JSON wire format. Pointer fields distinguish
// absent/null fields from zero values.
type wireToken struct {
	Timestamp *int64  `json:"timestamp"`
	Nonce     *string `json:"nonce"`
	Expiry    *int64  `json:"expiry"`
	Operation *string `json:"operation"`
	Signature *string `json:"signature"`
}

// Parse decodes an externally supplied token string. A string shaped like a
// compact JWS (two dots, decodable JOSE header) is parsed as an EdDSA JWT;
// anything else is treated as a base64-encoded JSON envelope. Parsing never
// partially constructs a Token: any missing, null, or badly typed field
// fails the whole parse.
func Parse(raw string) (*Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}

	if looksLikeJWT(raw) {
		return parseJWT(raw)
	}
	return parseEnvelope(raw)
}

// parseEnvelope handles the base64-JSON wire format.
func parseEnvelope(raw string) (*Token, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid base64", ErrMalformed)
	}

	var w wireToken
	if err := json.Unmarshal(decoded, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch {
	case w.Timestamp == nil:
		return nil, fmt.Errorf("%w: timestamp", ErrMissingField)
	case w.Nonce == nil:
		return nil, fmt.Errorf("%w: nonce", ErrMissingField)
	case w.Expiry == nil:
		return nil, fmt.Errorf("%w: expiry", ErrMissingField)
	case w.Operation == nil:
		return nil, fmt.Errorf("%w: operation", ErrMissingField)
	case w.Signature == nil:
		return nil, fmt.Errorf("%w: signature", ErrMissingField)
	}

	t := &Token{
		Timestamp: *w.Timestamp,
		Nonce:     *w.Nonce,
		Expiry:    *w.Expiry,
		Command:   *w.Operation,
		Signature: *w.Signature,
	}
	t.message = CanonicalMessage(t.Timestamp, t.Nonce, t.Expiry, t.Command)
	return t, nil
}

// CanonicalMessage builds the deterministic signed payload for the JSON
// envelope format: pipe-delimited timestamp, nonce, expiry, command. Fields
// never contain the delimiter (nonce and command are rejected elsewhere if
// they do at mint time).
func CanonicalMessage(timestamp int64, nonce string, expiry int64, command string) []byte {
	return []byte(fmt.Sprintf("%d|%s|%d|%s", timestamp, nonce, expiry, command))
}
