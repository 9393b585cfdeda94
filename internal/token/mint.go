// ABOUTME: Token minting for the operator CLI and tests
// ABOUTME: Signs capability claims with an ed25519 private key in either wire format

package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sign builds a base64-JSON envelope token. The nonce and command must not
// contain the canonical-message delimiter.
func Sign(priv ed25519.PrivateKey, timestamp int64, nonce string, expiry int64, command string) (string, error) {
	if strings.Contains(nonce, "|") {
		return "", fmt.Errorf("nonce must not contain %q", "|")
	}
	if strings.Contains(command, "|") {
		return "", fmt.Errorf("command must not contain %q", "|")
	}

	sig := ed25519.Sign(priv, CanonicalMessage(timestamp, nonce, expiry, command))

	wire := map[string]any{
		"timestamp": timestamp,
		"nonce":     nonce,
		"expiry":    expiry,
		"operation": command,
		"signature": base64.StdEncoding.EncodeToString(sig),
	}
	data, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("marshaling token: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// SignJWT builds a compact EdDSA JWS carrying the same claims.
func SignJWT(priv ed25519.PrivateKey, timestamp int64, nonce string, expiry int64, command string) (string, error) {
	claims := jwt.MapClaims{
		"iat":   timestamp,
		"exp":   expiry,
		"nonce": nonce,
		"op":    command,
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
}

// NewNonce returns a nonce derived from the current time, suitable for
// callers that have no better source of uniqueness.
func NewNonce() string {
	return fmt.Sprintf("n%d", time.Now().UnixNano())
}
