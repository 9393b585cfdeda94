// ABOUTME: Pure ed25519 signature verification
// ABOUTME: No side effects; the authorizer owns ordering and length gating

package auth

import "crypto/ed25519"

// Verifier checks a signature over a message with a public key. It exists as
// an interface so tests can count or stub verification calls.
type Verifier interface {
	Verify(message, signature []byte, key ed25519.PublicKey) bool
}

// Ed25519Verifier is the production Verifier.
type Ed25519Verifier struct{}

// Verify reports whether signature is a valid ed25519 signature of message
// under key.
func (Ed25519Verifier) Verify(message, signature []byte, key ed25519.PublicKey) bool {
	if len(key) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(key, message, signature)
}
