// ABOUTME: EdDSA JWT parsing for the alternate token wire format
// ABOUTME: JWS signing input becomes the canonical message; the JWS signature is the replay key

package token

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// looksLikeJWT reports whether raw is shaped like a compact JWS: three
// dot-separated segments whose first decodes to a JSON object with an "alg"
// member.
func looksLikeJWT(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return false
	}
	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	var h struct {
		Alg string `json:"alg"`
	}
	return json.Unmarshal(header, &h) == nil && h.Alg != ""
}

// parseJWT converts a compact EdDSA JWS into a Token. Signature verification
// is deliberately not performed here: the authorizer verifies the decoded
// signature bytes against the signing input with the resolved public key, so
// both wire formats share one verification path.
func parseJWT(raw string) (*Token, error) {
	claims := jwt.MapClaims{}
	tok, parts, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	// ParseUnverified ignores parser method options; the gate is this check
	if tok.Method.Alg() != "EdDSA" {
		return nil, fmt.Errorf("%w: unexpected signing method %s", ErrMalformed, tok.Method.Alg())
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, fmt.Errorf("%w: iat", ErrMissingField)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: exp", ErrMissingField)
	}
	nonce, ok := claims["nonce"].(string)
	if !ok || nonce == "" {
		return nil, fmt.Errorf("%w: nonce", ErrMissingField)
	}
	op, ok := claims["op"].(string)
	if !ok || op == "" {
		return nil, fmt.Errorf("%w: op", ErrMissingField)
	}

	sigBytes, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature segment is not valid base64url", ErrMalformed)
	}

	return &Token{
		Timestamp: iat.Unix(),
		Nonce:     nonce,
		Expiry:    exp.Unix(),
		Command:   op,
		Signature: base64.StdEncoding.EncodeToString(sigBytes),
		message:   []byte(parts[0] + "." + parts[1]),
	}, nil
}
