// ABOUTME: Tests for token parsing across both wire formats
// ABOUTME: Covers missing fields, bad encodings, and mint/parse roundtrips

package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestParse_EnvelopeRoundtrip(t *testing.T) {
	pub, priv := testKey(t)

	raw, err := Sign(priv, 1700000000, "abc", 1700000060, "PANEL.GET_LOGIN_LINK 42 alice")
	require.NoError(t, err)

	tok, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(1700000000), tok.Timestamp)
	assert.Equal(t, "abc", tok.Nonce)
	assert.Equal(t, int64(1700000060), tok.Expiry)
	assert.Equal(t, "PANEL.GET_LOGIN_LINK 42 alice", tok.Command)

	assert.Equal(t, []byte("1700000000|abc|1700000060|PANEL.GET_LOGIN_LINK 42 alice"), tok.SignedMessage())

	sig, err := tok.SignatureBytes()
	require.NoError(t, err)
	assert.Len(t, sig, ed25519.SignatureSize)
	assert.True(t, ed25519.Verify(pub, tok.SignedMessage(), sig))
}

func TestParse_JWTRoundtrip(t *testing.T) {
	pub, priv := testKey(t)

	raw, err := SignJWT(priv, 1700000000, "abc", 1700000060, "DNS.REMOVE_ZONE example.org")
	require.NoError(t, err)

	tok, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(1700000000), tok.Timestamp)
	assert.Equal(t, "abc", tok.Nonce)
	assert.Equal(t, int64(1700000060), tok.Expiry)
	assert.Equal(t, "DNS.REMOVE_ZONE example.org", tok.Command)

	// The JWS signing input is the canonical message for JWT tokens
	sig, err := tok.SignatureBytes()
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, tok.SignedMessage(), sig))
}

func TestParse_RejectsBadBase64(t *testing.T) {
	_, err := Parse("not$$base64")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_RejectsEmptyInput(t *testing.T) {
	_, err := Parse("   ")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_RejectsNonJSONPayload(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte("hello"))
	_, err := Parse(raw)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_RejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"no timestamp", `{"nonce":"n","expiry":1,"operation":"X.Y","signature":"s"}`},
		{"no nonce", `{"timestamp":1,"expiry":1,"operation":"X.Y","signature":"s"}`},
		{"no expiry", `{"timestamp":1,"nonce":"n","operation":"X.Y","signature":"s"}`},
		{"no operation", `{"timestamp":1,"nonce":"n","expiry":1,"signature":"s"}`},
		{"no signature", `{"timestamp":1,"nonce":"n","expiry":1,"operation":"X.Y"}`},
		{"null nonce", `{"timestamp":1,"nonce":null,"expiry":1,"operation":"X.Y","signature":"s"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := base64.StdEncoding.EncodeToString([]byte(tt.json))
			_, err := Parse(raw)
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestParse_RejectsNonIntegralNumbers(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte(
		`{"timestamp":1.5,"nonce":"n","expiry":1,"operation":"X.Y","signature":"s"}`))
	_, err := Parse(raw)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_RejectsWrongFieldTypes(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte(
		`{"timestamp":"soon","nonce":"n","expiry":1,"operation":"X.Y","signature":"s"}`))
	_, err := Parse(raw)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSign_RejectsDelimiterInNonce(t *testing.T) {
	_, priv := testKey(t)
	_, err := Sign(priv, 1, "a|b", 2, "X.Y")
	assert.Error(t, err)
}

func TestSignatureBytes_RejectsBadBase64(t *testing.T) {
	tok := &Token{Signature: "***"}
	_, err := tok.SignatureBytes()
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLooksLikeJWT(t *testing.T) {
	_, priv := testKey(t)
	jwtRaw, err := SignJWT(priv, 1, "n", 2, "X.Y")
	require.NoError(t, err)
	assert.True(t, looksLikeJWT(jwtRaw))

	envRaw, err := Sign(priv, 1, "n", 2, "X.Y")
	require.NoError(t, err)
	assert.False(t, looksLikeJWT(envRaw))
}

func TestParseJWT_RejectsWrongAlg(t *testing.T) {
	// HS256-shaped header must be rejected before any claims handling
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"iat":1,"exp":2,"nonce":"n","op":"X.Y"}`))
	_, err := Parse(header + "." + payload + ".c2ln")
	assert.ErrorIs(t, err, ErrMalformed)
}
