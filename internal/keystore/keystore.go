// ABOUTME: Verification-key resolution: local cache first, then one-shot HTTPS fetch
// ABOUTME: Persists the key as raw base64 under an enforced 0600 file policy

package keystore

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// ErrKeyResolution marks failures to obtain a verification key at all, as
// opposed to a signature that fails against a known key. Callers can tell
// "I don't know your key" apart from "your signature doesn't match".
var ErrKeyResolution = errors.New("key resolution failed")

// cacheFileMode is the enforced permission policy for the key cache file.
const cacheFileMode = 0o600

// fetchTimeout bounds the one-shot key fetch.
const fetchTimeout = 10 * time.Second

// KeyStore resolves the ed25519 public key used to verify capability tokens.
type KeyStore struct {
	cachePath string
	fetchURL  string
	client    *http.Client
	logger    *slog.Logger
}

// New creates a KeyStore caching at cachePath and fetching from fetchURL when
// the cache is absent or empty.
func New(cachePath, fetchURL string, logger *slog.Logger) *KeyStore {
	return &KeyStore{
		cachePath: cachePath,
		fetchURL:  fetchURL,
		client:    &http.Client{Timeout: fetchTimeout},
		logger:    logger.With("component", "keystore"),
	}
}

// Resolve returns the verification key. A non-empty cache file wins; otherwise
// the key is fetched once, canonicalized, persisted under the file policy, and
// returned. All failures wrap ErrKeyResolution.
func (k *KeyStore) Resolve(ctx context.Context) (ed25519.PublicKey, error) {
	if key, err := k.readCache(); err != nil {
		return nil, err
	} else if key != nil {
		return key, nil
	}

	if k.fetchURL == "" {
		return nil, fmt.Errorf("%w: no cached key at %s and no fetch URL configured", ErrKeyResolution, k.cachePath)
	}

	key, err := k.fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := k.persist(key); err != nil {
		return nil, err
	}
	k.logger.Info("verification key fetched and cached", "url", k.fetchURL, "path", k.cachePath)
	return key, nil
}

// readCache loads the cached key if the file exists and is non-empty.
// Returns (nil, nil) when there is no usable cache. Files with group or
// other permission bits set are repaired to 0600 before the key is trusted.
func (k *KeyStore) readCache() (ed25519.PublicKey, error) {
	info, err := os.Stat(k.cachePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: stat cache: %v", ErrKeyResolution, err)
	}
	if info.Size() == 0 {
		return nil, nil
	}

	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		k.logger.Warn("key cache file has loose permissions, repairing", "path", k.cachePath, "mode", mode.String())
		if err := os.Chmod(k.cachePath, cacheFileMode); err != nil {
			return nil, fmt.Errorf("%w: repairing cache permissions: %v", ErrKeyResolution, err)
		}
	}

	data, err := os.ReadFile(k.cachePath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading cache: %v", ErrKeyResolution, err)
	}

	key, err := ParseKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: cached key: %v", ErrKeyResolution, err)
	}
	return key, nil
}

// fetch performs the one-shot HTTPS GET for the public key.
func (k *KeyStore) fetch(ctx context.Context) (ed25519.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrKeyResolution, err)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching key: %v", ErrKeyResolution, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: key endpoint returned %d", ErrKeyResolution, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("%w: reading key body: %v", ErrKeyResolution, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("%w: key endpoint returned an empty body", ErrKeyResolution)
	}

	key, err := ParseKey(body)
	if err != nil {
		return nil, fmt.Errorf("%w: fetched key: %v", ErrKeyResolution, err)
	}
	return key, nil
}

// persist writes the key to the cache path as raw base64 with 0600 mode.
func (k *KeyStore) persist(key ed25519.PublicKey) error {
	if dir := filepath.Dir(k.cachePath); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("%w: creating cache directory: %v", ErrKeyResolution, err)
		}
	}
	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	if err := os.WriteFile(k.cachePath, []byte(encoded), cacheFileMode); err != nil {
		return fmt.Errorf("%w: writing cache: %v", ErrKeyResolution, err)
	}
	return nil
}

// ParseKey accepts an ed25519 public key in any of three encodings: raw
// base64 (32 bytes), PEM-framed PKIX, or an OpenSSH authorized-keys line
// ("ssh-ed25519 AAAA...").
func ParseKey(data []byte) (ed25519.PublicKey, error) {
	text := strings.TrimSpace(string(data))

	switch {
	case strings.HasPrefix(text, "ssh-ed25519 "):
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("parsing ssh public key: %w", err)
		}
		cryptoPub, ok := pub.(ssh.CryptoPublicKey)
		if !ok {
			return nil, errors.New("ssh key does not expose a crypto public key")
		}
		edKey, ok := cryptoPub.CryptoPublicKey().(ed25519.PublicKey)
		if !ok {
			return nil, errors.New("ssh key is not ed25519")
		}
		return edKey, nil

	case strings.Contains(text, "-----BEGIN"):
		block, _ := pem.Decode([]byte(text))
		if block == nil {
			return nil, errors.New("invalid PEM framing")
		}
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parsing PKIX key: %w", err)
		}
		edKey, ok := parsed.(ed25519.PublicKey)
		if !ok {
			return nil, errors.New("PEM key is not ed25519")
		}
		return edKey, nil

	default:
		rawKey, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("decoding base64 key: %w", err)
		}
		if len(rawKey) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("key is %d bytes, want %d", len(rawKey), ed25519.PublicKeySize)
		}
		return ed25519.PublicKey(rawKey), nil
	}
}
