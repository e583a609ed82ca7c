package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"
)

const (
	DefaultKeyCacheTTL    = time.Hour
	DefaultRefreshBackoff = 30 * time.Second
)

// ErrKeyNotFound is returned when no signing key matches the token's kid.
var ErrKeyNotFound = errors.New("signing key not found")

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

// KeyCache keeps the provider's RSA signing keys in memory. Keys expire after
// the TTL and are refetched lazily; a forced refresh is allowed at most once
// per backoff interval.
type KeyCache struct {
	URL        string
	TTL        time.Duration
	Backoff    time.Duration
	HTTPClient *http.Client

	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	lastAttempt time.Time

	refreshMu sync.Mutex
	now       func() time.Time
}

func NewKeyCache(url string, ttl time.Duration) *KeyCache {
	if ttl <= 0 {
		ttl = DefaultKeyCacheTTL
	}
	return &KeyCache{
		URL:     url,
		TTL:     ttl,
		Backoff: DefaultRefreshBackoff,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// Key returns the public key for kid, fetching the key set when the cache is
// cold, expired, or does not know kid yet.
func (k *KeyCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, fresh := k.lookup(kid); key != nil && fresh {
		return key, nil
	}

	if _, err := k.Refresh(ctx); err != nil {
		// Serve a stale key rather than failing while the JWKS endpoint is down.
		if key, _ := k.lookup(kid); key != nil {
			return key, nil
		}
		return nil, err
	}

	if key, _ := k.lookup(kid); key != nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
}

// Refresh refetches the key set unless a fetch happened within the backoff
// window. It reports whether a fetch was performed.
func (k *KeyCache) Refresh(ctx context.Context) (bool, error) {
	k.refreshMu.Lock()
	defer k.refreshMu.Unlock()

	now := k.clock()
	k.mu.RLock()
	last := k.lastAttempt
	k.mu.RUnlock()
	if !last.IsZero() && now.Sub(last) < k.backoff() {
		return false, nil
	}

	k.mu.Lock()
	k.lastAttempt = now
	k.mu.Unlock()

	keys, err := k.fetch(ctx)
	if err != nil {
		return true, err
	}

	k.mu.Lock()
	k.keys = keys
	k.fetchedAt = now
	k.mu.Unlock()
	return true, nil
}

func (k *KeyCache) lookup(kid string) (*rsa.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key := k.keys[kid]
	fresh := !k.fetchedAt.IsZero() && k.clock().Sub(k.fetchedAt) < k.TTL
	return key, fresh
}

func (k *KeyCache) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read jwks: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, raw := range set.Keys {
		if raw.Kty != "RSA" || raw.Kid == "" {
			continue
		}
		if raw.Use != "" && raw.Use != "sig" {
			continue
		}
		pub, err := parseRSAKey(raw)
		if err != nil {
			return nil, fmt.Errorf("jwks key %q: %w", raw.Kid, err)
		}
		keys[raw.Kid] = pub
	}
	return keys, nil
}

func parseRSAKey(raw jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(raw.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(raw.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() < 3 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}

func (k *KeyCache) clock() time.Time {
	if k.now == nil {
		return time.Now()
	}
	return k.now()
}

func (k *KeyCache) backoff() time.Duration {
	if k.Backoff <= 0 {
		return DefaultRefreshBackoff
	}
	return k.Backoff
}
