package gateway

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/239fd/wmsProjectBackend-sub001/internal/apperrors"
	"github.com/239fd/wmsProjectBackend-sub001/internal/keys"
)

// VerificationKey is one snapshot of the issuer's public key
type VerificationKey struct {
	Key       *rsa.PublicKey
	KeyID     string
	FetchedAt time.Time
}

// KeyCache is process-wide shared state: initialized empty, populated lazily,
// refreshed on TTL expiry or an unknown key id, never torn down. Concurrent
// refreshes race harmlessly: the fetch is idempotent, last write wins, so a
// plain check-then-set is enough and no lock is held around the fetch.
type KeyCache struct {
	snapshot atomic.Pointer[VerificationKey]

	ttl time.Duration
}

func NewKeyCache(ttl time.Duration) *KeyCache {
	return &KeyCache{ttl: ttl}
}

// Fresh returns the cached key if it is younger than the TTL
func (c *KeyCache) Fresh() (*VerificationKey, bool) {
	k := c.snapshot.Load()
	if k == nil || time.Since(k.FetchedAt) > c.ttl {
		return nil, false
	}
	return k, true
}

// Current returns whatever is cached regardless of age
func (c *KeyCache) Current() *VerificationKey {
	return c.snapshot.Load()
}

func (c *KeyCache) Set(k *VerificationKey) {
	c.snapshot.Store(k)
}

// KeyFetcher pulls the issuer's public key from the discovery endpoint.
// The timeout is load-bearing: a slow issuer must fail a single request,
// not stall the pipeline.
type KeyFetcher struct {
	discoveryURL string
	client       *http.Client
}

func NewKeyFetcher(issuerURL string, timeout time.Duration) *KeyFetcher {
	return &KeyFetcher{
		discoveryURL: issuerURL + "/auth/public-key",
		client:       &http.Client{Timeout: timeout},
	}
}

func (f *KeyFetcher) Fetch(ctx context.Context) (*VerificationKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.discoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrKeyUnavailable, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrKeyUnavailable, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: discovery endpoint returned %d", apperrors.ErrKeyUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrKeyUnavailable, err)
	}

	var payload struct {
		PublicKey string `json:"publicKey"`
		Algorithm string `json:"algorithm"`
		KeyID     string `json:"keyId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrKeyUnavailable, err)
	}
	if payload.Algorithm != keys.SigningAlgorithm {
		return nil, fmt.Errorf("%w: issuer declares algorithm %q, want %q", apperrors.ErrKeyUnavailable, payload.Algorithm, keys.SigningAlgorithm)
	}

	key, err := keys.ParsePublicKey([]byte(payload.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrKeyUnavailable, err)
	}

	return &VerificationKey{
		Key:       key,
		KeyID:     payload.KeyID,
		FetchedAt: time.Now(),
	}, nil
}
