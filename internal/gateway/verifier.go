// Package gateway is the perimeter of the platform: it verifies bearer
// tokens against the issuer's distributed public key and forwards requests
// with verified identity headers to the downstream business services.
package gateway

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/239fd/wmsProjectBackend-sub001/internal/apperrors"
	"github.com/239fd/wmsProjectBackend-sub001/internal/keys"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/auth/tokenmanager"
)

const (
	defaultCacheTTL     = 10 * time.Minute
	defaultFetchTimeout = 3 * time.Second
)

type VerifierConfig struct {
	// Static public key PEM. When set it is preferred over discovery and
	// the verifier never goes to the network
	StaticPublicKeyPEM string

	// Issuer base URL for key discovery, e.g. http://identity:8000
	IssuerURL string

	// Cache TTL and discovery fetch timeout
	// Defaults are used if not set
	CacheTTL     time.Duration
	FetchTimeout time.Duration
}

// Verifier checks access tokens without calling the issuer per request: the
// only network traffic is the rare TTL-gated key fetch.
type Verifier struct {
	static  *rsa.PublicKey
	cache   *KeyCache
	fetcher *KeyFetcher

	parser *jwt.Parser
}

func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.CacheTTL, defaultCacheTTL)
	setDefaultDuration(&cfg.FetchTimeout, defaultFetchTimeout)

	v := &Verifier{
		cache: NewKeyCache(cfg.CacheTTL),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{keys.SigningAlgorithm}),
			jwt.WithExpirationRequired(),
		),
	}

	if cfg.StaticPublicKeyPEM != "" {
		key, err := keys.ParsePublicKey([]byte(cfg.StaticPublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("static public key is unusable. Err: %w", err)
		}
		v.static = key
		return v, nil
	}

	if cfg.IssuerURL == "" {
		return nil, errors.New("either a static public key or an issuer URL is required")
	}
	v.fetcher = NewKeyFetcher(cfg.IssuerURL, cfg.FetchTimeout)

	return v, nil
}

// Verify validates the token and returns the trusted identity. Every failure
// mode collapses into an error the filter renders as a uniform 401: the
// verifier must not become an oracle for which check failed.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (tokenmanager.Identity, error) {
	key, err := v.resolveKey(ctx, tokenString)
	if err != nil {
		return tokenmanager.Identity{}, err
	}

	claims := &tokenmanager.AccessTokenClaims{}
	_, err = v.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return tokenmanager.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}

	return tokenmanager.IdentityFromClaims(claims)
}

// resolveKey picks the verification key: static if configured, else the
// cached key while fresh, else a discovery fetch. A token claiming a key id
// the cache does not know forces one refetch: after a restart the issuer
// signs with a new key before our TTL runs out.
func (v *Verifier) resolveKey(ctx context.Context, tokenString string) (*rsa.PublicKey, error) {
	if v.static != nil {
		return v.static, nil
	}

	claimedKid := v.claimedKeyID(tokenString)

	if cached, ok := v.cache.Fresh(); ok {
		if claimedKid == "" || claimedKid == cached.KeyID {
			return cached.Key, nil
		}
	}

	fetched, err := v.fetcher.Fetch(ctx)
	if err != nil {
		// Fail closed: no usable key means the request is rejected,
		// availability is sacrificed for safety
		return nil, err
	}
	v.cache.Set(fetched)

	return fetched.Key, nil
}

// claimedKeyID reads the kid header without trusting anything else in the
// token. Absent or malformed is fine; it only gates the refetch heuristic.
func (v *Verifier) claimedKeyID(tokenString string) string {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return ""
	}
	kid, _ := token.Header["kid"].(string)
	return kid
}
