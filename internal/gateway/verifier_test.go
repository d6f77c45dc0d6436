package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/239fd/wmsProjectBackend-sub001/internal/apperrors"
	"github.com/239fd/wmsProjectBackend-sub001/internal/keys"
	"github.com/239fd/wmsProjectBackend-sub001/internal/models"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/auth/tokenmanager"
)

// signedToken issues an access token directly so tests control every claim
func signedToken(t *testing.T, km *keys.Manager, userID uuid.UUID, email string, role string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, tokenmanager.AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Role:  role,
	})
	token.Header["kid"] = km.KeyID()

	signed, err := token.SignedString(km.Signer())
	require.NoError(t, err)
	return signed
}

// discoveryServer serves the issuer's public key and counts fetches
func discoveryServer(t *testing.T, km *keys.Manager) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/public-key", r.URL.Path)
		fetches.Add(1)

		info, err := km.PublicKeyInfo()
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"publicKey": info.PublicKeyPEM,
			"algorithm": info.Algorithm,
			"keyId":     info.KeyID,
		})
	}))
	t.Cleanup(srv.Close)

	return srv, &fetches
}

func Test_Verifier_Discovery(t *testing.T) {
	t.Parallel()

	km, err := keys.Generate()
	require.NoError(t, err)

	srv, fetches := discoveryServer(t, km)

	v, err := NewVerifier(VerifierConfig{IssuerURL: srv.URL})
	require.NoError(t, err)

	userID := uuid.New()
	token := signedToken(t, km, userID, "director@example.com", "DIRECTOR", time.Minute)

	t.Run("verified identity matches the issued claims", func(t *testing.T) {
		identity, err := v.Verify(t.Context(), token)
		require.NoError(t, err)
		require.Equal(t, userID, identity.UserID)
		require.Equal(t, "director@example.com", identity.Email)
		require.Equal(t, models.RoleDirector, identity.Role)
	})

	t.Run("many verifications cost at most one fetch inside the TTL", func(t *testing.T) {
		before := fetches.Load()
		for range 20 {
			_, err := v.Verify(t.Context(), token)
			require.NoError(t, err)
		}
		require.Equal(t, before, fetches.Load(), "cached key should serve every call inside the TTL")
	})
}

func Test_Verifier_CacheTTL(t *testing.T) {
	t.Parallel()

	km, err := keys.Generate()
	require.NoError(t, err)

	srv, fetches := discoveryServer(t, km)

	v, err := NewVerifier(VerifierConfig{IssuerURL: srv.URL, CacheTTL: 50 * time.Millisecond})
	require.NoError(t, err)

	token := signedToken(t, km, uuid.New(), "w@example.com", "WORKER", time.Minute)

	_, err = v.Verify(t.Context(), token)
	require.NoError(t, err)
	require.Equal(t, int64(1), fetches.Load())

	// Expire the cache and verify again: exactly one refetch
	time.Sleep(80 * time.Millisecond)

	_, err = v.Verify(t.Context(), token)
	require.NoError(t, err)
	require.Equal(t, int64(2), fetches.Load())
}

func Test_Verifier_Rejections(t *testing.T) {
	t.Parallel()

	km, err := keys.Generate()
	require.NoError(t, err)

	srv, _ := discoveryServer(t, km)

	v, err := NewVerifier(VerifierConfig{IssuerURL: srv.URL})
	require.NoError(t, err)

	t.Run("token signed with a different key", func(t *testing.T) {
		other, err := keys.Generate()
		require.NoError(t, err)

		token := signedToken(t, other, uuid.New(), "a@example.com", "WORKER", time.Minute)

		_, err = v.Verify(t.Context(), token)
		require.Error(t, err, "foreign signature must be rejected regardless of claim content")
	})

	t.Run("expired token with valid signature", func(t *testing.T) {
		token := signedToken(t, km, uuid.New(), "a@example.com", "WORKER", -time.Minute)

		_, err := v.Verify(t.Context(), token)
		require.Error(t, err)
	})

	t.Run("unknown role claim", func(t *testing.T) {
		token := signedToken(t, km, uuid.New(), "a@example.com", "SUPERADMIN", time.Minute)

		_, err := v.Verify(t.Context(), token)
		require.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := v.Verify(t.Context(), "nope")
		require.Error(t, err)
	})
}

func Test_Verifier_UnknownKidForcesRefetch(t *testing.T) {
	t.Parallel()

	km, err := keys.Generate()
	require.NoError(t, err)

	srv, fetches := discoveryServer(t, km)

	v, err := NewVerifier(VerifierConfig{IssuerURL: srv.URL})
	require.NoError(t, err)

	// Prime the cache with a stale key from a previous issuer process
	stale, err := keys.Generate()
	require.NoError(t, err)
	v.cache.Set(&VerificationKey{
		Key:       &stale.Signer().PublicKey,
		KeyID:     stale.KeyID(),
		FetchedAt: time.Now(),
	})

	token := signedToken(t, km, uuid.New(), "w@example.com", "WORKER", time.Minute)

	identity, err := v.Verify(t.Context(), token)
	require.NoError(t, err, "a fresh kid should force a refetch instead of failing against the stale key")
	require.Equal(t, models.RoleWorker, identity.Role)
	require.Equal(t, int64(1), fetches.Load())
}

func Test_Verifier_StaticKey(t *testing.T) {
	t.Parallel()

	km, err := keys.Generate()
	require.NoError(t, err)
	info, err := km.PublicKeyInfo()
	require.NoError(t, err)

	// No issuer URL at all: the verifier must never need the network
	v, err := NewVerifier(VerifierConfig{StaticPublicKeyPEM: info.PublicKeyPEM})
	require.NoError(t, err)

	token := signedToken(t, km, uuid.New(), "w@example.com", "WORKER", time.Minute)

	identity, err := v.Verify(t.Context(), token)
	require.NoError(t, err)
	require.Equal(t, "w@example.com", identity.Email)
}

func Test_Verifier_FailClosed(t *testing.T) {
	t.Parallel()

	// Issuer is unreachable: no static key, no cache, no network
	v, err := NewVerifier(VerifierConfig{IssuerURL: "http://127.0.0.1:1", FetchTimeout: 200 * time.Millisecond})
	require.NoError(t, err)

	km, err := keys.Generate()
	require.NoError(t, err)
	token := signedToken(t, km, uuid.New(), "w@example.com", "WORKER", time.Minute)

	_, err = v.Verify(t.Context(), token)
	require.Error(t, err)
	require.ErrorIs(t, err, apperrors.ErrKeyUnavailable, "no usable key must reject, not allow")
}

func Test_Verifier_Config(t *testing.T) {
	t.Parallel()

	_, err := NewVerifier(VerifierConfig{})
	require.Error(t, err, "either static key or issuer url is required")

	_, err = NewVerifier(VerifierConfig{StaticPublicKeyPEM: "garbage"})
	require.Error(t, err, "unusable static key must fail at startup")
}
