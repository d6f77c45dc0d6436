// Package integration spins the full identity HTTP surface over a rolled
// back database transaction so suites can drive it like a deployed service.
package integration

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/239fd/wmsProjectBackend-sub001/internal/handlers"
	"github.com/239fd/wmsProjectBackend-sub001/internal/keys"
	"github.com/239fd/wmsProjectBackend-sub001/internal/logger"
	"github.com/239fd/wmsProjectBackend-sub001/internal/models"
	"github.com/239fd/wmsProjectBackend-sub001/internal/repository/postgres"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/auth"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/auth/tokenmanager"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/oauth"
	"github.com/239fd/wmsProjectBackend-sub001/internal/testutil"
)

type Services struct {
	AuthService  *auth.AuthService
	OAuthService *oauth.Service
	Keys         *keys.Manager
}

// StubProvider stands in for a real oauth provider so callback flows resolve
// without leaving the test process.
type StubProvider struct {
	ProviderName string
	Result       models.ProviderIdentity
	Err          error
}

func (p *StubProvider) Name() string { return p.ProviderName }

func (p *StubProvider) AuthCodeURL(state string) string {
	return "https://provider.example.com/authorize?state=" + state
}

func (p *StubProvider) Identity(_ context.Context, _ string) (models.ProviderIdentity, error) {
	if p.Err != nil {
		return models.ProviderIdentity{}, p.Err
	}
	return p.Result, nil
}

// ServeWithTx runs the identity server on top of one transaction (one
// connection, so the database stays clean between tests). Providers are
// optional; pass stubs when the suite exercises oauth flows.
func ServeWithTx(dbpool *pgxpool.Pool, t *testing.T, providers []oauth.Provider, fn func(srvURL string, s Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)

		km, err := keys.Generate()
		require.NoError(t, err, "signing keys should be generated without errors")

		tokenManager, err := tokenmanager.New(tokenmanager.Config{Keys: km}, storage.Refresh())
		require.NoError(t, err, "token manager should be created without errors")

		as, err := auth.NewService(auth.Config{}, tokenManager, storage.User())
		require.NoError(t, err, "auth service starting error", err)

		os, err := oauth.NewService(
			oauth.Config{},
			providers,
			oauth.NewMemStateStore(),
			oauth.NewMemTempRegistrationStore(),
			tokenManager,
			storage.User(),
		)
		require.NoError(t, err, "oauth service starting error", err)

		router := handlers.NewRouter(
			handlers.NewAuth(as, km),
			handlers.NewOAuth(os, as.AccessTTL(), "https://front.example.com", logger.NewNoOp()),
		)

		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(srv.URL, Services{
			AuthService:  as,
			OAuthService: os,
			Keys:         km,
		})
	})
}
