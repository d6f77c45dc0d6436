package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/239fd/wmsProjectBackend-sub001/internal/gateway"
	"github.com/239fd/wmsProjectBackend-sub001/internal/logger"
	"github.com/239fd/wmsProjectBackend-sub001/internal/testutil"
	"github.com/239fd/wmsProjectBackend-sub001/tests/integration"
)

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Downstream echo handler: reports the identity headers it received
func downstreamEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{
			"userId": r.Header.Get(gateway.HeaderUserID),
			"email":  r.Header.Get(gateway.HeaderUserEmail),
			"role":   r.Header.Get(gateway.HeaderUserRole),
		}
		_ = json.NewEncoder(w).Encode(payload)
	})
}

// Gateway in front of the downstream, discovering keys from the identity
// service like the deployed binary does
func startGateway(t *testing.T, issuerURL string, downstream http.Handler) *httptest.Server {
	t.Helper()

	verifier, err := gateway.NewVerifier(gateway.VerifierConfig{IssuerURL: issuerURL})
	require.NoError(t, err, "verifier should be created without errors")

	excluded := []string{"/health"}
	srv := httptest.NewServer(gateway.Filter(verifier, excluded, logger.NewNoOp())(downstream))
	t.Cleanup(srv.Close)
	return srv
}

func register(t *testing.T, identityURL string, email string) tokenPair {
	t.Helper()

	data := fmt.Sprintf(`{
		"email": %q,
		"password": "StrongEnoughPassword",
		"firstName": "Pavel",
		"lastName": "Orlov",
		"role": "WORKER"
	}`, email)

	resp, err := http.Post(identityURL+"/auth/register", "application/json", strings.NewReader(data))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

	var pair tokenPair
	require.NoError(t, json.Unmarshal(body, &pair))
	return pair
}

func get(t *testing.T, url string, bearer string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	return resp, body
}

func Test_GatewayFlow(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("issued token passes the gateway and identity reaches downstream", func(t *testing.T) {
		integration.ServeWithTx(pg.Pool, t, nil, func(identityURL string, _ integration.Services) {
			gw := startGateway(t, identityURL, downstreamEcho())

			pair := register(t, identityURL, "worker@example.com")

			resp, body := get(t, gw.URL+"/api/v1/items", pair.AccessToken)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var echoed map[string]string
			require.NoError(t, json.Unmarshal(body, &echoed))
			require.Equal(t, "worker@example.com", echoed["email"])
			require.Equal(t, "WORKER", echoed["role"])
			require.NotEmpty(t, echoed["userId"])
		})
	})

	t.Run("requests without a token are rejected uniformly", func(t *testing.T) {
		integration.ServeWithTx(pg.Pool, t, nil, func(identityURL string, _ integration.Services) {
			gw := startGateway(t, identityURL, downstreamEcho())

			resp, bodyMissing := get(t, gw.URL+"/api/v1/items", "")
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			resp, bodyGarbage := get(t, gw.URL+"/api/v1/items", "definitely.not.jwt")
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			require.Equal(t, string(bodyMissing), string(bodyGarbage), "both failures must answer with the same bytes")
		})
	})

	t.Run("spoofed identity headers are replaced with verified ones", func(t *testing.T) {
		integration.ServeWithTx(pg.Pool, t, nil, func(identityURL string, _ integration.Services) {
			gw := startGateway(t, identityURL, downstreamEcho())

			pair := register(t, identityURL, "worker@example.com")

			req, err := http.NewRequest(http.MethodGet, gw.URL+"/api/v1/items", nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
			req.Header.Set(gateway.HeaderUserRole, "DIRECTOR")
			req.Header.Set(gateway.HeaderUserEmail, "boss@example.com")

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var echoed map[string]string
			require.NoError(t, json.Unmarshal(body, &echoed))
			require.Equal(t, "WORKER", echoed["role"], "attacker supplied role must not survive the gateway")
			require.Equal(t, "worker@example.com", echoed["email"])
		})
	})

	t.Run("excluded prefixes pass without a token", func(t *testing.T) {
		integration.ServeWithTx(pg.Pool, t, nil, func(identityURL string, _ integration.Services) {
			gw := startGateway(t, identityURL, downstreamEcho())

			resp, _ := get(t, gw.URL+"/health", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
		})
	})
}
