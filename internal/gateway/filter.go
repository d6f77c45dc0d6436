package gateway

import (
	"net/http"
	"strings"

	"github.com/239fd/wmsProjectBackend-sub001/internal/handlers/render"
	"github.com/239fd/wmsProjectBackend-sub001/internal/logger"
)

// Identity headers injected for downstream services. Downstream must trust
// them only when the request arrived through the gateway boundary.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

const bearerScheme = "Bearer "

// Filter is the per-request verification gate. Requests to excluded path
// prefixes pass through untouched; everything else needs a valid bearer
// token. Every failure between "read the header" and "claims extracted" is
// answered with the same 401 body: the gate does not leak which check failed.
func Filter(v *Verifier, excludedPrefixes []string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Inbound copies of identity headers are never trusted
			r.Header.Del(HeaderUserID)
			r.Header.Del(HeaderUserEmail)
			r.Header.Del(HeaderUserRole)

			if matchesPrefix(r.URL.Path, excludedPrefixes) {
				next.ServeHTTP(w, r)
				return
			}

			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, bearerScheme) {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			identity, err := v.Verify(r.Context(), strings.TrimPrefix(authz, bearerScheme))
			if err != nil {
				// Log the reason, never send it to the caller
				log.Warn("token verification failed", "path", r.URL.Path, "error", err.Error())
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			r.Header.Set(HeaderUserID, identity.UserID.String())
			r.Header.Set(HeaderUserEmail, identity.Email)
			r.Header.Set(HeaderUserRole, identity.Role.String())

			next.ServeHTTP(w, r)
		})
	}
}

func matchesPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
