package handlers

import (
	"net/http"

	"github.com/239fd/wmsProjectBackend-sub001/internal/handlers/render"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// NewRouter wires the identity service HTTP surface. All routes here are
// reachable without a gateway-verified token: they are the endpoints that
// issue tokens in the first place.
func NewRouter(
	authHandler *AuthHandler,
	oauthHandler *OAuthHandler,
	mds ...func(next http.Handler) http.Handler,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/public-key", authHandler.publicKey)
	mux.HandleFunc("POST /auth/register", authHandler.register)
	mux.HandleFunc("POST /auth/login", authHandler.login)
	mux.HandleFunc("POST /auth/refresh", authHandler.refresh)
	mux.HandleFunc("POST /auth/logout", authHandler.logout)
	mux.HandleFunc("GET /auth/me", authHandler.me)

	mux.HandleFunc("GET /oauth/{provider}/authorize", oauthHandler.authorize)
	mux.HandleFunc("GET /oauth/{provider}/callback", oauthHandler.callback)
	mux.HandleFunc("POST /oauth/complete-registration", oauthHandler.completeRegistration)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, map[string]string{"status": "ok"})
	})

	return chain(mux, mds...)
}
