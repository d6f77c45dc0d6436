package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/239fd/wmsProjectBackend-sub001/internal/gateway"
	"github.com/239fd/wmsProjectBackend-sub001/internal/handlers/middleware"
	"github.com/239fd/wmsProjectBackend-sub001/internal/handlers/render"
	"github.com/239fd/wmsProjectBackend-sub001/internal/logger"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Logger     logger.Logger
}

func NewServerApp(_ context.Context, c *Config) (*ServerApp, error) {
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	if c.DownstreamURL == "" {
		return nil, errors.New("downstream url is required")
	}

	staticPEM := ""
	if c.StaticPublicKeyFile != "" {
		pemBytes, err := os.ReadFile(c.StaticPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("error while reading public key file. Err: %w", err)
		}
		staticPEM = string(pemBytes)
	}

	verifier, err := gateway.NewVerifier(gateway.VerifierConfig{
		StaticPublicKeyPEM: staticPEM,
		IssuerURL:          c.IssuerURL,
		CacheTTL:           c.KeyCacheTTL,
		FetchTimeout:       c.KeyFetchTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating verifier. Err: %w", err)
	}

	downstream, err := gateway.NewProxy(c.DownstreamURL)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// Identity-issuing endpoints are proxied to the identity service and
	// bypass verification by the excluded-prefix rule
	if c.IssuerURL != "" {
		identity, err := gateway.NewProxy(c.IssuerURL)
		if err != nil {
			return nil, err
		}
		mux.Handle("/auth/", identity)
		mux.Handle("/oauth/", identity)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, map[string]string{"status": "ok"})
	})

	mux.Handle("/", downstream)

	handler := middleware.Logger(log)(
		gateway.Filter(verifier, c.ExcludedPrefixes, log)(mux),
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    handler,
		Logger:     log,
	}, nil
}

// Run starts the http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			s.Logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown")
		}
		s.Logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	s.Logger.Info("Starting gateway", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
