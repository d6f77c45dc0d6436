package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/239fd/wmsProjectBackend-sub001/internal/db"
	"github.com/239fd/wmsProjectBackend-sub001/internal/handlers"
	"github.com/239fd/wmsProjectBackend-sub001/internal/handlers/middleware"
	"github.com/239fd/wmsProjectBackend-sub001/internal/keys"
	"github.com/239fd/wmsProjectBackend-sub001/internal/logger"
	"github.com/239fd/wmsProjectBackend-sub001/internal/repository/postgres"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/auth"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/auth/tokenmanager"
	"github.com/239fd/wmsProjectBackend-sub001/internal/service/oauth"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Logger     logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	storage := postgres.NewStorage(pool)

	// One signing key pair per process lifetime. Load a provisioned one or
	// generate fresh; failure is fatal either way
	keyManager, err := loadOrGenerateKeys(c.SigningKeyFile)
	if err != nil {
		return nil, err
	}
	log.Info("signing key ready", "keyId", keyManager.KeyID())

	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		Keys:       keyManager,
		AccessTTL:  c.AccessTokenTTL,
		RefreshTTL: c.RefreshTokenTTL,
	}, storage.Refresh())
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	authService, err := auth.NewService(auth.Config{}, tokenManager, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	oauthService, err := oauth.NewService(
		oauth.Config{},
		configuredProviders(c),
		oauth.NewMemStateStore(),
		oauth.NewMemTempRegistrationStore(),
		tokenManager,
		storage.User(),
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating oauth service. Err: %w", err)
	}

	authHandler := handlers.NewAuth(authService, keyManager)
	oauthHandler := handlers.NewOAuth(oauthService, authService.AccessTTL(), c.FrontendURL, log)

	mux := handlers.NewRouter(
		authHandler,
		oauthHandler,
		middleware.Logger(log),
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		Logger:     log,
	}, nil
}

func loadOrGenerateKeys(keyFile string) (*keys.Manager, error) {
	if keyFile == "" {
		return keys.Generate()
	}

	pemBytes, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("error while reading signing key file. Err: %w", err)
	}
	return keys.Load(pemBytes)
}

func configuredProviders(c *Config) []oauth.Provider {
	var providers []oauth.Provider

	if c.GoogleClientID != "" {
		providers = append(providers, oauth.NewGoogleProvider(oauth.ProviderConfig{
			ClientID:     c.GoogleClientID,
			ClientSecret: c.GoogleClientSecret,
			RedirectURL:  c.GoogleRedirectURL,
		}))
	}
	if c.GithubClientID != "" {
		providers = append(providers, oauth.NewGithubProvider(oauth.ProviderConfig{
			ClientID:     c.GithubClientID,
			ClientSecret: c.GithubClientSecret,
			RedirectURL:  c.GithubRedirectURL,
		}))
	}

	return providers
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

	s.Logger.Info("Starting identity service", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
