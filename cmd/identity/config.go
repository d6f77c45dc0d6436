package main

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/239fd/wmsProjectBackend-sub001/internal/logger"
)

const (
	defaultListenAddr  = "localhost:8000"
	defaultLogLevel    = logger.LevelInfo
	defaultEnvironment = logger.EnvProduction
	defaultFrontendURL = "http://localhost:3000"
)

type Config struct {
	// Address the identity service listens on
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Optional path to a PEM encoded RSA private key (cmd/genkey output)
	// A fresh pair is generated at startup when empty
	SigningKeyFile string

	// Access and refresh token lifetimes
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Frontend base URL the oauth callback redirects the browser to
	FrontendURL string

	// OAuth provider credentials. A provider with an empty client id is
	// simply not registered
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GithubClientID     string
	GithubClientSecret string
	GithubRedirectURL  string

	LogLevel    string
	Environment string
}

func NewConfig() *Config {
	return &Config{
		ListenAddr:  defaultListenAddr,
		FrontendURL: defaultFrontendURL,
		LogLevel:    defaultLogLevel,
		Environment: defaultEnvironment,
	}
}

// Load variables from a '.env' file located at the working directory
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			if d, err := time.ParseDuration(value); err == nil {
				*o = d
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":          setString(&c.ListenAddr),
		"DATABASE_URI":         setString(&c.DatabaseDSN),
		"SIGNING_KEY_FILE":     setString(&c.SigningKeyFile),
		"ACCESS_TOKEN_TTL":     setDuration(&c.AccessTokenTTL),
		"REFRESH_TOKEN_TTL":    setDuration(&c.RefreshTokenTTL),
		"FRONTEND_URL":         setString(&c.FrontendURL),
		"GOOGLE_CLIENT_ID":     setString(&c.GoogleClientID),
		"GOOGLE_CLIENT_SECRET": setString(&c.GoogleClientSecret),
		"GOOGLE_REDIRECT_URL":  setString(&c.GoogleRedirectURL),
		"GITHUB_CLIENT_ID":     setString(&c.GithubClientID),
		"GITHUB_CLIENT_SECRET": setString(&c.GithubClientSecret),
		"GITHUB_REDIRECT_URL":  setString(&c.GithubRedirectURL),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"ENVIRONMENT":          setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("identity", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SigningKeyFile, "signing-key", "k", c.SigningKeyFile, "Path to PEM encoded RSA private key")
	fs.StringVarP(&c.FrontendURL, "frontend", "f", c.FrontendURL, "Frontend base URL for oauth redirects")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}
