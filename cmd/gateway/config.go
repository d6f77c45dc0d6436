package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/239fd/wmsProjectBackend-sub001/internal/logger"
)

const (
	defaultListenAddr  = "localhost:8080"
	defaultLogLevel    = logger.LevelInfo
	defaultEnvironment = logger.EnvProduction
)

// Paths that must stay reachable without a token: the endpoints that issue
// identity plus the operational probes.
var defaultExcludedPrefixes = []string{
	"/auth/login",
	"/auth/register",
	"/auth/refresh",
	"/auth/logout",
	"/auth/public-key",
	"/oauth/",
	"/health",
	"/metrics",
	"/actuator/",
	"/eureka/",
}

type Config struct {
	// Address the gateway listens on
	ListenAddr string

	// Identity service base URL: key discovery plus the proxy target for
	// auth and oauth routes
	IssuerURL string

	// Downstream business services the gateway forwards verified requests to
	DownstreamURL string

	// Optional path to a statically provisioned public key PEM. When set the
	// gateway never fetches keys over the network
	StaticPublicKeyFile string

	// Public key cache TTL and discovery fetch timeout
	KeyCacheTTL     time.Duration
	KeyFetchTimeout time.Duration

	// Path prefixes that bypass verification
	ExcludedPrefixes []string

	LogLevel    string
	Environment string
}

func NewConfig() *Config {
	return &Config{
		ListenAddr:       defaultListenAddr,
		ExcludedPrefixes: defaultExcludedPrefixes,
		LogLevel:         defaultLogLevel,
		Environment:      defaultEnvironment,
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
	setList := func(o *[]string) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			*o = parts
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":       setString(&c.ListenAddr),
		"ISSUER_URL":        setString(&c.IssuerURL),
		"DOWNSTREAM_URL":    setString(&c.DownstreamURL),
		"PUBLIC_KEY_FILE":   setString(&c.StaticPublicKeyFile),
		"KEY_CACHE_TTL":     setDuration(&c.KeyCacheTTL),
		"KEY_FETCH_TIMEOUT": setDuration(&c.KeyFetchTimeout),
		"EXCLUDED_PREFIXES": setList(&c.ExcludedPrefixes),
		"LOG_LEVEL":         setString(&c.LogLevel),
		"ENVIRONMENT":       setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("gateway", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Gateway listen address")
	fs.StringVarP(&c.IssuerURL, "issuer", "i", c.IssuerURL, "Identity service base URL")
	fs.StringVarP(&c.DownstreamURL, "downstream", "d", c.DownstreamURL, "Downstream services base URL")
	fs.StringVarP(&c.StaticPublicKeyFile, "public-key", "k", c.StaticPublicKeyFile, "Path to PEM encoded public key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}
