// Package config loads broker settings from environment variables. Command
// line flags use these values as their defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Env holds the provider independent settings.
type Env struct {
	Provider       string        `env:"PROVIDER"                    envDefault:"hubspot"`
	Addr           string        `env:"ADDR"                        envDefault:":8000"`
	Store          string        `env:"STORE"                       envDefault:"memory"`
	RedisAddr      string        `env:"REDIS_ADDR"                  envDefault:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB"`
	LogLevel       string        `env:"LOG_LEVEL"`
	Transport      string        `env:"MCP_TRANSPORT"               envDefault:"http"`
	FrontendOrigin string        `env:"FRONTEND_ORIGIN"             envDefault:"http://localhost:3000"`
	StateTTL       time.Duration `env:"STATE_TTL"                   envDefault:"10m"`
	CredentialTTL  time.Duration `env:"CREDENTIAL_TTL"              envDefault:"10m"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"             envDefault:"10s"`
	MaxPages       int           `env:"MAX_PAGES"`
	OTelEndpoint   string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// ProviderEnv holds the OAuth client settings of one provider, read from
// variables prefixed with the upper case provider name, e.g. HUBSPOT_CLIENT_ID.
type ProviderEnv struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURI  string   `env:"REDIRECT_URI"`
	Scopes       []string `env:"SCOPES"   envSeparator:","`
	APIBase      string   `env:"API_BASE"`
}

// Load reads Env from environ, or from the process environment when environ
// is nil.
func Load(environ map[string]string) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: environ}); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// LoadProvider reads the ProviderEnv of provider from environ, or from the
// process environment when environ is nil.
func LoadProvider(provider string, environ map[string]string) (ProviderEnv, error) {
	var e ProviderEnv
	opts := env.Options{
		Prefix:      ProviderPrefix(provider),
		Environment: environ,
	}
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return ProviderEnv{}, fmt.Errorf("parse %s env: %w", provider, err)
	}
	return e, nil
}

// ProviderPrefix returns the environment prefix of provider.
func ProviderPrefix(provider string) string {
	return strings.ToUpper(strings.TrimSpace(provider)) + "_"
}
