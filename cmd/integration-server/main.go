// Package main runs the integration broker: the browser facing OAuth routes
// and an MCP server exposing the same operations as tools.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-training/integration-broker/pkg/broker"
	appconfig "github.com/go-training/integration-broker/pkg/config"
	"github.com/go-training/integration-broker/pkg/logger"
	"github.com/go-training/integration-broker/pkg/provider"
	"github.com/go-training/integration-broker/pkg/telemetry"

	"github.com/appleboy/graceful"
)

type config struct {
	addr           string
	providerName   string
	clientID       string
	clientSecret   string
	redirectURI    string
	scopes         string
	apiBase        string
	storeType      string
	redisAddr      string
	redisPassword  string
	redisDB        int
	logLevel       string
	transport      string
	frontendOrigin string
	stateTTL       time.Duration
	credentialTTL  time.Duration
	requestTimeout time.Duration
	maxPages       int
	otelEndpoint   string
}

// parseFlags reads the environment first; flags override it.
func parseFlags() (config, error) {
	e, err := appconfig.Load(nil)
	if err != nil {
		return config{}, err
	}

	var cfg config
	flag.StringVar(&cfg.addr, "addr", e.Addr, "address to listen on")
	flag.StringVar(&cfg.providerName, "provider", e.Provider, "OAuth provider: "+strings.Join(provider.Names(), ", "))
	flag.StringVar(&cfg.clientID, "client_id", "", "OAuth 2.0 Client ID (env <PROVIDER>_CLIENT_ID)")
	flag.StringVar(&cfg.clientSecret, "client_secret", "", "OAuth 2.0 Client Secret (env <PROVIDER>_CLIENT_SECRET)")
	flag.StringVar(&cfg.redirectURI, "redirect_uri", "", "OAuth 2.0 redirect URI (env <PROVIDER>_REDIRECT_URI)")
	flag.StringVar(&cfg.scopes, "scopes", "", "Space or comma separated scopes, overrides the provider defaults (env <PROVIDER>_SCOPES)")
	flag.StringVar(&cfg.apiBase, "api-base", "", "Provider API base URL override (env <PROVIDER>_API_BASE)")
	flag.StringVar(&cfg.storeType, "store", e.Store, "Store type: memory or redis")
	flag.StringVar(&cfg.redisAddr, "redis-addr", e.RedisAddr, "Redis address (only used when store=redis)")
	flag.StringVar(&cfg.redisPassword, "redis-password", e.RedisPassword, "Redis password (only used when store=redis)")
	flag.IntVar(&cfg.redisDB, "redis-db", e.RedisDB, "Redis database (only used when store=redis)")
	flag.StringVar(&cfg.logLevel, "log-level", e.LogLevel, "Log level (DEBUG, INFO, WARN, ERROR). Defaults to DEBUG in development, INFO in production")
	flag.StringVar(&cfg.transport, "transport", e.Transport, "MCP transport type (stdio or http)")
	flag.StringVar(&cfg.frontendOrigin, "frontend-origin", e.FrontendOrigin, "Origin allowed by CORS")
	flag.DurationVar(&cfg.stateTTL, "state-ttl", e.StateTTL, "Lifetime of a pending authorization")
	flag.DurationVar(&cfg.credentialTTL, "credential-ttl", e.CredentialTTL, "Lifetime of an unclaimed credential")
	flag.DurationVar(&cfg.requestTimeout, "request-timeout", e.RequestTimeout, "Timeout of each provider request")
	flag.IntVar(&cfg.maxPages, "max-pages", e.MaxPages, "Upper bound on pages per listing, 0 means unbounded")
	flag.StringVar(&cfg.otelEndpoint, "otel-endpoint", e.OTelEndpoint, "OTLP/HTTP endpoint for traces, empty disables export")
	flag.Parse()

	pe, err := appconfig.LoadProvider(cfg.providerName, nil)
	if err != nil {
		return config{}, err
	}
	cfg.clientID = firstNonEmpty(cfg.clientID, pe.ClientID)
	cfg.clientSecret = firstNonEmpty(cfg.clientSecret, pe.ClientSecret)
	cfg.redirectURI = firstNonEmpty(cfg.redirectURI, pe.RedirectURI,
		fmt.Sprintf("http://localhost%s/integrations/%s/oauth2callback", cfg.addr, cfg.providerName))
	cfg.scopes = firstNonEmpty(cfg.scopes, strings.Join(pe.Scopes, ","))
	cfg.apiBase = firstNonEmpty(cfg.apiBase, pe.APIBase)
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newBroker(cfg config, st *storeHandle) (*broker.Broker, error) {
	p, err := provider.Lookup(cfg.providerName)
	if err != nil {
		return nil, err
	}
	if cfg.apiBase != "" {
		p.APIBaseURL = strings.TrimRight(cfg.apiBase, "/")
	}
	if scopes := strings.FieldsFunc(cfg.scopes, func(r rune) bool { return r == ',' || r == ' ' }); len(scopes) > 0 {
		p.Scopes = scopes
	}

	return broker.New(broker.Config{
		Provider: p,
		Client: broker.ClientConfig{
			ClientID:     cfg.clientID,
			ClientSecret: cfg.clientSecret,
			RedirectURI:  cfg.redirectURI,
		},
		StateTTL:       cfg.stateTTL,
		CredentialTTL:  cfg.credentialTTL,
		RequestTimeout: cfg.requestTimeout,
		MaxPages:       cfg.maxPages,
	}, st.Store)
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// stdout carries the MCP stream in stdio mode.
	if cfg.transport == "stdio" {
		logger.NewWithWriter(os.Stderr, cfg.logLevel)
	} else {
		logger.NewWithLevel(cfg.logLevel)
	}

	if cfg.transport != "stdio" && cfg.transport != "http" {
		slog.Error("Invalid transport type", "transport", cfg.transport)
		os.Exit(1)
	}
	if cfg.clientID == "" || cfg.clientSecret == "" {
		slog.Error("Client ID and Client Secret must be provided", "provider", cfg.providerName)
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.Setup(context.Background(), "integration-broker", cfg.otelEndpoint)
	if err != nil {
		slog.Error("Failed to set up tracing", "endpoint", cfg.otelEndpoint, "error", err)
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to create store", "type", cfg.storeType, "error", err)
		os.Exit(1)
	}

	b, err := newBroker(cfg, st)
	if err != nil {
		slog.Error("Failed to create broker", "provider", cfg.providerName, "error", err)
		st.Close()
		os.Exit(1)
	}
	registry := broker.NewRegistry(b)
	mcpServer := NewMCPServer(registry, b.Name())

	var mcpHandler http.Handler
	if cfg.transport == "http" {
		mcpHandler = mcpServer.ServeHTTP()
	}
	router := newRouter(registry, mcpHandler, cfg.frontendOrigin)

	srv := &http.Server{
		Addr:         cfg.addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	m := graceful.NewManager()
	m.AddRunningJob(func(ctx context.Context) error {
		slog.Info("Integration broker listening", "addr", cfg.addr, "provider", b.Name(), "redirect_uri", cfg.redirectURI)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "err", err)
			return err
		}
		return nil
	})
	if cfg.transport == "stdio" {
		m.AddRunningJob(func(ctx context.Context) error {
			return mcpServer.ServeStdio()
		})
	}
	if st.memory != nil {
		m.AddRunningJob(func(ctx context.Context) error {
			st.sweep(ctx, time.Minute)
			return nil
		})
	}
	m.AddShutdownJob(func() error {
		slog.Info("Shutdown signal received, shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	m.AddShutdownJob(func() error {
		st.Close()
		return nil
	})
	m.AddShutdownJob(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracing(ctx)
	})

	<-m.Done()
	slog.Info("Server shutdown gracefully")
}
