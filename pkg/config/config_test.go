package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	e, err := Load(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "hubspot", e.Provider)
	assert.Equal(t, ":8000", e.Addr)
	assert.Equal(t, "memory", e.Store)
	assert.Equal(t, "localhost:6379", e.RedisAddr)
	assert.Equal(t, "http", e.Transport)
	assert.Equal(t, "http://localhost:3000", e.FrontendOrigin)
	assert.Equal(t, 10*time.Minute, e.StateTTL)
	assert.Equal(t, 10*time.Minute, e.CredentialTTL)
	assert.Equal(t, 10*time.Second, e.RequestTimeout)
	assert.Zero(t, e.MaxPages)
}

func TestLoad_Overrides(t *testing.T) {
	e, err := Load(map[string]string{
		"STORE":      "redis",
		"REDIS_DB":   "3",
		"STATE_TTL":  "90s",
		"MAX_PAGES":  "50",
		"LOG_LEVEL":  "warn",
		"REDIS_ADDR": "redis:6379",

		"OTEL_EXPORTER_OTLP_ENDPOINT": "http://collector:4318",
	})
	require.NoError(t, err)

	assert.Equal(t, "redis", e.Store)
	assert.Equal(t, 3, e.RedisDB)
	assert.Equal(t, 90*time.Second, e.StateTTL)
	assert.Equal(t, 50, e.MaxPages)
	assert.Equal(t, "warn", e.LogLevel)
	assert.Equal(t, "redis:6379", e.RedisAddr)
	assert.Equal(t, "http://collector:4318", e.OTelEndpoint)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(map[string]string{"STATE_TTL": "soon"})
	assert.ErrorContains(t, err, "parse env")
}

func TestLoadProvider(t *testing.T) {
	e, err := LoadProvider("hubspot", map[string]string{
		"HUBSPOT_CLIENT_ID":     "id-1",
		"HUBSPOT_CLIENT_SECRET": "secret-1",
		"HUBSPOT_SCOPES":        "crm.objects.contacts.read,oauth",
		"NOTION_CLIENT_ID":      "other",
	})
	require.NoError(t, err)

	assert.Equal(t, "id-1", e.ClientID)
	assert.Equal(t, "secret-1", e.ClientSecret)
	assert.Empty(t, e.RedirectURI)
	assert.Equal(t, []string{"crm.objects.contacts.read", "oauth"}, e.Scopes)
}

func TestProviderPrefix(t *testing.T) {
	assert.Equal(t, "HUBSPOT_", ProviderPrefix(" hubspot "))
}
