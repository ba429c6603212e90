package main

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-training/integration-broker/pkg/core"

	sloggin "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
)

const (
	requestIDHeader    = "X-Request-ID"
	callbackPathSuffix = "/oauth2callback"
)

// corsMiddleware allows the frontend origin to call the broker with
// credentials. Requests from other origins get no CORS headers.
func corsMiddleware(origin string, allowedHeaders ...string) gin.HandlerFunc {
	headers := []string{"Mcp-Protocol-Version", "Authorization", "Content-Type", requestIDHeader}
	for _, h := range allowedHeaders {
		h = strings.TrimSpace(h)
		if h != "" && h != "*" && !containsCI(headers, h) {
			headers = append(headers, h)
		}
	}
	allowedMethods := []string{"GET", "POST", "DELETE", "OPTIONS"}

	return func(c *gin.Context) {
		c.Header("Vary", "Origin")
		if reqOrigin := c.GetHeader("Origin"); reqOrigin != "" && strings.EqualFold(reqOrigin, origin) {
			c.Header("Access-Control-Allow-Origin", reqOrigin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", strings.Join(allowedMethods, ", "))
			c.Header("Access-Control-Allow-Headers", strings.Join(headers, ", "))
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestIDMiddleware propagates X-Request-ID, generating one when absent.
func requestIDMiddleware(c *gin.Context) {
	ctx := core.WithRequestIDValue(c.Request.Context(), c.GetHeader(requestIDHeader))
	c.Request = c.Request.WithContext(ctx)
	c.Header(requestIDHeader, core.RequestIDFromCtx(ctx))
	c.Next()
}

// requestLogger logs one line per request through the request-scoped
// logger. Callback requests are skipped since their query carries the
// authorization code; the broker logs the callback outcome itself.
func requestLogger() gin.HandlerFunc {
	return sloggin.SetLogger(
		sloggin.WithSkipper(func(c *gin.Context) bool {
			return strings.HasSuffix(c.Request.URL.Path, callbackPathSuffix)
		}),
		sloggin.WithLogger(func(c *gin.Context, _ *slog.Logger) *slog.Logger {
			return core.LoggerFromCtx(c.Request.Context())
		}),
	)
}

// containsCI checks if slice contains item (case-insensitive).
func containsCI(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
