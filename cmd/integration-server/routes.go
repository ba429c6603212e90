package main

import (
	"errors"
	"net/http"

	"github.com/go-training/integration-broker/pkg/broker"
	"github.com/go-training/integration-broker/pkg/core"

	"github.com/gin-gonic/gin"
)

// closeWindowHTML is served after a successful callback so the consent popup
// closes and the frontend can pick up the credentials.
const closeWindowHTML = `<html>
    <script>
        window.close();
    </script>
</html>`

type api struct {
	registry *broker.Registry
}

func newRouter(registry *broker.Registry, mcpHandler http.Handler, frontendOrigin string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestIDMiddleware, requestLogger(), corsMiddleware(frontendOrigin))

	a := &api{registry: registry}
	router.GET("/", a.ping)

	integrations := router.Group("/integrations/:provider")
	integrations.POST("/authorize", a.authorize)
	integrations.GET(callbackPathSuffix, a.oauth2Callback)
	integrations.POST("/credentials", a.credentials)
	integrations.POST("/load", a.load)

	if mcpHandler != nil {
		// Register POST, GET, DELETE methods for the /mcp path, all handled by MCPServer
		for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodDelete} {
			router.Handle(method, "/mcp", gin.WrapH(mcpHandler))
		}
	}
	return router
}

func (a *api) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"Ping": "Pong"})
}

func (a *api) broker(c *gin.Context) (*broker.Broker, bool) {
	b, err := a.registry.Get(c.Param("provider"))
	if err != nil {
		abortWithError(c, err, nil)
		return nil, false
	}
	return b, true
}

func (a *api) authorize(c *gin.Context) {
	b, ok := a.broker(c)
	if !ok {
		return
	}
	authURL, err := b.Authorize(c.Request.Context(), c.PostForm("user_id"), c.PostForm("org_id"))
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, authURL)
}

func (a *api) oauth2Callback(c *gin.Context) {
	b, ok := a.broker(c)
	if !ok {
		return
	}
	_, err := b.Callback(c.Request.Context(), broker.CallbackParams{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	})
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(closeWindowHTML))
}

func (a *api) credentials(c *gin.Context) {
	b, ok := a.broker(c)
	if !ok {
		return
	}
	cred, err := b.ConsumeCredentials(c.Request.Context(), c.PostForm("user_id"), c.PostForm("org_id"))
	if err != nil {
		abortWithError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, cred)
}

func (a *api) load(c *gin.Context) {
	b, ok := a.broker(c)
	if !ok {
		return
	}
	cred, err := core.ParseCredential(c.PostForm("credentials"))
	if err != nil {
		abortWithError(c, core.WrapError(core.KindInvalidRequest, "invalid credentials", err), nil)
		return
	}

	list, err := b.ListItems(c.Request.Context(), cred, c.PostForm("type"))
	if err != nil {
		if list == nil {
			list = []core.IntegrationItem{}
		}
		abortWithError(c, err, gin.H{"items": list})
		return
	}
	c.JSON(http.StatusOK, list)
}

// abortWithError writes {"kind", "detail"} with the status mapped from the
// error kind, merged with extra fields.
func abortWithError(c *gin.Context, err error, extra gin.H) {
	body := gin.H{}
	for k, v := range extra {
		body[k] = v
	}

	var e *core.Error
	if !errors.As(err, &e) {
		core.LoggerFromCtx(c.Request.Context()).Error("Unexpected error", "error", err)
		body["kind"] = "InternalError"
		body["detail"] = "internal error"
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		return
	}
	body["kind"] = e.Kind
	body["detail"] = e.Error()
	c.AbortWithStatusJSON(core.HTTPStatus(e.Kind), body)
}
