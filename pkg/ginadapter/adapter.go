// Package ginadapter bridges a gin.Engine into the framework-agnostic
// gate.Gate. It holds the gin-to-gate request/response translation;
// internal/server uses it to install the gate on its router.
package ginadapter

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/mattnewell-cam/AgentPayments/internal/gate"
)

// ginRequest adapts *gin.Context to gate.Request.
type ginRequest struct{ c *gin.Context }

func (r ginRequest) Method() string { return r.c.Request.Method }
func (r ginRequest) Path() string   { return r.c.Request.URL.Path }
func (r ginRequest) Header(name string) string {
	return r.c.GetHeader(name)
}
func (r ginRequest) ClientIP() string { return r.c.ClientIP() }
func (r ginRequest) ParseForm() (url.Values, error) {
	if err := r.c.Request.ParseForm(); err != nil {
		return nil, err
	}
	return r.c.Request.Form, nil
}
func (r ginRequest) Cookie(name string) (string, bool) {
	v, err := r.c.Cookie(name)
	if err != nil {
		return "", false
	}
	return v, true
}

// ginResponseWriter adapts gin.ResponseWriter to gate.ResponseWriter.
type ginResponseWriter struct{ c *gin.Context }

func (w ginResponseWriter) Header() gate.Header    { return w.c.Writer.Header() }
func (w ginResponseWriter) WriteHeader(status int) { w.c.Writer.WriteHeader(status) }
func (w ginResponseWriter) Write(b []byte) (int, error) {
	return w.c.Writer.Write(b)
}

// Middleware wraps a *gate.Gate as gin middleware. On passthrough, request
// handling continues into gin's own routes; otherwise the gate has already
// written a terminal response and the chain is aborted.
func Middleware(g *gate.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		passthrough := g.Handle(c.Request.Context(), ginResponseWriter{c}, ginRequest{c})
		if !passthrough {
			c.Abort()
			return
		}
		c.Next()
	}
}

// RegisterChallengeRoute wires the gate's own POST /__challenge/verify
// endpoint into the router, since that path must reach Handle directly
// rather than a downstream application route.
func RegisterChallengeRoute(router gin.IRouter, g *gate.Gate) {
	router.POST("/__challenge/verify", func(c *gin.Context) {
		g.Handle(c.Request.Context(), ginResponseWriter{c}, ginRequest{c})
		c.Abort()
	})
	router.Handle(http.MethodOptions, "/__challenge/verify", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
}
