// Package ginrouter mounts dispatch routes on a gin engine or group.
package ginrouter

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mark3labs/oasrouter/internal/dispatch"
)

// Router adapts gin.IRoutes to dispatch.Router.
type Router struct {
	routes gin.IRoutes
}

func New(routes gin.IRoutes) *Router { return &Router{routes: routes} }

func (r *Router) Style() dispatch.PathStyle { return dispatch.StyleColon }

// Handle registers h. An error returned by h is attached with c.Error and
// the chain is aborted; ErrorHandler turns it into a response.
func (r *Router) Handle(method, path string, h dispatch.RouteHandler) {
	r.routes.Handle(method, path, func(c *gin.Context) {
		if err := h(exchange{c}); err != nil {
			_ = c.Error(err)
			c.Abort()
		}
	})
}

// ErrorHandler answers 500 for requests that ended with errors and wrote
// nothing.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		logger.Error("request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("error", c.Errors.String()))
		if !c.Writer.Written() {
			c.AbortWithStatus(http.StatusInternalServerError)
		}
	}
}

type exchange struct{ c *gin.Context }

func (e exchange) Context() context.Context { return e.c.Request.Context() }
func (e exchange) Method() string           { return e.c.Request.Method }
func (e exchange) Headers() http.Header     { return e.c.Request.Header }
func (e exchange) Header(name string) string {
	return e.c.GetHeader(name)
}

func (e exchange) Cookie(name string) (string, bool) {
	// gin's Context.Cookie unescapes the value; echo and net/http do not.
	ck, err := e.c.Request.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

func (e exchange) QueryValue(name string) (string, bool) { return e.c.GetQuery(name) }

func (e exchange) PathParams() map[string]string {
	out := make(map[string]string, len(e.c.Params))
	for _, p := range e.c.Params {
		out[p.Key] = p.Value
	}
	return out
}

func (e exchange) QueryParams() map[string][]string { return e.c.Request.URL.Query() }

func (e exchange) Body() ([]byte, error) {
	if e.c.Request.Body == nil {
		return nil, nil
	}
	return e.c.GetRawData()
}

func (e exchange) Write(status int, contentType string, body []byte) error {
	if body == nil {
		e.c.Status(status)
		e.c.Writer.WriteHeaderNow()
		return nil
	}
	e.c.Data(status, contentType, body)
	return nil
}
