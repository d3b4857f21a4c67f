// Package echorouter mounts dispatch routes on an echo instance or group.
package echorouter

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mark3labs/oasrouter/internal/dispatch"
)

// Routes is satisfied by *echo.Echo and *echo.Group.
type Routes interface {
	Add(method, path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) *echo.Route
}

// Router adapts Routes to dispatch.Router. Errors returned by a route go to
// echo's HTTPErrorHandler.
type Router struct {
	routes Routes
}

func New(routes Routes) *Router { return &Router{routes: routes} }

func (r *Router) Style() dispatch.PathStyle { return dispatch.StyleColon }

func (r *Router) Handle(method, path string, h dispatch.RouteHandler) {
	r.routes.Add(method, path, func(c echo.Context) error {
		return h(exchange{c})
	})
}

type exchange struct{ c echo.Context }

func (e exchange) Context() context.Context { return e.c.Request().Context() }
func (e exchange) Method() string           { return e.c.Request().Method }
func (e exchange) Headers() http.Header     { return e.c.Request().Header }

func (e exchange) Header(name string) string { return e.c.Request().Header.Get(name) }

func (e exchange) Cookie(name string) (string, bool) {
	ck, err := e.c.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

func (e exchange) QueryValue(name string) (string, bool) {
	vs, ok := e.c.QueryParams()[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func (e exchange) PathParams() map[string]string {
	names, values := e.c.ParamNames(), e.c.ParamValues()
	out := make(map[string]string, len(names))
	for i, name := range names {
		if i < len(values) {
			out[name] = values[i]
		}
	}
	return out
}

func (e exchange) QueryParams() map[string][]string { return e.c.QueryParams() }

func (e exchange) Body() ([]byte, error) {
	body := e.c.Request().Body
	if body == nil {
		return nil, nil
	}
	return io.ReadAll(body)
}

func (e exchange) Write(status int, contentType string, body []byte) error {
	if body == nil {
		return e.c.NoContent(status)
	}
	return e.c.Blob(status, contentType, body)
}
