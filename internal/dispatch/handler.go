package dispatch

import (
	"context"
	"net/http"

	"github.com/mark3labs/oasrouter/internal/security"
	"github.com/mark3labs/oasrouter/internal/spec"
)

// Request is what a business handler receives. Params, Query and Body hold
// the validated values: coerced, defaulted and stripped.
type Request struct {
	Operation *spec.Operation
	Headers   http.Header
	Params    map[string]any
	Query     map[string]any
	Body      any // nil when the request carried none
	// Security maps the scheme names of the winning requirement group to
	// their principals.
	Security security.Principals
	Env      any
}

// Result is a business handler's answer. A nil Content sends an empty body.
type Result struct {
	StatusCode int
	Content    any
}

// Handler implements one operation.
type Handler interface {
	Handle(ctx context.Context, req *Request) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, req *Request) (Result, error) {
	return f(ctx, req)
}

// Handlers binds operationIds to handlers.
type Handlers map[string]Handler
