package dispatch

import (
	"context"
	"net/http"
	"strings"

	"github.com/mark3labs/oasrouter/internal/security"
)

// Router is the registration capability of an HTTP framework.
type Router interface {
	// Handle binds h to method (upper case) and path, written in the
	// router's own placeholder syntax.
	Handle(method, path string, h RouteHandler)
	Style() PathStyle
}

// RouteHandler serves one exchange. A returned error goes to the
// framework's generic error path; the handler has written nothing for it.
type RouteHandler func(Exchange) error

// Exchange is the per-request capability a Router hands to a RouteHandler.
type Exchange interface {
	security.Source

	Context() context.Context
	Method() string
	Headers() http.Header
	PathParams() map[string]string
	QueryParams() map[string][]string
	// Body returns the raw request body.
	Body() ([]byte, error)
	// Write sends the status and body. contentType is omitted when empty.
	Write(status int, contentType string, body []byte) error
}

// PathStyle is a router's path parameter syntax.
type PathStyle int

const (
	// StyleColon writes parameters as ":name" (gin, echo, httprouter).
	StyleColon PathStyle = iota
	// StyleBrace keeps the description's "{name}" form (net/http 1.22+, chi).
	StyleBrace
)

// TranslatePath rewrites the "{name}" placeholders of a path template into
// style.
func TranslatePath(path string, style PathStyle) string {
	if style == StyleBrace || !strings.Contains(path, "{") {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c != '{' {
			b.WriteByte(c)
			continue
		}
		end := strings.IndexByte(path[i:], '}')
		if end < 0 {
			b.WriteString(path[i:])
			break
		}
		b.WriteByte(':')
		b.WriteString(path[i+1 : i+end])
		i += end
	}
	return b.String()
}
