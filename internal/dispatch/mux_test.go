package dispatch_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/mark3labs/oasrouter/internal/dispatch"
)

// muxRouter mounts routes on a net/http ServeMux using its "{name}"
// patterns. Errors returned by routes are recorded and answered with 500.
type muxRouter struct {
	mux *http.ServeMux

	mu   sync.Mutex
	errs []error
}

func newMuxRouter() *muxRouter { return &muxRouter{mux: http.NewServeMux()} }

func (m *muxRouter) Style() dispatch.PathStyle { return dispatch.StyleBrace }

func (m *muxRouter) Handle(method, path string, h dispatch.RouteHandler) {
	names := placeholders(path)
	m.mux.HandleFunc(method+" "+path, func(w http.ResponseWriter, r *http.Request) {
		ex := &muxExchange{w: w, r: r, names: names}
		if err := h(ex); err != nil {
			m.mu.Lock()
			m.errs = append(m.errs, err)
			m.mu.Unlock()
			if !ex.written {
				w.WriteHeader(http.StatusInternalServerError)
			}
		}
	})
}

func (m *muxRouter) errors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.errs...)
}

func placeholders(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			out = append(out, seg[1:len(seg)-1])
		}
	}
	return out
}

type muxExchange struct {
	w       http.ResponseWriter
	r       *http.Request
	names   []string
	written bool
}

func (e *muxExchange) Context() context.Context  { return e.r.Context() }
func (e *muxExchange) Method() string            { return e.r.Method }
func (e *muxExchange) Headers() http.Header      { return e.r.Header }
func (e *muxExchange) Header(name string) string { return e.r.Header.Get(name) }

func (e *muxExchange) Cookie(name string) (string, bool) {
	c, err := e.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

func (e *muxExchange) QueryValue(name string) (string, bool) {
	q := e.r.URL.Query()
	if !q.Has(name) {
		return "", false
	}
	return q.Get(name), true
}

func (e *muxExchange) PathParams() map[string]string {
	out := make(map[string]string, len(e.names))
	for _, n := range e.names {
		out[n] = e.r.PathValue(n)
	}
	return out
}

func (e *muxExchange) QueryParams() map[string][]string { return e.r.URL.Query() }

func (e *muxExchange) Body() ([]byte, error) {
	if e.r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(e.r.Body)
}

func (e *muxExchange) Write(status int, contentType string, body []byte) error {
	e.written = true
	if contentType != "" {
		e.w.Header().Set("Content-Type", contentType)
	}
	e.w.WriteHeader(status)
	_, err := e.w.Write(body)
	return err
}
