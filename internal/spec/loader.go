package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError         ErrorCode = "InputError"
	NetworkError       ErrorCode = "NetworkError"
	ParseError         ErrorCode = "ParseError"
	ValidationError    ErrorCode = "ValidationError"
	UnsupportedVersion ErrorCode = "UnsupportedVersion"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Settings configures how remote documents and refs are fetched.
type Settings struct {
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries bounds attempts on transient failures (>=500, 429, network errors).
	MaxRetries int
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{HTTPTimeout: 10 * time.Second, MaxRetries: 3}
}

const retryBackoff = 200 * time.Millisecond

// Option mutates Settings. Zero values keep the default.
type Option func(*Settings)

func WithHTTPTimeout(d time.Duration) Option {
	return func(s *Settings) {
		if d > 0 {
			s.HTTPTimeout = d
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(s *Settings) {
		if n > 0 {
			s.MaxRetries = n
		}
	}
}

// Load reads, validates, and returns an OpenAPI v3 document.
//
// input may be a filesystem path or an http/https URL. file:// URLs are blocked.
// Swagger 2.0 documents are rejected with UnsupportedVersion.
func Load(ctx context.Context, input string, opts ...Option) (*openapi3.T, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	u, uerr := url.Parse(input)
	isURL := uerr == nil && u.Scheme != "" && u.Host != ""

	if isURL {
		scheme := strings.ToLower(u.Scheme)
		if scheme == "file" {
			return nil, &SpecError{Code: InputError, Message: "spec: file:// URLs are blocked by default", Location: input}
		}
		if scheme != "http" && scheme != "https" {
			return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: unsupported URL scheme %q (only http/https allowed)", scheme), Location: input}
		}

		f := newFetcher(settings)
		raw, fetchErr := f.get(ctx, input)
		if fetchErr != nil {
			return nil, &SpecError{Code: NetworkError, Message: fmt.Sprintf("fetch %s: %v", input, fetchErr), Location: input, Cause: fetchErr}
		}
		if err := checkVersion(raw, input); err != nil {
			return nil, err
		}

		doc, err := f.loader(ctx, false).LoadFromDataWithPath(raw, u)
		if err != nil {
			return nil, mapValidateOrParseErr(err, input)
		}
		return validated(ctx, doc, input)
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, rerr := os.ReadFile(abs)
	if rerr != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, rerr), Location: abs, Cause: rerr}
	}
	if err := checkVersion(raw, abs); err != nil {
		return nil, err
	}

	doc, err := newFetcher(settings).loader(ctx, true).LoadFromFile(abs)
	if err != nil {
		return nil, mapValidateOrParseErr(err, abs)
	}
	return validated(ctx, doc, abs)
}

// Parse loads an in-memory OpenAPI v3 document. External refs are not
// followed.
func Parse(ctx context.Context, data []byte) (*openapi3.T, error) {
	if err := checkVersion(data, ""); err != nil {
		return nil, err
	}
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return nil, mapValidateOrParseErr(err, "")
	}
	return validated(ctx, doc, "")
}

func validated(ctx context.Context, doc *openapi3.T, location string) (*openapi3.T, error) {
	if err := doc.Validate(ctx); err != nil {
		if !canProceedDespiteValidation(err) {
			return nil, mapValidateOrParseErr(err, location)
		}
	}
	return doc, nil
}

// fetcher reads remote documents with a bounded number of attempts.
type fetcher struct {
	client   *http.Client
	attempts int
}

func newFetcher(settings Settings) *fetcher {
	return &fetcher{
		client:   &http.Client{Timeout: settings.HTTPTimeout},
		attempts: max(settings.MaxRetries, 1),
	}
}

// loader returns a kin-openapi loader whose external refs go through f.
// Local refs are only followed when the root document is a local file.
func (f *fetcher) loader(ctx context.Context, localRoot bool) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	loader.Context = ctx
	loader.ReadFromURIFunc = func(_ *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !localRoot {
				return nil, fmt.Errorf("blocked file ref: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(path)
		case "http", "https":
			return f.get(ctx, uri.String())
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

func checkVersion(raw []byte, location string) error {
	version, err := detectSpecVersion(raw)
	if err != nil {
		return &SpecError{Code: ParseError, Message: err.Error(), Location: location, Cause: err}
	}
	if version != 3 {
		return &SpecError{
			Code:     UnsupportedVersion,
			Message:  "spec: only OpenAPI 3.x documents are supported",
			Location: location,
		}
	}
	return nil
}

// detectSpecVersion returns 3 for OpenAPI v3, 2 for Swagger v2, else error.
func detectSpecVersion(data []byte) (int, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return 0, fmt.Errorf("parse spec: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return 3, nil
		}
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return 2, nil
		}
	}
	return 0, fmt.Errorf("spec: missing or unknown version (expected 'openapi: 3.x')")
}

func (f *fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	backoff := retryBackoff
	for i := 0; i < f.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		body, retry, err := fetchOnce(ctx, f.client, rawURL)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// fetchOnce performs one GET. retry reports whether the failure is transient.
func fetchOnce(ctx context.Context, client *http.Client, rawURL string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		body, err = io.ReadAll(resp.Body)
		return body, false, err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("transient http error %d", resp.StatusCode)
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return nil, false, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

func mapValidateOrParseErr(err error, location string) error {
	pointer := extractJSONPointer(err)
	code := ValidationError
	// Heuristics: some loader errors are parse errors.
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "parse") || strings.Contains(lower, "invalid character") {
		code = ParseError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	if me, ok := err.(openapi3.MultiError); ok {
		if len(me) > 0 {
			return extractJSONPointer(me[0])
		}
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}

// canProceedDespiteValidation returns true for validation errors where the
// document is still usable (e.g., unresolved $ref entries).
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref") || strings.Contains(s, "found unresolved ref")
}
