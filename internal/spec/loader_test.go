package spec

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoad_BlocksFileURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := Load(ctx, "file:///etc/hosts")
	if err == nil {
		t.Fatalf("expected error for file:// URL")
	}
	var se *SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpecError, got %T", err)
	}
	if se.Code != InputError {
		t.Fatalf("expected InputError, got %v", se.Code)
	}
}

func TestLoad_UnsupportedScheme(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := Load(ctx, "ftp://example.com/spec.yaml")
	if err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
	var se *SpecError
	if !errors.As(err, &se) || se.Code != InputError {
		t.Fatalf("expected InputError, got %v (%T)", err, err)
	}
}

func TestLoad_NetworkError(t *testing.T) {
	t.Parallel()
	// Unused port to provoke a quick network failure.
	url := "http://127.0.0.1:1/spec.yaml"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Load(ctx, url, WithHTTPTimeout(200*time.Millisecond), WithMaxRetries(2))
	if err == nil {
		t.Fatalf("expected network error")
	}
	var se *SpecError
	if !errors.As(err, &se) || se.Code != NetworkError {
		t.Fatalf("expected NetworkError, got %v (%T)", err, err)
	}
}

func TestLoad_V3_InvalidSpec(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	content := strings.TrimSpace(`openapi: 3.0.0
info:
  title: Bad
  version: "1.0.0"
paths:
  "/pet":
    get:
      responses: {}
`) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx := context.Background()
	_, err := Load(ctx, path)
	if err == nil {
		t.Fatalf("expected validation error for incomplete responses")
	}
	var se *SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpecError, got %T", err)
	}
	if se.Code != ValidationError && se.Code != ParseError { // parser version differences
		t.Fatalf("expected ValidationError/ParseError, got %v", se.Code)
	}
	if se.Location == "" {
		t.Fatalf("expected location to be set")
	}
}

func TestLoad_V2_Rejected(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "swagger.yaml")
	content := strings.TrimSpace(`swagger: "2.0"
info:
  title: Sample
  version: "1.0.0"
paths:
  "/hello":
    get:
      responses:
        "200":
          description: ok
`) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Load(context.Background(), path)
	if err == nil {
		t.Fatalf("expected error for Swagger 2.0 input")
	}
	var se *SpecError
	if !errors.As(err, &se) || se.Code != UnsupportedVersion {
		t.Fatalf("expected UnsupportedVersion, got %v (%T)", err, err)
	}
}

func TestLoad_V3_Success(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "openapi.yaml")
	content := strings.TrimSpace(`openapi: 3.0.0
info:
  title: Sample
  version: "1.0.0"
paths:
  "/hello/{name}":
    get:
      operationId: hello
      parameters:
        - in: path
          name: name
          required: true
          schema: { type: string }
      responses:
        "200":
          description: ok
`) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		t.Fatalf("expected OpenAPI v3, got %q", doc.OpenAPI)
	}
	if doc.Paths["/hello/{name}"] == nil {
		t.Fatalf("expected /hello/{name} path")
	}
}

func TestLoad_HTTP(t *testing.T) {
	t.Parallel()
	body := "openapi: 3.0.0\ninfo: {title: Remote, version: '1'}\npaths: {}\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	doc, err := Load(context.Background(), srv.URL+"/openapi.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Info == nil || doc.Info.Title != "Remote" {
		t.Fatalf("unexpected info: %+v", doc.Info)
	}
}

func TestLoad_HTTPRetriesTransient(t *testing.T) {
	t.Parallel()
	body := "openapi: 3.0.0\ninfo: {title: Flaky, version: '1'}\npaths: {}\n"
	flaky := func(hits *atomic.Int32) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, body)
		}))
	}

	var hits atomic.Int32
	srv := flaky(&hits)
	defer srv.Close()
	doc, err := Load(context.Background(), srv.URL+"/openapi.yaml", WithMaxRetries(2))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Info.Title != "Flaky" || hits.Load() != 2 {
		t.Fatalf("title %q after %d requests", doc.Info.Title, hits.Load())
	}

	var once atomic.Int32
	srv2 := flaky(&once)
	defer srv2.Close()
	_, err = Load(context.Background(), srv2.URL+"/openapi.yaml", WithMaxRetries(1))
	var se *SpecError
	if !errors.As(err, &se) || se.Code != NetworkError {
		t.Fatalf("expected NetworkError, got %v (%T)", err, err)
	}
	if once.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", once.Load())
	}
}

func TestLoad_HTTPRefsFetchedOnce(t *testing.T) {
	t.Parallel()
	var rootHits, refHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		rootHits.Add(1)
		_, _ = io.WriteString(w, "openapi: 3.0.0\n"+
			"info: {title: Refs, version: '1'}\n"+
			"paths: {}\n"+
			"components:\n"+
			"  schemas:\n"+
			"    Pet: {$ref: 'schemas.yaml#/Pet'}\n")
	})
	mux.HandleFunc("/api/schemas.yaml", func(w http.ResponseWriter, r *http.Request) {
		refHits.Add(1)
		_, _ = io.WriteString(w, "Pet: {type: object}\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	doc, err := Load(context.Background(), srv.URL+"/api/openapi.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	pet := doc.Components.Schemas["Pet"]
	if pet == nil || pet.Value == nil || pet.Value.Type != "object" {
		t.Fatalf("ref not resolved: %+v", pet)
	}
	if rootHits.Load() != 1 || refHits.Load() == 0 {
		t.Fatalf("root fetched %d times, ref %d times", rootHits.Load(), refHits.Load())
	}
}

func TestLoad_LocalRefBlockedForRemoteRoot(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "openapi: 3.0.0\n"+
			"info: {title: Refs, version: '1'}\n"+
			"paths: {}\n"+
			"components:\n"+
			"  schemas:\n"+
			"    Pet: {$ref: 'file:///etc/passwd#/Pet'}\n")
	}))
	defer srv.Close()

	_, err := Load(context.Background(), srv.URL+"/openapi.yaml")
	if err == nil || !strings.Contains(err.Error(), "blocked file ref") {
		t.Fatalf("expected blocked file ref, got %v", err)
	}
}

func TestParse_MissingVersion(t *testing.T) {
	t.Parallel()
	_, err := Parse(context.Background(), []byte("info: {title: x}\n"))
	var se *SpecError
	if !errors.As(err, &se) || se.Code != ParseError {
		t.Fatalf("expected ParseError, got %v (%T)", err, err)
	}
}
