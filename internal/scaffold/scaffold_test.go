package scaffold

import (
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/oasrouter/internal/spec"
)

func minimalAPI() *spec.API {
	return &spec.API{
		Title:   "Sample API",
		Version: "1.0.0",
		Operations: []spec.Operation{
			{ID: "get /hello", OperationID: "get-hello", Method: spec.GET, Path: "/hello", Summary: "Say\nhello",
				Responses: []spec.Response{{Status: "202"}, {Status: "200"}}},
			{ID: "get /users/{id}", OperationID: "getUserById", Method: spec.GET, Path: "/users/{id}"},
			{ID: "post /handlers", OperationID: "handlers", Method: spec.POST, Path: "/handlers"},
			{ID: "delete /hello", Method: spec.DELETE, Path: "/hello"},
		},
		Security: openapi3.SecurityRequirements{{"Bearer": {}}, {"Key": {}, "Bearer": {}}},
		SecuritySchemes: openapi3.SecuritySchemes{
			"Bearer": {Value: openapi3.NewJWTSecurityScheme()},
			"Key":    {Value: openapi3.NewSecurityScheme().WithType("apiKey").WithIn("header").WithName("X-Key")},
		},
	}
}

func TestEmit_DryRun_Plan(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	res, err := Emit(context.Background(), minimalAPI(), Options{OutDir: dir, DryRun: true})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if res.Package != "sampleapi" {
		t.Fatalf("package = %q", res.Package)
	}
	want := []string{"README.md", "handlers.go", "security.go"}
	if len(res.Planned) != len(want) {
		t.Fatalf("planned %d files, want %d", len(res.Planned), len(want))
	}
	for i, p := range want {
		if res.Planned[i].RelPath != p {
			t.Fatalf("planned[%d] = %s, want %s", i, res.Planned[i].RelPath, p)
		}
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Fatalf("expected no files written on dry-run")
	}

	funcs := map[string]string{}
	for _, h := range res.Handlers {
		funcs[h.Name] = h.Func
	}
	if funcs["get-hello"] != "GetHello" || funcs["getUserById"] != "GetUserByID" || funcs["handlers"] != "Handlers2" {
		t.Fatalf("unexpected function names: %v", funcs)
	}
	if len(res.Handlers) != 3 {
		t.Fatalf("operations without operationId must be skipped: %d", len(res.Handlers))
	}
	if res.Handlers[0].Status != 200 || res.Handlers[1].Status != 200 {
		t.Fatalf("unexpected statuses: %+v", res.Handlers)
	}
	if res.Handlers[0].Security != "Bearer OR Bearer AND Key" {
		t.Fatalf("security = %q", res.Handlers[0].Security)
	}
	if len(res.Schemes) != 2 || res.Schemes[0].Func != "CheckBearer" || res.Schemes[1].Func != "CheckKey" {
		t.Fatalf("unexpected scheme stubs: %+v", res.Schemes)
	}
}

func TestEmit_WriteAndParse(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_, err := Emit(context.Background(), minimalAPI(), Options{
		OutDir:  dir,
		Package: "app",
		Module:  "example.com/svc",
		Force:   true,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}

	fset := token.NewFileSet()
	for _, name := range []string{"handlers.go", "security.go"} {
		src, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		f, err := parser.ParseFile(fset, name, src, parser.ParseComments)
		if err != nil {
			t.Fatalf("%s does not parse: %v\n%s", name, err, src)
		}
		if f.Name.Name != "app" {
			t.Fatalf("%s package = %s", name, f.Name.Name)
		}
		if !strings.Contains(string(src), "example.com/svc/internal/") {
			t.Fatalf("%s missing module import: %s", name, src)
		}
	}

	handlers, _ := os.ReadFile(filepath.Join(dir, "handlers.go"))
	for _, want := range []string{
		"dispatch.HandlerFunc(GetHello)",
		"func GetUserByID(ctx context.Context, req *dispatch.Request) (dispatch.Result, error)",
		"// GetHello serves GET /hello: Say hello.",
	} {
		if !strings.Contains(string(handlers), want) {
			t.Fatalf("handlers.go missing %q:\n%s", want, handlers)
		}
	}

	readme, _ := os.ReadFile(filepath.Join(dir, "README.md"))
	if !strings.Contains(string(readme), "| GET | /users/{id} | getUserById | GetUserByID | Bearer OR Bearer AND Key |") {
		t.Fatalf("README.md missing route row:\n%s", readme)
	}
}

func TestEmit_NoForce_NonEmptyDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}
	if _, err := Emit(context.Background(), minimalAPI(), Options{OutDir: dir}); err == nil {
		t.Fatalf("expected error on non-empty dir without force")
	}
}

func TestEmit_NoSchemes(t *testing.T) {
	t.Parallel()
	api := minimalAPI()
	api.SecuritySchemes = nil
	api.Security = nil
	dir := t.TempDir()
	if _, err := Emit(context.Background(), api, Options{OutDir: dir, Package: "func"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	src, err := os.ReadFile(filepath.Join(dir, "security.go"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(src), `"context"`) {
		t.Fatalf("unused context import:\n%s", src)
	}
	if !strings.Contains(string(src), "package funcapi") {
		t.Fatalf("keyword package names must be adjusted:\n%s", src)
	}
}
