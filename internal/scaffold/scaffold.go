// Package scaffold renders a Go package of handler stubs, one per operation
// and one per security scheme, ready to be passed to dispatch.New.
package scaffold

import (
	"bytes"
	"context"
	"fmt"
	"go/format"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/oasrouter/internal/spec"
)

// DefaultModule is the import root of the dispatch and security packages.
const DefaultModule = "github.com/mark3labs/oasrouter"

// Options controls how a scaffold is rendered.
type Options struct {
	OutDir  string // required; target directory
	Package string // Go package name; derived from the API title when empty
	Module  string // import root for dispatch/security; DefaultModule when empty
	Force   bool   // overwrite existing files
	DryRun  bool   // don't write, only plan
}

// PlannedFile describes a file Emit intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files and the resolved package name.
type Result struct {
	Package  string
	Planned  []PlannedFile
	Handlers []Stub
	Schemes  []Stub
}

// Stub pairs a declared name with the Go function generated for it.
type Stub struct {
	Name     string // operationId or scheme name
	Func     string
	Method   string
	Path     string
	Summary  string
	Status   int    // handlers: lowest declared 2xx, else 200
	Type     string // schemes: declared type
	Security string // handlers: effective requirement, rendered
}

// Emit renders the scaffold for api.
func Emit(ctx context.Context, api *spec.API, opts Options) (*Result, error) {
	_ = ctx
	if api == nil {
		return nil, fmt.Errorf("scaffold: nil API")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("scaffold: OutDir is required")
	}
	pkg := sanitizePackage(opts.Package)
	if pkg == "" {
		pkg = sanitizePackage(api.Title)
		if pkg == "" {
			pkg = "handlers"
		}
	}
	module := strings.TrimSpace(opts.Module)
	if module == "" {
		module = DefaultModule
	}

	data := templateData{
		Package:  pkg,
		Module:   module,
		Title:    api.Title,
		Version:  api.Version,
	}
	// Generated functions share one namespace with the two binders.
	used := map[string]int{"Handlers": 1, "SecurityHandlers": 1}
	data.Handlers = handlerStubs(api, used)
	data.Schemes = schemeStubs(api, used)

	files := map[string][]byte{}
	for name, tmpl := range map[string]*template.Template{
		"handlers.go": handlersTmpl,
		"security.go": securityTmpl,
	} {
		src, err := render(tmpl, data)
		if err != nil {
			return nil, fmt.Errorf("scaffold: %s: %w", name, err)
		}
		files[name] = src
	}
	readme, err := renderText(readmeTmpl, data)
	if err != nil {
		return nil, fmt.Errorf("scaffold: README.md: %w", err)
	}
	files["README.md"] = readme

	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, filepath.ToSlash(p))
	}
	sort.Strings(rels)
	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(files[rel]), Mode: 0o644})
	}

	if !opts.DryRun {
		if err := writeFiles(opts.OutDir, files, opts.Force); err != nil {
			return nil, err
		}
	}
	return &Result{Package: pkg, Planned: planned, Handlers: data.Handlers, Schemes: data.Schemes}, nil
}

func render(t *template.Template, data templateData) ([]byte, error) {
	raw, err := renderText(t, data)
	if err != nil {
		return nil, err
	}
	src, err := format.Source(raw)
	if err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}
	return src, nil
}

func renderText(t *template.Template, data templateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func handlerStubs(api *spec.API, used map[string]int) []Stub {
	var out []Stub
	for i := range api.Operations {
		op := &api.Operations[i]
		if op.OperationID == "" {
			continue
		}
		out = append(out, Stub{
			Name:     op.OperationID,
			Func:     unique(exportedName(op.OperationID), used),
			Method:   op.Method.Upper(),
			Path:     op.Path,
			Summary:  oneLine(op.Summary),
			Status:   successStatus(op),
			Security: renderSecurity(api.EffectiveSecurity(op)),
		})
	}
	return out
}

func schemeStubs(api *spec.API, used map[string]int) []Stub {
	names := make([]string, 0, len(api.SecuritySchemes))
	for name := range api.SecuritySchemes {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Stub, 0, len(names))
	for _, name := range names {
		typ := ""
		if ref := api.SecuritySchemes[name]; ref != nil && ref.Value != nil {
			typ = ref.Value.Type
		}
		out = append(out, Stub{
			Name: name,
			Func: unique("Check"+exportedName(name), used),
			Type: typ,
		})
	}
	return out
}

func successStatus(op *spec.Operation) int {
	best := 0
	for _, r := range op.Responses {
		var n int
		if _, err := fmt.Sscanf(r.Status, "%d", &n); err != nil || n < 200 || n > 299 {
			continue
		}
		if best == 0 || n < best {
			best = n
		}
	}
	if best == 0 {
		return 200
	}
	return best
}

func renderSecurity(reqs openapi3.SecurityRequirements) string {
	if len(reqs) == 0 {
		return "none"
	}
	groups := make([]string, 0, len(reqs))
	for _, group := range reqs {
		names := make([]string, 0, len(group))
		for name := range group {
			names = append(names, name)
		}
		sort.Strings(names)
		groups = append(groups, strings.Join(names, " AND "))
	}
	return strings.Join(groups, " OR ")
}

// exportedName turns an identifier like "get-user_by.id" into "GetUserByID".
func exportedName(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	out := b.String()
	if strings.HasSuffix(out, "Id") {
		out = strings.TrimSuffix(out, "Id") + "ID"
	}
	if out == "" || unicode.IsDigit([]rune(out)[0]) {
		out = "Op" + out
	}
	return out
}

func unique(name string, used map[string]int) string {
	used[name]++
	if n := used[name]; n > 1 {
		return fmt.Sprintf("%s%d", name, n)
	}
	return name
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sanitizePackage(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	b := strings.Builder{}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	for out != "" && out[0] >= '0' && out[0] <= '9' {
		out = out[1:]
	}
	if token.IsKeyword(out) {
		out += "api"
	}
	return out
}

func writeFiles(outDir string, files map[string][]byte, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	if st, err := os.Stat(abs); err == nil && st.IsDir() && !force {
		entries, rerr := os.ReadDir(abs)
		if rerr == nil && len(entries) > 0 {
			return fmt.Errorf("scaffold: output directory %q is not empty (use --force to overwrite)", abs)
		}
	}
	for rel, content := range files {
		p := filepath.Join(abs, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		// atomic write via temp file + rename
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := os.WriteFile(tmp, content, 0o644); err != nil {
			return fmt.Errorf("write temp %s: %w", rel, err)
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", rel, err)
		}
	}
	return nil
}
