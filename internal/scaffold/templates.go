package scaffold

import "text/template"

type templateData struct {
	Package  string
	Module   string
	Title    string
	Version  string
	Handlers []Stub
	Schemes  []Stub
}

var handlersTmpl = template.Must(template.New("handlers.go").Parse(`// Scaffolded by oasrouter. Fill in the function bodies.

// Package {{.Package}} implements the operations of {{.Title}} {{.Version}}.
package {{.Package}}

import (
{{- if .Handlers}}
	"context"
{{end}}
	"{{.Module}}/internal/dispatch"
)

// Handlers binds every operationId to its implementation.
func Handlers() dispatch.Handlers {
	return dispatch.Handlers{
{{- range .Handlers}}
		{{printf "%q" .Name}}: dispatch.HandlerFunc({{.Func}}),
{{- end}}
	}
}
{{range .Handlers}}
// {{.Func}} serves {{.Method}} {{.Path}}{{if .Summary}}: {{.Summary}}{{end}}.
// Security: {{.Security}}.
func {{.Func}}(ctx context.Context, req *dispatch.Request) (dispatch.Result, error) {
	return dispatch.Result{StatusCode: {{.Status}}}, nil
}
{{end}}`))

var securityTmpl = template.Must(template.New("security.go").Parse(`// Scaffolded by oasrouter. Fill in the function bodies.

package {{.Package}}

import (
{{- if .Schemes}}
	"context"
{{end}}
	"{{.Module}}/internal/security"
)

// SecurityHandlers binds every declared security scheme to its check.
func SecurityHandlers() security.Handlers {
	return security.Handlers{
{{- range .Schemes}}
		{{printf "%q" .Name}}: {{.Func}},
{{- end}}
	}
}
{{range .Schemes}}
// {{.Func}} checks credentials of the {{.Type}} scheme {{.Name}}. Return a nil
// principal to reject them.
func {{.Func}}(ctx context.Context, cred security.Credential) (any, error) {
	return nil, nil
}
{{end}}`))

var readmeTmpl = template.Must(template.New("README.md").Parse(`# {{.Title}} {{.Version}}

Generated handler stubs for package ` + "`{{.Package}}`" + `.

    d, err := dispatch.New(api, {{.Package}}.Handlers(), {{.Package}}.SecurityHandlers())

| Method | Path | operationId | Function | Security |
|---|---|---|---|---|
{{- range .Handlers}}
| {{.Method}} | {{.Path}} | {{.Name}} | {{.Func}} | {{.Security}} |
{{- end}}
`))
