package schema

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/oasrouter/internal/spec"
)

// Members of the request composite.
const (
	MemberParams = "params"
	MemberQuery  = "query"
	MemberBody   = "body"
)

const jsonMime = "application/json"

// ForParameters builds a closed object schema from params, all of one
// location.
func ForParameters(params []*openapi3.Parameter) *Schema {
	var (
		props    []Property
		required []string
	)
	for _, p := range params {
		if p == nil {
			continue
		}
		props = append(props, Property{Name: p.Name, Schema: Declared(p.Schema, p.Description)})
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return Object(props, required, true)
}

// ForRequestBody returns the JSON content schema of rb, or the open schema
// when no JSON content is declared.
func ForRequestBody(rb *openapi3.RequestBody) *Schema {
	if rb == nil {
		return Any()
	}
	if mt := rb.Content[jsonMime]; mt != nil && mt.Schema != nil {
		return Declared(mt.Schema, "")
	}
	return Any()
}

// ForRequest builds the composite { params, query, body } document for op.
// components is the scope component references resolve against.
func ForRequest(op *spec.Operation, components openapi3.Schemas) *Document {
	root := Object([]Property{
		{Name: MemberParams, Schema: ForParameters(op.ParametersIn(openapi3.ParameterInPath))},
		{Name: MemberQuery, Schema: ForParameters(op.ParametersIn(openapi3.ParameterInQuery))},
		{Name: MemberBody, Schema: ForRequestBody(op.RequestBody)},
	}, nil, false)
	return &Document{
		Name:       documentName(op.ID, "request"),
		Root:       root,
		Components: components,
	}
}

// ResponseDocument is the schema for one (status, content type) pair.
type ResponseDocument struct {
	Status      string
	ContentType string
	Document    *Document
}

// ForResponses builds one document per declared response content entry
// that carries a schema.
func ForResponses(op *spec.Operation, components openapi3.Schemas) []ResponseDocument {
	var out []ResponseDocument
	for _, r := range op.Responses {
		for _, m := range r.Content {
			if m.Schema == nil {
				continue
			}
			out = append(out, ResponseDocument{
				Status:      r.Status,
				ContentType: m.Mime,
				Document: &Document{
					Name:       documentName(op.ID, "response", r.Status, m.Mime),
					Root:       Declared(m.Schema, ""),
					Components: components,
				},
			})
		}
	}
	return out
}

var nameReplacer = strings.NewReplacer("/", "_", " ", "_", "{", "", "}", "", "+", "_", ";", "_", "=", "_")

func documentName(parts ...string) string {
	return nameReplacer.Replace(strings.Join(parts, "."))
}
