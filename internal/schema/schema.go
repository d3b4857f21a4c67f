// Package schema derives JSON Schema documents from an API description: one
// composite document per operation request and one per declared response
// content entry.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Kind tags the variant held by a Schema.
type Kind int

const (
	// KindAny accepts every value.
	KindAny Kind = iota
	// KindObject is an object built from named property schemas.
	KindObject
	// KindDeclared is a schema taken verbatim from the API description.
	KindDeclared
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindObject:
		return "object"
	case KindDeclared:
		return "declared"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Property is one named member of an object schema.
type Property struct {
	Name   string
	Schema *Schema
}

// Schema is a synthesized schema node. Only the fields of its Kind are set.
type Schema struct {
	Kind        Kind
	Description string

	// KindObject
	Properties []Property
	Required   []string
	Closed     bool // additionalProperties: false

	// KindDeclared
	Ref *openapi3.SchemaRef
}

// Any returns the always-valid open schema.
func Any() *Schema { return &Schema{Kind: KindAny} }

// Object returns an object schema. required lists property names that must
// be present; closed rejects properties that are not declared.
func Object(props []Property, required []string, closed bool) *Schema {
	return &Schema{Kind: KindObject, Properties: props, Required: required, Closed: closed}
}

// Declared wraps a schema from the API description. description is used
// when the declared schema has none of its own.
func Declared(ref *openapi3.SchemaRef, description string) *Schema {
	if ref == nil {
		return Any()
	}
	return &Schema{Kind: KindDeclared, Ref: ref, Description: description}
}

// MarshalJSON renders the node in OpenAPI schema dialect. Document.Tree
// converts the result to plain JSON Schema.
func (s *Schema) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindAny:
		if s.Description == "" {
			return []byte("{}"), nil
		}
		return json.Marshal(map[string]any{"description": s.Description})
	case KindObject:
		props := make(map[string]*Schema, len(s.Properties))
		for _, p := range s.Properties {
			props[p.Name] = p.Schema
		}
		out := map[string]any{
			"type":       "object",
			"properties": props,
		}
		// draft-04 forbids an empty required array
		if len(s.Required) > 0 {
			out["required"] = s.Required
		}
		if s.Closed {
			out["additionalProperties"] = false
		}
		if s.Description != "" {
			out["description"] = s.Description
		}
		return json.Marshal(out)
	case KindDeclared:
		raw, err := json.Marshal(s.Ref)
		if err != nil {
			return nil, err
		}
		if s.Description == "" {
			return raw, nil
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		if _, ok := m["description"]; !ok {
			m["description"] = s.Description
		}
		return json.Marshal(m)
	}
	return nil, fmt.Errorf("schema: unknown kind %v", s.Kind)
}
