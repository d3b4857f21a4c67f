package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

const (
	componentPrefix  = "#/components/schemas/"
	definitionPrefix = "#/definitions/"

	// DefinitionsKey holds the component schemas inside a rendered document.
	DefinitionsKey = "definitions"
)

// Document is a standalone schema plus the component scope its references
// resolve against.
type Document struct {
	Name       string
	Root       *Schema
	Components openapi3.Schemas
}

// Tree renders the document as a draft-04 JSON Schema value. Component
// schemas are embedded under "definitions", references to them are
// rewritten accordingly, and OpenAPI "nullable" is folded into "type".
// Numbers are kept as json.Number.
func (d *Document) Tree() (map[string]any, error) {
	root, err := toTree(d.Root)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", d.Name, err)
	}
	out, ok := root.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema %s: root is %T, not an object", d.Name, root)
	}
	// draft-04 ignores keywords next to $ref; keep definitions reachable
	// by moving a root reference under allOf.
	if ref, ok := out["$ref"]; ok {
		delete(out, "$ref")
		out["allOf"] = []any{map[string]any{"$ref": ref}}
	}

	if len(d.Components) > 0 {
		names := make([]string, 0, len(d.Components))
		for name := range d.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		defs := make(map[string]any, len(names))
		for _, name := range names {
			ref := d.Components[name]
			if ref == nil {
				continue
			}
			v, err := toTree(ref)
			if err != nil {
				return nil, fmt.Errorf("schema %s: component %s: %w", d.Name, name, err)
			}
			defs[name] = v
		}
		out[DefinitionsKey] = defs
	}

	convert(out)
	return out, nil
}

// JSON returns the canonical encoding of Tree. Map keys are sorted, so equal
// documents encode to equal bytes.
func (d *Document) JSON() ([]byte, error) {
	tree, err := d.Tree()
	if err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

func toTree(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// convert rewrites the OpenAPI dialect in place.
func convert(node any) {
	switch n := node.(type) {
	case map[string]any:
		if ref, ok := n["$ref"].(string); ok && strings.HasPrefix(ref, componentPrefix) {
			n["$ref"] = definitionPrefix + strings.TrimPrefix(ref, componentPrefix)
		}
		if nullable, ok := n["nullable"].(bool); ok {
			delete(n, "nullable")
			if t, ok := n["type"].(string); ok && nullable {
				n["type"] = []any{t, "null"}
			}
		}
		for _, v := range n {
			convert(v)
		}
	case []any:
		for _, v := range n {
			convert(v)
		}
	}
}

// DefinitionName returns the component name a rewritten reference points
// at.
func DefinitionName(ref string) (string, bool) {
	if !strings.HasPrefix(ref, definitionPrefix) {
		return "", false
	}
	return strings.TrimPrefix(ref, definitionPrefix), true
}
