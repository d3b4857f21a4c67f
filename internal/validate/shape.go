package validate

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/mark3labs/oasrouter/internal/schema"
)

const maxShapeDepth = 64

// shaper applies coercion, defaults and stripping to a value by walking the
// rendered schema tree alongside it. Input maps and slices are copied, never
// modified.
type shaper struct {
	defs map[string]any
}

func (s shaper) shape(node, v any, depth int) any {
	n, ok := node.(map[string]any)
	if !ok || depth > maxShapeDepth {
		return v
	}
	if ref, ok := n["$ref"].(string); ok {
		// draft-04: siblings of $ref do not apply.
		if name, ok := schema.DefinitionName(ref); ok {
			return s.shape(s.defs[name], v, depth+1)
		}
		return v
	}
	if all, ok := n["allOf"].([]any); ok {
		for _, sub := range all {
			v = s.shape(sub, v, depth+1)
		}
	}

	types := typesOf(n)
	v = coerce(types, v)

	switch val := v.(type) {
	case map[string]any:
		if len(types) > 0 && !contains(types, "object") {
			return v
		}
		return s.shapeObject(n, val, depth)
	case []any:
		if len(types) > 0 && !contains(types, "array") {
			return v
		}
		items, ok := n["items"]
		if !ok {
			return v
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.shape(items, item, depth+1)
		}
		return out
	}
	return v
}

func (s shaper) shapeObject(n map[string]any, val map[string]any, depth int) map[string]any {
	props, _ := n["properties"].(map[string]any)
	out := make(map[string]any, len(val))
	for k, item := range val {
		if sub, ok := props[k]; ok {
			out[k] = s.shape(sub, item, depth+1)
			continue
		}
		if closed, ok := n["additionalProperties"].(bool); ok && !closed {
			continue
		}
		out[k] = item
	}
	for k, sub := range props {
		if _, ok := out[k]; ok {
			continue
		}
		if def, ok := s.defaultOf(sub, depth+1); ok {
			out[k] = clone(def)
		}
	}
	return out
}

func (s shaper) defaultOf(node any, depth int) (any, bool) {
	n, ok := node.(map[string]any)
	if !ok || depth > maxShapeDepth {
		return nil, false
	}
	if ref, ok := n["$ref"].(string); ok {
		if name, ok := schema.DefinitionName(ref); ok {
			return s.defaultOf(s.defs[name], depth+1)
		}
		return nil, false
	}
	def, ok := n["default"]
	if !ok {
		return nil, false
	}
	return s.shape(n, def, depth), true
}

func typesOf(n map[string]any) []string {
	switch t := n["type"].(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// coerce converts v to the first declared type it can represent. Values
// that already match keep their value; numbers are normalized to int64 for
// integer schemas and float64 for number schemas.
func coerce(types []string, v any) any {
	if len(types) == 0 {
		return v
	}
	for _, t := range types {
		if out, ok := normalize(t, v); ok {
			return out
		}
	}
	for _, t := range types {
		if out, ok := convert(t, v); ok {
			return out
		}
	}
	return v
}

// normalize reports whether v already is of JSON type t.
func normalize(t string, v any) (any, bool) {
	switch t {
	case "string":
		_, ok := v.(string)
		return v, ok
	case "boolean":
		_, ok := v.(bool)
		return v, ok
	case "null":
		return v, v == nil
	case "object":
		_, ok := v.(map[string]any)
		return v, ok
	case "array":
		_, ok := v.([]any)
		return v, ok
	case "integer":
		f, ok := number(v)
		if !ok || f != math.Trunc(f) {
			return v, false
		}
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i, true
			}
		}
		if _, ok := v.(int64); ok {
			return v, true
		}
		if math.Abs(f) < 1<<53 {
			return int64(f), true
		}
		return v, true
	case "number":
		if n, ok := v.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				return f, true
			}
		}
		_, ok := number(v)
		return v, ok
	}
	return v, false
}

// convert attempts a lossless conversion of v to JSON type t. Leaf
// conversions go through cast; strings are matched against a plain decimal
// syntax first because cast also accepts base prefixes and loose booleans.
func convert(t string, v any) (any, bool) {
	switch t {
	case "integer":
		switch x := v.(type) {
		case string:
			if i, ok := decimalInt(x); ok {
				return i, true
			}
		case bool:
			if i, err := cast.ToInt64E(x); err == nil {
				return i, true
			}
		}
	case "number":
		switch x := v.(type) {
		case string:
			x = strings.TrimSpace(x)
			if !decimalFloatSyntax.MatchString(x) {
				break
			}
			if f, err := cast.ToFloat64E(x); err == nil && !math.IsInf(f, 0) {
				return f, true
			}
		case bool:
			if f, err := cast.ToFloat64E(x); err == nil {
				return f, true
			}
		}
	case "string":
		switch v.(type) {
		case json.Number, bool, int64, int, float64:
			if s, err := cast.ToStringE(v); err == nil {
				return s, true
			}
		}
	case "boolean":
		switch x := v.(type) {
		case string:
			if x == "true" || x == "false" {
				return cast.ToBool(x), true
			}
		case json.Number:
			if x == "1" || x == "0" {
				return x == "1", true
			}
		}
	case "null":
		if s, ok := v.(string); ok && s == "" {
			return nil, true
		}
	case "array":
		// A single query value for an array parameter.
		switch v.(type) {
		case nil, map[string]any, []any:
		default:
			return []any{v}, true
		}
	}
	return nil, false
}

var (
	decimalIntSyntax   = regexp.MustCompile(`^([+-]?)0*([0-9]+?)(\.0*)?$`)
	decimalFloatSyntax = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)
)

// decimalInt parses s as a base 10 integer, allowing leading zeros and a
// zero fraction ("010", "3.0").
func decimalInt(s string) (int64, bool) {
	m := decimalIntSyntax.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	i, err := cast.ToInt64E(m[1] + m[2])
	return i, err == nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = clone(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = clone(item)
		}
		return out
	}
	return v
}
