// Package validate compiles synthesized schema documents into reusable
// validators.
//
// Compiled validators shape the candidate value before checking it: scalar
// values are coerced to the declared type (text "2" becomes int64 2 for an
// integer schema), declared defaults fill missing properties, and
// properties not declared by a closed object are removed. Every violation is
// reported, not only the first.
package validate

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mark3labs/oasrouter/internal/schema"
)

// Compiler turns schema documents into Validators. Identical documents are
// compiled once and share a Validator.
type Compiler struct {
	shared []resource

	mu    sync.Mutex
	cache map[string]*Validator
}

type resource struct {
	url string
	doc any
}

// NewCompiler returns a Compiler with the given shared documents registered.
// Each shared document is addressable by its "$id" (or draft-04 "id"); a
// document without one is registered as "shared-<n>.json". Documents may be
// raw JSON ([]byte, json.RawMessage, string) or decoded JSON values.
func NewCompiler(shared ...any) (*Compiler, error) {
	c := &Compiler{cache: make(map[string]*Validator)}
	for i, s := range shared {
		doc, err := decodeShared(s)
		if err != nil {
			return nil, fmt.Errorf("validate: shared schema %d: %w", i, err)
		}
		url := fmt.Sprintf("shared-%d.json", i)
		if m, ok := doc.(map[string]any); ok {
			if id, ok := m["$id"].(string); ok && id != "" {
				url = id
			} else if id, ok := m["id"].(string); ok && id != "" {
				url = id
			}
		}
		c.shared = append(c.shared, resource{url: url, doc: doc})
	}
	return c, nil
}

func decodeShared(v any) (any, error) {
	var raw []byte
	switch t := v.(type) {
	case []byte:
		raw = t
	case json.RawMessage:
		raw = t
	case string:
		raw = []byte(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}

// Compile compiles doc. A malformed document is an error; callers treat it
// as fatal at setup time.
func (c *Compiler) Compile(doc *schema.Document) (*Validator, error) {
	canonical, err := doc.JSON()
	if err != nil {
		return nil, fmt.Errorf("validate: encode %s: %w", doc.Name, err)
	}
	sum := sha256.Sum256(canonical)
	key := hex.EncodeToString(sum[:])

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cache[key]; ok {
		return v, nil
	}

	// Decode again so the compiler and the shaper see json.Number values.
	root, err := jsonschema.UnmarshalJSON(bytes.NewReader(canonical))
	if err != nil {
		return nil, fmt.Errorf("validate: decode %s: %w", doc.Name, err)
	}
	tree, ok := root.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("validate: %s is not a schema object", doc.Name)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft4)
	compiler.AssertFormat()
	for _, f := range openAPIFormats {
		compiler.RegisterFormat(f)
	}
	for _, r := range c.shared {
		if err := compiler.AddResource(r.url, r.doc); err != nil {
			return nil, fmt.Errorf("validate: add shared schema %s: %w", r.url, err)
		}
	}

	url := resourceURL(doc.Name, key)
	if err := compiler.AddResource(url, root); err != nil {
		return nil, fmt.Errorf("validate: add %s: %w", doc.Name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("validate: compile %s: %w", doc.Name, err)
	}

	defs, _ := tree[schema.DefinitionsKey].(map[string]any)
	v := &Validator{
		name:   doc.Name,
		schema: compiled,
		shaper: shaper{defs: defs},
		root:   tree,
	}
	c.cache[key] = v
	return v, nil
}

func resourceURL(name, key string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
	return name + "-" + key[:12] + ".json"
}
