package validate

import (
	"sort"

	"github.com/mark3labs/oasrouter/internal/schema"
	"github.com/mark3labs/oasrouter/internal/spec"
)

// ResponseKey addresses one declared response content entry.
type ResponseKey struct {
	Operation   string // spec.Operation.ID
	Status      string
	ContentType string
}

// Registry holds the validators of an API: one per operation request and
// one per (operation, status, content type) with a declared schema. It is
// filled once by Build and read-only afterwards.
type Registry struct {
	requests  map[string]*Validator
	responses map[ResponseKey]*Validator
}

// Build compiles every request and response document of ops. The first
// compile failure aborts the build.
func Build(c *Compiler, api *spec.API, ops []spec.Operation) (*Registry, error) {
	r := &Registry{
		requests:  make(map[string]*Validator, len(ops)),
		responses: make(map[ResponseKey]*Validator),
	}
	for i := range ops {
		op := &ops[i]
		v, err := c.Compile(schema.ForRequest(op, api.Schemas))
		if err != nil {
			return nil, err
		}
		r.requests[op.ID] = v

		for _, rd := range schema.ForResponses(op, api.Schemas) {
			v, err := c.Compile(rd.Document)
			if err != nil {
				return nil, err
			}
			r.responses[ResponseKey{Operation: op.ID, Status: rd.Status, ContentType: rd.ContentType}] = v
		}
	}
	return r, nil
}

// Request returns the request validator of an operation, or nil.
func (r *Registry) Request(operation string) *Validator {
	return r.requests[operation]
}

// Response returns the validator of a response content entry, or nil when
// the entry declares no schema.
func (r *Registry) Response(operation, status, contentType string) *Validator {
	return r.responses[ResponseKey{Operation: operation, Status: status, ContentType: contentType}]
}

// Names lists the distinct compiled validators by the name of the first
// document each was compiled from, sorted.
func (r *Registry) Names() []string {
	seen := make(map[*Validator]struct{})
	var names []string
	add := func(v *Validator) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		names = append(names, v.Name())
	}
	for _, v := range r.requests {
		add(v)
	}
	for _, v := range r.responses {
		add(v)
	}
	sort.Strings(names)
	return names
}
