package spec

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// BuildOption configures how the API is built from an OpenAPI doc.
type BuildOption func(*buildConfig)

type buildConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		if len(tags) == 0 {
			return
		}
		if c.includeTags == nil {
			c.includeTags = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			c.includeTags[t] = struct{}{}
		}
	}
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		if len(tags) == 0 {
			return
		}
		if c.excludeTags == nil {
			c.excludeTags = make(map[string]struct{}, len(tags))
		}
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			c.excludeTags[t] = struct{}{}
		}
	}
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) BuildOption {
	return func(c *buildConfig) {
		if len(methods) == 0 {
			return
		}
		if c.methods == nil {
			c.methods = make(map[HttpMethod]struct{}, len(methods))
		}
		for _, m := range methods {
			c.methods[m] = struct{}{}
		}
	}
}

// BuildAPI converts an OpenAPI v3 document into the normalized API. Paths are
// visited in sorted order and methods in a fixed order so that two builds of
// the same document produce identical operation lists.
func BuildAPI(ctx context.Context, doc *openapi3.T, opts ...BuildOption) (*API, error) {
	_ = ctx
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}

	cfg := &buildConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	api := &API{Security: doc.Security}
	if doc.Info != nil {
		api.Title = safeStr(doc.Info.Title)
		api.Version = safeStr(doc.Info.Version)
	}
	if doc.Components != nil {
		api.Schemas = doc.Components.Schemas
		api.SecuritySchemes = doc.Components.SecuritySchemes
	}

	pathKeys := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	for _, p := range pathKeys {
		item := doc.Paths[p]
		if item == nil {
			continue
		}

		ops := []struct {
			m HttpMethod
			o *openapi3.Operation
		}{
			{GET, item.Get},
			{POST, item.Post},
			{PUT, item.Put},
			{DELETE, item.Delete},
			{PATCH, item.Patch},
			{HEAD, item.Head},
			{OPTIONS, item.Options},
			{TRACE, item.Trace},
		}

		for _, pair := range ops {
			if pair.o == nil {
				continue
			}
			if len(cfg.methods) > 0 {
				if _, ok := cfg.methods[pair.m]; !ok {
					continue
				}
			}

			tags := make([]string, 0, len(pair.o.Tags))
			for _, t := range pair.o.Tags {
				t = strings.TrimSpace(t)
				if t != "" {
					tags = append(tags, t)
				}
			}
			if !allowByTags(tags, cfg) {
				continue
			}

			op := Operation{
				ID:          string(pair.m) + " " + p,
				OperationID: safeStr(pair.o.OperationID),
				Method:      pair.m,
				Path:        p,
				Summary:     safeStr(pair.o.Summary),
				Tags:        tags,
				Parameters:  mergeParameters(item.Parameters, pair.o.Parameters),
				Security:    pair.o.Security,
			}
			if pair.o.RequestBody != nil {
				op.RequestBody = pair.o.RequestBody.Value
			}
			op.Responses = toResponses(pair.o.Responses)

			api.Operations = append(api.Operations, op)
		}
	}

	return api, nil
}

// mergeParameters returns path-level parameters overridden by operation-level
// ones with the same location and name. Declared order is kept: overrides
// take the slot of the parameter they replace.
func mergeParameters(base, own openapi3.Parameters) []*openapi3.Parameter {
	var out []*openapi3.Parameter
	index := make(map[string]int)
	add := func(refs openapi3.Parameters) {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			key := paramKey(ref.Value.In, ref.Value.Name)
			if i, ok := index[key]; ok {
				out[i] = ref.Value
				continue
			}
			index[key] = len(out)
			out = append(out, ref.Value)
		}
	}
	add(base)
	add(own)
	return out
}

func toResponses(responses openapi3.Responses) []Response {
	if len(responses) == 0 {
		return nil
	}
	// In kin-openapi v0.116, Responses is a map[string]*ResponseRef
	keys := make([]string, 0, len(responses))
	for k := range responses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Response, 0, len(keys))
	for _, code := range keys {
		ref := responses[code]
		if ref == nil || ref.Value == nil {
			continue
		}
		desc := ""
		if ref.Value.Description != nil {
			desc = *ref.Value.Description
		}
		out = append(out, Response{
			Status:      code,
			Description: desc,
			Content:     toMediaList(ref.Value.Content),
		})
	}
	return out
}

func allowByTags(tags []string, cfg *buildConfig) bool {
	if len(cfg.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := cfg.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := cfg.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

func paramKey(in, name string) string { return in + ":" + name }

func safeStr(s string) string { return strings.TrimSpace(s) }

func toMediaList(content openapi3.Content) []Media {
	if content == nil {
		return nil
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Media, 0, len(keys))
	for _, mime := range keys {
		mt := content[mime]
		if mt == nil {
			continue
		}
		out = append(out, Media{
			Mime:    mime,
			Schema:  mt.Schema,
			Example: exampleOf(mt),
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// exampleOf picks the media example, falling back to the first named example
// by key.
func exampleOf(mt *openapi3.MediaType) any {
	if mt.Example != nil {
		return mt.Example
	}
	if len(mt.Examples) == 0 {
		return nil
	}
	names := make([]string, 0, len(mt.Examples))
	for name := range mt.Examples {
		names = append(names, name)
	}
	sort.Strings(names)
	if ref := mt.Examples[names[0]]; ref != nil && ref.Value != nil {
		return ref.Value.Value
	}
	return nil
}
