// Package mock provides description-backed handlers for serving an API
// before it is implemented.
package mock

import (
	"context"
	"sort"
	"strconv"

	"github.com/mark3labs/oasrouter/internal/dispatch"
	"github.com/mark3labs/oasrouter/internal/security"
	"github.com/mark3labs/oasrouter/internal/spec"
)

const jsonMime = "application/json"

// Handlers returns an example-backed handler for every operation with an
// operationId.
func Handlers(api *spec.API) dispatch.Handlers {
	out := make(dispatch.Handlers, len(api.Operations))
	for i := range api.Operations {
		op := &api.Operations[i]
		if op.OperationID == "" {
			continue
		}
		res := Canned(op)
		out[op.OperationID] = dispatch.HandlerFunc(func(context.Context, *dispatch.Request) (dispatch.Result, error) {
			return res, nil
		})
	}
	return out
}

// Canned picks the lowest declared 2xx response of op, falling back to
// "default" answered as 200. Content is the JSON example of that response,
// nil when none is declared.
func Canned(op *spec.Operation) dispatch.Result {
	var codes []int
	for _, r := range op.Responses {
		if n, err := strconv.Atoi(r.Status); err == nil && n >= 200 && n < 300 {
			codes = append(codes, n)
		}
	}
	sort.Ints(codes)

	status, key := 200, "default"
	if len(codes) > 0 {
		status, key = codes[0], strconv.Itoa(codes[0])
	}
	resp := op.Response(key)
	if resp == nil {
		return dispatch.Result{StatusCode: status}
	}
	res := dispatch.Result{StatusCode: status}
	if m := resp.Media(jsonMime); m != nil {
		res.Content = m.Example
	}
	return res
}

// Credentials maps scheme name to accepted credential to principal. For
// http schemes the credential is the text after the auth scheme token, for
// apiKey schemes it is the key.
type Credentials map[string]map[string]any

// SecurityHandlers binds a lookup handler to every declared scheme that has
// an entry in creds. Unknown credentials are rejected.
func SecurityHandlers(api *spec.API, creds Credentials) security.Handlers {
	out := make(security.Handlers)
	for name := range api.SecuritySchemes {
		accepted, ok := creds[name]
		if !ok {
			continue
		}
		out[name] = func(_ context.Context, c security.Credential) (any, error) {
			key := c.Credentials
			if c.Type == security.TypeAPIKey {
				key = c.APIKey
			}
			principal, ok := accepted[key]
			if !ok {
				return nil, nil
			}
			if principal == nil {
				return map[string]any{"credential": key}, nil
			}
			return principal, nil
		}
	}
	return out
}
