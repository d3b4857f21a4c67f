package spec

import "github.com/getkin/kin-openapi/openapi3"

// Normalized view of an API description used by the dispatcher and the CLI.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

// Upper returns the method in request-line form ("GET").
func (m HttpMethod) Upper() string {
	switch m {
	case GET:
		return "GET"
	case POST:
		return "POST"
	case PUT:
		return "PUT"
	case DELETE:
		return "DELETE"
	case PATCH:
		return "PATCH"
	case HEAD:
		return "HEAD"
	case OPTIONS:
		return "OPTIONS"
	case TRACE:
		return "TRACE"
	}
	return string(m)
}

// API is the read-only root the dispatcher is built from. Nothing in it is
// mutated once BuildAPI returns.
type API struct {
	Title   string
	Version string

	Operations []Operation

	// Security is the document-level default requirement list.
	Security openapi3.SecurityRequirements

	// Schemas and SecuritySchemes come from the components section.
	Schemas         openapi3.Schemas
	SecuritySchemes openapi3.SecuritySchemes
}

// Operation is one method bound to one path template.
type Operation struct {
	ID          string // method+path, unique within an API
	OperationID string
	Method      HttpMethod
	Path        string
	Summary     string
	Tags        []string

	// Parameters are path-level parameters merged with operation-level
	// ones, in declared order.
	Parameters  []*openapi3.Parameter
	RequestBody *openapi3.RequestBody
	Responses   []Response

	// Security is nil when the operation does not override the document
	// default. A non-nil empty list disables security for the operation.
	Security *openapi3.SecurityRequirements
}

// Response is one declared response key ("200", "default").
type Response struct {
	Status      string
	Description string
	Content     []Media
}

type Media struct {
	Mime   string
	Schema *openapi3.SchemaRef
	// Example holds a single example value if available. It may be nil.
	Example any
}

// ParametersIn returns the parameters declared for one location.
func (o *Operation) ParametersIn(in string) []*openapi3.Parameter {
	var out []*openapi3.Parameter
	for _, p := range o.Parameters {
		if p != nil && p.In == in {
			out = append(out, p)
		}
	}
	return out
}

// Response returns the declared response for status, or nil.
func (o *Operation) Response(status string) *Response {
	for i := range o.Responses {
		if o.Responses[i].Status == status {
			return &o.Responses[i]
		}
	}
	return nil
}

// Media returns the content entry for mime, or nil.
func (r *Response) Media(mime string) *Media {
	for i := range r.Content {
		if r.Content[i].Mime == mime {
			return &r.Content[i]
		}
	}
	return nil
}

// EffectiveSecurity resolves the operation's requirement list against the
// document default.
func (a *API) EffectiveSecurity(op *Operation) openapi3.SecurityRequirements {
	if op.Security != nil {
		return *op.Security
	}
	return a.Security
}
