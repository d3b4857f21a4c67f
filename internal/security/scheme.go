// Package security evaluates declarative security requirements against
// caller-supplied credential handlers.
//
// A requirement list is an OR of groups and each group is an AND of named
// schemes. Groups run in order; the first group whose every scheme accepts
// wins and later groups are never attempted. Inside a group the first
// failing scheme ends the group.
package security

import (
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Source is the request view credentials are extracted from.
type Source interface {
	Header(name string) string
	Cookie(name string) (string, bool)
	QueryValue(name string) (string, bool)
}

// Type is the declared type of a security scheme.
type Type string

const (
	TypeHTTP          Type = "http"
	TypeAPIKey        Type = "apiKey"
	TypeOAuth2        Type = "oauth2"
	TypeOpenIDConnect Type = "openIdConnect"
)

// Location is where an API key is carried.
type Location string

const (
	InHeader Location = "header"
	InQuery  Location = "query"
	InCookie Location = "cookie"
)

// Scheme is one declared security scheme. The set of implementations is
// closed: HTTPScheme, APIKeyScheme, OAuth2Scheme, OpenIDConnectScheme.
type Scheme interface {
	Name() string
	Type() Type
	// Extract pulls the credential material out of src.
	Extract(src Source) (Credential, error)
}

// Credential is what a scheme handler receives.
type Credential struct {
	Scheme string // scheme name as declared in components
	Type   Type

	// http
	AuthScheme  string // scheme token as sent, e.g. "Bearer"
	Credentials string

	// apiKey
	APIKey string

	// Env is the ambient value the evaluator was configured with.
	Env any
}

// HTTPScheme reads "Authorization: <scheme> <credentials>".
type HTTPScheme struct {
	SchemeName string
	AuthScheme string // declared token, e.g. "bearer", "basic"
}

func (s HTTPScheme) Name() string { return s.SchemeName }
func (s HTTPScheme) Type() Type   { return TypeHTTP }

func (s HTTPScheme) Extract(src Source) (Credential, error) {
	header := src.Header("Authorization")
	if header == "" {
		return Credential{}, ErrCredentialMissing
	}
	token, credentials, _ := strings.Cut(header, " ")
	if !strings.EqualFold(token, s.AuthScheme) {
		return Credential{}, ErrSchemeMismatch
	}
	if credentials == "" {
		return Credential{}, ErrCredentialMissing
	}
	return Credential{
		Scheme:      s.SchemeName,
		Type:        TypeHTTP,
		AuthScheme:  token,
		Credentials: credentials,
	}, nil
}

// APIKeyScheme reads a key from a header, query parameter or cookie.
type APIKeyScheme struct {
	SchemeName string
	In         Location
	Carrier    string // header, parameter or cookie name
}

func (s APIKeyScheme) Name() string { return s.SchemeName }
func (s APIKeyScheme) Type() Type   { return TypeAPIKey }

func (s APIKeyScheme) Extract(src Source) (Credential, error) {
	var (
		key string
		ok  bool
	)
	switch s.In {
	case InHeader:
		key = src.Header(s.Carrier)
		ok = key != ""
	case InQuery:
		key, ok = src.QueryValue(s.Carrier)
	case InCookie:
		key, ok = src.Cookie(s.Carrier)
	default:
		return Credential{}, ErrUnsupportedScheme
	}
	if !ok || key == "" {
		return Credential{}, ErrCredentialMissing
	}
	return Credential{Scheme: s.SchemeName, Type: TypeAPIKey, APIKey: key}, nil
}

// OAuth2Scheme is recognized but never satisfied.
type OAuth2Scheme struct{ SchemeName string }

func (s OAuth2Scheme) Name() string { return s.SchemeName }
func (s OAuth2Scheme) Type() Type   { return TypeOAuth2 }
func (s OAuth2Scheme) Extract(Source) (Credential, error) {
	return Credential{}, ErrUnsupportedScheme
}

// OpenIDConnectScheme is recognized but never satisfied.
type OpenIDConnectScheme struct{ SchemeName string }

func (s OpenIDConnectScheme) Name() string { return s.SchemeName }
func (s OpenIDConnectScheme) Type() Type   { return TypeOpenIDConnect }
func (s OpenIDConnectScheme) Extract(Source) (Credential, error) {
	return Credential{}, ErrUnsupportedScheme
}

// unknownScheme stands for a declared scheme of an unrecognized type.
type unknownScheme struct {
	name string
	typ  Type
}

func (s unknownScheme) Name() string { return s.name }
func (s unknownScheme) Type() Type   { return s.typ }
func (s unknownScheme) Extract(Source) (Credential, error) {
	return Credential{}, ErrUnsupportedScheme
}

// SchemesFromComponents converts declared security schemes.
func SchemesFromComponents(defs openapi3.SecuritySchemes) map[string]Scheme {
	out := make(map[string]Scheme, len(defs))
	for name, ref := range defs {
		if ref == nil || ref.Value == nil {
			continue
		}
		out[name] = schemeFrom(name, ref.Value)
	}
	return out
}

func schemeFrom(name string, def *openapi3.SecurityScheme) Scheme {
	switch Type(def.Type) {
	case TypeHTTP:
		return HTTPScheme{SchemeName: name, AuthScheme: def.Scheme}
	case TypeAPIKey:
		carrier := def.Name
		if Location(def.In) == InHeader {
			carrier = http.CanonicalHeaderKey(carrier)
		}
		return APIKeyScheme{SchemeName: name, In: Location(def.In), Carrier: carrier}
	case TypeOAuth2:
		return OAuth2Scheme{SchemeName: name}
	case TypeOpenIDConnect:
		return OpenIDConnectScheme{SchemeName: name}
	}
	return unknownScheme{name: name, typ: Type(def.Type)}
}

// Requirement is one AND group of scheme names.
type Requirement []string

// Requirements converts a requirement list into ordered groups. Scheme
// names inside a group are sorted because the description format keeps no
// order for them.
func Requirements(list openapi3.SecurityRequirements) []Requirement {
	out := make([]Requirement, 0, len(list))
	for _, group := range list {
		names := make([]string, 0, len(group))
		for name := range group {
			names = append(names, name)
		}
		sort.Strings(names)
		out = append(out, Requirement(names))
	}
	return out
}
