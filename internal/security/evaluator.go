package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
)

// ErrUnauthorized is matched by every DeniedError.
var ErrUnauthorized = errors.New("security: unauthorized")

// Failure reasons. The first three are configuration defects; the rest are
// client credential failures.
var (
	ErrSchemeNotDeclared  = errors.New("security scheme not declared")
	ErrHandlerNotBound    = errors.New("no handler bound to security scheme")
	ErrUnsupportedScheme  = errors.New("unsupported security scheme type")
	ErrCredentialMissing  = errors.New("credential missing")
	ErrSchemeMismatch     = errors.New("authorization scheme mismatch")
	ErrCredentialRejected = errors.New("credential rejected")
)

// IsConfigDefect reports whether reason points at a setup problem rather
// than at the client.
func IsConfigDefect(reason error) bool {
	return errors.Is(reason, ErrSchemeNotDeclared) ||
		errors.Is(reason, ErrHandlerNotBound) ||
		errors.Is(reason, ErrUnsupportedScheme)
}

// Handler checks one credential. A nil principal rejects the credential, as
// does a non-nil error. Typed nils count as nil: (*User)(nil) rejects.
type Handler func(ctx context.Context, cred Credential) (principal any, err error)

// Handlers binds scheme names to handlers.
type Handlers map[string]Handler

// Principals maps scheme names of the winning group to their principals.
type Principals map[string]any

// GroupFailure records why a requirement group did not grant access.
type GroupFailure struct {
	Group  Requirement
	Scheme string // member that failed
	Reason error
}

// DeniedError is returned when no requirement group succeeds.
type DeniedError struct {
	Failures []GroupFailure
}

func (e *DeniedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("[%s] %s: %v", strings.Join(f.Group, " "), f.Scheme, f.Reason))
	}
	return "security: unauthorized: " + strings.Join(parts, "; ")
}

func (e *DeniedError) Is(target error) bool { return target == ErrUnauthorized }

// Evaluator decides whether a request satisfies a requirement list. It is
// read-only after construction and safe for concurrent use.
type Evaluator struct {
	schemes  map[string]Scheme
	handlers Handlers
	env      any
	logger   *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithEnv sets the ambient value copied into every Credential.
func WithEnv(env any) Option { return func(e *Evaluator) { e.env = env } }

// WithLogger sets the logger used for failure reporting.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEvaluator builds an evaluator over declared schemes and bound handlers.
func NewEvaluator(schemes map[string]Scheme, handlers Handlers, opts ...Option) *Evaluator {
	e := &Evaluator{
		schemes:  schemes,
		handlers: handlers,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate runs the requirement groups in order and returns the principals
// of the first group whose members all accept. An empty list passes with an
// empty map. When every group fails the error is a *DeniedError. A context
// error is returned as is.
func (e *Evaluator) Evaluate(ctx context.Context, reqs []Requirement, src Source) (Principals, error) {
	if len(reqs) == 0 {
		return Principals{}, nil
	}
	var failures []GroupFailure
	for i, group := range reqs {
		principals, failure, err := e.evaluateGroup(ctx, group, src)
		if err != nil {
			return nil, err
		}
		if failure == nil {
			return principals, nil
		}
		e.report(i, *failure)
		failures = append(failures, *failure)
	}
	return nil, &DeniedError{Failures: failures}
}

func (e *Evaluator) evaluateGroup(ctx context.Context, group Requirement, src Source) (Principals, *GroupFailure, error) {
	acc := make(Principals, len(group))
	fail := func(name string, reason error) (Principals, *GroupFailure, error) {
		return nil, &GroupFailure{Group: group, Scheme: name, Reason: reason}, nil
	}
	for _, name := range group {
		scheme, ok := e.schemes[name]
		if !ok {
			return fail(name, ErrSchemeNotDeclared)
		}
		handler, ok := e.handlers[name]
		if !ok || handler == nil {
			return fail(name, ErrHandlerNotBound)
		}
		cred, err := scheme.Extract(src)
		if err != nil {
			return fail(name, err)
		}
		cred.Env = e.env

		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		principal, err := handler(ctx, cred)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return nil, nil, ctxErr
			}
			return fail(name, fmt.Errorf("%w: %w", ErrCredentialRejected, err))
		}
		if isNil(principal) {
			return fail(name, ErrCredentialRejected)
		}
		acc[name] = principal
	}
	return acc, nil, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func (e *Evaluator) report(index int, f GroupFailure) {
	attrs := []any{
		slog.Int("group", index),
		slog.String("scheme", f.Scheme),
		slog.Any("reason", f.Reason),
	}
	if IsConfigDefect(f.Reason) {
		e.logger.Error("security requirement misconfigured", attrs...)
		return
	}
	e.logger.Debug("security requirement not met", attrs...)
}

// Audit lists configuration defects reachable from reqs: schemes that are
// referenced but not declared, declared but not bound to a handler, or of a
// type that can never be satisfied.
func (e *Evaluator) Audit(reqs []Requirement) []error {
	var out []error
	seen := make(map[string]bool)
	for _, group := range reqs {
		for _, name := range group {
			if seen[name] {
				continue
			}
			seen[name] = true
			scheme, ok := e.schemes[name]
			switch {
			case !ok:
				out = append(out, fmt.Errorf("%s: %w", name, ErrSchemeNotDeclared))
			case e.handlers[name] == nil:
				out = append(out, fmt.Errorf("%s: %w", name, ErrHandlerNotBound))
			default:
				switch scheme.(type) {
				case HTTPScheme, APIKeyScheme:
				default:
					out = append(out, fmt.Errorf("%s (%s): %w", name, scheme.Type(), ErrUnsupportedScheme))
				}
			}
		}
	}
	return out
}
