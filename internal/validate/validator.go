package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalid is matched by every validation failure.
var ErrInvalid = errors.New("validate: value does not match schema")

// ValidationError reports why a value failed a Validator.
type ValidationError struct {
	Schema string
	// Violations holds one entry per failed leaf, "<location>: <message>".
	Violations []string
	Cause      error
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("validate %s: %v", e.Schema, e.Cause)
	}
	return fmt.Sprintf("validate %s: %s", e.Schema, strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// Validator is a compiled, immutable schema. It is safe for concurrent use.
type Validator struct {
	name   string
	schema *jsonschema.Schema
	shaper shaper
	root   map[string]any
}

// Name identifies the document the validator was compiled from.
func (v *Validator) Name() string { return v.name }

// Validate shapes value and checks the result. It returns the shaped value,
// which callers hand on instead of the original. value is not modified.
func (v *Validator) Validate(value any) (any, error) {
	// Work on a plain-data copy: structs, typed maps and slices become
	// decoded JSON values, numbers become json.Number.
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, &ValidationError{Schema: v.name, Cause: fmt.Errorf("encode: %w", err)}
	}
	plain, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, &ValidationError{Schema: v.name, Cause: fmt.Errorf("decode: %w", err)}
	}
	shaped := v.shaper.shape(v.root, plain, 0)
	if err := v.schema.Validate(shaped); err != nil {
		return nil, newValidationError(v.name, err)
	}
	return shaped, nil
}

func newValidationError(name string, err error) *ValidationError {
	out := &ValidationError{Schema: name, Cause: err}
	var verr *jsonschema.ValidationError
	if errors.As(err, &verr) {
		collect(verr, &out.Violations)
	}
	return out
}

func collect(verr *jsonschema.ValidationError, into *[]string) {
	if len(verr.Causes) == 0 {
		*into = append(*into, "/"+strings.Join(verr.InstanceLocation, "/")+": "+verr.Error())
		return
	}
	for _, cause := range verr.Causes {
		collect(cause, into)
	}
}
