package dispatch

import "fmt"

// SetupErrorCode classifies failures of New.
type SetupErrorCode string

const (
	CompileError     SetupErrorCode = "CompileError"
	UnboundHandler   SetupErrorCode = "UnboundHandler"
	InvalidOperation SetupErrorCode = "InvalidOperation"
)

// SetupError aborts dispatcher construction.
type SetupError struct {
	Code      SetupErrorCode
	Operation string // spec.Operation.ID
	Message   string
	Cause     error
}

func (e *SetupError) Error() string {
	msg := string(e.Code)
	if e.Operation != "" {
		msg += " " + e.Operation
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *SetupError) Unwrap() error { return e.Cause }
