package contract

import (
	"errors"
	"fmt"
)

var (
	ErrGateway         = errors.New("reasoning gateway failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrValidation      = errors.New("validation failed")
	ErrPromptMissing   = errors.New("required prompt is missing")
)

// ToolExecutionError reports that a concrete tool failed. It is absorbed
// into the run's scratchpad as data and never aborts the run. Expected
// "no data found" outcomes are normal tool text, not this error.
type ToolExecutionError struct {
	Tool    string
	Message string
}

func (e *ToolExecutionError) Error() string {
	return e.Message
}

// NewToolExecutionError builds a tool failure with a human-readable message.
func NewToolExecutionError(tool, format string, args ...any) *ToolExecutionError {
	return &ToolExecutionError{Tool: tool, Message: fmt.Sprintf(format, args...)}
}
