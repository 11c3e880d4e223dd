package orderflow

import (
	"fmt"
)

// Command is an intent to change state. Commands validate themselves before
// dispatch and produce events when handled successfully.
type Command interface {
	// CommandType identifies the command, e.g. "CreateOrder".
	CommandType() string

	// Validate reports whether the command is well formed.
	Validate() error
}

// AggregateCommand is a command addressed to one aggregate instance.
// Creation commands return an empty AggregateID and let the handler
// assign one.
type AggregateCommand interface {
	Command
	AggregateID() string
}

// CommandBase carries the identity fields shared by all commands. Embed it
// in command structs; the With* builders return modified copies so command
// values stay immutable.
type CommandBase struct {
	CommandID     string `json:"commandId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	CausationID   string `json:"causationId,omitempty"`
}

// WithCommandID returns a copy with the command ID set.
func (c CommandBase) WithCommandID(id string) CommandBase {
	c.CommandID = id
	return c
}

// WithCorrelationID returns a copy with the correlation ID set.
func (c CommandBase) WithCorrelationID(id string) CommandBase {
	c.CorrelationID = id
	return c
}

// WithCausationID returns a copy with the causation ID set.
func (c CommandBase) WithCausationID(id string) CommandBase {
	c.CausationID = id
	return c
}

// GetCorrelationID returns the correlation ID.
func (c CommandBase) GetCorrelationID() string { return c.CorrelationID }

// GetCausationID returns the causation ID.
func (c CommandBase) GetCausationID() string { return c.CausationID }

// CommandResult is the outcome of one dispatched command. Domain rejections
// travel in Error with Success false; infrastructure failures surface as
// the dispatch error instead.
type CommandResult struct {
	Success bool

	// AggregateID of the affected aggregate. For creation commands this
	// is the newly assigned ID.
	AggregateID string

	// Version of the aggregate after the command was applied.
	Version int64

	// Data carries optional handler-specific result payload.
	Data interface{}

	// Error holds the failure when Success is false.
	Error error
}

// NewSuccessResult builds a successful result.
func NewSuccessResult(aggregateID string, version int64) CommandResult {
	return CommandResult{Success: true, AggregateID: aggregateID, Version: version}
}

// NewSuccessResultWithData builds a successful result with a payload.
func NewSuccessResultWithData(aggregateID string, version int64, data interface{}) CommandResult {
	return CommandResult{Success: true, AggregateID: aggregateID, Version: version, Data: data}
}

// NewErrorResult builds a failed result.
func NewErrorResult(err error) CommandResult {
	return CommandResult{Error: err}
}

// IsSuccess reports a successful, error-free result.
func (r CommandResult) IsSuccess() bool {
	return r.Success && r.Error == nil
}

// IsError reports a failed result.
func (r CommandResult) IsError() bool {
	return !r.IsSuccess()
}

// ValidationError is a single-field command validation failure. It matches
// ErrValidationFailed under errors.Is.
type ValidationError struct {
	CommandType string
	Field       string
	Message     string
	Cause       error
}

// NewValidationError creates a ValidationError for one field.
func NewValidationError(cmdType, field, message string) *ValidationError {
	return &ValidationError{CommandType: cmdType, Field: field, Message: message}
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("orderflow: validation failed for command %q field %q: %s",
			e.CommandType, e.Field, e.Message)
	}
	return fmt.Sprintf("orderflow: validation failed for command %q: %s",
		e.CommandType, e.Message)
}

// Is matches ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// MultiValidationError accumulates field-level failures so a command's
// Validate can report everything wrong at once.
type MultiValidationError struct {
	CommandType string
	Errors      []*ValidationError
}

// NewMultiValidationError creates an empty MultiValidationError.
func NewMultiValidationError(cmdType string) *MultiValidationError {
	return &MultiValidationError{CommandType: cmdType}
}

// AddField records a failure for one field.
func (e *MultiValidationError) AddField(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{
		CommandType: e.CommandType,
		Field:       field,
		Message:     message,
	})
}

// HasErrors reports whether any failures were recorded.
func (e *MultiValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Error returns the error message.
func (e *MultiValidationError) Error() string {
	return fmt.Sprintf("orderflow: validation failed for command %q: %d error(s)",
		e.CommandType, len(e.Errors))
}

// Is matches ErrValidationFailed.
func (e *MultiValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// Unwrap returns the first recorded failure.
func (e *MultiValidationError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0]
}
