package order

import (
	"errors"
	"fmt"
)

// Sentinel errors for the order domain. Use errors.Is() to classify
// failures; the typed errors below carry the details.
var (
	// ErrValidation indicates malformed input, rejected before any event is emitted.
	ErrValidation = errors.New("order: validation failed")

	// ErrBusinessRule indicates well-formed input that violates a domain rule.
	ErrBusinessRule = errors.New("order: business rule violated")

	// ErrInvalidStatusTransition indicates a state machine violation.
	ErrInvalidStatusTransition = errors.New("order: invalid status transition")

	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
)

// ValidationError reports malformed input on a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("order: invalid %s: %s", e.Field, e.Message)
}

// Is reports whether this error matches the target error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// BusinessRuleError reports input that is well formed but violates a
// domain rule, such as the item count or total amount limits.
type BusinessRuleError struct {
	Rule    string
	Message string
}

// Error returns the error message.
func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("order: rule %s violated: %s", e.Rule, e.Message)
}

// Is reports whether this error matches the target error.
func (e *BusinessRuleError) Is(target error) bool {
	return target == ErrBusinessRule
}

// NewBusinessRuleError creates a new BusinessRuleError.
func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}

// InvalidStatusTransitionError reports a transition not present in the
// status transition table.
type InvalidStatusTransitionError struct {
	From Status
	To   Status
}

// Error returns the error message.
func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("order: cannot transition from %s to %s", e.From, e.To)
}

// Is reports whether this error matches the target error.
func (e *InvalidStatusTransitionError) Is(target error) bool {
	return target == ErrInvalidStatusTransition
}

// NewInvalidStatusTransitionError creates a new InvalidStatusTransitionError.
func NewInvalidStatusTransitionError(from, to Status) *InvalidStatusTransitionError {
	return &InvalidStatusTransitionError{From: from, To: to}
}

// CurrencyMismatchError reports an operation mixing two currencies.
type CurrencyMismatchError struct {
	Left  string
	Right string
}

// Error returns the error message.
func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("order: currency mismatch: %s vs %s", e.Left, e.Right)
}

// Is reports whether this error matches the target error.
func (e *CurrencyMismatchError) Is(target error) bool {
	return target == ErrValidation
}

// NewCurrencyMismatchError creates a new CurrencyMismatchError.
func NewCurrencyMismatchError(left, right string) *CurrencyMismatchError {
	return &CurrencyMismatchError{Left: left, Right: right}
}
