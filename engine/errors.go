/*
errors.go - Centralized error types for the incentive engine

PURPOSE:
  All engine error types in one place for consistency and discoverability.
  Downstream callers (HTTP layer, reconciliation jobs) branch on these
  with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Client errors  - invalid submissions (validation, duplicates)
  2. Conflict errors - concurrent shift mutation detected
  3. Store errors   - persistence failures surfaced from a Store

Downstream bonus-calculation failures (motivation rules, the monthly
pass, individual deposit updates during reallocation) are deliberately
NOT represented here as submission-failing errors: they are logged and
isolated, and the deposit creation still succeeds.

SEE ALSO:
  - orchestrator.go: where these are raised
  - api/handlers.go: HTTP status mapping
*/
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("invalid submission")

	// ErrDuplicateDeposit is returned when a matching deposit already
	// exists inside the trailing duplicate window. The submission is
	// rejected and no record is created.
	ErrDuplicateDeposit = errors.New("duplicate deposit")

	// ErrConcurrentModification is returned when the store detects a
	// conflicting mutation of the same shift's deposit set. Safe to retry.
	ErrConcurrentModification = errors.New("concurrent shift modification detected")

	// ErrDepositNotFound is returned by stores when updating a deposit
	// that does not exist.
	ErrDepositNotFound = errors.New("deposit not found")

	// ErrShiftNotFound is returned by stores for lookups of missing shifts.
	ErrShiftNotFound = errors.New("shift not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError is one field-level validation problem.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError aggregates field-level problems with a submission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "invalid submission: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// DuplicateDepositError identifies the duplicate that blocked a submission.
type DuplicateDepositError struct {
	ProcessorID   ProcessorID
	PayerIdentity string
	Amount        decimal.Decimal
	Currency      string
}

func (e *DuplicateDepositError) Error() string {
	return fmt.Sprintf("duplicate deposit: %s %s from %s already recorded for processor %s within the duplicate window",
		e.Amount, e.Currency, e.PayerIdentity, e.ProcessorID)
}

func (e *DuplicateDepositError) Unwrap() error { return ErrDuplicateDeposit }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is the submitter's fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrDuplicateDeposit)
}

// IsRetryable reports whether the operation might succeed if retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
