/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers test for them with errors.Is / errors.As.

ERROR CATEGORIES:
  1. Identifier errors - Malformed ids during allocation or recovery
  2. Balance errors - Explicit negative balance
  3. Derived errors - History read before any prior computation
  4. Input errors - Bad amounts, action types, periods
  5. Lookup errors - Missing accounts, entries, products

PROPAGATION:
  Every error is a deterministic function of bad input. Nothing is retried,
  and a failed call leaves counters and balances exactly as they were.

SEE ALSO:
  - ids.go: InvalidIdentifierError
  - account.go: InvalidBalanceError
  - derived.go: ErrStaleHistory
*/
package generic

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidIdentifier is returned when an id's numeric suffix cannot be
	// parsed. The allocator counter is left unchanged.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrInvalidBalance is returned when an explicit balance is negative.
	ErrInvalidBalance = errors.New("invalid balance")

	// ErrStaleHistory is returned when a derived attribute's previous value
	// is read before any earlier computed value exists.
	ErrStaleHistory = errors.New("derived attribute has no history")

	// ErrInvalidAmount is returned for negative or unparsable amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidActionType is returned for an unknown borrow/lend action.
	ErrInvalidActionType = errors.New("invalid action type")

	ErrInvalidPeriod = errors.New("invalid period: must be at least one month")

	// ErrInvalidInput covers other malformed fields (names, rates, durations).
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownKind is returned when no allocator is registered for a kind.
	ErrUnknownKind = errors.New("unknown entity kind")

	// ErrAccountMismatch is returned when an entry is attached to an account
	// other than the one it references.
	ErrAccountMismatch = errors.New("entry belongs to another account")

	// ErrInconsistentState is returned when a derived attribute refuses to
	// recompute from a corrupted previous value.
	ErrInconsistentState = errors.New("inconsistent derived state")

	// ErrTransactionLimit is returned when a savings product already holds
	// the maximum number of transactions it accepts.
	ErrTransactionLimit = errors.New("savings transaction limit reached")

	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidIdentifierError names the id that failed to parse.
type InvalidIdentifierError struct {
	Kind Kind
	Raw  string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q for %s", e.Raw, e.Kind)
}

func (e *InvalidIdentifierError) Unwrap() error {
	return ErrInvalidIdentifier
}

// InvalidBalanceError carries the rejected value.
type InvalidBalanceError struct {
	AccountID ID
	Value     decimal.Decimal
}

func (e *InvalidBalanceError) Error() string {
	return fmt.Sprintf("account %s: balance %s is invalid", e.AccountID, e.Value)
}

func (e *InvalidBalanceError) Unwrap() error {
	return ErrInvalidBalance
}

// NotFoundError identifies what was looked up.
type NotFoundError struct {
	Kind Kind
	ID   ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidIdentifier) ||
		errors.Is(err, ErrInvalidBalance) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidActionType) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnknownKind) ||
		errors.Is(err, ErrAccountMismatch)
}

// IsConflict returns true if the request is valid but the current state
// does not allow it.
func IsConflict(err error) bool {
	return errors.Is(err, ErrTransactionLimit) ||
		errors.Is(err, ErrStaleHistory) ||
		errors.Is(err, ErrInconsistentState)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
