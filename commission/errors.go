/*
errors.go - Centralized error types for the commission engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The surrounding service layer maps these onto its uniform external
  error shape; this package only guarantees stable sentinel identity
  and machine-readable codes.

ERROR CATEGORIES:
  1. Business rule violations - RuleMissingError (client-facing)
  2. Not-found conditions - propagated unmodified from storage
  3. Everything else - infrastructure failures, passed through

NOTE ON VALIDATION:
  Malformed, expired or not-yet-effective policy documents are NOT
  errors. They normalize to "absent policy" inside ParsePolicy and are
  only logged at warning level. No error type exists for them on purpose.

USAGE:
  if errors.Is(err, commission.ErrCommissionRuleMissing) {
      // surface as 422 with the stable code
  }
*/
package commission

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCommissionRuleMissing is returned when a reventado bet resolves to
	// exactly 0% while enforcement is active. A silent 0% there is a
	// policy-authoring defect, not a valid outcome.
	ErrCommissionRuleMissing = errors.New("commission rule missing")

	// ErrActorNotFound is returned by policy stores when the actor record
	// itself does not exist. An existing actor with no policy is NOT an
	// error; that is a nil policy document.
	ErrActorNotFound = errors.New("actor not found")

	// ErrTicketNotFound is returned by line stores for unknown ticket ids
	// on operations that address a single ticket.
	ErrTicketNotFound = errors.New("ticket not found")

	// ErrJugadaNotFound is returned when an update addresses an unknown
	// bet line.
	ErrJugadaNotFound = errors.New("jugada not found")
)

// Stable machine-readable codes surfaced to clients.
const (
	CodeCommissionRuleMissing = "COMMISSION_RULE_MISSING"
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RuleMissingError reports the reventado-zero-percent violation with enough
// context for the policy author to locate the gap.
type RuleMissingError struct {
	ActorID   ActorID
	LotteryID LotteryID
	BetType   BetType
}

func (e *RuleMissingError) Error() string {
	return fmt.Sprintf("no commission rule yields a nonzero percent for actor %s, lottery %s, bet type %s",
		e.ActorID, e.LotteryID, e.BetType)
}

func (e *RuleMissingError) Unwrap() error {
	return ErrCommissionRuleMissing
}

// Code returns the stable machine-readable code for this violation.
func (e *RuleMissingError) Code() string {
	return CodeCommissionRuleMissing
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a business rule violation (maps to a 4xx status).
func IsClientError(err error) bool {
	return errors.Is(err, ErrCommissionRuleMissing)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrActorNotFound) ||
		errors.Is(err, ErrTicketNotFound) ||
		errors.Is(err, ErrJugadaNotFound)
}
