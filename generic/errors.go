/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages and the API wrap or match these with errors.Is/As.

ERROR CATEGORIES:
  1. Input errors - Malformed dates, ranges, fill parameters
  2. Currency errors - Missing or unusable rates
  3. Store errors - Missing plans/line items, locked snapshots

USAGE:
  if errors.Is(err, generic.ErrUnknownCurrency) {
      // surface as a banner, never default to 1.0
  }

SEE ALSO:
  - currency.go: Raises UnknownCurrencyError
  - fill.go: Raises PatternParamsError
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDateFormat is returned when a date is not YYYY-MM-DD
	// (optionally followed by a time portion) or names an impossible day.
	ErrInvalidDateFormat = errors.New("invalid date format")

	// ErrInvalidRange is returned when a range ends before it starts.
	ErrInvalidRange = errors.New("invalid date range: end before start")

	// ErrInvalidPatternParams is returned when fill-pattern parameters are
	// negative, missing, or the interval is not positive.
	ErrInvalidPatternParams = errors.New("invalid fill pattern parameters")

	// ErrUnknownCurrency is returned when a conversion needs a rate that is
	// not in the supplied table.
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrInvalidRate is returned for non-positive rates, duplicate codes,
	// or attempts to change or remove USD.
	ErrInvalidRate = errors.New("invalid currency rate")

	// ErrInvalidDimension is returned for an unknown aggregation grouping.
	ErrInvalidDimension = errors.New("invalid aggregation dimension")

	// ErrEmptyInputSet is returned by operations that need at least one
	// dated entity to produce meaningful bounds.
	ErrEmptyInputSet = errors.New("empty input set")

	// ErrPlanNotFound is returned when a referenced plan doesn't exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrLineItemNotFound is returned when a referenced line item doesn't exist.
	ErrLineItemNotFound = errors.New("line item not found")

	// ErrPlanLocked is returned when mutating a locked (quoted) snapshot.
	ErrPlanLocked = errors.New("plan is locked")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DateFormatError reports the rejected input.
type DateFormatError struct {
	Input string
	Cause error
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("invalid date format %q: expected YYYY-MM-DD", e.Input)
}

func (e *DateFormatError) Unwrap() error { return ErrInvalidDateFormat }

// RangeError reports a range whose end precedes its start.
type RangeError struct {
	Range DateRange
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid date range %s: end before start", e.Range)
}

func (e *RangeError) Unwrap() error { return ErrInvalidRange }

// PatternParamsError names the offending field so callers can show an
// inline validation message next to it.
type PatternParamsError struct {
	Pattern Pattern
	Field   string
	Message string
}

func (e *PatternParamsError) Error() string {
	return fmt.Sprintf("invalid %s parameters: %s %s", e.Pattern, e.Field, e.Message)
}

func (e *PatternParamsError) Unwrap() error { return ErrInvalidPatternParams }

// UnknownCurrencyError names the missing code.
type UnknownCurrencyError struct {
	Code Currency
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("unknown currency: no rate for %q", string(e.Code))
}

func (e *UnknownCurrencyError) Unwrap() error { return ErrUnknownCurrency }

// DimensionError names the rejected grouping.
type DimensionError struct {
	Dimension string
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("invalid aggregation dimension %q", e.Dimension)
}

func (e *DimensionError) Unwrap() error { return ErrInvalidDimension }

// RateError explains why a rate table entry was rejected.
type RateError struct {
	Code    Currency
	Message string
}

func (e *RateError) Error() string {
	return fmt.Sprintf("invalid rate for %q: %s", string(e.Code), e.Message)
}

func (e *RateError) Unwrap() error { return ErrInvalidRate }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDateFormat) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidPatternParams) ||
		errors.Is(err, ErrUnknownCurrency) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidDimension) ||
		errors.Is(err, ErrEmptyInputSet)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrLineItemNotFound)
}

// IsConflict returns true if the target is in a state that forbids the change.
func IsConflict(err error) bool {
	return errors.Is(err, ErrPlanLocked)
}
