/*
store.go - Persistence interface for plans, line items, phases and rates

PURPOSE:
  Defines the boundary between the pure engine and whatever persists its
  inputs. The engine never calls a Store itself; domain services (estimate,
  engagement) and the API load data through it and hand plain values to
  Fill, Aggregate and Layout.

KEY INTERFACES:
  Store: Plans, line items (with weekly hours), phases, currency rates

CONTRACT:
  - Get* returns ErrPlanNotFound / ErrLineItemNotFound for missing IDs
  - Save* upserts; an empty ID is replaced with a generated UUID
  - ReplaceWeeklyHours swaps the whole weekly-hours set of one line item
  - DeleteRate refuses to remove USD (ErrInvalidRate)
  - Returned slices are copies; callers may modify them freely

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - estimate/service.go: Uses Store for the estimate lifecycle
  - api/handlers.go: HTTP facade over Store + engine
*/
package generic

import "context"

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// Plans
	SavePlan(ctx context.Context, p Plan) (Plan, error)
	GetPlan(ctx context.Context, id PlanID) (Plan, error)
	ListPlans(ctx context.Context, kind PlanKind) ([]Plan, error)

	// Line items
	SaveLineItem(ctx context.Context, li LineItem) (LineItem, error)
	GetLineItem(ctx context.Context, id LineItemID) (LineItem, error)
	ListLineItems(ctx context.Context, planID PlanID) ([]LineItem, error)
	DeleteLineItem(ctx context.Context, id LineItemID) error
	ReplaceWeeklyHours(ctx context.Context, id LineItemID, entries []WeeklyHoursEntry) error

	// Phases
	SavePhase(ctx context.Context, ph Phase) (Phase, error)
	ListPhases(ctx context.Context, planID PlanID) ([]Phase, error)

	// Currency rates
	SaveRate(ctx context.Context, rate CurrencyRate) error
	ListRates(ctx context.Context) ([]CurrencyRate, error)
	DeleteRate(ctx context.Context, code Currency) error
}

// TxStore wraps Store with transaction support.
// Use this when several writes must land together (e.g. locking a quote).
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// LoadRates reads the rate table from the store and validates it.
func LoadRates(ctx context.Context, s Store) (Rates, error) {
	rows, err := s.ListRates(ctx)
	if err != nil {
		return nil, err
	}
	return NewRates(rows)
}
