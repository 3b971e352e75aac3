/*
Package generic provides the core resource and timeline engine.

PURPOSE:
  This package contains the pure, domain-agnostic computations behind
  estimates, quotes and engagement resource plans. Whether the caller is
  pricing an estimate or drawing a portfolio Gantt, the same engine handles
  week bucketing, hour distribution, cost/revenue aggregation and layout.

KEY CONCEPTS IN THIS FILE (types.go):
  - LineItem: A role/delivery-center assignment over a date range
  - WeeklyHoursEntry: Hours allocated to one week bucket of a line item
  - Phase: A named, colored sub-interval of a plan (no hours)
  - Plan: The owner of line items and phases (estimate, quote, engagement)

DESIGN PRINCIPLES:
  1. Purity: Every engine operation is a function of its inputs
  2. Precision: Uses decimal.Decimal for hours, rates and money
  3. Type Safety: Strong typing for IDs prevents mixing plan/line item IDs
  4. Immutability: Operations return new values, inputs are never mutated

USAGE:
  item := generic.LineItem{
      ID:        "li-1",
      RoleID:    "senior-consultant",
      Rate:      decimal.NewFromInt(100),
      Cost:      decimal.NewFromInt(50),
      Currency:  generic.USD,
      DateRange: generic.MustRange("2024-01-01", "2024-01-14"),
      Billable:  true,
  }
  filled, err := item.ApplyFill(generic.Uniform(decimal.NewFromInt(40)), generic.Sunday)

SEE ALSO:
  - time.go: Civil dates and week buckets
  - fill.go: Fill-pattern generator
  - totals.go: Aggregation engine
  - timeline.go: Timeline layout engine
*/
package generic

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PlanID string
type LineItemID string
type PhaseID string
type RoleID string
type DeliveryCenterID string
type EmployeeID string

// =============================================================================
// WEEKLY HOURS
// =============================================================================

// WeeklyHoursEntry is the hours allocated to a single week bucket.
// WeekStart is always the first day of the bucket for the WeekStart
// convention the entry was generated with.
type WeeklyHoursEntry struct {
	WeekStart Date            `json:"week_start"`
	Hours     decimal.Decimal `json:"hours"`
}

// SortWeeklyHours orders entries by week, in place.
func SortWeeklyHours(entries []WeeklyHoursEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].WeekStart.Before(entries[j].WeekStart)
	})
}

// TotalHours sums hours across entries.
func TotalHours(entries []WeeklyHoursEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Hours)
	}
	return total
}

// =============================================================================
// LINE ITEM - A costable/billable assignment over a date range
// =============================================================================

type LineItem struct {
	ID               LineItemID
	PlanID           PlanID
	RoleID           RoleID
	DeliveryCenterID DeliveryCenterID
	EmployeeID       EmployeeID // empty when the line item is a placeholder role

	Rate     decimal.Decimal // billing rate per hour
	Cost     decimal.Decimal // cost rate per hour
	Currency Currency

	DateRange DateRange
	Billable  bool

	// BillableExpensePercentage is applied on top of revenue (nil = none).
	BillableExpensePercentage *decimal.Decimal

	WeeklyHours []WeeklyHoursEntry
}

// HoursFor returns the hours recorded for a week bucket, or zero.
func (li LineItem) HoursFor(week Date) decimal.Decimal {
	for _, e := range li.WeeklyHours {
		if e.WeekStart == week {
			return e.Hours
		}
	}
	return decimal.Zero
}

// hoursIndex returns the weekly hours keyed by week bucket.
func (li LineItem) hoursIndex() map[Date]decimal.Decimal {
	idx := make(map[Date]decimal.Decimal, len(li.WeeklyHours))
	for _, e := range li.WeeklyHours {
		idx[e.WeekStart] = e.Hours
	}
	return idx
}

// Clone returns a deep copy so callers can derive new line items safely.
func (li LineItem) Clone() LineItem {
	out := li
	if li.WeeklyHours != nil {
		out.WeeklyHours = make([]WeeklyHoursEntry, len(li.WeeklyHours))
		copy(out.WeeklyHours, li.WeeklyHours)
	}
	if li.BillableExpensePercentage != nil {
		pct := *li.BillableExpensePercentage
		out.BillableExpensePercentage = &pct
	}
	return out
}

// ApplyFill generates hours for the line item's range and merges them over
// the existing entries. The receiver is not modified.
func (li LineItem) ApplyFill(params FillParams, ws WeekStart) (LineItem, error) {
	generated, err := Fill(li.DateRange, params, ws)
	if err != nil {
		return LineItem{}, err
	}
	out := li.Clone()
	out.WeeklyHours = MergeWeeklyHours(li.WeeklyHours, generated)
	return out, nil
}

// OutOfRange returns the weekly entries whose 7-day bucket does not
// intersect the line item's date range.
func (li LineItem) OutOfRange() []WeeklyHoursEntry {
	var out []WeeklyHoursEntry
	for _, e := range li.WeeklyHours {
		bucket := DateRange{Start: e.WeekStart, End: e.WeekStart.AddDays(6)}
		if !bucket.Overlaps(li.DateRange) {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// PHASE - Display/grouping annotation over a plan
// =============================================================================

type Phase struct {
	ID        PhaseID
	PlanID    PlanID
	Name      string
	DateRange DateRange
	Color     string // CSS color, empty = inherit from the plan's group
	RowOrder  int
}

// =============================================================================
// PLAN - Owner of line items and phases
// =============================================================================

type PlanKind string

const (
	PlanEstimate   PlanKind = "estimate"
	PlanQuote      PlanKind = "quote"
	PlanEngagement PlanKind = "engagement"
)

type Plan struct {
	ID         PlanID
	Kind       PlanKind
	Name       string
	GroupKey   string // top-level timeline group, e.g. account ID
	GroupLabel string
	Currency   Currency
	DateRange  *DateRange // nil = derived from phases / line items
	Locked     bool       // locked plans are read-only snapshots
	SourceID   PlanID     // estimate a quote was locked from
}
