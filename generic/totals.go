/*
totals.go - Aggregation engine

PURPOSE:
  Turns line items into hours, cost, revenue and margin, overall and sliced
  by week, month, role, delivery center or employee. This is what estimate
  and quote summaries display.

PER WEEK CONTRIBUTION (for every bucket intersecting the item's range):
  hours   = weekly entry for the bucket, or 0
  cost    = hours * item.Cost
  revenue = item.Billable ? hours * item.Rate : 0

DERIVED:
  margin           = revenue - cost
  marginPercentage = revenue > 0 ? margin / revenue * 100 : 0

MONTHS:
  A week is never split: its whole contribution lands in the month of the
  bucket's start date.

RANGE WARNINGS:
  Entries outside the item's range (or not on a bucket start) are not
  counted and not rejected. They are listed in Report.Warnings so the UI
  can show a banner.

SEE ALSO:
  - currency.go: Conversion into the report currency
  - estimate/service.go: Totals for stored plans
*/
package generic

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUERY
// =============================================================================

type Dimension string

const (
	DimensionNone           Dimension = "none"
	DimensionWeek           Dimension = "week"
	DimensionMonth          Dimension = "month"
	DimensionRole           Dimension = "role"
	DimensionDeliveryCenter Dimension = "delivery_center"
	DimensionEmployee       Dimension = "employee"
)

// ParseDimension maps a query value to a Dimension; empty = none.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(s); d {
	case "", "overall":
		return DimensionNone, nil
	case DimensionNone, DimensionWeek, DimensionMonth, DimensionRole, DimensionDeliveryCenter, DimensionEmployee:
		return d, nil
	default:
		return DimensionNone, &DimensionError{Dimension: s}
	}
}

// Filter restricts the line items that are aggregated. Zero fields match all.
type Filter struct {
	PlanID           PlanID
	RoleID           RoleID
	DeliveryCenterID DeliveryCenterID
	EmployeeID       EmployeeID
}

func (f Filter) matches(li LineItem) bool {
	return (f.PlanID == "" || f.PlanID == li.PlanID) &&
		(f.RoleID == "" || f.RoleID == li.RoleID) &&
		(f.DeliveryCenterID == "" || f.DeliveryCenterID == li.DeliveryCenterID) &&
		(f.EmployeeID == "" || f.EmployeeID == li.EmployeeID)
}

type AggregateQuery struct {
	Dimension Dimension
	Filter    Filter
	WeekStart WeekStart

	// Currency converts every item's rate and cost before summing.
	// Empty = sum amounts as stored.
	Currency Currency
	Rates    Rates
}

// =============================================================================
// RESULT
// =============================================================================

type Totals struct {
	Hours            decimal.Decimal `json:"hours"`
	Cost             decimal.Decimal `json:"cost"`
	Revenue          decimal.Decimal `json:"revenue"`
	Margin           decimal.Decimal `json:"margin"`
	MarginPercentage decimal.Decimal `json:"margin_percentage"`
	BillableExpenses decimal.Decimal `json:"billable_expenses"`
}

type Group struct {
	Key    string `json:"key"`
	Totals Totals `json:"totals"`
}

type WarningReason string

const (
	WarningOutsideRange   WarningReason = "outside_range"
	WarningMisalignedWeek WarningReason = "misaligned_week"
)

// RangeWarning flags a weekly entry that does not line up with its item.
type RangeWarning struct {
	LineItemID LineItemID      `json:"line_item_id"`
	WeekStart  Date            `json:"week_start"`
	Hours      decimal.Decimal `json:"hours"`
	Reason     WarningReason   `json:"reason"`
}

type Report struct {
	Dimension Dimension      `json:"dimension"`
	Currency  Currency       `json:"currency,omitempty"`
	Groups    []Group        `json:"groups"`
	Overall   Totals         `json:"overall"`
	Warnings  []RangeWarning `json:"warnings,omitempty"`
}

// Group returns the totals for key, if present.
func (r *Report) Group(key string) (Totals, bool) {
	for _, g := range r.Groups {
		if g.Key == key {
			return g.Totals, true
		}
	}
	return Totals{}, false
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

type accumulator struct {
	hours, cost, revenue, expenses decimal.Decimal
}

func (a *accumulator) add(hours, cost, revenue, expenses decimal.Decimal) {
	a.hours = a.hours.Add(hours)
	a.cost = a.cost.Add(cost)
	a.revenue = a.revenue.Add(revenue)
	a.expenses = a.expenses.Add(expenses)
}

func (a accumulator) totals() Totals {
	return NewTotals(a.hours, a.cost, a.revenue, a.expenses)
}

// NewTotals derives margin and margin percentage from the raw sums.
func NewTotals(hours, cost, revenue, expenses decimal.Decimal) Totals {
	margin := revenue.Sub(cost)
	pct := decimal.Zero
	if revenue.IsPositive() {
		pct = margin.DivRound(revenue, conversionPrecision).Mul(decimal.NewFromInt(100))
	}
	return Totals{
		Hours:            hours,
		Cost:             cost,
		Revenue:          revenue,
		Margin:           margin,
		MarginPercentage: pct,
		BillableExpenses: expenses,
	}
}

// =============================================================================
// AGGREGATE
// =============================================================================

// Aggregate computes totals for the matching line items. Inputs are not
// modified and nothing is cached between calls.
func Aggregate(items []LineItem, q AggregateQuery) (*Report, error) {
	dim := q.Dimension
	if dim == "" {
		dim = DimensionNone
	}
	if _, err := ParseDimension(string(dim)); err != nil {
		return nil, err
	}

	var overall accumulator
	groups := make(map[string]*accumulator)
	var warnings []RangeWarning
	hundred := decimal.NewFromInt(100)

	for _, li := range items {
		if !q.Filter.matches(li) {
			continue
		}
		if err := li.DateRange.Validate(); err != nil {
			return nil, err
		}

		rate, cost, err := itemRates(li, q)
		if err != nil {
			return nil, err
		}

		expensePct := decimal.Zero
		if li.Billable && li.BillableExpensePercentage != nil {
			expensePct = *li.BillableExpensePercentage
		}

		hoursByWeek := li.hoursIndex()
		for _, week := range li.DateRange.Weeks(q.WeekStart) {
			hours, ok := hoursByWeek[week]
			if !ok {
				hours = decimal.Zero
			}
			weekCost := hours.Mul(cost)
			weekRevenue := decimal.Zero
			if li.Billable {
				weekRevenue = hours.Mul(rate)
			}
			weekExpenses := weekRevenue.Mul(expensePct).DivRound(hundred, conversionPrecision)

			overall.add(hours, weekCost, weekRevenue, weekExpenses)
			if key, grouped := groupKey(dim, li, week); grouped {
				acc, ok := groups[key]
				if !ok {
					acc = &accumulator{}
					groups[key] = acc
				}
				acc.add(hours, weekCost, weekRevenue, weekExpenses)
			}
		}

		warnings = append(warnings, RangeWarnings(li, q.WeekStart)...)
	}

	report := &Report{
		Dimension: dim,
		Currency:  q.Currency,
		Groups:    make([]Group, 0, len(groups)),
		Overall:   overall.totals(),
		Warnings:  warnings,
	}
	for key, acc := range groups {
		report.Groups = append(report.Groups, Group{Key: key, Totals: acc.totals()})
	}
	sort.Slice(report.Groups, func(i, j int) bool { return report.Groups[i].Key < report.Groups[j].Key })
	return report, nil
}

// itemRates returns the item's rate and cost in the report currency.
func itemRates(li LineItem, q AggregateQuery) (rate, cost decimal.Decimal, err error) {
	if q.Currency == "" || li.Currency == "" {
		return li.Rate, li.Cost, nil
	}
	rate, err = Convert(li.Rate, li.Currency, q.Currency, q.Rates)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	cost, err = Convert(li.Cost, li.Currency, q.Currency, q.Rates)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return rate, cost, nil
}

func groupKey(dim Dimension, li LineItem, week Date) (string, bool) {
	switch dim {
	case DimensionWeek:
		return week.String(), true
	case DimensionMonth:
		return week.MonthKey(), true
	case DimensionRole:
		return string(li.RoleID), true
	case DimensionDeliveryCenter:
		return string(li.DeliveryCenterID), true
	case DimensionEmployee:
		if li.EmployeeID == "" {
			return UnassignedEmployee, true
		}
		return string(li.EmployeeID), true
	default:
		return "", false
	}
}

// UnassignedEmployee is the employee group key for placeholder line items.
const UnassignedEmployee = "unassigned"

// RangeWarnings lists the entries of li that Aggregate does not count.
func RangeWarnings(li LineItem, ws WeekStart) []RangeWarning {
	var out []RangeWarning
	outside := make(map[Date]bool)
	for _, e := range li.OutOfRange() {
		outside[e.WeekStart] = true
		out = append(out, RangeWarning{LineItemID: li.ID, WeekStart: e.WeekStart, Hours: e.Hours, Reason: WarningOutsideRange})
	}
	for _, e := range li.WeeklyHours {
		if outside[e.WeekStart] {
			continue
		}
		if WeekStartOf(e.WeekStart, ws) != e.WeekStart {
			out = append(out, RangeWarning{LineItemID: li.ID, WeekStart: e.WeekStart, Hours: e.Hours, Reason: WarningMisalignedWeek})
		}
	}
	return out
}
