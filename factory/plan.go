package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/warp/engagement-engine/generic"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// PLAN DOCUMENTS
// =============================================================================
//
// A plan document bundles everything the engine needs for one or more
// plans: the rate table, the plans, their line items (optionally with a
// fill pattern) and their phases. The same schema is accepted as YAML or
// JSON.
//
//   week_start: sunday
//   rates:
//     - code: EUR
//       rate_to_usd: 0.85
//   plans:
//     - id: est-1
//       kind: estimate
//       name: Data platform
//       group_key: acme
//       group_label: ACME Corp
//       currency: USD
//       line_items:
//         - role: senior-consultant
//           rate: 100
//           cost: 50
//           start: 2024-01-01
//           end: 2024-01-14
//           billable: true
//           fill: {pattern: uniform, hoursPerWeek: 40}
//       phases:
//         - name: Discovery
//           start: 2024-01-01
//           end: 2024-01-07

// DocumentJSON is the serialized form of a plan document.
type DocumentJSON struct {
	WeekStart string     `json:"week_start,omitempty"`
	Rates     []RateJSON `json:"rates,omitempty"`
	Plans     []PlanJSON `json:"plans"`
}

type RateJSON struct {
	Code      string          `json:"code"`
	RateToUSD decimal.Decimal `json:"rate_to_usd"`
}

type PlanJSON struct {
	ID         string         `json:"id,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	Name       string         `json:"name"`
	GroupKey   string         `json:"group_key,omitempty"`
	GroupLabel string         `json:"group_label,omitempty"`
	Currency   string         `json:"currency,omitempty"`
	Start      string         `json:"start,omitempty"`
	End        string         `json:"end,omitempty"`
	Locked     bool           `json:"locked,omitempty"`
	LineItems  []LineItemJSON `json:"line_items,omitempty"`
	Phases     []PhaseJSON    `json:"phases,omitempty"`
}

type LineItemJSON struct {
	ID                 string                     `json:"id,omitempty"`
	Role               string                     `json:"role"`
	DeliveryCenter     string                     `json:"delivery_center,omitempty"`
	Employee           string                     `json:"employee,omitempty"`
	Rate               decimal.Decimal            `json:"rate"`
	Cost               decimal.Decimal            `json:"cost"`
	Currency           string                     `json:"currency,omitempty"`
	Start              string                     `json:"start"`
	End                string                     `json:"end"`
	Billable           *bool                      `json:"billable,omitempty"` // default true
	BillableExpensePct *decimal.Decimal           `json:"billable_expense_pct,omitempty"`
	Fill               *FillPatternJSON           `json:"fill,omitempty"`
	WeeklyHours        map[string]decimal.Decimal `json:"weekly_hours,omitempty"`
}

type PhaseJSON struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Color    string `json:"color,omitempty"`
	RowOrder int    `json:"row_order,omitempty"`
}

// Document is a parsed, validated plan document.
type Document struct {
	WeekStart generic.WeekStart
	Rates     generic.Rates
	Plans     []PlanBundle
}

// PlanBundle is a plan with its line items and phases.
type PlanBundle struct {
	Plan      generic.Plan
	LineItems []generic.LineItem
	Phases    []generic.Phase
}

// Items flattens the line items of every plan in the document.
func (d *Document) Items() []generic.LineItem {
	var items []generic.LineItem
	for _, b := range d.Plans {
		items = append(items, b.LineItems...)
	}
	return items
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts plan documents into engine types.
type PlanFactory struct{}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// LoadFile reads and parses a YAML or JSON plan document.
func (f *PlanFactory) LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan document: %w", err)
	}
	doc, err := f.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse accepts YAML or JSON (JSON is valid YAML). The YAML tree is
// re-encoded as JSON so both formats share the json tags and decimal
// decoding.
func (f *PlanFactory) Parse(data []byte) (*Document, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse plan document: %w", err)
	}
	raw, err := json.Marshal(stringKeys(tree))
	if err != nil {
		return nil, fmt.Errorf("failed to normalize plan document: %w", err)
	}

	var dj DocumentJSON
	if err := json.Unmarshal(raw, &dj); err != nil {
		return nil, fmt.Errorf("failed to decode plan document: %w", err)
	}
	return f.FromJSON(dj)
}

// FromJSON builds a Document: rates are validated, line items are filled
// from their pattern, and explicit weekly hours are merged on top.
func (f *PlanFactory) FromJSON(dj DocumentJSON) (*Document, error) {
	ws, err := generic.ParseWeekStart(dj.WeekStart)
	if err != nil {
		return nil, err
	}

	rows := make([]generic.CurrencyRate, 0, len(dj.Rates))
	for _, r := range dj.Rates {
		rows = append(rows, generic.CurrencyRate{Code: generic.Currency(r.Code), RateToUSD: r.RateToUSD})
	}
	rates, err := generic.NewRates(rows)
	if err != nil {
		return nil, err
	}

	doc := &Document{WeekStart: ws, Rates: rates}
	for i, pj := range dj.Plans {
		bundle, err := f.parsePlan(pj, i, ws)
		if err != nil {
			return nil, err
		}
		doc.Plans = append(doc.Plans, bundle)
	}
	return doc, nil
}

func (f *PlanFactory) parsePlan(pj PlanJSON, index int, ws generic.WeekStart) (PlanBundle, error) {
	plan := generic.Plan{
		ID:         generic.PlanID(pj.ID),
		Kind:       parsePlanKind(pj.Kind),
		Name:       pj.Name,
		GroupKey:   pj.GroupKey,
		GroupLabel: pj.GroupLabel,
		Currency:   parseCurrency(pj.Currency),
		Locked:     pj.Locked,
	}
	if plan.ID == "" {
		plan.ID = generic.PlanID(fmt.Sprintf("plan-%d", index+1))
	}
	if pj.Start != "" || pj.End != "" {
		r, err := generic.NewRange(pj.Start, pj.End)
		if err != nil {
			return PlanBundle{}, fmt.Errorf("plan %s: %w", plan.ID, err)
		}
		plan.DateRange = &r
	}

	bundle := PlanBundle{Plan: plan}
	for i, lj := range pj.LineItems {
		li, err := parseLineItem(lj, plan, i, ws)
		if err != nil {
			return PlanBundle{}, fmt.Errorf("plan %s: %w", plan.ID, err)
		}
		bundle.LineItems = append(bundle.LineItems, li)
	}
	for i, phj := range pj.Phases {
		ph, err := parsePhase(phj, plan.ID, i)
		if err != nil {
			return PlanBundle{}, fmt.Errorf("plan %s: %w", plan.ID, err)
		}
		bundle.Phases = append(bundle.Phases, ph)
	}
	return bundle, nil
}

func parseLineItem(lj LineItemJSON, plan generic.Plan, index int, ws generic.WeekStart) (generic.LineItem, error) {
	r, err := generic.NewRange(lj.Start, lj.End)
	if err != nil {
		return generic.LineItem{}, err
	}

	li := generic.LineItem{
		ID:                        generic.LineItemID(lj.ID),
		PlanID:                    plan.ID,
		RoleID:                    generic.RoleID(lj.Role),
		DeliveryCenterID:          generic.DeliveryCenterID(lj.DeliveryCenter),
		EmployeeID:                generic.EmployeeID(lj.Employee),
		Rate:                      lj.Rate,
		Cost:                      lj.Cost,
		Currency:                  plan.Currency,
		DateRange:                 r,
		Billable:                  true,
		BillableExpensePercentage: lj.BillableExpensePct,
	}
	if li.ID == "" {
		li.ID = generic.LineItemID(fmt.Sprintf("%s-li-%d", plan.ID, index+1))
	}
	if lj.Currency != "" {
		li.Currency = generic.NormalizeCurrency(lj.Currency)
	}
	if lj.Billable != nil {
		li.Billable = *lj.Billable
	}

	if lj.Fill != nil {
		params, err := lj.Fill.Params()
		if err != nil {
			return generic.LineItem{}, fmt.Errorf("line item %s: %w", li.ID, err)
		}
		filled, err := li.ApplyFill(params, ws)
		if err != nil {
			return generic.LineItem{}, fmt.Errorf("line item %s: %w", li.ID, err)
		}
		li = filled
	}

	if len(lj.WeeklyHours) > 0 {
		explicit := make([]generic.WeeklyHoursEntry, 0, len(lj.WeeklyHours))
		for key, h := range lj.WeeklyHours {
			week, err := generic.ParseDate(key)
			if err != nil {
				return generic.LineItem{}, fmt.Errorf("line item %s: %w", li.ID, err)
			}
			explicit = append(explicit, generic.WeeklyHoursEntry{WeekStart: generic.WeekStartOf(week, ws), Hours: h})
		}
		li.WeeklyHours = generic.MergeWeeklyHours(li.WeeklyHours, explicit)
	}
	return li, nil
}

func parsePhase(phj PhaseJSON, planID generic.PlanID, index int) (generic.Phase, error) {
	r, err := generic.NewRange(phj.Start, phj.End)
	if err != nil {
		return generic.Phase{}, fmt.Errorf("phase %q: %w", phj.Name, err)
	}
	ph := generic.Phase{
		ID:        generic.PhaseID(phj.ID),
		PlanID:    planID,
		Name:      phj.Name,
		DateRange: r,
		Color:     phj.Color,
		RowOrder:  phj.RowOrder,
	}
	if ph.ID == "" {
		ph.ID = generic.PhaseID(fmt.Sprintf("%s-phase-%d", planID, index+1))
	}
	return ph, nil
}

// =============================================================================
// STORE SEEDING
// =============================================================================

// Seed writes the document's rates, plans, line items and phases into s,
// inside one transaction when s supports it.
func (d *Document) Seed(ctx context.Context, s generic.Store) error {
	write := func(tx generic.Store) error {
		for _, row := range d.Rates.Rows() {
			if row.Code == generic.USD {
				continue
			}
			if err := tx.SaveRate(ctx, row); err != nil {
				return err
			}
		}
		for _, b := range d.Plans {
			if _, err := tx.SavePlan(ctx, b.Plan); err != nil {
				return err
			}
			for _, li := range b.LineItems {
				if _, err := tx.SaveLineItem(ctx, li); err != nil {
					return err
				}
			}
			for _, ph := range b.Phases {
				if _, err := tx.SavePhase(ctx, ph); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if txs, ok := s.(generic.TxStore); ok {
		return txs.WithTx(ctx, write)
	}
	return write(s)
}

// =============================================================================
// PARSE HELPERS
// =============================================================================

// stringKeys rewrites YAML maps with non-string keys (unquoted dates are
// resolved as timestamps) into map[string]any so they encode as JSON.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = stringKeys(child)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[fmt.Sprint(k)] = stringKeys(child)
		}
		return out
	case []any:
		for i, child := range t {
			t[i] = stringKeys(child)
		}
		return t
	default:
		return v
	}
}

func parsePlanKind(s string) generic.PlanKind {
	switch generic.PlanKind(s) {
	case generic.PlanQuote:
		return generic.PlanQuote
	case generic.PlanEngagement:
		return generic.PlanEngagement
	default:
		return generic.PlanEstimate
	}
}

func parseCurrency(s string) generic.Currency {
	if s == "" {
		return generic.USD
	}
	return generic.NormalizeCurrency(s)
}
