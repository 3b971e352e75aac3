/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Lists:
    ListResponse ({items, total} envelope)

  Plans:
    PlanDTO, CreatePlanRequest, LockRequest

  Line items:
    LineItemDTO, LineItemRequest, WeeklyHoursRequest

  Phases:
    PhaseDTO, PhaseRequest

  Engine (stateless):
    FillRequest, ConvertRequest, ConvertResponse, TotalsRequest, TimelineRequest

  Demo:
    ScenarioDTO, LoadScenarioRequest

MONEY AND HOURS:
  Decimals are serialized as JSON strings ("117.6470588235294118") so no
  precision is lost in transit. Clients round for display.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/pattern.go: FillPatternJSON type
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/engagement-engine/factory"
	"github.com/warp/engagement-engine/generic"
)

// =============================================================================
// LIST ENVELOPE
// =============================================================================

// ListResponse is the {items, total} envelope used by every list endpoint.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func newList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Total: len(items)}
}

// =============================================================================
// PLANS
// =============================================================================

// PlanDTO represents a plan in API responses.
type PlanDTO struct {
	ID         string             `json:"id"`
	Kind       string             `json:"kind"`
	Name       string             `json:"name"`
	GroupKey   string             `json:"group_key,omitempty"`
	GroupLabel string             `json:"group_label,omitempty"`
	Currency   string             `json:"currency"`
	DateRange  *generic.DateRange `json:"date_range,omitempty"`
	Locked     bool               `json:"locked"`
	SourceID   string             `json:"source_id,omitempty"`
}

// CreatePlanRequest is the request to create a plan.
type CreatePlanRequest struct {
	ID         string `json:"id,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Name       string `json:"name"`
	GroupKey   string `json:"group_key,omitempty"`
	GroupLabel string `json:"group_label,omitempty"`
	Currency   string `json:"currency,omitempty"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
}

// LockRequest is the request to lock an estimate as a quote.
type LockRequest struct {
	Name string `json:"name,omitempty"`
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// LineItemDTO represents a line item in API responses.
type LineItemDTO struct {
	ID                 string                     `json:"id"`
	PlanID             string                     `json:"plan_id"`
	RoleID             string                     `json:"role_id"`
	DeliveryCenterID   string                     `json:"delivery_center_id,omitempty"`
	EmployeeID         string                     `json:"employee_id,omitempty"`
	Rate               decimal.Decimal            `json:"rate"`
	Cost               decimal.Decimal            `json:"cost"`
	Currency           string                     `json:"currency"`
	Start              string                     `json:"start"`
	End                string                     `json:"end"`
	Billable           bool                       `json:"billable"`
	BillableExpensePct *decimal.Decimal           `json:"billable_expense_pct,omitempty"`
	WeeklyHours        []generic.WeeklyHoursEntry `json:"weekly_hours"`
	TotalHours         decimal.Decimal            `json:"total_hours"`
}

// LineItemRequest creates or updates a line item.
type LineItemRequest struct {
	ID                  string                     `json:"id,omitempty"`
	RoleID              string                     `json:"role_id"`
	DeliveryCenterID    string                     `json:"delivery_center_id,omitempty"`
	EmployeeID          string                     `json:"employee_id,omitempty"`
	Rate                decimal.Decimal            `json:"rate"`
	Cost                decimal.Decimal            `json:"cost"`
	Currency            string                     `json:"currency,omitempty"`
	Start               string                     `json:"start"`
	End                 string                     `json:"end"`
	Billable            *bool                      `json:"billable,omitempty"` // default true
	BillableExpensePct  *decimal.Decimal           `json:"billable_expense_pct,omitempty"`
	DefaultHoursPerWeek *decimal.Decimal           `json:"default_hours_per_week,omitempty"`
	WeeklyHours         []generic.WeeklyHoursEntry `json:"weekly_hours,omitempty"`
}

// WeeklyHoursRequest overwrites the hours of the listed weeks.
type WeeklyHoursRequest struct {
	WeeklyHours []generic.WeeklyHoursEntry `json:"weekly_hours"`
}

// =============================================================================
// PHASES
// =============================================================================

// PhaseDTO represents a phase in API responses.
type PhaseDTO struct {
	ID       string `json:"id"`
	PlanID   string `json:"plan_id"`
	Name     string `json:"name"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Color    string `json:"color,omitempty"`
	RowOrder int    `json:"row_order"`
}

// PhaseRequest is the request to add a phase.
type PhaseRequest struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Color    string `json:"color,omitempty"`
	RowOrder int    `json:"row_order,omitempty"`
}

// =============================================================================
// ENGINE (STATELESS)
// =============================================================================

// RateRequest sets one rate.
type RateRequest struct {
	RateToUSD decimal.Decimal `json:"rate_to_usd"`
}

// ConvertRequest converts an amount with the current rate snapshot.
type ConvertRequest struct {
	Amount decimal.Decimal `json:"amount"`
	From   string          `json:"from"`
	To     string          `json:"to"`
}

// ConvertResponse carries both the exact and the display-rounded result.
type ConvertResponse struct {
	Amount  decimal.Decimal `json:"amount"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Result  decimal.Decimal `json:"result"`
	Rounded decimal.Decimal `json:"rounded"`
}

// FillRequest previews a fill pattern over a range without storing it.
type FillRequest struct {
	Start     string                  `json:"start"`
	End       string                  `json:"end"`
	WeekStart string                  `json:"week_start,omitempty"`
	Fill      factory.FillPatternJSON `json:"fill"`
}

// TotalsRequest aggregates ad-hoc line items.
type TotalsRequest struct {
	LineItems []LineItemRequest      `json:"line_items"`
	Group     string                 `json:"group,omitempty"`
	Currency  string                 `json:"currency,omitempty"`
	WeekStart string                 `json:"week_start,omitempty"`
	Rates     []generic.CurrencyRate `json:"rates,omitempty"` // overrides the stored table
}

// TimelineRequest lays out ad-hoc entities.
type TimelineRequest struct {
	Entities    []generic.TimelineEntity `json:"entities"`
	WeekStart   string                   `json:"week_start,omitempty"`
	PaddingDays int                      `json:"padding_days,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"` // "estimate" or "engagement"
}

// LoadScenarioRequest is the request to load a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPlanDTO(p generic.Plan) PlanDTO {
	return PlanDTO{
		ID:         string(p.ID),
		Kind:       string(p.Kind),
		Name:       p.Name,
		GroupKey:   p.GroupKey,
		GroupLabel: p.GroupLabel,
		Currency:   string(p.Currency),
		DateRange:  p.DateRange,
		Locked:     p.Locked,
		SourceID:   string(p.SourceID),
	}
}

func toPlanDTOs(plans []generic.Plan) []PlanDTO {
	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(p)
	}
	return dtos
}

func toLineItemDTO(li generic.LineItem) LineItemDTO {
	hours := li.WeeklyHours
	if hours == nil {
		hours = []generic.WeeklyHoursEntry{}
	}
	return LineItemDTO{
		ID:                 string(li.ID),
		PlanID:             string(li.PlanID),
		RoleID:             string(li.RoleID),
		DeliveryCenterID:   string(li.DeliveryCenterID),
		EmployeeID:         string(li.EmployeeID),
		Rate:               li.Rate,
		Cost:               li.Cost,
		Currency:           string(li.Currency),
		Start:              li.DateRange.Start.String(),
		End:                li.DateRange.End.String(),
		Billable:           li.Billable,
		BillableExpensePct: li.BillableExpensePercentage,
		WeeklyHours:        hours,
		TotalHours:         generic.TotalHours(li.WeeklyHours),
	}
}

func toLineItemDTOs(items []generic.LineItem) []LineItemDTO {
	dtos := make([]LineItemDTO, len(items))
	for i, li := range items {
		dtos[i] = toLineItemDTO(li)
	}
	return dtos
}

// toLineItem validates the request and builds an engine line item.
func (req LineItemRequest) toLineItem() (generic.LineItem, error) {
	r, err := generic.NewRange(req.Start, req.End)
	if err != nil {
		return generic.LineItem{}, err
	}
	li := generic.LineItem{
		ID:                        generic.LineItemID(req.ID),
		RoleID:                    generic.RoleID(req.RoleID),
		DeliveryCenterID:          generic.DeliveryCenterID(req.DeliveryCenterID),
		EmployeeID:                generic.EmployeeID(req.EmployeeID),
		Rate:                      req.Rate,
		Cost:                      req.Cost,
		DateRange:                 r,
		Billable:                  true,
		BillableExpensePercentage: req.BillableExpensePct,
	}
	if req.Currency != "" {
		li.Currency = generic.NormalizeCurrency(req.Currency)
	}
	if req.Billable != nil {
		li.Billable = *req.Billable
	}
	if len(req.WeeklyHours) > 0 {
		li.WeeklyHours = generic.MergeWeeklyHours(nil, req.WeeklyHours)
	}
	return li, nil
}

func toPhaseDTO(ph generic.Phase) PhaseDTO {
	return PhaseDTO{
		ID:       string(ph.ID),
		PlanID:   string(ph.PlanID),
		Name:     ph.Name,
		Start:    ph.DateRange.Start.String(),
		End:      ph.DateRange.End.String(),
		Color:    ph.Color,
		RowOrder: ph.RowOrder,
	}
}

func toPhaseDTOs(phases []generic.Phase) []PhaseDTO {
	dtos := make([]PhaseDTO, len(phases))
	for i, ph := range phases {
		dtos[i] = toPhaseDTO(ph)
	}
	return dtos
}
