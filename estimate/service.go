/*
Package estimate implements the estimate and quote lifecycle on top of the
engine.

PURPOSE:
  An estimate is a draft plan: line items are added, filled with hours and
  priced until the numbers work. Locking an estimate produces a quote, a
  read-only snapshot of the line items and phases at that moment. The
  estimate itself is locked too, so the quote can always be traced back to
  exactly what was priced.

RULES:
  - Line items of a locked plan cannot be added, filled, edited or deleted
    (generic.ErrPlanLocked)
  - Hour buckets use the service's week start (Sunday unless configured)
  - Totals are computed on demand from stored line items, never cached

LOCKING:
  LockAsQuote(estimate) ->
    1. new plan{kind: quote, locked, source: estimate}
    2. copy every line item and phase with fresh IDs
    3. lock the estimate
  Steps run in one transaction when the store is a generic.TxStore.

USAGE:
  svc := estimate.NewService(store)
  item, err := svc.AddLineItem(ctx, planID, item, &fortyHours)
  item, err  = svc.FillLineItem(ctx, item.ID, generic.Ramp(generic.PatternRampUp, lo, hi, step))
  report, err := svc.Totals(ctx, planID, generic.AggregateQuery{Dimension: generic.DimensionMonth})
  quote, err := svc.LockAsQuote(ctx, planID, "Q1 proposal")

SEE ALSO:
  - generic/fill.go: Fill patterns
  - generic/totals.go: Aggregation
*/
package estimate

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/engagement-engine/generic"
)

// Service runs estimate operations against a store.
type Service struct {
	store     generic.Store
	weekStart generic.WeekStart
}

// NewService creates a service bucketing hours by generic.DefaultWeekStart.
func NewService(store generic.Store) *Service {
	return &Service{store: store, weekStart: generic.DefaultWeekStart}
}

// WithWeekStart returns a copy of the service using ws for hour buckets.
func (s *Service) WithWeekStart(ws generic.WeekStart) *Service {
	out := *s
	out.weekStart = ws
	return &out
}

// WeekStart reports the hour-bucket convention in use.
func (s *Service) WeekStart() generic.WeekStart {
	return s.weekStart
}

// =============================================================================
// PLANS
// =============================================================================

// CreatePlan stores a new unlocked plan. Kind defaults to estimate and
// currency to USD.
func (s *Service) CreatePlan(ctx context.Context, p generic.Plan) (generic.Plan, error) {
	if p.Kind == "" {
		p.Kind = generic.PlanEstimate
	}
	if p.Currency == "" {
		p.Currency = generic.USD
	}
	p.Currency = generic.NormalizeCurrency(string(p.Currency))
	if p.DateRange != nil {
		if err := p.DateRange.Validate(); err != nil {
			return generic.Plan{}, err
		}
	}
	p.Locked = false
	return s.store.SavePlan(ctx, p)
}

// editablePlan loads a plan and fails if it is locked.
func (s *Service) editablePlan(ctx context.Context, id generic.PlanID) (generic.Plan, error) {
	plan, err := s.store.GetPlan(ctx, id)
	if err != nil {
		return generic.Plan{}, err
	}
	if plan.Locked {
		return generic.Plan{}, fmt.Errorf("plan %s: %w", id, generic.ErrPlanLocked)
	}
	return plan, nil
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// AddLineItem attaches li to the plan. When defaultHoursPerWeek is set the
// item is filled uniformly before it is stored.
func (s *Service) AddLineItem(ctx context.Context, planID generic.PlanID, li generic.LineItem, defaultHoursPerWeek *decimal.Decimal) (generic.LineItem, error) {
	plan, err := s.editablePlan(ctx, planID)
	if err != nil {
		return generic.LineItem{}, err
	}
	if err := li.DateRange.Validate(); err != nil {
		return generic.LineItem{}, err
	}

	li.PlanID = plan.ID
	if li.Currency == "" {
		li.Currency = plan.Currency
	}
	li.Currency = generic.NormalizeCurrency(string(li.Currency))

	if defaultHoursPerWeek != nil {
		li, err = li.ApplyFill(generic.Uniform(*defaultHoursPerWeek), s.weekStart)
		if err != nil {
			return generic.LineItem{}, err
		}
	}
	return s.store.SaveLineItem(ctx, li)
}

// UpdateLineItem replaces the editable fields of an existing line item.
// Weekly hours are kept unless li carries its own.
func (s *Service) UpdateLineItem(ctx context.Context, li generic.LineItem) (generic.LineItem, error) {
	existing, err := s.store.GetLineItem(ctx, li.ID)
	if err != nil {
		return generic.LineItem{}, err
	}
	if _, err := s.editablePlan(ctx, existing.PlanID); err != nil {
		return generic.LineItem{}, err
	}
	if err := li.DateRange.Validate(); err != nil {
		return generic.LineItem{}, err
	}
	li.PlanID = existing.PlanID
	if li.Currency == "" {
		li.Currency = existing.Currency
	}
	if li.WeeklyHours == nil {
		li.WeeklyHours = existing.WeeklyHours
	}
	return s.store.SaveLineItem(ctx, li)
}

// FillLineItem generates hours for the item's range and merges them over
// its existing entries. Entries for weeks outside the range are kept.
func (s *Service) FillLineItem(ctx context.Context, id generic.LineItemID, params generic.FillParams) (generic.LineItem, error) {
	li, err := s.store.GetLineItem(ctx, id)
	if err != nil {
		return generic.LineItem{}, err
	}
	if _, err := s.editablePlan(ctx, li.PlanID); err != nil {
		return generic.LineItem{}, err
	}

	filled, err := li.ApplyFill(params, s.weekStart)
	if err != nil {
		return generic.LineItem{}, err
	}
	if err := s.store.ReplaceWeeklyHours(ctx, id, filled.WeeklyHours); err != nil {
		return generic.LineItem{}, err
	}
	return filled, nil
}

// SetWeeklyHours overwrites the hours of the given weeks. Weeks are
// normalized to their bucket start.
func (s *Service) SetWeeklyHours(ctx context.Context, id generic.LineItemID, entries []generic.WeeklyHoursEntry) (generic.LineItem, error) {
	li, err := s.store.GetLineItem(ctx, id)
	if err != nil {
		return generic.LineItem{}, err
	}
	if _, err := s.editablePlan(ctx, li.PlanID); err != nil {
		return generic.LineItem{}, err
	}

	normalized := make([]generic.WeeklyHoursEntry, 0, len(entries))
	for _, e := range entries {
		if e.Hours.IsNegative() {
			return generic.LineItem{}, &generic.PatternParamsError{
				Pattern: generic.PatternCustom,
				Field:   "hours[" + e.WeekStart.String() + "]",
				Message: "must not be negative",
			}
		}
		normalized = append(normalized, generic.WeeklyHoursEntry{
			WeekStart: generic.WeekStartOf(e.WeekStart, s.weekStart),
			Hours:     e.Hours,
		})
	}

	li.WeeklyHours = generic.MergeWeeklyHours(li.WeeklyHours, normalized)
	if err := s.store.ReplaceWeeklyHours(ctx, id, li.WeeklyHours); err != nil {
		return generic.LineItem{}, err
	}
	return li, nil
}

// DeleteLineItem removes a line item from an unlocked plan.
func (s *Service) DeleteLineItem(ctx context.Context, id generic.LineItemID) error {
	li, err := s.store.GetLineItem(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.editablePlan(ctx, li.PlanID); err != nil {
		return err
	}
	return s.store.DeleteLineItem(ctx, id)
}

// =============================================================================
// TOTALS & WARNINGS
// =============================================================================

// Totals aggregates the plan's line items. The plan filter is forced to
// planID. When q asks for a currency but carries no rates, the store's
// rate table is used.
func (s *Service) Totals(ctx context.Context, planID generic.PlanID, q generic.AggregateQuery) (*generic.Report, error) {
	if _, err := s.store.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	items, err := s.store.ListLineItems(ctx, planID)
	if err != nil {
		return nil, err
	}

	q.Filter.PlanID = planID
	q.WeekStart = s.weekStart
	if q.Currency != "" && q.Rates == nil {
		if q.Rates, err = generic.LoadRates(ctx, s.store); err != nil {
			return nil, err
		}
	}
	return generic.Aggregate(items, q)
}

// Warnings lists weekly entries that do not line up with their line item,
// without computing totals.
func (s *Service) Warnings(ctx context.Context, planID generic.PlanID) ([]generic.RangeWarning, error) {
	if _, err := s.store.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	items, err := s.store.ListLineItems(ctx, planID)
	if err != nil {
		return nil, err
	}
	warnings := []generic.RangeWarning{}
	for _, li := range items {
		warnings = append(warnings, generic.RangeWarnings(li, s.weekStart)...)
	}
	return warnings, nil
}

// =============================================================================
// LOCK AS QUOTE
// =============================================================================

// LockAsQuote snapshots an estimate into a new locked quote and locks the
// estimate. An empty name derives one from the estimate.
func (s *Service) LockAsQuote(ctx context.Context, estimateID generic.PlanID, name string) (generic.Plan, error) {
	var quote generic.Plan
	lock := func(tx generic.Store) error {
		est, err := tx.GetPlan(ctx, estimateID)
		if err != nil {
			return err
		}
		if est.Locked {
			return fmt.Errorf("plan %s: %w", estimateID, generic.ErrPlanLocked)
		}

		if name == "" {
			name = est.Name + " (quote)"
		}
		quote = generic.Plan{
			ID:         generic.PlanID(uuid.NewString()),
			Kind:       generic.PlanQuote,
			Name:       name,
			GroupKey:   est.GroupKey,
			GroupLabel: est.GroupLabel,
			Currency:   est.Currency,
			DateRange:  est.DateRange,
			Locked:     true,
			SourceID:   est.ID,
		}
		if quote, err = tx.SavePlan(ctx, quote); err != nil {
			return err
		}

		items, err := tx.ListLineItems(ctx, est.ID)
		if err != nil {
			return err
		}
		for _, li := range items {
			cp := li.Clone()
			cp.ID = generic.LineItemID(uuid.NewString())
			cp.PlanID = quote.ID
			if _, err := tx.SaveLineItem(ctx, cp); err != nil {
				return err
			}
		}

		phases, err := tx.ListPhases(ctx, est.ID)
		if err != nil {
			return err
		}
		for _, ph := range phases {
			ph.ID = generic.PhaseID(uuid.NewString())
			ph.PlanID = quote.ID
			if _, err := tx.SavePhase(ctx, ph); err != nil {
				return err
			}
		}

		est.Locked = true
		_, err = tx.SavePlan(ctx, est)
		return err
	}

	var err error
	if txs, ok := s.store.(generic.TxStore); ok {
		err = txs.WithTx(ctx, lock)
	} else {
		err = lock(s.store)
	}
	if err != nil {
		return generic.Plan{}, err
	}

	log.Printf("[Estimate] Locked %s as quote %s", estimateID, quote.ID)
	return quote, nil
}

// =============================================================================
// PHASES
// =============================================================================

// AddPhase attaches a phase to an unlocked plan.
func (s *Service) AddPhase(ctx context.Context, planID generic.PlanID, ph generic.Phase) (generic.Phase, error) {
	if _, err := s.editablePlan(ctx, planID); err != nil {
		return generic.Phase{}, err
	}
	if err := ph.DateRange.Validate(); err != nil {
		return generic.Phase{}, err
	}
	ph.PlanID = planID
	return s.store.SavePhase(ctx, ph)
}
