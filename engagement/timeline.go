/*
Package engagement projects engagement resource plans onto the portfolio
timeline.

PURPOSE:
  Engagements are plans of kind "engagement" grouped by account. The
  portfolio view shows one bar per engagement, its phases underneath, and
  one color per account. This package turns stored plans into
  generic.TimelineEntity trees and hands them to generic.Layout.

RANGE OF AN ENGAGEMENT ROW:
  1. The plan's own date range, when set
  2. Otherwise the union of its line item ranges
  3. Otherwise the union of its phases (derived by the layout engine)
  4. Otherwise undated (sorted last, no bar)

SEE ALSO:
  - generic/timeline.go: Layout engine
  - api/handlers.go: GET /api/timeline
*/
package engagement

import (
	"context"

	"github.com/warp/engagement-engine/generic"
)

// EntitiesFromPlans builds one entity per plan with its phases as
// children. Inputs are not modified.
func EntitiesFromPlans(
	plans []generic.Plan,
	phasesByPlan map[generic.PlanID][]generic.Phase,
	itemsByPlan map[generic.PlanID][]generic.LineItem,
) []generic.TimelineEntity {
	entities := make([]generic.TimelineEntity, 0, len(plans))
	for _, p := range plans {
		e := generic.TimelineEntity{
			ID:         string(p.ID),
			Label:      p.Name,
			GroupKey:   p.GroupKey,
			GroupLabel: p.GroupLabel,
		}
		if e.Label == "" {
			e.Label = string(p.ID)
		}

		switch {
		case p.DateRange != nil:
			r := *p.DateRange
			e.Range = &r
		default:
			if r, ok := itemSpan(itemsByPlan[p.ID]); ok {
				e.Range = &r
			}
		}

		for _, ph := range phasesByPlan[p.ID] {
			r := ph.DateRange
			e.Children = append(e.Children, generic.TimelineEntity{
				ID:        string(ph.ID),
				Label:     ph.Name,
				Range:     &r,
				Color:     ph.Color,
				SortOrder: ph.RowOrder,
			})
		}
		entities = append(entities, e)
	}
	return entities
}

func itemSpan(items []generic.LineItem) (generic.DateRange, bool) {
	if len(items) == 0 {
		return generic.DateRange{}, false
	}
	r := items[0].DateRange
	for _, li := range items[1:] {
		r = r.Union(li.DateRange)
	}
	return r, true
}

// Timeline lays out the given plans. With no IDs, every engagement plan in
// the store is included.
func Timeline(ctx context.Context, store generic.Store, planIDs []generic.PlanID, opts generic.LayoutOptions) (*generic.TimelineLayout, error) {
	var plans []generic.Plan
	if len(planIDs) == 0 {
		var err error
		if plans, err = store.ListPlans(ctx, generic.PlanEngagement); err != nil {
			return nil, err
		}
	} else {
		for _, id := range planIDs {
			p, err := store.GetPlan(ctx, id)
			if err != nil {
				return nil, err
			}
			plans = append(plans, p)
		}
	}

	phases := make(map[generic.PlanID][]generic.Phase, len(plans))
	items := make(map[generic.PlanID][]generic.LineItem, len(plans))
	for _, p := range plans {
		ph, err := store.ListPhases(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		phases[p.ID] = ph

		if p.DateRange == nil {
			li, err := store.ListLineItems(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			items[p.ID] = li
		}
	}

	return generic.Layout(EntitiesFromPlans(plans, phases, items), opts)
}
