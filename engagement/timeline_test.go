package engagement_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/engagement-engine/engagement"
	"github.com/warp/engagement-engine/generic"
	"github.com/warp/engagement-engine/generic/store"
)

func rangePtr(start, end string) *generic.DateRange {
	r := generic.MustRange(start, end)
	return &r
}

func TestEntitiesFromPlans_RangeSources(t *testing.T) {
	// GIVEN: One plan with its own range, one with only line items,
	//        one with only phases, and one with nothing
	plans := []generic.Plan{
		{ID: "dated", Name: "Dated", GroupKey: "acme", DateRange: rangePtr("2024-01-01", "2024-03-31")},
		{ID: "items", Name: "From items", GroupKey: "acme"},
		{ID: "phases", GroupKey: "globex"},
		{ID: "empty", Name: "Unscheduled"},
	}
	items := map[generic.PlanID][]generic.LineItem{
		"dated": {{DateRange: generic.MustRange("2023-06-01", "2023-06-30")}},
		"items": {
			{DateRange: generic.MustRange("2024-05-01", "2024-05-31")},
			{DateRange: generic.MustRange("2024-02-01", "2024-02-15")},
		},
	}
	phases := map[generic.PlanID][]generic.Phase{
		"phases": {{ID: "ph-1", Name: "Kickoff", DateRange: generic.MustRange("2024-07-01", "2024-07-05"), Color: "#00aa00", RowOrder: 3}},
	}

	// WHEN: Building entities
	entities := engagement.EntitiesFromPlans(plans, phases, items)

	// THEN: The plan range wins, then the item union, otherwise none
	require.Len(t, entities, 4)
	assert.Equal(t, "[2024-01-01, 2024-03-31]", entities[0].Range.String())
	assert.Equal(t, "[2024-02-01, 2024-05-31]", entities[1].Range.String())
	assert.Nil(t, entities[2].Range)
	assert.Nil(t, entities[3].Range)

	// AND: Labels fall back to the ID and phases become children
	assert.Equal(t, "phases", entities[2].Label)
	require.Len(t, entities[2].Children, 1)
	child := entities[2].Children[0]
	assert.Equal(t, "ph-1", child.ID)
	assert.Equal(t, "#00aa00", child.Color)
	assert.Equal(t, 3, child.SortOrder)
}

func TestEntitiesFromPlans_DoesNotAliasInputs(t *testing.T) {
	plans := []generic.Plan{{ID: "p", Name: "P", DateRange: rangePtr("2024-01-01", "2024-01-31")}}

	entities := engagement.EntitiesFromPlans(plans, nil, nil)
	entities[0].Range.End = generic.MustParseDate("2030-01-01")

	assert.Equal(t, "2024-01-31", plans[0].DateRange.End.String())
}

func seedPortfolio(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()

	for _, p := range []generic.Plan{
		{ID: "eng-alpha", Kind: generic.PlanEngagement, Name: "Alpha", GroupKey: "acme", GroupLabel: "ACME", DateRange: rangePtr("2024-02-05", "2024-05-31")},
		{ID: "eng-beta", Kind: generic.PlanEngagement, Name: "Beta", GroupKey: "globex", GroupLabel: "Globex"},
		{ID: "est-1", Kind: generic.PlanEstimate, Name: "Draft", GroupKey: "acme", GroupLabel: "ACME", DateRange: rangePtr("2024-01-01", "2024-01-31")},
	} {
		_, err := s.SavePlan(ctx, p)
		require.NoError(t, err)
	}
	_, err := s.SavePhase(ctx, generic.Phase{ID: "ph-disc", PlanID: "eng-alpha", Name: "Discovery", RowOrder: 1, DateRange: generic.MustRange("2024-02-05", "2024-02-16")})
	require.NoError(t, err)
	_, err = s.SaveLineItem(ctx, generic.LineItem{
		ID: "li-1", PlanID: "eng-beta", RoleID: "dev", Rate: decimal.NewFromInt(100), Cost: decimal.NewFromInt(60),
		DateRange: generic.MustRange("2024-03-04", "2024-04-26"), Billable: true,
	})
	require.NoError(t, err)
	return s
}

func TestTimeline_AllEngagements(t *testing.T) {
	// GIVEN: Two engagements (one dated by its line items) and an estimate
	s := seedPortfolio(t)

	// WHEN: Laying out without explicit IDs
	layout, err := engagement.Timeline(context.Background(), s, nil, generic.LayoutOptions{})
	require.NoError(t, err)

	// THEN: Only engagements appear, phases under their parent
	var ids []string
	for _, r := range layout.Rows {
		ids = append(ids, r.EntityID)
	}
	assert.Equal(t, []string{"eng-alpha", "ph-disc", "eng-beta"}, ids)
	require.NotNil(t, layout.Rows[2].Bar)
	assert.Equal(t, "[2024-03-04, 2024-04-26]", layout.Rows[2].Bar.Range.String())
	assert.Len(t, layout.Groups, 2)
}

func TestTimeline_ExplicitIDs(t *testing.T) {
	ctx := context.Background()
	s := seedPortfolio(t)

	layout, err := engagement.Timeline(ctx, s, []generic.PlanID{"est-1"}, generic.LayoutOptions{WeekStart: generic.Monday})
	require.NoError(t, err)
	require.Len(t, layout.Rows, 1)
	assert.Equal(t, "est-1", layout.Rows[0].EntityID)
	assert.Equal(t, "Monday", layout.Columns[0].Start.Weekday().String())

	_, err = engagement.Timeline(ctx, s, []generic.PlanID{"missing"}, generic.LayoutOptions{})
	assert.True(t, errors.Is(err, generic.ErrPlanNotFound))
}
