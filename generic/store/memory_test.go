package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/engagement-engine/generic"
	"github.com/warp/engagement-engine/generic/store"
)

func seedPlan(t *testing.T, s generic.Store) generic.Plan {
	t.Helper()
	r := generic.MustRange("2024-01-01", "2024-03-31")
	p, err := s.SavePlan(context.Background(), generic.Plan{
		ID: "est-1", Kind: generic.PlanEstimate, Name: "Data platform", Currency: generic.USD, DateRange: &r,
	})
	require.NoError(t, err)
	return p
}

func TestMemory_PlanRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	p := seedPlan(t, s)

	got, err := s.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	// Returned plans are copies
	got.DateRange.End = generic.MustParseDate("2030-01-01")
	again, err := s.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-31", again.DateRange.End.String())

	_, err = s.GetPlan(ctx, "missing")
	assert.True(t, errors.Is(err, generic.ErrPlanNotFound))
}

func TestMemory_ListPlansByKind(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedPlan(t, s)
	_, err := s.SavePlan(ctx, generic.Plan{Kind: generic.PlanEngagement, Name: "Rollout"})
	require.NoError(t, err)

	all, err := s.ListPlans(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	engagements, err := s.ListPlans(ctx, generic.PlanEngagement)
	require.NoError(t, err)
	require.Len(t, engagements, 1)
	assert.NotEmpty(t, engagements[0].ID, "empty IDs are generated")
}

func TestMemory_LineItemsAndWeeklyHours(t *testing.T) {
	// GIVEN: A plan with one line item
	ctx := context.Background()
	s := store.NewMemory()
	p := seedPlan(t, s)

	li, err := s.SaveLineItem(ctx, generic.LineItem{
		PlanID: p.ID, RoleID: "dev", Rate: decimal.NewFromInt(100), Cost: decimal.NewFromInt(50),
		DateRange: generic.MustRange("2024-01-07", "2024-01-20"), Billable: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, li.ID)

	// WHEN: Replacing its weekly hours with unsorted entries
	err = s.ReplaceWeeklyHours(ctx, li.ID, []generic.WeeklyHoursEntry{
		{WeekStart: generic.MustParseDate("2024-01-14"), Hours: decimal.NewFromInt(20)},
		{WeekStart: generic.MustParseDate("2024-01-07"), Hours: decimal.NewFromInt(30)},
	})
	require.NoError(t, err)

	// THEN: They come back sorted by week
	got, err := s.GetLineItem(ctx, li.ID)
	require.NoError(t, err)
	require.Len(t, got.WeeklyHours, 2)
	assert.Equal(t, "2024-01-07", got.WeeklyHours[0].WeekStart.String())
	assert.True(t, got.WeeklyHours[0].Hours.Equal(decimal.NewFromInt(30)))

	items, err := s.ListLineItems(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	// AND: Deleting twice reports not found the second time
	require.NoError(t, s.DeleteLineItem(ctx, li.ID))
	assert.True(t, errors.Is(s.DeleteLineItem(ctx, li.ID), generic.ErrLineItemNotFound))
	assert.True(t, errors.Is(s.ReplaceWeeklyHours(ctx, li.ID, nil), generic.ErrLineItemNotFound))
}

func TestMemory_LineItemRequiresPlan(t *testing.T) {
	_, err := store.NewMemory().SaveLineItem(context.Background(), generic.LineItem{PlanID: "nope"})
	assert.True(t, errors.Is(err, generic.ErrPlanNotFound))

	_, err = store.NewMemory().SavePhase(context.Background(), generic.Phase{PlanID: "nope"})
	assert.True(t, errors.Is(err, generic.ErrPlanNotFound))
}

func TestMemory_PhasesOrderedByRowOrder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	p := seedPlan(t, s)

	for _, ph := range []generic.Phase{
		{ID: "b", PlanID: p.ID, Name: "Build", RowOrder: 2, DateRange: generic.MustRange("2024-02-01", "2024-03-01")},
		{ID: "a", PlanID: p.ID, Name: "Discovery", RowOrder: 1, DateRange: generic.MustRange("2024-01-01", "2024-01-31")},
	} {
		_, err := s.SavePhase(ctx, ph)
		require.NoError(t, err)
	}

	phases, err := s.ListPhases(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, phases, 2)
	assert.Equal(t, "Discovery", phases[0].Name)
}

func TestMemory_Rates(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	require.NoError(t, s.SaveRate(ctx, generic.CurrencyRate{Code: "eur", RateToUSD: decimal.RequireFromString("0.85")}))
	assert.True(t, errors.Is(s.SaveRate(ctx, generic.CurrencyRate{Code: "GBP", RateToUSD: decimal.Zero}), generic.ErrInvalidRate))

	rates, err := generic.LoadRates(ctx, s)
	require.NoError(t, err)
	assert.Len(t, rates, 2)
	assert.True(t, rates["EUR"].Equal(decimal.RequireFromString("0.85")))

	// USD is never deleted; unknown codes are reported
	assert.True(t, errors.Is(s.DeleteRate(ctx, generic.USD), generic.ErrInvalidRate))
	assert.True(t, errors.Is(s.DeleteRate(ctx, "CHF"), generic.ErrUnknownCurrency))
	require.NoError(t, s.DeleteRate(ctx, "EUR"))

	rows, err := s.ListRates(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, generic.USD, rows[0].Code)
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedPlan(t, s)
	require.NoError(t, s.SaveRate(ctx, generic.CurrencyRate{Code: "EUR", RateToUSD: decimal.RequireFromString("0.85")}))

	require.NoError(t, s.Reset(ctx))

	plans, err := s.ListPlans(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, plans)
	rows, err := s.ListRates(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestTxMemory_RollbackOnError(t *testing.T) {
	// GIVEN: A transactional store with one plan
	ctx := context.Background()
	s := store.NewTxMemory()
	p := seedPlan(t, s)

	// WHEN: A transaction writes and then fails
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx generic.Store) error {
		if _, err := tx.SavePlan(ctx, generic.Plan{ID: "quote-1", Kind: generic.PlanQuote}); err != nil {
			return err
		}
		locked := p
		locked.Locked = true
		if _, err := tx.SavePlan(ctx, locked); err != nil {
			return err
		}
		return boom
	})

	// THEN: Nothing it wrote is visible
	assert.ErrorIs(t, err, boom)
	_, err = s.GetPlan(ctx, "quote-1")
	assert.True(t, errors.Is(err, generic.ErrPlanNotFound))
	got, err := s.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Locked)
}

func TestTxMemory_Commit(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	p := seedPlan(t, s)

	err := s.WithTx(ctx, func(tx generic.Store) error {
		_, err := tx.SaveLineItem(ctx, generic.LineItem{ID: "li-1", PlanID: p.ID, DateRange: generic.MustRange("2024-01-01", "2024-01-02")})
		return err
	})
	require.NoError(t, err)

	_, err = s.GetLineItem(ctx, "li-1")
	assert.NoError(t, err)
}
