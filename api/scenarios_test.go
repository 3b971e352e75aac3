/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario correctly sets up the expected state:
	- Rates are seeded and the snapshot refreshed
	- Plans, line items and phases are created
	- Lifecycle steps (locking) have run
	- Totals and timelines can be computed from the result

These tests double as integration tests over the SQLite store.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/engagement-engine/engagement"
	"github.com/warp/engagement-engine/generic"
	"github.com/warp/engagement-engine/store/sqlite"
)

func setupScenarioRouter(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := NewHandler(store)
	return handler, NewRouter(handler)
}

func loadScenario(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestScenario_EstimatePricing(t *testing.T) {
	// GIVEN: The estimate-pricing scenario
	// WHEN: Loading it
	// THEN: One unlocked estimate with three items and converted totals

	handler, router := setupScenarioRouter(t)
	ctx := context.Background()
	loadScenario(t, router, "estimate-pricing")

	plans, err := handler.Store.ListPlans(ctx, "")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.False(t, plans[0].Locked)

	items, err := handler.Store.ListLineItems(ctx, "est-platform")
	require.NoError(t, err)
	require.Len(t, items, 3)
	for _, li := range items {
		assert.NotEmpty(t, li.WeeklyHours, "%s should be filled", li.ID)
	}

	assert.Contains(t, handler.Rates.Rates(), generic.Currency("EUR"), "snapshot refreshed after load")

	report, err := handler.Estimates.Totals(ctx, "est-platform", generic.AggregateQuery{
		Dimension: generic.DimensionRole, Currency: generic.USD, Rates: handler.Rates.Rates(),
	})
	require.NoError(t, err)
	assert.Len(t, report.Groups, 3)
	assert.True(t, report.Overall.Revenue.IsPositive())
	assert.Empty(t, report.Warnings)

	pm, ok := report.Group("project-manager")
	require.True(t, ok)
	assert.True(t, pm.Revenue.IsZero(), "non-billable")
	assert.True(t, pm.Margin.IsNegative())
}

func TestScenario_QuoteLocked(t *testing.T) {
	handler, router := setupScenarioRouter(t)
	ctx := context.Background()
	loadScenario(t, router, "quote-locked")

	quotes, err := handler.Store.ListPlans(ctx, generic.PlanQuote)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.True(t, quotes[0].Locked)
	assert.Equal(t, generic.PlanID("est-platform"), quotes[0].SourceID)

	estimate, err := handler.Store.GetPlan(ctx, "est-platform")
	require.NoError(t, err)
	assert.True(t, estimate.Locked)

	items, err := handler.Store.ListLineItems(ctx, quotes[0].ID)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestScenario_Portfolio(t *testing.T) {
	handler, router := setupScenarioRouter(t)
	ctx := context.Background()
	loadScenario(t, router, "portfolio")

	layout, err := engagement.Timeline(ctx, handler.Store, nil, generic.LayoutOptions{})
	require.NoError(t, err)

	// Three engagements plus three phases
	assert.Len(t, layout.Rows, 6)
	require.Len(t, layout.Groups, 2)
	assert.Equal(t, "acme", layout.Groups[0].Key)
	for _, r := range layout.Rows {
		assert.NotNil(t, r.Bar, "%s should be dated", r.EntityID)
	}
}

func TestScenario_CurrentAndReset(t *testing.T) {
	_, router := setupScenarioRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, len(scenarios), decodeBody[ListResponse[ScenarioDTO]](t, rec).Total)

	rec = doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil)
	assert.JSONEq(t, "null", rec.Body.String())

	loadScenario(t, router, "portfolio")
	rec = doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "portfolio", decodeBody[ScenarioDTO](t, rec).ID)

	// Loading again replaces the data instead of duplicating it
	loadScenario(t, router, "portfolio")
	rec = doJSON(t, router, http.MethodGet, "/api/plans", nil)
	assert.Equal(t, 3, decodeBody[ListResponse[PlanDTO]](t, rec).Total)

	rec = doJSON(t, router, http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil)
	assert.JSONEq(t, "null", rec.Body.String())
	rec = doJSON(t, router, http.MethodGet, "/api/plans", nil)
	assert.Equal(t, 0, decodeBody[ListResponse[PlanDTO]](t, rec).Total)

	rec = doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	_, router := setupScenarioRouter(t)
	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			loadScenario(t, router, s.ID)
		})
	}
}
