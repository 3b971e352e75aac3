package factory_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/engagement-engine/factory"
	"github.com/warp/engagement-engine/generic"
	"github.com/warp/engagement-engine/generic/store"
)

const planYAML = `
week_start: sunday
rates:
  - code: eur
    rate_to_usd: 0.85
plans:
  - id: est-1
    kind: estimate
    name: Data platform
    group_key: acme
    group_label: ACME Corp
    start: 2024-01-01
    end: 2024-02-29
    line_items:
      - role: senior-consultant
        delivery_center: nyc
        rate: 100
        cost: 50
        start: 2024-01-01
        end: 2024-01-14
        fill: {pattern: uniform, hoursPerWeek: 40}
        weekly_hours:
          2024-01-10: 12
      - id: li-pm
        role: project-manager
        employee: emp-7
        rate: "150.50"
        cost: 90
        currency: EUR
        start: 2024-01-07
        end: 2024-01-13
        billable: false
    phases:
      - name: Discovery
        start: 2024-01-01
        end: 2024-01-07
        color: "#ff8800"
        row_order: 1
`

func TestParse_YAMLDocument(t *testing.T) {
	// GIVEN: A YAML document with unquoted dates, a fill pattern and an override
	// WHEN: Parsing it
	doc, err := factory.NewPlanFactory().Parse([]byte(planYAML))
	require.NoError(t, err)

	// THEN: Rates are normalized with USD pinned
	assert.Equal(t, generic.Sunday, doc.WeekStart)
	assert.True(t, doc.Rates["EUR"].Equal(decimal.RequireFromString("0.85")))
	assert.True(t, doc.Rates[generic.USD].Equal(decimal.NewFromInt(1)))

	// AND: The plan carries its range and defaults
	require.Len(t, doc.Plans, 1)
	plan := doc.Plans[0].Plan
	assert.Equal(t, generic.PlanID("est-1"), plan.ID)
	assert.Equal(t, generic.PlanEstimate, plan.Kind)
	assert.Equal(t, generic.USD, plan.Currency)
	require.NotNil(t, plan.DateRange)
	assert.Equal(t, "[2024-01-01, 2024-02-29]", plan.DateRange.String())

	// AND: The filled item has 40h per Sunday bucket with the Jan 7 week overridden
	items := doc.Plans[0].LineItems
	require.Len(t, items, 2)
	filled := items[0]
	assert.Equal(t, generic.LineItemID("est-1-li-1"), filled.ID)
	assert.True(t, filled.Billable, "billable defaults to true")
	assert.Equal(t, generic.USD, filled.Currency, "inherits the plan currency")
	require.Len(t, filled.WeeklyHours, 3)
	assert.Equal(t, "2023-12-31", filled.WeeklyHours[0].WeekStart.String())
	assert.True(t, filled.HoursFor(generic.MustParseDate("2024-01-07")).Equal(decimal.NewFromInt(12)))
	assert.True(t, filled.HoursFor(generic.MustParseDate("2024-01-14")).Equal(decimal.NewFromInt(40)))

	// AND: Explicit fields on the second item win
	pm := items[1]
	assert.Equal(t, generic.LineItemID("li-pm"), pm.ID)
	assert.Equal(t, generic.EmployeeID("emp-7"), pm.EmployeeID)
	assert.Equal(t, generic.Currency("EUR"), pm.Currency)
	assert.False(t, pm.Billable)
	assert.True(t, pm.Rate.Equal(decimal.RequireFromString("150.5")))
	assert.Empty(t, pm.WeeklyHours)

	// AND: Phases get generated IDs
	require.Len(t, doc.Plans[0].Phases, 1)
	phase := doc.Plans[0].Phases[0]
	assert.Equal(t, generic.PhaseID("est-1-phase-1"), phase.ID)
	assert.Equal(t, "#ff8800", phase.Color)
	assert.Equal(t, 1, phase.RowOrder)

	assert.Len(t, doc.Items(), 2)
}

func TestParse_JSONDocumentDefaults(t *testing.T) {
	body := `{"week_start": "monday", "plans": [{"name": "Rollout", "kind": "engagement", "currency": "gbp"}]}`

	doc, err := factory.NewPlanFactory().Parse([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, generic.Monday, doc.WeekStart)
	require.Len(t, doc.Plans, 1)
	plan := doc.Plans[0].Plan
	assert.Equal(t, generic.PlanID("plan-1"), plan.ID)
	assert.Equal(t, generic.PlanEngagement, plan.Kind)
	assert.Equal(t, generic.Currency("GBP"), plan.Currency)
	assert.Nil(t, plan.DateRange)
	assert.Len(t, doc.Rates, 1)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"inverted plan range", `{"plans": [{"name": "x", "start": "2024-02-01", "end": "2024-01-01"}]}`, generic.ErrInvalidRange},
		{"bad item date", `{"plans": [{"name": "x", "line_items": [{"role": "r", "start": "2024-13-01", "end": "2024-12-01"}]}]}`, generic.ErrInvalidDateFormat},
		{"bad fill", `{"plans": [{"name": "x", "line_items": [{"role": "r", "start": "2024-01-01", "end": "2024-01-31", "fill": {"pattern": "uniform"}}]}]}`, generic.ErrInvalidPatternParams},
		{"USD not one", `{"rates": [{"code": "USD", "rate_to_usd": 2}], "plans": []}`, generic.ErrInvalidRate},
		{"duplicate rate", `{"rates": [{"code": "EUR", "rate_to_usd": 0.8}, {"code": "eur", "rate_to_usd": 0.9}], "plans": []}`, generic.ErrInvalidRate},
		{"bad phase", `{"plans": [{"name": "x", "phases": [{"name": "p", "start": "2024-02-01", "end": "2024-01-01"}]}]}`, generic.ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory.NewPlanFactory().Parse([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	_, err := factory.NewPlanFactory().Parse([]byte(`{"week_start": "friday", "plans": []}`))
	assert.Error(t, err)
	_, err = factory.NewPlanFactory().Parse([]byte("plans: [\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(planYAML), 0o644))

	doc, err := factory.NewPlanFactory().LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, doc.Plans, 1)

	_, err = factory.NewPlanFactory().LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDocument_Seed(t *testing.T) {
	// GIVEN: A parsed document and an empty transactional store
	ctx := context.Background()
	doc, err := factory.NewPlanFactory().Parse([]byte(planYAML))
	require.NoError(t, err)
	s := store.NewTxMemory()

	// WHEN: Seeding
	require.NoError(t, doc.Seed(ctx, s))

	// THEN: Rates, plans, line items with hours and phases are stored
	rates, err := generic.LoadRates(ctx, s)
	require.NoError(t, err)
	assert.True(t, rates["EUR"].Equal(decimal.RequireFromString("0.85")))

	items, err := s.ListLineItems(ctx, "est-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Len(t, items[0].WeeklyHours, 3)

	phases, err := s.ListPhases(ctx, "est-1")
	require.NoError(t, err)
	assert.Len(t, phases, 1)
}
