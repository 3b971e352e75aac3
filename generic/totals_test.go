package generic_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/engagement-engine/generic"
)

// =============================================================================
// END-TO-END SCENARIOS
// =============================================================================

func TestScenario_BillableConsultant(t *testing.T) {
	// GIVEN: cost 50, rate 100, billable, 2024-01-01..2024-01-14, Monday-anchored
	//        buckets (2024-01-01 is a Monday, so the range is exactly two weeks)
	// WHEN: Filling uniform 40h/week and aggregating
	// THEN: 2 entries of 40h, 80h, cost 4000, revenue 8000, margin 4000, 50%

	li, err := consultant(true).ApplyFill(generic.Uniform(dec("40")), generic.Monday)
	require.NoError(t, err)
	require.Len(t, li.WeeklyHours, 2)
	assert.Equal(t, []string{"40", "40"}, hoursSeq(li.WeeklyHours))

	report, err := generic.Aggregate([]generic.LineItem{li}, generic.AggregateQuery{WeekStart: generic.Monday})
	require.NoError(t, err)

	assertDecimal(t, "80", report.Overall.Hours, "hours")
	assertDecimal(t, "4000", report.Overall.Cost, "cost")
	assertDecimal(t, "8000", report.Overall.Revenue, "revenue")
	assertDecimal(t, "4000", report.Overall.Margin, "margin")
	assertDecimal(t, "50", report.Overall.MarginPercentage, "margin %")
	assert.Empty(t, report.Warnings)
}

func TestScenario_NonBillableConsultant(t *testing.T) {
	// GIVEN: The same line item, not billable
	// WHEN: Filling and aggregating
	// THEN: Revenue 0, margin -4000, margin percentage exactly 0

	li, err := consultant(false).ApplyFill(generic.Uniform(dec("40")), generic.Monday)
	require.NoError(t, err)

	report, err := generic.Aggregate([]generic.LineItem{li}, generic.AggregateQuery{WeekStart: generic.Monday})
	require.NoError(t, err)

	assertDecimal(t, "80", report.Overall.Hours, "hours")
	assertDecimal(t, "4000", report.Overall.Cost, "cost")
	assertDecimal(t, "0", report.Overall.Revenue, "revenue")
	assertDecimal(t, "-4000", report.Overall.Margin, "margin")
	assertDecimal(t, "0", report.Overall.MarginPercentage, "margin %")
}

func TestScenario_SundayBucketsTouchThreeWeeks(t *testing.T) {
	// GIVEN: The same range bucketed Sunday-first (the hour-allocation default)
	// WHEN: Filling uniform 40h/week
	// THEN: Dec 31, Jan 7 and Jan 14 are all touched, so 120h are planned

	li, err := consultant(true).ApplyFill(generic.Uniform(dec("40")), generic.Sunday)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-12-31", "2024-01-07", "2024-01-14"}, weekSeq(li.WeeklyHours))

	report, err := generic.Aggregate([]generic.LineItem{li}, generic.AggregateQuery{})
	require.NoError(t, err)
	assertDecimal(t, "120", report.Overall.Hours, "hours")
	assertDecimal(t, "6000", report.Overall.Cost, "cost")
}

// =============================================================================
// GROUPING
// =============================================================================

func TestAggregate_MonthUsesWeekStart(t *testing.T) {
	// GIVEN: Buckets Jan 28 (running into February) and Feb 4, 10h each
	li := generic.LineItem{
		ID: "li-m", RoleID: "dev", Rate: dec("10"), Cost: dec("5"), Billable: true,
		DateRange: generic.MustRange("2024-01-28", "2024-02-10"),
	}
	li, err := li.ApplyFill(generic.Uniform(dec("10")), generic.Sunday)
	require.NoError(t, err)

	// WHEN: Grouping by month
	report, err := generic.Aggregate([]generic.LineItem{li}, generic.AggregateQuery{Dimension: generic.DimensionMonth})
	require.NoError(t, err)

	// THEN: The Jan 28 week lands wholly in January
	jan, ok := report.Group("2024-01")
	require.True(t, ok)
	feb, ok := report.Group("2024-02")
	require.True(t, ok)
	assertDecimal(t, "10", jan.Hours, "january")
	assertDecimal(t, "10", feb.Hours, "february")
	assertDecimal(t, "20", report.Overall.Hours, "overall")
}

func TestAggregate_RoleAndWeekGroups(t *testing.T) {
	items := []generic.LineItem{
		{ID: "a", RoleID: "dev", Rate: dec("100"), Cost: dec("60"), Billable: true,
			DateRange: generic.MustRange("2024-01-07", "2024-01-13"),
			WeeklyHours: []generic.WeeklyHoursEntry{{WeekStart: generic.MustParseDate("2024-01-07"), Hours: dec("10")}}},
		{ID: "b", RoleID: "pm", Rate: dec("150"), Cost: dec("90"), Billable: true,
			DateRange: generic.MustRange("2024-01-07", "2024-01-20"),
			WeeklyHours: []generic.WeeklyHoursEntry{
				{WeekStart: generic.MustParseDate("2024-01-07"), Hours: dec("4")},
				{WeekStart: generic.MustParseDate("2024-01-14"), Hours: dec("6")},
			}},
	}

	byRole, err := generic.Aggregate(items, generic.AggregateQuery{Dimension: generic.DimensionRole})
	require.NoError(t, err)
	require.Len(t, byRole.Groups, 2)
	assert.Equal(t, "dev", byRole.Groups[0].Key)
	assert.Equal(t, "pm", byRole.Groups[1].Key)
	assertDecimal(t, "1500", byRole.Groups[1].Totals.Revenue, "pm revenue")

	byWeek, err := generic.Aggregate(items, generic.AggregateQuery{Dimension: generic.DimensionWeek})
	require.NoError(t, err)
	first, ok := byWeek.Group("2024-01-07")
	require.True(t, ok)
	assertDecimal(t, "14", first.Hours, "week 1 hours")
	assertDecimal(t, "1600", first.Revenue, "week 1 revenue")
	assertDecimal(t, "960", first.Cost, "week 1 cost")
}

func TestAggregate_EmployeeGroupsPlaceholders(t *testing.T) {
	items := []generic.LineItem{
		{ID: "a", RoleID: "dev", EmployeeID: "alice", Rate: dec("1"), Cost: dec("1"), Billable: true, DateRange: fourWeeks},
		{ID: "b", RoleID: "dev", Rate: dec("1"), Cost: dec("1"), Billable: true, DateRange: fourWeeks},
	}
	report, err := generic.Aggregate(items, generic.AggregateQuery{Dimension: generic.DimensionEmployee})
	require.NoError(t, err)

	_, ok := report.Group("alice")
	assert.True(t, ok)
	_, ok = report.Group(generic.UnassignedEmployee)
	assert.True(t, ok)
}

func TestAggregate_Filter(t *testing.T) {
	items := []generic.LineItem{consultant(true), consultant(true)}
	items[1].ID, items[1].PlanID = "li-2", "est-2"
	for i := range items {
		var err error
		items[i], err = items[i].ApplyFill(generic.Uniform(dec("10")), generic.Monday)
		require.NoError(t, err)
	}

	report, err := generic.Aggregate(items, generic.AggregateQuery{Filter: generic.Filter{PlanID: "est-2"}, WeekStart: generic.Monday})
	require.NoError(t, err)
	assertDecimal(t, "20", report.Overall.Hours, "filtered hours")
}

func TestAggregate_InvalidDimension(t *testing.T) {
	_, err := generic.Aggregate(nil, generic.AggregateQuery{Dimension: "quarter"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvalidDimension))
}

func TestAggregate_EmptyInput(t *testing.T) {
	report, err := generic.Aggregate(nil, generic.AggregateQuery{})
	require.NoError(t, err)
	assert.Empty(t, report.Groups)
	assertDecimal(t, "0", report.Overall.MarginPercentage, "margin %")
}

// =============================================================================
// CURRENCY & EXPENSES
// =============================================================================

func TestAggregate_ConvertsIntoReportCurrency(t *testing.T) {
	// GIVEN: A EUR line item at rate 85 / cost 42.5, 10 hours
	li := generic.LineItem{
		ID: "eur", RoleID: "dev", Rate: dec("85"), Cost: dec("42.5"), Currency: "EUR", Billable: true,
		DateRange:   generic.MustRange("2024-01-07", "2024-01-13"),
		WeeklyHours: []generic.WeeklyHoursEntry{{WeekStart: generic.MustParseDate("2024-01-07"), Hours: dec("10")}},
	}
	rates := generic.Rates{"EUR": dec("0.85")}

	// WHEN: Reporting in USD
	report, err := generic.Aggregate([]generic.LineItem{li}, generic.AggregateQuery{Currency: generic.USD, Rates: rates})
	require.NoError(t, err)

	// THEN: Rate and cost are converted before summing
	assertDecimal(t, "1000", report.Overall.Revenue, "revenue")
	assertDecimal(t, "500", report.Overall.Cost, "cost")
	assert.Equal(t, generic.USD, report.Currency)

	// AND: A missing rate fails instead of defaulting to 1.0
	_, err = generic.Aggregate([]generic.LineItem{li}, generic.AggregateQuery{Currency: "GBP", Rates: rates})
	assert.True(t, errors.Is(err, generic.ErrUnknownCurrency))
}

func TestAggregate_BillableExpenses(t *testing.T) {
	pct := dec("10")
	billable, err := consultant(true).ApplyFill(generic.Uniform(dec("40")), generic.Monday)
	require.NoError(t, err)
	billable.BillableExpensePercentage = &pct

	nonBillable := billable.Clone()
	nonBillable.ID, nonBillable.Billable = "li-nb", false

	report, err := generic.Aggregate([]generic.LineItem{billable, nonBillable}, generic.AggregateQuery{WeekStart: generic.Monday})
	require.NoError(t, err)
	assertDecimal(t, "800", report.Overall.BillableExpenses, "expenses")
}

// =============================================================================
// RANGE WARNINGS
// =============================================================================

func TestAggregate_OutOfRangeEntriesWarnedAndExcluded(t *testing.T) {
	// GIVEN: A one-week item with an extra entry in March
	li := generic.LineItem{
		ID: "li-w", RoleID: "dev", Rate: dec("100"), Cost: dec("50"), Billable: true,
		DateRange: generic.MustRange("2024-01-07", "2024-01-13"),
		WeeklyHours: []generic.WeeklyHoursEntry{
			{WeekStart: generic.MustParseDate("2024-01-07"), Hours: dec("10")},
			{WeekStart: generic.MustParseDate("2024-03-03"), Hours: dec("5")},
		},
	}

	// WHEN: Aggregating
	report, err := generic.Aggregate([]generic.LineItem{li}, generic.AggregateQuery{})
	require.NoError(t, err)

	// THEN: The March hours are not counted but are reported
	assertDecimal(t, "10", report.Overall.Hours, "hours")
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, generic.WarningOutsideRange, report.Warnings[0].Reason)
	assert.Equal(t, "2024-03-03", report.Warnings[0].WeekStart.String())
	assert.Len(t, li.WeeklyHours, 2, "input untouched")
}

func TestRangeWarnings_MisalignedWeek(t *testing.T) {
	li := generic.LineItem{
		ID:          "li-x",
		DateRange:   generic.MustRange("2024-01-07", "2024-01-20"),
		WeeklyHours: []generic.WeeklyHoursEntry{{WeekStart: generic.MustParseDate("2024-01-09"), Hours: dec("8")}},
	}

	warnings := generic.RangeWarnings(li, generic.Sunday)
	require.Len(t, warnings, 1)
	assert.Equal(t, generic.WarningMisalignedWeek, warnings[0].Reason)
	assertDecimal(t, "8", warnings[0].Hours, "hours")
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestAggregate_MarginProperties(t *testing.T) {
	// margin == revenue - cost; margin % == 0 whenever revenue == 0; a
	// non-billable item never contributes revenue whatever its rate.
	rng := rand.New(rand.NewSource(42))
	origin := generic.MustParseDate("2024-01-01")
	dims := []generic.Dimension{generic.DimensionNone, generic.DimensionWeek, generic.DimensionMonth, generic.DimensionRole}

	for trial := 0; trial < 150; trial++ {
		n := rng.Intn(5) + 1
		items := make([]generic.LineItem, n)
		allNonBillable := true
		for i := range items {
			start := origin.AddDays(rng.Intn(90))
			li := generic.LineItem{
				ID:        generic.LineItemID(string(rune('a' + i))),
				RoleID:    generic.RoleID([]string{"dev", "pm", "qa"}[rng.Intn(3)]),
				Rate:      decimal.NewFromInt(rng.Int63n(300)),
				Cost:      decimal.NewFromInt(rng.Int63n(200)),
				Billable:  rng.Intn(3) > 0,
				DateRange: generic.DateRange{Start: start, End: start.AddDays(rng.Intn(60))},
			}
			if li.Billable {
				allNonBillable = false
			}
			filled, err := li.ApplyFill(generic.Uniform(decimal.NewFromInt(rng.Int63n(41))), generic.Sunday)
			require.NoError(t, err)
			items[i] = filled
		}

		report, err := generic.Aggregate(items, generic.AggregateQuery{Dimension: dims[rng.Intn(len(dims))]})
		require.NoError(t, err)

		check := func(label string, tot generic.Totals) {
			assert.True(t, tot.Margin.Equal(tot.Revenue.Sub(tot.Cost)), "trial %d %s: margin", trial, label)
			if tot.Revenue.IsZero() {
				assert.True(t, tot.MarginPercentage.IsZero(), "trial %d %s: margin %% with zero revenue", trial, label)
			}
		}
		check("overall", report.Overall)
		for _, g := range report.Groups {
			check(g.Key, g.Totals)
		}
		if allNonBillable {
			assert.True(t, report.Overall.Revenue.IsZero(), "trial %d: non-billable revenue", trial)
		}
	}
}
