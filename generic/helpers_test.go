package generic_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/engagement-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, label string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s, got %s", label, want, got)
}

// hoursSeq flattens entries into their hour values, in order.
func hoursSeq(entries []generic.WeeklyHoursEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Hours.String()
	}
	return out
}

func weekSeq(entries []generic.WeeklyHoursEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.WeekStart.String()
	}
	return out
}

// consultant is the line item used by the end-to-end scenarios:
// rate 100, cost 50, 2024-01-01 .. 2024-01-14.
func consultant(billable bool) generic.LineItem {
	return generic.LineItem{
		ID:               "li-1",
		PlanID:           "est-1",
		RoleID:           "senior-consultant",
		DeliveryCenterID: "nyc",
		Rate:             decimal.NewFromInt(100),
		Cost:             decimal.NewFromInt(50),
		Currency:         generic.USD,
		DateRange:        generic.MustRange("2024-01-01", "2024-01-14"),
		Billable:         billable,
	}
}
