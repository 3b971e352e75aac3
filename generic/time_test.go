package generic_test

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/engagement-engine/generic"
)

// =============================================================================
// PARSING & FORMATTING
// =============================================================================

func TestParseDate_AcceptsDateAndDatetime(t *testing.T) {
	// GIVEN: The same calendar day written with and without time/zone suffixes
	// WHEN: Parsing each form
	// THEN: The date portion is kept verbatim, never shifted by the zone

	inputs := []string{
		"2024-03-01",
		"2024-03-01T00:00:00Z",
		"2024-03-01T23:59:59-11:00",
		"2024-03-01T01:00:00+14:00",
		"2024-03-01 08:30",
	}
	for _, in := range inputs {
		d, err := generic.ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, generic.NewDate(2024, time.March, 1), d, in)
	}
}

func TestParseDate_RejectsMalformedInput(t *testing.T) {
	// GIVEN: Strings that are not YYYY-MM-DD or name impossible days
	// WHEN: Parsing
	// THEN: InvalidDateFormat is returned

	for _, in := range []string{"", "2024-1-5", "2024/01/05", "2024-13-01", "2023-02-29", "2024-02-30", "yesterday", "2024-01-01X"} {
		_, err := generic.ParseDate(in)
		require.Error(t, err, in)
		assert.True(t, errors.Is(err, generic.ErrInvalidDateFormat), "input %q: %v", in, err)
		assert.True(t, generic.IsClientError(err))
	}
}

func TestParseDate_LeapDay(t *testing.T) {
	d, err := generic.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
}

func TestDateString_ZeroPadded(t *testing.T) {
	assert.Equal(t, "2024-01-05", generic.NewDate(2024, time.January, 5).String())
	assert.Equal(t, "0999-12-31", generic.NewDate(999, time.December, 31).String())
}

func TestDate_JSONMapKey(t *testing.T) {
	// GIVEN: A map keyed by civil dates
	// WHEN: Encoding and decoding it as JSON
	// THEN: Keys are YYYY-MM-DD strings and decode back to the same days

	in := map[generic.Date]decimal.Decimal{
		generic.MustParseDate("2024-01-07"): decimal.NewFromInt(12),
	}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2024-01-07":"12"}`, string(raw))

	var out map[generic.Date]decimal.Decimal
	require.NoError(t, json.Unmarshal(raw, &out))
	assertDecimal(t, "12", out[generic.MustParseDate("2024-01-07")], "hours")
}

// =============================================================================
// WEEK BUCKETS
// =============================================================================

func TestWeekStartOf_Sunday(t *testing.T) {
	// GIVEN: Days across one Sunday-anchored week (2024-01-07 is a Sunday)
	// WHEN: Bucketing Sunday-first
	// THEN: Every day maps to 2024-01-07

	sunday := generic.MustParseDate("2024-01-07")
	for i := 0; i < 7; i++ {
		assert.Equal(t, sunday, generic.WeekStartOf(sunday.AddDays(i), generic.Sunday))
	}
	assert.Equal(t, generic.MustParseDate("2023-12-31"), generic.WeekStartOf(generic.MustParseDate("2024-01-01"), generic.Sunday))
}

func TestWeekStartOf_Monday(t *testing.T) {
	assert.Equal(t, generic.MustParseDate("2024-01-01"), generic.WeekStartOf(generic.MustParseDate("2024-01-07"), generic.Monday))
	assert.Equal(t, generic.MustParseDate("2024-01-08"), generic.WeekStartOf(generic.MustParseDate("2024-01-08"), generic.Monday))
}

func TestParseWeekStart(t *testing.T) {
	ws, err := generic.ParseWeekStart("")
	require.NoError(t, err)
	assert.Equal(t, generic.Sunday, ws)

	ws, err = generic.ParseWeekStart("Monday")
	require.NoError(t, err)
	assert.Equal(t, generic.Monday, ws)

	_, err = generic.ParseWeekStart("friday")
	assert.Error(t, err)
}

func TestWeeks_CrossingYearBoundary(t *testing.T) {
	// GIVEN: A two-week range starting on a Monday
	r := generic.MustRange("2024-01-01", "2024-01-14")

	// WHEN: Listing Sunday buckets
	weeks := r.Weeks(generic.Sunday)

	// THEN: The bucket containing Jan 1 starts on Dec 31; Jan 14 opens a third bucket
	require.Len(t, weeks, 3)
	assert.Equal(t, "2023-12-31", weeks[0].String())
	assert.Equal(t, "2024-01-07", weeks[1].String())
	assert.Equal(t, "2024-01-14", weeks[2].String())

	// AND: Monday buckets line up with the range exactly
	monday := r.Weeks(generic.Monday)
	require.Len(t, monday, 2)
	assert.Equal(t, "2024-01-01", monday[0].String())
	assert.Equal(t, "2024-01-08", monday[1].String())
}

func TestWeeks_Properties(t *testing.T) {
	// Single-day ranges yield exactly one bucket; every bucket of any range
	// intersects it, is a week start, and buckets are 7 days apart.
	rng := rand.New(rand.NewSource(42))
	origin := generic.MustParseDate("2020-01-01")

	for trial := 0; trial < 300; trial++ {
		start := origin.AddDays(rng.Intn(2000))
		ws := generic.WeekStart(rng.Intn(2))

		single := generic.DateRange{Start: start, End: start}
		assert.Len(t, single.Weeks(ws), 1, "trial %d: single day %s", trial, start)

		r := generic.DateRange{Start: start, End: start.AddDays(rng.Intn(120))}
		weeks := r.Weeks(ws)
		require.NotEmpty(t, weeks)
		for i, w := range weeks {
			assert.Equal(t, w, generic.WeekStartOf(w, ws), "trial %d: %s is not a week start", trial, w)
			bucket := generic.DateRange{Start: w, End: w.AddDays(6)}
			assert.True(t, bucket.Overlaps(r), "trial %d: bucket %s outside %s", trial, w, r)
			if i > 0 {
				assert.Equal(t, 7, generic.DaysBetween(weeks[i-1], w), "trial %d", trial)
			}
		}
		assert.Equal(t, weeks, r.Weeks(ws), "trial %d: weeks must be deterministic", trial)
	}
}

// =============================================================================
// RANGES
// =============================================================================

func TestNewRange_EndBeforeStart(t *testing.T) {
	_, err := generic.NewRange("2024-02-01", "2024-01-31")
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvalidRange))
}

func TestDateRange_DaysPadUnion(t *testing.T) {
	r := generic.MustRange("2024-02-28", "2024-03-01")
	assert.Equal(t, 3, r.Days())

	padded := r.Pad(14)
	assert.Equal(t, "2024-02-14", padded.Start.String())
	assert.Equal(t, "2024-03-15", padded.End.String())

	u := r.Union(generic.MustRange("2024-01-10", "2024-01-12"))
	assert.Equal(t, "[2024-01-10, 2024-03-01]", u.String())
}
