/*
fill.go - Fill-pattern generator

PURPOSE:
  Distributes hours across the week buckets of a date range from a small
  parameter set, so a line item can be staffed without typing every week.

PATTERNS:
  uniform:      every week gets HoursPerWeek
  ramp_up:      linear from StartHours to EndHours, snapped to IntervalHours
  ramp_down:    the exact reverse of ramp_up for the same parameters
  ramp_up_down: first ceil(n/2) weeks ramp up, the rest mirror back down
  custom:       Hours map passed through; weeks not present get 0

EXAMPLE (ramp_up, 5 weeks, 0 -> 40, interval 8):
  raw:     0, 10, 20, 30, 40
  snapped: 0,  8, 24, 32, 40

IDEMPOTENCE:
  Fill is a pure function of (range, params, week start). Merging its
  output over existing entries twice gives the same result as once.

SEE ALSO:
  - factory/pattern.go: JSON configuration for patterns
  - types.go: LineItem.ApplyFill
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// PATTERN
// =============================================================================

type Pattern string

const (
	PatternUniform    Pattern = "uniform"
	PatternRampUp     Pattern = "ramp_up"
	PatternRampDown   Pattern = "ramp_down"
	PatternRampUpDown Pattern = "ramp_up_down"
	PatternCustom     Pattern = "custom"
)

// Patterns lists every supported pattern.
func Patterns() []Pattern {
	return []Pattern{PatternUniform, PatternRampUp, PatternRampDown, PatternRampUpDown, PatternCustom}
}

// FillParams carries the fields for one pattern; fields that do not apply
// to Pattern are ignored.
type FillParams struct {
	Pattern Pattern

	// uniform
	HoursPerWeek decimal.Decimal

	// ramp_up, ramp_down, ramp_up_down
	StartHours    decimal.Decimal
	EndHours      decimal.Decimal
	IntervalHours decimal.Decimal

	// custom: keyed by any day; days in the same week bucket are summed
	Hours map[Date]decimal.Decimal
}

// Constructors
func Uniform(hoursPerWeek decimal.Decimal) FillParams {
	return FillParams{Pattern: PatternUniform, HoursPerWeek: hoursPerWeek}
}

func Ramp(p Pattern, start, end, interval decimal.Decimal) FillParams {
	return FillParams{Pattern: p, StartHours: start, EndHours: end, IntervalHours: interval}
}

func Custom(hours map[Date]decimal.Decimal) FillParams {
	return FillParams{Pattern: PatternCustom, Hours: hours}
}

// Validate checks the parameters relevant to the pattern.
func (p FillParams) Validate() error {
	switch p.Pattern {
	case PatternUniform:
		if p.HoursPerWeek.IsNegative() {
			return &PatternParamsError{Pattern: p.Pattern, Field: "hoursPerWeek", Message: "must not be negative"}
		}
	case PatternRampUp, PatternRampDown, PatternRampUpDown:
		if p.StartHours.IsNegative() {
			return &PatternParamsError{Pattern: p.Pattern, Field: "startHours", Message: "must not be negative"}
		}
		if p.EndHours.IsNegative() {
			return &PatternParamsError{Pattern: p.Pattern, Field: "endHours", Message: "must not be negative"}
		}
		if !p.IntervalHours.IsPositive() {
			return &PatternParamsError{Pattern: p.Pattern, Field: "intervalHours", Message: "must be greater than zero"}
		}
	case PatternCustom:
		for week, h := range p.Hours {
			if h.IsNegative() {
				return &PatternParamsError{Pattern: p.Pattern, Field: "hours[" + week.String() + "]", Message: "must not be negative"}
			}
		}
	default:
		return &PatternParamsError{Pattern: p.Pattern, Field: "pattern", Message: "is not a known fill pattern"}
	}
	return nil
}

// =============================================================================
// GENERATOR
// =============================================================================

// Fill returns one entry per week bucket touched by r, in calendar order.
func Fill(r DateRange, p FillParams, ws WeekStart) ([]WeeklyHoursEntry, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	weeks := r.Weeks(ws)
	var hours []decimal.Decimal

	switch p.Pattern {
	case PatternUniform:
		hours = make([]decimal.Decimal, len(weeks))
		for i := range hours {
			hours[i] = p.HoursPerWeek
		}

	case PatternRampUp:
		hours = rampUp(len(weeks), p.StartHours, p.EndHours, p.IntervalHours)

	case PatternRampDown:
		hours = reversed(rampUp(len(weeks), p.StartHours, p.EndHours, p.IntervalHours))

	case PatternRampUpDown:
		upLen := (len(weeks) + 1) / 2
		up := rampUp(upLen, p.StartHours, p.EndHours, p.IntervalHours)
		down := reversed(up[:len(weeks)/2])
		hours = append(up, down...)

	case PatternCustom:
		// Keys sharing a bucket are summed, so map order never matters.
		custom := make(map[Date]decimal.Decimal, len(p.Hours))
		for day, h := range p.Hours {
			week := WeekStartOf(day, ws)
			custom[week] = custom[week].Add(h)
		}
		hours = make([]decimal.Decimal, len(weeks))
		for i, w := range weeks {
			if h, ok := custom[w]; ok {
				hours[i] = h
			} else {
				hours[i] = decimal.Zero
			}
		}
	}

	entries := make([]WeeklyHoursEntry, len(weeks))
	for i, w := range weeks {
		entries[i] = WeeklyHoursEntry{WeekStart: w, Hours: hours[i]}
	}
	return entries, nil
}

// rampUp interpolates linearly over n weeks and snaps each value to the
// nearest multiple of interval.
func rampUp(n int, start, end, interval decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	if n == 0 {
		return out
	}
	span := end.Sub(start)
	steps := decimal.NewFromInt(int64(n - 1))
	for i := 0; i < n; i++ {
		v := start
		if n > 1 {
			v = start.Add(span.Mul(decimal.NewFromInt(int64(i))).DivRound(steps, conversionPrecision))
		}
		out[i] = snap(v, interval)
	}
	return out
}

func snap(v, interval decimal.Decimal) decimal.Decimal {
	return v.DivRound(interval, conversionPrecision).Round(0).Mul(interval)
}

func reversed(in []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

// =============================================================================
// MERGE
// =============================================================================

// MergeWeeklyHours overlays generated entries on existing ones: weeks present
// in generated are replaced, other weeks are kept. The result is sorted and
// has no duplicate weeks. Neither input is modified.
func MergeWeeklyHours(existing, generated []WeeklyHoursEntry) []WeeklyHoursEntry {
	byWeek := make(map[Date]decimal.Decimal, len(existing)+len(generated))
	for _, e := range existing {
		byWeek[e.WeekStart] = e.Hours
	}
	for _, g := range generated {
		byWeek[g.WeekStart] = g.Hours
	}

	merged := make([]WeeklyHoursEntry, 0, len(byWeek))
	for week, h := range byWeek {
		merged = append(merged, WeeklyHoursEntry{WeekStart: week, Hours: h})
	}
	SortWeeklyHours(merged)
	return merged
}
