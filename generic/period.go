package generic

// =============================================================================
// DATE RANGE - Inclusive [Start, End] interval of civil dates
// =============================================================================

// DateRange is inclusive on both ends.
//
// Examples:
//   - A two-week line item: 2024-01-01 .. 2024-01-14
//   - A single-day phase:  2024-03-01 .. 2024-03-01
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewRange parses both ends and validates Start <= End.
func NewRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	r := DateRange{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// MustRange is NewRange that panics. Use in tests and fixtures.
func MustRange(start, end string) DateRange {
	r, err := NewRange(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// Validate returns ErrInvalidRange if End is before Start.
func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return &RangeError{Range: r}
	}
	return nil
}

// Contains returns true if d is within [Start, End].
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Overlaps reports whether the two ranges share at least one day.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(r.End)
}

// Days is the number of calendar days covered, inclusive.
func (r DateRange) Days() int {
	return DaysBetween(r.Start, r.End) + 1
}

// Pad widens the range by n days on each side.
func (r DateRange) Pad(n int) DateRange {
	return DateRange{Start: r.Start.AddDays(-n), End: r.End.AddDays(n)}
}

// Union returns the smallest range covering both.
func (r DateRange) Union(other DateRange) DateRange {
	return DateRange{Start: MinDate(r.Start, other.Start), End: MaxDate(r.End, other.End)}
}

// Weeks returns the ordered week buckets whose 7-day span intersects the
// range. The result is a pure function of the range and ws.
func (r DateRange) Weeks(ws WeekStart) []Date {
	if r.End.Before(r.Start) {
		return nil
	}
	first := WeekStartOf(r.Start, ws)
	last := WeekStartOf(r.End, ws)
	weeks := make([]Date, 0, DaysBetween(first, last)/7+1)
	for w := first; w.BeforeOrEqual(last); w = w.AddDays(7) {
		weeks = append(weeks, w)
	}
	return weeks
}

// String returns a string representation of the range.
func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}
