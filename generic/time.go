package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Civil calendar date (no time of day, no zone)
// =============================================================================

// Date is a calendar day. It is comparable with == and safe as a map key,
// so the same string always means the same day regardless of host locale.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf takes the calendar day of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Clock returns "now". Injected so layout defaults stay testable.
type Clock func() time.Time

// Today returns the current civil date according to clock (nil = system clock).
func Today(clock Clock) Date {
	if clock == nil {
		clock = time.Now
	}
	return DateOf(clock())
}

// ParseDate accepts YYYY-MM-DD or an ISO-8601 datetime and keeps only the
// date portion. Any time or zone suffix is ignored, never converted.
func ParseDate(s string) (Date, error) {
	raw := strings.TrimSpace(s)
	datePart := raw
	if len(raw) > len(dateLayout) {
		sep := raw[len(dateLayout)]
		if sep != 'T' && sep != 't' && sep != ' ' {
			return Date{}, &DateFormatError{Input: s}
		}
		datePart = raw[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, datePart)
	if err != nil {
		return Date{}, &DateFormatError{Input: s, Cause: err}
	}
	return DateOf(t), nil
}

// MustParseDate panics on malformed input. Use in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

func (d Date) Before(other Date) bool        { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool         { return d.Compare(other) > 0 }
func (d Date) Equal(other Date) bool         { return d == other }
func (d Date) BeforeOrEqual(other Date) bool { return d.Compare(other) <= 0 }
func (d Date) AfterOrEqual(other Date) bool  { return d.Compare(other) >= 0 }
func (d Date) IsZero() bool                  { return d == Date{} }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Arithmetic
func (d Date) AddDays(n int) Date   { return DateOf(d.time().AddDate(0, 0, n)) }
func (d Date) AddMonths(n int) Date { return DateOf(d.time().AddDate(0, n, 0)) }
func (d Date) AddYears(n int) Date  { return DateOf(d.time().AddDate(n, 0, 0)) }

// Properties
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

// MonthKey is the YYYY-MM bucket the day belongs to.
func (d Date) MonthKey() string { return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month)) }

// String formats as zero-padded YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// WEEK BUCKETS
// =============================================================================

// WeekStart selects which weekday anchors a week bucket. Hours are bucketed
// Sunday-first; Gantt columns may be laid out Monday-first.
type WeekStart int

const (
	Sunday WeekStart = iota
	Monday
)

// DefaultWeekStart is the convention for hour allocation buckets.
const DefaultWeekStart = Sunday

func (ws WeekStart) weekday() time.Weekday {
	if ws == Monday {
		return time.Monday
	}
	return time.Sunday
}

func (ws WeekStart) String() string {
	if ws == Monday {
		return "monday"
	}
	return "sunday"
}

// ParseWeekStart maps "sunday"/"monday" (case-insensitive); empty = Sunday.
func ParseWeekStart(s string) (WeekStart, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sunday", "sun":
		return Sunday, nil
	case "monday", "mon":
		return Monday, nil
	default:
		return Sunday, fmt.Errorf("unknown week start %q", s)
	}
}

// WeekStartOf returns the bucket day on or before d.
func WeekStartOf(d Date, ws WeekStart) Date {
	offset := (int(d.Weekday()) - int(ws.weekday()) + 7) % 7
	return d.AddDays(-offset)
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween returns to - from in whole days.
func DaysBetween(from, to Date) int {
	return int(to.time().Sub(from.time()).Hours() / 24)
}

func StartOfYear(year int) Date { return NewDate(year, time.January, 1) }

func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}
