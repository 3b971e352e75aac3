/*
timeline.go - Timeline layout engine

PURPOSE:
  Lays out engagements and their phases on a weekly Gantt grid. The output
  is a pure projection: bounds, week columns, one color per top-level group,
  and for every row the bar's partial-week offsets.

STEPS:
  1. Bounds:   min start / max end over entities and children, padded by
               14 days. Nothing dated -> [Jan 1 this year, Jan 1 next year].
  2. Columns:  one per week bucket of the bounds.
  3. Ordering: by earliest date (own start, else earliest child start),
               then group label, then label. Undated entities go last.
  4. Colors:   groups ordered by their first row, group i of n gets
               GroupColor(i, n). Children use their own color or the
               group color at ChildAlpha.
  5. Bars:     offsets are fractions of a 7-day column. A bar starts at the
               start of its start day and ends at the end of its end day.

DETERMINISM:
  Rows depend only on dates and labels, never on input order, so the same
  set of entities always yields the same layout.

SEE ALSO:
  - color.go: GroupColor
  - engagement/timeline.go: Builds entities from plans and phases
*/
package generic

import (
	"fmt"
	"sort"
)

// BoundsPaddingDays is added on each side of the computed bounds.
const BoundsPaddingDays = 14

// =============================================================================
// INPUT
// =============================================================================

// TimelineEntity is a projection of an engagement or phase for layout.
type TimelineEntity struct {
	ID         string           `json:"id"`
	Label      string           `json:"label"`
	GroupKey   string           `json:"group_key,omitempty"`
	GroupLabel string           `json:"group_label,omitempty"`
	Range      *DateRange       `json:"range,omitempty"`
	Color      string           `json:"color,omitempty"`
	SortOrder  int              `json:"sort_order,omitempty"`
	Children   []TimelineEntity `json:"children,omitempty"`
}

// earliest returns the entity's own start, else its earliest child start.
func (e TimelineEntity) earliest() (Date, bool) {
	if e.Range != nil {
		return e.Range.Start, true
	}
	var first Date
	found := false
	for _, c := range e.Children {
		if d, ok := c.earliest(); ok && (!found || d.Before(first)) {
			first, found = d, true
		}
	}
	return first, found
}

// span returns the entity's own range, else the union of its children.
func (e TimelineEntity) span() (DateRange, bool, bool) {
	if e.Range != nil {
		return *e.Range, true, false
	}
	var r DateRange
	found := false
	for _, c := range e.Children {
		cr, ok, _ := c.span()
		if !ok {
			continue
		}
		if !found {
			r, found = cr, true
		} else {
			r = r.Union(cr)
		}
	}
	return r, found, found
}

func (e TimelineEntity) groupKey() string {
	if e.GroupKey != "" {
		return e.GroupKey
	}
	return e.ID
}

func (e TimelineEntity) groupLabel() string {
	if e.GroupLabel != "" {
		return e.GroupLabel
	}
	return e.groupKey()
}

func (e TimelineEntity) validate() error {
	if e.Range != nil {
		if err := e.Range.Validate(); err != nil {
			return fmt.Errorf("timeline entity %q: %w", e.ID, err)
		}
	}
	for _, c := range e.Children {
		if err := c.validate(); err != nil {
			return err
		}
	}
	return nil
}

type LayoutOptions struct {
	WeekStart   WeekStart
	Today       Clock   // default bounds when nothing is dated; nil = system clock
	PaddingDays int     // <= 0 means BoundsPaddingDays
	Palette     Palette // zero value = DefaultPalette
}

// =============================================================================
// OUTPUT
// =============================================================================

type Column struct {
	Index int    `json:"index"`
	Start Date   `json:"start"`
	End   Date   `json:"end"`
	Label string `json:"label"`
	Month string `json:"month"`
}

// CellSpan is the portion of one column covered by a bar, in percent of
// the column's 7 days.
type CellSpan struct {
	Column   int     `json:"column"`
	LeftPct  float64 `json:"left_pct"`
	WidthPct float64 `json:"width_pct"`
}

type Bar struct {
	Range          DateRange  `json:"range"`
	Derived        bool       `json:"derived,omitempty"` // range taken from children
	StartColumn    int        `json:"start_column"`
	EndColumn      int        `json:"end_column"`
	StartOffsetPct float64    `json:"start_offset_pct"`
	EndOffsetPct   float64    `json:"end_offset_pct"`
	LeftPct        float64    `json:"left_pct"`  // of the whole timeline
	WidthPct       float64    `json:"width_pct"` // of the whole timeline
	Cells          []CellSpan `json:"cells"`
}

type Row struct {
	EntityID   string `json:"entity_id"`
	Label      string `json:"label"`
	GroupKey   string `json:"group_key"`
	GroupLabel string `json:"group_label"`
	Depth      int    `json:"depth"`
	ParentID   string `json:"parent_id,omitempty"`
	Color      string `json:"color"`
	Bar        *Bar   `json:"bar,omitempty"`
}

type TimelineGroup struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Index int    `json:"index"`
	Color Color  `json:"color"`
	CSS   string `json:"css"`
}

type TimelineLayout struct {
	Bounds  DateRange       `json:"bounds"`
	Columns []Column        `json:"columns"`
	Groups  []TimelineGroup `json:"groups"`
	Rows    []Row           `json:"rows"`
}

// =============================================================================
// BOUNDS
// =============================================================================

// Bounds returns the padded window covering every dated entity and child.
// It fails with ErrEmptyInputSet when nothing is dated; Layout falls back
// to DefaultBounds instead.
func Bounds(entities []TimelineEntity) (DateRange, error) {
	return paddedBounds(entities, BoundsPaddingDays)
}

func paddedBounds(entities []TimelineEntity, padding int) (DateRange, error) {
	var r DateRange
	found := false
	var visit func(TimelineEntity)
	visit = func(e TimelineEntity) {
		if e.Range != nil {
			if !found {
				r, found = *e.Range, true
			} else {
				r = r.Union(*e.Range)
			}
		}
		for _, c := range e.Children {
			visit(c)
		}
	}
	for _, e := range entities {
		visit(e)
	}
	if !found {
		return DateRange{}, ErrEmptyInputSet
	}
	return r.Pad(padding), nil
}

// DefaultBounds is [Jan 1 of the current year, Jan 1 of next year].
func DefaultBounds(clock Clock) DateRange {
	year := Today(clock).Year
	return DateRange{Start: StartOfYear(year), End: StartOfYear(year + 1)}
}

// =============================================================================
// LAYOUT
// =============================================================================

// Layout computes the full projection. The entities slice is not modified.
func Layout(entities []TimelineEntity, opts LayoutOptions) (*TimelineLayout, error) {
	for _, e := range entities {
		if err := e.validate(); err != nil {
			return nil, err
		}
	}
	palette := opts.Palette
	if palette == (Palette{}) {
		palette = DefaultPalette
	}

	padding := opts.PaddingDays
	if padding <= 0 {
		padding = BoundsPaddingDays
	}
	bounds, err := paddedBounds(entities, padding)
	if err != nil {
		bounds = DefaultBounds(opts.Today)
	}

	layout := &TimelineLayout{Bounds: bounds}
	for i, week := range bounds.Weeks(opts.WeekStart) {
		end := week.AddDays(6)
		layout.Columns = append(layout.Columns, Column{
			Index: i,
			Start: week,
			End:   end,
			Label: fmt.Sprintf("%s %d", week.Month.String()[:3], week.Day),
			Month: week.MonthKey(),
		})
	}

	ordered := sortEntities(entities)

	groupIndex := make(map[string]int)
	for _, e := range ordered {
		key := e.groupKey()
		if _, seen := groupIndex[key]; !seen {
			groupIndex[key] = len(layout.Groups)
			layout.Groups = append(layout.Groups, TimelineGroup{Key: key, Label: e.groupLabel()})
		}
	}
	for i := range layout.Groups {
		c := GroupColor(i, len(layout.Groups), palette)
		layout.Groups[i].Index = i
		layout.Groups[i].Color = c
		layout.Groups[i].CSS = c.CSS()
	}

	for _, e := range ordered {
		group := layout.Groups[groupIndex[e.groupKey()]]
		layout.Rows = append(layout.Rows, layout.row(e, group, 0, "", group.Color.CSS()))
		for _, c := range sortChildren(e.Children) {
			color := c.Color
			if color == "" {
				color = group.Color.WithAlpha(ChildAlpha).CSS()
			}
			layout.Rows = append(layout.Rows, layout.row(c, group, 1, e.ID, color))
		}
	}
	return layout, nil
}

func (l *TimelineLayout) row(e TimelineEntity, g TimelineGroup, depth int, parentID, color string) Row {
	row := Row{
		EntityID:   e.ID,
		Label:      e.Label,
		GroupKey:   g.Key,
		GroupLabel: g.Label,
		Depth:      depth,
		ParentID:   parentID,
		Color:      color,
	}
	if r, ok, derived := e.span(); ok {
		bar := l.bar(r)
		bar.Derived = derived
		row.Bar = &bar
	}
	return row
}

// bar computes per-column spans and whole-timeline offsets for r.
func (l *TimelineLayout) bar(r DateRange) Bar {
	bar := Bar{Range: r, StartColumn: -1, EndColumn: -1}
	if len(l.Columns) == 0 {
		return bar
	}

	for _, col := range l.Columns {
		if r.Start.After(col.End) || r.End.Before(col.Start) {
			continue
		}
		first := MaxDate(r.Start, col.Start)
		last := MinDate(r.End, col.End)
		left := float64(DaysBetween(col.Start, first)) / 7 * 100
		right := float64(DaysBetween(col.Start, last)+1) / 7 * 100
		bar.Cells = append(bar.Cells, CellSpan{
			Column:   col.Index,
			LeftPct:  round(left, 4),
			WidthPct: round(right-left, 4),
		})
		if bar.StartColumn < 0 {
			bar.StartColumn = col.Index
			bar.StartOffsetPct = round(left, 4)
		}
		bar.EndColumn = col.Index
		bar.EndOffsetPct = round(right, 4)
	}

	origin := l.Columns[0].Start
	totalDays := float64(7 * len(l.Columns))
	bar.LeftPct = round(float64(DaysBetween(origin, r.Start))/totalDays*100, 4)
	bar.WidthPct = round(float64(r.Days())/totalDays*100, 4)
	return bar
}

// =============================================================================
// ORDERING
// =============================================================================

// sortEntities orders top-level rows by earliest date, group label, label
// and finally ID. Undated entities sort after dated ones.
func sortEntities(entities []TimelineEntity) []TimelineEntity {
	out := make([]TimelineEntity, len(entities))
	copy(out, entities)
	sort.SliceStable(out, func(i, j int) bool {
		di, oki := out[i].earliest()
		dj, okj := out[j].earliest()
		if oki != okj {
			return oki
		}
		if oki && di != dj {
			return di.Before(dj)
		}
		if gi, gj := out[i].groupLabel(), out[j].groupLabel(); gi != gj {
			return gi < gj
		}
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// sortChildren orders phases by explicit row order, then start, then label.
func sortChildren(children []TimelineEntity) []TimelineEntity {
	out := make([]TimelineEntity, len(children))
	copy(out, children)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		di, oki := out[i].earliest()
		dj, okj := out[j].earliest()
		if oki != okj {
			return oki
		}
		if oki && di != dj {
			return di.Before(dj)
		}
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].ID < out[j].ID
	})
	return out
}
