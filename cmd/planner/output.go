package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/shopspring/decimal"
	"github.com/warp/engagement-engine/generic"
)

type palette struct {
	red, green, yellow, faint func(...any) string
}

func newPalette(useColors bool) palette {
	if !useColors {
		return palette{red: fmt.Sprint, green: fmt.Sprint, yellow: fmt.Sprint, faint: fmt.Sprint}
	}
	return palette{
		red:    color.New(color.FgRed).SprintFunc(),
		green:  color.New(color.FgGreen).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		faint:  color.New(color.Faint).SprintFunc(),
	}
}

func errorLabel(useColors bool) string {
	return newPalette(useColors).red("error:")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func money(d decimal.Decimal) string { return generic.RoundMoney(d).StringFixed(2) }
func hours(d decimal.Decimal) string { return d.Round(2).String() }

// =============================================================================
// TOTALS
// =============================================================================

// writeTotalsTable prints one row per group followed by the overall totals.
// Negative margins are red, positive ones green.
func writeTotalsTable(w io.Writer, report *generic.Report, useColors bool) error {
	p := newPalette(useColors)

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Group", "Hours", "Cost", "Revenue", "Margin", "Margin %", "Expenses"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	marginCell := func(d decimal.Decimal) string {
		switch {
		case d.IsNegative():
			return p.red(money(d))
		case d.IsPositive():
			return p.green(money(d))
		default:
			return money(d)
		}
	}
	row := func(key string, t generic.Totals) []string {
		return []string{
			key,
			hours(t.Hours),
			money(t.Cost),
			money(t.Revenue),
			marginCell(t.Margin),
			t.MarginPercentage.Round(2).StringFixed(2),
			money(t.BillableExpenses),
		}
	}

	var data [][]string
	for _, g := range report.Groups {
		key := g.Key
		if key == "" {
			key = "(none)"
		}
		data = append(data, row(key, g.Totals))
	}
	data = append(data, row("TOTAL", report.Overall))

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if report.Currency != "" {
		if _, err := fmt.Fprintf(w, "Amounts in %s\n", report.Currency); err != nil {
			return err
		}
	}
	for _, warn := range report.Warnings {
		msg := fmt.Sprintf("warning: line item %s has %s hours in week %s (%s), not counted",
			warn.LineItemID, hours(warn.Hours), warn.WeekStart, warn.Reason)
		if _, err := fmt.Fprintln(w, p.yellow(msg)); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// TIMELINE
// =============================================================================

// writeTimelineTable prints one row per entity with a character grid, one
// cell per week column: '#' for a full week, '+' for a partial one.
func writeTimelineTable(w io.Writer, layout *generic.TimelineLayout, useColors bool) error {
	p := newPalette(useColors)

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Group", "Row", "Start", "End", "Weeks"})

	var data [][]string
	for _, r := range layout.Rows {
		label := r.Label
		if r.Depth > 0 {
			label = "  " + label
		}
		start, end, grid := "-", "-", p.faint(strings.Repeat(".", len(layout.Columns)))
		if r.Bar != nil {
			start, end = r.Bar.Range.Start.String(), r.Bar.Range.End.String()
			grid = barGrid(r.Bar, len(layout.Columns))
			if r.Bar.Derived {
				end += "*"
			}
		}
		data = append(data, []string{r.GroupLabel, label, start, end, grid})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s to %s, %d weeks starting %s\n",
		layout.Bounds.Start, layout.Bounds.End, len(layout.Columns), columnStart(layout))
	return err
}

func barGrid(bar *generic.Bar, columns int) string {
	cells := []byte(strings.Repeat(".", columns))
	for _, c := range bar.Cells {
		if c.Column < 0 || c.Column >= columns {
			continue
		}
		if c.WidthPct >= 100 {
			cells[c.Column] = '#'
		} else {
			cells[c.Column] = '+'
		}
	}
	return string(cells)
}

func columnStart(layout *generic.TimelineLayout) string {
	if len(layout.Columns) == 0 {
		return "-"
	}
	return layout.Columns[0].Start.Weekday().String()
}

// =============================================================================
// FILL
// =============================================================================

func writeFillTable(w io.Writer, entries []generic.WeeklyHoursEntry) error {
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()

	table.Header([]string{"Week", "Hours"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	data := make([][]string, 0, len(entries)+1)
	for _, e := range entries {
		data = append(data, []string{e.WeekStart.String(), hours(e.Hours)})
	}
	data = append(data, []string{"TOTAL", hours(generic.TotalHours(entries))})

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
