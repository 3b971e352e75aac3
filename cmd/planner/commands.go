package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/warp/engagement-engine/engagement"
	"github.com/warp/engagement-engine/factory"
	"github.com/warp/engagement-engine/generic"
)

type outputFormat string

const (
	textOut outputFormat = "text"
	jsonOut outputFormat = "json"
)

func currentFormat() (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(viper.GetString("output"))); f {
	case textOut, jsonOut:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (text or json)", f)
	}
}

// useColors mirrors the --color flag; any unrecognized value enables color.
func useColors() bool {
	switch strings.ToLower(viper.GetString("color")) {
	case "no", "false", "0", "off":
		return false
	default:
		return true
	}
}

// =============================================================================
// TOTALS
// =============================================================================

var totalsCmd = &cobra.Command{
	Use:   "totals <plan-document>",
	Short: "Aggregate hours, cost, revenue and margin.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := currentFormat()
		if err != nil {
			return err
		}
		doc, err := factory.NewPlanFactory().LoadFile(args[0])
		if err != nil {
			return err
		}

		group, _ := cmd.Flags().GetString("group")
		dim, err := generic.ParseDimension(group)
		if err != nil {
			return err
		}
		currency, _ := cmd.Flags().GetString("currency")
		planID, _ := cmd.Flags().GetString("plan")

		q := generic.AggregateQuery{
			Dimension: dim,
			Filter:    generic.Filter{PlanID: generic.PlanID(planID)},
			WeekStart: doc.WeekStart,
			Rates:     doc.Rates,
		}
		if currency != "" {
			q.Currency = generic.NormalizeCurrency(currency)
		}

		report, err := generic.Aggregate(doc.Items(), q)
		if err != nil {
			return err
		}
		if format == jsonOut {
			return writeJSON(cmd.OutOrStdout(), report)
		}
		return writeTotalsTable(cmd.OutOrStdout(), report, useColors())
	},
}

// =============================================================================
// TIMELINE
// =============================================================================

var timelineCmd = &cobra.Command{
	Use:   "timeline <plan-document>",
	Short: "Lay out plans and phases on a weekly grid.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := currentFormat()
		if err != nil {
			return err
		}
		doc, err := factory.NewPlanFactory().LoadFile(args[0])
		if err != nil {
			return err
		}

		wsFlag, _ := cmd.Flags().GetString("week-start")
		ws, err := generic.ParseWeekStart(wsFlag)
		if err != nil {
			return err
		}
		padding, _ := cmd.Flags().GetInt("padding")

		layout, err := generic.Layout(documentEntities(doc), generic.LayoutOptions{
			WeekStart:   ws,
			PaddingDays: padding,
		})
		if err != nil {
			return err
		}
		if format == jsonOut {
			return writeJSON(cmd.OutOrStdout(), layout)
		}
		return writeTimelineTable(cmd.OutOrStdout(), layout, useColors())
	},
}

// documentEntities projects every plan of the document, whatever its kind.
func documentEntities(doc *factory.Document) []generic.TimelineEntity {
	plans := make([]generic.Plan, 0, len(doc.Plans))
	phases := make(map[generic.PlanID][]generic.Phase, len(doc.Plans))
	items := make(map[generic.PlanID][]generic.LineItem, len(doc.Plans))
	for _, b := range doc.Plans {
		plans = append(plans, b.Plan)
		phases[b.Plan.ID] = b.Phases
		items[b.Plan.ID] = b.LineItems
	}
	return engagement.EntitiesFromPlans(plans, phases, items)
}

// =============================================================================
// FILL
// =============================================================================

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Preview the weekly hours a fill pattern generates.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := currentFormat()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		start, _ := flags.GetString("start")
		end, _ := flags.GetString("end")
		r, err := generic.NewRange(start, end)
		if err != nil {
			return err
		}
		wsFlag, _ := flags.GetString("week-start")
		ws, err := generic.ParseWeekStart(wsFlag)
		if err != nil {
			return err
		}

		params, err := fillParamsFromFlags(cmd)
		if err != nil {
			return err
		}
		entries, err := generic.Fill(r, params, ws)
		if err != nil {
			return err
		}
		if format == jsonOut {
			return writeJSON(cmd.OutOrStdout(), entries)
		}
		return writeFillTable(cmd.OutOrStdout(), entries)
	},
}

// fillParamsFromFlags reuses the document decoder so the CLI accepts the
// same fields, with the same validation, as a plan document.
func fillParamsFromFlags(cmd *cobra.Command) (generic.FillParams, error) {
	flags := cmd.Flags()
	pattern, _ := flags.GetString("pattern")
	fj := factory.FillPatternJSON{Pattern: pattern}

	decimalFlag := func(name string) (*decimal.Decimal, error) {
		if !flags.Changed(name) {
			return nil, nil
		}
		raw, _ := flags.GetString(name)
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", name, err)
		}
		return &d, nil
	}

	var err error
	if fj.HoursPerWeek, err = decimalFlag("hours"); err != nil {
		return generic.FillParams{}, err
	}
	if fj.StartHours, err = decimalFlag("from"); err != nil {
		return generic.FillParams{}, err
	}
	if fj.EndHours, err = decimalFlag("to"); err != nil {
		return generic.FillParams{}, err
	}
	if fj.IntervalHours, err = decimalFlag("interval"); err != nil {
		return generic.FillParams{}, err
	}

	custom, _ := flags.GetStringToString("week")
	if len(custom) > 0 {
		fj.Hours = make(map[string]decimal.Decimal, len(custom))
		for week, raw := range custom {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return generic.FillParams{}, fmt.Errorf("--week %s: %w", week, err)
			}
			fj.Hours[week] = d
		}
	}
	return fj.Params()
}

// =============================================================================
// CONVERT
// =============================================================================

var convertCmd = &cobra.Command{
	Use:   "convert <amount> <from> <to>",
	Short: "Convert an amount through USD using a document's rate table.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := decimal.NewFromString(args[0])
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[0], err)
		}

		rates := generic.Rates{generic.USD: decimal.NewFromInt(1)}
		if path, _ := cmd.Flags().GetString("doc"); path != "" {
			doc, err := factory.NewPlanFactory().LoadFile(path)
			if err != nil {
				return err
			}
			rates = doc.Rates
		}

		from, to := generic.NormalizeCurrency(args[1]), generic.NormalizeCurrency(args[2])
		result, err := generic.Convert(amount, from, to, rates)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s %s (%s)\n",
			amount, from, generic.RoundMoney(result).StringFixed(2), to, result)
		return err
	},
}

func init() {
	totalsCmd.Flags().String("group", "", "Group by: week, month, role, delivery_center, employee")
	totalsCmd.Flags().String("currency", "", "Report currency (empty sums amounts as stored)")
	totalsCmd.Flags().String("plan", "", "Only aggregate this plan ID")

	timelineCmd.Flags().String("week-start", "sunday", "First day of timeline columns: sunday or monday")
	timelineCmd.Flags().Int("padding", generic.BoundsPaddingDays, "Days of padding around the bounds")

	fillCmd.Flags().String("start", "", "First day of the range (YYYY-MM-DD)")
	fillCmd.Flags().String("end", "", "Last day of the range (YYYY-MM-DD)")
	fillCmd.Flags().String("week-start", "sunday", "First day of hour buckets: sunday or monday")
	fillCmd.Flags().String("pattern", string(generic.PatternUniform), "uniform, ramp_up, ramp_down, ramp_up_down or custom")
	fillCmd.Flags().String("hours", "", "Hours per week (uniform)")
	fillCmd.Flags().String("from", "", "Start hours (ramps)")
	fillCmd.Flags().String("to", "", "End hours (ramps)")
	fillCmd.Flags().String("interval", "", "Step snapping interval (ramps)")
	fillCmd.Flags().StringToString("week", nil, "Custom hours, e.g. --week 2024-01-07=20")
	_ = fillCmd.MarkFlagRequired("start")
	_ = fillCmd.MarkFlagRequired("end")

	convertCmd.Flags().String("doc", "", "Plan document whose rates table is used")
}
