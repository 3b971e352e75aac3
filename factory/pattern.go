/*
Package factory converts JSON and YAML configuration into engine types.

PURPOSE:
  Fill patterns and whole plans are authored outside of Go: the estimate UI
  posts fill-pattern JSON, and the planner CLI reads plan documents from
  disk. The factory validates those shapes and builds generic.FillParams,
  generic.Plan, generic.LineItem and generic.Phase values from them.

FILL PATTERN JSON:
  {"pattern": "uniform",      "hoursPerWeek": 40}
  {"pattern": "ramp_up",      "startHours": 8, "endHours": 40, "intervalHours": 8}
  {"pattern": "ramp_down",    "startHours": 8, "endHours": 40, "intervalHours": 8}
  {"pattern": "ramp_up_down", "startHours": 8, "endHours": 40, "intervalHours": 8}
  {"pattern": "custom",       "hours": {"2024-01-07": 40, "2024-01-14": 20}}

  Exactly the fields relevant to the pattern are required. Others are
  ignored. Numbers may be given as JSON numbers or strings.

USAGE:
  params, err := factory.ParseFillPattern(body)
  entries, err := generic.Fill(item.DateRange, params, generic.Sunday)

SEE ALSO:
  - generic/fill.go: The generator the params feed
  - factory/plan.go: Plan documents embedding fill patterns
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/engagement-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// FillPatternJSON is the wire shape of a fill-pattern configuration.
// Pointer fields distinguish "absent" from zero.
type FillPatternJSON struct {
	Pattern       string                     `json:"pattern" yaml:"pattern"`
	HoursPerWeek  *decimal.Decimal           `json:"hoursPerWeek,omitempty" yaml:"hoursPerWeek,omitempty"`
	StartHours    *decimal.Decimal           `json:"startHours,omitempty" yaml:"startHours,omitempty"`
	EndHours      *decimal.Decimal           `json:"endHours,omitempty" yaml:"endHours,omitempty"`
	IntervalHours *decimal.Decimal           `json:"intervalHours,omitempty" yaml:"intervalHours,omitempty"`
	Hours         map[string]decimal.Decimal `json:"hours,omitempty" yaml:"hours,omitempty"`
}

// ParseFillPattern parses fill-pattern JSON into generic.FillParams.
func ParseFillPattern(data []byte) (generic.FillParams, error) {
	var fj FillPatternJSON
	if err := json.Unmarshal(data, &fj); err != nil {
		return generic.FillParams{}, fmt.Errorf("failed to parse fill pattern JSON: %w", err)
	}
	return fj.Params()
}

// Params checks required fields and builds validated FillParams.
func (fj FillPatternJSON) Params() (generic.FillParams, error) {
	pattern := generic.Pattern(fj.Pattern)
	var params generic.FillParams

	switch pattern {
	case generic.PatternUniform:
		if fj.HoursPerWeek == nil {
			return params, missing(pattern, "hoursPerWeek")
		}
		params = generic.Uniform(*fj.HoursPerWeek)

	case generic.PatternRampUp, generic.PatternRampDown, generic.PatternRampUpDown:
		switch {
		case fj.StartHours == nil:
			return params, missing(pattern, "startHours")
		case fj.EndHours == nil:
			return params, missing(pattern, "endHours")
		case fj.IntervalHours == nil:
			return params, missing(pattern, "intervalHours")
		}
		params = generic.Ramp(pattern, *fj.StartHours, *fj.EndHours, *fj.IntervalHours)

	case generic.PatternCustom:
		if fj.Hours == nil {
			return params, missing(pattern, "hours")
		}
		hours := make(map[generic.Date]decimal.Decimal, len(fj.Hours))
		for key, h := range fj.Hours {
			week, err := generic.ParseDate(key)
			if err != nil {
				return params, &generic.PatternParamsError{
					Pattern: pattern,
					Field:   "hours[" + key + "]",
					Message: "key is not a date",
				}
			}
			hours[week] = h
		}
		params = generic.Custom(hours)

	default:
		return params, &generic.PatternParamsError{
			Pattern: pattern,
			Field:   "pattern",
			Message: "is not a known fill pattern",
		}
	}

	if err := params.Validate(); err != nil {
		return generic.FillParams{}, err
	}
	return params, nil
}

// FillPatternFromParams is the inverse of Params, used when echoing a
// pattern back to clients.
func FillPatternFromParams(p generic.FillParams) FillPatternJSON {
	fj := FillPatternJSON{Pattern: string(p.Pattern)}
	switch p.Pattern {
	case generic.PatternUniform:
		h := p.HoursPerWeek
		fj.HoursPerWeek = &h
	case generic.PatternRampUp, generic.PatternRampDown, generic.PatternRampUpDown:
		start, end, interval := p.StartHours, p.EndHours, p.IntervalHours
		fj.StartHours, fj.EndHours, fj.IntervalHours = &start, &end, &interval
	case generic.PatternCustom:
		fj.Hours = make(map[string]decimal.Decimal, len(p.Hours))
		for week, h := range p.Hours {
			fj.Hours[week.String()] = h
		}
	}
	return fj
}

func missing(p generic.Pattern, field string) error {
	return &generic.PatternParamsError{Pattern: p, Field: field, Message: "is required"}
}
