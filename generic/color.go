package generic

import (
	"fmt"
	"math"
)

// =============================================================================
// COLOR - HSL colors for timeline groups
// =============================================================================

// Color is an HSL color with alpha. H in degrees, S and L in percent.
type Color struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	L float64 `json:"l"`
	A float64 `json:"a"`
}

// CSS renders hsl() for opaque colors and hsla() otherwise.
func (c Color) CSS() string {
	if c.A >= 1 {
		return fmt.Sprintf("hsl(%s, %s%%, %s%%)", trimFloat(c.H), trimFloat(c.S), trimFloat(c.L))
	}
	return fmt.Sprintf("hsla(%s, %s%%, %s%%, %s)", trimFloat(c.H), trimFloat(c.S), trimFloat(c.L), trimFloat(c.A))
}

func (c Color) WithAlpha(a float64) Color {
	c.A = a
	return c
}

func trimFloat(f float64) string {
	return fmt.Sprintf("%g", round(f, 2))
}

// Palette is the base color groups are shifted from.
type Palette struct {
	BaseHue        float64
	Saturation     float64
	Lightness      float64
	HueSpan        float64 // degrees travelled from the first to the last group
	LightnessSwing float64 // extra lightness at the middle of the range
}

var DefaultPalette = Palette{
	BaseHue:        210,
	Saturation:     65,
	Lightness:      48,
	HueSpan:        300,
	LightnessSwing: 8,
}

// ChildAlpha is the opacity children use when inheriting a group color.
const ChildAlpha = 0.6

// GroupColor derives the color of group index out of count groups. It is a
// pure function of (index, count, palette): t = index/(count-1) walks the
// hue smoothly around the wheel and lifts lightness along a sine arc.
func GroupColor(index, count int, p Palette) Color {
	t := 0.0
	if count > 1 {
		t = float64(index) / float64(count-1)
	}
	t = math.Max(0, math.Min(1, t))

	hue := math.Mod(p.BaseHue+t*p.HueSpan, 360)
	if hue < 0 {
		hue += 360
	}
	lightness := p.Lightness + p.LightnessSwing*math.Sin(math.Pi*t)

	return Color{
		H: round(hue, 2),
		S: p.Saturation,
		L: round(lightness, 2),
		A: 1,
	}
}

func round(f float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(f*pow) / pow
}
