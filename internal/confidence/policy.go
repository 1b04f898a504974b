package confidence

import (
	"fmt"
	"math"
)

// Band is one piece of a piecewise-linear curve. It covers the interval
// between Lo and Hi (each end open or closed) and maps x linearly along the
// line through (X0, Y0) and (X1, Y1).
type Band struct {
	Lo, Hi         float64
	LoOpen, HiOpen bool
	X0, Y0, X1, Y1 float64
}

func (b Band) contains(x float64) bool {
	if x < b.Lo || (b.LoOpen && x == b.Lo) {
		return false
	}
	if x > b.Hi || (b.HiOpen && x == b.Hi) {
		return false
	}
	return true
}

func (b Band) at(x float64) float64 {
	if b.Y1 == b.Y0 || b.X1 == b.X0 {
		return b.Y0
	}
	return b.Y0 + (x-b.X0)/(b.X1-b.X0)*(b.Y1-b.Y0)
}

// Curve maps a raw metric to a 0-100 component score. Bands are tried in
// order and the first containing x wins; x outside every band scores 0.
// Results are clamped to [0, 100].
type Curve []Band

// Score evaluates the curve at x.
func (c Curve) Score(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	for _, b := range c {
		if b.contains(x) {
			y := b.at(x)
			if math.IsNaN(y) {
				return 0
			}
			return math.Max(0, math.Min(100, y))
		}
	}
	return 0
}

// Weights are the composite weights of the component scores. They sum to 1.
type Weights struct {
	WPM        float64
	Filler     float64
	Pause      float64
	Hesitation float64
	Fluency    float64
}

// Threshold assigns Rating to composite scores of at least Min.
type Threshold struct {
	Min    float64
	Rating Rating
}

// Policy is a complete scoring configuration.
type Policy struct {
	Name string

	WPM            Curve // words per minute
	FillerDensity  Curve // fillers per 100 words
	PauseRatio     Curve // pause time / speaking time
	HesitationRate Curve // hesitations per 100 words

	Weights Weights

	// Ratings are checked in order; the first threshold met wins and scores
	// below all of them rate [VeryLow].
	Ratings []Threshold

	// OptimalWPMLow and OptimalWPMHigh bound the rate advertised in
	// recommendations.
	OptimalWPMLow, OptimalWPMHigh float64
}

// Rate classifies a composite score.
func (p Policy) Rate(score float64) Rating {
	for _, t := range p.Ratings {
		if score >= t.Min {
			return t.Rating
		}
	}
	return VeryLow
}

// Preset names accepted by [PolicyByName].
const (
	PresetStrict  = "strict"
	PresetLenient = "lenient"
)

var defaultWeights = Weights{WPM: 0.25, Filler: 0.25, Pause: 0.20, Hesitation: 0.15, Fluency: 0.15}

var inf = math.Inf(1)

// flat returns a band scoring y over [lo, hi] with the given openness. The
// line points stay finite even when lo or hi is infinite.
func flat(lo, hi float64, loOpen, hiOpen bool, y float64) Band {
	return Band{Lo: lo, Hi: hi, LoOpen: loOpen, HiOpen: hiOpen, Y0: y, Y1: y}
}

// line returns a band over its endpoints mapping x0→y0 and x1→y1.
func line(lo, hi float64, loOpen, hiOpen bool, x0, y0, x1, y1 float64) Band {
	return Band{Lo: lo, Hi: hi, LoOpen: loOpen, HiOpen: hiOpen, X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// Strict returns the default, tighter scoring policy centred on 130-150 WPM.
func Strict() Policy {
	return Policy{
		Name: PresetStrict,
		WPM: Curve{
			flat(130, 150, false, false, 100),
			line(115, 130, false, true, 115, 70, 130, 100),
			line(150, 165, true, false, 150, 100, 165, 70),
			line(100, 115, false, true, 100, 50, 115, 70),
			line(165, 185, true, false, 165, 70, 185, 30),
			line(-inf, 100, false, true, 100, 50, 60, 0),
			line(185, inf, true, false, 185, 30, 215, 0),
		},
		FillerDensity: Curve{
			flat(-inf, 1, false, false, 100),
			line(1, 2.5, true, false, 1, 75, 2.5, 50),
			line(2.5, 5, true, false, 2.5, 50, 5, 25),
			line(5, 8, true, false, 5, 25, 8, 5),
			line(8, inf, true, false, 8, 5, 12, 0),
		},
		PauseRatio: Curve{
			flat(-inf, 0.05, false, false, 100),
			line(0.05, 0.10, true, false, 0.05, 80, 0.10, 50),
			line(0.10, 0.18, true, false, 0.10, 50, 0.18, 15),
			line(0.18, 0.28, true, false, 0.18, 15, 0.28, 0),
			flat(0.28, inf, true, false, 0),
		},
		HesitationRate: Curve{
			flat(-inf, 1.5, false, false, 100),
			line(1.5, 3, true, false, 1.5, 80, 3, 50),
			line(3, 6, true, false, 3, 50, 6, 20),
			line(6, 10, true, false, 6, 20, 10, 0),
			flat(10, inf, true, false, 0),
		},
		Weights: defaultWeights,
		Ratings: []Threshold{
			{90, Excellent},
			{75, Good},
			{58, Moderate},
			{42, Low},
		},
		OptimalWPMLow:  130,
		OptimalWPMHigh: 150,
	}
}

// Lenient returns the looser policy centred on 120-160 WPM.
func Lenient() Policy {
	return Policy{
		Name: PresetLenient,
		WPM: Curve{
			flat(120, 160, false, false, 100),
			line(100, 120, false, true, 100, 80, 120, 100),
			line(160, 200, true, false, 160, 100, 200, 80),
			line(-inf, 100, false, true, 100, 80, 50, 40),
			line(200, inf, true, false, 200, 80, 250, 40),
		},
		FillerDensity: Curve{
			flat(-inf, 2, false, false, 100),
			line(2, 5, true, false, 2, 80, 5, 60),
			line(5, 10, true, false, 5, 60, 10, 30),
			line(10, inf, true, false, 10, 30, 20, 0),
		},
		PauseRatio: Curve{
			flat(-inf, 0.10, false, false, 100),
			line(0.10, 0.20, true, false, 0.10, 80, 0.20, 50),
			line(0.20, 0.30, true, false, 0.20, 50, 0.30, 20),
			line(0.30, inf, true, false, 0.30, 20, 0.50, 0),
		},
		HesitationRate: Curve{
			flat(-inf, 3, false, false, 100),
			line(3, 6, true, false, 3, 80, 6, 60),
			line(6, 10, true, false, 6, 60, 10, 30),
			line(10, inf, true, false, 10, 30, 20, 0),
		},
		Weights: defaultWeights,
		Ratings: []Threshold{
			{85, Excellent},
			{70, Good},
			{55, Moderate},
			{40, Low},
		},
		OptimalWPMLow:  120,
		OptimalWPMHigh: 160,
	}
}

// PolicyByName returns the named preset. The empty name selects [Strict].
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", PresetStrict:
		return Strict(), nil
	case PresetLenient:
		return Lenient(), nil
	}
	return Policy{}, fmt.Errorf("confidence: unknown scoring preset %q", name)
}
