// Package curve implements the smoothed probability surface ("continuous
// curve") over the minute grid: construction from raw event slots,
// interpolation, windowed peak selection, contextual reweighting, and an
// entropy-based confidence score. All operations clamp to zero below
// 1e-12 and renormalize on total sum, never an Lp norm.
package curve

import (
	"math"

	"github.com/ignite/timing-intelligence/internal/timing/minutegrid"
)

const clampFloor = 1e-12

// Curve is a length-SlotsPerWeek non-negative vector. A Curve that has
// collapsed to all-zero (e.g. every entry suppressed by a weight of -1)
// is marked Suppressed rather than renormalized.
type Curve struct {
	Values     []float64
	Suppressed bool
}

// Uniform returns the curve used for cold-start subjects: every slot at
// 1/SlotsPerWeek.
func Uniform() *Curve {
	v := make([]float64, minutegrid.SlotsPerWeek)
	p := 1.0 / float64(minutegrid.SlotsPerWeek)
	for i := range v {
		v[i] = p
	}
	return &Curve{Values: v}
}

// FromSamples builds a curve from raw event slots: a Laplace-smoothed
// histogram convolved circularly with a Gaussian kernel of the given sigma
// (in minutes), then normalized. An empty sample set still yields a valid
// curve (uniform after normalization, since every slot received the same
// Laplace prior).
func FromSamples(slots []int, laplaceAlpha, sigmaMinutes float64) *Curve {
	n := minutegrid.SlotsPerWeek
	hist := make([]float64, n)
	prior := laplaceAlpha / float64(n)
	for i := range hist {
		hist[i] = prior
	}
	for _, s := range slots {
		hist[minutegrid.Mod(s)]++
	}

	smoothed := gaussianBlurCircular(hist, sigmaMinutes)
	c := &Curve{Values: smoothed}
	c.clamp()
	c.Normalize()
	return c
}

// gaussianBlurCircular convolves v (length SlotsPerWeek) with a Gaussian
// kernel of the given standard deviation, wrapping at the week boundary so
// density near Sunday 23:59 bleeds into Monday 00:00. The kernel is
// truncated at 4 sigma, which is accurate to better than 1e-4 of the true
// Gaussian mass and keeps the convolution linear in practice for the
// sigma values this system uses (tens of minutes, not thousands).
func gaussianBlurCircular(v []float64, sigma float64) []float64 {
	n := len(v)
	if sigma <= 0 {
		out := make([]float64, n)
		copy(out, v)
		return out
	}

	radius := int(math.Ceil(4 * sigma))
	if radius < 1 {
		radius = 1
	}
	if radius > n/2 {
		radius = n / 2
	}

	kernel := make([]float64, 2*radius+1)
	ksum := 0.0
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = w
		ksum += w
	}
	for i := range kernel {
		kernel[i] /= ksum
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		acc := 0.0
		for k := -radius; k <= radius; k++ {
			acc += v[minutegrid.Mod(i+k)] * kernel[k+radius]
		}
		out[i] = acc
	}
	return out
}

// clamp zeroes any entry below clampFloor, avoiding denormal drift and
// guarding downstream log()/division from near-zero noise.
func (c *Curve) clamp() {
	for i, v := range c.Values {
		if v < clampFloor {
			c.Values[i] = 0
		}
	}
}

// Sum returns the total mass of the curve.
func (c *Curve) Sum() float64 {
	total := 0.0
	for _, v := range c.Values {
		total += v
	}
	return total
}

// Normalize divides every entry by the curve's total sum. If the sum is
// (now) zero, the curve is marked Suppressed and left identically zero
// rather than divided.
func (c *Curve) Normalize() {
	total := c.Sum()
	if total <= clampFloor {
		for i := range c.Values {
			c.Values[i] = 0
		}
		c.Suppressed = true
		return
	}
	for i := range c.Values {
		c.Values[i] /= total
	}
	c.Suppressed = false
}

// Interpolate linearly interpolates between the two adjacent integer slots
// bracketing slotReal, wrapping at the week boundary.
func (c *Curve) Interpolate(slotReal float64) float64 {
	n := float64(len(c.Values))
	slotReal = math.Mod(math.Mod(slotReal, n)+n, n)
	lo := int(math.Floor(slotReal))
	hi := minutegrid.Mod(lo + 1)
	frac := slotReal - float64(lo)
	return c.Values[lo]*(1-frac) + c.Values[hi]*frac
}

// PeakInWindow returns the argmax slot and its probability within the
// given window. Ties go to the slot Window.Slots yields first: the smaller
// slot index, except in a window that wraps the week, where slots from
// Start to the end of the week come before slots from 0 to End.
func (c *Curve) PeakInWindow(w minutegrid.Window) (slot int, probability float64) {
	best := -1
	bestP := -1.0
	for _, s := range w.Slots() {
		p := c.Values[s]
		if p > bestP {
			bestP = p
			best = s
		}
	}
	return best, bestP
}

// Weight is a contextual reweighting applied uniformly across a window.
// Magnitude == -1 forces every entry in the window to zero (suppression);
// otherwise each entry is multiplied by (1 + Magnitude).
type Weight struct {
	Window    minutegrid.Window
	Magnitude float64
}

// ApplyWeights multiplies each slot's probability by (1 + sum of the
// magnitudes of weights covering that slot), clamps, and renormalizes
// unless the result collapses to all-zero, in which case the curve is
// marked Suppressed. Returns a new Curve; the receiver is not mutated.
func (c *Curve) ApplyWeights(weights []Weight) *Curve {
	n := len(c.Values)
	totals := make([]float64, n)
	forced := make([]bool, n)
	for _, w := range weights {
		for _, s := range w.Window.Slots() {
			if w.Magnitude == -1 {
				forced[s] = true
				continue
			}
			totals[s] += w.Magnitude
		}
	}

	out := make([]float64, n)
	for i, base := range c.Values {
		if forced[i] {
			out[i] = 0
			continue
		}
		out[i] = base * (1 + totals[i])
		if out[i] < 0 {
			out[i] = 0
		}
	}

	result := &Curve{Values: out}
	result.clamp()
	result.Normalize()
	return result
}

// ClipToWindow zeroes every entry outside w and renormalizes. If nothing
// survives, the curve is marked Suppressed.
func (c *Curve) ClipToWindow(w minutegrid.Window) *Curve {
	out := make([]float64, len(c.Values))
	for _, s := range w.Slots() {
		out[s] = c.Values[s]
	}
	result := &Curve{Values: out}
	result.clamp()
	result.Normalize()
	return result
}

// Confidence returns 1 - H(p)/log(SlotsPerWeek) using base-e entropy. A
// uniform curve scores 0; a delta distribution scores close to 1. Guards
// against log(0) by skipping zero-probability slots (their contribution
// to Shannon entropy is defined as 0 in the limit).
func (c *Curve) Confidence() float64 {
	if c.Suppressed {
		return 0
	}
	h := 0.0
	for _, p := range c.Values {
		if p <= 0 {
			continue
		}
		h -= p * math.Log(p)
	}
	maxH := math.Log(float64(len(c.Values)))
	if maxH <= 0 {
		return 0
	}
	conf := 1 - h/maxH
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// Clone returns a deep copy.
func (c *Curve) Clone() *Curve {
	v := make([]float64, len(c.Values))
	copy(v, c.Values)
	return &Curve{Values: v, Suppressed: c.Suppressed}
}
