package curve

import (
	"math"
	"testing"

	"github.com/ignite/timing-intelligence/internal/timing/minutegrid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniform_SumsToOne(t *testing.T) {
	c := Uniform()
	assert.InDelta(t, 1.0, c.Sum(), 1e-9)
	assert.False(t, c.Suppressed)
	assert.InDelta(t, 0, c.Confidence(), 1e-9)
}

func TestFromSamples_EmptyIsUniform(t *testing.T) {
	c := FromSamples(nil, 1.0, 30)
	assert.InDelta(t, 1.0, c.Sum(), 1e-6)
	for _, v := range c.Values {
		assert.InDelta(t, 1.0/float64(minutegrid.SlotsPerWeek), v, 1e-9)
	}
}

func TestFromSamples_SingleEventPeakNearSlot(t *testing.T) {
	const k = 540 // Monday 09:00
	slots := []int{k}
	c := FromSamples(slots, 1.0, 30)
	peakSlot, _ := c.PeakInWindow(minutegrid.Window{Start: 0, End: minutegrid.SlotsPerWeek - 1})
	diff := math.Abs(float64(peakSlot - k))
	assert.LessOrEqual(t, diff, 30.0)
	assert.Greater(t, c.Confidence(), 0.0)
}

func TestFromSamples_SundayMidnightWraps(t *testing.T) {
	// An event at slot SlotsPerWeek-1 (Sunday 23:59) should push mass
	// into slot 0 (Monday 00:00) via circular smoothing.
	slots := make([]int, 50)
	for i := range slots {
		slots[i] = minutegrid.SlotsPerWeek - 1
	}
	c := FromSamples(slots, 1.0, 30)
	assert.Greater(t, c.Values[0], c.Values[minutegrid.SlotsPerWeek/2])
}

func TestNormalize_ZeroSumMarksSuppressed(t *testing.T) {
	c := &Curve{Values: make([]float64, minutegrid.SlotsPerWeek)}
	c.Normalize()
	assert.True(t, c.Suppressed)
	assert.Equal(t, 0.0, c.Sum())
}

func TestInterpolate_Midpoint(t *testing.T) {
	c := &Curve{Values: make([]float64, minutegrid.SlotsPerWeek)}
	c.Values[10] = 0.0
	c.Values[11] = 1.0
	got := c.Interpolate(10.5)
	assert.InDelta(t, 0.5, got, 1e-9)
}

func TestPeakInWindow_TieBreaksLowerSlot(t *testing.T) {
	c := &Curve{Values: make([]float64, minutegrid.SlotsPerWeek)}
	c.Values[5] = 0.5
	c.Values[9] = 0.5
	slot, p := c.PeakInWindow(minutegrid.Window{Start: 0, End: 20})
	assert.Equal(t, 5, slot)
	assert.Equal(t, 0.5, p)
}

func TestApplyWeights_ForcedZeroSuppresses(t *testing.T) {
	c := Uniform()
	weights := []Weight{{Window: minutegrid.Window{Start: 0, End: minutegrid.SlotsPerWeek - 1}, Magnitude: -1}}
	out := c.ApplyWeights(weights)
	require.True(t, out.Suppressed)
	assert.Equal(t, 0.0, out.Sum())
}

func TestApplyWeights_AccelerationShiftsMass(t *testing.T) {
	c := Uniform()
	win := minutegrid.Window{Start: 100, End: 110}
	out := c.ApplyWeights([]Weight{{Window: win, Magnitude: 2.0}})
	assert.Greater(t, out.Values[105], out.Values[200])
	assert.InDelta(t, 1.0, out.Sum(), 1e-9)
}

func TestClipToWindow(t *testing.T) {
	c := Uniform()
	w := minutegrid.Window{Start: 0, End: 9}
	out := c.ClipToWindow(w)
	assert.InDelta(t, 1.0, out.Sum(), 1e-9)
	assert.Equal(t, 0.0, out.Values[20])
}

func TestConfidence_DeltaDistributionNearOne(t *testing.T) {
	c := &Curve{Values: make([]float64, minutegrid.SlotsPerWeek)}
	c.Values[0] = 1.0
	assert.Greater(t, c.Confidence(), 0.9)
}
