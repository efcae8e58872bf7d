package predictor

import (
	"context"
	"math"

	"github.com/ignite/timing-intelligence/internal/domain"
)

const (
	// DefaultLatencySeconds is the fallback "median_recent_latency" used
	// when no latency model is loaded.
	DefaultLatencySeconds = 120

	// accelerationHalfLifeMinutes controls how fast a hot-path signal's
	// acceleration weight decays: ω(t) = 2.0 * exp(-t/15).
	accelerationHalfLifeMinutes = 15.0

	// accelerationScale is the magnitude at t=0.
	accelerationScale = 2.0
)

// HeuristicLatencyPredictor always returns a fixed estimate, independent
// of features. It is the fallback used when no trained model is loaded.
type HeuristicLatencyPredictor struct {
	Seconds int
}

// NewHeuristicLatencyPredictor returns a predictor defaulting to
// DefaultLatencySeconds when seconds <= 0.
func NewHeuristicLatencyPredictor(seconds int) *HeuristicLatencyPredictor {
	if seconds <= 0 {
		seconds = DefaultLatencySeconds
	}
	return &HeuristicLatencyPredictor{Seconds: seconds}
}

func (h *HeuristicLatencyPredictor) EstimateSeconds(_ context.Context, _ LatencyContext) (int, error) {
	return h.Seconds, nil
}

// HeuristicSignalWeightPredictor implements ω_i(t) = scale * exp(-t/halfLife)
// for every hot-path signal type uniformly; it does not differentiate by
// signal type because no trained model is loaded.
type HeuristicSignalWeightPredictor struct{}

func (HeuristicSignalWeightPredictor) Weight(_ context.Context, _ domain.TimingEventType, minutesSinceEvent float64) (float64, error) {
	if minutesSinceEvent < 0 {
		minutesSinceEvent = 0
	}
	return accelerationScale * math.Exp(-minutesSinceEvent/accelerationHalfLifeMinutes), nil
}
