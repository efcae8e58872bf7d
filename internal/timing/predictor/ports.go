package predictor

import (
	"context"

	"github.com/ignite/timing-intelligence/internal/domain"
)

// LatencyContext is the feature set passed to the latency predictor: the
// send-time context available before a message actually goes out.
type LatencyContext struct {
	ESP                string
	HourOfDay          int
	DayOfWeek          int
	CampaignClass      string
	PayloadSizeBytes   int
	QueueDepthEstimate int
}

// LatencyPredictor estimates gateway delivery latency in seconds. A nil
// LatencyPredictor is valid at the decision engine call site and signals
// "use the heuristic default".
type LatencyPredictor interface {
	EstimateSeconds(ctx context.Context, features LatencyContext) (int, error)
}

// SignalWeightPredictor produces the acceleration weight ω_i(t) a
// hot-path context signal contributes to the curve, given how long ago it
// fired. Weights from this port are always >= 0 (acceleration only; the
// decision engine's suppression handling is separate and unconditional).
type SignalWeightPredictor interface {
	Weight(ctx context.Context, signal domain.TimingEventType, minutesSinceEvent float64) (float64, error)
}
