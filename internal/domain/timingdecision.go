package domain

import "time"

// AppliedWeight is one contextual reweighting applied to a curve before
// target-minute selection, recorded for explainability.
type AppliedWeight struct {
	Signal     TimingEventType `json:"signal"`
	Magnitude  float64         `json:"magnitude"`
	MinutesAgo float64         `json:"minutes_ago"`
}

// TimingDecision is the append-only record a decision request produces.
type TimingDecision struct {
	DecisionID            string          `json:"decision_id"`
	UniversalID           UniversalID     `json:"universal_id"`
	TargetMinute          int             `json:"target_minute"`
	TriggerTimestampUTC   time.Time       `json:"trigger_timestamp_utc"`
	LatencyEstimateSeconds int            `json:"latency_estimate_seconds"`
	ConfidenceScore       float64         `json:"confidence_score"`
	ModelVersion          string          `json:"model_version"`
	BaseCurvePeakMinute   int             `json:"base_curve_peak_minute"`
	AppliedWeights        []AppliedWeight `json:"applied_weights"`
	Suppressed            bool            `json:"suppressed"`
	SuppressionReason     string          `json:"suppression_reason,omitempty"`
	SuppressionUntil      *time.Time      `json:"suppression_until,omitempty"`
	ExplanationRef        string          `json:"explanation_ref"`
	CreatedAt             time.Time       `json:"created_at"`
}

// PeakWindow is one entry of a curve's top-K diagnostic summary.
type PeakWindow struct {
	Slot                 int     `json:"slot"`
	InterpolatedProbability float64 `json:"interpolated_probability"`
	Label                 string  `json:"label"`
}

// CurveSummary is the diagnostic payload persisted alongside a cached
// curve: peak windows plus engagement counters.
type CurveSummary struct {
	PeakWindows   []PeakWindow `json:"peak_windows"`
	Opens1d       int          `json:"opens_1d"`
	Opens7d       int          `json:"opens_7d"`
	Opens30d      int          `json:"opens_30d"`
	Clicks1d      int          `json:"clicks_1d"`
	Clicks7d      int          `json:"clicks_7d"`
	Clicks30d     int          `json:"clicks_30d"`
	EarliestEvent *time.Time   `json:"earliest_event,omitempty"`
	LatestEvent   *time.Time   `json:"latest_event,omitempty"`
	Degraded      bool         `json:"degraded"`
}
