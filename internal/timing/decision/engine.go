package decision

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/timing/curve"
	"github.com/ignite/timing-intelligence/internal/timing/eventstore"
	"github.com/ignite/timing-intelligence/internal/timing/feature"
	"github.com/ignite/timing-intelligence/internal/timing/minutegrid"
	"github.com/ignite/timing-intelligence/internal/timing/predictor"
	"github.com/ignite/timing-intelligence/internal/timing/timingerr"
)

// CircuitBreakerWindow is the cooling-off period a circuit-breaker event
// type forces, or Permanent if the breaker never expires.
type CircuitBreakerWindow struct {
	Duration  time.Duration
	Permanent bool
}

// Config tunes the decision pipeline.
type Config struct {
	HotPathWindow       time.Duration // default 30 minutes
	AccelerationMinutes int           // default 60
	CircuitBreakers     map[domain.TimingEventType]CircuitBreakerWindow
	ModelVersion        string
	MinLatencySeconds    int // default 1
	MaxLatencySeconds    int // default 3600
}

func (c Config) withDefaults() Config {
	if c.HotPathWindow <= 0 {
		c.HotPathWindow = 30 * time.Minute
	}
	if c.AccelerationMinutes <= 0 {
		c.AccelerationMinutes = 60
	}
	if c.CircuitBreakers == nil {
		c.CircuitBreakers = DefaultCircuitBreakerWindows()
	}
	if c.MinLatencySeconds <= 0 {
		c.MinLatencySeconds = 1
	}
	if c.MaxLatencySeconds <= 0 {
		c.MaxLatencySeconds = 3600
	}
	if c.ModelVersion == "" {
		c.ModelVersion = "heuristic-v1"
	}
	return c
}

// DefaultCircuitBreakerWindows returns the default cooling-off windows:
// 48h for support tickets and complaints, 168h for unsubscribe requests,
// and a permanent breaker for spam reports.
func DefaultCircuitBreakerWindows() map[domain.TimingEventType]CircuitBreakerWindow {
	return map[domain.TimingEventType]CircuitBreakerWindow{
		domain.TimingEventSupportTicket:      {Duration: 48 * time.Hour},
		domain.TimingEventComplained:         {Duration: 48 * time.Hour},
		domain.TimingEventUnsubscribeRequest: {Duration: 168 * time.Hour},
		domain.TimingEventSpamReport:         {Permanent: true},
	}
}

// permanentBreakerHorizon stands in for "forever" when computing a
// suppression_until for a permanent circuit breaker: long enough that no
// caller will ever observe the window lapsing in practice.
const permanentBreakerHorizon = 100 * 365 * 24 * time.Hour

// Engine is the Timing Decision Engine.
type Engine struct {
	features     *feature.Engine
	events       eventstore.EventStore
	explanations ExplanationLog
	latency      predictor.LatencyPredictor
	weights      predictor.SignalWeightPredictor
	cfg          Config
}

// NewEngine constructs a decision Engine. latency and weights may be nil,
// in which case the heuristic fallbacks are used.
func NewEngine(features *feature.Engine, events eventstore.EventStore, explanations ExplanationLog, latency predictor.LatencyPredictor, weights predictor.SignalWeightPredictor, cfg Config) *Engine {
	return &Engine{
		features:     features,
		events:       events,
		explanations: explanations,
		latency:      latency,
		weights:      weights,
		cfg:          cfg.withDefaults(),
	}
}

// Request is one decision request.
type Request struct {
	UniversalID            domain.UniversalID
	SendAfter               *time.Time
	SendBefore              *time.Time
	LatencyEstimateSeconds *int
	ESP                     string
	CampaignClass           string
	PayloadSizeBytes        int
	QueueDepthEstimate      int

	// Now overrides the reference instant of the decision steps (context
	// signal window, send window, trigger time); zero means
	// time.Now().UTC(). The feature engine does not see it: the curve's
	// lookback and the click counters are computed against the wall clock.
	Now time.Time
}

// Decide runs the full timing decision pipeline for one request.
func (e *Engine) Decide(ctx context.Context, req Request) (domain.TimingDecision, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}

	result, err := e.features.GetCurve(ctx, req.UniversalID)
	if err != nil {
		return domain.TimingDecision{}, timingerr.Wrap(timingerr.KindCurveUnavailable, "load engagement curve", err)
	}
	baseConfidence := result.Curve.Confidence()
	basePeakSlot, _ := result.Curve.PeakInWindow(minutegrid.Window{Start: 0, End: minutegrid.SlotsPerWeek - 1})

	latencySeconds, err := e.estimateLatency(ctx, req, now)
	if err != nil {
		return domain.TimingDecision{}, err
	}

	hotPath, breakers, err := e.pullContext(ctx, req.UniversalID, now)
	if err != nil {
		return domain.TimingDecision{}, err
	}

	if d, handled, err := e.checkSuppression(ctx, req, breakers, basePeakSlot, baseConfidence, latencySeconds, now); handled || err != nil {
		return d, err
	}

	accelWeights, applied, err := e.accelerationWeights(ctx, hotPath, now)
	if err != nil {
		return domain.TimingDecision{}, err
	}

	reweighted := result.Curve.ApplyWeights(accelWeights)

	window, windowErr := e.requestWindow(req, now)
	if windowErr != nil {
		return domain.TimingDecision{}, windowErr
	}
	if window != nil {
		reweighted = reweighted.ClipToWindow(*window)
	}

	if reweighted.Suppressed {
		return e.suppressedDecision(ctx, req.UniversalID, "curve_collapsed", now, basePeakSlot, baseConfidence, latencySeconds, now)
	}

	pickWindow := minutegrid.Window{Start: 0, End: minutegrid.SlotsPerWeek - 1}
	if window != nil {
		pickWindow = *window
	}
	targetSlot, _ := reweighted.PeakInWindow(pickWindow)

	baseTime := now
	if req.SendAfter != nil && req.SendAfter.After(baseTime) {
		baseTime = req.SendAfter.UTC()
	}
	targetInstant := minutegrid.NextOccurrenceAfter(targetSlot, baseTime)
	triggerTimestamp := targetInstant.Add(-time.Duration(latencySeconds) * time.Second)

	// Edge case: if subtracting latency pushes the trigger before now,
	// advance to the next weekly occurrence of the target slot.
	for triggerTimestamp.Before(now) {
		targetInstant = targetInstant.Add(minutegrid.SlotsPerWeek * time.Minute)
		triggerTimestamp = targetInstant.Add(-time.Duration(latencySeconds) * time.Second)
	}

	clickDiscount := 1.0
	if result.Summary.Clicks7d < 10 {
		clickDiscount = float64(result.Summary.Clicks7d) / 10.0
	}
	confidence := reweighted.Confidence() * clickDiscount

	decisionID := newID()
	d := domain.TimingDecision{
		DecisionID:             decisionID,
		UniversalID:            req.UniversalID,
		TargetMinute:           targetSlot,
		TriggerTimestampUTC:    triggerTimestamp,
		LatencyEstimateSeconds: latencySeconds,
		ConfidenceScore:        confidence,
		ModelVersion:           e.cfg.ModelVersion,
		BaseCurvePeakMinute:    basePeakSlot,
		AppliedWeights:         applied,
		ExplanationRef:         decisionID,
		CreatedAt:              now,
	}
	if err := e.explanations.Append(ctx, d); err != nil {
		return domain.TimingDecision{}, timingerr.Wrap(timingerr.KindBackendUnavailable, "persist decision", err)
	}
	return d, nil
}

func (e *Engine) estimateLatency(ctx context.Context, req Request, now time.Time) (int, error) {
	if req.LatencyEstimateSeconds != nil {
		return clampLatency(*req.LatencyEstimateSeconds, e.cfg), nil
	}
	if e.latency == nil {
		return clampLatency(predictor.DefaultLatencySeconds, e.cfg), nil
	}
	seconds, err := e.latency.EstimateSeconds(ctx, predictor.LatencyContext{
		ESP:                req.ESP,
		HourOfDay:          now.Hour(),
		DayOfWeek:          int(now.Weekday()),
		CampaignClass:      req.CampaignClass,
		PayloadSizeBytes:   req.PayloadSizeBytes,
		QueueDepthEstimate: req.QueueDepthEstimate,
	})
	if err != nil {
		return clampLatency(predictor.DefaultLatencySeconds, e.cfg), nil
	}
	return clampLatency(seconds, e.cfg), nil
}

func clampLatency(seconds int, cfg Config) int {
	if seconds < cfg.MinLatencySeconds {
		return cfg.MinLatencySeconds
	}
	if seconds > cfg.MaxLatencySeconds {
		return cfg.MaxLatencySeconds
	}
	return seconds
}

func (e *Engine) pullContext(ctx context.Context, id domain.UniversalID, now time.Time) (hotPath, breakers []domain.EngagementEvent, err error) {
	maxWindow := e.cfg.HotPathWindow
	for _, w := range e.cfg.CircuitBreakers {
		d := w.Duration
		if w.Permanent {
			d = permanentBreakerHorizon
		}
		if d > maxWindow {
			maxWindow = d
		}
	}

	types := append(append([]domain.TimingEventType{}, domain.HotPathEventTypes...), domain.CircuitBreakerEventTypes...)
	events, err := e.events.Query(ctx, eventstore.Filter{
		UniversalID: id,
		Types:       types,
		Since:       now.Add(-maxWindow),
	})
	if err != nil {
		return nil, nil, timingerr.Wrap(timingerr.KindBackendUnavailable, "query context signals", err)
	}

	for _, evt := range events {
		if isHotPath(evt.EventType) {
			if now.Sub(evt.Timestamp) <= e.cfg.HotPathWindow {
				hotPath = append(hotPath, evt)
			}
			continue
		}
		if isBreaker(evt.EventType) {
			window := e.cfg.CircuitBreakers[evt.EventType]
			if window.Permanent || now.Sub(evt.Timestamp) <= window.Duration {
				breakers = append(breakers, evt)
			}
		}
	}
	return hotPath, breakers, nil
}

func (e *Engine) checkSuppression(ctx context.Context, req Request, breakers []domain.EngagementEvent, basePeak int, baseConfidence float64, latencySeconds int, now time.Time) (domain.TimingDecision, bool, error) {
	if len(breakers) == 0 {
		return domain.TimingDecision{}, false, nil
	}

	latest := breakers[0]
	for _, b := range breakers[1:] {
		if b.Timestamp.After(latest.Timestamp) {
			latest = b
		}
	}

	window := e.cfg.CircuitBreakers[latest.EventType]
	dur := window.Duration
	if window.Permanent {
		dur = permanentBreakerHorizon
	}
	suppressionUntil := latest.Timestamp.Add(dur)

	d, err := e.suppressedDecision(ctx, req.UniversalID, string(latest.EventType), suppressionUntil, basePeak, baseConfidence, latencySeconds, now)
	return d, true, err
}

func (e *Engine) suppressedDecision(ctx context.Context, id domain.UniversalID, reason string, suppressionUntil time.Time, basePeak int, baseConfidence float64, latencySeconds int, now time.Time) (domain.TimingDecision, error) {
	decisionID := newID()
	until := suppressionUntil
	d := domain.TimingDecision{
		DecisionID:             decisionID,
		UniversalID:            id,
		TargetMinute:           minutegrid.DatetimeToSlot(suppressionUntil),
		TriggerTimestampUTC:    suppressionUntil,
		LatencyEstimateSeconds: latencySeconds,
		ConfidenceScore:        baseConfidence,
		ModelVersion:           e.cfg.ModelVersion,
		BaseCurvePeakMinute:    basePeak,
		Suppressed:             true,
		SuppressionReason:      reason,
		SuppressionUntil:       &until,
		ExplanationRef:         decisionID,
		CreatedAt:              now,
	}
	if err := e.explanations.Append(ctx, d); err != nil {
		return domain.TimingDecision{}, timingerr.Wrap(timingerr.KindBackendUnavailable, "persist suppressed decision", err)
	}
	return d, nil
}

func (e *Engine) accelerationWeights(ctx context.Context, hotPath []domain.EngagementEvent, now time.Time) ([]curve.Weight, []domain.AppliedWeight, error) {
	if len(hotPath) == 0 {
		return nil, nil, nil
	}

	slotNow := minutegrid.DatetimeToSlot(now)
	window := minutegrid.Window{Start: slotNow, End: minutegrid.Mod(slotNow + e.cfg.AccelerationMinutes - 1)}

	var weights []curve.Weight
	var applied []domain.AppliedWeight
	for _, evt := range hotPath {
		minutesAgo := now.Sub(evt.Timestamp).Minutes()

		var magnitude float64
		var err error
		if e.weights != nil {
			magnitude, err = e.weights.Weight(ctx, evt.EventType, minutesAgo)
		}
		if e.weights == nil || err != nil {
			// A failing predictor falls back to the heuristic; the decision
			// proceeds.
			h := predictor.HeuristicSignalWeightPredictor{}
			magnitude, _ = h.Weight(ctx, evt.EventType, minutesAgo)
		}
		if magnitude < 0 {
			magnitude = 0
		}

		weights = append(weights, curve.Weight{Window: window, Magnitude: magnitude})
		applied = append(applied, domain.AppliedWeight{Signal: evt.EventType, Magnitude: magnitude, MinutesAgo: minutesAgo})
	}
	return weights, applied, nil
}

// requestWindow converts the caller's optional [send_after, send_before]
// range into a slot Window for the earliest viable week. Returns nil if no
// range was supplied (no clipping applied).
func (e *Engine) requestWindow(req Request, now time.Time) (*minutegrid.Window, error) {
	if req.SendAfter == nil && req.SendBefore == nil {
		return nil, nil
	}

	start := now
	if req.SendAfter != nil && req.SendAfter.After(start) {
		start = req.SendAfter.UTC()
	}

	if req.SendBefore != nil {
		end := req.SendBefore.UTC()
		if !end.After(start) {
			return nil, timingerr.New(timingerr.KindWindowExpired, "send window is entirely in the past")
		}
		if end.Sub(start) > minutegrid.SlotsPerWeek*time.Minute {
			end = start.Add(minutegrid.SlotsPerWeek*time.Minute - time.Minute)
		}
		w := minutegrid.Window{Start: minutegrid.DatetimeToSlot(start), End: minutegrid.DatetimeToSlot(end)}
		return &w, nil
	}

	w := minutegrid.Window{Start: minutegrid.DatetimeToSlot(start), End: minutegrid.Mod(minutegrid.DatetimeToSlot(start) - 1)}
	return &w, nil
}

func isHotPath(t domain.TimingEventType) bool {
	for _, h := range domain.HotPathEventTypes {
		if h == t {
			return true
		}
	}
	return false
}

func isBreaker(t domain.TimingEventType) bool {
	for _, b := range domain.CircuitBreakerEventTypes {
		if b == t {
			return true
		}
	}
	return false
}

func newID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
