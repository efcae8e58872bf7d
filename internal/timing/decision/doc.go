// Package decision implements the Timing Decision Engine: it combines a
// subject's base Engagement Curve with real-time contextual weights
// (acceleration from hot-path signals, suppression from circuit-breaker
// signals), clips the result to a caller-supplied send window, picks a
// target minute, subtracts the estimated gateway latency, and persists an
// auditable decision record.
//
// Engine depends on feature.Engine for the base curve, eventstore.EventStore
// for context signals, the predictor ports for latency/weight inference,
// and the ExplanationLog interface defined in repository.go for
// persistence. It never imports database/sql directly.
package decision
