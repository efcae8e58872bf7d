// Package predictor defines the pluggable ML inference ports the decision
// engine consults — a latency predictor and a signal-weight predictor —
// plus the heuristic fallbacks used when no model is loaded, and a
// Bedrock-backed implementation for callers that have one.
//
// Training the models behind these ports is out of scope; this package
// only owns the inference-time contract and a couple of reasonable
// default behaviors.
package predictor
