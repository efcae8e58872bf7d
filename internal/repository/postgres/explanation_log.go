package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/timing/decision"
)

// ExplanationLog implements decision.ExplanationLog against PostgreSQL: one
// append-only row per persisted TimingDecision, keyed by decision_id.
type ExplanationLog struct{ db *sql.DB }

// NewExplanationLog creates a Postgres-backed explanation log.
func NewExplanationLog(db *sql.DB) *ExplanationLog { return &ExplanationLog{db: db} }

var _ decision.ExplanationLog = (*ExplanationLog)(nil)

func (r *ExplanationLog) Append(ctx context.Context, d domain.TimingDecision) error {
	appliedWeights, err := json.Marshal(d.AppliedWeights)
	if err != nil {
		return fmt.Errorf("marshal applied weights: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO timing_explanations (
			decision_id, universal_id, target_minute, trigger_timestamp_utc,
			latency_estimate_seconds, confidence_score, model_version,
			base_curve_peak_minute, applied_weights, suppressed,
			suppression_reason, suppression_until, explanation_ref, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		d.DecisionID, string(d.UniversalID), d.TargetMinute, d.TriggerTimestampUTC,
		d.LatencyEstimateSeconds, d.ConfidenceScore, d.ModelVersion,
		d.BaseCurvePeakMinute, appliedWeights, d.Suppressed,
		nullableString(d.SuppressionReason), d.SuppressionUntil, d.ExplanationRef, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append explanation: %w", err)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
