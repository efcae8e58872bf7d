package ingest

import "context"

// BackfillResult tallies the outcome of a bulk backfill run.
type BackfillResult struct {
	Inserted     int
	DeadLettered int
}

// RunBackfill drives a batch of raw messages through the same per-message
// steps as the streaming path, without offset tracking. It is safe to
// re-run: event store inserts dedupe on (esp, event_id, campaign_id), and
// identity edge/cache writes are idempotent at the gateway.
func RunBackfill(ctx context.Context, p *Pipeline, messages [][]byte) (BackfillResult, error) {
	var result BackfillResult
	for _, raw := range messages {
		outcome, err := p.Process(ctx, raw, Ack{})
		if err != nil {
			return result, err
		}
		if outcome == OutcomeDeadLettered {
			result.DeadLettered++
		} else {
			result.Inserted++
		}
	}
	return result, nil
}
