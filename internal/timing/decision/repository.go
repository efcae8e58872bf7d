package decision

import (
	"context"

	"github.com/ignite/timing-intelligence/internal/domain"
)

// ExplanationLog is the append-only sink for persisted Timing Decisions.
// A decision's ExplanationRef is the key a caller can later use to look
// the record back up; Engine uses the DecisionID itself as that key.
type ExplanationLog interface {
	Append(ctx context.Context, decision domain.TimingDecision) error
}
