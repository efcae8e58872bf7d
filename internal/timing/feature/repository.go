package feature

import (
	"context"
	"time"

	"github.com/ignite/timing-intelligence/internal/domain"
)

// Snapshot is the cached, serialized form of a subject's Engagement Curve:
// the packed probability vector plus the counters and peak-window summary
// derived alongside it.
type Snapshot struct {
	UniversalID domain.UniversalID
	Values      []float64
	Suppressed  bool
	Confidence  float64
	Summary     domain.CurveSummary
	ComputedAt  time.Time
}

// Cache is the keyed binary cache gateway for serialized curves and
// counters, one entry per Universal ID.
type Cache interface {
	// Get returns the cached snapshot for a Universal ID. Returns
	// ErrCacheMiss if no entry exists.
	Get(ctx context.Context, id domain.UniversalID) (Snapshot, error)

	// Put stores a snapshot with the given time-to-live.
	Put(ctx context.Context, snap Snapshot, ttl time.Duration) error
}
