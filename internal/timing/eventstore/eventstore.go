// Package eventstore defines the gateway contract for the append-only,
// columnar engagement event table. It has no implementation of its own;
// internal/snowflake implements EventStore against Snowflake,
// and tests substitute an in-memory fake.
package eventstore

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/timing-intelligence/internal/domain"
)

// ErrUnavailable is returned when the backing store cannot be reached at
// all (as opposed to returning zero rows).
var ErrUnavailable = errors.New("event store unavailable")

// Filter scopes a read to one Universal ID, optionally restricted to a set
// of event types and a time range. A nil/empty Types means "all types".
type Filter struct {
	UniversalID domain.UniversalID
	Types       []domain.TimingEventType
	Since       time.Time
	Until       time.Time // zero value means "now"
}

// EventStore is the typed read/write gateway to the event store described
// in spec §6: append-only, partitioned monthly, ordered by
// (esp, universal_id, timestamp, event_type).
type EventStore interface {
	// Insert writes one engagement event. Implementations must dedupe
	// downstream on (esp, event_id, campaign_id); Insert itself is not
	// required to be idempotent against retries from a single caller that
	// already deduped at the pipeline level.
	Insert(ctx context.Context, evt domain.EngagementEvent) error

	// Query returns events matching the filter, ordered oldest-first.
	Query(ctx context.Context, f Filter) ([]domain.EngagementEvent, error)

	// CountByType returns the count of events of the given type for a
	// Universal ID within [since, now). Used for recency counters
	// (1d/7d/30d opens and clicks) without materializing every row.
	CountByType(ctx context.Context, id domain.UniversalID, t domain.TimingEventType, since time.Time) (int, error)

	// EarliestLatest returns the first and last timestamp of events of the
	// given type for a Universal ID, or zero times if none exist.
	EarliestLatest(ctx context.Context, id domain.UniversalID, t domain.TimingEventType) (earliest, latest time.Time, err error)
}
