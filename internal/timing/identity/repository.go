package identity

import (
	"context"

	"github.com/ignite/timing-intelligence/internal/domain"
)

// Store defines the data access contract for the identity edge graph, the
// per-identifier resolution cache, and the append-only audit log.
type Store interface {
	// LookupCache returns the cached resolution for an Identifier.
	// Returns ErrNotFound if no entry exists.
	LookupCache(ctx context.Context, id domain.Identifier) (domain.ResolutionCacheEntry, error)

	// UpsertCache writes a resolution cache entry, overwriting the
	// existing entry for the same Identifier unless that entry has a
	// later LastSeen.
	UpsertCache(ctx context.Context, entry domain.ResolutionCacheEntry) error

	// RepointCache rewrites every cache entry currently pointing at `from`
	// to point at `to` instead. Used by the conflict-merge policy when two
	// deterministic identifiers resolve to different Universal IDs.
	RepointCache(ctx context.Context, from, to domain.UniversalID) error

	// EdgesFrom returns every edge touching the given Identifier, in no
	// particular order; the BFS sorts them by weight itself.
	EdgesFrom(ctx context.Context, id domain.Identifier) ([]domain.IdentityEdge, error)

	// UpsertEdge idempotently inserts or refreshes an edge keyed on the
	// unordered pair {A, B}: UpdatedAt advances and Weight becomes the
	// maximum of the stored and supplied weight.
	UpsertEdge(ctx context.Context, edge domain.IdentityEdge) error

	// AppendAudit appends one step to the resolution audit log.
	AppendAudit(ctx context.Context, rec domain.AuditRecord) error
}
