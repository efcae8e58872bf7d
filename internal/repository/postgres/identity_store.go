package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/timing/identity"
)

// IdentityStore implements identity.Store against PostgreSQL: a resolution
// cache table, an append-only edge table, and an append-only audit log.
type IdentityStore struct{ db *sql.DB }

// NewIdentityStore creates a Postgres-backed identity store.
func NewIdentityStore(db *sql.DB) *IdentityStore { return &IdentityStore{db: db} }

var _ identity.Store = (*IdentityStore)(nil)

func (r *IdentityStore) LookupCache(ctx context.Context, id domain.Identifier) (domain.ResolutionCacheEntry, error) {
	var entry domain.ResolutionCacheEntry
	entry.Identifier = id
	err := r.db.QueryRowContext(ctx, `
		SELECT universal_id, confidence, last_seen
		FROM timing_identity_cache
		WHERE identifier_type = $1 AND identifier_value = $2
	`, string(id.Type), id.Value).Scan(&entry.UniversalID, &entry.Confidence, &entry.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ResolutionCacheEntry{}, identity.ErrNotFound
	}
	if err != nil {
		return domain.ResolutionCacheEntry{}, fmt.Errorf("lookup identity cache: %w", err)
	}
	return entry, nil
}

func (r *IdentityStore) UpsertCache(ctx context.Context, entry domain.ResolutionCacheEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO timing_identity_cache (identifier_type, identifier_value, universal_id, confidence, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identifier_type, identifier_value) DO UPDATE
		SET universal_id = $3, confidence = $4, last_seen = $5
		WHERE timing_identity_cache.last_seen <= $5
	`, string(entry.Identifier.Type), entry.Identifier.Value, string(entry.UniversalID), entry.Confidence, entry.LastSeen)
	if err != nil {
		return fmt.Errorf("upsert identity cache: %w", err)
	}
	return nil
}

func (r *IdentityStore) RepointCache(ctx context.Context, from, to domain.UniversalID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE timing_identity_cache SET universal_id = $2 WHERE universal_id = $1
	`, string(from), string(to))
	if err != nil {
		return fmt.Errorf("repoint identity cache: %w", err)
	}
	return nil
}

func (r *IdentityStore) EdgesFrom(ctx context.Context, id domain.Identifier) ([]domain.IdentityEdge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a_type, a_value, b_type, b_value, weight, source, created_at, updated_at
		FROM timing_identity_edges
		WHERE (a_type = $1 AND a_value = $2) OR (b_type = $1 AND b_value = $2)
	`, string(id.Type), id.Value)
	if err != nil {
		return nil, fmt.Errorf("query identity edges: %w", err)
	}
	defer rows.Close()

	var out []domain.IdentityEdge
	for rows.Next() {
		var e domain.IdentityEdge
		var aType, bType string
		if err := rows.Scan(&aType, &e.A.Value, &bType, &e.B.Value, &e.Weight, &e.Source, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan identity edge: %w", err)
		}
		e.A.Type = domain.IdentifierType(aType)
		e.B.Type = domain.IdentifierType(bType)
		out = append(out, e)
	}
	return out, nil
}

func (r *IdentityStore) UpsertEdge(ctx context.Context, edge domain.IdentityEdge) error {
	// Store each pair in one canonical orientation so {A, B} and {B, A}
	// hit the same conflict key.
	if edge.B.Type < edge.A.Type || (edge.B.Type == edge.A.Type && edge.B.Value < edge.A.Value) {
		edge.A, edge.B = edge.B, edge.A
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO timing_identity_edges (a_type, a_value, b_type, b_value, weight, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (a_type, a_value, b_type, b_value) DO UPDATE
		SET weight = GREATEST(timing_identity_edges.weight, $5), updated_at = $8
	`, string(edge.A.Type), edge.A.Value, string(edge.B.Type), edge.B.Value, edge.Weight, edge.Source, edge.CreatedAt, edge.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert identity edge: %w", err)
	}
	return nil
}

func (r *IdentityStore) AppendAudit(ctx context.Context, rec domain.AuditRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO timing_identity_audit (resolution_id, universal_id, input_identifier, input_type, step, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ResolutionID, string(rec.UniversalID), rec.InputIdentifier, string(rec.InputType), rec.Step, rec.Confidence, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("append identity audit: %w", err)
	}
	return nil
}
