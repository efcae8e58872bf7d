package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/timing-intelligence/internal/domain"
)

// memStore is an in-memory Store fake for resolver tests.
type memStore struct {
	mu    sync.Mutex
	cache map[domain.Identifier]domain.ResolutionCacheEntry
	edges map[domain.Identifier][]domain.IdentityEdge
	audit []domain.AuditRecord
}

func newMemStore() *memStore {
	return &memStore{
		cache: make(map[domain.Identifier]domain.ResolutionCacheEntry),
		edges: make(map[domain.Identifier][]domain.IdentityEdge),
	}
}

func (m *memStore) LookupCache(_ context.Context, id domain.Identifier) (domain.ResolutionCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[id]
	if !ok {
		return domain.ResolutionCacheEntry{}, ErrNotFound
	}
	return e, nil
}

func (m *memStore) UpsertCache(_ context.Context, entry domain.ResolutionCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[entry.Identifier] = entry
	return nil
}

func (m *memStore) RepointCache(_ context.Context, from, to domain.UniversalID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.cache {
		if v.UniversalID == from {
			v.UniversalID = to
			m.cache[k] = v
		}
	}
	return nil
}

func (m *memStore) EdgesFrom(_ context.Context, id domain.Identifier) ([]domain.IdentityEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.edges[id], nil
}

func (m *memStore) addEdge(e domain.IdentityEdge) {
	m.edges[e.A] = append(m.edges[e.A], e)
	m.edges[e.B] = append(m.edges[e.B], e)
}

func (m *memStore) UpsertEdge(_ context.Context, e domain.IdentityEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addEdge(e)
	return nil
}

func (m *memStore) AppendAudit(_ context.Context, rec domain.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, rec)
	return nil
}

func newTestService(store Store) *Service {
	return NewService(store, Config{PhoneDefaultCountryCode: "1"})
}

func TestResolve_EmptyInputRejected(t *testing.T) {
	s := newTestService(newMemStore())
	_, err := s.Resolve(context.Background(), Input{})
	require.Error(t, err)
}

func TestResolve_SynthesizesNewUniversalID(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)

	uid, err := s.Resolve(context.Background(), Input{Email: "Alice@Example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, uid)
	assert.Regexp(t, "^sf_[0-9a-f]{16}$", string(uid))

	entry, err := store.LookupCache(context.Background(), NormalizeEmail("alice@example.com"))
	require.NoError(t, err)
	assert.Equal(t, uid, entry.UniversalID)
	assert.Equal(t, 1.0, entry.Confidence)
}

func TestResolve_IsIdempotentAcrossCalls(t *testing.T) {
	store := newMemStore()
	s := newTestService(store)

	uid1, err := s.Resolve(context.Background(), Input{Email: "bob@example.com"})
	require.NoError(t, err)

	uid2, err := s.Resolve(context.Background(), Input{Email: "bob@example.com"})
	require.NoError(t, err)

	assert.Equal(t, uid1, uid2)
}

func TestResolve_ProbabilisticCacheHit(t *testing.T) {
	store := newMemStore()
	want := domain.UniversalID("sf_deadbeefdeadbeef")
	klaviyo := domain.Identifier{Type: domain.IdentifierKlaviyoID, Value: "k123"}
	require.NoError(t, store.UpsertCache(context.Background(), domain.ResolutionCacheEntry{
		Identifier:  klaviyo,
		UniversalID: want,
		Confidence:  0.95,
		LastSeen:    time.Now(),
	}))

	s := newTestService(store)
	got, err := s.Resolve(context.Background(), Input{KlaviyoID: "k123"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve_BFSTraversesToKnownIdentifier(t *testing.T) {
	store := newMemStore()
	email := NormalizeEmail("carol@example.com")
	shopify := domain.Identifier{Type: domain.IdentifierShopifyCustomer, Value: "shop_1"}
	want := domain.UniversalID("sf_feedfacefeedface")

	require.NoError(t, store.UpsertCache(context.Background(), domain.ResolutionCacheEntry{
		Identifier:  email,
		UniversalID: want,
		Confidence:  1.0,
		LastSeen:    time.Now(),
	}))

	now := time.Now()
	require.NoError(t, store.UpsertEdge(context.Background(), domain.IdentityEdge{
		A: shopify, B: email, Weight: 0.9, Source: "order_email_match",
		CreatedAt: now, UpdatedAt: now,
	}))

	s := newTestService(store)
	got, err := s.Resolve(context.Background(), Input{ShopifyCustomerID: "shop_1"})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	entry, err := store.LookupCache(context.Background(), shopify)
	require.NoError(t, err)
	assert.Equal(t, want, entry.UniversalID)
	assert.InDelta(t, 0.9, entry.Confidence, 1e-9)
}

func TestResolve_ConflictingDeterministicHitsMergeOnOlder(t *testing.T) {
	store := newMemStore()
	email := NormalizeEmail("dana@example.com")
	phone := NormalizePhone("+15551234567", "1")

	older := domain.UniversalID("sf_1111111111111111")
	newer := domain.UniversalID("sf_2222222222222222")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertCache(context.Background(), domain.ResolutionCacheEntry{
		Identifier: email, UniversalID: older, Confidence: 1.0, LastSeen: base,
	}))
	require.NoError(t, store.UpsertCache(context.Background(), domain.ResolutionCacheEntry{
		Identifier: phone, UniversalID: newer, Confidence: 1.0, LastSeen: base.Add(time.Hour),
	}))

	s := newTestService(store)
	got, err := s.Resolve(context.Background(), Input{Email: "dana@example.com", Phone: "+15551234567"})
	require.NoError(t, err)
	assert.Equal(t, older, got)

	phoneEntry, err := store.LookupCache(context.Background(), phone)
	require.NoError(t, err)
	assert.Equal(t, older, phoneEntry.UniversalID, "loser's cache entries must be repointed to the winner")

	foundMerge := false
	for _, rec := range store.audit {
		if rec.Step == domain.StepConflictMerged {
			foundMerge = true
		}
	}
	assert.True(t, foundMerge, "expected a conflict_merged audit record")
}
