package timingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/timing/decision"
	"github.com/ignite/timing-intelligence/internal/timing/eventstore"
	"github.com/ignite/timing-intelligence/internal/timing/feature"
	"github.com/ignite/timing-intelligence/internal/timing/identity"
)

type memStore struct {
	mu    sync.Mutex
	cache map[domain.Identifier]domain.ResolutionCacheEntry
	edges map[domain.Identifier][]domain.IdentityEdge
}

func newMemStore() *memStore {
	return &memStore{cache: make(map[domain.Identifier]domain.ResolutionCacheEntry), edges: make(map[domain.Identifier][]domain.IdentityEdge)}
}

func (m *memStore) LookupCache(_ context.Context, id domain.Identifier) (domain.ResolutionCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[id]
	if !ok {
		return domain.ResolutionCacheEntry{}, identity.ErrNotFound
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

func (m *memStore) UpsertEdge(_ context.Context, edge domain.IdentityEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[edge.A] = append(m.edges[edge.A], edge)
	m.edges[edge.B] = append(m.edges[edge.B], edge)
	return nil
}

func (m *memStore) AppendAudit(_ context.Context, rec domain.AuditRecord) error { return nil }

type memEventStore struct{}

func (memEventStore) Insert(_ context.Context, evt domain.EngagementEvent) error { return nil }
func (memEventStore) Query(_ context.Context, f eventstore.Filter) ([]domain.EngagementEvent, error) {
	return nil, nil
}
func (memEventStore) CountByType(_ context.Context, id domain.UniversalID, t domain.TimingEventType, since time.Time) (int, error) {
	return 0, nil
}
func (memEventStore) EarliestLatest(_ context.Context, id domain.UniversalID, t domain.TimingEventType) (time.Time, time.Time, error) {
	return time.Time{}, time.Time{}, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[domain.UniversalID]feature.Snapshot
}

func newMemCache() *memCache { return &memCache{data: make(map[domain.UniversalID]feature.Snapshot)} }

func (c *memCache) Get(_ context.Context, id domain.UniversalID) (feature.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.data[id]
	if !ok {
		return feature.Snapshot{}, feature.ErrCacheMiss
	}
	return s, nil
}

func (c *memCache) Put(_ context.Context, snap feature.Snapshot, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[snap.UniversalID] = snap
	return nil
}

type memExplanationLog struct{}

func (memExplanationLog) Append(_ context.Context, d domain.TimingDecision) error { return nil }

func newTestHandlers() *Handlers {
	resolver := identity.NewService(newMemStore(), identity.Config{PhoneDefaultCountryCode: "1"})
	features := feature.NewEngine(memEventStore{}, newMemCache(), feature.Config{}, nil)
	decider := decision.NewEngine(features, memEventStore{}, memExplanationLog{}, nil, nil, decision.Config{})
	return NewHandlers(resolver, decider)
}

func TestDecide_ReturnsDecisionForFreshIdentifier(t *testing.T) {
	h := newTestHandlers()
	router := NewRouter(h)

	body, _ := json.Marshal(decisionRequest{Identifiers: identifiersPayload{Email: "person@example.com"}})
	req := httptest.NewRequest(http.MethodPost, "/timing/decide", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp decisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.UniversalID)
	assert.NotEmpty(t, resp.ModelVersion)
	assert.NotEmpty(t, resp.ExplanationRef)
}

func TestDecide_RejectsEmptyIdentifiers(t *testing.T) {
	h := newTestHandlers()
	router := NewRouter(h)

	body, _ := json.Marshal(decisionRequest{})
	req := httptest.NewRequest(http.MethodPost, "/timing/decide", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth_ReturnsOK(t *testing.T) {
	h := newTestHandlers()
	router := NewRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/timing/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
