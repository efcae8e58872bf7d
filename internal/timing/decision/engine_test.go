package decision

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/timing/eventstore"
	"github.com/ignite/timing-intelligence/internal/timing/feature"
	"github.com/ignite/timing-intelligence/internal/timing/minutegrid"
)

type memEventStore struct {
	mu     sync.Mutex
	events []domain.EngagementEvent
}

func (m *memEventStore) Insert(_ context.Context, evt domain.EngagementEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *memEventStore) Query(_ context.Context, f eventstore.Filter) ([]domain.EngagementEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EngagementEvent
	for _, e := range m.events {
		if e.UniversalID != f.UniversalID {
			continue
		}
		if len(f.Types) > 0 && !hasType(f.Types, e.EventType) {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memEventStore) CountByType(_ context.Context, id domain.UniversalID, t domain.TimingEventType, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.UniversalID == id && e.EventType == t && !e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memEventStore) EarliestLatest(_ context.Context, id domain.UniversalID, t domain.TimingEventType) (time.Time, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var earliest, latest time.Time
	for _, e := range m.events {
		if e.UniversalID != id || e.EventType != t {
			continue
		}
		if earliest.IsZero() || e.Timestamp.Before(earliest) {
			earliest = e.Timestamp
		}
		if latest.IsZero() || e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}
	return earliest, latest, nil
}

func hasType(types []domain.TimingEventType, t domain.TimingEventType) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
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

type memExplanationLog struct {
	mu      sync.Mutex
	records []domain.TimingDecision
}

func (l *memExplanationLog) Append(_ context.Context, d domain.TimingDecision) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, d)
	return nil
}

func newTestEngine(store *memEventStore) *Engine {
	features := feature.NewEngine(store, newMemCache(), feature.Config{}, nil)
	return NewEngine(features, store, &memExplanationLog{}, nil, nil, Config{})
}

func TestDecide_FreshUserNoConstraints(t *testing.T) {
	store := &memEventStore{}
	engine := newTestEngine(store)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) // Wednesday

	d, err := engine.Decide(context.Background(), Request{UniversalID: "sf_alice", Now: now})
	require.NoError(t, err)

	assert.Equal(t, 0, d.TargetMinute)
	assert.Equal(t, 120, d.LatencyEstimateSeconds)
	assert.InDelta(t, 0.0, d.ConfidenceScore, 1e-9)

	wantTrigger := minutegrid.NextOccurrenceAfter(0, now).Add(-120 * time.Second)
	assert.True(t, d.TriggerTimestampUTC.Equal(wantTrigger))
	assert.False(t, d.Suppressed)
}

func TestDecide_LatencyCompensatedPeakPick(t *testing.T) {
	store := &memEventStore{}
	id := domain.UniversalID("sf_peak")
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) // Wednesday
	// The feature engine counts clicks against the wall clock, not
	// Request.Now, so the clicks sit at Monday 09:00 of the current week.
	anchor := minutegrid.SlotToDatetime(540, minutegrid.WeekStart(time.Now().UTC()))

	for i := 0; i < 50; i++ {
		store.events = append(store.events, domain.EngagementEvent{
			EventID: "c", UniversalID: id, EventType: domain.TimingEventClicked, Timestamp: anchor,
		})
	}

	engine := newTestEngine(store)
	latency := 300
	sendAfter := minutegrid.NextOccurrenceAfter(480, now)
	sendBefore := minutegrid.NextOccurrenceAfter(600, now)

	d, err := engine.Decide(context.Background(), Request{
		UniversalID:            id,
		Now:                    now,
		LatencyEstimateSeconds: &latency,
		SendAfter:              &sendAfter,
		SendBefore:             &sendBefore,
	})
	require.NoError(t, err)

	assert.Equal(t, 540, d.TargetMinute)
	assert.Greater(t, d.ConfidenceScore, 0.3)

	wantTargetInstant := minutegrid.NextOccurrenceAfter(540, sendAfter)
	wantTrigger := wantTargetInstant.Add(-300 * time.Second)
	assert.True(t, d.TriggerTimestampUTC.Equal(wantTrigger))
}

func TestDecide_CircuitBreakerSuppresses(t *testing.T) {
	store := &memEventStore{}
	id := domain.UniversalID("sf_breaker")
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	ticketTime := now.Add(-time.Hour)

	store.events = append(store.events, domain.EngagementEvent{
		EventID: "t1", UniversalID: id, EventType: domain.TimingEventSupportTicket, Timestamp: ticketTime,
	})

	engine := newTestEngine(store)
	d, err := engine.Decide(context.Background(), Request{UniversalID: id, Now: now})
	require.NoError(t, err)

	require.True(t, d.Suppressed)
	assert.Equal(t, "support_ticket", d.SuppressionReason)
	require.NotNil(t, d.SuppressionUntil)

	wantUntil := ticketTime.Add(48 * time.Hour)
	assert.True(t, d.SuppressionUntil.Equal(wantUntil))
	assert.True(t, d.TriggerTimestampUTC.Equal(wantUntil), "no latency subtraction on a suppressed decision")
}

func TestDecide_HotPathAccelerationRecordsAppliedWeight(t *testing.T) {
	store := &memEventStore{}
	id := domain.UniversalID("sf_hotpath")
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	anchor := minutegrid.SlotToDatetime(540, minutegrid.WeekStart(now))

	for i := 0; i < 50; i++ {
		store.events = append(store.events, domain.EngagementEvent{
			EventID: "c", UniversalID: id, EventType: domain.TimingEventClicked, Timestamp: anchor,
		})
	}
	store.events = append(store.events, domain.EngagementEvent{
		EventID: "sv", UniversalID: id, EventType: domain.TimingEventSiteVisit, Timestamp: now.Add(-5 * time.Minute),
	})

	engine := newTestEngine(store)
	d, err := engine.Decide(context.Background(), Request{UniversalID: id, Now: now})
	require.NoError(t, err)

	require.Len(t, d.AppliedWeights, 1)
	aw := d.AppliedWeights[0]
	assert.Equal(t, domain.TimingEventSiteVisit, aw.Signal)
	assert.InDelta(t, 5.0, aw.MinutesAgo, 1e-6)
	assert.InDelta(t, 1.43, aw.Magnitude, 0.01)
}

func TestDecide_WindowEntirelyPastIsRejected(t *testing.T) {
	store := &memEventStore{}
	engine := newTestEngine(store)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	after := now.Add(-2 * time.Hour)
	before := now.Add(-time.Hour)

	_, err := engine.Decide(context.Background(), Request{
		UniversalID: "sf_expired", Now: now, SendAfter: &after, SendBefore: &before,
	})
	require.Error(t, err)
}
