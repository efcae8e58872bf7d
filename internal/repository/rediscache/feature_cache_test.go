package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/timing/feature"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestFeatureCache_GetMissReturnsErrCacheMiss(t *testing.T) {
	cache := NewFeatureCache(newTestClient(t))
	_, err := cache.Get(context.Background(), "sf_missing")
	assert.ErrorIs(t, err, feature.ErrCacheMiss)
}

func TestFeatureCache_PutThenGetRoundTrips(t *testing.T) {
	cache := NewFeatureCache(newTestClient(t))
	snap := feature.Snapshot{
		UniversalID: "sf_alice",
		Values:      []float64{0.1, 0.2, 0.3},
		Confidence:  0.75,
		ComputedAt:  time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
		Summary:     domain.CurveSummary{Clicks7d: 12},
	}

	require.NoError(t, cache.Put(context.Background(), snap, time.Hour))

	got, err := cache.Get(context.Background(), "sf_alice")
	require.NoError(t, err)
	assert.Equal(t, snap.UniversalID, got.UniversalID)
	assert.Equal(t, snap.Values, got.Values)
	assert.InDelta(t, snap.Confidence, got.Confidence, 1e-9)
	assert.True(t, snap.ComputedAt.Equal(got.ComputedAt))
	assert.Equal(t, snap.Summary.Clicks7d, got.Summary.Clicks7d)
}
