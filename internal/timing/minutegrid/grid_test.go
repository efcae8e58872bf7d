package minutegrid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatetimeToSlot_MondayMidnight(t *testing.T) {
	// 2024-01-01 is a Monday.
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, DatetimeToSlot(ts))
}

func TestDatetimeToSlot_SundayLastMinute(t *testing.T) {
	// 2023-12-31 is a Sunday.
	ts := time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, SlotsPerWeek-1, DatetimeToSlot(ts))
}

func TestRoundTrip_SlotToDatetimeAndBack(t *testing.T) {
	ts := time.Date(2024, 3, 14, 9, 23, 0, 0, time.UTC)
	slot := DatetimeToSlot(ts)
	weekStart := WeekStart(ts)
	back := SlotToDatetime(slot, weekStart)
	require.Equal(t, slot, DatetimeToSlot(back))
}

func TestNextOccurrenceAfter_FutureThisWeek(t *testing.T) {
	now := time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC) // Monday 08:00
	target := DatetimeToSlot(time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC))
	got := NextOccurrenceAfter(target, now)
	assert.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), got)
}

func TestNextOccurrenceAfter_WrapsToNextWeek(t *testing.T) {
	now := time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC) // Monday 10:00
	target := DatetimeToSlot(time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC))
	got := NextOccurrenceAfter(target, now)
	assert.Equal(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC), got)
}

func TestNeighborhood_Wraps(t *testing.T) {
	w := Neighborhood(2, 5)
	assert.True(t, w.Contains(0))
	assert.True(t, w.Contains(SlotsPerWeek-3))
	assert.False(t, w.Contains(100))
	assert.Equal(t, 11, w.Len())
}

func TestWindowContains_NoWrap(t *testing.T) {
	w := Window{Start: 100, End: 200}
	assert.True(t, w.Contains(150))
	assert.False(t, w.Contains(99))
	assert.False(t, w.Contains(201))
}

func TestModNormalizesNegative(t *testing.T) {
	assert.Equal(t, SlotsPerWeek-1, Mod(-1))
	assert.Equal(t, 0, Mod(SlotsPerWeek))
}
