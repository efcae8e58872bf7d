// Package minutegrid implements the canonical 10,080-slot week grid that
// every other timing-intelligence component indexes into. All arithmetic
// is modular on the slot domain and all conversions are UTC-only; nothing
// here touches a gateway or allocates beyond a handful of ints.
package minutegrid

import "time"

// SlotsPerWeek is the number of minute-slots in one UTC week.
const SlotsPerWeek = 7 * 24 * 60 // 10080

// Window is a closed interval [Start, End] over the slot domain. When
// Start > End the window wraps across the week boundary (e.g. Friday
// night through Monday morning).
type Window struct {
	Start int
	End   int
}

// Contains reports whether slot falls inside the window, accounting for
// wraparound.
func (w Window) Contains(slot int) bool {
	slot = Mod(slot)
	if w.Start <= w.End {
		return slot >= w.Start && slot <= w.End
	}
	return slot >= w.Start || slot <= w.End
}

// Len returns the number of slots the window spans, inclusive.
func (w Window) Len() int {
	if w.Start <= w.End {
		return w.End - w.Start + 1
	}
	return (SlotsPerWeek - w.Start) + w.End + 1
}

// Slots returns every slot in the window in order, starting at Start.
// Intended for small windows (hot-path neighborhoods, request windows);
// not for iterating the whole week.
func (w Window) Slots() []int {
	n := w.Len()
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = Mod(w.Start + i)
	}
	return out
}

// Mod reduces an arbitrary (possibly negative) slot index into [0, SlotsPerWeek).
func Mod(slot int) int {
	slot %= SlotsPerWeek
	if slot < 0 {
		slot += SlotsPerWeek
	}
	return slot
}

// DatetimeToSlot returns the slot a UTC instant falls into. Monday is day 0.
func DatetimeToSlot(t time.Time) int {
	t = t.UTC()
	dow := (int(t.Weekday()) + 6) % 7 // time.Sunday==0 -> dow 6; time.Monday==1 -> dow 0
	return dow*1440 + t.Hour()*60 + t.Minute()
}

// WeekStart returns the UTC instant of Monday 00:00:00 for the week
// containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	dow := (int(t.Weekday()) + 6) % 7
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return dayStart.Add(-time.Duration(dow) * 24 * time.Hour)
}

// SlotToDatetime returns the UTC instant of the given slot within the week
// that starts at referenceWeekStart (which must itself be a Monday 00:00:00
// UTC instant, e.g. the result of WeekStart).
func SlotToDatetime(slot int, referenceWeekStart time.Time) time.Time {
	slot = Mod(slot)
	return referenceWeekStart.Add(time.Duration(slot) * time.Minute)
}

// NextOccurrenceAfter returns the earliest UTC instant >= t whose slot
// equals the given slot.
func NextOccurrenceAfter(slot int, t time.Time) time.Time {
	slot = Mod(slot)
	t = t.UTC()
	candidate := SlotToDatetime(slot, WeekStart(t))
	if candidate.Before(t) {
		candidate = candidate.Add(SlotsPerWeek * time.Minute)
	}
	return candidate
}

// Neighborhood returns the closed interval [slot-radius, slot+radius]
// modulo SlotsPerWeek.
func Neighborhood(slot, radius int) Window {
	if radius < 0 {
		radius = 0
	}
	return Window{Start: Mod(slot - radius), End: Mod(slot + radius)}
}

// MinutesBetween returns the number of minutes from `from` to the next
// occurrence of `slot` at-or-after `from`, i.e. how far in the future that
// slot lies. Useful for hot-path decay weighting computed in slot space.
func MinutesBetween(from time.Time, slot int) float64 {
	next := NextOccurrenceAfter(slot, from)
	return next.Sub(from.UTC()).Minutes()
}
