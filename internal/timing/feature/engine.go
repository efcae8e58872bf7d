package feature

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/pkg/distlock"
	"github.com/ignite/timing-intelligence/internal/timing/curve"
	"github.com/ignite/timing-intelligence/internal/timing/eventstore"
	"github.com/ignite/timing-intelligence/internal/timing/minutegrid"
	"github.com/ignite/timing-intelligence/internal/timing/timingerr"
)

const topKPeaks = 5

// peakSeparationMinutes keeps the top-K peak summary from reporting
// several slots that belong to the same underlying bump in the curve.
const peakSeparationMinutes = 60

// Config tunes curve construction.
type Config struct {
	SmoothingSigmaMinutes float64 // default 30
	LaplaceAlpha          float64 // default 1.0
	LookbackDays          int     // default 90
	PrimaryEventType      domain.TimingEventType
	MinPrimaryCount       int           // fall back to opens below this count; default 5
	MaxAge                time.Duration // cache staleness before recompute
	CacheTTL              time.Duration // TTL written alongside a fresh snapshot
}

func (c Config) withDefaults() Config {
	if c.SmoothingSigmaMinutes <= 0 {
		c.SmoothingSigmaMinutes = 30
	}
	if c.LaplaceAlpha <= 0 {
		c.LaplaceAlpha = 1.0
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = 90
	}
	if c.PrimaryEventType == "" {
		c.PrimaryEventType = domain.TimingEventClicked
	}
	if c.MinPrimaryCount <= 0 {
		c.MinPrimaryCount = 5
	}
	if c.MaxAge <= 0 {
		c.MaxAge = time.Hour
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	return c
}

// LockFactory builds a distributed lock scoped to the given key, used to
// coalesce recompute across processes. Returning nil is valid and means
// "don't bother with cross-process coordination" (in-process singleflight
// still applies).
type LockFactory func(key string) distlock.DistLock

// Engine builds and caches Engagement Curves. It is stateless beyond the
// Cache it reads through; safe for concurrent use.
type Engine struct {
	events  eventstore.EventStore
	cache   Cache
	cfg     Config
	locks   LockFactory
	inflight singleflight.Group
}

// NewEngine constructs an Engine. locks may be nil.
func NewEngine(events eventstore.EventStore, cache Cache, cfg Config, locks LockFactory) *Engine {
	return &Engine{events: events, cache: cache, cfg: cfg.withDefaults(), locks: locks}
}

// Result bundles the curve and its summary for a subject.
type Result struct {
	Curve   *curve.Curve
	Summary domain.CurveSummary
}

// GetCurve returns the Engagement Curve for a Universal ID, recomputing on
// a cache miss or stale entry. Concurrent callers for the same Universal ID
// share a single recompute.
func (e *Engine) GetCurve(ctx context.Context, id domain.UniversalID) (Result, error) {
	snap, err := e.cache.Get(ctx, id)
	if err == nil && time.Since(snap.ComputedAt) < e.cfg.MaxAge {
		return Result{Curve: snapshotToCurve(snap), Summary: snap.Summary}, nil
	}

	v, err, _ := e.inflight.Do(string(id), func() (interface{}, error) {
		return e.recomputeWithLock(ctx, id)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (e *Engine) recomputeWithLock(ctx context.Context, id domain.UniversalID) (Result, error) {
	if e.locks == nil {
		return e.recompute(ctx, id)
	}

	lock := e.locks(fmt.Sprintf("feature:recompute:%s", id))
	if lock == nil {
		return e.recompute(ctx, id)
	}

	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return Result{}, timingerr.Wrap(timingerr.KindBackendUnavailable, "acquire recompute lock", err)
	}
	if !acquired {
		// Another process is recomputing; fall back to whatever is
		// cached (even if stale) rather than blocking the caller.
		if snap, err := e.cache.Get(ctx, id); err == nil {
			return Result{Curve: snapshotToCurve(snap), Summary: snap.Summary}, nil
		}
		return e.recompute(ctx, id)
	}
	defer lock.Release(ctx)

	return e.recompute(ctx, id)
}

func (e *Engine) recompute(ctx context.Context, id domain.UniversalID) (Result, error) {
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -e.cfg.LookbackDays)

	primary, err := e.events.Query(ctx, eventstore.Filter{
		UniversalID: id,
		Types:       []domain.TimingEventType{e.cfg.PrimaryEventType},
		Since:       since,
	})
	if err != nil {
		return Result{}, timingerr.Wrap(timingerr.KindCurveUnavailable, "query primary events", err)
	}

	degraded := false
	samples := primary
	if len(primary) < e.cfg.MinPrimaryCount {
		opens, err := e.events.Query(ctx, eventstore.Filter{
			UniversalID: id,
			Types:       []domain.TimingEventType{domain.TimingEventOpened},
			Since:       since,
		})
		if err != nil {
			return Result{}, timingerr.Wrap(timingerr.KindCurveUnavailable, "query fallback open events", err)
		}
		samples = opens
		degraded = true
	}

	slots := make([]int, len(samples))
	for i, evt := range samples {
		slots[i] = minutegrid.DatetimeToSlot(evt.Timestamp)
	}

	c := curve.FromSamples(slots, e.cfg.LaplaceAlpha, e.cfg.SmoothingSigmaMinutes)

	summary, err := e.buildSummary(ctx, id, c, now, degraded)
	if err != nil {
		return Result{}, err
	}

	snap := Snapshot{
		UniversalID: id,
		Values:      c.Values,
		Suppressed:  c.Suppressed,
		Confidence:  c.Confidence(),
		Summary:     summary,
		ComputedAt:  now,
	}
	if err := e.cache.Put(ctx, snap, e.cfg.CacheTTL); err != nil {
		return Result{}, timingerr.Wrap(timingerr.KindBackendUnavailable, "cache curve snapshot", err)
	}

	return Result{Curve: c, Summary: summary}, nil
}

func (e *Engine) buildSummary(ctx context.Context, id domain.UniversalID, c *curve.Curve, now time.Time, degraded bool) (domain.CurveSummary, error) {
	counts := func(t domain.TimingEventType, days int) (int, error) {
		return e.events.CountByType(ctx, id, t, now.AddDate(0, 0, -days))
	}

	opens1, err := counts(domain.TimingEventOpened, 1)
	if err != nil {
		return domain.CurveSummary{}, timingerr.Wrap(timingerr.KindCurveUnavailable, "count opens 1d", err)
	}
	opens7, err := counts(domain.TimingEventOpened, 7)
	if err != nil {
		return domain.CurveSummary{}, timingerr.Wrap(timingerr.KindCurveUnavailable, "count opens 7d", err)
	}
	opens30, err := counts(domain.TimingEventOpened, 30)
	if err != nil {
		return domain.CurveSummary{}, timingerr.Wrap(timingerr.KindCurveUnavailable, "count opens 30d", err)
	}
	clicks1, err := counts(domain.TimingEventClicked, 1)
	if err != nil {
		return domain.CurveSummary{}, timingerr.Wrap(timingerr.KindCurveUnavailable, "count clicks 1d", err)
	}
	clicks7, err := counts(domain.TimingEventClicked, 7)
	if err != nil {
		return domain.CurveSummary{}, timingerr.Wrap(timingerr.KindCurveUnavailable, "count clicks 7d", err)
	}
	clicks30, err := counts(domain.TimingEventClicked, 30)
	if err != nil {
		return domain.CurveSummary{}, timingerr.Wrap(timingerr.KindCurveUnavailable, "count clicks 30d", err)
	}

	earliest, latest, err := e.events.EarliestLatest(ctx, id, e.cfg.PrimaryEventType)
	if err != nil {
		return domain.CurveSummary{}, timingerr.Wrap(timingerr.KindCurveUnavailable, "earliest/latest", err)
	}

	return domain.CurveSummary{
		PeakWindows:   topPeaks(c, topKPeaks),
		Opens1d:       opens1,
		Opens7d:       opens7,
		Opens30d:      opens30,
		Clicks1d:      clicks1,
		Clicks7d:      clicks7,
		Clicks30d:     clicks30,
		EarliestEvent: timePtrIfSet(earliest),
		LatestEvent:   timePtrIfSet(latest),
		Degraded:      degraded,
	}, nil
}

func timePtrIfSet(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// topPeaks greedily selects up to k slots in descending order of
// probability, skipping any slot within peakSeparationMinutes of an
// already-selected slot so the summary reports distinct bumps rather than
// k adjacent points off the same one.
func topPeaks(c *curve.Curve, k int) []domain.PeakWindow {
	type scored struct {
		slot  int
		value float64
	}
	all := make([]scored, len(c.Values))
	for i, v := range c.Values {
		all[i] = scored{slot: i, value: v}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].value > all[j].value })

	var out []domain.PeakWindow
	for _, s := range all {
		if len(out) >= k {
			break
		}
		tooClose := false
		for _, picked := range out {
			if circularDistance(s.slot, picked.Slot) < peakSeparationMinutes {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		out = append(out, domain.PeakWindow{
			Slot:                    s.slot,
			InterpolatedProbability: c.Interpolate(float64(s.slot)),
			Label:                   slotLabel(s.slot),
		})
	}
	return out
}

func circularDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > minutegrid.SlotsPerWeek/2 {
		d = minutegrid.SlotsPerWeek - d
	}
	return d
}

var weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func slotLabel(slot int) string {
	slot = minutegrid.Mod(slot)
	dow := slot / 1440
	hour := (slot % 1440) / 60
	minute := slot % 60
	return fmt.Sprintf("%s %02d:%02d", weekdayNames[dow], hour, minute)
}

func snapshotToCurve(s Snapshot) *curve.Curve {
	return &curve.Curve{Values: s.Values, Suppressed: s.Suppressed}
}
