// Package feature builds and caches the per-subject Engagement Curve: a
// click-weighted (opens as fallback), Laplace-smoothed, Gaussian-blurred
// probability surface over the minute grid, plus recency counters and a
// top-K peak-window summary.
//
// Engine is stateless beyond the cache it reads through and writes back
// to: recomputation is triggered by a cache miss or stale entry, and
// concurrent recomputes for the same Universal ID are deduplicated with
// an in-process singleflight group layered under a cross-process
// distributed lock (see internal/pkg/distlock), matching how the rest of
// this codebase guards shared recompute work.
package feature
