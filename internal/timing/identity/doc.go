// Package identity resolves heterogeneous per-subject identifiers (hashed
// email, E.164 phone, platform IDs, device signatures) to a single stable
// Universal ID. Resolution is idempotent and auditable: every step taken
// to derive a mapping is persisted through the Store gateway before the
// Universal ID is returned.
//
// The algorithm has three steps, tried in order: a deterministic cache
// hit, a bounded breadth-first search over the identity edge graph, and
// finally synthesis of a brand new Universal ID. Service contains the
// pure business logic and depends only on the Store interface defined in
// repository.go; it never imports database/sql directly.
package identity
