package identity

import "errors"

// ErrNotFound indicates an Identifier has no resolution cache entry.
var ErrNotFound = errors.New("identity: no resolution cache entry")
