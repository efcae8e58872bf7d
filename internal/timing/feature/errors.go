package feature

import "errors"

// ErrCacheMiss indicates no cached curve exists for a Universal ID.
var ErrCacheMiss = errors.New("feature: cache miss")
