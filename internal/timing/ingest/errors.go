package ingest

import "errors"

// ErrMalformed marks a message that failed deserialization or required-field
// validation. It is never retried; the caller routes it straight to the DLQ.
var ErrMalformed = errors.New("ingest: malformed message")
