// Package ingest implements the Event Ingestion Pipeline: it turns raw
// inbound event records into normalized, identity-resolved rows in the
// event store.
//
// Per-message processing is deserialize, validate, resolve identity, hash
// the recipient email, flag bot traffic, extract ML training features,
// then insert. The upstream offset (or queue message) is only acknowledged
// after a successful insert. Deserialize/validate failures and persistent
// identity-resolution failures route to the DeadLetterSink defined in
// repository.go; transient resolver failures retry with backoff.
package ingest
