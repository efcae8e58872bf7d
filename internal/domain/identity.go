package domain

import "time"

// IdentifierType enumerates the closed set of identifier kinds the identity
// resolver understands. Deterministic types (EmailHash, PhoneNumber) carry
// weight 1.0; probabilistic types carry a configurable default weight.
type IdentifierType string

const (
	IdentifierEmailHash        IdentifierType = "email_hash"
	IdentifierPhoneNumber      IdentifierType = "phone_number"
	IdentifierKlaviyoID        IdentifierType = "klaviyo_id"
	IdentifierShopifyCustomer  IdentifierType = "shopify_customer_id"
	IdentifierESPUser          IdentifierType = "esp_user_id"
	IdentifierIPDeviceSig      IdentifierType = "ip_device_signature"
	IdentifierUniversal        IdentifierType = "universal_id"
)

// IsDeterministic reports whether the identifier type resolves with
// certainty (weight 1.0) rather than probabilistically.
func (t IdentifierType) IsDeterministic() bool {
	return t == IdentifierEmailHash || t == IdentifierPhoneNumber
}

// Identifier is a tagged (type, value) pair supplied by a caller or stored
// in the identity graph. Values are opaque strings; normalization (email
// lowercasing + hashing, phone E.164 formatting) happens before an
// Identifier is constructed.
type Identifier struct {
	Type  IdentifierType `json:"type"`
	Value string         `json:"value"`
}

// UniversalID is the stable opaque token the system assigns to a resolved
// subject. Prefixed "sf_", never reassigned, never destroyed.
type UniversalID string

// IdentityEdge is an undirected relation between two Identifiers in the
// identity graph. Weight is 1.0 if either endpoint is deterministic;
// otherwise the lower of the two endpoint weights (or the source-supplied
// weight). Merges are idempotent on the unordered pair.
type IdentityEdge struct {
	A         Identifier `json:"a"`
	B         Identifier `json:"b"`
	Weight    float64    `json:"weight"`
	Source    string     `json:"source"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ResolutionCacheEntry maps one Identifier to the UniversalID it resolves
// to, with the confidence of that mapping (minimum edge weight along the
// derivation path, or 1.0 for a direct deterministic hit).
type ResolutionCacheEntry struct {
	Identifier Identifier  `json:"identifier"`
	UniversalID UniversalID `json:"universal_id"`
	Confidence  float64     `json:"confidence"`
	LastSeen    time.Time   `json:"last_seen"`
}

// AuditRecord is one append-only step in a resolution's derivation trace.
// Every record sharing a ResolutionID reconstructs how a UniversalID was
// produced for a given input identifier.
type AuditRecord struct {
	ResolutionID    string         `json:"resolution_id"`
	UniversalID     UniversalID    `json:"universal_id"`
	InputIdentifier string         `json:"input_identifier"`
	InputType       IdentifierType `json:"input_type"`
	Step            string         `json:"step"`
	Confidence      float64        `json:"confidence"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Audit step labels used throughout the resolver. Kept as constants so
// callers can pattern-match without string literals scattered around.
const (
	StepCreatedNewUniversalID = "created:new_universal_id"
	StepConflictMerged        = "conflict_merged"
)

// StepFoundVia builds the audit step label for a direct deterministic hit.
func StepFoundVia(t IdentifierType, truncatedValue string) string {
	return "found_via_" + string(t) + ":" + truncatedValue
}

// StepGraphTraversal builds the audit step label for one BFS hop.
func StepGraphTraversal(from, to IdentifierType) string {
	return "graph_traversal:" + string(from) + "->" + string(to)
}
