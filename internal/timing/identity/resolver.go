package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"time"

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/timing/timingerr"
)

// deterministicPriority is the fixed order Step 1 consults the resolution
// cache in.
var deterministicPriority = []domain.IdentifierType{
	domain.IdentifierEmailHash,
	domain.IdentifierPhoneNumber,
}

// probabilisticPriority is the fixed order Step 2 tries cache-then-BFS in,
// highest default weight first.
var probabilisticPriority = []domain.IdentifierType{
	domain.IdentifierKlaviyoID,
	domain.IdentifierShopifyCustomer,
	domain.IdentifierESPUser,
	domain.IdentifierIPDeviceSig,
}

// DefaultWeights are the fixed default confidences for probabilistic
// identifier types, used as the cache confidence of each probabilistic
// identifier when a resolution is written back to the cache, including on
// synthesis of a new Universal ID.
var DefaultWeights = map[domain.IdentifierType]float64{
	domain.IdentifierKlaviyoID:       0.95,
	domain.IdentifierShopifyCustomer: 0.90,
	domain.IdentifierESPUser:         0.85,
	domain.IdentifierIPDeviceSig:     0.50,
}

// Config tunes the bounded breadth-first search over the identity edge
// graph.
type Config struct {
	BFSDepth                int // default 3
	BFSBudget               int // default 128
	PhoneDefaultCountryCode string
}

// Service resolves raw identifiers to a stable Universal ID.
type Service struct {
	store Store
	cfg   Config
}

// NewService constructs a resolver backed by the given Store.
func NewService(store Store, cfg Config) *Service {
	if cfg.BFSDepth <= 0 {
		cfg.BFSDepth = 3
	}
	if cfg.BFSBudget <= 0 {
		cfg.BFSBudget = 128
	}
	return &Service{store: store, cfg: cfg}
}

// Input is the raw, unnormalized set of identifiers supplied for one
// subject. Empty fields are omitted from resolution.
type Input struct {
	Email             string
	Phone             string
	KlaviyoID         string
	ShopifyCustomerID string
	EspUserID         string
	IPDeviceSignature string
}

func (in Input) normalize(phoneDefaultCC string) []domain.Identifier {
	var out []domain.Identifier
	if in.Email != "" {
		out = append(out, NormalizeEmail(in.Email))
	}
	if in.Phone != "" {
		out = append(out, NormalizePhone(in.Phone, phoneDefaultCC))
	}
	if in.KlaviyoID != "" {
		out = append(out, domain.Identifier{Type: domain.IdentifierKlaviyoID, Value: in.KlaviyoID})
	}
	if in.ShopifyCustomerID != "" {
		out = append(out, domain.Identifier{Type: domain.IdentifierShopifyCustomer, Value: in.ShopifyCustomerID})
	}
	if in.EspUserID != "" {
		out = append(out, domain.Identifier{Type: domain.IdentifierESPUser, Value: in.EspUserID})
	}
	if in.IPDeviceSignature != "" {
		out = append(out, domain.Identifier{Type: domain.IdentifierIPDeviceSig, Value: in.IPDeviceSignature})
	}
	return out
}

// Resolve maps in to a stable Universal ID, creating one if nothing in the
// identity graph already claims these identifiers.
func (s *Service) Resolve(ctx context.Context, in Input) (domain.UniversalID, error) {
	identifiers := in.normalize(s.cfg.PhoneDefaultCountryCode)
	if len(identifiers) == 0 {
		return "", timingerr.New(timingerr.KindInvalidInput, "identity resolve requires at least one identifier")
	}

	byType := make(map[domain.IdentifierType]domain.Identifier, len(identifiers))
	for _, id := range identifiers {
		byType[id.Type] = id
	}

	resolutionID := newResolutionID()

	if uid, err := s.resolveDeterministic(ctx, resolutionID, byType); err != nil {
		return "", err
	} else if uid != "" {
		s.cacheRemaining(ctx, identifiers, uid)
		return uid, nil
	}

	if uid, err := s.resolveProbabilistic(ctx, resolutionID, byType); err != nil {
		return "", err
	} else if uid != "" {
		s.cacheRemaining(ctx, identifiers, uid)
		return uid, nil
	}

	return s.synthesize(ctx, resolutionID, identifiers)
}

// resolveDeterministic implements Step 1: check every deterministic
// identifier present, resolving conflicts between disagreeing hits per the
// older-Universal-ID-wins policy.
func (s *Service) resolveDeterministic(ctx context.Context, resolutionID string, byType map[domain.IdentifierType]domain.Identifier) (domain.UniversalID, error) {
	type hit struct {
		id    domain.Identifier
		entry domain.ResolutionCacheEntry
	}
	var hits []hit

	for _, t := range deterministicPriority {
		id, ok := byType[t]
		if !ok {
			continue
		}
		entry, err := s.store.LookupCache(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return "", timingerr.Wrap(timingerr.KindBackendUnavailable, "lookup resolution cache", err)
		}
		hits = append(hits, hit{id: id, entry: entry})
	}

	if len(hits) == 0 {
		return "", nil
	}

	winner := hits[0].entry
	for _, h := range hits[1:] {
		if h.entry.UniversalID != winner.UniversalID {
			if err := s.mergeConflict(ctx, resolutionID, winner, h.entry); err != nil {
				return "", err
			}
			if h.entry.LastSeen.Before(winner.LastSeen) {
				winner = h.entry
			}
		}
	}

	if err := s.store.AppendAudit(ctx, domain.AuditRecord{
		ResolutionID:    resolutionID,
		UniversalID:     winner.UniversalID,
		InputIdentifier: hits[0].id.Value,
		InputType:       hits[0].id.Type,
		Step:            domain.StepFoundVia(hits[0].id.Type, TruncateForAudit(hits[0].id.Value)),
		Confidence:      1.0,
		CreatedAt:       nowUTC(),
	}); err != nil {
		return "", timingerr.Wrap(timingerr.KindBackendUnavailable, "append audit record", err)
	}

	return winner.UniversalID, nil
}

// mergeConflict implements the conflict-merge policy: the Universal ID
// seen earlier (smaller LastSeen) wins; a merge edge is inserted between
// the two Universal IDs, every cache entry pointing at the losing Universal
// ID is repointed to the winner, and a conflict_merged audit record is
// emitted. The losing Universal ID itself is never deleted.
func (s *Service) mergeConflict(ctx context.Context, resolutionID string, a, b domain.ResolutionCacheEntry) error {
	winner, loser := a, b
	if b.LastSeen.Before(a.LastSeen) {
		winner, loser = b, a
	}

	now := nowUTC()
	if err := s.store.UpsertEdge(ctx, domain.IdentityEdge{
		A:         domain.Identifier{Type: domain.IdentifierUniversal, Value: string(winner.UniversalID)},
		B:         domain.Identifier{Type: domain.IdentifierUniversal, Value: string(loser.UniversalID)},
		Weight:    1.0,
		Source:    "identity_merge",
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return timingerr.Wrap(timingerr.KindBackendUnavailable, "upsert merge edge", err)
	}

	if err := s.store.RepointCache(ctx, loser.UniversalID, winner.UniversalID); err != nil {
		return timingerr.Wrap(timingerr.KindBackendUnavailable, "repoint loser cache entries", err)
	}

	if err := s.store.AppendAudit(ctx, domain.AuditRecord{
		ResolutionID:    resolutionID,
		UniversalID:     winner.UniversalID,
		InputIdentifier: loser.Identifier.Value,
		InputType:       loser.Identifier.Type,
		Step:            domain.StepConflictMerged,
		Confidence:      1.0,
		CreatedAt:       now,
	}); err != nil {
		return timingerr.Wrap(timingerr.KindBackendUnavailable, "append audit record", err)
	}
	return nil
}

// resolveProbabilistic implements Step 2: cache hit, else bounded BFS, for
// each probabilistic identifier present, in priority order. The first
// identifier to resolve wins.
func (s *Service) resolveProbabilistic(ctx context.Context, resolutionID string, byType map[domain.IdentifierType]domain.Identifier) (domain.UniversalID, error) {
	for _, t := range probabilisticPriority {
		id, ok := byType[t]
		if !ok {
			continue
		}

		if entry, err := s.store.LookupCache(ctx, id); err == nil {
			if err := s.store.AppendAudit(ctx, domain.AuditRecord{
				ResolutionID:    resolutionID,
				UniversalID:     entry.UniversalID,
				InputIdentifier: id.Value,
				InputType:       id.Type,
				Step:            domain.StepFoundVia(id.Type, TruncateForAudit(id.Value)),
				Confidence:      entry.Confidence,
				CreatedAt:       nowUTC(),
			}); err != nil {
				return "", timingerr.Wrap(timingerr.KindBackendUnavailable, "append audit record", err)
			}
			return entry.UniversalID, nil
		} else if !errors.Is(err, ErrNotFound) {
			return "", timingerr.Wrap(timingerr.KindBackendUnavailable, "lookup resolution cache", err)
		}

		uid, confidence, path, found, err := s.bfs(ctx, id)
		if err != nil {
			return "", err
		}
		if !found {
			continue
		}

		for _, hop := range path {
			if err := s.store.AppendAudit(ctx, domain.AuditRecord{
				ResolutionID:    resolutionID,
				UniversalID:     uid,
				InputIdentifier: hop.to.Value,
				InputType:       hop.to.Type,
				Step:            domain.StepGraphTraversal(hop.from.Type, hop.to.Type),
				Confidence:      hop.weight,
				CreatedAt:       nowUTC(),
			}); err != nil {
				return "", timingerr.Wrap(timingerr.KindBackendUnavailable, "append audit record", err)
			}
		}

		if err := s.store.UpsertCache(ctx, domain.ResolutionCacheEntry{
			Identifier:  id,
			UniversalID: uid,
			Confidence:  confidence,
			LastSeen:    nowUTC(),
		}); err != nil {
			return "", timingerr.Wrap(timingerr.KindBackendUnavailable, "upsert resolution cache", err)
		}
		return uid, nil
	}
	return "", nil
}

type bfsHop struct {
	from, to domain.Identifier
	weight   float64
}

// bfs explores the identity edge graph from start, bounded by s.cfg.BFSDepth
// hops and s.cfg.BFSBudget edge expansions, in decreasing edge-weight
// order, stopping at the first identifier with a known resolution.
// Confidence is the minimum edge weight along the traversed path, further
// bounded by the destination's own cached confidence.
func (s *Service) bfs(ctx context.Context, start domain.Identifier) (domain.UniversalID, float64, []bfsHop, bool, error) {
	type queued struct {
		id     domain.Identifier
		weight float64
		depth  int
		path   []bfsHop
	}

	visited := map[domain.Identifier]bool{start: true}
	queue := []queued{{id: start, weight: 1.0, depth: 0}}
	expansions := 0

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= s.cfg.BFSDepth {
			continue
		}

		edges, err := s.store.EdgesFrom(ctx, cur.id)
		if err != nil {
			return "", 0, nil, false, timingerr.Wrap(timingerr.KindBackendUnavailable, "load identity edges", err)
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].Weight > edges[j].Weight })

		for _, e := range edges {
			if expansions >= s.cfg.BFSBudget {
				return "", 0, nil, false, nil
			}
			expansions++

			next := e.B
			if e.B == cur.id {
				next = e.A
			}
			if visited[next] {
				continue
			}
			visited[next] = true

			hopWeight := cur.weight
			if e.Weight < hopWeight {
				hopWeight = e.Weight
			}
			path := append(append([]bfsHop{}, cur.path...), bfsHop{from: cur.id, to: next, weight: e.Weight})

			entry, err := s.store.LookupCache(ctx, next)
			if err == nil {
				confidence := hopWeight
				if entry.Confidence < confidence {
					confidence = entry.Confidence
				}
				return entry.UniversalID, confidence, path, true, nil
			} else if !errors.Is(err, ErrNotFound) {
				return "", 0, nil, false, timingerr.Wrap(timingerr.KindBackendUnavailable, "lookup resolution cache", err)
			}

			queue = append(queue, queued{id: next, weight: hopWeight, depth: cur.depth + 1, path: path})
		}
	}
	return "", 0, nil, false, nil
}

// synthesize implements Step 3: mint a new Universal ID and cache every
// supplied identifier against it.
func (s *Service) synthesize(ctx context.Context, resolutionID string, identifiers []domain.Identifier) (domain.UniversalID, error) {
	uid, err := newUniversalID()
	if err != nil {
		return "", timingerr.Wrap(timingerr.KindBackendUnavailable, "generate universal id", err)
	}

	now := nowUTC()
	for _, id := range identifiers {
		confidence := 1.0
		if !id.Type.IsDeterministic() {
			confidence = DefaultWeights[id.Type]
		}
		if err := s.store.UpsertCache(ctx, domain.ResolutionCacheEntry{
			Identifier:  id,
			UniversalID: uid,
			Confidence:  confidence,
			LastSeen:    now,
		}); err != nil {
			return "", timingerr.Wrap(timingerr.KindBackendUnavailable, "upsert resolution cache", err)
		}
	}

	if err := s.store.AppendAudit(ctx, domain.AuditRecord{
		ResolutionID: resolutionID,
		UniversalID:  uid,
		Step:         domain.StepCreatedNewUniversalID,
		Confidence:   1.0,
		CreatedAt:    now,
	}); err != nil {
		return "", timingerr.Wrap(timingerr.KindBackendUnavailable, "append audit record", err)
	}
	return uid, nil
}

// cacheRemaining best-effort caches every supplied identifier that isn't
// already resolved against the winning Universal ID, so a subsequent call
// supplying only one of these identifiers resolves in Step 1 or 2's cache
// check rather than re-deriving the mapping. Failures here are not fatal:
// the subject is already resolved and the caller has their answer.
func (s *Service) cacheRemaining(ctx context.Context, identifiers []domain.Identifier, uid domain.UniversalID) {
	for _, id := range identifiers {
		if _, err := s.store.LookupCache(ctx, id); err == nil {
			continue
		}
		confidence := 1.0
		if !id.Type.IsDeterministic() {
			confidence = DefaultWeights[id.Type]
		}
		_ = s.store.UpsertCache(ctx, domain.ResolutionCacheEntry{
			Identifier:  id,
			UniversalID: uid,
			Confidence:  confidence,
			LastSeen:    nowUTC(),
		})
	}
}

func newUniversalID() (domain.UniversalID, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return domain.UniversalID("sf_" + hex.EncodeToString(buf)), nil
}

func newResolutionID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func nowUTC() time.Time { return time.Now().UTC() }
