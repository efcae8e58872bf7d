package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/timing/eventstore"
	"github.com/ignite/timing-intelligence/internal/timing/identity"
	"github.com/ignite/timing-intelligence/internal/timing/timingerr"
)

// Config tunes the per-message pipeline.
type Config struct {
	MaxResolveAttempts int // default 3
	RetryBaseDelay     time.Duration // default 200ms
}

func (c Config) withDefaults() Config {
	if c.MaxResolveAttempts <= 0 {
		c.MaxResolveAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	return c
}

// Pipeline turns RawEvent messages into rows in the event store, resolving
// identity, hashing PII, flagging bots, and extracting ML training
// features along the way.
type Pipeline struct {
	resolver *identity.Service
	events   eventstore.EventStore
	dlq      DeadLetterSink
	cfg      Config

	// now is overridable for deterministic tests.
	now func() time.Time
}

// NewPipeline constructs a Pipeline.
func NewPipeline(resolver *identity.Service, events eventstore.EventStore, dlq DeadLetterSink, cfg Config) *Pipeline {
	return &Pipeline{resolver: resolver, events: events, dlq: dlq, cfg: cfg.withDefaults(), now: func() time.Time { return time.Now().UTC() }}
}

// Ack is the upstream positional reference the pipeline acknowledges or
// dead-letters a message by. Transports translate their own cursor (SQS
// message ID, Kafka partition/offset) into this shape.
type Ack struct {
	Partition string
	Offset    string
}

// Outcome reports what Process did with a message, once it could be
// resolved to a final state.
type Outcome string

const (
	OutcomeInserted     Outcome = "inserted"
	OutcomeDeadLettered Outcome = "dead_lettered"
)

// Process runs one message through the full pipeline: deserialize,
// validate, resolve identity, hash email, flag bots, extract features,
// insert. A nil error means the message reached a final state (inserted
// or dead-lettered) and the caller may acknowledge the upstream message.
// A non-nil error means the message must NOT be acknowledged (the caller
// should retry delivery).
func (p *Pipeline) Process(ctx context.Context, raw []byte, ack Ack) (Outcome, error) {
	var msg RawEvent
	if err := json.Unmarshal(raw, &msg); err != nil {
		return OutcomeDeadLettered, p.deadLetter(ctx, err, string(raw), ack)
	}

	if err := validate(msg); err != nil {
		return OutcomeDeadLettered, p.deadLetter(ctx, err, string(raw), ack)
	}

	universalID, err := p.resolveWithRetry(ctx, msg)
	if err != nil {
		return OutcomeDeadLettered, p.deadLetter(ctx, err, string(raw), ack)
	}

	evt, err := p.normalize(msg, universalID)
	if err != nil {
		return OutcomeDeadLettered, p.deadLetter(ctx, err, string(raw), ack)
	}

	if err := p.events.Insert(ctx, evt); err != nil {
		return "", err // transient store failure: redeliver, do not ack
	}
	return OutcomeInserted, nil
}

func validate(msg RawEvent) error {
	if msg.EventID == "" {
		return fmt.Errorf("%w: missing event_id", ErrMalformed)
	}
	if msg.EventType == "" {
		return fmt.Errorf("%w: missing event_type", ErrMalformed)
	}
	if msg.Timestamp == "" {
		return fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		return fmt.Errorf("%w: unparseable timestamp: %v", ErrMalformed, err)
	}
	return nil
}

func (p *Pipeline) resolveWithRetry(ctx context.Context, msg RawEvent) (domain.UniversalID, error) {
	in := identity.Input{
		Email:             msg.RecipientEmail,
		Phone:             msg.PhoneNumber,
		KlaviyoID:         msg.KlaviyoID,
		ShopifyCustomerID: msg.ShopifyCustomer,
		EspUserID:         msg.EspUserID,
		IPDeviceSignature: msg.SourceIP,
	}

	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxResolveAttempts; attempt++ {
		id, err := p.resolver.Resolve(ctx, in)
		if err == nil {
			return id, nil
		}
		lastErr = err
		kind, ok := timingerr.KindOf(err)
		if !ok || !kind.Retryable() {
			return "", err
		}
		if attempt < p.cfg.MaxResolveAttempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(p.cfg.RetryBaseDelay * time.Duration(1<<attempt)):
			}
		}
	}
	return "", lastErr
}

func (p *Pipeline) normalize(msg RawEvent, universalID domain.UniversalID) (domain.EngagementEvent, error) {
	ts, err := time.Parse(time.RFC3339, msg.Timestamp)
	if err != nil {
		return domain.EngagementEvent{}, fmt.Errorf("%w: unparseable timestamp: %v", ErrMalformed, err)
	}
	ts = ts.UTC()

	metadata := map[string]interface{}{}
	for k, v := range msg.Metadata {
		metadata[k] = v
	}

	eventType := domain.TimingEventType(msg.EventType)
	isOpen := eventType == domain.TimingEventOpened
	reasons := botEvidence(isOpen, ts, p.now(), msg.UserAgent, msg.SourceIP)
	if len(reasons) > 0 {
		metadata["suspected_bot"] = true
		metadata["bot_reasons"] = reasons
	}

	evt := domain.EngagementEvent{
		EventID:            msg.EventID,
		ESP:                msg.ESP,
		UniversalID:        universalID,
		Timestamp:          ts,
		EventType:          eventType,
		RecipientEmailHash: hashEmail(msg.RecipientEmail),
		CampaignID:         msg.CampaignID,
		Latency:            extractLatencyFeatures(msg.Metadata),
		Metadata:           metadata,
	}
	return evt, nil
}

func hashEmail(email string) string {
	if email == "" {
		return ""
	}
	return identity.NormalizeEmail(email).Value
}

func extractLatencyFeatures(metadata map[string]interface{}) domain.LatencyFeatures {
	var f domain.LatencyFeatures
	if v, ok := intFromMetadata(metadata, "latency_seconds"); ok {
		f.DeliveryLatencySeconds = &v
	}
	if v, ok := intFromMetadata(metadata, "hour_of_day"); ok {
		f.HourOfDay = &v
	}
	if v, ok := intFromMetadata(metadata, "day_of_week"); ok {
		f.DayOfWeek = &v
	}
	if v, ok := intFromMetadata(metadata, "payload_size_bytes"); ok {
		f.PayloadSizeBytes = &v
	}
	if v, ok := intFromMetadata(metadata, "queue_depth_estimate"); ok {
		f.QueueDepthEstimate = &v
	}
	if v, ok := metadata["campaign_type"].(string); ok {
		f.CampaignClass = &v
	}
	return f
}

func intFromMetadata(metadata map[string]interface{}, key string) (int, bool) {
	v, ok := metadata[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

func (p *Pipeline) deadLetter(ctx context.Context, cause error, raw string, ack Ack) error {
	if p.dlq == nil {
		return nil
	}
	rec := DeadLetterRecord{
		Error:         cause.Error(),
		OriginalValue: raw,
		Partition:     ack.Partition,
		Offset:        ack.Offset,
		IngestedAt:    p.now().Format(time.RFC3339),
	}
	return p.dlq.Send(ctx, rec)
}
