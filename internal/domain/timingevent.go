package domain

import "time"

// TimingEventType enumerates the engagement event types the timing
// intelligence layer consumes: ESP lifecycle events plus the
// hot-path/circuit-breaker signal types used by the decision engine.
type TimingEventType string

const (
	TimingEventSent                TimingEventType = "sent"
	TimingEventDelivered           TimingEventType = "delivered"
	TimingEventOpened              TimingEventType = "opened"
	TimingEventClicked             TimingEventType = "clicked"
	TimingEventBounced             TimingEventType = "bounced"
	TimingEventComplained          TimingEventType = "complained"
	TimingEventUnsubscribed        TimingEventType = "unsubscribed"
	TimingEventSiteVisit           TimingEventType = "site_visit"
	TimingEventSMSClick            TimingEventType = "sms_click"
	TimingEventProductView         TimingEventType = "product_view"
	TimingEventCartAdd             TimingEventType = "cart_add"
	TimingEventSearchPerformed     TimingEventType = "search_performed"
	TimingEventSupportTicket       TimingEventType = "support_ticket"
	TimingEventUnsubscribeRequest  TimingEventType = "unsubscribe_request"
	TimingEventSpamReport          TimingEventType = "spam_report"
)

// LatencyFeatures carries optional ML training features captured off an
// EngagementEvent at ingestion time. All fields are nullable because most
// event types never populate them.
type LatencyFeatures struct {
	DeliveryLatencySeconds *int     `json:"delivery_latency_seconds,omitempty"`
	HourOfDay              *int     `json:"hour_of_day,omitempty"`
	DayOfWeek              *int     `json:"day_of_week,omitempty"`
	PayloadSizeBytes       *int     `json:"payload_size_bytes,omitempty"`
	QueueDepthEstimate      *int     `json:"queue_depth_estimate,omitempty"`
	CampaignClass          *string  `json:"campaign_class,omitempty"`
}

// EngagementEvent is one immutable row keyed by (esp, universal_id,
// timestamp, type) in the event store.
type EngagementEvent struct {
	EventID            string                 `json:"event_id"`
	ESP                string                 `json:"esp"`
	UniversalID        UniversalID            `json:"universal_id"`
	Timestamp          time.Time              `json:"timestamp"`
	EventType          TimingEventType        `json:"event_type"`
	RecipientEmailHash string                 `json:"recipient_email_hash"`
	CampaignID         string                 `json:"campaign_id,omitempty"`
	Latency            LatencyFeatures        `json:"latency_features,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// BotFlagged reports whether the event's metadata marks it as bot traffic.
func (e EngagementEvent) BotFlagged() bool {
	if e.Metadata == nil {
		return false
	}
	v, _ := e.Metadata["suspected_bot"].(bool)
	return v
}

// ContextSignal is an ephemeral input to the decision engine, drawn from
// the event store by event-type filter and recency window.
type ContextSignal struct {
	UniversalID UniversalID     `json:"universal_id"`
	EventType   TimingEventType `json:"event_type"`
	Timestamp   time.Time       `json:"timestamp"`
	Weight      *float64        `json:"weight,omitempty"`
	Provider    string          `json:"provider,omitempty"`
}

// HotPathEventTypes are event types that temporarily raise propensity in
// the minutes following their occurrence.
var HotPathEventTypes = []TimingEventType{
	TimingEventSiteVisit,
	TimingEventSMSClick,
	TimingEventProductView,
	TimingEventCartAdd,
	TimingEventSearchPerformed,
}

// CircuitBreakerEventTypes are event types that force propensity to zero
// for a cooling-off window.
var CircuitBreakerEventTypes = []TimingEventType{
	TimingEventSupportTicket,
	TimingEventComplained,
	TimingEventUnsubscribeRequest,
	TimingEventSpamReport,
}
