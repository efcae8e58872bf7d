package ingest

// RawEvent is the on-wire shape of one inbound message: JSON object with
// snake_case fields and ISO-8601 UTC timestamps.
type RawEvent struct {
	EventID          string                 `json:"event_id"`
	ESP              string                 `json:"esp"`
	EventType        string                 `json:"event_type"`
	Timestamp        string                 `json:"timestamp"`
	RecipientEmail   string                 `json:"recipient_email,omitempty"`
	CampaignID       string                 `json:"campaign_id,omitempty"`
	UserAgent        string                 `json:"user_agent,omitempty"`
	SourceIP         string                 `json:"source_ip,omitempty"`
	PhoneNumber      string                 `json:"phone_number,omitempty"`
	KlaviyoID        string                 `json:"klaviyo_id,omitempty"`
	ShopifyCustomer  string                 `json:"shopify_customer_id,omitempty"`
	EspUserID        string                 `json:"esp_user_id,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}
