// Package snowflake implements the engagement event store gateway against
// a Snowflake warehouse: the append-only, monthly-partitioned table of
// every ESP lifecycle and behavioral event the timing intelligence layer
// learns from. Client satisfies internal/timing/eventstore.EventStore.
package snowflake

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/snowflakedb/gosnowflake" // Snowflake driver

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/timing/eventstore"
)

// Client provides access to the Snowflake-backed event store.
type Client struct {
	config Config
	db     *sql.DB
}

// NewClient opens a connection pool against the configured warehouse.
func NewClient(cfg Config) (*Client, error) {
	// Format: user:password@account/database/schema?warehouse=xxx
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s",
		cfg.User,
		cfg.Password,
		cfg.Account,
		cfg.Database,
		cfg.Schema,
	)
	if cfg.Warehouse != "" {
		dsn += "?warehouse=" + cfg.Warehouse
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snowflake connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Client{config: cfg, db: db}, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping tests the database connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

var _ eventstore.EventStore = (*Client)(nil)

// Insert writes one engagement event row.
func (c *Client) Insert(ctx context.Context, evt domain.EngagementEvent) error {
	var metadataJSON []byte
	if len(evt.Metadata) > 0 {
		var err error
		metadataJSON, err = json.Marshal(evt.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (
			EVENT_ID, ESP, UNIVERSAL_ID, TIMESTAMP, EVENT_TYPE,
			RECIPIENT_EMAIL_HASH, CAMPAIGN_ID,
			DELIVERY_LATENCY_SECONDS, HOUR_OF_DAY, DAY_OF_WEEK,
			PAYLOAD_SIZE_BYTES, QUEUE_DEPTH_ESTIMATE, CAMPAIGN_CLASS,
			METADATA
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.config.Table)

	_, err := c.db.ExecContext(ctx, query,
		evt.EventID,
		evt.ESP,
		string(evt.UniversalID),
		evt.Timestamp,
		string(evt.EventType),
		evt.RecipientEmailHash,
		evt.CampaignID,
		evt.Latency.DeliveryLatencySeconds,
		evt.Latency.HourOfDay,
		evt.Latency.DayOfWeek,
		evt.Latency.PayloadSizeBytes,
		evt.Latency.QueueDepthEstimate,
		evt.Latency.CampaignClass,
		string(metadataJSON),
	)
	if err != nil {
		return fmt.Errorf("%w: insert engagement event: %v", eventstore.ErrUnavailable, err)
	}
	return nil
}

// Query returns events matching the filter, ordered oldest-first.
func (c *Client) Query(ctx context.Context, f eventstore.Filter) ([]domain.EngagementEvent, error) {
	query := fmt.Sprintf(`
		SELECT EVENT_ID, ESP, UNIVERSAL_ID, TIMESTAMP, EVENT_TYPE,
			RECIPIENT_EMAIL_HASH, CAMPAIGN_ID,
			DELIVERY_LATENCY_SECONDS, HOUR_OF_DAY, DAY_OF_WEEK,
			PAYLOAD_SIZE_BYTES, QUEUE_DEPTH_ESTIMATE, CAMPAIGN_CLASS,
			METADATA
		FROM %s
		WHERE UNIVERSAL_ID = ?
	`, c.config.Table)
	args := []interface{}{string(f.UniversalID)}

	if !f.Since.IsZero() {
		query += " AND TIMESTAMP >= ?"
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		query += " AND TIMESTAMP < ?"
		args = append(args, f.Until)
	}
	if len(f.Types) > 0 {
		query += " AND EVENT_TYPE IN (" + placeholders(len(f.Types)) + ")"
		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}
	query += " ORDER BY TIMESTAMP ASC"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query engagement events: %v", eventstore.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []domain.EngagementEvent
	for rows.Next() {
		evt, metadataJSON, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan engagement event: %w", err)
		}
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &evt.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// CountByType returns the count of events of the given type for a Universal
// ID since the given instant.
func (c *Client) CountByType(ctx context.Context, id domain.UniversalID, t domain.TimingEventType, since time.Time) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s
		WHERE UNIVERSAL_ID = ? AND EVENT_TYPE = ? AND TIMESTAMP >= ?
	`, c.config.Table)

	var count int
	err := c.db.QueryRowContext(ctx, query, string(id), string(t), since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count by type: %v", eventstore.ErrUnavailable, err)
	}
	return count, nil
}

// EarliestLatest returns the first and last timestamp of events of the given
// type for a Universal ID, or zero times if none exist.
func (c *Client) EarliestLatest(ctx context.Context, id domain.UniversalID, t domain.TimingEventType) (time.Time, time.Time, error) {
	query := fmt.Sprintf(`
		SELECT MIN(TIMESTAMP), MAX(TIMESTAMP) FROM %s
		WHERE UNIVERSAL_ID = ? AND EVENT_TYPE = ?
	`, c.config.Table)

	var earliest, latest sql.NullTime
	err := c.db.QueryRowContext(ctx, query, string(id), string(t)).Scan(&earliest, &latest)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: earliest/latest: %v", eventstore.ErrUnavailable, err)
	}
	return earliest.Time, latest.Time, nil
}

func scanEvent(rows *sql.Rows) (domain.EngagementEvent, string, error) {
	var evt domain.EngagementEvent
	var universalID, eventType, metadataJSON string
	var campaignClass sql.NullString

	err := rows.Scan(
		&evt.EventID,
		&evt.ESP,
		&universalID,
		&evt.Timestamp,
		&eventType,
		&evt.RecipientEmailHash,
		&evt.CampaignID,
		&evt.Latency.DeliveryLatencySeconds,
		&evt.Latency.HourOfDay,
		&evt.Latency.DayOfWeek,
		&evt.Latency.PayloadSizeBytes,
		&evt.Latency.QueueDepthEstimate,
		&campaignClass,
		&metadataJSON,
	)
	if err != nil {
		return evt, "", err
	}
	evt.UniversalID = domain.UniversalID(universalID)
	evt.EventType = domain.TimingEventType(eventType)
	if campaignClass.Valid {
		evt.Latency.CampaignClass = &campaignClass.String
	}
	return evt, metadataJSON, nil
}

func placeholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		out += "?"
	}
	return out
}
