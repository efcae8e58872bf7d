package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Snowflake SnowflakeConfig `yaml:"snowflake"`
	Timing    TimingConfig    `yaml:"timing"`
}

// ServerConfig holds the timing decision API's HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// TimingConfig holds the timing intelligence layer's tunables: the
// engagement curve model, the hot-path/circuit-breaker decision policy, the
// identity graph traversal bounds, and the backing stores it talks to.
type TimingConfig struct {
	SmoothingSigmaMinutes   float64                      `yaml:"smoothing_sigma_minutes"`
	LaplaceAlpha            float64                      `yaml:"laplace_alpha"`
	LookbackDays            int                          `yaml:"lookback_days"`
	PrimaryEventType        string                       `yaml:"primary_event_type"`
	HotPathEventTypes       []string                     `yaml:"hot_path_event_types"`
	HotPathWindowMinutes    int                          `yaml:"hot_path_window_minutes"`
	AccelerationMinutes     int                          `yaml:"acceleration_minutes"`
	CircuitBreakerWindows   []CircuitBreakerWindowConfig `yaml:"circuit_breaker_windows"`
	ProbabilisticWeights    map[string]float64           `yaml:"probabilistic_weights"`
	BFSDepth                int                          `yaml:"bfs_depth"`
	BFSBudget               int                          `yaml:"bfs_budget"`
	DefaultLatencySeconds   int                          `yaml:"default_latency_seconds"`
	MinLatencySeconds       int                          `yaml:"min_latency_seconds"`
	MaxLatencySeconds       int                          `yaml:"max_latency_seconds"`
	CurveCacheMaxAgeSeconds int                          `yaml:"curve_cache_max_age_seconds"`
	CurveCacheTTLSeconds    int                          `yaml:"curve_cache_ttl_seconds"`
	PhoneDefaultRegion      string                       `yaml:"phone_default_region"`
	ModelVersion            string                       `yaml:"model_version"`
	MaxResolveAttempts      int                          `yaml:"max_resolve_attempts"`
	RetryBaseDelayMillis    int                          `yaml:"retry_base_delay_millis"`

	Redis    TimingRedisConfig    `yaml:"redis"`
	Postgres TimingPostgresConfig `yaml:"postgres"`
	SQS      TimingSQSConfig      `yaml:"sqs"`
	Bedrock  TimingBedrockConfig  `yaml:"bedrock"`
	DLQ      TimingDLQConfig      `yaml:"dlq"`
}

// CircuitBreakerWindowConfig describes one suppression window: the event
// type that triggers it, how long the suppression lasts, and whether it is
// permanent (Permanent wins over DurationMinutes when true).
type CircuitBreakerWindowConfig struct {
	EventType       string `yaml:"event_type"`
	DurationMinutes int    `yaml:"duration_minutes"`
	Permanent       bool   `yaml:"permanent"`
}

// TimingRedisConfig holds the feature-curve cache's Redis connection.
type TimingRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TimingPostgresConfig holds the identity store and explanation log's
// Postgres connection.
type TimingPostgresConfig struct {
	DatabaseURL string `yaml:"database_url"`
}

// TimingSQSConfig holds the event ingestion consumer's queue settings.
type TimingSQSConfig struct {
	QueueURL            string `yaml:"queue_url"`
	Region              string `yaml:"region"`
	MaxNumberOfMessages int    `yaml:"max_number_of_messages"`
	WaitTimeSeconds     int    `yaml:"wait_time_seconds"`
}

// TimingBedrockConfig holds the ML-backed predictor ports' Bedrock model
// settings. When Enabled is false, the heuristic predictors are used
// instead.
type TimingBedrockConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Region         string `yaml:"region"`
	LatencyModelID string `yaml:"latency_model_id"`
	WeightsModelID string `yaml:"weights_model_id"`
}

// TimingDLQConfig holds the ingestion dead-letter sink's DynamoDB table.
type TimingDLQConfig struct {
	TableName string `yaml:"table_name"`
	Region    string `yaml:"region"`
}

// SnowflakeConfig holds the connection settings for the Snowflake-backed
// engagement event store gateway (internal/snowflake).
type SnowflakeConfig struct {
	ConnectionString string `yaml:"connection_string"`
	Account          string `yaml:"account"`
	User             string `yaml:"user"`
	Password         string `yaml:"password"`
	Database         string `yaml:"database"`
	Schema           string `yaml:"schema"`
	Warehouse        string `yaml:"warehouse"`
	Table            string `yaml:"table"`
	Enabled          bool   `yaml:"enabled"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	// Snowflake defaults
	if cfg.Snowflake.Database == "" {
		cfg.Snowflake.Database = "IGNITE_DATA_LAKE"
	}
	if cfg.Snowflake.Schema == "" {
		cfg.Snowflake.Schema = "REFINEDEMAILS"
	}
	if cfg.Snowflake.Table == "" {
		cfg.Snowflake.Table = "ENGAGEMENT_EVENTS"
	}

	// Timing intelligence defaults, mirroring internal/timing/*'s own
	// withDefaults() so a missing config.yaml section still runs sanely.
	if cfg.Timing.SmoothingSigmaMinutes == 0 {
		cfg.Timing.SmoothingSigmaMinutes = 30
	}
	if cfg.Timing.LaplaceAlpha == 0 {
		cfg.Timing.LaplaceAlpha = 1.0
	}
	if cfg.Timing.LookbackDays == 0 {
		cfg.Timing.LookbackDays = 90
	}
	if cfg.Timing.PrimaryEventType == "" {
		cfg.Timing.PrimaryEventType = "clicked"
	}
	if len(cfg.Timing.HotPathEventTypes) == 0 {
		cfg.Timing.HotPathEventTypes = []string{"site_visit", "sms_click", "product_view", "cart_add", "search_performed"}
	}
	if cfg.Timing.HotPathWindowMinutes == 0 {
		cfg.Timing.HotPathWindowMinutes = 30
	}
	if cfg.Timing.AccelerationMinutes == 0 {
		cfg.Timing.AccelerationMinutes = 60
	}
	if cfg.Timing.BFSDepth == 0 {
		cfg.Timing.BFSDepth = 3
	}
	if cfg.Timing.BFSBudget == 0 {
		cfg.Timing.BFSBudget = 128
	}
	if cfg.Timing.DefaultLatencySeconds == 0 {
		cfg.Timing.DefaultLatencySeconds = 120
	}
	if cfg.Timing.MinLatencySeconds == 0 {
		cfg.Timing.MinLatencySeconds = 1
	}
	if cfg.Timing.MaxLatencySeconds == 0 {
		cfg.Timing.MaxLatencySeconds = 3600
	}
	if cfg.Timing.CurveCacheMaxAgeSeconds == 0 {
		cfg.Timing.CurveCacheMaxAgeSeconds = 3600
	}
	if cfg.Timing.CurveCacheTTLSeconds == 0 {
		cfg.Timing.CurveCacheTTLSeconds = 86400
	}
	if cfg.Timing.PhoneDefaultRegion == "" {
		cfg.Timing.PhoneDefaultRegion = "1"
	}
	if cfg.Timing.ModelVersion == "" {
		cfg.Timing.ModelVersion = "heuristic-v1"
	}
	if cfg.Timing.MaxResolveAttempts == 0 {
		cfg.Timing.MaxResolveAttempts = 3
	}
	if cfg.Timing.RetryBaseDelayMillis == 0 {
		cfg.Timing.RetryBaseDelayMillis = 200
	}
	if cfg.Timing.SQS.MaxNumberOfMessages == 0 {
		cfg.Timing.SQS.MaxNumberOfMessages = 10
	}
	if cfg.Timing.SQS.WaitTimeSeconds == 0 {
		cfg.Timing.SQS.WaitTimeSeconds = 20
	}
	if len(cfg.Timing.CircuitBreakerWindows) == 0 {
		cfg.Timing.CircuitBreakerWindows = []CircuitBreakerWindowConfig{
			{EventType: "bounced", Permanent: true},
			{EventType: "complained", DurationMinutes: 48 * 60},
			{EventType: "unsubscribed", Permanent: true},
			{EventType: "spam_report", Permanent: true},
			{EventType: "support_ticket", DurationMinutes: 48 * 60},
			{EventType: "unsubscribe_request", DurationMinutes: 168 * 60},
		}
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Server overrides
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, perr := strconv.Atoi(v); perr == nil {
			cfg.Server.Port = port
		}
	}

	// Snowflake overrides
	if v := os.Getenv("SNOWFLAKE_CONNECTION_STRING"); v != "" {
		cfg.Snowflake.ConnectionString = v
	}
	if v := os.Getenv("SNOWFLAKE_ACCOUNT"); v != "" {
		cfg.Snowflake.Account = v
	}
	if v := os.Getenv("SNOWFLAKE_USER"); v != "" {
		cfg.Snowflake.User = v
	}
	if v := os.Getenv("SNOWFLAKE_PASSWORD"); v != "" {
		cfg.Snowflake.Password = v
	}
	if v := os.Getenv("SNOWFLAKE_TABLE"); v != "" {
		cfg.Snowflake.Table = v
	}

	// Timing intelligence overrides
	if v := os.Getenv("TIMING_REDIS_ADDR"); v != "" {
		cfg.Timing.Redis.Addr = v
	}
	if v := os.Getenv("TIMING_REDIS_PASSWORD"); v != "" {
		cfg.Timing.Redis.Password = v
	}
	if v := os.Getenv("TIMING_POSTGRES_DATABASE_URL"); v != "" {
		cfg.Timing.Postgres.DatabaseURL = v
	}
	if v := os.Getenv("TIMING_SQS_QUEUE_URL"); v != "" {
		cfg.Timing.SQS.QueueURL = v
	}
	if v := os.Getenv("TIMING_SQS_REGION"); v != "" {
		cfg.Timing.SQS.Region = v
	}
	if v := os.Getenv("TIMING_BEDROCK_ENABLED"); v == "true" {
		cfg.Timing.Bedrock.Enabled = true
	}
	if v := os.Getenv("TIMING_BEDROCK_REGION"); v != "" {
		cfg.Timing.Bedrock.Region = v
	}
	if v := os.Getenv("TIMING_BEDROCK_LATENCY_MODEL_ID"); v != "" {
		cfg.Timing.Bedrock.LatencyModelID = v
	}
	if v := os.Getenv("TIMING_BEDROCK_WEIGHTS_MODEL_ID"); v != "" {
		cfg.Timing.Bedrock.WeightsModelID = v
	}
	if v := os.Getenv("TIMING_DLQ_TABLE_NAME"); v != "" {
		cfg.Timing.DLQ.TableName = v
	}
	if v := os.Getenv("TIMING_DLQ_REGION"); v != "" {
		cfg.Timing.DLQ.Region = v
	}

	return cfg, nil
}
