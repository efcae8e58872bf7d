package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/ignite/timing-intelligence/internal/domain"
	"github.com/ignite/timing-intelligence/internal/pkg/httpretry"
)

// bedrockHTTPClient bounds Bedrock's transient failures (throttling,
// 5xx) with the same exponential-backoff-with-jitter policy the rest of
// the stack uses for external calls.
func bedrockHTTPClient() *httpretry.RetryClient {
	return httpretry.NewRetryClient(nil, 3)
}

// bedrockRequest mirrors the Anthropic Messages API shape Bedrock expects
// for Claude models.
type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// LatencyModel calls a Bedrock-hosted model for a latency estimate,
// falling back to a heuristic if the model's response can't be parsed as a
// plain integer number of seconds.
type LatencyModel struct {
	client   *bedrockruntime.Client
	modelID  string
	fallback *HeuristicLatencyPredictor
}

// NewLatencyModel loads the default AWS config for region and constructs a
// Bedrock-backed LatencyPredictor.
func NewLatencyModel(ctx context.Context, region, modelID string) (*LatencyModel, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region), config.WithHTTPClient(bedrockHTTPClient()))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if modelID == "" {
		modelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	return &LatencyModel{
		client:   bedrockruntime.NewFromConfig(cfg),
		modelID:  modelID,
		fallback: NewHeuristicLatencyPredictor(DefaultLatencySeconds),
	}, nil
}

func (m *LatencyModel) EstimateSeconds(ctx context.Context, f LatencyContext) (int, error) {
	prompt := fmt.Sprintf(
		"Given esp=%q hour_of_day=%d day_of_week=%d campaign_class=%q payload_size_bytes=%d queue_depth_estimate=%d, "+
			"reply with only an integer: the estimated email delivery latency in seconds.",
		f.ESP, f.HourOfDay, f.DayOfWeek, f.CampaignClass, f.PayloadSizeBytes, f.QueueDepthEstimate,
	)

	req := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        16,
		Messages: []bedrockMessage{
			{Role: "user", Content: []bedrockContentBlock{{Type: "text", Text: prompt}}},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return m.fallback.EstimateSeconds(ctx, f)
	}

	out, err := m.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(m.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return m.fallback.EstimateSeconds(ctx, f)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return m.fallback.EstimateSeconds(ctx, f)
	}

	var text string
	for _, c := range resp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return m.fallback.EstimateSeconds(ctx, f)
	}
	return seconds, nil
}

// SignalWeightModel is the Bedrock-backed counterpart for acceleration
// weights; same fallback behavior as LatencyModel.
type SignalWeightModel struct {
	client   *bedrockruntime.Client
	modelID  string
	fallback HeuristicSignalWeightPredictor
}

func NewSignalWeightModel(ctx context.Context, region, modelID string) (*SignalWeightModel, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region), config.WithHTTPClient(bedrockHTTPClient()))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if modelID == "" {
		modelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	return &SignalWeightModel{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

func (m *SignalWeightModel) Weight(ctx context.Context, signal domain.TimingEventType, minutesSinceEvent float64) (float64, error) {
	prompt := fmt.Sprintf(
		"Given hot-path signal=%q minutes_since_event=%.2f, reply with only a floating point "+
			"number >= 0: the acceleration weight to apply to the send-time curve.",
		signal, minutesSinceEvent,
	)

	req := bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        16,
		Messages: []bedrockMessage{
			{Role: "user", Content: []bedrockContentBlock{{Type: "text", Text: prompt}}},
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return m.fallback.Weight(ctx, signal, minutesSinceEvent)
	}

	out, err := m.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(m.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return m.fallback.Weight(ctx, signal, minutesSinceEvent)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return m.fallback.Weight(ctx, signal, minutesSinceEvent)
	}

	var text string
	for _, c := range resp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}
	weight, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || weight < 0 {
		return m.fallback.Weight(ctx, signal, minutesSinceEvent)
	}
	return weight, nil
}
