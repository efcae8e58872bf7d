package predictor

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/timing-intelligence/internal/domain"
)

func TestHeuristicLatencyPredictor_DefaultsTo120Seconds(t *testing.T) {
	p := NewHeuristicLatencyPredictor(0)
	got, err := p.EstimateSeconds(context.Background(), LatencyContext{})
	assert.NoError(t, err)
	assert.Equal(t, DefaultLatencySeconds, got)
}

func TestHeuristicLatencyPredictor_HonorsOverride(t *testing.T) {
	p := NewHeuristicLatencyPredictor(45)
	got, err := p.EstimateSeconds(context.Background(), LatencyContext{})
	assert.NoError(t, err)
	assert.Equal(t, 45, got)
}

func TestHeuristicSignalWeightPredictor_DecaysWithTime(t *testing.T) {
	p := HeuristicSignalWeightPredictor{}

	atZero, _ := p.Weight(context.Background(), domain.TimingEventSiteVisit, 0)
	assert.InDelta(t, 2.0, atZero, 1e-9)

	atFifteen, _ := p.Weight(context.Background(), domain.TimingEventSiteVisit, 15)
	assert.InDelta(t, 2.0*math.Exp(-1), atFifteen, 1e-9)

	atSixty, _ := p.Weight(context.Background(), domain.TimingEventSiteVisit, 60)
	assert.Less(t, atSixty, atFifteen)
}

func TestHeuristicSignalWeightPredictor_ClampsNegativeElapsed(t *testing.T) {
	p := HeuristicSignalWeightPredictor{}
	got, err := p.Weight(context.Background(), domain.TimingEventCartAdd, -5)
	assert.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-9)
}
