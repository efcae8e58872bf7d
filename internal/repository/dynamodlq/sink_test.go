package dynamodlq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/timing-intelligence/internal/timing/ingest"
)

func TestBuildItem_DerivesPartitionKeyAndTTL(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	rec := ingest.DeadLetterRecord{
		Error:     "malformed",
		Partition: "3",
		Offset:    "42",
	}

	it := buildItem(rec, now)

	assert.Equal(t, "DLQ#3#42", it.PK)
	assert.Equal(t, now.Add(retention).Unix(), it.TTL)
	assert.Equal(t, "malformed", it.Error)
}
