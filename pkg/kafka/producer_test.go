package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMessage(t *testing.T) {
	event := &ListingEvent{
		EventID:    "evt-1",
		EventType:  "listing.duplicates_merged",
		ListingID:  "listing-1",
		RelatedIDs: []string{"listing-2"},
	}

	msg, err := toMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("listing-1"), msg.Key)
	assert.False(t, event.Timestamp.IsZero())
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte("listing.duplicates_merged")})
	assert.Contains(t, msg.Headers, kafka.Header{Key: "schema_version", Value: []byte(SchemaVersion)})

	var decoded ListingEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "listing-1", decoded.ListingID)
	assert.Equal(t, []string{"listing-2"}, decoded.RelatedIDs)
}

func TestToMessage_KeepsTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	event := &ListingEvent{EventType: "x", ListingID: "l", Timestamp: ts}

	_, err := toMessage(event)
	require.NoError(t, err)
	assert.Equal(t, ts, event.Timestamp)
}

func TestNewProducer(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	for _, c := range []string{"", "gzip", "lz4", "zstd", "none"} {
		p := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "listings", Compression: c}, logger)
		assert.Equal(t, "listings", p.writer.Topic)
		assert.NoError(t, p.Close())
	}
}
