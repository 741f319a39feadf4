// Package events handles event emission for listing lifecycle changes
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/thistle/pkg/kafka"
	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/tracing"
)

// Event types
const (
	EventDuplicateOverride = "listing.duplicate_override"
	EventDuplicatesMerged  = "listing.duplicates_merged"
)

// Publisher writes listing events to a broker
type Publisher interface {
	Publish(ctx context.Context, event *kafka.ListingEvent) error
}

// NoopPublisher drops every event. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *kafka.ListingEvent) error { return nil }

// Emitter handles event emission for thistle
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Emitter{
		publisher: publisher,
		logger:    logger,
	}
}

// EmitDuplicateOverride announces that a listing was created despite duplicate warnings
func (e *Emitter) EmitDuplicateOverride(ctx context.Context, listingID string, check models.DuplicateCheck) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDuplicateOverride")
	defer span.End()

	data, err := json.Marshal(map[string]any{
		"schema_version":  kafka.SchemaVersion,
		"duplicate_check": check,
	})
	if err != nil {
		return fmt.Errorf("failed to encode duplicate check: %w", err)
	}

	return e.emit(ctx, &kafka.ListingEvent{
		EventType:  EventDuplicateOverride,
		ListingID:  listingID,
		Data:       data,
		RelatedIDs: check.MatchedIDs,
		Timestamp:  check.CheckedAt,
	})
}

// EmitDuplicatesMerged announces a merge with its provenance
func (e *Emitter) EmitDuplicatesMerged(ctx context.Context, result models.MergeResult) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDuplicatesMerged")
	defer span.End()

	mergeData := map[string]any{
		"schema_version": kafka.SchemaVersion,
		"filled_fields":  result.FilledFields,
		"listing":        result.Merged,
	}
	if len(result.Conflicts) > 0 {
		mergeData["conflicts"] = result.Conflicts
	}

	data, err := json.Marshal(mergeData)
	if err != nil {
		return fmt.Errorf("failed to encode merge result: %w", err)
	}

	return e.emit(ctx, &kafka.ListingEvent{
		EventType:  EventDuplicatesMerged,
		ListingID:  result.Merged.ID,
		Data:       data,
		RelatedIDs: result.MergedFrom,
	})
}

func (e *Emitter) emit(ctx context.Context, event *kafka.ListingEvent) error {
	event.EventID = uuid.NewString()

	if err := e.publisher.Publish(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues(event.EventType, "error").Inc()
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", event.EventType)
		return err
	}

	metrics.EventsPublished.WithLabelValues(event.EventType, "success").Inc()
	return nil
}
