// Package metrics provides Prometheus metrics for the thistle service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectionsTotal tracks duplicate detections by verdict
	DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "detection",
			Name:      "checks_total",
			Help:      "Total number of duplicate detections by verdict",
		},
		[]string{"is_duplicate", "can_proceed"},
	)

	// DetectionMatches tracks matches reported by confidence tier
	DetectionMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "detection",
			Name:      "matches_total",
			Help:      "Total number of reported matches by confidence",
		},
		[]string{"confidence"},
	)

	// DetectionDuration tracks detection duration in seconds
	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "thistle",
			Subsystem: "detection",
			Name:      "duration_seconds",
			Help:      "Duration of duplicate detections in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	// OverridesTotal tracks submissions that proceeded past a duplicate warning
	OverridesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "detection",
			Name:      "overrides_total",
			Help:      "Total number of recorded duplicate overrides",
		},
	)

	// ValidationsTotal tracks identifier validations by result
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "registry",
			Name:      "validations_total",
			Help:      "Total number of identifier validations by result",
		},
		[]string{"result"},
	)

	// RegistryLookupDuration tracks registry calls made for checksum-valid identifiers
	RegistryLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "thistle",
			Subsystem: "registry",
			Name:      "lookup_duration_seconds",
			Help:      "Duration of registry lookups in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// MergesTotal tracks listing merges
	MergesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "merge",
			Name:      "merges_total",
			Help:      "Total number of listing merges",
		},
	)

	// MergeConflictsTotal tracks discarded duplicate values by field
	MergeConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "merge",
			Name:      "conflicts_total",
			Help:      "Total number of merge conflicts by field",
		},
		[]string{"field"},
	)

	// EventsPublished tracks published events by type and status
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thistle",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of published events by type and status",
		},
		[]string{"event_type", "status"},
	)
)
