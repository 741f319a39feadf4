// Package matching implements listing duplicate detection:
// field normalization feeds a per-field scorer whose weighted contributions are
// summed, tiered into confidence levels and ranked.
package matching

import (
	"context"
	"sort"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/recommendations"
	"github.com/Ramsey-B/thistle/pkg/tracing"
)

// tierEpsilon absorbs float accumulation error at the tier cut-points
const tierEpsilon = 1e-9

// Config contains the confidence cut-points of the detector.
type Config struct {
	MinMatchScore   float64 // Minimum score to report a match (default: 0.5)
	MediumThreshold float64 // Score at which a match becomes medium confidence (default: 0.7)
	HighThreshold   float64 // Score at which a match becomes high confidence (default: 0.9)
}

// DefaultConfig returns the standard cut-points.
func DefaultConfig() Config {
	return Config{
		MinMatchScore:   0.5,
		MediumThreshold: 0.7,
		HighThreshold:   0.9,
	}
}

// ConfidenceFor maps a score to its tier. ok is false when the score is below MinMatchScore.
func (c Config) ConfidenceFor(score float64) (confidence models.Confidence, ok bool) {
	switch {
	case score+tierEpsilon >= c.HighThreshold:
		return models.ConfidenceHigh, true
	case score+tierEpsilon >= c.MediumThreshold:
		return models.ConfidenceMedium, true
	case score+tierEpsilon >= c.MinMatchScore:
		return models.ConfidenceLow, true
	default:
		return "", false
	}
}

// Detector finds stored listings that duplicate a candidate. All of its fields are
// set at construction and never written afterwards, so one instance can serve
// concurrent calls.
type Detector struct {
	log         ectologger.Logger
	fields      *FieldScorer
	recommender *recommendations.Generator
	cfg         Config
}

// NewDetector creates a detector with the default field rules.
func NewDetector(log ectologger.Logger, cfg Config) *Detector {
	return NewDetectorWithRules(log, cfg, DefaultFieldRules())
}

// NewDetectorWithRules creates a detector with custom field rules.
func NewDetectorWithRules(log ectologger.Logger, cfg Config, rules []FieldRule) *Detector {
	return &Detector{
		log:         log,
		fields:      NewFieldScorer(rules),
		recommender: recommendations.NewGenerator(),
		cfg:         cfg,
	}
}

// ScorePair exposes the raw score of one pair, including scores below MinMatchScore.
func (d *Detector) ScorePair(candidate models.CandidateRecord, stored models.StoredRecord) PairScore {
	return d.fields.ScorePair(candidate.ListingFields, stored.ListingFields)
}

// DetectDuplicates scores the candidate against every stored listing of the snapshot.
//
// Matches below MinMatchScore are dropped, the rest are sorted by descending score
// with ties kept in input order. The candidate is a duplicate when at least one match
// is high confidence; it may still proceed unless a high match comes from an
// identifier or place-id collision. Detection never fails: missing fields score zero.
func (d *Detector) DetectDuplicates(ctx context.Context, candidate models.CandidateRecord, stored []models.StoredRecord) models.DetectionOutcome {
	ctx, span := tracing.StartSpan(ctx, "matching.Detector.DetectDuplicates")
	defer span.End()

	matches := make([]models.MatchResult, 0)
	for _, record := range stored {
		pair := d.fields.ScorePair(candidate.ListingFields, record.ListingFields)

		confidence, ok := d.cfg.ConfidenceFor(pair.Score)
		if !ok {
			continue
		}

		matches = append(matches, models.MatchResult{
			StoredRecordID: record.ID,
			StoredRecord:   record.Clone(),
			MatchScore:     pair.Score,
			MatchReasons:   pair.Reasons,
			Confidence:     confidence,
			Signals:        pair.Signals,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})

	high := ectolinq.Filter(matches, func(m models.MatchResult) bool {
		return m.Confidence == models.ConfidenceHigh
	})
	blocking := ectolinq.Filter(high, func(m models.MatchResult) bool {
		return m.Blocking()
	})

	isDuplicate := len(high) > 0
	outcome := models.DetectionOutcome{
		IsDuplicate:     isDuplicate,
		Matches:         matches,
		Recommendations: d.recommender.Generate(matches),
		CanProceed:      !isDuplicate || len(blocking) == 0,
	}

	d.log.WithContext(ctx).WithFields(map[string]any{
		"stored_count": len(stored),
		"match_count":  len(matches),
		"high_count":   len(high),
		"is_duplicate": outcome.IsDuplicate,
		"can_proceed":  outcome.CanProceed,
	}).Debug("Detected duplicates for candidate")

	return outcome
}
