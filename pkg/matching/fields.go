package matching

import (
	"strings"

	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/normalizers"
)

// Reasons reported on a match, in the order the rules are evaluated
const (
	ReasonIdentifier     = "identical identifier"
	ReasonPlaceID        = "identical external place id"
	ReasonNameNear       = "name nearly identical"
	ReasonNameSimilar    = "similar name"
	ReasonPhone          = "identical phone"
	ReasonEmail          = "identical email"
	ReasonAddressNear    = "very similar address"
	ReasonAddressSimilar = "similar address"
)

// MatchType defines how two canonical values are compared
type MatchType string

const (
	MatchTypeExact MatchType = "exact" // 1.0 when equal, 0.0 otherwise
	MatchTypeFuzzy MatchType = "fuzzy" // normalized Levenshtein similarity
)

// Band is one threshold of a field rule. Bands are checked in order and the first
// band whose threshold the similarity reaches contributes its weight.
type Band struct {
	Threshold float64
	Weight    float64
	Reason    string
}

// FieldRule scores one listing field
type FieldRule struct {
	Signal    models.Signal
	MatchType MatchType
	Extract   func(models.ListingFields) string
	Bands     []Band
}

// DefaultFieldRules are the additive rules applied when identifiers do not collide
func DefaultFieldRules() []FieldRule {
	return []FieldRule{
		{
			Signal:    models.SignalPlaceID,
			MatchType: MatchTypeExact,
			Extract:   func(f models.ListingFields) string { return strings.TrimSpace(f.PlaceID) },
			Bands:     []Band{{Threshold: 1.0, Weight: 0.9, Reason: ReasonPlaceID}},
		},
		{
			Signal:    models.SignalName,
			MatchType: MatchTypeFuzzy,
			Extract:   func(f models.ListingFields) string { return normalizers.NormalizeName(f.Name) },
			Bands: []Band{
				{Threshold: 0.9, Weight: 0.8, Reason: ReasonNameNear},
				{Threshold: 0.7, Weight: 0.4, Reason: ReasonNameSimilar},
			},
		},
		{
			Signal:    models.SignalPhone,
			MatchType: MatchTypeExact,
			Extract:   func(f models.ListingFields) string { return normalizers.NormalizePhone(f.Phone) },
			Bands:     []Band{{Threshold: 1.0, Weight: 0.6, Reason: ReasonPhone}},
		},
		{
			Signal:    models.SignalEmail,
			MatchType: MatchTypeExact,
			Extract:   func(f models.ListingFields) string { return normalizers.NormalizeEmail(f.Email) },
			Bands:     []Band{{Threshold: 1.0, Weight: 0.5, Reason: ReasonEmail}},
		},
		{
			Signal:    models.SignalAddress,
			MatchType: MatchTypeFuzzy,
			Extract:   func(f models.ListingFields) string { return normalizers.NormalizeAddress(f.Address) },
			Bands: []Band{
				{Threshold: 0.8, Weight: 0.7, Reason: ReasonAddressNear},
				{Threshold: 0.6, Weight: 0.35, Reason: ReasonAddressSimilar},
			},
		},
	}
}

// PairScore is the raw, unfiltered score of one candidate/stored pair
type PairScore struct {
	Score   float64
	Reasons []string
	Signals []models.Signal
}

// FieldScorer evaluates per-field contributions for a candidate/stored pair.
// Its rules are fixed at construction.
type FieldScorer struct {
	scorer *Scorer
	rules  []FieldRule
}

// NewFieldScorer creates a field scorer over the given rules
func NewFieldScorer(rules []FieldRule) *FieldScorer {
	return &FieldScorer{
		scorer: NewScorer(),
		rules:  append([]FieldRule(nil), rules...),
	}
}

// ScorePair scores one pair. Equal national identifiers short-circuit to exactly 1.0;
// otherwise rule contributions are summed without a cap.
func (fs *FieldScorer) ScorePair(candidate, stored models.ListingFields) PairScore {
	candID := normalizers.NormalizeIdentifier(candidate.Siret)
	storedID := normalizers.NormalizeIdentifier(stored.Siret)
	if candID != "" && candID == storedID {
		return PairScore{
			Score:   1.0,
			Reasons: []string{ReasonIdentifier},
			Signals: []models.Signal{models.SignalIdentifier},
		}
	}

	result := PairScore{Reasons: []string{}, Signals: []models.Signal{}}

	for _, rule := range fs.rules {
		a := rule.Extract(candidate)
		b := rule.Extract(stored)
		if a == "" || b == "" {
			continue
		}

		var sim float64
		switch rule.MatchType {
		case MatchTypeExact:
			sim = fs.scorer.ExactMatch(a, b, true)
		case MatchTypeFuzzy:
			sim = fs.scorer.Similarity(a, b)
		}

		for _, band := range rule.Bands {
			if sim >= band.Threshold {
				result.Score += band.Weight
				result.Reasons = append(result.Reasons, band.Reason)
				result.Signals = append(result.Signals, rule.Signal)
				break
			}
		}
	}

	return result
}
