// Package recommendations turns ranked duplicate matches into guidance for the submitter
package recommendations

import (
	"fmt"
	"strings"

	"github.com/Gobusters/ectolinq"

	"github.com/Ramsey-B/thistle/pkg/models"
)

// Fixed guidance lines
const (
	NoDuplicateMessage = "No duplicate listing detected. You can proceed with the creation."
	ClaimSuggestion    = "If this business is already listed, claim the existing listing instead of creating a new one."
	BlockedMessage     = "Creation is blocked: the business identifier or map location is already registered on another listing."
	OverrideMessage    = "You can still proceed if this is a different business; the listing will be flagged as duplicate-checked for review."
)

// Generator builds deterministic recommendation text. It has no state.
type Generator struct{}

// NewGenerator creates a new Generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate returns guidance lines for matches sorted by descending score.
// The output depends only on the order and content of matches.
func (g *Generator) Generate(matches []models.MatchResult) []string {
	if len(matches) == 0 {
		return []string{NoDuplicateMessage}
	}

	high := byConfidence(matches, models.ConfidenceHigh)
	medium := byConfidence(matches, models.ConfidenceMedium)
	low := byConfidence(matches, models.ConfidenceLow)

	lines := make([]string, 0, len(high)+5)

	if len(high) > 0 {
		lines = append(lines, plural(len(high), "%d likely duplicate found.", "%d likely duplicates found."))
		for _, m := range high {
			lines = append(lines, fmt.Sprintf("%q (%s): %s", m.StoredRecord.DisplayName(), m.StoredRecordID, strings.Join(m.MatchReasons, ", ")))
		}
		lines = append(lines, ClaimSuggestion)

		blocking := ectolinq.Filter(high, func(m models.MatchResult) bool { return m.Blocking() })
		if len(blocking) > 0 {
			lines = append(lines, BlockedMessage)
		} else {
			lines = append(lines, OverrideMessage)
		}
	}

	if len(medium) > 0 {
		lines = append(lines, plural(len(medium),
			"%d similar listing found; check that it is not the same business.",
			"%d similar listings found; check that they are not the same business."))
	}

	if len(high) == 0 && len(medium) == 0 && len(low) > 0 {
		lines = append(lines, plural(len(low),
			"%d loosely related listing shown for reference; no duplicate is likely.",
			"%d loosely related listings shown for reference; no duplicate is likely."))
	}

	return lines
}

func byConfidence(matches []models.MatchResult, confidence models.Confidence) []models.MatchResult {
	return ectolinq.Filter(matches, func(m models.MatchResult) bool {
		return m.Confidence == confidence
	})
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return fmt.Sprintf(singular, n)
	}
	return fmt.Sprintf(pluralForm, n)
}
