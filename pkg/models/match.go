package models

// Confidence is the tier derived from a match score
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Signal identifies which field rule contributed to a match score
type Signal string

const (
	SignalIdentifier Signal = "identifier"
	SignalPlaceID    Signal = "place_id"
	SignalName       Signal = "name"
	SignalPhone      Signal = "phone"
	SignalEmail      Signal = "email"
	SignalAddress    Signal = "address"
)

// Blocking reports whether a signal is an identity collision that can never be overridden
func (s Signal) Blocking() bool {
	return s == SignalIdentifier || s == SignalPlaceID
}

// MatchResult is a stored listing that scored at or above the minimum match score
type MatchResult struct {
	StoredRecordID string       `json:"stored_record_id"`
	StoredRecord   StoredRecord `json:"stored_record"`
	MatchScore     float64      `json:"match_score"`
	MatchReasons   []string     `json:"match_reasons"`
	Confidence     Confidence   `json:"confidence"`
	Signals        []Signal     `json:"signals"`
}

// Blocking reports whether any of the match signals is an identity collision
func (m MatchResult) Blocking() bool {
	for _, s := range m.Signals {
		if s.Blocking() {
			return true
		}
	}
	return false
}

// DetectionOutcome is the verdict for one candidate against a snapshot of stored listings
type DetectionOutcome struct {
	IsDuplicate     bool          `json:"is_duplicate"`
	Matches         []MatchResult `json:"matches"`
	Recommendations []string      `json:"recommendations"`
	CanProceed      bool          `json:"can_proceed"`
}

// MatchedIDs returns the stored record ids of all matches, in score order
func (o DetectionOutcome) MatchedIDs() []string {
	ids := make([]string, 0, len(o.Matches))
	for _, m := range o.Matches {
		ids = append(ids, m.StoredRecordID)
	}
	return ids
}
