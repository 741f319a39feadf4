package matching

import (
	"time"

	"github.com/Ramsey-B/thistle/pkg/models"
)

// NewDuplicateCheck builds the audit stamp stored on a listing created after detection.
// Overridden is set when the submitter proceeded past a high-confidence match;
// the matched ids are kept so the decision can be reviewed later.
func NewDuplicateCheck(outcome models.DetectionOutcome, at time.Time) models.DuplicateCheck {
	return models.DuplicateCheck{
		Checked:    true,
		Overridden: outcome.IsDuplicate && outcome.CanProceed,
		MatchedIDs: outcome.MatchedIDs(),
		CheckedAt:  at.UTC(),
	}
}
