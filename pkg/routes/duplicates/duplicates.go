package duplicates

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/thistle/pkg/context"
	"github.com/Ramsey-B/thistle/pkg/events"
	"github.com/Ramsey-B/thistle/pkg/matching"
	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/utils"
)

// DetectRequest is a candidate listing and the stored listings to compare it with
type DetectRequest struct {
	Candidate models.CandidateRecord `json:"candidate"`
	Stored    []models.StoredRecord  `json:"stored" validate:"dive"`
}

// OverrideRequest records that a new listing was created after detection
type OverrideRequest struct {
	ListingID string                 `json:"listing_id" validate:"required"`
	Candidate models.CandidateRecord `json:"candidate"`
	Stored    []models.StoredRecord  `json:"stored" validate:"dive"`
}

// Handler serves duplicate detection routes
type Handler struct {
	detector *matching.Detector
	emitter  *events.Emitter
	logger   ectologger.Logger
	now      func() time.Time
}

// NewHandler creates a new duplicates handler
func NewHandler(detector *matching.Detector, emitter *events.Emitter, logger ectologger.Logger) *Handler {
	return &Handler{
		detector: detector,
		emitter:  emitter,
		logger:   logger,
		now:      time.Now,
	}
}

// Register registers duplicate routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/detect", h.Detect)
	g.POST("/override", h.Override)
}

// Detect returns the duplicate verdict for a candidate listing
func (h *Handler) Detect(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[DetectRequest](c)
	if err != nil {
		return err
	}

	outcome := h.detect(c, req.Candidate, req.Stored)

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"request_id":   context.GetRequestID(ctx),
		"is_duplicate": outcome.IsDuplicate,
		"match_count":  len(outcome.Matches),
	}).Info("Duplicate detection completed")

	return c.JSON(http.StatusOK, outcome)
}

// Override re-runs detection for the submitted listing and stamps it as
// duplicate-checked. Identity collisions cannot be overridden.
func (h *Handler) Override(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[OverrideRequest](c)
	if err != nil {
		return err
	}

	outcome := h.detect(c, req.Candidate, req.Stored)
	if !outcome.CanProceed {
		return httperror.NewHTTPErrorf(http.StatusConflict, "listing %s cannot be created: it collides with the identity of %v", req.ListingID, outcome.MatchedIDs())
	}

	check := matching.NewDuplicateCheck(outcome, h.now())
	if !check.Overridden {
		return c.JSON(http.StatusOK, check)
	}

	if err := h.emitter.EmitDuplicateOverride(ctx, req.ListingID, check); err != nil {
		return httperror.NewHTTPErrorf(http.StatusServiceUnavailable, "failed to record duplicate override for listing %s", req.ListingID)
	}
	metrics.OverridesTotal.Inc()

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"listing_id":  req.ListingID,
		"user_id":     context.GetUserID(ctx),
		"matched_ids": check.MatchedIDs,
	}).Info("Duplicate warning overridden")

	return c.JSON(http.StatusOK, check)
}

func (h *Handler) detect(c echo.Context, candidate models.CandidateRecord, stored []models.StoredRecord) models.DetectionOutcome {
	start := time.Now()
	outcome := h.detector.DetectDuplicates(c.Request().Context(), candidate, stored)
	metrics.DetectionDuration.Observe(time.Since(start).Seconds())

	metrics.DetectionsTotal.WithLabelValues(strconv.FormatBool(outcome.IsDuplicate), strconv.FormatBool(outcome.CanProceed)).Inc()
	for _, m := range outcome.Matches {
		metrics.DetectionMatches.WithLabelValues(string(m.Confidence)).Inc()
	}
	return outcome
}
