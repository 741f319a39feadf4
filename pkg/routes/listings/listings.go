package listings

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/thistle/pkg/events"
	"github.com/Ramsey-B/thistle/pkg/merging"
	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/utils"
)

// MergeRequest is a primary listing and its confirmed duplicates
type MergeRequest struct {
	Primary    models.StoredRecord   `json:"primary"`
	Duplicates []models.StoredRecord `json:"duplicates" validate:"required,min=1,dive"`
}

// Handler serves listing routes
type Handler struct {
	merger  *merging.Merger
	emitter *events.Emitter
	logger  ectologger.Logger
}

// NewHandler creates a new listings handler
func NewHandler(merger *merging.Merger, emitter *events.Emitter, logger ectologger.Logger) *Handler {
	return &Handler{
		merger:  merger,
		emitter: emitter,
		logger:  logger,
	}
}

// Register registers listing routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/merge", h.Merge)
}

// Merge folds duplicates into the primary listing and announces the result
func (h *Handler) Merge(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[MergeRequest](c)
	if err != nil {
		return err
	}

	seen := map[string]bool{req.Primary.ID: true}
	for _, d := range req.Duplicates {
		if seen[d.ID] {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "listing %s appears more than once in the merge", d.ID)
		}
		seen[d.ID] = true
	}

	result := h.merger.Merge(ctx, req.Primary, req.Duplicates)

	if err := h.emitter.EmitDuplicatesMerged(ctx, result); err != nil {
		return httperror.NewHTTPErrorf(http.StatusServiceUnavailable, "failed to publish merge of listing %s", req.Primary.ID)
	}

	metrics.MergesTotal.Inc()
	for _, conflict := range result.Conflicts {
		metrics.MergeConflictsTotal.WithLabelValues(conflict.Field).Inc()
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"primary_id":    req.Primary.ID,
		"merged_from":   result.MergedFrom,
		"filled_fields": result.FilledFields,
	}).Info("Listings merged")

	return c.JSON(http.StatusOK, result)
}
