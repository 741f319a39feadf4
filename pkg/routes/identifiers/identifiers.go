package identifiers

import (
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/registry"
	"github.com/Ramsey-B/thistle/pkg/utils"
)

// ValidateRequest carries the identifier to check
type ValidateRequest struct {
	Identifier string `json:"identifier" validate:"required"`
}

// Handler serves identifier validation routes
type Handler struct {
	validator *registry.Validator
	logger    ectologger.Logger
}

// NewHandler creates a new identifiers handler
func NewHandler(validator *registry.Validator, logger ectologger.Logger) *Handler {
	return &Handler{
		validator: validator,
		logger:    logger,
	}
}

// Register registers identifier routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/validate", h.Validate)
}

// Validate checks an identifier. Validation failures are a 200 with is_valid=false.
func (h *Handler) Validate(c echo.Context) error {
	ctx := c.Request().Context()

	req, err := utils.BindRequest[ValidateRequest](c)
	if err != nil {
		return err
	}

	result := h.validator.Validate(ctx, req.Identifier)
	metrics.ValidationsTotal.WithLabelValues(resultLabel(result)).Inc()

	return c.JSON(http.StatusOK, result)
}

func resultLabel(result models.RegistryValidation) string {
	if result.IsValid {
		return "valid"
	}
	return string(result.ErrorKind)
}
