package handlers

import (
	"errors"
	"net/http"

	"galapa/internal/common"
	"galapa/internal/models"
	"galapa/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ProviderHandlers handles provider-related HTTP requests
type ProviderHandlers struct {
	providerService services.ProviderService
	auditService    services.AuditLogsService
}

// NewProviderHandlers creates a new provider handlers instance
func NewProviderHandlers(providerService services.ProviderService, auditService services.AuditLogsService) *ProviderHandlers {
	return &ProviderHandlers{
		providerService: providerService,
		auditService:    auditService,
	}
}

// Register mounts the provider routes on g. Write routes get the extra middleware.
func (h *ProviderHandlers) Register(g *echo.Group, writeMiddleware ...echo.MiddlewareFunc) {
	g.GET("/providers", h.ListProviders)
	g.GET("/providers/:id", h.GetProvider)
	g.GET("/providers/:id/history", h.GetProviderHistory)
	g.POST("/providers", h.CreateProvider, writeMiddleware...)
	g.PUT("/providers/:id", h.UpdateProvider, writeMiddleware...)
	g.DELETE("/providers/:id", h.DeleteProvider, writeMiddleware...)
}

// ListProviders handles listing providers ordered by company name
func (h *ProviderHandlers) ListProviders(c echo.Context) error {
	var filter models.ProviderFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &filter); err != nil {
		return badRequest(c, "list providers", err, "Invalid query parameters")
	}

	providers, err := h.providerService.List(c.Request().Context(), filter)
	if err != nil {
		return h.respondError(c, "list providers", err)
	}

	return c.JSON(http.StatusOK, providers)
}

// GetProvider handles getting provider details by ID
func (h *ProviderHandlers) GetProvider(c echo.Context) error {
	providerID, err := common.ValidateID(c.Param("id"), "provider ID")
	if err != nil {
		return badRequest(c, "get provider", err, err.Error())
	}

	provider, err := h.providerService.GetByID(c.Request().Context(), providerID)
	if err != nil {
		return h.respondError(c, "get provider", err)
	}

	return c.JSON(http.StatusOK, provider)
}

// CreateProvider handles creating a new provider
func (h *ProviderHandlers) CreateProvider(c echo.Context) error {
	var req models.ProviderInput
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return badRequest(c, "create provider", err, "Invalid request format")
	}

	provider, err := h.providerService.Create(c.Request().Context(), &req)
	if err != nil {
		return h.respondError(c, "create provider", err)
	}

	return c.JSON(http.StatusCreated, provider)
}

// UpdateProvider handles updating provider details
func (h *ProviderHandlers) UpdateProvider(c echo.Context) error {
	providerID, err := common.ValidateID(c.Param("id"), "provider ID")
	if err != nil {
		return badRequest(c, "update provider", err, err.Error())
	}

	var req models.ProviderInput
	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return badRequest(c, "update provider", err, "Invalid request format")
	}

	provider, err := h.providerService.Update(c.Request().Context(), providerID, &req)
	if err != nil {
		return h.respondError(c, "update provider", err)
	}

	return c.JSON(http.StatusOK, provider)
}

// DeleteProvider handles deleting a provider
func (h *ProviderHandlers) DeleteProvider(c echo.Context) error {
	providerID, err := common.ValidateID(c.Param("id"), "provider ID")
	if err != nil {
		return badRequest(c, "delete provider", err, err.Error())
	}

	if err := h.providerService.Delete(c.Request().Context(), providerID); err != nil {
		return h.respondError(c, "delete provider", err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "Provider deleted successfully",
	})
}

// ProviderHistoryRequest represents query parameters for a provider's history
type ProviderHistoryRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

// GetProviderHistory handles listing the audit trail of a provider
func (h *ProviderHandlers) GetProviderHistory(c echo.Context) error {
	providerID, err := common.ValidateID(c.Param("id"), "provider ID")
	if err != nil {
		return badRequest(c, "get provider history", err, err.Error())
	}

	var req ProviderHistoryRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return badRequest(c, "get provider history", err, "Invalid query parameters")
	}

	history, err := h.auditService.GetProviderHistory(c.Request().Context(), providerID, req.Limit, req.Offset)
	if err != nil {
		return h.respondError(c, "get provider history", err)
	}

	return c.JSON(http.StatusOK, history)
}

// respondError maps error kinds onto status codes. Internal details are only logged.
func (h *ProviderHandlers) respondError(c echo.Context, op string, err error) error {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		requestLog(c, log.Warn()).Str("kind", "invalid_input").Interface("fields", verr.Fields).Msg(op + " rejected")
		return common.SendValidationError(c, verr.Fields)
	case errors.Is(err, common.ErrInvalidInput):
		requestLog(c, log.Warn()).Err(err).Str("kind", "invalid_input").Msg(op + " rejected")
		return common.SendClientError(c, err.Error())
	case errors.Is(err, common.ErrNotFound):
		requestLog(c, log.Warn()).Err(err).Str("kind", "not_found").Msg(op + " rejected")
		return common.SendNotFoundError(c, "Provider")
	case errors.Is(err, common.ErrConstraintViolation):
		requestLog(c, log.Error()).Err(err).Str("kind", "constraint_violation").Msg(op + " failed")
		return common.SendConflictError(c, "Provider conflicts with existing data")
	}

	requestLog(c, log.Error()).Err(err).Str("kind", "storage_unavailable").Msg(op + " failed")
	return common.SendServerError(c, "Failed to "+op)
}

// badRequest rejects a request that never reached the service.
func badRequest(c echo.Context, op string, err error, msg string) error {
	requestLog(c, log.Warn()).Err(err).Str("kind", "invalid_input").Msg(op + " rejected")
	return common.SendClientError(c, msg)
}

func requestLog(c echo.Context, event *zerolog.Event) *zerolog.Event {
	return event.
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Str("method", c.Request().Method).
		Str("path", c.Path())
}
