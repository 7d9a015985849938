package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"cardfund/internal/client"
	"cardfund/internal/repository"
	"cardfund/internal/service"
)

type WebhookHandler struct {
	settlementService service.SettlementService
	webhookEventRepo  repository.WebhookEventRepository
}

func NewWebhookHandler(settlementService service.SettlementService, webhookEventRepo repository.WebhookEventRepository) *WebhookHandler {
	return &WebhookHandler{
		settlementService: settlementService,
		webhookEventRepo:  webhookEventRepo,
	}
}

func (h *WebhookHandler) StripeWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	signature := c.Request().Header.Get("Stripe-Signature")

	if err := h.settlementService.HandleWebhook(ctx, signature, body); err != nil {
		if errors.Is(err, client.ErrBadSignature) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook signature")
		}
		// Non-2xx makes the processor redeliver; processing is
		// idempotent so retries are safe.
		c.Logger().Errorf("handle webhook: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "webhook processing failed")
	}

	return c.NoContent(http.StatusOK)
}

// RecentEvents lists processed processor events, newest first. Ops
// endpoint for checking what deliveries the engine has seen.
func (h *WebhookHandler) RecentEvents(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	events, err := h.webhookEventRepo.List(c.Request().Context(), limit)
	if err != nil {
		c.Logger().Errorf("list webhook events: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "listing failed")
	}

	return c.JSON(http.StatusOK, events)
}
