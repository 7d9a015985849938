package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"cardfund/internal/dto"
	"cardfund/internal/middleware"
	"cardfund/internal/service"
)

type CheckoutHandler struct {
	checkoutService   service.CheckoutService
	settlementService service.SettlementService
	validate          *validator.Validate
}

func NewCheckoutHandler(checkoutService service.CheckoutService, settlementService service.SettlementService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService:   checkoutService,
		settlementService: settlementService,
		validate:          validator.New(),
	}
}

func (h *CheckoutHandler) CreateCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	buyerID := middleware.BuyerID(c)

	result, err := h.checkoutService.CreateCheckout(ctx, buyerID, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) ConfirmPayment(c echo.Context) error {
	ctx := c.Request().Context()

	reference := c.Param("reference")
	if reference == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing order reference")
	}

	result, err := h.settlementService.ConfirmPayment(ctx, reference)
	if err != nil {
		// Internals stay in the logs; buyers get a generic failure.
		if errors.Is(err, service.ErrOrderNotSettleable) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "payment failed")
		}
		c.Logger().Errorf("confirm payment %s: %v", reference, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "payment failed")
	}

	return c.JSON(http.StatusOK, result)
}

func (h *CheckoutHandler) ClaimOrder(c echo.Context) error {
	ctx := c.Request().Context()

	buyerID := middleware.BuyerID(c)
	if buyerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	reference := c.Param("reference")
	if err := h.checkoutService.ClaimOrder(ctx, reference, buyerID); err != nil {
		if errors.Is(err, service.ErrOrderNotClaimable) {
			return echo.NewHTTPError(http.StatusConflict, "order cannot be claimed")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		c.Logger().Errorf("claim order %s: %v", reference, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "claim failed")
	}

	return c.NoContent(http.StatusNoContent)
}

// ExportOrders drains the fulfillment queue for physical cards. Each
// settled order appears in exactly one export batch.
func (h *CheckoutHandler) ExportOrders(c echo.Context) error {
	orders, err := h.checkoutService.ExportOrders(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("export orders: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "export failed")
	}

	return c.JSON(http.StatusOK, orders)
}

func (h *CheckoutHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	reference := c.Param("reference")
	order, items, err := h.checkoutService.GetOrder(ctx, reference)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"reference": order.Reference,
		"status":    order.Status,
		"amount":    order.Amount.StringFixed(2),
		"currency":  order.Currency,
		"items":     items,
	})
}
