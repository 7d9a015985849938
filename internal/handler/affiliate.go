package handler

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"cardfund/internal/dto"
	"cardfund/internal/repository"
	"cardfund/internal/service"
)

type AffiliateHandler struct {
	affiliateService service.AffiliateService
	transactionRepo  repository.TransactionRepository
	currency         string
	validate         *validator.Validate
}

func NewAffiliateHandler(affiliateService service.AffiliateService, transactionRepo repository.TransactionRepository, currency string) *AffiliateHandler {
	return &AffiliateHandler{
		affiliateService: affiliateService,
		transactionRepo:  transactionRepo,
		currency:         currency,
		validate:         validator.New(),
	}
}

func (h *AffiliateHandler) CreateAffiliation(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreateAffiliationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	affiliation, err := h.affiliateService.CreateAffiliation(ctx, &req)
	if err != nil {
		if errors.Is(err, repository.ErrAffiliationExists) {
			return echo.NewHTTPError(http.StatusConflict, "user already has an active affiliation")
		}
		return err
	}

	return c.JSON(http.StatusOK, affiliation)
}

func (h *AffiliateHandler) GetBalance(c echo.Context) error {
	ctx := c.Request().Context()

	associationID := c.Param("id")
	balance, err := h.transactionRepo.Balance(ctx, associationID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, &dto.BalanceResponse{
		AssociationID: associationID,
		Balance:       balance.StringFixed(2),
		Currency:      h.currency,
	})
}

func (h *AffiliateHandler) GetTransactions(c echo.Context) error {
	ctx := c.Request().Context()

	associationID := c.Param("id")
	txs, err := h.transactionRepo.FindByAssociation(ctx, associationID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, txs)
}
