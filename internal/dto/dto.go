package dto

type CheckoutItem struct {
	Sku      string `json:"sku" validate:"required"`
	Quantity int32  `json:"quantity" validate:"required,gt=0"`
}

type BillingAddress struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	Zip     string `json:"zip"`
	City    string `json:"city"`
	Country string `json:"country"`
}

type CheckoutRequest struct {
	Email   string          `json:"email" validate:"required,email"`
	Items   []*CheckoutItem `json:"items" validate:"required,min=1,dive"`
	Billing BillingAddress  `json:"billing"`
}

type CheckoutResponse struct {
	Reference   string `json:"reference"`
	RedirectURL string `json:"redirect_url"`
}

type ConfirmedItem struct {
	Sku       string `json:"sku"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type ConfirmResponse struct {
	Success   bool            `json:"success"`
	Reference string          `json:"reference"`
	Items     []ConfirmedItem `json:"items"`
}

type CreateAffiliationRequest struct {
	AffiliateUserID  string   `json:"affiliate_user_id" validate:"required"`
	AffiliatedUserID string   `json:"affiliated_user_id" validate:"required"`
	EarningPercent   *float64 `json:"earning_percent" validate:"omitempty,gt=0,lte=100"`
}

type BalanceResponse struct {
	AssociationID string `json:"association_id"`
	Balance       string `json:"balance"`
	Currency      string `json:"currency"`
}
