package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"cardfund/internal/model"
)

// Source identifies which promotion produced a discounted price, for
// price-label formatting downstream.
type Source string

const (
	SourceNone     Source = ""
	SourceProduct  Source = "product"
	SourceCampaign Source = "campaign"
)

var hundred = decimal.NewFromInt(100)

// ResolvePrice returns the effective unit price after discounts. A
// valid product-level promotion wins over a valid campaign-level one;
// with neither valid the original price is returned unchanged. The
// result never goes below zero.
func ResolvePrice(now time.Time, price decimal.Decimal, product, campaign model.Promotion) decimal.Decimal {
	switch PromotionSource(now, product, campaign) {
	case SourceProduct:
		return applyDiscount(price, product.Discount)
	case SourceCampaign:
		return applyDiscount(price, campaign.Discount)
	default:
		return price
	}
}

// PromotionSource reports which promotion ResolvePrice would apply.
func PromotionSource(now time.Time, product, campaign model.Promotion) Source {
	if product.ValidAt(now) {
		return SourceProduct
	}
	if campaign.ValidAt(now) {
		return SourceCampaign
	}
	return SourceNone
}

func applyDiscount(price decimal.Decimal, d model.Adjustment) decimal.Decimal {
	var discounted decimal.Decimal
	switch d.Kind {
	case model.AdjustmentPercentage:
		discounted = price.Sub(price.Mul(d.Value).Div(hundred))
	case model.AdjustmentFixed:
		discounted = price.Sub(d.Value)
	default:
		return price
	}

	if discounted.IsNegative() {
		return decimal.Zero
	}
	return discounted
}
