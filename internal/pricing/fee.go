package pricing

import (
	"github.com/shopspring/decimal"

	"cardfund/internal/model"
)

// FeeCalculator computes the platform's cut of a line total. The
// default split is injected so alternate splits are testable; it is
// not a package constant.
type FeeCalculator struct {
	platformPercent decimal.Decimal
}

func NewFeeCalculator(platformPercent float64) FeeCalculator {
	return FeeCalculator{
		platformPercent: decimal.NewFromFloat(platformPercent),
	}
}

// Fee returns the platform fee for one order line. A product-level
// commission override takes precedence over the default split.
//
// A FIXED override is charged once per line regardless of quantity;
// a PERCENTAGE override scales with the line total, which already
// includes quantity. The result is clamped to [0, lineTotal].
func (c FeeCalculator) Fee(product *model.Product, lineTotal decimal.Decimal) decimal.Decimal {
	var fee decimal.Decimal
	switch {
	case product != nil && product.Commission.Kind == model.AdjustmentPercentage:
		fee = lineTotal.Mul(product.Commission.Value).Div(hundred)
	case product != nil && product.Commission.Kind == model.AdjustmentFixed:
		fee = product.Commission.Value
	default:
		fee = lineTotal.Mul(c.platformPercent).Div(hundred)
	}

	if fee.IsNegative() {
		return decimal.Zero
	}
	if fee.GreaterThan(lineTotal) {
		return lineTotal
	}
	return fee
}
