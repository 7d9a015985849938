package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type AdjustmentKind string

const (
	AdjustmentPercentage AdjustmentKind = "PERCENTAGE"
	AdjustmentFixed      AdjustmentKind = "FIXED"
)

// Adjustment is a tagged price modifier. Kind == "" means no adjustment
// is configured; invalid Kind/Value combinations cannot be expressed.
type Adjustment struct {
	Kind  AdjustmentKind  `gorm:"size:16"`
	Value decimal.Decimal `gorm:"type:decimal(20,2)"`
}

func (a Adjustment) IsSet() bool {
	return a.Kind == AdjustmentPercentage || a.Kind == AdjustmentFixed
}

// Promotion discounts a price while active and within its optional
// validity window. Either bound may be absent.
type Promotion struct {
	Active   bool       `gorm:"not null;default:false"`
	Discount Adjustment `gorm:"embedded"`
	StartsAt *time.Time
	EndsAt   *time.Time
}

// ValidAt reports whether the promotion applies at the given instant.
func (p Promotion) ValidAt(now time.Time) bool {
	if !p.Active || !p.Discount.IsSet() {
		return false
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && now.After(*p.EndsAt) {
		return false
	}
	return true
}
