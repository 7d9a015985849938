package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cardfund/internal/model"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func percentOff(value string) model.Promotion {
	return model.Promotion{
		Active: true,
		Discount: model.Adjustment{
			Kind:  model.AdjustmentPercentage,
			Value: decimal.RequireFromString(value),
		},
	}
}

func fixedOff(value string) model.Promotion {
	return model.Promotion{
		Active: true,
		Discount: model.Adjustment{
			Kind:  model.AdjustmentFixed,
			Value: decimal.RequireFromString(value),
		},
	}
}

func TestResolvePrice(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	tests := []struct {
		name     string
		price    string
		product  model.Promotion
		campaign model.Promotion
		want     string
	}{
		{
			name:    "product percentage promotion",
			price:   "10.00",
			product: percentOff("20"),
			want:    "8.00",
		},
		{
			name:    "product fixed promotion",
			price:   "10.00",
			product: fixedOff("3.50"),
			want:    "6.50",
		},
		{
			name:     "campaign promotion when product has none",
			price:    "10.00",
			campaign: percentOff("50"),
			want:     "5.00",
		},
		{
			name:     "product promotion wins over campaign promotion",
			price:    "10.00",
			product:  percentOff("20"),
			campaign: percentOff("50"),
			want:     "8.00",
		},
		{
			name:  "no promotion returns original price",
			price: "10.00",
			want:  "10.00",
		},
		{
			name:    "inactive product promotion ignored",
			price:   "10.00",
			product: model.Promotion{Active: false, Discount: model.Adjustment{Kind: model.AdjustmentPercentage, Value: decimal.NewFromInt(20)}},
			want:    "10.00",
		},
		{
			name:  "promotion without kind is not valid",
			price: "10.00",
			product: model.Promotion{
				Active: true,
			},
			want: "10.00",
		},
		{
			name:  "promotion not started yet",
			price: "10.00",
			product: func() model.Promotion {
				p := percentOff("20")
				p.StartsAt = &future
				return p
			}(),
			want: "10.00",
		},
		{
			name:  "promotion already ended",
			price: "10.00",
			product: func() model.Promotion {
				p := percentOff("20")
				p.EndsAt = &past
				return p
			}(),
			want: "10.00",
		},
		{
			name:  "promotion inside window",
			price: "10.00",
			product: func() model.Promotion {
				p := percentOff("20")
				p.StartsAt = &past
				p.EndsAt = &future
				return p
			}(),
			want: "8.00",
		},
		{
			name:    "fixed discount larger than price clamps at zero",
			price:   "5.00",
			product: fixedOff("9.99"),
			want:    "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolvePrice(now, dec(t, tt.price), tt.product, tt.campaign)
			if !got.Equal(dec(t, tt.want)) {
				t.Errorf("ResolvePrice() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPromotionSource(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		product  model.Promotion
		campaign model.Promotion
		want     Source
	}{
		{name: "none", want: SourceNone},
		{name: "product only", product: percentOff("10"), want: SourceProduct},
		{name: "campaign only", campaign: percentOff("10"), want: SourceCampaign},
		{name: "product wins", product: fixedOff("1"), campaign: percentOff("10"), want: SourceProduct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PromotionSource(now, tt.product, tt.campaign); got != tt.want {
				t.Errorf("PromotionSource() = %q, want %q", got, tt.want)
			}
		})
	}
}
