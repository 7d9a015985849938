package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. Transitions are monotonic:
// INTENDED -> SUCCEEDED -> REFUNDED, nothing else.
const (
	OrderIntended  = "INTENDED"
	OrderSucceeded = "SUCCEEDED"
	OrderRefunded  = "REFUNDED"
)

// Transaction statuses.
const (
	TxCompleted = "completed"
	TxRefunded  = "refunded"
	TxPayout    = "payout"
)

// User types. Affiliations toward an association never expire.
const (
	UserTypeBuyer       = "USER"
	UserTypeAssociation = "ASSOCIATION"
)

// Card product types. Physical cards go through the fulfillment
// export; digital cards are claimed into the buyer's inventory.
const (
	ProductTypePhysical = "PHYSICAL_CARD"
	ProductTypeDigital  = "DIGITAL_CARD"
)

type Association struct {
	ID              string `gorm:"primaryKey;size:64;not null"`
	Name            string `gorm:"size:128;not null"`
	Email           string `gorm:"size:128"`
	StripeAccountID string `gorm:"size:64;index"` // payout destination
	CreatedAt       time.Time
}

type Campaign struct {
	ID            string    `gorm:"primaryKey;size:64;not null"`
	AssociationID string    `gorm:"size:64;index;not null"`
	Name          string    `gorm:"size:128;not null"`
	Promotion     Promotion `gorm:"embedded;embeddedPrefix:promo_"`
	CreatedAt     time.Time
}

type Product struct {
	ID         string          `gorm:"primaryKey;size:64;not null"` // card sku
	CampaignID string          `gorm:"size:64;index;not null"`
	Name       string          `gorm:"size:128;not null"`
	Price      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Currency   string          `gorm:"size:8;not null"`
	Type       string          `gorm:"size:32;index;not null"` // PHYSICAL_CARD, DIGITAL_CARD

	// Optional platform commission override; empty Kind means the
	// platform default split applies.
	Commission Adjustment `gorm:"embedded;embeddedPrefix:commission_"`
	Promotion  Promotion  `gorm:"embedded;embeddedPrefix:promo_"`

	CreatedAt time.Time
}

type Order struct {
	Reference string `gorm:"primaryKey;size:64;not null"` // opaque token
	Status    string `gorm:"size:32;index;not null"`

	// Empty until the order is claimed; orders may stay anonymous.
	BuyerID    string `gorm:"size:64;index"`
	BuyerEmail string `gorm:"size:128;not null"`

	Amount   decimal.Decimal `gorm:"type:decimal(20,2);not null"` // sum of line totals
	Currency string          `gorm:"size:8;not null"`

	StripeSessionID string `gorm:"size:128;index"`
	StripePaymentID string `gorm:"size:128;index"`
	InvoiceID       string `gorm:"size:64"`

	// Billing address snapshot taken at checkout.
	BillingName    string `gorm:"size:128"`
	BillingStreet  string `gorm:"size:256"`
	BillingZip     string `gorm:"size:16"`
	BillingCity    string `gorm:"size:128"`
	BillingCountry string `gorm:"size:64"`

	Exported bool `gorm:"not null;default:false"` // batch fulfillment flag

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID uint `gorm:"primaryKey"`
	// FK -> orders.reference
	OrderReference string `gorm:"size:64;index;not null"`
	// FK -> products.id
	ProductID   string          `gorm:"size:64;index;not null"`
	ProductType string          `gorm:"size:32;not null"`
	Quantity    int32           `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,2);not null"` // after discount
	LineTotal   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Currency    string          `gorm:"size:8;not null"`

	CreatedAt time.Time
}

// Transaction is an immutable ledger entry. Amount = Fees + NetAmount
// holds for every row, signs included; corrections are new offsetting
// rows, never updates.
type Transaction struct {
	ID            string `gorm:"primaryKey;size:64;not null"`
	AssociationID string `gorm:"size:64;index;not null;uniqueIndex:idx_tx_settlement"`

	// Set for settlement/reversal entries, nil for payouts. NULL keeps
	// payout rows out of the settlement uniqueness index.
	OrderReference *string `gorm:"size:64;index;uniqueIndex:idx_tx_settlement"`
	PayoutID       *string `gorm:"size:128;uniqueIndex"`

	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null"` // gross
	Fees      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	NetAmount decimal.Decimal `gorm:"type:decimal(20,2);not null"`

	IsPayout bool   `gorm:"not null;default:false"`
	Status   string `gorm:"size:32;index;not null;uniqueIndex:idx_tx_settlement"`

	CreatedAt time.Time
}

// Affiliation is a directed referral relationship. A nil ExpiresAt
// means the affiliation never expires (association affiliates).
type Affiliation struct {
	ID               string          `gorm:"primaryKey;size:64;not null"`
	AffiliateUserID  string          `gorm:"size:64;index;not null"`
	AffiliatedUserID string          `gorm:"size:64;index;not null"`
	AffiliatedType   string          `gorm:"size:16;not null"`
	EarningPercent   decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	ExpiresAt        *time.Time      `gorm:"index"`
	CreatedAt        time.Time
}

// ActiveAt reports whether the affiliation still earns at the given
// instant.
func (a Affiliation) ActiveAt(now time.Time) bool {
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// Commission records an affiliate's cut of the platform profit on one
// order. The unique index makes cascading idempotent per
// order+affiliation.
type Commission struct {
	ID             string          `gorm:"primaryKey;size:64;not null"`
	AffiliationID  string          `gorm:"size:64;not null;uniqueIndex:idx_commission_once"`
	OrderReference string          `gorm:"size:64;not null;uniqueIndex:idx_commission_once"`
	BaseAmount     decimal.Decimal `gorm:"type:decimal(20,2);not null"` // platform profit
	RatePercent    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Status         string          `gorm:"size:32;index;not null"` // earned, paid
	CreatedAt      time.Time
}

type User struct {
	ID            string `gorm:"primaryKey;size:64;not null"`
	Email         string `gorm:"size:128;uniqueIndex;not null"`
	Type          string `gorm:"size:16;not null"`
	AssociationID string `gorm:"size:64;index"` // set when Type == ASSOCIATION
	CreatedAt     time.Time
}

// CardInventory tracks card units claimed by a buyer.
type CardInventory struct {
	UserID    string `gorm:"primaryKey;size:64"`
	ProductID string `gorm:"primaryKey;size:64;index;not null"`
	Quantity  int32  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WebhookEvent records processor event ids that were already handled,
// so redelivered webhooks become no-ops.
type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;uniqueIndex;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
