package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"cardfund/internal/model"
	"cardfund/internal/pricing"
)

// ErrNoBeneficiaries means not a single line item of a non-empty order
// resolved to a beneficiary. Such an order cannot be settled.
var ErrNoBeneficiaries = errors.New("no line item resolved to a beneficiary")

// Entry is the aggregate owed to one beneficiary for one order.
// Gross = Fee + Net, signs included.
type Entry struct {
	AssociationID string
	Gross         decimal.Decimal
	Fee           decimal.Decimal
	Net           decimal.Decimal
}

// CatalogResolver looks up the product and its owning association for
// a line item. Kept as an interface so settlement math is testable
// without the persistence layer.
type CatalogResolver interface {
	ResolveBeneficiary(ctx context.Context, productID string) (string, error)
	FindByID(ctx context.Context, productID string) (*model.Product, error)
}

type Builder struct {
	catalog CatalogResolver
	fees    pricing.FeeCalculator
}

func NewBuilder(catalog CatalogResolver, fees pricing.FeeCalculator) *Builder {
	return &Builder{
		catalog: catalog,
		fees:    fees,
	}
}

// Build groups an order's line items by beneficiary and computes one
// {gross, fee, net} aggregate per beneficiary, in first-seen item
// order. Items whose beneficiary cannot be resolved are logged and
// skipped; if every item fails, ErrNoBeneficiaries is returned.
func (b *Builder) Build(ctx context.Context, order *model.Order, items []*model.OrderItem) ([]Entry, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("order %s has no line items", order.Reference)
	}

	byAssociation := make(map[string]*Entry)
	var sequence []string

	for _, item := range items {
		associationID, err := b.catalog.ResolveBeneficiary(ctx, item.ProductID)
		if err != nil {
			log.Printf("order %s: skipping item product=%s, beneficiary unresolved: %v",
				order.Reference, item.ProductID, err)
			continue
		}

		product, err := b.catalog.FindByID(ctx, item.ProductID)
		if err != nil {
			log.Printf("order %s: skipping item product=%s, product lookup failed: %v",
				order.Reference, item.ProductID, err)
			continue
		}

		fee := b.fees.Fee(product, item.LineTotal)

		entry, ok := byAssociation[associationID]
		if !ok {
			entry = &Entry{AssociationID: associationID}
			byAssociation[associationID] = entry
			sequence = append(sequence, associationID)
		}
		entry.Gross = entry.Gross.Add(item.LineTotal)
		entry.Fee = entry.Fee.Add(fee)
	}

	if len(sequence) == 0 {
		return nil, fmt.Errorf("order %s: %w", order.Reference, ErrNoBeneficiaries)
	}

	entries := make([]Entry, 0, len(sequence))
	total := decimal.Zero
	for _, id := range sequence {
		e := byAssociation[id]
		e.Net = e.Gross.Sub(e.Fee)
		entries = append(entries, *e)
		total = total.Add(e.Gross)
	}

	// Unresolved items shrink the settled total; surface the gap so it
	// can be reconciled instead of disappearing.
	if !total.Equal(order.Amount) {
		log.Printf("order %s: settled gross %s differs from order total %s (unresolved items)",
			order.Reference, total, order.Amount)
	}

	return entries, nil
}

// Reverse re-runs Build on the original line items and negates every
// aggregate. For each beneficiary, forward net plus reversal net is
// exactly zero.
func (b *Builder) Reverse(ctx context.Context, order *model.Order, items []*model.OrderItem) ([]Entry, error) {
	entries, err := b.Build(ctx, order, items)
	if err != nil {
		return nil, err
	}

	for i := range entries {
		entries[i].Gross = entries[i].Gross.Neg()
		entries[i].Fee = entries[i].Fee.Neg()
		entries[i].Net = entries[i].Net.Neg()
	}
	return entries, nil
}
