package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"cardfund/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByReference(ctx context.Context, reference string) (*model.Order, error)
	// MarkSucceeded flips INTENDED -> SUCCEEDED. Zero rows affected
	// means the order already left INTENDED; callers treat that as an
	// idempotent no-op after re-reading the status.
	MarkSucceeded(ctx context.Context, tx *gorm.DB, reference, stripePaymentID string) (int64, error)
	// MarkRefunded flips SUCCEEDED -> REFUNDED under the same guard.
	MarkRefunded(ctx context.Context, tx *gorm.DB, reference string) (int64, error)
	SetInvoiceID(ctx context.Context, reference, invoiceID string) error
	ClaimBuyer(ctx context.Context, tx *gorm.DB, reference, buyerID string) (int64, error)
	CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error
	GetOrderItems(ctx context.Context, tx *gorm.DB, reference string) ([]*model.OrderItem, error)
	// FindUnexportedPhysical returns settled orders containing physical
	// cards that fulfillment has not picked up yet.
	FindUnexportedPhysical(ctx context.Context, tx *gorm.DB) ([]*model.Order, error)
	MarkExported(ctx context.Context, tx *gorm.DB, references []string) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{
		db: db,
	}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByReference(ctx context.Context, reference string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&order).Error

	if err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *orderRepoImpl) MarkSucceeded(ctx context.Context, tx *gorm.DB, reference, stripePaymentID string) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("reference = ? AND status = ?", reference, model.OrderIntended).
		Updates(map[string]interface{}{
			"status":            model.OrderSucceeded,
			"stripe_payment_id": stripePaymentID,
			"updated_at":        time.Now(),
		})

	return result.RowsAffected, result.Error
}

func (r *orderRepoImpl) MarkRefunded(ctx context.Context, tx *gorm.DB, reference string) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("reference = ? AND status = ?", reference, model.OrderSucceeded).
		Updates(map[string]interface{}{
			"status":     model.OrderRefunded,
			"updated_at": time.Now(),
		})

	return result.RowsAffected, result.Error
}

func (r *orderRepoImpl) SetInvoiceID(ctx context.Context, reference, invoiceID string) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("reference = ?", reference).
		Updates(map[string]interface{}{
			"invoice_id": invoiceID,
			"updated_at": time.Now(),
		}).Error
}

// ClaimBuyer attaches an anonymous order to a buyer account. The
// buyer_id guard keeps orders from being reassigned.
func (r *orderRepoImpl) ClaimBuyer(ctx context.Context, tx *gorm.DB, reference, buyerID string) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("reference = ? AND buyer_id = ?", reference, "").
		Updates(map[string]interface{}{
			"buyer_id":   buyerID,
			"updated_at": time.Now(),
		})

	return result.RowsAffected, result.Error
}

func (r *orderRepoImpl) CreateOrderItems(ctx context.Context, tx *gorm.DB, items []*model.OrderItem) error {
	return tx.WithContext(ctx).Create(&items).Error
}

func (r *orderRepoImpl) GetOrderItems(ctx context.Context, tx *gorm.DB, reference string) ([]*model.OrderItem, error) {
	var items []*model.OrderItem
	err := tx.WithContext(ctx).Where("order_reference = ?", reference).
		Find(&items).Error

	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *orderRepoImpl) FindUnexportedPhysical(ctx context.Context, tx *gorm.DB) ([]*model.Order, error) {
	var orders []*model.Order
	err := tx.WithContext(ctx).Model(&model.Order{}).
		Distinct("orders.*").
		Joins("JOIN order_items ON order_items.order_reference = orders.reference").
		Where("orders.status = ?", model.OrderSucceeded).
		Where("orders.exported = ?", false).
		Where("order_items.product_type = ?", model.ProductTypePhysical).
		Find(&orders).Error

	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepoImpl) MarkExported(ctx context.Context, tx *gorm.DB, references []string) error {
	if len(references) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Model(&model.Order{}).
		Where("reference IN ?", references).
		Updates(map[string]interface{}{
			"exported":   true,
			"updated_at": time.Now(),
		}).Error
}
