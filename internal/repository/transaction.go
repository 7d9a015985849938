package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardfund/internal/model"
)

type TransactionRepository interface {
	// CreateSettlementSet writes one settlement (or reversal) row per
	// beneficiary as a unit. The unique index on
	// (order_reference, association_id, status) makes retries safe:
	// rows written by an earlier attempt are skipped, missing ones are
	// filled in.
	CreateSettlementSet(ctx context.Context, tx *gorm.DB, txs []*model.Transaction) error
	CreatePayout(ctx context.Context, tx *gorm.DB, payout *model.Transaction) error
	FindByOrder(ctx context.Context, reference string) ([]*model.Transaction, error)
	FindByAssociation(ctx context.Context, associationID string) ([]*model.Transaction, error)
	// Balance is the running net position of a beneficiary: settlement
	// nets in, reversals and payouts out.
	Balance(ctx context.Context, associationID string) (decimal.Decimal, error)
}

type transactionRepoImpl struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepoImpl{
		db: db,
	}
}

func (r *transactionRepoImpl) CreateSettlementSet(ctx context.Context, tx *gorm.DB, txs []*model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&txs).Error
}

func (r *transactionRepoImpl) CreatePayout(ctx context.Context, tx *gorm.DB, payout *model.Transaction) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(payout).Error
}

func (r *transactionRepoImpl) FindByOrder(ctx context.Context, reference string) ([]*model.Transaction, error) {
	var txs []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("order_reference = ?", reference).
		Order("created_at ASC").
		Find(&txs).Error

	if err != nil {
		return nil, err
	}

	return txs, nil
}

func (r *transactionRepoImpl) FindByAssociation(ctx context.Context, associationID string) ([]*model.Transaction, error) {
	var txs []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("association_id = ?", associationID).
		Order("created_at ASC").
		Find(&txs).Error

	if err != nil {
		return nil, err
	}

	return txs, nil
}

func (r *transactionRepoImpl) Balance(ctx context.Context, associationID string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("SUM(net_amount)").
		Where("association_id = ?", associationID).
		Scan(&sum).Error

	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}

	return sum.Decimal, nil
}
