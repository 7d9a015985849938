package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardfund/internal/model"
)

type InventoryRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, inventory *model.CardInventory) error
	GetByUser(ctx context.Context, userID string) ([]*model.CardInventory, error)
}

type inventoryRepoImpl struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepoImpl{
		db: db,
	}
}

func (r *inventoryRepoImpl) Upsert(ctx context.Context, tx *gorm.DB, inventory *model.CardInventory) error {
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("card_inventories.quantity + ?", inventory.Quantity),
			"updated_at": time.Now(),
		}),
	}).Create(&inventory).Error
}

func (r *inventoryRepoImpl) GetByUser(ctx context.Context, userID string) ([]*model.CardInventory, error) {
	var inventories []*model.CardInventory

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&inventories).Error
	if err != nil {
		return nil, err
	}

	return inventories, nil
}
