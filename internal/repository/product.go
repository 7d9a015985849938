package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardfund/internal/model"
)

// dec is a seed helper; the strings are literals and always parse.
func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

type ProductRepository interface {
	Seed(ctx context.Context) error
	FindByID(ctx context.Context, productID string) (*model.Product, error)
	FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error)
	CampaignByID(ctx context.Context, campaignID string) (*model.Campaign, error)
	// ResolveBeneficiary walks product -> campaign -> association and
	// returns the owning association id.
	ResolveBeneficiary(ctx context.Context, productID string) (string, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Seed(ctx context.Context) error {
	associations := []model.Association{
		{ID: "assoc_forest", Name: "Forest Restoration Fund", Email: "contact@forest.example", StripeAccountID: "acct_forest"},
		{ID: "assoc_meals", Name: "Community Meals", Email: "contact@meals.example", StripeAccountID: "acct_meals"},
	}
	campaigns := []model.Campaign{
		{ID: "camp_trees", AssociationID: "assoc_forest", Name: "Plant 10k Trees"},
		{ID: "camp_winter", AssociationID: "assoc_meals", Name: "Winter Meals"},
	}
	products := []model.Product{
		{ID: "card_tree_10", CampaignID: "camp_trees", Name: "Tree Card 10", Price: dec("10.00"), Currency: "EUR", Type: model.ProductTypeDigital},
		{ID: "card_tree_25", CampaignID: "camp_trees", Name: "Tree Card 25", Price: dec("25.00"), Currency: "EUR", Type: model.ProductTypePhysical},
		{ID: "card_meal_12", CampaignID: "camp_winter", Name: "Meal Card 12", Price: dec("12.00"), Currency: "EUR", Type: model.ProductTypeDigital},
	}

	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&associations).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&campaigns).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}

func (r *productRepoImpl) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error

	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) FindMany(ctx context.Context, productIDs []string) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", productIDs).
		Find(&products).
		Error

	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *productRepoImpl) CampaignByID(ctx context.Context, campaignID string) (*model.Campaign, error) {
	var campaign model.Campaign
	err := r.db.WithContext(ctx).
		Where("id = ?", campaignID).
		First(&campaign).Error

	if err != nil {
		return nil, err
	}

	return &campaign, nil
}

func (r *productRepoImpl) ResolveBeneficiary(ctx context.Context, productID string) (string, error) {
	var associationID string
	err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Select("campaigns.association_id").
		Joins("JOIN campaigns ON campaigns.id = products.campaign_id").
		Where("products.id = ?", productID).
		Scan(&associationID).Error

	if err != nil {
		return "", err
	}
	if associationID == "" {
		return "", fmt.Errorf("no association found for product %s", productID)
	}

	return associationID, nil
}
