package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardfund/internal/model"
)

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// FindByAssociations maps association ids to the user accounts that
	// represent them, for affiliate lookups on the beneficiary side.
	FindByAssociations(ctx context.Context, associationIDs []string) ([]*model.User, error)
	AssociationByID(ctx context.Context, id string) (*model.Association, error)
	AssociationByStripeAccount(ctx context.Context, accountID string) (*model.Association, error)
}

type userRepoImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepoImpl{
		db: db,
	}
}

func (r *userRepoImpl) Upsert(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(user).Error
}

func (r *userRepoImpl) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&user).Error

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) FindByAssociations(ctx context.Context, associationIDs []string) ([]*model.User, error) {
	if len(associationIDs) == 0 {
		return nil, nil
	}

	var users []*model.User
	err := r.db.WithContext(ctx).
		Where("type = ?", model.UserTypeAssociation).
		Where("association_id IN ?", associationIDs).
		Find(&users).Error

	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *userRepoImpl) AssociationByID(ctx context.Context, id string) (*model.Association, error) {
	var association model.Association
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&association).Error

	if err != nil {
		return nil, err
	}

	return &association, nil
}

func (r *userRepoImpl) AssociationByStripeAccount(ctx context.Context, accountID string) (*model.Association, error) {
	var association model.Association
	err := r.db.WithContext(ctx).
		Where("stripe_account_id = ?", accountID).
		First(&association).Error

	if err != nil {
		return nil, err
	}

	return &association, nil
}
