package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardfund/internal/model"
)

type AffiliationRepository interface {
	// Create inserts the affiliation only if the affiliated user has no
	// other affiliation active at now; a given user is referred by at
	// most one affiliate at a time.
	Create(ctx context.Context, affiliation *model.Affiliation, now time.Time) error
	FindActiveByAffiliated(ctx context.Context, affiliatedUserIDs []string, now time.Time) ([]*model.Affiliation, error)
	FindByID(ctx context.Context, id string) (*model.Affiliation, error)
}

// ErrAffiliationExists is returned when the affiliated user already has
// an active affiliation.
var ErrAffiliationExists = gorm.ErrDuplicatedKey

type affiliationRepoImpl struct {
	db *gorm.DB
}

func NewAffiliationRepository(db *gorm.DB) AffiliationRepository {
	return &affiliationRepoImpl{
		db: db,
	}
}

func (r *affiliationRepoImpl) Create(ctx context.Context, affiliation *model.Affiliation, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&model.Affiliation{}).
			Where("affiliated_user_id = ?", affiliation.AffiliatedUserID).
			Where("expires_at IS NULL OR expires_at > ?", now).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAffiliationExists
		}

		return tx.Create(affiliation).Error
	})
}

func (r *affiliationRepoImpl) FindActiveByAffiliated(ctx context.Context, affiliatedUserIDs []string, now time.Time) ([]*model.Affiliation, error) {
	if len(affiliatedUserIDs) == 0 {
		return nil, nil
	}

	var affiliations []*model.Affiliation
	err := r.db.WithContext(ctx).
		Where("affiliated_user_id IN ?", affiliatedUserIDs).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Find(&affiliations).Error

	if err != nil {
		return nil, err
	}

	return affiliations, nil
}

func (r *affiliationRepoImpl) FindByID(ctx context.Context, id string) (*model.Affiliation, error) {
	var affiliation model.Affiliation
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&affiliation).Error

	if err != nil {
		return nil, err
	}

	return &affiliation, nil
}

type CommissionRepository interface {
	// CreateOnce inserts the commission unless one already exists for
	// the same order+affiliation pair. Returns true when a row was
	// actually written.
	CreateOnce(ctx context.Context, commission *model.Commission) (bool, error)
	FindByOrder(ctx context.Context, reference string) ([]*model.Commission, error)
}

type commissionRepoImpl struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) CommissionRepository {
	return &commissionRepoImpl{
		db: db,
	}
}

func (r *commissionRepoImpl) CreateOnce(ctx context.Context, commission *model.Commission) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(commission)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

func (r *commissionRepoImpl) FindByOrder(ctx context.Context, reference string) ([]*model.Commission, error) {
	var commissions []*model.Commission
	err := r.db.WithContext(ctx).
		Where("order_reference = ?", reference).
		Find(&commissions).Error

	if err != nil {
		return nil, err
	}

	return commissions, nil
}
