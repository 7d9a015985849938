package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cardfund/internal/client"
	"cardfund/internal/dto"
	"cardfund/internal/ledger"
	"cardfund/internal/model"
	"cardfund/internal/repository"
)

type AffiliateService interface {
	// Cascade pays active referrers their share of the platform profit
	// on a settled order. Safe to call again for the same order.
	Cascade(ctx context.Context, order *model.Order, entries []ledger.Entry) ([]*model.Commission, error)
	CreateAffiliation(ctx context.Context, req *dto.CreateAffiliationRequest) (*model.Affiliation, error)
}

type affiliateServiceImpl struct {
	defaultEarningPercent decimal.Decimal
	mailer                client.Mailer
	affiliationRepo       repository.AffiliationRepository
	commissionRepo        repository.CommissionRepository
	userRepo              repository.UserRepository
	now                   func() time.Time
}

func NewAffiliateService(
	defaultEarningPercent float64,
	mailer client.Mailer,
	affiliationRepo repository.AffiliationRepository,
	commissionRepo repository.CommissionRepository,
	userRepo repository.UserRepository,
) AffiliateService {
	return &affiliateServiceImpl{
		defaultEarningPercent: decimal.NewFromFloat(defaultEarningPercent),
		mailer:                mailer,
		affiliationRepo:       affiliationRepo,
		commissionRepo:        commissionRepo,
		userRepo:              userRepo,
		now:                   time.Now,
	}
}

func (s *affiliateServiceImpl) Cascade(ctx context.Context, order *model.Order, entries []ledger.Entry) ([]*model.Commission, error) {
	// Commissions are a share of the platform's retained profit, not
	// of gross revenue.
	platformProfit := decimal.Zero
	associationIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		platformProfit = platformProfit.Add(entry.Fee)
		associationIDs = append(associationIDs, entry.AssociationID)
	}

	// Referrals can point at the buyer or at any beneficiary involved
	// in the order.
	affiliatedIDs := make([]string, 0, len(associationIDs)+1)
	if order.BuyerID != "" {
		affiliatedIDs = append(affiliatedIDs, order.BuyerID)
	}
	associationUsers, err := s.userRepo.FindByAssociations(ctx, associationIDs)
	if err != nil {
		return nil, fmt.Errorf("find association accounts: %w", err)
	}
	for _, u := range associationUsers {
		affiliatedIDs = append(affiliatedIDs, u.ID)
	}

	affiliations, err := s.affiliationRepo.FindActiveByAffiliated(ctx, affiliatedIDs, s.now())
	if err != nil {
		return nil, fmt.Errorf("find active affiliations: %w", err)
	}

	var created []*model.Commission
	for _, affiliation := range affiliations {
		amount := platformProfit.
			Mul(affiliation.EarningPercent).
			Div(decimal.NewFromInt(100)).
			Round(2)

		commission := &model.Commission{
			ID:             uuid.NewString(),
			AffiliationID:  affiliation.ID,
			OrderReference: order.Reference,
			BaseAmount:     platformProfit,
			RatePercent:    affiliation.EarningPercent,
			Amount:         amount,
			Status:         "earned",
		}

		inserted, err := s.commissionRepo.CreateOnce(ctx, commission)
		if err != nil {
			return created, fmt.Errorf("store commission for affiliation %s: %w", affiliation.ID, err)
		}
		if !inserted {
			// Cascade already ran for this order+affiliation.
			continue
		}
		created = append(created, commission)
	}

	s.notifyAffiliates(ctx, order, created)

	return created, nil
}

// notifyAffiliates fans out one mail per commission. Dispatches run
// concurrently and independently; a failure is logged and never undoes
// the commission it announces.
func (s *affiliateServiceImpl) notifyAffiliates(ctx context.Context, order *model.Order, commissions []*model.Commission) {
	var wg sync.WaitGroup
	for _, commission := range commissions {
		wg.Add(1)
		go func(commission *model.Commission) {
			defer wg.Done()

			affiliation, err := s.affiliationRepo.FindByID(ctx, commission.AffiliationID)
			if err != nil {
				log.Printf("order %s: load affiliation %s: %v", order.Reference, commission.AffiliationID, err)
				return
			}
			affiliate, err := s.userRepo.FindByID(ctx, affiliation.AffiliateUserID)
			if err != nil {
				log.Printf("order %s: load affiliate %s: %v", order.Reference, affiliation.AffiliateUserID, err)
				return
			}

			if err := s.mailer.SendTransactional(affiliate.Email, client.MailAffiliateCommission, map[string]string{
				"reference":  order.Reference,
				"commission": commission.Amount.StringFixed(2),
				"currency":   order.Currency,
			}, nil); err != nil {
				log.Printf("order %s: commission mail to %s: %v", order.Reference, affiliate.Email, err)
			}
		}(commission)
	}
	wg.Wait()
}

// CreateAffiliation registers affiliate -> affiliated. Affiliations
// toward association accounts never expire; all others lapse one year
// after creation. An affiliated user holds at most one active
// affiliation.
func (s *affiliateServiceImpl) CreateAffiliation(ctx context.Context, req *dto.CreateAffiliationRequest) (*model.Affiliation, error) {
	affiliated, err := s.userRepo.FindByID(ctx, req.AffiliatedUserID)
	if err != nil {
		return nil, fmt.Errorf("find affiliated user: %w", err)
	}

	now := s.now()
	var expiresAt *time.Time
	if affiliated.Type != model.UserTypeAssociation {
		t := now.AddDate(1, 0, 0)
		expiresAt = &t
	}

	earningPercent := s.defaultEarningPercent
	if req.EarningPercent != nil {
		earningPercent = decimal.NewFromFloat(*req.EarningPercent)
	}

	affiliation := &model.Affiliation{
		ID:               uuid.NewString(),
		AffiliateUserID:  req.AffiliateUserID,
		AffiliatedUserID: req.AffiliatedUserID,
		AffiliatedType:   affiliated.Type,
		EarningPercent:   earningPercent,
		ExpiresAt:        expiresAt,
		CreatedAt:        now,
	}

	if err := s.affiliationRepo.Create(ctx, affiliation, now); err != nil {
		return nil, fmt.Errorf("create affiliation: %w", err)
	}

	return affiliation, nil
}
