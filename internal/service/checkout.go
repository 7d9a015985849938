package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cardfund/internal/client"
	"cardfund/internal/dto"
	"cardfund/internal/model"
	"cardfund/internal/pricing"
	"cardfund/internal/repository"
)

// ErrOrderNotClaimable is returned when an order cannot be attached to
// a buyer account: not settled yet, or already owned by someone else.
var ErrOrderNotClaimable = errors.New("order cannot be claimed")

type CheckoutService interface {
	CreateCheckout(ctx context.Context, buyerID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	GetOrder(ctx context.Context, reference string) (*model.Order, []*model.OrderItem, error)
	// ClaimOrder attaches an anonymous settled order to the buyer's
	// account, card inventory included. Claiming one's own order again
	// is a no-op.
	ClaimOrder(ctx context.Context, reference, buyerID string) error
	// ExportOrders hands settled physical-card orders to fulfillment
	// exactly once, returning the batch with billing snapshots.
	ExportOrders(ctx context.Context) ([]*model.Order, error)
}

type checkoutServiceImpl struct {
	db            *gorm.DB
	stripeClient  client.StripeClient
	baseURL       string
	currency      string
	productRepo   repository.ProductRepository
	orderRepo     repository.OrderRepository
	inventoryRepo repository.InventoryRepository
}

func NewCheckoutService(
	db *gorm.DB,
	stripeClient client.StripeClient,
	baseURL string,
	currency string,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	inventoryRepo repository.InventoryRepository,
) CheckoutService {
	return &checkoutServiceImpl{
		db:            db,
		stripeClient:  stripeClient,
		baseURL:       baseURL,
		currency:      currency,
		productRepo:   productRepo,
		orderRepo:     orderRepo,
		inventoryRepo: inventoryRepo,
	}
}

// CreateCheckout prices the requested cards (promotions applied),
// opens a processor checkout session, and stores the order in
// INTENDED state. Settlement happens later, on confirmation.
func (s *checkoutServiceImpl) CreateCheckout(ctx context.Context, buyerID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	productIDs := make([]string, len(req.Items))
	itemQuantityMap := make(map[string]int32)
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item quantity must be positive")
		}
		productIDs[i] = item.Sku
		itemQuantityMap[item.Sku] = item.Quantity
	}

	products, err := s.productRepo.FindMany(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	if len(products) != len(req.Items) {
		return nil, fmt.Errorf("some products not found")
	}

	now := time.Now()
	reference := uuid.NewString()

	totalAmount := decimal.Zero
	orderItems := make([]*model.OrderItem, len(products))
	for i, product := range products {
		campaign, err := s.productRepo.CampaignByID(ctx, product.CampaignID)
		if err != nil {
			return nil, fmt.Errorf("get campaign %s: %w", product.CampaignID, err)
		}

		unitPrice := pricing.ResolvePrice(now, product.Price, product.Promotion, campaign.Promotion)
		quantity := itemQuantityMap[product.ID]
		lineTotal := unitPrice.Mul(decimal.NewFromInt32(quantity))
		totalAmount = totalAmount.Add(lineTotal)

		orderItems[i] = &model.OrderItem{
			OrderReference: reference,
			ProductID:      product.ID,
			ProductType:    product.Type,
			Quantity:       quantity,
			UnitPrice:      unitPrice,
			LineTotal:      lineTotal,
			Currency:       s.currency,
		}
	}

	session, err := s.stripeClient.CreateCheckoutSession(ctx, reference, totalAmount, s.currency,
		fmt.Sprintf("%s/api/checkout/%s/confirm", s.baseURL, reference),
		s.baseURL,
	)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, &model.Order{
			Reference:       reference,
			Status:          model.OrderIntended,
			BuyerID:         buyerID,
			BuyerEmail:      req.Email,
			Amount:          totalAmount,
			Currency:        s.currency,
			StripeSessionID: session.ID,
			BillingName:     req.Billing.Name,
			BillingStreet:   req.Billing.Street,
			BillingZip:      req.Billing.Zip,
			BillingCity:     req.Billing.City,
			BillingCountry:  req.Billing.Country,
		}); err != nil {
			return fmt.Errorf("store order in db: %w", err)
		}

		if err := s.orderRepo.CreateOrderItems(ctx, tx, orderItems); err != nil {
			return fmt.Errorf("store order items in db: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutResponse{
		Reference:   reference,
		RedirectURL: session.URL,
	}, nil
}

func (s *checkoutServiceImpl) ClaimOrder(ctx context.Context, reference, buyerID string) error {
	order, err := s.orderRepo.FindByReference(ctx, reference)
	if err != nil {
		return fmt.Errorf("find order: %w", err)
	}

	if order.BuyerID == buyerID {
		return nil
	}
	if order.BuyerID != "" || order.Status != model.OrderSucceeded {
		return fmt.Errorf("order %s: %w", reference, ErrOrderNotClaimable)
	}

	items, err := s.orderRepo.GetOrderItems(ctx, s.db, reference)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.orderRepo.ClaimBuyer(ctx, tx, reference, buyerID)
		if err != nil {
			return fmt.Errorf("claim order: %w", err)
		}
		if rows == 0 {
			// Someone else won the claim since our read.
			return fmt.Errorf("order %s: %w", reference, ErrOrderNotClaimable)
		}

		for _, item := range items {
			if err := s.inventoryRepo.Upsert(ctx, tx, &model.CardInventory{
				UserID:    buyerID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			}); err != nil {
				return fmt.Errorf("claim card inventory: %w", err)
			}
		}
		return nil
	})
}

func (s *checkoutServiceImpl) ExportOrders(ctx context.Context) ([]*model.Order, error) {
	var orders []*model.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		orders, err = s.orderRepo.FindUnexportedPhysical(ctx, tx)
		if err != nil {
			return fmt.Errorf("find orders to export: %w", err)
		}
		if len(orders) == 0 {
			return nil
		}

		references := make([]string, len(orders))
		for i, order := range orders {
			references[i] = order.Reference
		}
		if err := s.orderRepo.MarkExported(ctx, tx, references); err != nil {
			return fmt.Errorf("mark orders exported: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (s *checkoutServiceImpl) GetOrder(ctx context.Context, reference string) (*model.Order, []*model.OrderItem, error) {
	order, err := s.orderRepo.FindByReference(ctx, reference)
	if err != nil {
		return nil, nil, fmt.Errorf("find order: %w", err)
	}

	items, err := s.orderRepo.GetOrderItems(ctx, s.db, reference)
	if err != nil {
		return nil, nil, fmt.Errorf("get order items: %w", err)
	}

	return order, items, nil
}
