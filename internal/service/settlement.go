package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cardfund/internal/client"
	"cardfund/internal/dto"
	"cardfund/internal/ledger"
	"cardfund/internal/model"
	"cardfund/internal/repository"
)

// ErrOrderNotSettleable covers confirmation attempts that can never
// succeed: unknown reference, unpaid session, refunded order.
var ErrOrderNotSettleable = errors.New("order cannot be settled")

// errAlreadyTransitioned signals that a concurrent invocation won the
// status guard. Callers treat it as a successful no-op.
var errAlreadyTransitioned = errors.New("order already transitioned")

type SettlementService interface {
	ConfirmPayment(ctx context.Context, reference string) (*dto.ConfirmResponse, error)
	HandleWebhook(ctx context.Context, signature string, body []byte) error
}

type settlementServiceImpl struct {
	db            *gorm.DB
	stripeClient  client.StripeClient
	invoiceClient client.InvoiceClient
	mailer        client.Mailer
	builder       *ledger.Builder
	affiliates    AffiliateService
	vatPercent    float64

	orderRepo        repository.OrderRepository
	transactionRepo  repository.TransactionRepository
	webhookEventRepo repository.WebhookEventRepository
	inventoryRepo    repository.InventoryRepository
	userRepo         repository.UserRepository
}

func NewSettlementService(
	db *gorm.DB,
	stripeClient client.StripeClient,
	invoiceClient client.InvoiceClient,
	mailer client.Mailer,
	builder *ledger.Builder,
	affiliates AffiliateService,
	vatPercent float64,
	orderRepo repository.OrderRepository,
	transactionRepo repository.TransactionRepository,
	webhookEventRepo repository.WebhookEventRepository,
	inventoryRepo repository.InventoryRepository,
	userRepo repository.UserRepository,
) SettlementService {
	return &settlementServiceImpl{
		db:               db,
		stripeClient:     stripeClient,
		invoiceClient:    invoiceClient,
		mailer:           mailer,
		builder:          builder,
		affiliates:       affiliates,
		vatPercent:       vatPercent,
		orderRepo:        orderRepo,
		transactionRepo:  transactionRepo,
		webhookEventRepo: webhookEventRepo,
		inventoryRepo:    inventoryRepo,
		userRepo:         userRepo,
	}
}

// ConfirmPayment drives INTENDED -> SUCCEEDED. Ledger writes happen in
// one DB transaction behind a status guard; invoicing, mail, and the
// affiliate cascade run after commit and never roll it back.
func (s *settlementServiceImpl) ConfirmPayment(ctx context.Context, reference string) (*dto.ConfirmResponse, error) {
	order, err := s.orderRepo.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", reference, ErrOrderNotSettleable)
		}
		return nil, fmt.Errorf("find order: %w", err)
	}

	items, err := s.orderRepo.GetOrderItems(ctx, s.db, reference)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}

	switch order.Status {
	case model.OrderSucceeded:
		// Duplicate confirmation is a success, not an error.
		return confirmResponse(order, items), nil
	case model.OrderRefunded:
		return nil, fmt.Errorf("order %s is refunded: %w", reference, ErrOrderNotSettleable)
	}

	session, err := s.stripeClient.GetCheckoutSession(ctx, order.StripeSessionID)
	if err != nil {
		return nil, fmt.Errorf("verify checkout session: %w", err)
	}
	if session.PaymentStatus != "paid" {
		return nil, fmt.Errorf("order %s payment not confirmed: %w", reference, ErrOrderNotSettleable)
	}

	entries, err := s.builder.Build(ctx, order, items)
	if err != nil {
		return nil, fmt.Errorf("build settlement ledger: %w", err)
	}

	invoiceID := s.createInvoice(ctx, order, items)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.orderRepo.MarkSucceeded(ctx, tx, reference, session.PaymentIntent)
		if err != nil {
			return fmt.Errorf("mark order succeeded: %w", err)
		}
		if rows == 0 {
			return errAlreadyTransitioned
		}

		if err := s.transactionRepo.CreateSettlementSet(ctx, tx, settlementSet(order, entries, model.TxCompleted)); err != nil {
			return fmt.Errorf("write settlement transactions: %w", err)
		}

		// Authenticated buyers get their card units claimed in the
		// same unit of work.
		if order.BuyerID != "" {
			for _, item := range items {
				if err := s.inventoryRepo.Upsert(ctx, tx, &model.CardInventory{
					UserID:    order.BuyerID,
					ProductID: item.ProductID,
					Quantity:  item.Quantity,
				}); err != nil {
					return fmt.Errorf("claim card inventory: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errAlreadyTransitioned) {
			return confirmResponse(order, items), nil
		}
		return nil, err
	}

	if invoiceID != "" {
		if err := s.orderRepo.SetInvoiceID(ctx, reference, invoiceID); err != nil {
			log.Printf("order %s: record invoice id: %v", reference, err)
		}
		order.InvoiceID = invoiceID
	}

	if _, err := s.affiliates.Cascade(ctx, order, entries); err != nil {
		log.Printf("order %s: affiliate cascade: %v", reference, err)
	}

	s.sendSettlementMails(ctx, order, entries)

	return confirmResponse(order, items), nil
}

// HandleWebhook reacts to the processor's asynchronous events. Delivery
// is at-least-once; the processed-event table plus the status guards
// keep the effect exactly-once.
func (s *settlementServiceImpl) HandleWebhook(ctx context.Context, signature string, body []byte) error {
	if err := s.stripeClient.VerifyWebhookSignature(signature, body); err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}

	var event model.StripeWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}

	processed, err := s.webhookEventRepo.Exists(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if processed {
		log.Printf("webhook event %s already processed, skipping", event.ID)
		return nil
	}

	switch event.Type {
	case "charge.refunded":
		return s.handleRefund(ctx, &event)
	case "payout.paid":
		return s.handlePayout(ctx, &event)
	default:
		// Unrecognized events are acknowledged without effect.
		log.Printf("ignoring webhook event %s of type %s", event.ID, event.Type)
		return nil
	}
}

// handleRefund drives SUCCEEDED -> REFUNDED and writes the reversal
// set: the exact negation of the original settlement.
func (s *settlementServiceImpl) handleRefund(ctx context.Context, event *model.StripeWebhookEvent) error {
	reference := event.Data.Object.Metadata.OrderReference
	if reference == "" {
		return fmt.Errorf("webhook event %s: no order reference in refund payload", event.ID)
	}

	order, err := s.orderRepo.FindByReference(ctx, reference)
	if err != nil {
		return fmt.Errorf("find order %s: %w", reference, err)
	}

	if order.Status == model.OrderIntended {
		return fmt.Errorf("order %s: refund received before settlement", reference)
	}

	if order.Status == model.OrderRefunded {
		// Already reversed; remember the event id so the next retry
		// short-circuits earlier.
		if err := s.webhookEventRepo.MarkProcessed(ctx, s.db, event.ID, event.Type); err != nil {
			return fmt.Errorf("record webhook event: %w", err)
		}
		return nil
	}

	items, err := s.orderRepo.GetOrderItems(ctx, s.db, reference)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}

	entries, err := s.builder.Reverse(ctx, order, items)
	if err != nil {
		return fmt.Errorf("build reversal ledger: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.orderRepo.MarkRefunded(ctx, tx, reference)
		if err != nil {
			return fmt.Errorf("mark order refunded: %w", err)
		}
		if rows == 0 {
			return errAlreadyTransitioned
		}

		if err := s.transactionRepo.CreateSettlementSet(ctx, tx, settlementSet(order, entries, model.TxRefunded)); err != nil {
			return fmt.Errorf("write reversal transactions: %w", err)
		}

		return s.webhookEventRepo.MarkProcessed(ctx, tx, event.ID, event.Type)
	})
	if err != nil {
		if errors.Is(err, errAlreadyTransitioned) {
			return nil
		}
		return err
	}

	if order.InvoiceID != "" {
		if err := s.invoiceClient.CancelInvoice(ctx, order.InvoiceID); err != nil {
			log.Printf("order %s: cancel invoice %s: %v", reference, order.InvoiceID, err)
		}
	}

	return nil
}

// handlePayout books a standalone isPayout transaction debiting the
// beneficiary whose connected account received the transfer.
func (s *settlementServiceImpl) handlePayout(ctx context.Context, event *model.StripeWebhookEvent) error {
	payout := event.Data.Object
	association, err := s.userRepo.AssociationByStripeAccount(ctx, payout.Destination)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("webhook event %s: payout destination %s matches no association", event.ID, payout.Destination)
			return nil
		}
		return fmt.Errorf("resolve payout destination: %w", err)
	}

	amount := decimal.NewFromInt(payout.Amount).Div(decimal.NewFromInt(100))
	payoutID := payout.ID

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transactionRepo.CreatePayout(ctx, tx, &model.Transaction{
			ID:            uuid.NewString(),
			AssociationID: association.ID,
			PayoutID:      &payoutID,
			Amount:        amount.Neg(),
			Fees:          decimal.Zero,
			NetAmount:     amount.Neg(),
			IsPayout:      true,
			Status:        model.TxPayout,
		}); err != nil {
			return fmt.Errorf("write payout transaction: %w", err)
		}

		return s.webhookEventRepo.MarkProcessed(ctx, tx, event.ID, event.Type)
	})
}

// createInvoice is best-effort: a failing invoicing collaborator never
// blocks settlement. Returns the invoice id, or "" on failure.
func (s *settlementServiceImpl) createInvoice(ctx context.Context, order *model.Order, items []*model.OrderItem) string {
	lines := make([]client.InvoiceLine, len(items))
	for i, item := range items {
		lines[i] = client.InvoiceLine{
			Label:      item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			VATPercent: s.vatPercent,
		}
	}

	invoiceID, err := s.invoiceClient.CreateInvoice(ctx, &client.CreateInvoiceRequest{
		CustomerName:  order.BillingName,
		CustomerEmail: order.BuyerEmail,
		Street:        order.BillingStreet,
		Zip:           order.BillingZip,
		City:          order.BillingCity,
		Country:       order.BillingCountry,
		Currency:      order.Currency,
		Lines:         lines,
	})
	if err != nil {
		log.Printf("order %s: create invoice: %v", order.Reference, err)
		return ""
	}

	if err := s.invoiceClient.FinalizeInvoice(ctx, invoiceID); err != nil {
		log.Printf("order %s: finalize invoice %s: %v", order.Reference, invoiceID, err)
	}

	return invoiceID
}

func (s *settlementServiceImpl) sendSettlementMails(ctx context.Context, order *model.Order, entries []ledger.Entry) {
	var pdf []byte
	if order.InvoiceID != "" {
		var err error
		if pdf, err = s.invoiceClient.FetchInvoicePDF(ctx, order.InvoiceID); err != nil {
			log.Printf("order %s: fetch invoice pdf: %v", order.Reference, err)
		}
	}

	if err := s.mailer.SendTransactional(order.BuyerEmail, client.MailOrderConfirmation, map[string]string{
		"reference": order.Reference,
		"amount":    order.Amount.StringFixed(2),
		"currency":  order.Currency,
	}, pdf); err != nil {
		log.Printf("order %s: buyer confirmation mail: %v", order.Reference, err)
	}

	if order.BuyerID == "" {
		if err := s.mailer.SendTransactional(order.BuyerEmail, client.MailAccountPrompt, map[string]string{
			"reference": order.Reference,
		}, nil); err != nil {
			log.Printf("order %s: account prompt mail: %v", order.Reference, err)
		}
	}

	for _, entry := range entries {
		association, err := s.userRepo.AssociationByID(ctx, entry.AssociationID)
		if err != nil || association.Email == "" {
			log.Printf("order %s: no notification address for association %s", order.Reference, entry.AssociationID)
			continue
		}
		if err := s.mailer.SendTransactional(association.Email, client.MailBeneficiarySale, map[string]string{
			"reference": order.Reference,
			"net":       entry.Net.StringFixed(2),
			"currency":  order.Currency,
		}, nil); err != nil {
			log.Printf("order %s: beneficiary mail to %s: %v", order.Reference, entry.AssociationID, err)
		}
	}
}

// settlementSet turns ledger entries into one immutable transaction
// row per beneficiary, all sharing the order reference and direction.
func settlementSet(order *model.Order, entries []ledger.Entry, status string) []*model.Transaction {
	reference := order.Reference
	txs := make([]*model.Transaction, len(entries))
	for i, entry := range entries {
		txs[i] = &model.Transaction{
			ID:             uuid.NewString(),
			AssociationID:  entry.AssociationID,
			OrderReference: &reference,
			Amount:         entry.Gross,
			Fees:           entry.Fee,
			NetAmount:      entry.Net,
			Status:         status,
		}
	}
	return txs
}

func confirmResponse(order *model.Order, items []*model.OrderItem) *dto.ConfirmResponse {
	confirmed := make([]dto.ConfirmedItem, len(items))
	for i, item := range items {
		confirmed[i] = dto.ConfirmedItem{
			Sku:       item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.LineTotal.StringFixed(2),
		}
	}

	return &dto.ConfirmResponse{
		Success:   true,
		Reference: order.Reference,
		Items:     confirmed,
	}
}
