package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cardfund/internal/client"
	"cardfund/internal/ledger"
	"cardfund/internal/model"
	"cardfund/internal/pricing"
	"cardfund/internal/repository"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return client.InitSqliteClient(filepath.Join(t.TempDir(), "test.db"))
}

// seedCatalog installs two associations with one campaign and one card
// each: card_a (8.00, assoc_a) and card_b (12.00, assoc_b).
func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()

	fixtures := []interface{}{
		&model.Association{ID: "assoc_a", Name: "Assoc A", Email: "a@assoc.test", StripeAccountID: "acct_a"},
		&model.Association{ID: "assoc_b", Name: "Assoc B", Email: "b@assoc.test", StripeAccountID: "acct_b"},
		&model.Campaign{ID: "camp_a", AssociationID: "assoc_a", Name: "Campaign A"},
		&model.Campaign{ID: "camp_b", AssociationID: "assoc_b", Name: "Campaign B"},
		&model.Product{ID: "card_a", CampaignID: "camp_a", Name: "Card A", Price: dec(t, "8.00"), Currency: "EUR", Type: "DIGITAL_CARD"},
		&model.Product{ID: "card_b", CampaignID: "camp_b", Name: "Card B", Price: dec(t, "12.00"), Currency: "EUR", Type: "PHYSICAL_CARD"},
	}
	for _, f := range fixtures {
		if err := db.Create(f).Error; err != nil {
			t.Fatalf("seed fixture %T: %v", f, err)
		}
	}
}

func seedOrder(t *testing.T, db *gorm.DB, reference, status, buyerID string) *model.Order {
	t.Helper()

	order := &model.Order{
		Reference:       reference,
		Status:          status,
		BuyerID:         buyerID,
		BuyerEmail:      "buyer@mail.test",
		Amount:          dec(t, "20.00"),
		Currency:        "EUR",
		StripeSessionID: "cs_" + reference,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	items := []*model.OrderItem{
		{OrderReference: reference, ProductID: "card_a", ProductType: "DIGITAL_CARD", Quantity: 1, UnitPrice: dec(t, "8.00"), LineTotal: dec(t, "8.00"), Currency: "EUR"},
		{OrderReference: reference, ProductID: "card_b", ProductType: "PHYSICAL_CARD", Quantity: 1, UnitPrice: dec(t, "12.00"), LineTotal: dec(t, "12.00"), Currency: "EUR"},
	}
	if err := db.Create(&items).Error; err != nil {
		t.Fatalf("seed order items: %v", err)
	}

	return order
}

// ---- collaborator fakes ----

type fakeStripe struct {
	paymentStatus string // defaults to "paid"
	sigErr        error
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, orderReference string, _ decimal.Decimal, _, _, _ string) (*model.StripeCheckoutSession, error) {
	return &model.StripeCheckoutSession{ID: "cs_" + orderReference, URL: "https://pay.test/cs_" + orderReference}, nil
}

func (f *fakeStripe) GetCheckoutSession(_ context.Context, sessionID string) (*model.StripeCheckoutSession, error) {
	status := f.paymentStatus
	if status == "" {
		status = "paid"
	}
	return &model.StripeCheckoutSession{
		ID:            sessionID,
		PaymentIntent: "pi_test",
		PaymentStatus: status,
	}, nil
}

func (f *fakeStripe) VerifyWebhookSignature(string, []byte) error {
	return f.sigErr
}

type fakeInvoicer struct {
	failCreate bool
	canceled   []string
}

func (f *fakeInvoicer) CreateInvoice(context.Context, *client.CreateInvoiceRequest) (string, error) {
	if f.failCreate {
		return "", context.DeadlineExceeded
	}
	return "inv_test", nil
}

func (f *fakeInvoicer) FinalizeInvoice(context.Context, string) error { return nil }

func (f *fakeInvoicer) CancelInvoice(_ context.Context, invoiceID string) error {
	f.canceled = append(f.canceled, invoiceID)
	return nil
}

func (f *fakeInvoicer) FetchInvoicePDF(context.Context, string) ([]byte, error) {
	return []byte("%PDF-test"), nil
}

type sentMail struct {
	to   string
	kind string
}

type fakeMailer struct {
	mu   sync.Mutex
	fail bool
	sent []sentMail
}

func (f *fakeMailer) SendTransactional(recipient, templateKind string, _ map[string]string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return context.DeadlineExceeded
	}
	f.sent = append(f.sent, sentMail{to: recipient, kind: templateKind})
	return nil
}

func (f *fakeMailer) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if m.kind == kind {
			n++
		}
	}
	return n
}

// ---- wiring ----

type testEnv struct {
	db         *gorm.DB
	stripe     *fakeStripe
	invoicer   *fakeInvoicer
	mailer     *fakeMailer
	settlement SettlementService
	affiliates AffiliateService

	orderRepo       repository.OrderRepository
	transactionRepo repository.TransactionRepository
	affiliationRepo repository.AffiliationRepository
	commissionRepo  repository.CommissionRepository
	inventoryRepo   repository.InventoryRepository
	userRepo        repository.UserRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	seedCatalog(t, db)

	env := &testEnv{
		db:              db,
		stripe:          &fakeStripe{},
		invoicer:        &fakeInvoicer{},
		mailer:          &fakeMailer{},
		orderRepo:       repository.NewOrderRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		affiliationRepo: repository.NewAffiliationRepository(db),
		commissionRepo:  repository.NewCommissionRepository(db),
		inventoryRepo:   repository.NewInventoryRepository(db),
		userRepo:        repository.NewUserRepository(db),
	}

	productRepo := repository.NewProductRepository(db)
	builder := ledger.NewBuilder(productRepo, pricing.NewFeeCalculator(60))

	env.affiliates = NewAffiliateService(2.5, env.mailer, env.affiliationRepo, env.commissionRepo, env.userRepo)
	env.settlement = NewSettlementService(
		db, env.stripe, env.invoicer, env.mailer,
		builder,
		env.affiliates,
		20,
		env.orderRepo,
		env.transactionRepo,
		repository.NewWebhookEventRepository(db),
		env.inventoryRepo,
		env.userRepo,
	)

	return env
}

func (e *testEnv) orderTransactions(t *testing.T, reference string) []*model.Transaction {
	t.Helper()
	txs, err := e.transactionRepo.FindByOrder(context.Background(), reference)
	if err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	return txs
}
