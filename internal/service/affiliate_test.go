package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cardfund/internal/client"
	"cardfund/internal/dto"
	"cardfund/internal/ledger"
	"cardfund/internal/model"
	"cardfund/internal/repository"
)

func seedUser(t *testing.T, env *testEnv, id, userType, associationID string) *model.User {
	t.Helper()
	user := &model.User{
		ID:            id,
		Email:         id + "@mail.test",
		Type:          userType,
		AssociationID: associationID,
	}
	if err := env.userRepo.Upsert(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return user
}

func seedAffiliation(t *testing.T, env *testEnv, affiliate, affiliated, affiliatedType, percent string, expiresAt *time.Time) *model.Affiliation {
	t.Helper()
	affiliation := &model.Affiliation{
		ID:               "aff-" + affiliate + "-" + affiliated,
		AffiliateUserID:  affiliate,
		AffiliatedUserID: affiliated,
		AffiliatedType:   affiliatedType,
		EarningPercent:   dec(t, percent),
		ExpiresAt:        expiresAt,
		CreatedAt:        time.Now().Add(-time.Hour),
	}
	if err := env.db.Create(affiliation).Error; err != nil {
		t.Fatalf("seed affiliation: %v", err)
	}
	return affiliation
}

// Settlement of the standard two-card order retains 4.80 + 7.20 = 12.00
// for the platform.
func settledEntries(t *testing.T) []ledger.Entry {
	t.Helper()
	return []ledger.Entry{
		{AssociationID: "assoc_a", Gross: dec(t, "8.00"), Fee: dec(t, "4.80"), Net: dec(t, "3.20")},
		{AssociationID: "assoc_b", Gross: dec(t, "12.00"), Fee: dec(t, "7.20"), Net: dec(t, "4.80")},
	}
}

func TestCascadePaysShareOfPlatformProfit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedUser(t, env, "buyer-1", model.UserTypeBuyer, "")
	seedUser(t, env, "ref-1", model.UserTypeBuyer, "")
	seedAffiliation(t, env, "ref-1", "buyer-1", model.UserTypeBuyer, "2.5", nil)

	order := seedOrder(t, env.db, "ord-c1", model.OrderSucceeded, "buyer-1")

	commissions, err := env.affiliates.Cascade(ctx, order, settledEntries(t))
	if err != nil {
		t.Fatalf("Cascade failed: %v", err)
	}
	if len(commissions) != 1 {
		t.Fatalf("got %d commissions, want 1", len(commissions))
	}

	// 12.00 * 2.5% = 0.30
	c := commissions[0]
	if !c.Amount.Equal(dec(t, "0.30")) {
		t.Errorf("commission = %s, want 0.30", c.Amount)
	}
	if !c.BaseAmount.Equal(dec(t, "12.00")) {
		t.Errorf("base = %s, want 12.00", c.BaseAmount)
	}
	if got := env.mailer.count(client.MailAffiliateCommission); got != 1 {
		t.Errorf("commission mails = %d, want 1", got)
	}
}

func TestCascadeRoundsHalfUp(t *testing.T) {
	env := newTestEnv(t)

	seedUser(t, env, "buyer-2", model.UserTypeBuyer, "")
	seedUser(t, env, "ref-2", model.UserTypeBuyer, "")
	seedAffiliation(t, env, "ref-2", "buyer-2", model.UserTypeBuyer, "2.5", nil)

	order := seedOrder(t, env.db, "ord-c2", model.OrderSucceeded, "buyer-2")

	// 10.20 * 2.5% = 0.255, which rounds to 0.26.
	entries := []ledger.Entry{
		{AssociationID: "assoc_a", Gross: dec(t, "17.00"), Fee: dec(t, "10.20"), Net: dec(t, "6.80")},
	}
	commissions, err := env.affiliates.Cascade(context.Background(), order, entries)
	if err != nil {
		t.Fatalf("Cascade failed: %v", err)
	}
	if len(commissions) != 1 {
		t.Fatalf("got %d commissions, want 1", len(commissions))
	}
	if !commissions[0].Amount.Equal(dec(t, "0.26")) {
		t.Errorf("commission = %s, want 0.26 (half up)", commissions[0].Amount)
	}
}

func TestCascadeIsIdempotentPerOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedUser(t, env, "buyer-3", model.UserTypeBuyer, "")
	seedUser(t, env, "ref-3", model.UserTypeBuyer, "")
	seedAffiliation(t, env, "ref-3", "buyer-3", model.UserTypeBuyer, "2.5", nil)

	order := seedOrder(t, env.db, "ord-c3", model.OrderSucceeded, "buyer-3")

	if _, err := env.affiliates.Cascade(ctx, order, settledEntries(t)); err != nil {
		t.Fatalf("first cascade: %v", err)
	}
	again, err := env.affiliates.Cascade(ctx, order, settledEntries(t))
	if err != nil {
		t.Fatalf("second cascade: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second cascade created %d commissions, want 0", len(again))
	}

	stored, err := env.commissionRepo.FindByOrder(ctx, "ord-c3")
	if err != nil {
		t.Fatalf("load commissions: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("stored commissions = %d, want 1", len(stored))
	}
}

func TestCascadeSkipsExpiredAffiliations(t *testing.T) {
	env := newTestEnv(t)

	seedUser(t, env, "buyer-4", model.UserTypeBuyer, "")
	seedUser(t, env, "ref-4", model.UserTypeBuyer, "")
	expired := time.Now().Add(-24 * time.Hour)
	seedAffiliation(t, env, "ref-4", "buyer-4", model.UserTypeBuyer, "2.5", &expired)

	order := seedOrder(t, env.db, "ord-c4", model.OrderSucceeded, "buyer-4")

	commissions, err := env.affiliates.Cascade(context.Background(), order, settledEntries(t))
	if err != nil {
		t.Fatalf("Cascade failed: %v", err)
	}
	if len(commissions) != 0 {
		t.Errorf("expired affiliation earned %d commissions, want 0", len(commissions))
	}
}

func TestCascadeReachesBeneficiaryAffiliations(t *testing.T) {
	env := newTestEnv(t)

	// ref-5 referred assoc_a's account. The order is anonymous, so the
	// only route to a commission is through the beneficiary side.
	seedUser(t, env, "assoc-a-user", model.UserTypeAssociation, "assoc_a")
	seedUser(t, env, "ref-5", model.UserTypeBuyer, "")
	seedAffiliation(t, env, "ref-5", "assoc-a-user", model.UserTypeAssociation, "5.0", nil)

	order := seedOrder(t, env.db, "ord-c5", model.OrderSucceeded, "")

	commissions, err := env.affiliates.Cascade(context.Background(), order, settledEntries(t))
	if err != nil {
		t.Fatalf("Cascade failed: %v", err)
	}
	if len(commissions) != 1 {
		t.Fatalf("got %d commissions, want 1", len(commissions))
	}
	// 12.00 * 5% = 0.60
	if !commissions[0].Amount.Equal(dec(t, "0.60")) {
		t.Errorf("commission = %s, want 0.60", commissions[0].Amount)
	}
}

func TestCascadeToleratesMailerOutage(t *testing.T) {
	env := newTestEnv(t)
	env.mailer.fail = true

	seedUser(t, env, "buyer-6", model.UserTypeBuyer, "")
	seedUser(t, env, "ref-6", model.UserTypeBuyer, "")
	seedAffiliation(t, env, "ref-6", "buyer-6", model.UserTypeBuyer, "2.5", nil)

	order := seedOrder(t, env.db, "ord-c6", model.OrderSucceeded, "buyer-6")

	commissions, err := env.affiliates.Cascade(context.Background(), order, settledEntries(t))
	if err != nil {
		t.Fatalf("mailer outage must not fail the cascade: %v", err)
	}
	if len(commissions) != 1 {
		t.Errorf("got %d commissions, want 1", len(commissions))
	}
}

func TestCreateAffiliationExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedUser(t, env, "ref-7", model.UserTypeBuyer, "")
	seedUser(t, env, "buyer-7", model.UserTypeBuyer, "")
	seedUser(t, env, "assoc-b-user", model.UserTypeAssociation, "assoc_b")

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	env.affiliates.(*affiliateServiceImpl).now = func() time.Time { return fixed }

	toBuyer, err := env.affiliates.CreateAffiliation(ctx, &dto.CreateAffiliationRequest{
		AffiliateUserID:  "ref-7",
		AffiliatedUserID: "buyer-7",
	})
	if err != nil {
		t.Fatalf("create affiliation to buyer: %v", err)
	}
	if toBuyer.ExpiresAt == nil {
		t.Fatal("affiliation to a buyer must expire")
	}
	if want := fixed.AddDate(1, 0, 0); !toBuyer.ExpiresAt.Equal(want) {
		t.Errorf("expiry = %s, want %s", toBuyer.ExpiresAt, want)
	}
	if !toBuyer.EarningPercent.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("earning percent = %s, want default 2.5", toBuyer.EarningPercent)
	}

	toAssociation, err := env.affiliates.CreateAffiliation(ctx, &dto.CreateAffiliationRequest{
		AffiliateUserID:  "ref-7",
		AffiliatedUserID: "assoc-b-user",
	})
	if err != nil {
		t.Fatalf("create affiliation to association: %v", err)
	}
	if toAssociation.ExpiresAt != nil {
		t.Errorf("affiliation to an association account must not expire, got %s", toAssociation.ExpiresAt)
	}
}

func TestCreateAffiliationExclusive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedUser(t, env, "ref-8", model.UserTypeBuyer, "")
	seedUser(t, env, "ref-9", model.UserTypeBuyer, "")
	seedUser(t, env, "buyer-8", model.UserTypeBuyer, "")

	pct := 3.0
	if _, err := env.affiliates.CreateAffiliation(ctx, &dto.CreateAffiliationRequest{
		AffiliateUserID:  "ref-8",
		AffiliatedUserID: "buyer-8",
		EarningPercent:   &pct,
	}); err != nil {
		t.Fatalf("first affiliation: %v", err)
	}

	_, err := env.affiliates.CreateAffiliation(ctx, &dto.CreateAffiliationRequest{
		AffiliateUserID:  "ref-9",
		AffiliatedUserID: "buyer-8",
	})
	if !errors.Is(err, repository.ErrAffiliationExists) {
		t.Fatalf("err = %v, want ErrAffiliationExists", err)
	}
}

func TestConfirmPaymentTriggersCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedUser(t, env, "buyer-10", model.UserTypeBuyer, "")
	seedUser(t, env, "ref-10", model.UserTypeBuyer, "")
	seedAffiliation(t, env, "ref-10", "buyer-10", model.UserTypeBuyer, "2.5", nil)

	seedOrder(t, env.db, "ord-c10", model.OrderIntended, "buyer-10")
	if _, err := env.settlement.ConfirmPayment(ctx, "ord-c10"); err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}

	commissions, err := env.commissionRepo.FindByOrder(ctx, "ord-c10")
	if err != nil {
		t.Fatalf("load commissions: %v", err)
	}
	if len(commissions) != 1 {
		t.Fatalf("got %d commissions, want 1", len(commissions))
	}
	if !commissions[0].Amount.Equal(dec(t, "0.30")) {
		t.Errorf("commission = %s, want 0.30", commissions[0].Amount)
	}
}
