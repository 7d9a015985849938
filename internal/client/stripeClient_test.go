package client

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"
)

const testWebhookSecret = "whsec_test"

func signedHeader(secret string, signedAt time.Time, payload []byte) string {
	ts := fmt.Sprintf("%d", signedAt.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func testStripeClient(now time.Time) *stripeClientImpl {
	return &stripeClientImpl{
		webhookSecret: testWebhookSecret,
		now:           func() time.Time { return now },
	}
}

func TestVerifyWebhookSignatureValid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testStripeClient(now)

	payload := []byte(`{"id":"evt_1","type":"charge.refunded"}`)
	header := signedHeader(testWebhookSecret, now.Add(-time.Minute), payload)

	if err := c.VerifyWebhookSignature(header, payload); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifyWebhookSignatureWrongSecret(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testStripeClient(now)

	payload := []byte(`{"id":"evt_1"}`)
	header := signedHeader("whsec_other", now, payload)

	if err := c.VerifyWebhookSignature(header, payload); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}

func TestVerifyWebhookSignatureTamperedPayload(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testStripeClient(now)

	header := signedHeader(testWebhookSecret, now, []byte(`{"amount":100}`))

	if err := c.VerifyWebhookSignature(header, []byte(`{"amount":999}`)); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}

func TestVerifyWebhookSignatureStaleTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testStripeClient(now)

	payload := []byte(`{"id":"evt_1"}`)
	header := signedHeader(testWebhookSecret, now.Add(-time.Hour), payload)

	if err := c.VerifyWebhookSignature(header, payload); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature for stale timestamp", err)
	}
}

func TestVerifyWebhookSignatureGarbageHeader(t *testing.T) {
	c := testStripeClient(time.Now())

	for _, header := range []string{"", "t=abc", "v1=deadbeef", "nonsense"} {
		if err := c.VerifyWebhookSignature(header, []byte("{}")); !errors.Is(err, ErrBadSignature) {
			t.Errorf("header %q: err = %v, want ErrBadSignature", header, err)
		}
	}
}
