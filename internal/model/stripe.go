package model

// Webhook payload shapes for the subset of Stripe events the platform
// reacts to. Everything else is decoded far enough to be ignored.

type StripeWebhookEvent struct {
	ID      string       `json:"id"`
	Type    string       `json:"type"`
	Created int64        `json:"created"`
	Data    StripeObject `json:"data"`
}

type StripeObject struct {
	Object StripeResource `json:"object"`
}

type StripeResource struct {
	ID       string `json:"id"`
	Object   string `json:"object"` // charge, payout
	Amount   int64  `json:"amount"` // smallest currency unit
	Currency string `json:"currency"`
	Status   string `json:"status"`

	// charge fields
	PaymentIntent string         `json:"payment_intent"`
	Refunded      bool           `json:"refunded"`
	Metadata      StripeMetadata `json:"metadata"`

	// payout fields
	Destination string `json:"destination"` // connected account
	ArrivalDate int64  `json:"arrival_date"`
}

type StripeMetadata struct {
	OrderReference string `json:"order_reference"`
}

type StripeCheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	PaymentStatus string `json:"payment_status"` // unpaid, paid
	Status        string `json:"status"`
}
