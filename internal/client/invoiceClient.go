package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"cardfund/internal/config"
)

type InvoiceLine struct {
	Label      string          `json:"label"`
	Quantity   int32           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	VATPercent float64         `json:"vat_percent"`
}

type CreateInvoiceRequest struct {
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email"`
	Street        string        `json:"street"`
	Zip           string        `json:"zip"`
	City          string        `json:"city"`
	Country       string        `json:"country"`
	Currency      string        `json:"currency"`
	Lines         []InvoiceLine `json:"lines"`
}

type InvoiceClient interface {
	CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (string, error)
	FinalizeInvoice(ctx context.Context, invoiceID string) error
	CancelInvoice(ctx context.Context, invoiceID string) error
	// FetchInvoicePDF retries once after a short delay when the service
	// answers with an empty document, which happens while the PDF is
	// still being rendered.
	FetchInvoicePDF(ctx context.Context, invoiceID string) ([]byte, error)
}

type invoiceClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	apiKey     string
	retryDelay time.Duration
}

func NewInvoiceClient(invoicingCfg *config.Invoicing) InvoiceClient {
	return &invoiceClientImpl{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseApiURL: invoicingCfg.BaseApiURL,
		apiKey:     invoicingCfg.APIKey,
		retryDelay: 2 * time.Second,
	}
}

func (c *invoiceClientImpl) CreateInvoice(ctx context.Context, invoiceReq *CreateInvoiceRequest) (string, error) {
	payload, err := json.Marshal(invoiceReq)
	if err != nil {
		return "", fmt.Errorf("marshal invoice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/invoices", bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("invoicing error %d: %s", resp.StatusCode, string(b))
	}

	var result struct {
		InvoiceID string `json:"invoice_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode invoicing response: %w", err)
	}

	return result.InvoiceID, nil
}

func (c *invoiceClientImpl) FinalizeInvoice(ctx context.Context, invoiceID string) error {
	return c.post(ctx, fmt.Sprintf("/invoices/%s/finalize", invoiceID))
}

func (c *invoiceClientImpl) CancelInvoice(ctx context.Context, invoiceID string) error {
	return c.post(ctx, fmt.Sprintf("/invoices/%s/cancel", invoiceID))
}

func (c *invoiceClientImpl) FetchInvoicePDF(ctx context.Context, invoiceID string) ([]byte, error) {
	pdf, err := c.fetchPDFOnce(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if len(pdf) > 0 {
		return pdf, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.retryDelay):
	}

	pdf, err = c.fetchPDFOnce(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("invoice %s PDF still empty after retry", invoiceID)
	}

	return pdf, nil
}

func (c *invoiceClientImpl) fetchPDFOnce(ctx context.Context, invoiceID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/invoices/%s/pdf", c.baseApiURL, invoiceID), nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("invoicing error %d: %s", resp.StatusCode, string(b))
	}

	return io.ReadAll(resp.Body)
}

func (c *invoiceClientImpl) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+path, nil)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("invoicing error %d: %s", resp.StatusCode, string(b))
	}

	return nil
}

func (c *invoiceClientImpl) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}
