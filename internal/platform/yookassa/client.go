package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the YooKassa payments API (redirect confirmation flow).
type Client struct {
	httpClient *http.Client
	baseURL    string
	shopID     string
	secretKey  string
	returnURL  string
}

const apiBase = "https://api.yookassa.ru/v3"

func NewClient(shopID, secretKey, returnURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    apiBase,
		shopID:     shopID,
		secretKey:  secretKey,
		returnURL:  returnURL,
	}
}

// NewClientWithBaseURL is used by tests to point the client at a fake server.
func NewClientWithBaseURL(shopID, secretKey, returnURL, base string) *Client {
	c := NewClient(shopID, secretKey, returnURL)
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// CreatePaymentRequest carries everything the gateway needs to open a
// redirect-confirmation payment.
type CreatePaymentRequest struct {
	// AmountValue is a decimal string with two fraction digits, e.g. "6000.00".
	AmountValue string
	Currency    string
	Description string

	// Receipt data; email is required by the fiscal receipt, phone optional.
	ReceiptEmail string
	ReceiptPhone string

	// Metadata is echoed back verbatim on status queries.
	Metadata map[string]string

	// IdempotencyKey must be fresh per logical purchase attempt.
	IdempotencyKey string
}

// CreatePaymentResult is the subset of the created payment the core uses.
type CreatePaymentResult struct {
	PaymentRef  string
	Status      string
	RedirectURL string
}

// PaymentInfo is the result of a status query.
type PaymentInfo struct {
	PaymentRef string
	Status     string
	Metadata   map[string]string
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type receiptCustomer struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type receiptItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Amount      amount `json:"amount"`
	VatCode     int    `json:"vat_code"`
}

type receipt struct {
	Customer receiptCustomer `json:"customer"`
	Items    []receiptItem   `json:"items"`
}

type createPaymentBody struct {
	Amount       amount            `json:"amount"`
	Confirmation confirmation      `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Receipt      *receipt          `json:"receipt,omitempty"`
}

type paymentObject struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Confirmation *confirmation     `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type apiError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// CreatePayment opens a new payment and returns its reference and the URL
// the customer must visit to confirm it.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	body := createPaymentBody{
		Amount:       amount{Value: req.AmountValue, Currency: req.Currency},
		Confirmation: confirmation{Type: "redirect", ReturnURL: c.returnURL},
		Capture:      true,
		Description:  req.Description,
		Metadata:     req.Metadata,
	}
	if req.ReceiptEmail != "" {
		body.Receipt = &receipt{
			Customer: receiptCustomer{Email: req.ReceiptEmail, Phone: req.ReceiptPhone},
			Items: []receiptItem{{
				Description: req.Description,
				Quantity:    "1",
				Amount:      amount{Value: req.AmountValue, Currency: req.Currency},
				VatCode:     1,
			}},
		}
	}

	var obj paymentObject
	if err := c.call(ctx, http.MethodPost, "/payments", req.IdempotencyKey, body, &obj); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if obj.ID == "" {
		return nil, fmt.Errorf("create payment: empty payment id in response")
	}

	result := &CreatePaymentResult{PaymentRef: obj.ID, Status: obj.Status}
	if obj.Confirmation != nil {
		result.RedirectURL = obj.Confirmation.ConfirmationURL
	}
	return result, nil
}

// GetPayment queries the authoritative status of a payment by its reference.
func (c *Client) GetPayment(ctx context.Context, paymentRef string) (*PaymentInfo, error) {
	var obj paymentObject
	if err := c.call(ctx, http.MethodGet, "/payments/"+paymentRef, "", nil, &obj); err != nil {
		return nil, fmt.Errorf("get payment %s: %w", paymentRef, err)
	}
	return &PaymentInfo{PaymentRef: obj.ID, Status: obj.Status, Metadata: obj.Metadata}, nil
}

func (c *Client) call(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotence-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Description != "" {
			return fmt.Errorf("yookassa API error (%d): %s", resp.StatusCode, apiErr.Description)
		}
		return fmt.Errorf("yookassa API error: status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
