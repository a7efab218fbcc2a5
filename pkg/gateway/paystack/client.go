// Package paystack is a small client for the Paystack transaction API.
package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/imroc/req/v3"
	"github.com/sitecraft/sitecraft/pkg/apperr"
)

// ErrGateway wraps every failure reported by the gateway or the transport.
var ErrGateway = fmt.Errorf("payment gateway: %w", apperr.ErrUpstream)

const (
	// StatusSuccess is the transaction status of a completed charge.
	StatusSuccess = "success"
	// EventChargeSuccess is the webhook event sent after a completed charge.
	EventChargeSuccess = "charge.success"

	defaultTimeout = 30 * time.Second
)

type Client struct {
	req *req.Client
}

// NewClient builds a client authenticated with the secret key.
func NewClient(baseURL, secretKey string) *Client {
	c := req.C().
		SetBaseURL(baseURL).
		SetCommonBearerAuthToken(secretKey).
		SetCommonContentType("application/json").
		SetTimeout(defaultTimeout).
		SetUserAgent("sitecraft-backend")
	return &Client{req: c}
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type (
	InitializeRequest struct {
		Email       string         `json:"email"`
		Amount      int64          `json:"amount"` // minor units (kobo)
		Currency    string         `json:"currency,omitempty"`
		Reference   string         `json:"reference,omitempty"`
		CallbackURL string         `json:"callback_url,omitempty"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}

	Authorization struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}

	Transaction struct {
		ID              int64          `json:"id"`
		Status          string         `json:"status"`
		Reference       string         `json:"reference"`
		Amount          int64          `json:"amount"`
		Currency        string         `json:"currency"`
		GatewayResponse string         `json:"gateway_response"`
		Channel         string         `json:"channel"`
		PaidAt          *time.Time     `json:"paid_at"`
		Metadata        map[string]any `json:"metadata"`

		// Raw is the undecoded data object, kept for auditing.
		Raw json.RawMessage `json:"-"`
	}

	refundRequest struct {
		Transaction string `json:"transaction"`
		Amount      int64  `json:"amount,omitempty"`
	}
)

// Initialize creates a transaction and returns the hosted checkout URL.
func (c *Client) Initialize(ctx context.Context, in InitializeRequest) (*Authorization, error) {
	var out envelope[Authorization]
	if err := c.do(ctx, "POST", "/transaction/initialize", in, &out); err != nil {
		return nil, err
	}
	if !out.Status {
		return nil, fmt.Errorf("%w: initialize: %s", ErrGateway, out.Message)
	}
	return &out.Data, nil
}

// Verify fetches the transaction state for a reference.
func (c *Client) Verify(ctx context.Context, reference string) (*Transaction, error) {
	var out envelope[json.RawMessage]
	if err := c.do(ctx, "GET", "/transaction/verify/"+reference, nil, &out); err != nil {
		return nil, err
	}
	if !out.Status {
		return nil, fmt.Errorf("%w: verify: %s", ErrGateway, out.Message)
	}
	var tx Transaction
	if err := json.Unmarshal(out.Data, &tx); err != nil {
		return nil, fmt.Errorf("%w: decode transaction: %v", ErrGateway, err)
	}
	tx.Raw = out.Data
	return &tx, nil
}

// Refund returns amount (minor units, 0 for everything) of a transaction to the payer.
func (c *Client) Refund(ctx context.Context, reference string, amount int64) error {
	var out envelope[json.RawMessage]
	if err := c.do(ctx, "POST", "/refund", refundRequest{Transaction: reference, Amount: amount}, &out); err != nil {
		return err
	}
	if !out.Status {
		return fmt.Errorf("%w: refund: %s", ErrGateway, out.Message)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var failure envelope[json.RawMessage]
	r := c.req.R().
		SetContext(ctx).
		SetSuccessResult(out).
		SetErrorResult(&failure)
	if body != nil {
		r.SetBody(body)
	}
	resp, err := r.Send(method, path)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrGateway, method, path, err)
	}
	if resp.IsErrorState() {
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrGateway, method, path, resp.StatusCode, failure.Message)
	}
	if !resp.IsSuccessState() {
		return fmt.Errorf("%w: %s %s: unexpected status %d", ErrGateway, method, path, resp.StatusCode)
	}
	return nil
}

// ToMinor converts a major-unit amount (naira) to minor units (kobo).
func ToMinor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinor converts minor units back to a major-unit amount.
func FromMinor(amount int64) float64 {
	return float64(amount) / 100
}
