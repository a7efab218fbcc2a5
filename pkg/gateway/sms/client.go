// Package sms sends text messages through a Termii-compatible HTTP API.
package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/imroc/req/v3"
	"github.com/sitecraft/sitecraft/pkg/apperr"
)

var (
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrGateway      = fmt.Errorf("sms gateway: %w", apperr.ErrUpstream)
)

// Sender delivers one text message.
type Sender interface {
	Send(ctx context.Context, to, message string) error
}

type Client struct {
	req         *req.Client
	apiKey      string
	senderID    string
	countryCode string
}

func NewClient(baseURL, apiKey, senderID, countryCode string) *Client {
	return &Client{
		req: req.C().
			SetBaseURL(baseURL).
			SetCommonContentType("application/json").
			SetTimeout(15 * time.Second),
		apiKey:      apiKey,
		senderID:    senderID,
		countryCode: countryCode,
	}
}

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	SMS     string `json:"sms"`
	Type    string `json:"type"`
	Channel string `json:"channel"`
	APIKey  string `json:"api_key"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
}

func (c *Client) Send(ctx context.Context, to, message string) error {
	phone, err := NormalizePhone(to, c.countryCode)
	if err != nil {
		return err
	}
	var ok, failure sendResponse
	resp, err := c.req.R().
		SetContext(ctx).
		SetBody(sendRequest{
			To:      phone,
			From:    c.senderID,
			SMS:     message,
			Type:    "plain",
			Channel: "generic",
			APIKey:  c.apiKey,
		}).
		SetSuccessResult(&ok).
		SetErrorResult(&failure).
		Post("/api/sms/send")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if !resp.IsSuccessState() {
		return fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, failure.Message)
	}
	return nil
}

// NormalizePhone turns local and international spellings of a number into
// the digits-only international form the gateway expects, e.g. with
// countryCode "234": "0803 123 4567" -> "2348031234567",
// "+234 803 123 4567" -> "2348031234567", "8031234567" -> "2348031234567".
func NormalizePhone(raw, countryCode string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return "", ErrInvalidPhone
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, countryCode):
	case strings.HasPrefix(digits, "0"):
		digits = countryCode + digits[1:]
	default:
		digits = countryCode + digits
	}
	if len(digits) < 10 || len(digits) > 15 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return digits, nil
}
