// Package email delivers transactional email through the Resend HTTP API or
// a plain SMTP relay.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/imroc/req/v3"
	"github.com/sitecraft/sitecraft/pkg/apperr"
	"gopkg.in/gomail.v2"
)

var ErrGateway = fmt.Errorf("email gateway: %w", apperr.ErrUpstream)

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ---- Resend ----

type ResendClient struct {
	req  *req.Client
	from string
}

func NewResendClient(baseURL, apiKey, from string) *ResendClient {
	return &ResendClient{
		req: req.C().
			SetBaseURL(baseURL).
			SetCommonBearerAuthToken(apiKey).
			SetCommonContentType("application/json").
			SetTimeout(15 * time.Second),
		from: from,
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendError struct {
	Message string `json:"message"`
}

func (c *ResendClient) Send(ctx context.Context, msg Message) error {
	var failure resendError
	resp, err := c.req.R().
		SetContext(ctx).
		SetBody(resendRequest{
			From:    c.from,
			To:      []string{msg.To},
			Subject: msg.Subject,
			HTML:    msg.HTML,
		}).
		SetErrorResult(&failure).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if !resp.IsSuccessState() {
		return fmt.Errorf("%w: status %d: %s", ErrGateway, resp.StatusCode, failure.Message)
	}
	return nil
}

// ---- SMTP ----

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%w: smtp: %v", ErrGateway, err)
	}
	return nil
}

// ---- templates ----

var notificationTmpl = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2 style="margin-bottom: 8px;">{{.Title}}</h2>
  <p>Hi {{.Name}},</p>
  <p>{{.Message}}</p>
  {{if .Link}}<p><a href="{{.Link}}" style="color: #2563eb;">Open in SiteCraft</a></p>{{end}}
  <p style="color: #6b7280; font-size: 12px;">You are receiving this email because you have a project on SiteCraft.</p>
</body>
</html>`))

// NotificationData fills the notification template.
type NotificationData struct {
	Name    string
	Title   string
	Message string
	Link    string
}

// RenderNotification renders the HTML body used for notification emails.
func RenderNotification(data NotificationData) (string, error) {
	var buf bytes.Buffer
	if err := notificationTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
