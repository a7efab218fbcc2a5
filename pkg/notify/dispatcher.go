// Package notify writes in-app notifications and relays them to SMS and
// email on a best-effort basis.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/pkg/apperr"
	"github.com/sitecraft/sitecraft/pkg/gateway/email"
	"github.com/sitecraft/sitecraft/pkg/gateway/sms"
	"github.com/sitecraft/sitecraft/pkg/logutils"
	"github.com/sitecraft/sitecraft/pkg/monitor"
	"github.com/sitecraft/sitecraft/pkg/store"
)

var ErrInvalidInput = fmt.Errorf("notification: %w", apperr.ErrInvalid)

// Input describes one notification. Link is a path inside the web app.
type Input struct {
	UserID  uint
	Type    model.NotificationType
	Title   string
	Message string
	Link    string
}

func (in Input) validate() error {
	if in.UserID == 0 {
		return fmt.Errorf("%w: missing user", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidInput)
	}
	if in.Type != "" && !in.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInput, in.Type)
	}
	return nil
}

type Dispatcher struct {
	store   store.Store
	sms     sms.Sender
	email   email.Sender
	baseURL string
	timeout time.Duration
}

// NewDispatcher builds a dispatcher. smsSender and emailSender may be nil
// when the channel is disabled.
func NewDispatcher(st store.Store, smsSender sms.Sender, emailSender email.Sender, baseURL string, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		store:   st,
		sms:     smsSender,
		email:   emailSender,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
	}
}

// Notify writes the notification row and then attempts SMS/email delivery.
// Only the row write can fail the call.
func (d *Dispatcher) Notify(ctx context.Context, in Input) (*model.Notification, error) {
	n, err := d.Record(ctx, d.store, in)
	if err != nil {
		return nil, err
	}
	d.Deliver(ctx, n)
	return n, nil
}

// Record inserts the notification row through st, which may be a
// transaction. Call Deliver once the transaction has committed.
func (d *Dispatcher) Record(ctx context.Context, st store.Store, in Input) (*model.Notification, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Type == "" {
		in.Type = model.NotificationInfo
	}
	n := &model.Notification{
		UserID:  in.UserID,
		Type:    in.Type,
		Title:   in.Title,
		Message: in.Message,
	}
	if in.Link != "" {
		link := in.Link
		n.Link = &link
	}
	if err := st.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	monitor.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	return n, nil
}

// Deliver sends the notification to the user's phone and inbox when the
// user is a client. Failures are logged and swallowed.
func (d *Dispatcher) Deliver(ctx context.Context, n *model.Notification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	l := logutils.Log.WithFields(logutils.Fields{
		"user":         n.UserID,
		"notification": n.ID,
	})

	user, err := d.store.GetUser(ctx, n.UserID)
	if err != nil {
		l.Warnf("skip delivery, load user: %v", err)
		return
	}
	if user.Role != model.RoleClient {
		return
	}

	if d.sms != nil && user.Phone != nil && *user.Phone != "" && user.SMSOptIn {
		d.safely(l, "sms", func() error {
			return d.sms.Send(ctx, *user.Phone, smsText(n))
		})
	}
	if d.email != nil && user.Email != "" {
		d.safely(l, "email", func() error {
			html, err := email.RenderNotification(email.NotificationData{
				Name:    user.Name,
				Title:   n.Title,
				Message: n.Message,
				Link:    d.absolute(n.Link),
			})
			if err != nil {
				return err
			}
			return d.email.Send(ctx, email.Message{To: user.Email, Subject: n.Title, HTML: html})
		})
	}
}

func (d *Dispatcher) safely(l *logrus.Entry, channel string, send func() error) {
	defer func() {
		if r := recover(); r != nil {
			monitor.DeliveryFailures.WithLabelValues(channel).Inc()
			l.Errorf("%s delivery panicked: %v", channel, r)
		}
	}()
	if err := send(); err != nil {
		monitor.DeliveryFailures.WithLabelValues(channel).Inc()
		l.Errorf("%s delivery failed: %v", channel, err)
	}
}

func (d *Dispatcher) absolute(link *string) string {
	if link == nil || *link == "" {
		return ""
	}
	if strings.HasPrefix(*link, "http://") || strings.HasPrefix(*link, "https://") {
		return *link
	}
	return d.baseURL + "/" + strings.TrimLeft(*link, "/")
}

func smsText(n *model.Notification) string {
	text := "SiteCraft: " + n.Title
	if n.Message != "" {
		text += " - " + n.Message
	}
	return text
}

// List returns the user's notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, userID uint, unreadOnly bool, page store.Page) ([]*model.Notification, int64, error) {
	return d.store.ListNotifications(ctx, userID, unreadOnly, page)
}

// MarkRead marks the given notifications read, or every unread one when ids
// is empty.
func (d *Dispatcher) MarkRead(ctx context.Context, userID uint, ids []uint) (int64, error) {
	return d.store.MarkNotificationsRead(ctx, userID, ids, time.Now())
}
