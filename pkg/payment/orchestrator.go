// Package payment drives the escrow flow: a client pays a share of the project
// cost through the gateway, the money is held until the client accepts the
// delivery and is then released to the developer.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/datatypes"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/pkg/apperr"
	"github.com/sitecraft/sitecraft/pkg/gateway/paystack"
	"github.com/sitecraft/sitecraft/pkg/logutils"
	"github.com/sitecraft/sitecraft/pkg/monitor"
	"github.com/sitecraft/sitecraft/pkg/notify"
	"github.com/sitecraft/sitecraft/pkg/store"
)

var (
	ErrProjectNotFound      = fmt.Errorf("project %w", apperr.ErrNotFound)
	ErrPaymentNotFound      = fmt.Errorf("payment %w", apperr.ErrNotFound)
	ErrForbidden            = fmt.Errorf("payment: %w", apperr.ErrForbidden)
	ErrInvalidInput         = fmt.Errorf("payment: %w", apperr.ErrInvalid)
	ErrInvalidState         = fmt.Errorf("payment not allowed in current state: %w", apperr.ErrInvalid)
	ErrAlreadyPaid          = fmt.Errorf("payment already made: %w", apperr.ErrConflict)
	ErrPaymentNotSuccessful = fmt.Errorf("payment not successful: %w", apperr.ErrInvalid)
	ErrAmountMismatch       = fmt.Errorf("paid amount below charge: %w", apperr.ErrInvalid)
	ErrInvalidSignature     = fmt.Errorf("webhook signature mismatch: %w", apperr.ErrBadSignature)
	ErrConflict             = fmt.Errorf("payment: %w", apperr.ErrConflict)
	ErrDuplicatePayment     = fmt.Errorf("share already paid, payment held for refund: %w", apperr.ErrConflict)
	ErrTransactionMismatch  = fmt.Errorf("gateway transaction does not match payment: %w", apperr.ErrInvalid)

	errAlreadyProcessed = errors.New("already processed")
)

const (
	initialShare = 0.6
	finalShare   = 0.4

	referencePrefix = "SC-"

	// DefaultPendingExpiry is how long an unsettled checkout is re-verified
	// before it is marked failed.
	DefaultPendingExpiry = 24 * time.Hour
)

// Gateway is the subset of the payment provider the orchestrator needs.
type Gateway interface {
	Initialize(ctx context.Context, in paystack.InitializeRequest) (*paystack.Authorization, error)
	Verify(ctx context.Context, reference string) (*paystack.Transaction, error)
	Refund(ctx context.Context, reference string, amount int64) error
}

// Notifier writes notification rows inside a transaction and delivers them
// after commit.
type Notifier interface {
	Record(ctx context.Context, st store.Store, in notify.Input) (*model.Notification, error)
	Deliver(ctx context.Context, n *model.Notification)
}

type Options struct {
	Currency      string
	CallbackURL   string
	WebhookSecret string
	PendingExpiry time.Duration
}

type Orchestrator struct {
	store    store.Store
	gateway  Gateway
	notifier Notifier
	opts     Options
	now      func() time.Time
}

func NewOrchestrator(st store.Store, gw Gateway, notifier Notifier, opts Options) *Orchestrator {
	if opts.PendingExpiry <= 0 {
		opts.PendingExpiry = DefaultPendingExpiry
	}
	return &Orchestrator{
		store:    st,
		gateway:  gw,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
	}
}

// ChargeAmount returns the share of amount charged for a payment type,
// rounded to two decimals. Unknown types charge the whole amount.
func ChargeAmount(amount float64, paymentType model.PaymentType) float64 {
	share := 1.0
	switch paymentType {
	case model.PaymentInitial:
		share = initialShare
	case model.PaymentFinal:
		share = finalShare
	}
	return math.Round(amount*share*100) / 100
}

// NormalizeType maps free-form payment types onto the stored enum; anything
// other than initial or final is a full payment.
func NormalizeType(t string) model.PaymentType {
	switch model.PaymentType(strings.ToLower(strings.TrimSpace(t))) {
	case model.PaymentInitial:
		return model.PaymentInitial
	case model.PaymentFinal:
		return model.PaymentFinal
	default:
		return model.PaymentFull
	}
}

type InitializeInput struct {
	ProjectID   uint
	Amount      float64
	PaymentType model.PaymentType
}

type InitializeResult struct {
	Payment          *model.Payment
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Initialize opens a gateway transaction for the project's client and stores
// it as a pending payment.
func (o *Orchestrator) Initialize(ctx context.Context, actor *model.User, in InitializeInput) (*InitializeResult, error) {
	project, err := o.store.GetProject(ctx, in.ProjectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if actor == nil || project.ClientID != actor.ID {
		return nil, ErrForbidden
	}
	if actor.Email == "" {
		return nil, fmt.Errorf("%w: payer has no email address", ErrInvalidInput)
	}

	paymentType := NormalizeType(string(in.PaymentType))
	if err := o.checkPayable(ctx, project, paymentType); err != nil {
		return nil, err
	}

	l := logutils.ForProject(project.ID)
	base := in.Amount
	if project.FinalCost != nil && *project.FinalCost > 0 {
		if in.Amount > 0 && in.Amount != *project.FinalCost {
			l.Warnf("requested amount %.2f differs from final cost %.2f, using final cost", in.Amount, *project.FinalCost)
		}
		base = *project.FinalCost
	}
	if base <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	charge := ChargeAmount(base, paymentType)

	auth, err := o.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       actor.Email,
		Amount:      paystack.ToMinor(charge),
		Currency:    o.opts.Currency,
		Reference:   referencePrefix + uuid.NewString(),
		CallbackURL: o.opts.CallbackURL,
		Metadata: map[string]any{
			"project_id":   project.ID,
			"payment_type": string(paymentType),
			"payer_id":     actor.ID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("initialize transaction: %w", err)
	}

	payment := &model.Payment{
		ProjectID:        project.ID,
		PayerID:          actor.ID,
		BaseAmount:       base,
		Amount:           charge,
		Currency:         o.opts.Currency,
		PaymentType:      paymentType,
		Status:           model.PaymentPending,
		Reference:        auth.Reference,
		AccessCode:       auth.AccessCode,
		AuthorizationURL: auth.AuthorizationURL,
	}
	if err := o.store.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	monitor.PaymentsInitialized.WithLabelValues(string(paymentType)).Inc()
	l.WithField("reference", payment.Reference).Infof("initialized %s payment of %.2f", paymentType, charge)

	return &InitializeResult{
		Payment:          payment,
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
		Reference:        auth.Reference,
	}, nil
}

func (o *Orchestrator) checkPayable(ctx context.Context, project *model.Project, paymentType model.PaymentType) error {
	payments, err := o.store.ListPaymentsByProject(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}
	switch paymentType {
	case model.PaymentInitial, model.PaymentFull:
		if project.Status != model.ProjectApproved {
			return fmt.Errorf("%w: project is %s", ErrInvalidState, project.Status)
		}
	case model.PaymentFinal:
		if project.Status != model.ProjectInProgress && project.Status != model.ProjectCompleted {
			return fmt.Errorf("%w: project is %s", ErrInvalidState, project.Status)
		}
	}
	if alreadyPaid(payments, paymentType) {
		return ErrAlreadyPaid
	}
	return nil
}

// alreadyPaid reports whether a settled payment already covers part of the
// share paymentType charges for.
func alreadyPaid(payments []*model.Payment, paymentType model.PaymentType) bool {
	overlapping := []model.PaymentType{model.PaymentInitial, model.PaymentFinal, model.PaymentFull}
	switch paymentType {
	case model.PaymentInitial:
		overlapping = []model.PaymentType{model.PaymentInitial, model.PaymentFull}
	case model.PaymentFinal:
		overlapping = []model.PaymentType{model.PaymentFinal, model.PaymentFull}
	}
	return lo.SomeBy(payments, func(p *model.Payment) bool {
		settled := p.Status == model.PaymentEscrowed || p.Status == model.PaymentReleased
		return settled && lo.Contains(overlapping, p.PaymentType)
	})
}

type VerifyResult struct {
	Payment *model.Payment
	Project *model.Project
	// AlreadyProcessed is set when the reference was settled by an earlier
	// call; nothing was written this time.
	AlreadyProcessed bool
}

// Verify confirms a transaction with the gateway and, on success, escrows the
// payment, starts the project when the payment funds it and notifies both
// parties. All writes share one transaction; SMS and email go out after commit.
// Money settled for a share another payment already covers is kept as a
// duplicate for an admin to refund, and ErrDuplicatePayment is returned.
func (o *Orchestrator) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	result, err := o.verify(ctx, reference)
	switch {
	case err == nil && result.AlreadyProcessed:
		monitor.PaymentVerifications.WithLabelValues("already_processed").Inc()
	case err == nil:
		monitor.PaymentVerifications.WithLabelValues("success").Inc()
	default:
		monitor.PaymentVerifications.WithLabelValues(ReasonCode(err)).Inc()
	}
	return result, err
}

func (o *Orchestrator) verify(ctx context.Context, reference string) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrPaymentNotFound
	}
	payment, err := o.store.GetPaymentByReference(ctx, reference)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPaymentNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	// a failed checkout is verified again when the gateway calls back late
	from := payment.Status
	if from != model.PaymentPending && from != model.PaymentFailed {
		return o.processed(ctx, payment)
	}

	l := logutils.ForPayment(reference)
	tx, err := o.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("verify transaction: %w", err)
	}
	if tx.Status != paystack.StatusSuccess {
		payment.GatewayResponse = datatypes.JSON(tx.Raw)
		if _, uerr := o.store.SavePaymentIfStatus(ctx, payment, from); uerr != nil {
			l.Warnf("store gateway response: %v", uerr)
		}
		return nil, fmt.Errorf("%w: gateway status %q", ErrPaymentNotSuccessful, tx.Status)
	}
	if tx.Amount < paystack.ToMinor(payment.Amount) {
		l.Errorf("paid %d minor units, charged %.2f", tx.Amount, payment.Amount)
		return nil, ErrAmountMismatch
	}
	if tx.Reference != payment.Reference || (tx.Currency != "" && !strings.EqualFold(tx.Currency, payment.Currency)) {
		l.Errorf("gateway returned reference %q in %q, stored %s payment is in %s", tx.Reference, tx.Currency, payment.Reference, payment.Currency)
		return nil, ErrTransactionMismatch
	}

	now := o.now()
	var (
		project   *model.Project
		pending   []*model.Notification
		duplicate bool
	)
	err = o.store.Transaction(ctx, func(st store.Store) error {
		others, err := st.ListPaymentsByProject(ctx, payment.ProjectID)
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}
		duplicate = alreadyPaid(others, payment.PaymentType)

		payment.Status = lo.Ternary(duplicate, model.PaymentDuplicate, model.PaymentEscrowed)
		payment.GatewayResponse = datatypes.JSON(tx.Raw)
		payment.PaidAt = lo.Ternary(tx.PaidAt != nil, tx.PaidAt, &now)
		if !duplicate {
			payment.EscrowedAt = &now
		}
		ok, err := st.SavePaymentIfStatus(ctx, payment, from)
		if err != nil {
			return fmt.Errorf("escrow payment: %w", err)
		}
		if !ok {
			return errAlreadyProcessed
		}

		project, err = st.GetProject(ctx, payment.ProjectID)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		if duplicate {
			n, err := o.notifier.Record(ctx, st, o.duplicateNotice(project, payment))
			if err != nil {
				return err
			}
			pending = append(pending, n)
			return nil
		}
		if payment.FundsProject() && project.Status == model.ProjectApproved {
			project.Status = model.ProjectInProgress
			project.StartedAt = &now
			ok, err := st.SaveProjectIfStatus(ctx, project, model.ProjectApproved)
			if err != nil {
				return fmt.Errorf("start project: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w: project changed while verifying", ErrConflict)
			}
			monitor.ProjectTransitions.WithLabelValues(string(model.ProjectApproved), string(model.ProjectInProgress)).Inc()
		}

		for _, in := range o.paidNotices(project, payment) {
			n, err := o.notifier.Record(ctx, st, in)
			if err != nil {
				return err
			}
			pending = append(pending, n)
		}
		return nil
	})
	if errors.Is(err, errAlreadyProcessed) {
		fresh, gerr := o.store.GetPaymentByReference(ctx, reference)
		if gerr != nil {
			return nil, fmt.Errorf("reload payment: %w", gerr)
		}
		return o.processed(ctx, fresh)
	}
	if err != nil {
		return nil, err
	}

	for _, n := range pending {
		o.notifier.Deliver(ctx, n)
	}
	if duplicate {
		l.WithField("project", project.ID).Warnf("%s share already paid, held %.2f for refund", payment.PaymentType, payment.Amount)
		return nil, ErrDuplicatePayment
	}
	l.WithField("project", project.ID).Infof("%s payment escrowed", payment.PaymentType)
	return &VerifyResult{Payment: payment, Project: project}, nil
}

func (o *Orchestrator) processed(ctx context.Context, payment *model.Payment) (*VerifyResult, error) {
	if payment.Status == model.PaymentDuplicate {
		return nil, ErrDuplicatePayment
	}
	project, err := o.store.GetProject(ctx, payment.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return &VerifyResult{Payment: payment, Project: project, AlreadyProcessed: true}, nil
}

func (o *Orchestrator) duplicateNotice(project *model.Project, payment *model.Payment) notify.Input {
	return notify.Input{
		UserID: project.ClientID,
		Type:   model.NotificationWarning,
		Title:  "Duplicate payment",
		Message: fmt.Sprintf("The %s share of %q was already paid. Your payment of %s %.2f will be refunded.",
			payment.PaymentType, project.Title, payment.Currency, payment.Amount),
		Link: fmt.Sprintf("/dashboard/projects/%d", project.ID),
	}
}

func (o *Orchestrator) paidNotices(project *model.Project, payment *model.Payment) []notify.Input {
	link := fmt.Sprintf("/dashboard/projects/%d", project.ID)
	amount := fmt.Sprintf("%s %.2f", payment.Currency, payment.Amount)
	out := []notify.Input{{
		UserID:  project.ClientID,
		Type:    model.NotificationSuccess,
		Title:   "Payment confirmed",
		Message: fmt.Sprintf("Your %s payment of %s for %q is held in escrow until you accept the delivery.", payment.PaymentType, amount, project.Title),
		Link:    link,
	}}
	if project.DeveloperID != nil {
		msg := fmt.Sprintf("The client paid %s (%s) for %q.", amount, payment.PaymentType, project.Title)
		if payment.FundsProject() {
			msg += " You can start working."
		}
		out = append(out, notify.Input{
			UserID:  *project.DeveloperID,
			Type:    model.NotificationSuccess,
			Title:   "Payment received",
			Message: msg,
			Link:    link,
		})
	}
	return out
}

// HandleWebhook authenticates a gateway callback and verifies the referenced
// transaction for charge.success events. Other events are acknowledged.
func (o *Orchestrator) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !paystack.ValidSignature(body, signature, o.opts.WebhookSecret) {
		monitor.WebhookEvents.WithLabelValues("invalid_signature").Inc()
		return ErrInvalidSignature
	}
	event, err := paystack.ParseEvent(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	monitor.WebhookEvents.WithLabelValues(event.Event).Inc()
	if event.Event != paystack.EventChargeSuccess {
		logutils.Log.Debugf("ignore webhook event %s", event.Event)
		return nil
	}
	_, err = o.Verify(ctx, event.Data.Reference)
	if errors.Is(err, ErrDuplicatePayment) {
		// held for refund, a retry from the gateway changes nothing
		return nil
	}
	return err
}

// Release moves every escrowed payment of the project to released. It runs
// through st so the caller can bind it to the delivery transaction.
func (o *Orchestrator) Release(ctx context.Context, st store.Store, projectID uint) ([]*model.Payment, error) {
	payments, err := st.ListPaymentsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	now := o.now()
	var released []*model.Payment
	for _, p := range payments {
		if p.Status != model.PaymentEscrowed {
			continue
		}
		p.Status = model.PaymentReleased
		p.ReleasedAt = &now
		ok, err := st.SavePaymentIfStatus(ctx, p, model.PaymentEscrowed)
		if err != nil {
			return nil, fmt.Errorf("release payment %s: %w", p.Reference, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: payment %s changed while releasing", ErrConflict, p.Reference)
		}
		released = append(released, p)
	}
	return released, nil
}

// Refund returns an escrowed or duplicate payment to the client. Only admins
// may refund.
func (o *Orchestrator) Refund(ctx context.Context, actor *model.User, paymentID uint) (*model.Payment, error) {
	if actor == nil || actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	payment, err := o.store.GetPayment(ctx, paymentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPaymentNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}
	from := payment.Status
	if from != model.PaymentEscrowed && from != model.PaymentDuplicate {
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidState, payment.Status)
	}
	if err := o.gateway.Refund(ctx, payment.Reference, 0); err != nil {
		return nil, fmt.Errorf("refund transaction: %w", err)
	}

	now := o.now()
	var n *model.Notification
	err = o.store.Transaction(ctx, func(st store.Store) error {
		payment.Status = model.PaymentRefunded
		payment.RefundedAt = &now
		ok, err := st.SavePaymentIfStatus(ctx, payment, from)
		if err != nil {
			return fmt.Errorf("mark refunded: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: payment changed while refunding", ErrConflict)
		}
		project, err := st.GetProject(ctx, payment.ProjectID)
		if err != nil {
			return fmt.Errorf("load project: %w", err)
		}
		n, err = o.notifier.Record(ctx, st, notify.Input{
			UserID:  project.ClientID,
			Type:    model.NotificationInfo,
			Title:   "Payment refunded",
			Message: fmt.Sprintf("Your payment of %s %.2f for %q was refunded.", payment.Currency, payment.Amount, project.Title),
			Link:    fmt.Sprintf("/dashboard/projects/%d", project.ID),
		})
		return err
	})
	if err != nil {
		// The gateway already refunded; the row must be fixed by hand.
		logutils.ForPayment(payment.Reference).Errorf("gateway refunded but local update failed: %v", err)
		return nil, err
	}
	o.notifier.Deliver(ctx, n)
	return payment, nil
}

// ReconcilePending verifies pending payments created more than olderThan
// ago, catching transactions whose redirect and webhook were both lost.
// Checkouts still unsettled after the pending expiry are marked failed so
// they are not verified again.
func (o *Orchestrator) ReconcilePending(ctx context.Context, olderThan time.Duration) (settled, failed int, err error) {
	now := o.now()
	expireBefore := now.Add(-o.opts.PendingExpiry)
	payments, err := o.store.ListPendingPayments(ctx, now.Add(-olderThan))
	if err != nil {
		return 0, 0, fmt.Errorf("list pending payments: %w", err)
	}
	for _, p := range payments {
		if ctx.Err() != nil {
			return settled, failed, ctx.Err()
		}
		res, verr := o.Verify(ctx, p.Reference)
		switch {
		case verr == nil && !res.AlreadyProcessed:
			settled++
		case verr != nil:
			failed++
			logutils.ForPayment(p.Reference).Debugf("reconcile: %v", verr)
			if errors.Is(verr, ErrPaymentNotSuccessful) && p.CreatedAt.Before(expireBefore) {
				o.expire(ctx, p.Reference)
			}
		}
	}
	return settled, failed, nil
}

func (o *Orchestrator) expire(ctx context.Context, reference string) {
	l := logutils.ForPayment(reference)
	p, err := o.store.GetPaymentByReference(ctx, reference)
	if err != nil {
		l.Warnf("load payment to expire: %v", err)
		return
	}
	p.Status = model.PaymentFailed
	ok, err := o.store.SavePaymentIfStatus(ctx, p, model.PaymentPending)
	if err != nil {
		l.Warnf("expire payment: %v", err)
		return
	}
	if ok {
		monitor.PaymentVerifications.WithLabelValues("expired").Inc()
		l.Infof("checkout unsettled after %s, marked failed", o.opts.PendingExpiry)
	}
}

// ListForProject returns the project's payments to a participant or an admin.
func (o *Orchestrator) ListForProject(ctx context.Context, actor *model.User, projectID uint) ([]*model.Payment, error) {
	project, err := o.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if actor.Role != model.RoleAdmin && !project.IsParticipant(actor.ID) {
		return nil, ErrForbidden
	}
	return o.store.ListPaymentsByProject(ctx, projectID)
}

// Get returns one payment with its project, visible to participants and admins.
func (o *Orchestrator) Get(ctx context.Context, actor *model.User, paymentID uint) (*model.Payment, *model.Project, error) {
	payment, err := o.store.GetPayment(ctx, paymentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrPaymentNotFound
	} else if err != nil {
		return nil, nil, fmt.Errorf("load payment: %w", err)
	}
	project, err := o.store.GetProject(ctx, payment.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("load project: %w", err)
	}
	if actor.Role != model.RoleAdmin && !project.IsParticipant(actor.ID) {
		return nil, nil, ErrForbidden
	}
	return payment, project, nil
}

// ReasonCode is the short code put in the error redirect after a failed
// verification.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrPaymentNotFound):
		return "payment_not_found"
	case errors.Is(err, ErrPaymentNotSuccessful):
		return "not_successful"
	case errors.Is(err, ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, ErrTransactionMismatch):
		return "transaction_mismatch"
	case errors.Is(err, ErrDuplicatePayment):
		return "duplicate_payment"
	case errors.Is(err, apperr.ErrUpstream):
		return "gateway_error"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	default:
		return "unknown"
	}
}
