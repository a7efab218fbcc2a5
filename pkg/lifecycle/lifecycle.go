// Package lifecycle moves a project through review, acceptance, work,
// completion and delivery. Every status change is a compare-and-set on the
// previous status so concurrent actors cannot both win.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/pkg/apperr"
	"github.com/sitecraft/sitecraft/pkg/logutils"
	"github.com/sitecraft/sitecraft/pkg/monitor"
	"github.com/sitecraft/sitecraft/pkg/notify"
	"github.com/sitecraft/sitecraft/pkg/store"
)

var (
	ErrNotFound        = fmt.Errorf("project %w", apperr.ErrNotFound)
	ErrForbidden       = fmt.Errorf("project: %w", apperr.ErrForbidden)
	ErrInvalidInput    = fmt.Errorf("project: %w", apperr.ErrInvalid)
	ErrConflict        = fmt.Errorf("project status changed: %w", apperr.ErrConflict)
	ErrPaymentRequired = fmt.Errorf("no escrowed payment for project: %w", apperr.ErrInvalid)
)

// transitions lists every status reachable from a status.
var transitions = map[model.ProjectStatus][]model.ProjectStatus{
	model.ProjectPendingReview: {model.ProjectApproved, model.ProjectCancelled},
	model.ProjectApproved:      {model.ProjectInProgress, model.ProjectCancelled},
	model.ProjectInProgress:    {model.ProjectCompleted, model.ProjectCancelled},
	model.ProjectCompleted:     {model.ProjectDelivered, model.ProjectCancelled},
}

// CanTransition reports whether a project may move from one status to another.
func CanTransition(from, to model.ProjectStatus) bool {
	return lo.Contains(transitions[from], to)
}

const (
	basePerPerson          = 1500
	documentationPerPerson = 800
	hostingFee             = 350
	extraFilesFee          = 250
	includedFiles          = 3
)

type EstimateInput struct {
	PeopleCount        int  `json:"peopleCount"`
	NeedsDocumentation bool `json:"needsDocumentation"`
	IncludeHosting     bool `json:"includeHosting"`
	FileCount          int  `json:"fileCount"`
}

// EstimateCost prices a project from its sizing inputs.
func EstimateCost(in EstimateInput) float64 {
	people := max(in.PeopleCount, 1)
	cost := basePerPerson * people
	if in.NeedsDocumentation {
		cost += documentationPerPerson * people
	}
	if in.IncludeHosting {
		cost += hostingFee
	}
	if in.FileCount > includedFiles {
		cost += extraFilesFee
	}
	return float64(cost)
}

// Notifier writes notification rows inside a transaction and delivers them
// after commit.
type Notifier interface {
	Record(ctx context.Context, st store.Store, in notify.Input) (*model.Notification, error)
	Deliver(ctx context.Context, n *model.Notification)
}

// Releaser moves escrowed payments to released inside the delivery transaction.
type Releaser interface {
	Release(ctx context.Context, st store.Store, projectID uint) ([]*model.Payment, error)
}

type Service struct {
	store    store.Store
	notifier Notifier
	releaser Releaser
	now      func() time.Time
}

func NewService(st store.Store, notifier Notifier, releaser Releaser) *Service {
	return &Service{store: st, notifier: notifier, releaser: releaser, now: time.Now}
}

type CreateInput struct {
	Title        string
	Requirements string
	EstimateInput
}

// Create submits a new project for review.
func (s *Service) Create(ctx context.Context, client *model.User, in CreateInput) (*model.Project, error) {
	if client.Role != model.RoleClient {
		return nil, fmt.Errorf("%w: only clients create projects", ErrForbidden)
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Requirements = strings.TrimSpace(in.Requirements)
	if in.Title == "" || in.Requirements == "" {
		return nil, fmt.Errorf("%w: title and requirements are required", ErrInvalidInput)
	}
	if in.PeopleCount < 0 || in.FileCount < 0 {
		return nil, fmt.Errorf("%w: negative sizing input", ErrInvalidInput)
	}
	p := &model.Project{
		ClientID:           client.ID,
		Title:              in.Title,
		Requirements:       in.Requirements,
		Status:             model.ProjectPendingReview,
		PeopleCount:        max(in.PeopleCount, 1),
		NeedsDocumentation: in.NeedsDocumentation,
		IncludeHosting:     in.IncludeHosting,
		FileCount:          in.FileCount,
		EstimatedCost:      EstimateCost(in.EstimateInput),
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	logutils.ForProject(p.ID).Infof("project created by client %d, estimate %.2f", client.ID, p.EstimatedCost)
	return p, nil
}

// Get returns a project visible to the actor: clients see their own,
// developers their assigned and every open project, admins everything.
func (s *Service) Get(ctx context.Context, actor *model.User, id uint) (*model.Project, error) {
	p, err := s.load(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if !p.VisibleTo(actor) {
		return nil, ErrForbidden
	}
	return p, nil
}

type ListInput struct {
	Status model.ProjectStatus
	Page   store.Page
}

func (s *Service) List(ctx context.Context, actor *model.User, in ListInput) ([]*model.Project, int64, error) {
	filter := store.ProjectFilter{Status: in.Status, Page: in.Page}
	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleDeveloper:
		filter.DeveloperID = actor.ID
		filter.IncludeOpen = true
	default:
		filter.ClientID = actor.ID
	}
	return s.store.ListProjects(ctx, filter)
}

// Accept assigns the developer and fixes the final cost and duration.
func (s *Service) Accept(ctx context.Context, developer *model.User, id uint, finalCost float64, durationDays int) (*model.Project, error) {
	if developer.Role != model.RoleDeveloper {
		return nil, fmt.Errorf("%w: only developers accept projects", ErrForbidden)
	}
	if finalCost <= 0 || durationDays <= 0 {
		return nil, fmt.Errorf("%w: final cost and duration must be positive", ErrInvalidInput)
	}
	return s.commit(ctx, id, func(st store.Store, p *model.Project) ([]notify.Input, error) {
		if p.Status != model.ProjectPendingReview {
			return nil, fmt.Errorf("%w: project is %s", ErrConflict, p.Status)
		}
		now := s.now()
		devID := developer.ID
		p.DeveloperID = &devID
		p.FinalCost = &finalCost
		p.DurationDays = &durationDays
		p.AcceptedAt = &now
		if err := s.move(ctx, st, p, model.ProjectApproved); err != nil {
			return nil, err
		}
		return []notify.Input{{
			UserID: p.ClientID,
			Type:   model.NotificationSuccess,
			Title:  "Project accepted",
			Message: fmt.Sprintf("%s accepted %q for %.2f, delivery in %d days. Make the initial payment to start.",
				developer.Name, p.Title, finalCost, durationDays),
			Link: projectLink(p.ID),
		}}, nil
	})
}

// Start marks work as started by the assigned developer once the project is
// funded. Starting an already started project is a no-op.
func (s *Service) Start(ctx context.Context, developer *model.User, id uint) (*model.Project, error) {
	return s.commit(ctx, id, func(st store.Store, p *model.Project) ([]notify.Input, error) {
		if !assigned(developer, p) {
			return nil, fmt.Errorf("%w: not the assigned developer", ErrForbidden)
		}
		if p.Status != model.ProjectApproved && p.Status != model.ProjectInProgress {
			return nil, fmt.Errorf("%w: project is %s", ErrConflict, p.Status)
		}
		funded, err := funded(ctx, st, p.ID)
		if err != nil {
			return nil, err
		}
		if !funded {
			return nil, ErrPaymentRequired
		}
		if p.Status == model.ProjectInProgress && p.StartedAt != nil {
			return nil, nil
		}
		now := s.now()
		p.StartedAt = &now
		if err := s.move(ctx, st, p, model.ProjectInProgress); err != nil {
			return nil, err
		}
		return []notify.Input{{
			UserID:  p.ClientID,
			Title:   "Work started",
			Message: fmt.Sprintf("Work on %q has started.", p.Title),
			Link:    projectLink(p.ID),
		}}, nil
	})
}

func funded(ctx context.Context, st store.Store, projectID uint) (bool, error) {
	payments, err := st.ListPaymentsByProject(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("list payments: %w", err)
	}
	return lo.SomeBy(payments, func(p *model.Payment) bool {
		return p.FundsProject() && p.Status == model.PaymentEscrowed
	}), nil
}

type CompleteInput struct {
	RepositoryURL string
	HostingURL    string
}

// Complete submits the finished work. Projects with hosting also need the
// live site URL.
func (s *Service) Complete(ctx context.Context, developer *model.User, id uint, in CompleteInput) (*model.Project, error) {
	repo := strings.TrimSpace(in.RepositoryURL)
	hosting := strings.TrimSpace(in.HostingURL)
	if err := checkURL("repository URL", repo, true); err != nil {
		return nil, err
	}
	if err := checkURL("hosting URL", hosting, false); err != nil {
		return nil, err
	}
	return s.commit(ctx, id, func(st store.Store, p *model.Project) ([]notify.Input, error) {
		if !assigned(developer, p) {
			return nil, fmt.Errorf("%w: not the assigned developer", ErrForbidden)
		}
		if p.Status != model.ProjectInProgress {
			return nil, fmt.Errorf("%w: project is %s", ErrConflict, p.Status)
		}
		if p.IncludeHosting && hosting == "" {
			return nil, fmt.Errorf("%w: hosting URL is required for hosted projects", ErrInvalidInput)
		}
		now := s.now()
		p.RepositoryURL = &repo
		if hosting != "" {
			p.HostingURL = &hosting
		}
		p.CompletedAt = &now
		if err := s.move(ctx, st, p, model.ProjectCompleted); err != nil {
			return nil, err
		}
		return []notify.Input{{
			UserID:  p.ClientID,
			Type:    model.NotificationSuccess,
			Title:   "Project completed",
			Message: fmt.Sprintf("%q is ready for your review.", p.Title),
			Link:    projectLink(p.ID),
		}}, nil
	})
}

func checkURL(name, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an http(s) URL", ErrInvalidInput, name)
	}
	return nil
}

// AcceptDelivery closes the project for its client and releases the escrow
// to the developer in the same transaction.
func (s *Service) AcceptDelivery(ctx context.Context, client *model.User, id uint) (*model.Project, error) {
	return s.commit(ctx, id, func(st store.Store, p *model.Project) ([]notify.Input, error) {
		if p.ClientID != client.ID {
			return nil, fmt.Errorf("%w: not the project owner", ErrForbidden)
		}
		if p.Status != model.ProjectCompleted {
			return nil, fmt.Errorf("%w: project is %s", ErrConflict, p.Status)
		}
		now := s.now()
		p.DeliveredAt = &now
		if err := s.move(ctx, st, p, model.ProjectDelivered); err != nil {
			return nil, err
		}
		released, err := s.releaser.Release(ctx, st, p.ID)
		if err != nil {
			return nil, err
		}
		total := lo.SumBy(released, func(p *model.Payment) float64 { return p.Amount })
		if p.DeveloperID == nil {
			return nil, nil
		}
		return []notify.Input{{
			UserID:  *p.DeveloperID,
			Type:    model.NotificationSuccess,
			Title:   "Delivery accepted",
			Message: fmt.Sprintf("The client accepted %q. %.2f was released from escrow.", p.Title, total),
			Link:    projectLink(p.ID),
		}}, nil
	})
}

// Cancel stops a project. The owning client may cancel before any payment is
// escrowed; admins may cancel any project that is not finished.
func (s *Service) Cancel(ctx context.Context, actor *model.User, id uint, reason string) (*model.Project, error) {
	return s.commit(ctx, id, func(st store.Store, p *model.Project) ([]notify.Input, error) {
		switch {
		case actor.Role == model.RoleAdmin:
			if p.Status.Terminal() {
				return nil, fmt.Errorf("%w: project is %s", ErrConflict, p.Status)
			}
		case p.ClientID == actor.ID:
			if p.Status != model.ProjectPendingReview && p.Status != model.ProjectApproved {
				return nil, fmt.Errorf("%w: project is %s", ErrConflict, p.Status)
			}
			paid, err := funded(ctx, st, p.ID)
			if err != nil {
				return nil, err
			}
			if paid {
				return nil, fmt.Errorf("%w: a payment is held in escrow", ErrConflict)
			}
		default:
			return nil, fmt.Errorf("%w: only the owner or an admin can cancel", ErrForbidden)
		}

		now := s.now()
		p.CancelledAt = &now
		if err := s.move(ctx, st, p, model.ProjectCancelled); err != nil {
			return nil, err
		}

		msg := fmt.Sprintf("%q was cancelled.", p.Title)
		if reason = strings.TrimSpace(reason); reason != "" {
			msg += " Reason: " + reason
		}
		recipients := []uint{p.ClientID}
		if p.DeveloperID != nil {
			recipients = append(recipients, *p.DeveloperID)
		}
		recipients = lo.Without(recipients, actor.ID)
		return lo.Map(recipients, func(uid uint, _ int) notify.Input {
			return notify.Input{
				UserID:  uid,
				Type:    model.NotificationWarning,
				Title:   "Project cancelled",
				Message: msg,
				Link:    projectLink(p.ID),
			}
		}), nil
	})
}

// Statuses lists every project status in lifecycle order.
var Statuses = []model.ProjectStatus{
	model.ProjectPendingReview, model.ProjectApproved, model.ProjectInProgress,
	model.ProjectCompleted, model.ProjectDelivered, model.ProjectCancelled,
}

// RefreshStatusGauge publishes the number of projects per status and
// returns the counts.
func (s *Service) RefreshStatusGauge(ctx context.Context) (map[model.ProjectStatus]int64, error) {
	counts, err := s.store.CountProjectsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, status := range Statuses {
		monitor.ProjectsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	return counts, nil
}

// commit loads the project inside a transaction, applies fn and records the
// returned notifications in the same transaction. They are delivered after
// the commit.
func (s *Service) commit(
	ctx context.Context, id uint, fn func(st store.Store, p *model.Project) ([]notify.Input, error),
) (*model.Project, error) {
	var (
		project *model.Project
		pending []*model.Notification
	)
	err := s.store.Transaction(ctx, func(st store.Store) error {
		p, err := s.load(ctx, st, id)
		if err != nil {
			return err
		}
		notices, err := fn(st, p)
		if err != nil {
			return err
		}
		for _, in := range notices {
			n, err := s.notifier.Record(ctx, st, in)
			if err != nil {
				return err
			}
			pending = append(pending, n)
		}
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, n := range pending {
		s.notifier.Deliver(ctx, n)
	}
	return project, nil
}

// move writes p with its new status if nobody changed the stored status.
func (s *Service) move(ctx context.Context, st store.Store, p *model.Project, to model.ProjectStatus) error {
	from := p.Status
	if from != to && !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s not allowed", ErrConflict, from, to)
	}
	p.Status = to
	ok, err := st.SaveProjectIfStatus(ctx, p, from)
	if err != nil {
		return fmt.Errorf("save project: %w", err)
	}
	if !ok {
		p.Status = from
		return ErrConflict
	}
	if from != to {
		monitor.ProjectTransitions.WithLabelValues(string(from), string(to)).Inc()
		logutils.ForProject(p.ID).Infof("status %s -> %s", from, to)
	}
	return nil
}

func (s *Service) load(ctx context.Context, st store.Store, id uint) (*model.Project, error) {
	p, err := st.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return p, nil
}

func assigned(developer *model.User, p *model.Project) bool {
	return developer.Role == model.RoleDeveloper && p.DeveloperID != nil && *p.DeveloperID == developer.ID
}

func projectLink(id uint) string {
	return fmt.Sprintf("/dashboard/projects/%d", id)
}
