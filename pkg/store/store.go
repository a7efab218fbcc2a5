// Package store is the repository layer in front of the relational database.
// Services depend on the Store interface; the gorm implementation lives in
// gorm.go and an in-memory fake for tests in storetest.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/pkg/apperr"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = fmt.Errorf("record %w", apperr.ErrNotFound)

// Page selects a window of a list query. A zero Size means no limit.
type Page struct {
	Index int
	Size  int
}

func (p Page) Offset() int {
	if p.Index <= 0 || p.Size <= 0 {
		return 0
	}
	return p.Index * p.Size
}

// ProjectFilter narrows ListProjects. Zero values do not filter.
type ProjectFilter struct {
	ClientID    uint
	DeveloperID uint
	// IncludeOpen also returns pending_review projects nobody accepted yet,
	// together with the DeveloperID match.
	IncludeOpen bool
	Status      model.ProjectStatus
	Page        Page
}

type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id uint) (*model.User, error)
	GetUserByAuthID(ctx context.Context, authID string) (*model.User, error)
	ListUsers(ctx context.Context, role model.Role, page Page) ([]*model.User, int64, error)
}

type ProjectStore interface {
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id uint) (*model.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]*model.Project, int64, error)
	// SaveProjectIfStatus writes every column of project only when the stored
	// status still equals expected. It reports whether the row was written.
	SaveProjectIfStatus(ctx context.Context, project *model.Project, expected model.ProjectStatus) (bool, error)
	CountProjectsByStatus(ctx context.Context) (map[model.ProjectStatus]int64, error)
	// SharesProject reports whether both users participate in a common project.
	SharesProject(ctx context.Context, a, b uint) (bool, error)
}

type PaymentStore interface {
	CreatePayment(ctx context.Context, payment *model.Payment) error
	GetPayment(ctx context.Context, id uint) (*model.Payment, error)
	GetPaymentByReference(ctx context.Context, reference string) (*model.Payment, error)
	ListPaymentsByProject(ctx context.Context, projectID uint) ([]*model.Payment, error)
	// ListPendingPayments returns pending payments created before the given time.
	ListPendingPayments(ctx context.Context, createdBefore time.Time) ([]*model.Payment, error)
	UpdatePayment(ctx context.Context, payment *model.Payment) error
	// SavePaymentIfStatus is the payment counterpart of SaveProjectIfStatus.
	SavePaymentIfStatus(ctx context.Context, payment *model.Payment, expected model.PaymentStatus) (bool, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID uint, unreadOnly bool, page Page) ([]*model.Notification, int64, error)
	// MarkNotificationsRead marks the given notifications of the user as read,
	// or all of them when ids is empty.
	MarkNotificationsRead(ctx context.Context, userID uint, ids []uint, at time.Time) (int64, error)
}

type MessageStore interface {
	CreateMessage(ctx context.Context, msg *model.Message) error
	// ListMessages returns messages with id > afterID in creation order.
	ListMessages(ctx context.Context, projectID, afterID uint, limit int) ([]*model.Message, error)
	MarkMessagesRead(ctx context.Context, projectID, receiverID uint, at time.Time) (int64, error)
}

type FileStore interface {
	CreateProjectFile(ctx context.Context, f *model.ProjectFile) error
	ListProjectFiles(ctx context.Context, projectID uint) ([]*model.ProjectFile, error)
	CreateDeliverable(ctx context.Context, d *model.ProjectDeliverable) error
	ListDeliverables(ctx context.Context, projectID uint) ([]*model.ProjectDeliverable, error)
}

type MeetingStore interface {
	CreateMeeting(ctx context.Context, m *model.MeetingSession) error
	GetMeetingByRoom(ctx context.Context, room string) (*model.MeetingSession, error)
}

// Store is the full repository. Transaction runs fn against a Store bound to
// a single database transaction; returning an error rolls it back.
type Store interface {
	UserStore
	ProjectStore
	PaymentStore
	NotificationStore
	MessageStore
	FileStore
	MeetingStore

	Transaction(ctx context.Context, fn func(tx Store) error) error
}
