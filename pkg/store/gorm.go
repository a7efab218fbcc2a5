package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sitecraft/sitecraft/dao/model"
)

// DBStore implements Store on top of gorm.
type DBStore struct {
	db *gorm.DB
}

func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DBStore{db: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func paginate(q *gorm.DB, page Page) *gorm.DB {
	if page.Size > 0 {
		q = q.Offset(page.Offset()).Limit(page.Size)
	}
	return q
}

// ---- users ----

func (s *DBStore) CreateUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *DBStore) UpdateUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

func (s *DBStore) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *DBStore) GetUserByAuthID(ctx context.Context, authID string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("auth_id = ?", authID).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *DBStore) ListUsers(ctx context.Context, role model.Role, page Page) ([]*model.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.User{})
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var users []*model.User
	err := paginate(q.Order("id DESC"), page).Find(&users).Error
	return users, count, err
}

// ---- projects ----

func (s *DBStore) CreateProject(ctx context.Context, project *model.Project) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(project).Error
}

func (s *DBStore) GetProject(ctx context.Context, id uint) (*model.Project, error) {
	var project model.Project
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Developer").
		First(&project, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &project, nil
}

func (s *DBStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]*model.Project, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Project{})
	if filter.ClientID != 0 {
		q = q.Where("client_id = ?", filter.ClientID)
	}
	if filter.DeveloperID != 0 {
		if filter.IncludeOpen {
			q = q.Where("developer_id = ? OR (status = ? AND developer_id IS NULL)",
				filter.DeveloperID, model.ProjectPendingReview)
		} else {
			q = q.Where("developer_id = ?", filter.DeveloperID)
		}
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var projects []*model.Project
	err := paginate(q.Order("id DESC"), filter.Page).
		Preload("Client").
		Preload("Developer").
		Find(&projects).Error
	return projects, count, err
}

func (s *DBStore) SaveProjectIfStatus(ctx context.Context, project *model.Project, expected model.ProjectStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(project).
		Where("status = ?", expected).
		Select("*").
		Omit(clause.Associations, "created_at").
		Updates(project)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *DBStore) CountProjectsByStatus(ctx context.Context) (map[model.ProjectStatus]int64, error) {
	var rows []struct {
		Status model.ProjectStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&model.Project{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.ProjectStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *DBStore) SharesProject(ctx context.Context, a, b uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("(client_id = ? AND developer_id = ?) OR (client_id = ? AND developer_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

// ---- payments ----

func (s *DBStore) CreatePayment(ctx context.Context, payment *model.Payment) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(payment).Error
}

func (s *DBStore) GetPayment(ctx context.Context, id uint) (*model.Payment, error) {
	var payment model.Payment
	if err := s.db.WithContext(ctx).First(&payment, id).Error; err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (s *DBStore) GetPaymentByReference(ctx context.Context, reference string) (*model.Payment, error) {
	var payment model.Payment
	if err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&payment).Error; err != nil {
		return nil, translate(err)
	}
	return &payment, nil
}

func (s *DBStore) ListPaymentsByProject(ctx context.Context, projectID uint) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&payments).Error
	return payments, err
}

func (s *DBStore) ListPendingPayments(ctx context.Context, createdBefore time.Time) ([]*model.Payment, error) {
	var payments []*model.Payment
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.PaymentPending, createdBefore).
		Order("id ASC").
		Find(&payments).Error
	return payments, err
}

func (s *DBStore) UpdatePayment(ctx context.Context, payment *model.Payment) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Save(payment).Error
}

func (s *DBStore) SavePaymentIfStatus(ctx context.Context, payment *model.Payment, expected model.PaymentStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(payment).
		Where("status = ?", expected).
		Select("*").
		Omit(clause.Associations, "created_at").
		Updates(payment)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ---- notifications ----

func (s *DBStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *DBStore) ListNotifications(ctx context.Context, userID uint, unreadOnly bool, page Page) ([]*model.Notification, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.Notification
	err := paginate(q.Order("id DESC"), page).Find(&list).Error
	return list, count, err
}

func (s *DBStore) MarkNotificationsRead(ctx context.Context, userID uint, ids []uint, at time.Time) (int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ? AND is_read = ?", userID, false)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Updates(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

// ---- messages ----

func (s *DBStore) CreateMessage(ctx context.Context, msg *model.Message) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(msg).Error
}

func (s *DBStore) ListMessages(ctx context.Context, projectID, afterID uint, limit int) ([]*model.Message, error) {
	q := s.db.WithContext(ctx).Where("project_id = ? AND id > ?", projectID, afterID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []*model.Message
	err := q.Preload("Sender").Find(&msgs).Error
	return msgs, err
}

func (s *DBStore) MarkMessagesRead(ctx context.Context, projectID, receiverID uint, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("project_id = ? AND receiver_id = ? AND read_at IS NULL", projectID, receiverID).
		Update("read_at", at)
	return res.RowsAffected, res.Error
}

// ---- files ----

func (s *DBStore) CreateProjectFile(ctx context.Context, f *model.ProjectFile) error {
	return s.db.WithContext(ctx).Create(f).Error
}

func (s *DBStore) ListProjectFiles(ctx context.Context, projectID uint) ([]*model.ProjectFile, error) {
	var files []*model.ProjectFile
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&files).Error
	return files, err
}

func (s *DBStore) CreateDeliverable(ctx context.Context, d *model.ProjectDeliverable) error {
	return s.db.WithContext(ctx).Create(d).Error
}

func (s *DBStore) ListDeliverables(ctx context.Context, projectID uint) ([]*model.ProjectDeliverable, error) {
	var list []*model.ProjectDeliverable
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&list).Error
	return list, err
}

// ---- meetings ----

func (s *DBStore) CreateMeeting(ctx context.Context, m *model.MeetingSession) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *DBStore) GetMeetingByRoom(ctx context.Context, room string) (*model.MeetingSession, error) {
	var m model.MeetingSession
	if err := s.db.WithContext(ctx).Where("room_name = ?", room).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}
