// Package storetest provides an in-memory store.Store for unit tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/pkg/store"
)

type tables struct {
	users         map[uint]model.User
	projects      map[uint]model.Project
	payments      map[uint]model.Payment
	notifications map[uint]model.Notification
	messages      map[uint]model.Message
	files         map[uint]model.ProjectFile
	deliverables  map[uint]model.ProjectDeliverable
	meetings      map[uint]model.MeetingSession
}

func (t *tables) clone() *tables {
	return &tables{
		users:         cloneMap(t.users),
		projects:      cloneMap(t.projects),
		payments:      cloneMap(t.payments),
		notifications: cloneMap(t.notifications),
		messages:      cloneMap(t.messages),
		files:         cloneMap(t.files),
		deliverables:  cloneMap(t.deliverables),
		meetings:      cloneMap(t.meetings),
	}
}

func cloneMap[T any](m map[uint]T) map[uint]T {
	out := make(map[uint]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store keeps every table in maps. It is safe for concurrent use. Failures
// can be injected per method name with FailOn.
type Store struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	t      *tables
	nextID uint
	fail   map[string]error
	now    func() time.Time
}

func New() *Store {
	return &Store{
		t: &tables{
			users:         map[uint]model.User{},
			projects:      map[uint]model.Project{},
			payments:      map[uint]model.Payment{},
			notifications: map[uint]model.Notification{},
			messages:      map[uint]model.Message{},
			files:         map[uint]model.ProjectFile{},
			deliverables:  map[uint]model.ProjectDeliverable{},
			meetings:      map[uint]model.MeetingSession{},
		},
		fail: map[string]error{},
		now:  time.Now,
	}
}

// FailOn makes the named method return err until cleared with a nil err.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, method)
		return
	}
	s.fail[method] = err
}

// SetClock replaces the clock used for created/updated timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) failed(method string) error {
	return s.fail[method]
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

func (s *Store) stampModel(id *uint, created, updated *time.Time) {
	now := s.now()
	if *id == 0 {
		*id = s.id()
	}
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

// Transaction runs fn against the same store and restores the previous
// state when fn fails. Transactions are serialized.
func (s *Store) Transaction(_ context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.t.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.t = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// ---- inspection helpers for tests ----

// Notifications returns every notification row in insertion order.
func (s *Store) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.t.notifications, func(n model.Notification) uint { return n.ID })
}

// Payments returns every payment row in insertion order.
func (s *Store) Payments() []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.t.payments, func(p model.Payment) uint { return p.ID })
}

func sortedValues[T any](m map[uint]T, id func(T) uint) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func paginate[T any](list []T, page store.Page) []T {
	if page.Size <= 0 {
		return list
	}
	start := page.Offset()
	if start >= len(list) {
		return []T{}
	}
	end := start + page.Size
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("CreateUser"); err != nil {
		return err
	}
	s.stampModel(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	s.t.users[user.ID] = *user
	return nil
}

func (s *Store) UpdateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("UpdateUser"); err != nil {
		return err
	}
	s.stampModel(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	s.t.users[user.ID] = *user
	return nil
}

func (s *Store) GetUser(_ context.Context, id uint) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("GetUser"); err != nil {
		return nil, err
	}
	u, ok := s.t.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByAuthID(_ context.Context, authID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.t.users {
		if u.AuthID == authID {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, role model.Role, page store.Page) ([]*model.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.User
	for _, u := range sortedValues(s.t.users, func(u model.User) uint { return u.ID }) {
		if role == "" || u.Role == role {
			out = append(out, &u)
		}
	}
	return paginate(out, page), int64(len(out)), nil
}

// ---- projects ----

func (s *Store) withParties(p model.Project) *model.Project {
	if u, ok := s.t.users[p.ClientID]; ok {
		p.Client = u
	}
	p.Developer = nil
	if p.DeveloperID != nil {
		if u, ok := s.t.users[*p.DeveloperID]; ok {
			p.Developer = &u
		}
	}
	return &p
}

func (s *Store) CreateProject(_ context.Context, project *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("CreateProject"); err != nil {
		return err
	}
	s.stampModel(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	s.t.projects[project.ID] = *project
	return nil
}

func (s *Store) GetProject(_ context.Context, id uint) (*model.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("GetProject"); err != nil {
		return nil, err
	}
	p, ok := s.t.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.withParties(p), nil
}

// Project returns the stored row without preloads, for assertions.
func (s *Store) Project(id uint) model.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.projects[id]
}

func (s *Store) ListProjects(_ context.Context, f store.ProjectFilter) ([]*model.Project, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := sortedValues(s.t.projects, func(p model.Project) uint { return p.ID })
	var out []*model.Project
	for i := len(all) - 1; i >= 0; i-- {
		p := all[i]
		if f.ClientID != 0 && p.ClientID != f.ClientID {
			continue
		}
		if f.DeveloperID != 0 {
			assigned := p.DeveloperID != nil && *p.DeveloperID == f.DeveloperID
			open := f.IncludeOpen && p.Status == model.ProjectPendingReview && p.DeveloperID == nil
			if !assigned && !open {
				continue
			}
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, s.withParties(p))
	}
	return paginate(out, f.Page), int64(len(out)), nil
}

func (s *Store) SaveProjectIfStatus(_ context.Context, project *model.Project, expected model.ProjectStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("SaveProjectIfStatus"); err != nil {
		return false, err
	}
	cur, ok := s.t.projects[project.ID]
	if !ok || cur.Status != expected {
		return false, nil
	}
	project.UpdatedAt = s.now()
	row := *project
	row.Client = model.User{}
	row.Developer = nil
	s.t.projects[project.ID] = row
	return true, nil
}

func (s *Store) CountProjectsByStatus(_ context.Context) (map[model.ProjectStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[model.ProjectStatus]int64{}
	for _, p := range s.t.projects {
		out[p.Status]++
	}
	return out, nil
}

func (s *Store) SharesProject(_ context.Context, a, b uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.t.projects {
		if p.DeveloperID == nil {
			continue
		}
		d := *p.DeveloperID
		if (p.ClientID == a && d == b) || (p.ClientID == b && d == a) {
			return true, nil
		}
	}
	return false, nil
}

// ---- payments ----

func (s *Store) CreatePayment(_ context.Context, payment *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("CreatePayment"); err != nil {
		return err
	}
	s.stampModel(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	row := *payment
	row.Project = model.Project{}
	s.t.payments[payment.ID] = row
	return nil
}

func (s *Store) GetPayment(_ context.Context, id uint) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.t.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetPaymentByReference(_ context.Context, reference string) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.t.payments {
		if p.Reference == reference {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListPaymentsByProject(_ context.Context, projectID uint) ([]*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Payment
	for _, p := range sortedValues(s.t.payments, func(p model.Payment) uint { return p.ID }) {
		if p.ProjectID == projectID {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (s *Store) ListPendingPayments(_ context.Context, createdBefore time.Time) ([]*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Payment
	for _, p := range sortedValues(s.t.payments, func(p model.Payment) uint { return p.ID }) {
		if p.Status == model.PaymentPending && p.CreatedAt.Before(createdBefore) {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (s *Store) UpdatePayment(_ context.Context, payment *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("UpdatePayment"); err != nil {
		return err
	}
	s.stampModel(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	row := *payment
	row.Project = model.Project{}
	s.t.payments[payment.ID] = row
	return nil
}

func (s *Store) SavePaymentIfStatus(_ context.Context, payment *model.Payment, expected model.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("SavePaymentIfStatus"); err != nil {
		return false, err
	}
	cur, ok := s.t.payments[payment.ID]
	if !ok || cur.Status != expected {
		return false, nil
	}
	payment.UpdatedAt = s.now()
	row := *payment
	row.Project = model.Project{}
	s.t.payments[payment.ID] = row
	return true, nil
}

// ---- notifications ----

func (s *Store) CreateNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("CreateNotification"); err != nil {
		return err
	}
	s.stampModel(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	s.t.notifications[n.ID] = *n
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID uint, unreadOnly bool, page store.Page) ([]*model.Notification, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := sortedValues(s.t.notifications, func(n model.Notification) uint { return n.ID })
	var out []*model.Notification
	for i := len(all) - 1; i >= 0; i-- {
		n := all[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, &n)
	}
	return paginate(out, page), int64(len(out)), nil
}

func (s *Store) MarkNotificationsRead(_ context.Context, userID uint, ids []uint, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[uint]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var n int64
	for id, row := range s.t.notifications {
		if row.UserID != userID || row.IsRead {
			continue
		}
		if len(ids) > 0 && !wanted[id] {
			continue
		}
		row.IsRead = true
		row.ReadAt = &at
		s.t.notifications[id] = row
		n++
	}
	return n, nil
}

// ---- messages ----

func (s *Store) CreateMessage(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failed("CreateMessage"); err != nil {
		return err
	}
	s.stampModel(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)
	row := *msg
	row.Sender = model.User{}
	s.t.messages[msg.ID] = row
	return nil
}

func (s *Store) ListMessages(_ context.Context, projectID, afterID uint, limit int) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Message
	for _, m := range sortedValues(s.t.messages, func(m model.Message) uint { return m.ID }) {
		if m.ProjectID != projectID || m.ID <= afterID {
			continue
		}
		m.Sender = s.t.users[m.SenderID]
		out = append(out, &m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkMessagesRead(_ context.Context, projectID, receiverID uint, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.t.messages {
		if m.ProjectID == projectID && m.ReceiverID == receiverID && m.ReadAt == nil {
			m.ReadAt = &at
			s.t.messages[id] = m
			n++
		}
	}
	return n, nil
}

// ---- files ----

func (s *Store) CreateProjectFile(_ context.Context, f *model.ProjectFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stampModel(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	s.t.files[f.ID] = *f
	return nil
}

func (s *Store) ListProjectFiles(_ context.Context, projectID uint) ([]*model.ProjectFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.ProjectFile
	for _, f := range sortedValues(s.t.files, func(f model.ProjectFile) uint { return f.ID }) {
		if f.ProjectID == projectID {
			out = append(out, &f)
		}
	}
	return out, nil
}

func (s *Store) CreateDeliverable(_ context.Context, d *model.ProjectDeliverable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stampModel(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	s.t.deliverables[d.ID] = *d
	return nil
}

func (s *Store) ListDeliverables(_ context.Context, projectID uint) ([]*model.ProjectDeliverable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.ProjectDeliverable
	for _, d := range sortedValues(s.t.deliverables, func(d model.ProjectDeliverable) uint { return d.ID }) {
		if d.ProjectID == projectID {
			out = append(out, &d)
		}
	}
	return out, nil
}

// ---- meetings ----

func (s *Store) CreateMeeting(_ context.Context, m *model.MeetingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stampModel(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	s.t.meetings[m.ID] = *m
	return nil
}

func (s *Store) GetMeetingByRoom(_ context.Context, room string) (*model.MeetingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.t.meetings {
		if m.RoomName == room {
			return &m, nil
		}
	}
	return nil, store.ErrNotFound
}

var _ store.Store = (*Store)(nil)
