// Package collab keeps the shared workspace of a project: requirement files
// from the client, deliverables from the developer and the conversation
// between the two. Blobs live in the object store; rows only point at them.
package collab

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/pkg/apperr"
	"github.com/sitecraft/sitecraft/pkg/logutils"
	"github.com/sitecraft/sitecraft/pkg/notify"
	"github.com/sitecraft/sitecraft/pkg/relay"
	"github.com/sitecraft/sitecraft/pkg/store"
)

var (
	ErrProjectNotFound = fmt.Errorf("project %w", apperr.ErrNotFound)
	ErrForbidden       = fmt.Errorf("collab: %w", apperr.ErrForbidden)
	ErrInvalidInput    = fmt.Errorf("collab: %w", apperr.ErrInvalid)
	ErrInvalidState    = fmt.Errorf("collab: %w", apperr.ErrConflict)
)

const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
	maxContentLength    = 5000
	previewLength       = 80
)

type Notifier interface {
	Notify(ctx context.Context, in notify.Input) (*model.Notification, error)
}

// Publisher is satisfied by relay.Hub.
type Publisher interface {
	PublishJSON(projectID, senderID uint, typ relay.EventType, payload any) (int, error)
}

type Service struct {
	store     store.Store
	notifier  Notifier
	publisher Publisher
	now       func() time.Time
}

func NewService(st store.Store, n Notifier, p Publisher) *Service {
	return &Service{store: st, notifier: n, publisher: p, now: time.Now}
}

// Attachment is the metadata of an uploaded object.
type Attachment struct {
	Name        string
	URL         string
	Size        int64
	ContentType string
	Description string
}

func (a Attachment) validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("%w: missing file name", ErrInvalidInput)
	}
	u, err := url.Parse(a.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: file url must be an http(s) url", ErrInvalidInput)
	}
	if a.Size < 0 {
		return fmt.Errorf("%w: negative file size", ErrInvalidInput)
	}
	return nil
}

// AddFile stores a requirement document. Only the owning client may add one.
func (s *Service) AddFile(ctx context.Context, client *model.User, projectID uint, in Attachment) (*model.ProjectFile, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if p.ClientID != client.ID {
		return nil, ErrForbidden
	}
	if p.Status.Terminal() {
		return nil, fmt.Errorf("%w: project is %s", ErrInvalidState, p.Status)
	}
	f := &model.ProjectFile{
		ProjectID:   p.ID,
		UploaderID:  client.ID,
		Name:        strings.TrimSpace(in.Name),
		URL:         in.URL,
		Size:        in.Size,
		ContentType: in.ContentType,
	}
	if err := s.store.CreateProjectFile(ctx, f); err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return f, nil
}

// ListFiles returns the requirement documents to everyone who can see the
// project, so developers can price an open project before accepting it.
func (s *Service) ListFiles(ctx context.Context, actor *model.User, projectID uint) ([]*model.ProjectFile, error) {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !p.VisibleTo(actor) {
		return nil, ErrForbidden
	}
	return s.store.ListProjectFiles(ctx, projectID)
}

// AddDeliverable stores a piece of finished work. Only the assigned
// developer may add one, and only while the work is ongoing or just done.
func (s *Service) AddDeliverable(
	ctx context.Context, developer *model.User, projectID uint, in Attachment,
) (*model.ProjectDeliverable, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if developer.Role != model.RoleDeveloper || p.DeveloperID == nil || *p.DeveloperID != developer.ID {
		return nil, ErrForbidden
	}
	if p.Status != model.ProjectInProgress && p.Status != model.ProjectCompleted {
		return nil, fmt.Errorf("%w: deliverables need an in_progress or completed project, got %s", ErrInvalidState, p.Status)
	}
	d := &model.ProjectDeliverable{
		ProjectID:   p.ID,
		DeveloperID: developer.ID,
		Name:        strings.TrimSpace(in.Name),
		URL:         in.URL,
		Size:        in.Size,
		ContentType: in.ContentType,
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		d.Description = &desc
	}
	if err := s.store.CreateDeliverable(ctx, d); err != nil {
		return nil, fmt.Errorf("create deliverable: %w", err)
	}
	if _, err := s.notifier.Notify(ctx, notify.Input{
		UserID:  p.ClientID,
		Title:   "New deliverable",
		Message: fmt.Sprintf("%s uploaded %q for %q.", developer.Name, d.Name, p.Title),
		Link:    fmt.Sprintf("/dashboard/projects/%d", p.ID),
	}); err != nil {
		logutils.ForProject(p.ID).Warnf("deliverable notification: %v", err)
	}
	return d, nil
}

func (s *Service) ListDeliverables(ctx context.Context, actor *model.User, projectID uint) ([]*model.ProjectDeliverable, error) {
	if _, err := s.readable(ctx, actor, projectID); err != nil {
		return nil, err
	}
	return s.store.ListDeliverables(ctx, projectID)
}

// MessageView is the wire form of a message, used both by the REST API and
// the relay.
type MessageView struct {
	ID         uint       `json:"id"`
	ProjectID  uint       `json:"projectId"`
	SenderID   uint       `json:"senderId"`
	ReceiverID uint       `json:"receiverId"`
	Content    string     `json:"content"`
	FileURL    *string    `json:"fileUrl,omitempty"`
	FileName   *string    `json:"fileName,omitempty"`
	ReadAt     *time.Time `json:"readAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func ViewMessage(m *model.Message) MessageView {
	return MessageView{
		ID:         m.ID,
		ProjectID:  m.ProjectID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		FileURL:    m.FileURL,
		FileName:   m.FileName,
		ReadAt:     m.ReadAt,
		CreatedAt:  m.CreatedAt,
	}
}

type MessageInput struct {
	Content  string
	FileURL  string
	FileName string
}

// PostMessage stores a message from one participant to the other, then
// relays it to the room and notifies the receiver.
func (s *Service) PostMessage(ctx context.Context, sender *model.User, projectID uint, in MessageInput) (*model.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && in.FileURL == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return nil, fmt.Errorf("%w: message longer than %d characters", ErrInvalidInput, maxContentLength)
	}
	if in.FileURL != "" {
		if err := (Attachment{Name: lo.Ternary(in.FileName == "", "attachment", in.FileName), URL: in.FileURL}).validate(); err != nil {
			return nil, err
		}
	}
	p, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !p.IsParticipant(sender.ID) {
		return nil, ErrForbidden
	}
	receiver := p.Counterpart(sender.ID)
	if receiver == 0 {
		return nil, fmt.Errorf("%w: project has no developer yet", ErrInvalidState)
	}

	msg := &model.Message{
		ProjectID:  p.ID,
		SenderID:   sender.ID,
		ReceiverID: receiver,
		Content:    content,
	}
	if in.FileURL != "" {
		msg.FileURL = lo.ToPtr(in.FileURL)
		msg.FileName = lo.ToPtr(lo.Ternary(in.FileName == "", "attachment", in.FileName))
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	l := logutils.ForProject(p.ID)
	if _, err := s.publisher.PublishJSON(p.ID, sender.ID, relay.EventMessage, ViewMessage(msg)); err != nil {
		l.Warnf("relay message %d: %v", msg.ID, err)
	}
	if _, err := s.notifier.Notify(ctx, notify.Input{
		UserID:  receiver,
		Title:   fmt.Sprintf("New message from %s", sender.Name),
		Message: preview(msg),
		Link:    fmt.Sprintf("/dashboard/projects/%d/messages", p.ID),
	}); err != nil {
		l.Warnf("message notification: %v", err)
	}
	return msg, nil
}

func preview(msg *model.Message) string {
	if msg.Content == "" && msg.FileName != nil {
		return "Sent a file: " + *msg.FileName
	}
	runes := []rune(msg.Content)
	if len(runes) <= previewLength {
		return msg.Content
	}
	return string(runes[:previewLength]) + "..."
}

// ListMessages returns up to limit messages after afterID, oldest first.
func (s *Service) ListMessages(ctx context.Context, actor *model.User, projectID, afterID uint, limit int) ([]*model.Message, error) {
	if _, err := s.readable(ctx, actor, projectID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	limit = min(limit, MaxMessageLimit)
	return s.store.ListMessages(ctx, projectID, afterID, limit)
}

// MarkRead marks every message the reader received in the project as read
// and tells the room about it.
func (s *Service) MarkRead(ctx context.Context, reader *model.User, projectID uint) (int64, error) {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return 0, err
	}
	if !p.IsParticipant(reader.ID) {
		return 0, ErrForbidden
	}
	n, err := s.store.MarkMessagesRead(ctx, p.ID, reader.ID, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	if n > 0 {
		if _, err := s.publisher.PublishJSON(p.ID, reader.ID, relay.EventRead, map[string]int64{"count": n}); err != nil {
			logutils.ForProject(p.ID).Warnf("relay read receipt: %v", err)
		}
	}
	return n, nil
}

// CanJoin reports whether the user may subscribe to the project room.
func (s *Service) CanJoin(ctx context.Context, user *model.User, projectID uint) error {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return err
	}
	if !p.IsParticipant(user.ID) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) readable(ctx context.Context, actor *model.User, projectID uint) (*model.Project, error) {
	p, err := s.project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleAdmin && !p.IsParticipant(actor.ID) {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *Service) project(ctx context.Context, id uint) (*model.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return p, nil
}
