// Package meeting creates screen sharing and video rooms for the two
// participants of a project. Rooms are hosted by an external conferencing
// service; only the room record is kept here.
package meeting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/pkg/apperr"
	"github.com/sitecraft/sitecraft/pkg/notify"
	"github.com/sitecraft/sitecraft/pkg/store"
)

var (
	ErrProjectNotFound = fmt.Errorf("project %w", apperr.ErrNotFound)
	ErrRoomNotFound    = fmt.Errorf("meeting room %w", apperr.ErrNotFound)
	ErrForbidden       = fmt.Errorf("meeting: %w", apperr.ErrForbidden)
	ErrInvalidInput    = fmt.Errorf("meeting: %w", apperr.ErrInvalid)
)

// Notifier is satisfied by notify.Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, in notify.Input) (*model.Notification, error)
}

type Service struct {
	store    store.Store
	notifier Notifier
	baseURL  string
}

func NewService(st store.Store, n Notifier, baseURL string) *Service {
	return &Service{store: st, notifier: n, baseURL: strings.TrimRight(baseURL, "/")}
}

// Create opens a room for the project. The host must be a participant and
// the other participant is invited.
func (s *Service) Create(ctx context.Context, host *model.User, projectID uint, kind model.MeetingKind) (*model.MeetingSession, error) {
	if kind == "" {
		kind = model.MeetingVideo
	}
	if kind != model.MeetingVideo && kind != model.MeetingScreen {
		return nil, fmt.Errorf("%w: unknown meeting kind %q", ErrInvalidInput, kind)
	}
	project, err := s.store.GetProject(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProjectNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if !project.IsParticipant(host.ID) {
		return nil, ErrForbidden
	}
	participant := project.Counterpart(host.ID)
	if participant == 0 {
		return nil, fmt.Errorf("%w: project has no developer yet", ErrInvalidInput)
	}

	room := fmt.Sprintf("sitecraft-%d-%s", project.ID, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	m := &model.MeetingSession{
		ProjectID:     project.ID,
		Kind:          kind,
		RoomName:      room,
		RoomURL:       s.baseURL + "/" + room,
		HostID:        host.ID,
		ParticipantID: participant,
	}
	if err := s.store.CreateMeeting(ctx, m); err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}

	label := "video call"
	if kind == model.MeetingScreen {
		label = "screen sharing session"
	}
	if _, err := s.notifier.Notify(ctx, notify.Input{
		UserID:  participant,
		Title:   "Meeting started",
		Message: fmt.Sprintf("%s started a %s for %q.", host.Name, label, project.Title),
		Link:    "/meetings/join?room=" + room,
	}); err != nil {
		return nil, err
	}
	return m, nil
}

// Join returns the room if the user was invited to it.
func (s *Service) Join(ctx context.Context, user *model.User, room string) (*model.MeetingSession, error) {
	m, err := s.store.GetMeetingByRoom(ctx, strings.TrimSpace(room))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	} else if err != nil {
		return nil, fmt.Errorf("load meeting: %w", err)
	}
	if m.HostID != user.ID && m.ParticipantID != user.ID {
		return nil, ErrForbidden
	}
	return m, nil
}
