package meeting

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/pkg/notify"
	"github.com/sitecraft/sitecraft/pkg/store/storetest"
)

func TestCreateAndJoin(t *testing.T) {
	ctx := context.Background()
	st := storetest.New()
	client := &model.User{AuthID: "c", Name: "Ada", Role: model.RoleClient}
	dev := &model.User{AuthID: "d", Name: "Linus", Role: model.RoleDeveloper}
	stranger := &model.User{AuthID: "s", Name: "Mallory", Role: model.RoleDeveloper}
	for _, u := range []*model.User{client, dev, stranger} {
		require.NoError(t, st.CreateUser(ctx, u))
	}
	open := &model.Project{ClientID: client.ID, Title: "Open", Requirements: "r", Status: model.ProjectPendingReview}
	require.NoError(t, st.CreateProject(ctx, open))
	project := &model.Project{ClientID: client.ID, DeveloperID: &dev.ID, Title: "Shop", Requirements: "r", Status: model.ProjectInProgress}
	require.NoError(t, st.CreateProject(ctx, project))

	svc := NewService(st, notify.NewDispatcher(st, nil, nil, "", time.Second), "https://meet.example.com/")

	m, err := svc.Create(ctx, dev, project.ID, model.MeetingScreen)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^sitecraft-\d+-[0-9a-f]{8}$`), m.RoomName)
	assert.Equal(t, "https://meet.example.com/"+m.RoomName, m.RoomURL)
	assert.Equal(t, dev.ID, m.HostID)
	assert.Equal(t, client.ID, m.ParticipantID)

	notes := st.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, client.ID, notes[0].UserID)
	assert.Contains(t, *notes[0].Link, m.RoomName)

	joined, err := svc.Join(ctx, client, m.RoomName)
	require.NoError(t, err)
	assert.Equal(t, m.ID, joined.ID)

	_, err = svc.Join(ctx, stranger, m.RoomName)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Join(ctx, client, "sitecraft-0-deadbeef")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = svc.Create(ctx, stranger, project.ID, model.MeetingVideo)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Create(ctx, client, open.ID, model.MeetingVideo)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, client, project.ID, "hologram")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, client, 999, "")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}
