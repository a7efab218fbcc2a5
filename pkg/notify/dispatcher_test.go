package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/pkg/gateway/email"
	"github.com/sitecraft/sitecraft/pkg/store"
	"github.com/sitecraft/sitecraft/pkg/store/storetest"
)

type smsCall struct{ to, text string }

type fakeSMS struct {
	mu    sync.Mutex
	calls []smsCall
	err   error
	panic bool
}

func (f *fakeSMS) Send(_ context.Context, to, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panic {
		panic("sms provider exploded")
	}
	f.calls = append(f.calls, smsCall{to, message})
	return f.err
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []email.Message
}

func (f *fakeEmail) Send(_ context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func newUser(t *testing.T, st *storetest.Store, role model.Role, phone string) *model.User {
	t.Helper()
	u := &model.User{
		AuthID:   "auth|" + string(role) + phone,
		Name:     "Ada",
		Email:    string(role) + "@example.com",
		Role:     role,
		SMSOptIn: true,
	}
	if phone != "" {
		u.Phone = lo.ToPtr(phone)
	}
	require.NoError(t, st.CreateUser(context.Background(), u))
	return u
}

func TestNotifyDeliversToClients(t *testing.T) {
	st := storetest.New()
	sms, mail := &fakeSMS{}, &fakeEmail{}
	d := NewDispatcher(st, sms, mail, "https://sitecraft.example.com/", time.Second)
	client := newUser(t, st, model.RoleClient, "08031234567")

	n, err := d.Notify(context.Background(), Input{
		UserID:  client.ID,
		Title:   "Project accepted",
		Message: "A developer accepted your project.",
		Link:    "/dashboard/projects/7",
	})
	require.NoError(t, err)
	assert.Equal(t, model.NotificationInfo, n.Type)

	require.Len(t, sms.calls, 1)
	assert.Equal(t, "08031234567", sms.calls[0].to)
	assert.Equal(t, "SiteCraft: Project accepted - A developer accepted your project.", sms.calls[0].text)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "Project accepted", mail.sent[0].Subject)
	assert.Contains(t, mail.sent[0].HTML, "https://sitecraft.example.com/dashboard/projects/7")
}

func TestDeliveryFailuresKeepTheRow(t *testing.T) {
	st := storetest.New()
	mail := &fakeEmail{}
	client := newUser(t, st, model.RoleClient, "08031234567")

	for _, sms := range []*fakeSMS{{err: errors.New("gateway down")}, {panic: true}} {
		d := NewDispatcher(st, sms, mail, "https://sitecraft.example.com", time.Second)
		assert.NotPanics(t, func() {
			_, err := d.Notify(context.Background(), Input{UserID: client.ID, Title: "Payment received"})
			assert.NoError(t, err)
		})
	}
	assert.Len(t, st.Notifications(), 2)
	assert.Len(t, mail.sent, 2, "email still goes out after an SMS failure")
}

func TestNoExternalDeliveryForDevelopers(t *testing.T) {
	st := storetest.New()
	sms, mail := &fakeSMS{}, &fakeEmail{}
	d := NewDispatcher(st, sms, mail, "https://sitecraft.example.com", time.Second)
	developer := newUser(t, st, model.RoleDeveloper, "08031234567")

	_, err := d.Notify(context.Background(), Input{UserID: developer.ID, Title: "New project"})
	require.NoError(t, err)
	assert.Empty(t, sms.calls)
	assert.Empty(t, mail.sent)
	assert.Len(t, st.Notifications(), 1)
}

func TestSMSRespectsOptIn(t *testing.T) {
	st := storetest.New()
	sms := &fakeSMS{}
	d := NewDispatcher(st, sms, nil, "https://sitecraft.example.com", time.Second)
	client := newUser(t, st, model.RoleClient, "08031234567")
	client.SMSOptIn = false
	require.NoError(t, st.UpdateUser(context.Background(), client))
	noPhone := newUser(t, st, model.RoleClient, "")

	for _, id := range []uint{client.ID, noPhone.ID} {
		_, err := d.Notify(context.Background(), Input{UserID: id, Title: "Hello"})
		require.NoError(t, err)
	}
	assert.Empty(t, sms.calls)
}

func TestNotifyValidation(t *testing.T) {
	st := storetest.New()
	d := NewDispatcher(st, nil, nil, "", time.Second)
	client := newUser(t, st, model.RoleClient, "")

	_, err := d.Notify(context.Background(), Input{Title: "No user"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = d.Notify(context.Background(), Input{UserID: client.ID, Title: "  "})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = d.Notify(context.Background(), Input{UserID: client.ID, Title: "x", Type: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, st.Notifications())

	st.FailOn("CreateNotification", errors.New("disk full"))
	_, err = d.Notify(context.Background(), Input{UserID: client.ID, Title: "x"})
	assert.Error(t, err)
}

func TestListAndMarkRead(t *testing.T) {
	st := storetest.New()
	d := NewDispatcher(st, nil, nil, "", time.Second)
	client := newUser(t, st, model.RoleClient, "")
	ctx := context.Background()
	for _, title := range []string{"one", "two", "three"} {
		_, err := d.Notify(ctx, Input{UserID: client.ID, Title: title})
		require.NoError(t, err)
	}

	list, total, err := d.List(ctx, client.ID, true, store.Page{Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 2)

	n, err := d.MarkRead(ctx, client.ID, []uint{list[0].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = d.MarkRead(ctx, client.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, total, err = d.List(ctx, client.ID, true, store.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
