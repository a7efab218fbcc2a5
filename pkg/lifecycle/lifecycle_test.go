package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/pkg/notify"
	"github.com/sitecraft/sitecraft/pkg/payment"
	"github.com/sitecraft/sitecraft/pkg/store/storetest"
)

type fixture struct {
	st        *storetest.Store
	svc       *Service
	client    *model.User
	developer *model.User
	rival     *model.User
	admin     *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.New()
	f := &fixture{
		st:        st,
		client:    &model.User{AuthID: "c", Name: "Ada", Email: "ada@example.com", Role: model.RoleClient},
		developer: &model.User{AuthID: "d", Name: "Linus", Email: "linus@example.com", Role: model.RoleDeveloper},
		rival:     &model.User{AuthID: "r", Name: "Ken", Email: "ken@example.com", Role: model.RoleDeveloper},
		admin:     &model.User{AuthID: "a", Name: "Grace", Email: "grace@example.com", Role: model.RoleAdmin},
	}
	for _, u := range []*model.User{f.client, f.developer, f.rival, f.admin} {
		require.NoError(t, st.CreateUser(context.Background(), u))
	}
	dispatcher := notify.NewDispatcher(st, nil, nil, "https://sitecraft.example.com", time.Second)
	orchestrator := payment.NewOrchestrator(st, nil, dispatcher, payment.Options{Currency: "NGN"})
	f.svc = NewService(st, dispatcher, orchestrator)
	return f
}

func (f *fixture) create(t *testing.T, hosting bool) *model.Project {
	t.Helper()
	p, err := f.svc.Create(context.Background(), f.client, CreateInput{
		Title:        "Bakery website",
		Requirements: "Menu, order form, gallery",
		EstimateInput: EstimateInput{
			PeopleCount:    1,
			IncludeHosting: hosting,
		},
	})
	require.NoError(t, err)
	return p
}

// escrow stores a verified payment for the project the way the payment
// orchestrator leaves it.
func (f *fixture) escrow(t *testing.T, projectID uint, typ model.PaymentType) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, f.st.CreatePayment(ctx, &model.Payment{
		ProjectID:   projectID,
		PayerID:     f.client.ID,
		BaseAmount:  2000,
		Amount:      payment.ChargeAmount(2000, typ),
		Currency:    "NGN",
		PaymentType: typ,
		Status:      model.PaymentEscrowed,
		Reference:   "SC-" + string(typ) + time.Now().Format("150405.000000000"),
		EscrowedAt:  &now,
	}))
	p := f.st.Project(projectID)
	if p.Status == model.ProjectApproved && typ != model.PaymentFinal {
		p.Status = model.ProjectInProgress
		p.StartedAt = &now
		ok, err := f.st.SaveProjectIfStatus(ctx, &p, model.ProjectApproved)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestEstimateCost(t *testing.T) {
	Convey("EstimateCost", t, func() {
		Convey("charges per person with documentation, hosting and extra files", func() {
			So(EstimateCost(EstimateInput{PeopleCount: 3, NeedsDocumentation: true, IncludeHosting: true, FileCount: 5}), ShouldEqual, 7500)
		})
		Convey("counts fewer than one person as one", func() {
			So(EstimateCost(EstimateInput{PeopleCount: 0}), ShouldEqual, 1500)
			So(EstimateCost(EstimateInput{PeopleCount: -2, NeedsDocumentation: true}), ShouldEqual, 2300)
		})
		Convey("includes three files for free", func() {
			So(EstimateCost(EstimateInput{PeopleCount: 1, FileCount: 3}), ShouldEqual, 1500)
			So(EstimateCost(EstimateInput{PeopleCount: 1, FileCount: 4}), ShouldEqual, 1750)
		})
	})
}

func TestCanTransition(t *testing.T) {
	Convey("CanTransition", t, func() {
		So(CanTransition(model.ProjectPendingReview, model.ProjectApproved), ShouldBeTrue)
		So(CanTransition(model.ProjectApproved, model.ProjectInProgress), ShouldBeTrue)
		So(CanTransition(model.ProjectInProgress, model.ProjectCompleted), ShouldBeTrue)
		So(CanTransition(model.ProjectCompleted, model.ProjectDelivered), ShouldBeTrue)
		So(CanTransition(model.ProjectPendingReview, model.ProjectCancelled), ShouldBeTrue)

		So(CanTransition(model.ProjectPendingReview, model.ProjectInProgress), ShouldBeFalse)
		So(CanTransition(model.ProjectApproved, model.ProjectDelivered), ShouldBeFalse)
		So(CanTransition(model.ProjectDelivered, model.ProjectCancelled), ShouldBeFalse)
		So(CanTransition(model.ProjectCancelled, model.ProjectPendingReview), ShouldBeFalse)
	})
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.client, CreateInput{
		Title:        "  Shop  ",
		Requirements: "Catalogue and checkout",
		EstimateInput: EstimateInput{
			PeopleCount: 3, NeedsDocumentation: true, IncludeHosting: true, FileCount: 5,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ProjectPendingReview, p.Status)
	assert.Equal(t, "Shop", p.Title)
	assert.InDelta(t, 7500, p.EstimatedCost, 0.001)
	assert.Nil(t, p.DeveloperID)

	_, err = f.svc.Create(ctx, f.developer, CreateInput{Title: "x", Requirements: "y"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Create(ctx, f.client, CreateInput{Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, false)

	accepted, err := f.svc.Accept(ctx, f.developer, p.ID, 2000, 10)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectApproved, accepted.Status)
	require.NotNil(t, accepted.DeveloperID)
	assert.Equal(t, f.developer.ID, *accepted.DeveloperID)
	assert.InDelta(t, 2000, *accepted.FinalCost, 0.001)
	assert.Equal(t, 10, *accepted.DurationDays)
	assert.NotNil(t, accepted.AcceptedAt)

	stored := f.st.Project(p.ID)
	assert.Equal(t, model.ProjectApproved, stored.Status)

	notes := f.st.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, f.client.ID, notes[0].UserID)

	_, err = f.svc.Accept(ctx, f.rival, p.ID, 1500, 5)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, f.developer.ID, *f.st.Project(p.ID).DeveloperID)
	assert.Len(t, f.st.Notifications(), 1)
}

func TestAcceptRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, false)

	_, err := f.svc.Accept(ctx, f.client, p.ID, 2000, 10)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Accept(ctx, f.developer, p.ID, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Accept(ctx, f.developer, p.ID, 2000, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Accept(ctx, f.developer, 999, 2000, 10)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.st.Notifications())
}

func TestConcurrentAccept(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, false)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, dev := range []*model.User{f.developer, f.rival} {
		wg.Add(1)
		go func(dev *model.User) {
			defer wg.Done()
			if _, err := f.svc.Accept(context.Background(), dev, p.ID, 2000, 10); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrConflict)
			}
		}(dev)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Len(t, f.st.Notifications(), 1)
}

func TestFullLifecycle(t *testing.T) {
	Convey("A project from acceptance to delivery", t, func() {
		f := newFixture(t)
		ctx := context.Background()
		p := f.create(t, true)

		_, err := f.svc.Accept(ctx, f.developer, p.ID, 2000, 10)
		So(err, ShouldBeNil)

		Convey("cannot start before the client pays", func() {
			_, err := f.svc.Start(ctx, f.developer, p.ID)
			So(err, ShouldWrap, ErrPaymentRequired)
		})

		Convey("after the initial payment is escrowed", func() {
			f.escrow(t, p.ID, model.PaymentInitial)

			Convey("start is a no-op for a started project", func() {
				started, err := f.svc.Start(ctx, f.developer, p.ID)
				So(err, ShouldBeNil)
				So(started.Status, ShouldEqual, model.ProjectInProgress)
			})

			Convey("another developer cannot complete it", func() {
				_, err := f.svc.Complete(ctx, f.rival, p.ID, CompleteInput{RepositoryURL: "https://git.example.com/bakery"})
				So(err, ShouldWrap, ErrForbidden)
			})

			Convey("completion needs the hosting URL", func() {
				_, err := f.svc.Complete(ctx, f.developer, p.ID, CompleteInput{RepositoryURL: "https://git.example.com/bakery"})
				So(err, ShouldWrap, ErrInvalidInput)
				So(f.st.Project(p.ID).Status, ShouldEqual, model.ProjectInProgress)
			})

			Convey("completion rejects non-http URLs", func() {
				_, err := f.svc.Complete(ctx, f.developer, p.ID, CompleteInput{
					RepositoryURL: "ftp://git.example.com/bakery",
					HostingURL:    "https://bakery.example.com",
				})
				So(err, ShouldWrap, ErrInvalidInput)
			})

			Convey("the client cannot cancel a funded project", func() {
				_, err := f.svc.Cancel(ctx, f.client, p.ID, "changed my mind")
				So(err, ShouldWrap, ErrConflict)
			})

			Convey("completing and accepting the delivery releases the escrow", func() {
				done, err := f.svc.Complete(ctx, f.developer, p.ID, CompleteInput{
					RepositoryURL: "https://git.example.com/bakery",
					HostingURL:    "https://bakery.example.com",
				})
				So(err, ShouldBeNil)
				So(done.Status, ShouldEqual, model.ProjectCompleted)
				So(*done.HostingURL, ShouldEqual, "https://bakery.example.com")

				f.escrow(t, p.ID, model.PaymentFinal)

				_, err = f.svc.AcceptDelivery(ctx, f.developer, p.ID)
				So(err, ShouldWrap, ErrForbidden)

				delivered, err := f.svc.AcceptDelivery(ctx, f.client, p.ID)
				So(err, ShouldBeNil)
				So(delivered.Status, ShouldEqual, model.ProjectDelivered)
				So(delivered.DeliveredAt, ShouldNotBeNil)

				payments := f.st.Payments()
				So(payments, ShouldHaveLength, 2)
				for _, pay := range payments {
					So(pay.Status, ShouldEqual, model.PaymentReleased)
				}

				notes := f.st.Notifications()
				So(notes[len(notes)-1].UserID, ShouldEqual, f.developer.ID)

				_, err = f.svc.AcceptDelivery(ctx, f.client, p.ID)
				So(err, ShouldWrap, ErrConflict)
			})
		})
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("client cancels an open project", func(t *testing.T) {
		f := newFixture(t)
		p := f.create(t, false)
		cancelled, err := f.svc.Cancel(ctx, f.client, p.ID, "")
		require.NoError(t, err)
		assert.Equal(t, model.ProjectCancelled, cancelled.Status)
		assert.Empty(t, f.st.Notifications(), "nobody else to tell")
	})

	t.Run("client cancel notifies the assigned developer", func(t *testing.T) {
		f := newFixture(t)
		p := f.create(t, false)
		_, err := f.svc.Accept(ctx, f.developer, p.ID, 2000, 10)
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, f.client, p.ID, "budget cut")
		require.NoError(t, err)
		notes := f.st.Notifications()
		last := notes[len(notes)-1]
		assert.Equal(t, f.developer.ID, last.UserID)
		assert.Contains(t, last.Message, "budget cut")
	})

	t.Run("admin cancels a funded project", func(t *testing.T) {
		f := newFixture(t)
		p := f.create(t, false)
		_, err := f.svc.Accept(ctx, f.developer, p.ID, 2000, 10)
		require.NoError(t, err)
		f.escrow(t, p.ID, model.PaymentFull)

		_, err = f.svc.Cancel(ctx, f.developer, p.ID, "")
		assert.ErrorIs(t, err, ErrForbidden)

		_, err = f.svc.Cancel(ctx, f.admin, p.ID, "dispute")
		require.NoError(t, err)
		assert.Equal(t, model.ProjectCancelled, f.st.Project(p.ID).Status)

		_, err = f.svc.Cancel(ctx, f.admin, p.ID, "")
		assert.ErrorIs(t, err, ErrConflict)
	})
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	open := f.create(t, false)
	taken := f.create(t, false)
	_, err := f.svc.Accept(ctx, f.developer, taken.ID, 2000, 10)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.rival, open.ID)
	assert.NoError(t, err)
	_, err = f.svc.Get(ctx, f.rival, taken.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(ctx, f.developer, taken.ID)
	assert.NoError(t, err)

	list, total, err := f.svc.List(ctx, f.rival, ListInput{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, open.ID, list[0].ID)

	_, total, err = f.svc.List(ctx, f.developer, ListInput{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, total, err = f.svc.List(ctx, f.client, ListInput{Status: model.ProjectApproved})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}
