package bookings

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/notify"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/actor"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Booking{}, &BookingEvent{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

type memNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (m *memNotifier) Notify(_ context.Context, ev notify.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *memNotifier) all() []notify.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Event(nil), m.events...)
}

type stubSettler struct {
	outcome CancelOutcome
	err     error
	calls   int
}

func (s *stubSettler) SettleCancellation(context.Context, string, string, actor.Actor) (CancelOutcome, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.outcome, nil
}

func owner() actor.Actor  { return actor.Actor{UserID: "owner-1", Role: actor.RoleOwner} }
func client() actor.Actor { return actor.Actor{UserID: "client-1", Role: actor.RoleClient} }
func admin() actor.Actor  { return actor.Actor{UserID: "admin-1", Role: actor.RoleAdmin} }

func viewingInput(req actor.Actor) CreateInput {
	d := time.Now().AddDate(0, 0, 3)
	return CreateInput{
		Kind:          KindViewing,
		PropertyID:    "prop-1",
		OwnerID:       "owner-1",
		Requester:     req,
		ContactName:   "Jane Doe",
		ContactEmail:  "jane@example.com",
		ContactPhone:  "+256700000001",
		ScheduledDate: &d,
		ScheduledTime: "14:30",
	}
}

func TestCreate_Viewing(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, nil)

	id, err := svc.Create(context.Background(), viewingInput(client()))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	b, err := NewRepo(db).Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, KindViewing, b.Kind)
	require.NotNil(t, b.UserID)
	assert.Equal(t, "client-1", *b.UserID)

	evs, err := NewRepo(db).History(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "create", evs[0].Action)
	assert.Equal(t, string(StatusPending), evs[0].ToStatus)
}

func TestCreate_GuestNeedsEmail(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, nil)

	in := viewingInput(actor.Actor{Role: actor.RoleClient}) // anonymous
	in.ContactEmail = ""

	_, err := svc.Create(context.Background(), in)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Invalid, ae.Kind)
	assert.Contains(t, ae.Fields, "contact_email")
}

func TestCreate_ViewingMissingSchedule(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, nil)

	in := viewingInput(client())
	in.ScheduledDate = nil
	in.ScheduledTime = "25:99"

	_, err := svc.Create(context.Background(), in)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Fields, "scheduled_date")
	assert.Equal(t, "must be HH:MM", ae.Fields["scheduled_time"])
}

func TestCreate_StayNeedsBothDates(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, nil)

	in := viewingInput(client())
	in.Kind = KindBooking
	in.ScheduledDate = nil
	in.ScheduledTime = ""
	checkIn := time.Now().AddDate(0, 0, 7)
	in.CheckInDate = &checkIn

	_, err := svc.Create(context.Background(), in)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Fields, "check_in_date")

	// check-out before check-in
	checkOut := checkIn.AddDate(0, 0, -2)
	in.CheckOutDate = &checkOut
	_, err = svc.Create(context.Background(), in)
	ae, _ = apperr.As(err)
	assert.Contains(t, ae.Fields, "check_out_date")
}

func TestCreate_RentalTerms(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, nil)

	in := viewingInput(client())
	in.Kind = KindBooking
	in.ScheduledDate = nil
	in.ScheduledTime = ""
	in.LeaseMonths = 12
	moveIn := time.Now().AddDate(0, 1, 0)
	in.MoveInDate = &moveIn
	amt := decimal.NewFromInt(1_200_000)
	in.PaymentAmount = &amt
	in.Currency = "UGX"

	id, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	b, err := NewRepo(db).Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, b.LeaseMonths)
	assert.Equal(t, 12, *b.LeaseMonths)
	require.NotNil(t, b.PaymentAmount)
	assert.True(t, amt.Equal(*b.PaymentAmount))
}

func TestCreate_RejectsFractionalUGX(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, nil)

	in := viewingInput(client())
	amt := decimal.RequireFromString("1000.50")
	in.PaymentAmount = &amt
	in.Currency = "UGX"

	_, err := svc.Create(context.Background(), in)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Fields, "payment_amount")
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		from    Status
		action  string
		want    Status
		wantErr bool
	}{
		{StatusPending, "confirm", StatusConfirmed, false},
		{StatusPending, "reject", StatusRejected, false},
		{StatusPending, "cancel", StatusCancelled, false},
		{StatusPending, "begin_cancel", StatusCancelling, false},
		{StatusPending, "complete", "", true},
		{StatusConfirmed, "confirm", "", true},
		{StatusConfirmed, "complete", StatusCompleted, false},
		{StatusConfirmed, "cancel", StatusCancelled, false},
		{StatusConfirmed, "begin_cancel", StatusCancelling, false},
		{StatusCancelling, "finalize_cancel", StatusCancelled, false},
		{StatusCancelling, "cancel", "", true},
		{StatusCancelled, "confirm", "", true},
		{StatusCompleted, "cancel", "", true},
		{StatusRejected, "confirm", "", true},
		{StatusPending, "bogus", "", true},
	}
	for _, tt := range tests {
		got, err := nextStatus(tt.from, tt.action)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s + %s", tt.from, tt.action)
			continue
		}
		require.NoError(t, err, "%s + %s", tt.from, tt.action)
		assert.Equal(t, tt.want, got)
	}
}

func TestConfirm_OwnerOnly(t *testing.T) {
	db := openTestDB(t)
	n := &memNotifier{}
	svc := NewService(db, nil, n)

	id, err := svc.Create(context.Background(), viewingInput(client()))
	require.NoError(t, err)

	// the requesting client may not confirm
	err = svc.Confirm(context.Background(), id, client())
	assert.ErrorIs(t, err, ErrForbidden)

	// a different owner may not confirm either
	err = svc.Confirm(context.Background(), id, actor.Actor{UserID: "owner-9", Role: actor.RoleOwner})
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.Confirm(context.Background(), id, owner()))

	b, err := NewRepo(db).Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, b.Status)

	// confirming twice is an invalid transition
	err = svc.Confirm(context.Background(), id, owner())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// confirmed is not terminal, nothing notified yet
	assert.Empty(t, n.all())
}

func TestRejectNotifies(t *testing.T) {
	db := openTestDB(t)
	n := &memNotifier{}
	svc := NewService(db, nil, n)

	id, err := svc.Create(context.Background(), viewingInput(client()))
	require.NoError(t, err)

	require.NoError(t, svc.Reject(context.Background(), id, owner(), "not available"))

	b, _ := NewRepo(db).Get(context.Background(), id)
	assert.Equal(t, StatusRejected, b.Status)

	evs := n.all()
	require.Len(t, evs, 1)
	assert.Equal(t, "booking", evs[0].EntityType)
	assert.Equal(t, string(StatusRejected), evs[0].ToStatus)

	hist, _ := NewRepo(db).History(context.Background(), id)
	require.Len(t, hist, 2)
	require.NotNil(t, hist[1].Note)
	assert.Equal(t, "not available", *hist[1].Note)
}

func TestCompleteLifecycle(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, nil)

	id, err := svc.Create(context.Background(), viewingInput(client()))
	require.NoError(t, err)

	// complete straight from pending is illegal
	err = svc.Complete(context.Background(), id, owner())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, svc.Confirm(context.Background(), id, owner()))
	require.NoError(t, svc.Complete(context.Background(), id, actor.System()))

	b, _ := NewRepo(db).Get(context.Background(), id)
	assert.Equal(t, StatusCompleted, b.Status)
}

func TestCancel_NoPayment(t *testing.T) {
	db := openTestDB(t)
	n := &memNotifier{}
	settler := &stubSettler{outcome: CancelOutcomeNoPayment}
	svc := NewService(db, settler, n)

	id, err := svc.Create(context.Background(), viewingInput(client()))
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), id, client(), "changed my mind"))
	assert.Equal(t, 1, settler.calls)

	b, _ := NewRepo(db).Get(context.Background(), id)
	assert.Equal(t, StatusCancelled, b.Status)
	require.NotNil(t, b.CancelReason)
	assert.Equal(t, "changed my mind", *b.CancelReason)
	require.Len(t, n.all(), 1)
}

func TestCancel_Forbidden(t *testing.T) {
	db := openTestDB(t)
	settler := &stubSettler{outcome: CancelOutcomeNoPayment}
	svc := NewService(db, settler, nil)

	id, err := svc.Create(context.Background(), viewingInput(client()))
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), id, actor.Actor{UserID: "other", Role: actor.RoleClient}, "")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, settler.calls)
}

func TestCancel_RefundPendingParksInCancelling(t *testing.T) {
	db := openTestDB(t)
	n := &memNotifier{}
	settler := &stubSettler{outcome: CancelOutcomeRefunding}
	svc := NewService(db, settler, n)

	id, err := svc.Create(context.Background(), viewingInput(client()))
	require.NoError(t, err)
	require.NoError(t, svc.Confirm(context.Background(), id, owner()))

	require.NoError(t, svc.Cancel(context.Background(), id, client(), "plans fell through"))

	b, _ := NewRepo(db).Get(context.Background(), id)
	assert.Equal(t, StatusCancelling, b.Status)
	// interim state: no terminal notification yet
	assert.Empty(t, n.all())

	// refund confirmation finalizes the cancel
	err = db.Transaction(func(tx *gorm.DB) error {
		res, err := ApplyRefundConfirmedTx(tx, id)
		require.NoError(t, err)
		assert.True(t, res.Changed)
		return nil
	})
	require.NoError(t, err)

	b, _ = NewRepo(db).Get(context.Background(), id)
	assert.Equal(t, StatusCancelled, b.Status)
}

func TestCancel_SettlerFailureLeavesBookingAlone(t *testing.T) {
	db := openTestDB(t)
	settler := &stubSettler{err: assert.AnError}
	svc := NewService(db, settler, nil)

	id, err := svc.Create(context.Background(), viewingInput(client()))
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), id, client(), "")
	assert.ErrorIs(t, err, assert.AnError)

	b, _ := NewRepo(db).Get(context.Background(), id)
	assert.Equal(t, StatusPending, b.Status)
}

func TestApplyPaymentSettledTx(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, nil, nil)

	id, err := svc.Create(context.Background(), viewingInput(client()))
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		res, err := ApplyPaymentSettledTx(tx, id)
		require.NoError(t, err)
		assert.True(t, res.Changed)
		assert.Equal(t, StatusConfirmed, res.To)
		return nil
	})
	require.NoError(t, err)

	// idempotent: already confirmed bookings stay put
	err = db.Transaction(func(tx *gorm.DB) error {
		res, err := ApplyPaymentSettledTx(tx, id)
		require.NoError(t, err)
		assert.False(t, res.Changed)
		return nil
	})
	require.NoError(t, err)
}
