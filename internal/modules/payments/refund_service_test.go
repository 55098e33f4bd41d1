package payments

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/bookings"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
)

// payCompleted settles a charge synchronously so refund tests start from a
// completed payment.
func payCompleted(t *testing.T, db *gorm.DB, b bookings.Booking) Payment {
	t.Helper()
	provider := &stubProvider{createResp: CreatePaymentResponse{ProviderRef: "pay_done", Status: StatusCompleted}}
	svc := NewService(db, provider, nil)
	res, err := svc.PayBooking(context.Background(), PayBookingInput{
		BookingID: b.ID, Actor: clientActor(), Method: MethodCash, IdempotencyKey: "pay-1",
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
	return getPayment(t, db, res.PaymentID)
}

func TestRefund_AdminOnly(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusConfirmed, 50_000)
	p := payCompleted(t, db, b)

	svc := NewRefundService(db, &stubProvider{}, nil)
	_, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: p.ID, Actor: clientActor(), Reason: "please", IdempotencyKey: "rk-1",
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRefund_FullSync(t *testing.T) {
	db := openTestDB(t)
	n := &memNotifier{}
	b := seedBooking(t, db, bookings.StatusConfirmed, 50_000)
	p := payCompleted(t, db, b)

	provider := &stubProvider{refundResp: RefundResponse{ProviderRef: "ref_1", Status: StatusCompleted}}
	svc := NewRefundService(db, provider, n)
	out, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: p.ID, Actor: adminActor(), Reason: "cancelled stay", IdempotencyKey: "rk-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, out.Status)
	assert.True(t, out.Amount.Equal(p.Amount)) // zero amount means full remaining

	refund := getPayment(t, db, out.RefundID)
	assert.Equal(t, TypeRefund, refund.Type)
	require.NotNil(t, refund.RefundOfID)
	assert.Equal(t, p.ID, *refund.RefundOfID)
	assert.NotEqual(t, p.TransactionRef, refund.TransactionRef)

	orig := getPayment(t, db, p.ID)
	assert.Equal(t, StatusRefunded, orig.Status)
	require.NotNil(t, orig.RefundedAmount)
	assert.True(t, orig.Remaining().IsZero())
	require.NotNil(t, orig.RefundReason)
	assert.Equal(t, "cancelled stay", *orig.RefundReason)

	booking := getBooking(t, db, b.ID)
	assert.Equal(t, string(StatusRefunded), *booking.PaymentStatus)

	assert.Equal(t, 1, n.count("payment"))
}

func TestRefund_ClearsCompletedAt(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusConfirmed, 50_000)
	p := payCompleted(t, db, b)
	require.NotNil(t, p.CompletedAt)

	provider := &stubProvider{refundResp: RefundResponse{ProviderRef: "ref_1", Status: StatusCompleted}}
	svc := NewRefundService(db, provider, nil)
	out, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: p.ID, Actor: adminActor(), Reason: "cancelled stay", IdempotencyKey: "rk-1",
	})
	require.NoError(t, err)

	// completed_at is set exactly while a row is completed: cleared on the
	// refunded original, set on the completed refund row
	orig := getPayment(t, db, p.ID)
	assert.Equal(t, StatusRefunded, orig.Status)
	assert.Nil(t, orig.CompletedAt)
	require.NotNil(t, orig.RefundedAt)

	refund := getPayment(t, db, out.RefundID)
	assert.Equal(t, StatusCompleted, refund.Status)
	assert.NotNil(t, refund.CompletedAt)
}

func TestRefund_PartialThenRest(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusConfirmed, 50_000)
	p := payCompleted(t, db, b)

	provider := &stubProvider{refundResp: RefundResponse{ProviderRef: "ref_1", Status: StatusCompleted}}
	svc := NewRefundService(db, provider, nil)

	out, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: p.ID, Actor: adminActor(),
		Amount: decimal.NewFromInt(20_000), Reason: "partial", IdempotencyKey: "rk-1",
	})
	require.NoError(t, err)
	assert.True(t, out.Amount.Equal(decimal.NewFromInt(20_000)))

	orig := getPayment(t, db, p.ID)
	assert.Equal(t, StatusRefunded, orig.Status)
	assert.True(t, orig.Remaining().Equal(decimal.NewFromInt(30_000)))

	// a refunded payment with a remainder accepts another refund
	out2, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: p.ID, Actor: adminActor(), Reason: "the rest", IdempotencyKey: "rk-2",
	})
	require.NoError(t, err)
	assert.True(t, out2.Amount.Equal(decimal.NewFromInt(30_000)))

	orig = getPayment(t, db, p.ID)
	assert.True(t, orig.Remaining().IsZero())

	// fully refunded: nothing left to reverse
	_, err = svc.Refund(context.Background(), RefundInput{
		PaymentID: p.ID, Actor: adminActor(), Reason: "again", IdempotencyKey: "rk-3",
	})
	assert.ErrorIs(t, err, ErrNotRefundable)
}

func TestRefund_ExceedsRemaining(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusConfirmed, 50_000)
	p := payCompleted(t, db, b)

	svc := NewRefundService(db, &stubProvider{}, nil)
	_, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: p.ID, Actor: adminActor(),
		Amount: decimal.NewFromInt(60_000), Reason: "too much", IdempotencyKey: "rk-1",
	})
	assert.ErrorIs(t, err, ErrRefundExceedsAmount)
}

func TestRefund_NotRefundableStates(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusPending, 50_000)
	p := payProcessing(t, db, b, "pay_abc") // still in flight

	svc := NewRefundService(db, &stubProvider{}, nil)
	_, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: p.ID, Actor: adminActor(), Reason: "r", IdempotencyKey: "rk-1",
	})
	assert.ErrorIs(t, err, ErrNotRefundable)
}

func TestRefund_EscrowRefused(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusConfirmed, 50_000)
	p := payCompleted(t, db, b)
	require.NoError(t, db.Model(&Payment{}).Where("id = ?", p.ID).Update("escrow", true).Error)

	svc := NewRefundService(db, &stubProvider{}, nil)
	_, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: p.ID, Actor: adminActor(), Reason: "r", IdempotencyKey: "rk-1",
	})
	assert.ErrorIs(t, err, ErrEscrowHeld)
}

func TestRefund_Idempotent(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusConfirmed, 50_000)
	p := payCompleted(t, db, b)

	provider := &stubProvider{refundResp: RefundResponse{ProviderRef: "ref_1", Status: StatusCompleted}}
	svc := NewRefundService(db, provider, nil)

	in := RefundInput{PaymentID: p.ID, Actor: adminActor(), Reason: "r", IdempotencyKey: "rk-1"}
	first, err := svc.Refund(context.Background(), in)
	require.NoError(t, err)

	second, err := svc.Refund(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.RefundID, second.RefundID)
	assert.True(t, second.Idempotent)
	assert.Equal(t, 1, provider.refundCalls)
}

func TestRefund_SingleInFlight(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusConfirmed, 50_000)
	p := payCompleted(t, db, b)

	provider := &stubProvider{refundResp: RefundResponse{ProviderRef: "ref_1", Status: StatusProcessing}}
	svc := NewRefundService(db, provider, nil)
	_, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: p.ID, Actor: adminActor(),
		Amount: decimal.NewFromInt(10_000), Reason: "r", IdempotencyKey: "rk-1",
	})
	require.NoError(t, err)

	_, err = svc.Refund(context.Background(), RefundInput{
		PaymentID: p.ID, Actor: adminActor(),
		Amount: decimal.NewFromInt(10_000), Reason: "r", IdempotencyKey: "rk-2",
	})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Conflict, ae.Kind)
}

func TestRefund_ProviderDeclines(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusConfirmed, 50_000)
	p := payCompleted(t, db, b)

	provider := &stubProvider{refundResp: RefundResponse{Status: StatusFailed}}
	svc := NewRefundService(db, provider, nil)
	out, err := svc.Refund(context.Background(), RefundInput{
		PaymentID: p.ID, Actor: adminActor(), Reason: "r", IdempotencyKey: "rk-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, out.Status)

	// the original stays completed and refundable
	orig := getPayment(t, db, p.ID)
	assert.Equal(t, StatusCompleted, orig.Status)
	assert.Nil(t, orig.RefundedAmount)
}

func TestSettleCancellation_NoPayment(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusPending, 50_000)

	svc := NewRefundService(db, &stubProvider{}, nil)
	out, err := svc.SettleCancellation(context.Background(), b.ID, "changed plans", adminActor())
	require.NoError(t, err)
	assert.Equal(t, bookings.CancelOutcomeNoPayment, out)
}

func TestSettleCancellation_VoidsPending(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusPending, 50_000)

	// a pending row that never reached the provider
	uid := "client-1"
	p := Payment{
		ID: "pend-1", UserID: &uid, BookingID: &b.ID,
		Type: TypeBooking, Status: StatusPending, Method: MethodMTNMoMo,
		Amount: decimal.NewFromInt(50_000), Currency: "UGX",
		Provider: "stub", TransactionRef: NewTransactionRef(), IdempotencyKey: "k",
	}
	require.NoError(t, db.Create(&p).Error)

	svc := NewRefundService(db, &stubProvider{}, nil)
	out, err := svc.SettleCancellation(context.Background(), b.ID, "changed plans", adminActor())
	require.NoError(t, err)
	assert.Equal(t, bookings.CancelOutcomeVoided, out)

	assert.Equal(t, StatusCancelled, getPayment(t, db, p.ID).Status)
	booking := getBooking(t, db, b.ID)
	assert.Equal(t, string(StatusCancelled), *booking.PaymentStatus)
}

func TestSettleCancellation_InFlight(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusPending, 50_000)
	payProcessing(t, db, b, "pay_abc")

	svc := NewRefundService(db, &stubProvider{}, nil)
	out, err := svc.SettleCancellation(context.Background(), b.ID, "changed plans", adminActor())
	require.NoError(t, err)
	assert.Equal(t, bookings.CancelOutcomeInFlight, out)
}

func TestSettleCancellation_RefundsCompleted(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusConfirmed, 50_000)
	p := payCompleted(t, db, b)

	provider := &stubProvider{refundResp: RefundResponse{ProviderRef: "ref_1", Status: StatusCompleted}}
	svc := NewRefundService(db, provider, nil)
	out, err := svc.SettleCancellation(context.Background(), b.ID, "owner withdrew listing", adminActor())
	require.NoError(t, err)
	assert.Equal(t, bookings.CancelOutcomeRefunded, out)

	orig := getPayment(t, db, p.ID)
	assert.Equal(t, StatusRefunded, orig.Status)
	assert.True(t, orig.Remaining().IsZero())
}

func TestSettleCancellation_AsyncRefundParks(t *testing.T) {
	db := openTestDB(t)
	b := seedBooking(t, db, bookings.StatusConfirmed, 50_000)
	payCompleted(t, db, b)

	provider := &stubProvider{refundResp: RefundResponse{ProviderRef: "ref_1", Status: StatusProcessing}}
	svc := NewRefundService(db, provider, nil)
	out, err := svc.SettleCancellation(context.Background(), b.ID, "r", adminActor())
	require.NoError(t, err)
	assert.Equal(t, bookings.CancelOutcomeRefunding, out)
}
