package bookings

import (
	"time"

	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/actor"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/dbutil"
)

// SettlementResult reports how a payment outcome moved the booking, so the
// caller can emit a notification after its transaction commits.
type SettlementResult struct {
	From    Status
	To      Status
	Changed bool
}

// SetPaymentMirrorTx updates the denormalized payment_status column. It must
// run inside the same transaction as the payment status write that it mirrors.
func SetPaymentMirrorTx(tx *gorm.DB, bookingID, paymentStatus string) error {
	return tx.Model(&Booking{}).
		Where("id = ?", bookingID).
		Updates(map[string]any{"payment_status": paymentStatus, "updated_at": time.Now()}).Error
}

// ApplyPaymentSettledTx advances the booking when its payment reaches
// completed: pending auto-confirms, any other state is left alone. Runs inside
// the payment settlement transaction.
func ApplyPaymentSettledTx(tx *gorm.DB, bookingID string) (SettlementResult, error) {
	var b Booking
	if err := dbutil.LockForUpdate(tx).First(&b, "id = ?", bookingID).Error; err != nil {
		return SettlementResult{}, err
	}
	if b.Status != StatusPending {
		return SettlementResult{From: b.Status, To: b.Status}, nil
	}

	now := time.Now()
	if err := tx.Model(&Booking{}).
		Where("id = ? AND status = ?", b.ID, StatusPending).
		Updates(map[string]any{"status": StatusConfirmed, "updated_at": now}).Error; err != nil {
		return SettlementResult{}, err
	}
	if err := appendEvent(tx, &b, actor.System(), "confirm", StatusPending, StatusConfirmed, ptr("payment settled")); err != nil {
		return SettlementResult{}, err
	}
	return SettlementResult{From: StatusPending, To: StatusConfirmed, Changed: true}, nil
}

// ApplyRefundConfirmedTx finalizes a cancelling booking once its refund is
// confirmed by the provider. Bookings not waiting on a refund are untouched.
func ApplyRefundConfirmedTx(tx *gorm.DB, bookingID string) (SettlementResult, error) {
	var b Booking
	if err := dbutil.LockForUpdate(tx).First(&b, "id = ?", bookingID).Error; err != nil {
		return SettlementResult{}, err
	}
	if b.Status != StatusCancelling {
		return SettlementResult{From: b.Status, To: b.Status}, nil
	}

	now := time.Now()
	if err := tx.Model(&Booking{}).
		Where("id = ? AND status = ?", b.ID, StatusCancelling).
		Updates(map[string]any{"status": StatusCancelled, "updated_at": now}).Error; err != nil {
		return SettlementResult{}, err
	}
	if err := appendEvent(tx, &b, actor.System(), "finalize_cancel", StatusCancelling, StatusCancelled, ptr("refund confirmed")); err != nil {
		return SettlementResult{}, err
	}
	return SettlementResult{From: StatusCancelling, To: StatusCancelled, Changed: true}, nil
}

// ApplyPaymentFailedTx finalizes a cancelling booking whose in-flight charge
// failed: nothing was captured, so there is no refund to wait for. Bookings in
// any other state keep their status; only the mirror reflects the failure.
func ApplyPaymentFailedTx(tx *gorm.DB, bookingID string) (SettlementResult, error) {
	var b Booking
	if err := dbutil.LockForUpdate(tx).First(&b, "id = ?", bookingID).Error; err != nil {
		return SettlementResult{}, err
	}
	if b.Status != StatusCancelling {
		return SettlementResult{From: b.Status, To: b.Status}, nil
	}

	now := time.Now()
	if err := tx.Model(&Booking{}).
		Where("id = ? AND status = ?", b.ID, StatusCancelling).
		Updates(map[string]any{"status": StatusCancelled, "updated_at": now}).Error; err != nil {
		return SettlementResult{}, err
	}
	if err := appendEvent(tx, &b, actor.System(), "finalize_cancel", StatusCancelling, StatusCancelled, ptr("charge failed")); err != nil {
		return SettlementResult{}, err
	}
	return SettlementResult{From: StatusCancelling, To: StatusCancelled, Changed: true}, nil
}

func ptr(s string) *string { return &s }
