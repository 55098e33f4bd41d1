package payments

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/bookings"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/dbutil"
)

type settleResult struct {
	Changed       bool
	ReceiptNumber string
	Booking       bookings.SettlementResult
}

// settlePaymentTx moves a locked payment into completed: timestamps, receipt
// number, ledger entry, booking mirror and auto-confirm. Idempotent: an
// already-completed payment is a no-op.
func settlePaymentTx(tx *gorm.DB, p *Payment, externalRef string) (settleResult, error) {
	if p.Status == StatusCompleted {
		return settleResult{}, nil
	}

	now := time.Now()
	receipt := newReceiptNumber(now)

	updates := map[string]any{
		"status":         StatusCompleted,
		"completed_at":   now,
		"receipt_number": receipt,
		"failure_reason": nil,
		"updated_at":     now,
	}
	if externalRef != "" && p.ExternalRef == nil {
		updates["external_ref"] = externalRef
	}
	if err := tx.Model(&Payment{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return settleResult{}, err
	}

	if err := ensureFinancialEntry(tx, FinancialEntry{
		ID:        uuid.NewString(),
		BookingID: p.BookingID,
		Event:     "payment_completed",
		Amount:    p.Amount, // +in
		Currency:  p.Currency,
		RefType:   "payment",
		RefID:     p.ID,
		CreatedAt: now,
	}); err != nil {
		return settleResult{}, err
	}

	res := settleResult{Changed: true, ReceiptNumber: receipt}
	if p.BookingID != nil {
		if err := bookings.SetPaymentMirrorTx(tx, *p.BookingID, string(StatusCompleted)); err != nil {
			return settleResult{}, err
		}
		br, err := bookings.ApplyPaymentSettledTx(tx, *p.BookingID)
		if err != nil {
			return settleResult{}, err
		}
		res.Booking = br
	}
	return res, nil
}

// failPaymentTx moves a locked payment into failed. Idempotent. A booking
// keeps its prior status so the user can retry with another method, except a
// cancelling one, which finalizes now that no charge will ever settle.
func failPaymentTx(tx *gorm.DB, p *Payment, reason string) (settleResult, error) {
	if p.Status == StatusFailed {
		return settleResult{}, nil
	}

	now := time.Now()
	if err := tx.Model(&Payment{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"status":         StatusFailed,
			"failure_reason": truncate(reason, 250),
			"updated_at":     now,
		}).Error; err != nil {
		return settleResult{}, err
	}

	res := settleResult{Changed: true}
	if p.BookingID != nil {
		if err := bookings.SetPaymentMirrorTx(tx, *p.BookingID, string(StatusFailed)); err != nil {
			return settleResult{}, err
		}
		br, err := bookings.ApplyPaymentFailedTx(tx, *p.BookingID)
		if err != nil {
			return settleResult{}, err
		}
		res.Booking = br
	}
	return res, nil
}

type refundResult struct {
	Changed   bool
	Booking   bookings.SettlementResult
	BookingID string
}

// confirmRefundTx finalizes a confirmed refund: completes the refund row,
// marks the original refunded with the accumulated amount, writes the ledger
// entry and mirror, and finalizes a cancelling booking. The caller holds the
// lock on r and has already rejected terminal conflicts.
func confirmRefundTx(tx *gorm.DB, r *Payment, externalRef string) (refundResult, error) {
	now := time.Now()

	updates := map[string]any{
		"status":       StatusCompleted,
		"completed_at": now,
		"updated_at":   now,
	}
	if externalRef != "" && r.ExternalRef == nil {
		updates["external_ref"] = externalRef
	}
	if err := tx.Model(&Payment{}).Where("id = ?", r.ID).Updates(updates).Error; err != nil {
		return refundResult{}, err
	}

	var orig Payment
	if err := dbutil.LockForUpdate(tx).First(&orig, "id = ?", *r.RefundOfID).Error; err != nil {
		return refundResult{}, err
	}
	refunded := r.Amount
	if orig.RefundedAmount != nil {
		refunded = orig.RefundedAmount.Add(r.Amount)
	}
	if refunded.GreaterThan(orig.Amount) {
		// money-integrity violation: block loudly, never clamp
		return refundResult{}, apperr.ConflictErr("Refund total exceeds the captured amount.")
	}
	// completed_at holds only while the row is completed
	origUpdates := map[string]any{
		"status":          StatusRefunded,
		"completed_at":    nil,
		"refunded_amount": refunded,
		"refunded_at":     now,
		"updated_at":      now,
	}
	if r.RefundReason != nil {
		origUpdates["refund_reason"] = *r.RefundReason
	}
	if err := tx.Model(&Payment{}).Where("id = ?", orig.ID).Updates(origUpdates).Error; err != nil {
		return refundResult{}, err
	}

	if err := ensureFinancialEntry(tx, FinancialEntry{
		ID:        uuid.NewString(),
		BookingID: orig.BookingID,
		Event:     "refund_completed",
		Amount:    r.Amount.Neg(), // -out
		Currency:  r.Currency,
		RefType:   "refund",
		RefID:     r.ID,
		CreatedAt: now,
	}); err != nil {
		return refundResult{}, err
	}

	res := refundResult{Changed: true}
	if orig.BookingID != nil {
		if err := bookings.SetPaymentMirrorTx(tx, *orig.BookingID, string(StatusRefunded)); err != nil {
			return refundResult{}, err
		}
		br, err := bookings.ApplyRefundConfirmedTx(tx, *orig.BookingID)
		if err != nil {
			return refundResult{}, err
		}
		res.Booking = br
		res.BookingID = *orig.BookingID
	}
	return res, nil
}

func ensureFinancialEntry(tx *gorm.DB, e FinancialEntry) error {
	var cnt int64
	if err := tx.Model(&FinancialEntry{}).
		Where("ref_type = ? AND ref_id = ? AND event = ?", e.RefType, e.RefID, e.Event).
		Count(&cnt).Error; err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}
	return tx.Create(&e).Error
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

func strptr(s string) *string { return &s }
