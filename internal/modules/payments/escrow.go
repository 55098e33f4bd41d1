package payments

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
)

// Held escrow funds are Payment rows with Escrow=true parked in processing.
// They bypass the general settle/refund paths: release and return are the
// only ways out, implemented here so the receipt and ledger rules stay in one
// package.

// ReleaseEscrowTx settles held funds to the assigned provider: the payment
// completes and gets its receipt. Idempotent if already released.
func ReleaseEscrowTx(tx *gorm.DB, p *Payment) (string, bool, error) {
	if !p.Escrow {
		return "", false, ErrNotRefundable
	}
	if p.Status == StatusCompleted {
		return "", false, nil
	}
	if p.Status != StatusProcessing {
		return "", false, apperr.ConflictErr("Escrow funds are not held.")
	}

	now := time.Now()
	receipt := newReceiptNumber(now)
	if err := tx.Model(&Payment{}).
		Where("id = ? AND status = ?", p.ID, StatusProcessing).
		Updates(map[string]any{
			"status":         StatusCompleted,
			"completed_at":   now,
			"receipt_number": receipt,
			"updated_at":     now,
		}).Error; err != nil {
		return "", false, err
	}

	return receipt, true, ensureFinancialEntry(tx, FinancialEntry{
		ID:        uuid.NewString(),
		BookingID: p.BookingID,
		Event:     "escrow_released",
		Amount:    p.Amount, // +to provider
		Currency:  p.Currency,
		RefType:   "payment",
		RefID:     p.ID,
		CreatedAt: now,
	})
}

// ReturnEscrowTx sends held funds back to the payer on rejection or an
// admin-resolved dispute. Idempotent if already returned.
func ReturnEscrowTx(tx *gorm.DB, p *Payment, reason string) (bool, error) {
	if !p.Escrow {
		return false, ErrNotRefundable
	}
	if p.Status == StatusRefunded {
		return false, nil
	}
	if p.Status != StatusProcessing {
		return false, apperr.ConflictErr("Escrow funds are not held.")
	}

	now := time.Now()
	updates := map[string]any{
		"status":          StatusRefunded,
		"refunded_amount": p.Amount,
		"refunded_at":     now,
		"updated_at":      now,
	}
	if reason != "" {
		updates["refund_reason"] = truncate(reason, 250)
	}
	if err := tx.Model(&Payment{}).
		Where("id = ? AND status = ?", p.ID, StatusProcessing).
		Updates(updates).Error; err != nil {
		return false, err
	}

	return true, ensureFinancialEntry(tx, FinancialEntry{
		ID:        uuid.NewString(),
		BookingID: p.BookingID,
		Event:     "escrow_returned",
		Amount:    p.Amount.Neg(), // -back to payer
		Currency:  p.Currency,
		RefType:   "payment",
		RefID:     p.ID,
		CreatedAt: now,
	})
}
