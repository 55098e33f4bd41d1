package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/bookings"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/notify"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/actor"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/dbutil"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/money"
)

// RefundService reverses completed payments. A refund is a payment in the
// opposite direction: it gets its own row, its own transaction ref and goes
// through the same submit/callback discipline as a charge.
type RefundService struct {
	db            *gorm.DB
	provider      Provider
	notifier      notify.Notifier
	logger        *slog.Logger
	submitTimeout time.Duration
}

func NewRefundService(db *gorm.DB, p Provider, n notify.Notifier) *RefundService {
	if n == nil {
		n = notify.Noop{}
	}
	return &RefundService{db: db, provider: p, notifier: n, logger: slog.Default(), submitTimeout: defaultSubmitTimeout}
}

func (s *RefundService) SetLogger(logger *slog.Logger)    { s.logger = logger }
func (s *RefundService) SetSubmitTimeout(d time.Duration) { s.submitTimeout = d }

type RefundInput struct {
	PaymentID      string
	Actor          actor.Actor
	Amount         decimal.Decimal // zero => full remaining
	Reason         string
	IdempotencyKey string
}

type RefundOutputStatus struct {
	RefundID   string
	Status     Status
	Amount     decimal.Decimal
	Idempotent bool
}

// Refund is legal only against a completed (or partially refunded) payment,
// for at most the remaining amount. Admin only.
func (s *RefundService) Refund(ctx context.Context, in RefundInput) (RefundOutputStatus, error) {
	if in.PaymentID == "" || in.IdempotencyKey == "" {
		return RefundOutputStatus{}, ErrNotRefundable
	}
	if !in.Actor.IsAdmin() && !in.Actor.IsSystem() {
		return RefundOutputStatus{}, ErrForbidden
	}

	// Phase 1: lock original + gates + idempotency + refund row create.
	var orig, ref Payment
	var idempotent bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := dbutil.LockForUpdate(tx.WithContext(ctx)).First(&orig, "id = ?", in.PaymentID).Error; err != nil {
			return err
		}

		if orig.Escrow {
			return ErrEscrowHeld
		}
		if orig.Status != StatusCompleted && orig.Status != StatusRefunded {
			return ErrNotRefundable
		}

		remaining := orig.Remaining()
		if !remaining.IsPositive() {
			return ErrNotRefundable
		}

		amount := in.Amount
		if amount.IsZero() {
			amount = remaining
		}
		if !amount.IsPositive() {
			return ErrNotRefundable
		}
		if amount.GreaterThan(remaining) {
			s.logger.ErrorContext(ctx, "refund exceeds refundable amount",
				"payment_id", orig.ID, "requested", amount.String(), "remaining", remaining.String())
			return ErrRefundExceedsAmount
		}

		// idempotency: original + key
		var existing Payment
		e := tx.WithContext(ctx).First(&existing, "refund_of_id = ? AND idempotency_key = ?", orig.ID, in.IdempotencyKey).Error
		if e == nil {
			ref = existing
			idempotent = true
			return nil
		}
		if !errors.Is(e, gorm.ErrRecordNotFound) {
			return e
		}

		// at most one refund in flight per payment
		var inflight int64
		if err := tx.WithContext(ctx).Model(&Payment{}).
			Where("refund_of_id = ? AND status IN ?", orig.ID, []Status{StatusPending, StatusProcessing}).
			Count(&inflight).Error; err != nil {
			return err
		}
		if inflight > 0 {
			return apperr.ConflictErr("A refund for this payment is already in flight.")
		}

		now := time.Now()
		ref = Payment{
			ID:             uuid.NewString(),
			UserID:         orig.UserID,
			PropertyID:     orig.PropertyID,
			BookingID:      orig.BookingID,
			RefundOfID:     &orig.ID,
			Type:           TypeRefund,
			Status:         StatusPending,
			Method:         orig.Method,
			Amount:         amount,
			Currency:       orig.Currency,
			Provider:       s.provider.Name(),
			TransactionRef: NewTransactionRef(),
			IdempotencyKey: in.IdempotencyKey,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if r := in.Reason; r != "" {
			ref.RefundReason = strptr(r)
		}
		return tx.WithContext(ctx).Create(&ref).Error
	})
	if err != nil {
		return RefundOutputStatus{}, err
	}

	if idempotent && ref.Status != StatusPending {
		return RefundOutputStatus{RefundID: ref.ID, Status: ref.Status, Amount: ref.Amount, Idempotent: true}, nil
	}

	return s.submitRefund(ctx, orig, ref)
}

func (s *RefundService) submitRefund(ctx context.Context, orig, ref Payment) (RefundOutputStatus, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Model(&Payment{}).
			Where("id = ? AND status = ?", ref.ID, StatusPending).
			Updates(map[string]any{"status": StatusProcessing, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.StaleStateErr("Refund already submitted.")
		}
		return nil
	})
	if err != nil {
		return RefundOutputStatus{}, err
	}

	paymentRef := ""
	if orig.ExternalRef != nil {
		paymentRef = *orig.ExternalRef
	}
	reason := ""
	if ref.RefundReason != nil {
		reason = *ref.RefundReason
	}

	// Phase 2: provider refund outside the transaction, bounded timeout.
	callCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()
	resp, perr := s.provider.RefundPayment(callCtx, RefundRequest{
		TransactionRef: ref.TransactionRef,
		PaymentRef:     paymentRef,
		Amount:         ref.Amount,
		Currency:       ref.Currency,
		Reason:         reason,
	})

	if perr != nil && (errors.Is(perr, context.DeadlineExceeded) || callCtx.Err() != nil) {
		s.logger.WarnContext(ctx, "provider refund timed out, refund left processing",
			"refund_id", ref.ID, "transaction_ref", ref.TransactionRef,
			"amount", money.Format(ref.Amount, ref.Currency))
		return RefundOutputStatus{},
			apperr.ProviderTimeoutErr("Refund submitted; confirmation pending.", perr)
	}

	// Phase 3: finalize.
	var confirmed refundResult
	var finalStatus Status
	var applied bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur Payment
		if err := dbutil.LockForUpdate(tx.WithContext(ctx)).First(&cur, "id = ?", ref.ID).Error; err != nil {
			return err
		}
		// a callback may have confirmed the refund first; it already notified
		if terminal(cur.Status) {
			finalStatus = cur.Status
			return nil
		}

		now := time.Now()
		if perr != nil || resp.Status == StatusFailed {
			msg := "refund declined"
			if perr != nil {
				msg = perr.Error()
			}
			finalStatus = StatusFailed
			applied = true
			return tx.WithContext(ctx).Model(&Payment{}).
				Where("id = ?", cur.ID).
				Updates(map[string]any{
					"status":         StatusFailed,
					"failure_reason": truncate(msg, 250),
					"updated_at":     now,
				}).Error
		}

		if resp.Status == StatusProcessing {
			updates := map[string]any{"updated_at": now}
			if resp.ProviderRef != "" {
				updates["external_ref"] = resp.ProviderRef
			}
			finalStatus = StatusProcessing
			return tx.WithContext(ctx).Model(&Payment{}).Where("id = ?", cur.ID).Updates(updates).Error
		}

		// synchronous confirmation
		rr, err := confirmRefundTx(tx.WithContext(ctx), &cur, resp.ProviderRef)
		if err != nil {
			return err
		}
		confirmed = rr
		finalStatus = StatusCompleted
		applied = true
		return nil
	})
	if err != nil {
		return RefundOutputStatus{}, err
	}

	if terminal(finalStatus) && applied {
		s.notifier.Notify(ctx, notify.Event{
			EntityType: "payment", EntityID: ref.ID,
			FromStatus: string(StatusProcessing), ToStatus: string(finalStatus), Timestamp: time.Now(),
		})
	}
	if confirmed.Booking.Changed {
		s.notifier.Notify(ctx, notify.Event{
			EntityType: "booking", EntityID: confirmed.BookingID,
			FromStatus: string(confirmed.Booking.From), ToStatus: string(confirmed.Booking.To), Timestamp: time.Now(),
		})
	}

	return RefundOutputStatus{RefundID: ref.ID, Status: finalStatus, Amount: ref.Amount}, nil
}

// SettleCancellation implements bookings.CancellationSettler: it unwinds
// whatever payment is attached to a booking being cancelled.
func (s *RefundService) SettleCancellation(ctx context.Context, bookingID, reason string, act actor.Actor) (bookings.CancelOutcome, error) {
	var p Payment
	err := s.db.WithContext(ctx).
		Where("booking_id = ? AND type <> ? AND status IN ?", bookingID, TypeRefund,
			[]Status{StatusPending, StatusProcessing, StatusCompleted, StatusRefunded}).
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bookings.CancelOutcomeNoPayment, nil
	}
	if err != nil {
		return "", err
	}

	switch p.Status {
	case StatusPending:
		// never submitted: void it locally
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.WithContext(ctx).Model(&Payment{}).
				Where("id = ? AND status = ?", p.ID, StatusPending).
				Updates(map[string]any{"status": StatusCancelled, "updated_at": time.Now()})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.StaleStateErr("Payment changed concurrently, re-read and retry.")
			}
			return bookings.SetPaymentMirrorTx(tx.WithContext(ctx), bookingID, string(StatusCancelled))
		})
		if err != nil {
			return "", err
		}
		return bookings.CancelOutcomeVoided, nil

	case StatusProcessing:
		// in flight: the callback settles it first, refund follows from ops
		return bookings.CancelOutcomeInFlight, nil

	case StatusRefunded:
		if !p.Remaining().IsPositive() {
			return bookings.CancelOutcomeNoPayment, nil
		}
		fallthrough
	case StatusCompleted:
		out, err := s.Refund(ctx, RefundInput{
			PaymentID:      p.ID,
			Actor:          actor.System(),
			Reason:         reason,
			IdempotencyKey: "cancel-" + bookingID,
		})
		if err != nil {
			if ae, ok := apperr.As(err); ok && ae.Kind == apperr.ProviderTimeout {
				return bookings.CancelOutcomeRefunding, nil
			}
			return "", err
		}
		switch out.Status {
		case StatusCompleted:
			return bookings.CancelOutcomeRefunded, nil
		case StatusProcessing:
			return bookings.CancelOutcomeRefunding, nil
		default:
			return "", apperr.ConflictErr("Refund failed; booking stays in its prior status.")
		}
	default:
		return bookings.CancelOutcomeNoPayment, nil
	}
}
