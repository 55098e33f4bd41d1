package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/bookings"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/notify"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/dbutil"
)

// CallbackService applies asynchronous provider reports. It is the only
// writer allowed to move a payment out of processing once submission has
// happened, and it must tolerate at-least-once delivery.
type CallbackService struct {
	db       *gorm.DB
	notifier notify.Notifier
	logger   *slog.Logger
}

func NewCallbackService(db *gorm.DB, n notify.Notifier) *CallbackService {
	if n == nil {
		n = notify.Noop{}
	}
	return &CallbackService{db: db, notifier: n, logger: slog.Default()}
}

func (s *CallbackService) SetLogger(logger *slog.Logger) { s.logger = logger }

type applied struct {
	payment   *Payment
	toStatus  Status
	booking   bookings.SettlementResult
	bookingID string
}

// Handle persists the event, dedupes on (provider, event_id) and applies the
// outcome. Replayed events return nil without re-applying; incompatible
// terminal overrides return a conflict that the transport maps to a non-retry
// status.
func (s *CallbackService) Handle(ctx context.Context, providerName string, ev CallbackEvent, rawBody []byte) error {
	payload, _ := json.RawMessage(rawBody).MarshalJSON()

	var out applied
	var keptErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		// dedupe: unique(provider, event_id)
		var prior ProviderEvent
		e := tx.WithContext(ctx).First(&prior, "provider = ? AND event_id = ?", providerName, ev.EventID).Error
		if e == nil {
			s.logger.InfoContext(ctx, "callback event deduplicated",
				"provider", providerName, "event_id", ev.EventID, "type", ev.Type)
			return nil
		}
		if !errors.Is(e, gorm.ErrRecordNotFound) {
			return e
		}

		pe := ProviderEvent{
			ID:          uuid.NewString(),
			Provider:    providerName,
			EventID:     ev.EventID,
			EventType:   ev.Type,
			PayloadJSON: datatypes.JSON(payload),
			ReceivedAt:  now,
		}
		if err := tx.WithContext(ctx).Create(&pe).Error; err != nil {
			if isDup(err) {
				s.logger.InfoContext(ctx, "callback event deduplicated",
					"provider", providerName, "event_id", ev.EventID, "type", ev.Type)
				return nil
			}
			return err
		}

		var applyErr error
		switch ev.Type {
		case "payment.completed":
			out, applyErr = s.applyPaymentCompleted(ctx, tx, providerName, ev)
		case "payment.failed":
			out, applyErr = s.applyPaymentFailed(ctx, tx, providerName, ev)
		case "refund.completed":
			out, applyErr = s.applyRefundCompleted(ctx, tx, providerName, ev)
		case "refund.failed":
			out, applyErr = s.applyRefundFailed(ctx, tx, providerName, ev)
		default:
			applyErr = fmt.Errorf("%w: unknown type %q", ErrEventUnprocessable, ev.Type)
		}

		if applyErr != nil {
			msg := truncate(applyErr.Error(), 250)
			s.logger.ErrorContext(ctx, "callback event apply failed",
				"provider", providerName, "event_id", ev.EventID, "type", ev.Type, "error", msg)
			ae, isApp := apperr.As(applyErr)
			if errors.Is(applyErr, ErrEventUnprocessable) || (isApp && ae.Kind == apperr.Conflict) {
				// keep the event row with its error so the dedupe index
				// swallows the redelivery; surfaced after commit
				keptErr = applyErr
				return tx.WithContext(ctx).Model(&ProviderEvent{}).
					Where("id = ?", pe.ID).
					Updates(map[string]any{"process_error": msg}).Error
			}
			// retriable: roll everything back, the provider will resend
			return applyErr
		}

		processed := now
		return tx.WithContext(ctx).Model(&ProviderEvent{}).
			Where("id = ?", pe.ID).
			Updates(map[string]any{"processed_at": &processed, "process_error": nil}).Error
	})
	if err != nil {
		return err
	}
	if keptErr != nil {
		return keptErr
	}

	s.emit(ctx, out)
	return nil
}

// emit fires notifications only for transitions this event actually made, so
// a duplicate callback never notifies twice.
func (s *CallbackService) emit(ctx context.Context, out applied) {
	if out.payment == nil {
		return
	}
	if terminal(out.toStatus) && out.toStatus != out.payment.Status {
		s.notifier.Notify(ctx, notify.Event{
			EntityType: "payment", EntityID: out.payment.ID,
			FromStatus: string(out.payment.Status), ToStatus: string(out.toStatus), Timestamp: time.Now(),
		})
	}
	if out.booking.Changed {
		s.notifier.Notify(ctx, notify.Event{
			EntityType: "booking", EntityID: out.bookingID,
			FromStatus: string(out.booking.From), ToStatus: string(out.booking.To), Timestamp: time.Now(),
		})
	}
}

// findPayment locates the payment a callback refers to: by the provider's own
// ref first, then by our transaction ref (covers submissions that timed out
// before the provider ref was stored).
func (s *CallbackService) findPayment(ctx context.Context, tx *gorm.DB, provider, externalRef, internalRef string) (Payment, error) {
	var p Payment
	if externalRef != "" {
		err := dbutil.LockForUpdate(tx.WithContext(ctx)).
			First(&p, "provider = ? AND external_ref = ?", provider, externalRef).Error
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Payment{}, err
		}
	}
	if internalRef != "" {
		err := dbutil.LockForUpdate(tx.WithContext(ctx)).
			First(&p, "provider = ? AND transaction_ref = ?", provider, internalRef).Error
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return Payment{}, err
		}
	}
	return Payment{}, gorm.ErrRecordNotFound
}

func (s *CallbackService) applyPaymentCompleted(ctx context.Context, tx *gorm.DB, provider string, ev CallbackEvent) (applied, error) {
	if ev.PaymentRef == "" && ev.InternalRef == "" {
		return applied{}, fmt.Errorf("%w: missing payment_ref", ErrEventUnprocessable)
	}

	p, err := s.findPayment(ctx, tx, provider, ev.PaymentRef, ev.InternalRef)
	if err != nil {
		return applied{}, err
	}

	// idempotent replay
	if p.Status == StatusCompleted {
		return applied{}, nil
	}
	// a settled-the-other-way payment must never be silently overwritten
	if p.Status == StatusFailed || p.Status == StatusCancelled || p.Status == StatusRefunded {
		return applied{}, apperr.ConflictErr("Callback outcome conflicts with a terminal payment state.")
	}

	// Escrow funding confirmation: the row stays held in processing; record
	// the provider ref and the funding ledger entry only.
	if p.Escrow {
		now := time.Now()
		updates := map[string]any{"updated_at": now}
		if ev.PaymentRef != "" && p.ExternalRef == nil {
			updates["external_ref"] = ev.PaymentRef
		}
		if err := tx.WithContext(ctx).Model(&Payment{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
			return applied{}, err
		}
		return applied{}, ensureFinancialEntry(tx.WithContext(ctx), FinancialEntry{
			ID:        uuid.NewString(),
			BookingID: p.BookingID,
			Event:     "escrow_funded",
			Amount:    p.Amount,
			Currency:  p.Currency,
			RefType:   "payment",
			RefID:     p.ID,
			CreatedAt: now,
		})
	}

	sr, err := settlePaymentTx(tx.WithContext(ctx), &p, ev.PaymentRef)
	if err != nil {
		return applied{}, err
	}

	out := applied{payment: &p, toStatus: StatusCompleted, booking: sr.Booking}
	if p.BookingID != nil {
		out.bookingID = *p.BookingID
	}
	return out, nil
}

func (s *CallbackService) applyPaymentFailed(ctx context.Context, tx *gorm.DB, provider string, ev CallbackEvent) (applied, error) {
	if ev.PaymentRef == "" && ev.InternalRef == "" {
		return applied{}, fmt.Errorf("%w: missing payment_ref", ErrEventUnprocessable)
	}

	p, err := s.findPayment(ctx, tx, provider, ev.PaymentRef, ev.InternalRef)
	if err != nil {
		return applied{}, err
	}

	if p.Status == StatusFailed {
		return applied{}, nil
	}
	if p.Status == StatusCompleted || p.Status == StatusRefunded {
		return applied{}, apperr.ConflictErr("Callback outcome conflicts with a terminal payment state.")
	}

	reason := ev.FailureReason
	if reason == "" {
		reason = "provider callback: failed"
	}
	sr, err := failPaymentTx(tx.WithContext(ctx), &p, reason)
	if err != nil {
		return applied{}, err
	}
	out := applied{payment: &p, toStatus: StatusFailed, booking: sr.Booking}
	if p.BookingID != nil {
		out.bookingID = *p.BookingID
	}
	return out, nil
}

func (s *CallbackService) applyRefundCompleted(ctx context.Context, tx *gorm.DB, provider string, ev CallbackEvent) (applied, error) {
	if ev.RefundRef == "" && ev.InternalRef == "" {
		return applied{}, fmt.Errorf("%w: missing refund_ref", ErrEventUnprocessable)
	}

	r, err := s.findPayment(ctx, tx, provider, ev.RefundRef, ev.InternalRef)
	if err != nil {
		return applied{}, err
	}
	if r.Type != TypeRefund || r.RefundOfID == nil {
		return applied{}, fmt.Errorf("%w: refund callback for a non-refund payment", ErrEventUnprocessable)
	}

	if r.Status == StatusCompleted {
		return applied{}, nil
	}
	if r.Status == StatusFailed || r.Status == StatusCancelled {
		return applied{}, apperr.ConflictErr("Callback outcome conflicts with a terminal payment state.")
	}

	rr, err := confirmRefundTx(tx.WithContext(ctx), &r, ev.RefundRef)
	if err != nil {
		return applied{}, err
	}
	return applied{payment: &r, toStatus: StatusCompleted, booking: rr.Booking, bookingID: rr.BookingID}, nil
}

func (s *CallbackService) applyRefundFailed(ctx context.Context, tx *gorm.DB, provider string, ev CallbackEvent) (applied, error) {
	if ev.RefundRef == "" && ev.InternalRef == "" {
		return applied{}, fmt.Errorf("%w: missing refund_ref", ErrEventUnprocessable)
	}

	r, err := s.findPayment(ctx, tx, provider, ev.RefundRef, ev.InternalRef)
	if err != nil {
		return applied{}, err
	}
	if r.Type != TypeRefund {
		return applied{}, fmt.Errorf("%w: refund callback for a non-refund payment", ErrEventUnprocessable)
	}

	if r.Status == StatusFailed {
		return applied{}, nil
	}
	if r.Status == StatusCompleted {
		return applied{}, apperr.ConflictErr("Callback outcome conflicts with a terminal payment state.")
	}

	reason := ev.FailureReason
	if reason == "" {
		reason = "provider callback: refund failed"
	}
	now := time.Now()
	if err := tx.WithContext(ctx).Model(&Payment{}).
		Where("id = ?", r.ID).
		Updates(map[string]any{
			"status":         StatusFailed,
			"failure_reason": truncate(reason, 250),
			"updated_at":     now,
		}).Error; err != nil {
		return applied{}, err
	}

	// The original stays completed and the booking stays in cancelling; an
	// admin re-runs the refund from there.
	return applied{payment: &r, toStatus: StatusFailed}, nil
}

func isDup(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	// sqlite (tests)
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
