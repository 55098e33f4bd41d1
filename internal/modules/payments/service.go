package payments

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/bookings"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/notify"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/actor"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/dbutil"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/money"
)

const defaultSubmitTimeout = 10 * time.Second

type Service struct {
	db            *gorm.DB
	provider      Provider
	notifier      notify.Notifier
	logger        *slog.Logger
	submitTimeout time.Duration
}

func NewService(db *gorm.DB, p Provider, n notify.Notifier) *Service {
	if n == nil {
		n = notify.Noop{}
	}
	return &Service{db: db, provider: p, notifier: n, logger: slog.Default(), submitTimeout: defaultSubmitTimeout}
}

func (s *Service) SetLogger(logger *slog.Logger)    { s.logger = logger }
func (s *Service) SetSubmitTimeout(d time.Duration) { s.submitTimeout = d }

type PayBookingInput struct {
	BookingID string
	Actor     actor.Actor
	Type      Type // defaults to booking
	Method    Method
	// InstrumentID selects a saved payment method; raw fields below are used
	// when no instrument is saved.
	InstrumentID   string
	PhoneNumber    string
	IdempotencyKey string
}

type PayBookingResult struct {
	BookingID  string
	PaymentID  string
	Status     Status
	Receipt    string
	Idempotent bool
}

// PayBooking initiates and submits a payment for a booking: create the
// pending row under the booking lock, move it to processing, call the
// provider outside the transaction, then finalize. Idempotent on
// (booking, idempotency key): an existing processing-or-later payment is
// returned untouched and the provider is never called twice.
func (s *Service) PayBooking(ctx context.Context, in PayBookingInput) (PayBookingResult, error) {
	if in.BookingID == "" || in.IdempotencyKey == "" {
		return PayBookingResult{}, ErrBookingNotPayable
	}
	if !ValidMethod(in.Method) {
		return PayBookingResult{}, ErrUnknownMethod
	}
	payType := in.Type
	if payType == "" {
		payType = TypeBooking
	}
	if payType == TypeRefund {
		return PayBookingResult{}, ErrBookingNotPayable
	}

	instrument, err := s.resolveInstrument(ctx, in)
	if err != nil {
		return PayBookingResult{}, err
	}

	// Phase 1: booking lock + at-most-one-active gate + idempotency check +
	// pending payment create.
	var created Payment
	var idempotent bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b bookings.Booking
		if err := dbutil.LockForUpdate(tx.WithContext(ctx)).First(&b, "id = ?", in.BookingID).Error; err != nil {
			return err
		}

		if !in.Actor.IsAdmin() {
			if b.UserID == nil || in.Actor.UserID != *b.UserID {
				return ErrForbidden
			}
		}
		if b.Status != bookings.StatusPending && b.Status != bookings.StatusConfirmed {
			return ErrBookingNotPayable
		}
		if b.PaymentAmount == nil || b.Currency == nil {
			return ErrBookingNotPayable
		}

		// idempotency: same booking + key returns the prior attempt
		var existing Payment
		e := tx.WithContext(ctx).First(&existing, "booking_id = ? AND idempotency_key = ?", b.ID, in.IdempotencyKey).Error
		if e == nil {
			created = existing
			idempotent = true
			return nil
		}
		if !errors.Is(e, gorm.ErrRecordNotFound) {
			return e
		}

		// at-most-one-active-payment invariant
		var active int64
		if err := tx.WithContext(ctx).Model(&Payment{}).
			Where("booking_id = ? AND type <> ? AND status IN ?", b.ID, TypeRefund,
				[]Status{StatusPending, StatusProcessing, StatusCompleted}).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrActivePaymentExists
		}

		now := time.Now()
		created = Payment{
			ID:             uuid.NewString(),
			UserID:         b.UserID,
			PropertyID:     &b.PropertyID,
			BookingID:      &b.ID,
			Type:           payType,
			Status:         StatusPending,
			Method:         in.Method,
			Amount:         *b.PaymentAmount,
			Currency:       *b.Currency,
			Provider:       s.provider.Name(),
			TransactionRef: NewTransactionRef(),
			IdempotencyKey: in.IdempotencyKey,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.WithContext(ctx).Create(&created).Error; err != nil {
			return err
		}
		return bookings.SetPaymentMirrorTx(tx, b.ID, string(StatusPending))
	})
	if err != nil {
		return PayBookingResult{}, err
	}

	// Idempotent hit on a submitted-or-settled payment: no second submission.
	if idempotent && created.Status != StatusPending {
		res := PayBookingResult{BookingID: in.BookingID, PaymentID: created.ID, Status: created.Status, Idempotent: true}
		if created.ReceiptNumber != nil {
			res.Receipt = *created.ReceiptNumber
		}
		return res, nil
	}

	return s.submit(ctx, created, in, instrument)
}

// submit is the pending -> processing step plus the provider call and the
// finalize transaction.
func (s *Service) submit(ctx context.Context, p Payment, in PayBookingInput, instrument Instrument) (PayBookingResult, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Model(&Payment{}).
			Where("id = ? AND status = ?", p.ID, StatusPending).
			Updates(map[string]any{"status": StatusProcessing, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// already submitted by a concurrent retry
			return apperr.StaleStateErr("Payment already submitted.")
		}
		if p.BookingID != nil {
			return bookings.SetPaymentMirrorTx(tx, *p.BookingID, string(StatusProcessing))
		}
		return nil
	})
	if err != nil {
		return PayBookingResult{}, err
	}

	// Phase 2: provider call, outside any transaction, bounded timeout.
	callCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()
	resp, perr := s.provider.CreatePayment(callCtx, CreatePaymentRequest{
		TransactionRef: p.TransactionRef,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Instrument:     instrument,
	})

	// Timeout: the payment stays in processing; the authoritative outcome
	// arrives later via the callback or the reconciliation sweep.
	if perr != nil && (errors.Is(perr, context.DeadlineExceeded) || callCtx.Err() != nil) {
		s.logger.WarnContext(ctx, "provider submit timed out, payment left processing",
			"payment_id", p.ID, "transaction_ref", p.TransactionRef,
			"amount", money.Format(p.Amount, p.Currency))
		return PayBookingResult{},
			apperr.ProviderTimeoutErr("Payment submitted; confirmation pending.", perr)
	}

	// Phase 3: finalize.
	var settled settleResult
	var finalStatus Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur Payment
		if err := dbutil.LockForUpdate(tx.WithContext(ctx)).First(&cur, "id = ?", p.ID).Error; err != nil {
			return err
		}
		// A callback may have raced us past processing; it wins.
		if terminal(cur.Status) {
			finalStatus = cur.Status
			return nil
		}

		now := time.Now()
		if perr != nil {
			sr, err := failPaymentTx(tx.WithContext(ctx), &cur, perr.Error())
			if err != nil {
				return err
			}
			settled = sr
			finalStatus = StatusFailed
			return nil
		}

		switch resp.Status {
		case StatusProcessing:
			updates := map[string]any{"updated_at": now}
			if resp.ProviderRef != "" {
				updates["external_ref"] = resp.ProviderRef
			}
			finalStatus = StatusProcessing
			return tx.WithContext(ctx).Model(&Payment{}).Where("id = ?", cur.ID).Updates(updates).Error
		case StatusCompleted:
			// synchronous settlement (e.g. cash recorded by an agent)
			sr, err := settlePaymentTx(tx.WithContext(ctx), &cur, resp.ProviderRef)
			if err != nil {
				return err
			}
			settled = sr
			finalStatus = StatusCompleted
			return nil
		default:
			sr, err := failPaymentTx(tx.WithContext(ctx), &cur, "provider declined")
			if err != nil {
				return err
			}
			settled = sr
			finalStatus = StatusFailed
			return nil
		}
	})
	if err != nil {
		return PayBookingResult{}, err
	}

	s.emitSettlement(ctx, p, finalStatus, settled)

	res := PayBookingResult{BookingID: in.BookingID, PaymentID: p.ID, Status: finalStatus, Receipt: settled.ReceiptNumber}
	return res, nil
}

// emitSettlement notifies only when this submission's finalize transaction
// made the terminal transition; a callback that raced past us has already
// notified.
func (s *Service) emitSettlement(ctx context.Context, p Payment, status Status, settled settleResult) {
	if !terminal(status) || !settled.Changed {
		return
	}
	s.notifier.Notify(ctx, notify.Event{
		EntityType: "payment", EntityID: p.ID,
		FromStatus: string(StatusProcessing), ToStatus: string(status), Timestamp: time.Now(),
	})
	if settled.Booking.Changed {
		s.notifier.Notify(ctx, notify.Event{
			EntityType: "booking", EntityID: *p.BookingID,
			FromStatus: string(settled.Booking.From), ToStatus: string(settled.Booking.To), Timestamp: time.Now(),
		})
	}
}

func (s *Service) resolveInstrument(ctx context.Context, in PayBookingInput) (Instrument, error) {
	if in.InstrumentID != "" {
		var m PaymentMethod
		if err := s.db.WithContext(ctx).First(&m, "id = ?", in.InstrumentID).Error; err != nil {
			return Instrument{}, err
		}
		if !in.Actor.IsAdmin() && m.UserID != in.Actor.UserID {
			return Instrument{}, ErrForbidden
		}
		return instrumentFrom(m), nil
	}

	inst := Instrument{Method: in.Method, PhoneNumber: in.PhoneNumber}
	if (in.Method == MethodMTNMoMo || in.Method == MethodAirtelMoney) && in.PhoneNumber == "" {
		return Instrument{}, apperr.InvalidErr("Mobile money needs a phone number.",
			map[string]string{"phone_number": "required"})
	}
	return inst, nil
}

func instrumentFrom(m PaymentMethod) Instrument {
	inst := Instrument{Method: m.Method}
	if m.PhoneNumber != nil {
		inst.PhoneNumber = *m.PhoneNumber
	}
	if m.Last4 != nil {
		inst.Last4 = *m.Last4
	}
	if m.BankName != nil {
		inst.BankName = *m.BankName
	}
	return inst
}
