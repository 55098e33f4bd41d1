package bookings

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/notify"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/actor"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/dbutil"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/money"
)

// CancelOutcome reports what the payment side did about a cancellation.
type CancelOutcome string

const (
	CancelOutcomeNoPayment CancelOutcome = "no_payment" // nothing to unwind
	CancelOutcomeVoided    CancelOutcome = "voided"     // pending payment cancelled before submission
	CancelOutcomeRefunding CancelOutcome = "refunding"  // refund submitted, waiting for provider
	CancelOutcomeRefunded  CancelOutcome = "refunded"   // refund confirmed synchronously
	CancelOutcomeInFlight  CancelOutcome = "in_flight"  // payment still processing, settle later
)

// CancellationSettler unwinds money attached to a booking being cancelled.
// Implemented by the payments module; injected to keep the dependency
// direction payments -> bookings.
type CancellationSettler interface {
	SettleCancellation(ctx context.Context, bookingID, reason string, act actor.Actor) (CancelOutcome, error)
}

type Service struct {
	db       *gorm.DB
	settler  CancellationSettler
	notifier notify.Notifier
	logger   *slog.Logger
}

func NewService(db *gorm.DB, settler CancellationSettler, n notify.Notifier) *Service {
	if n == nil {
		n = notify.Noop{}
	}
	return &Service{db: db, settler: settler, notifier: n, logger: slog.Default()}
}

func (s *Service) SetLogger(logger *slog.Logger) { s.logger = logger }

type CreateInput struct {
	Kind       Kind
	PropertyID string
	OwnerID    string
	Requester  actor.Actor // UserID empty for guest bookings

	ContactName  string
	ContactEmail string
	ContactPhone string

	ScheduledDate *time.Time
	ScheduledTime string

	OfferAmount   *decimal.Decimal
	FinancingType string

	CheckInDate  *time.Time
	CheckOutDate *time.Time
	Guests       int

	LeaseMonths int
	MoveInDate  *time.Time

	PaymentAmount *decimal.Decimal
	Currency      string
}

// Create validates the kind-specific field group and persists a new pending
// booking. No payment is initiated here.
func (s *Service) Create(ctx context.Context, in CreateInput) (string, error) {
	if fields := validateCreate(in); len(fields) > 0 {
		return "", apperr.InvalidErr("Booking request is invalid.", fields)
	}

	now := time.Now()
	b := Booking{
		ID:           uuid.NewString(),
		PropertyID:   in.PropertyID,
		OwnerID:      in.OwnerID,
		Kind:         in.Kind,
		Status:       StatusPending,
		ContactName:  strings.TrimSpace(in.ContactName),
		ContactEmail: strings.TrimSpace(in.ContactEmail),
		ContactPhone: strings.TrimSpace(in.ContactPhone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Requester.UserID != "" {
		uid := in.Requester.UserID
		b.UserID = &uid
	}

	switch in.Kind {
	case KindViewing:
		b.ScheduledDate = in.ScheduledDate
		t := in.ScheduledTime
		b.ScheduledTime = &t
	case KindInquiry:
		b.OfferAmount = in.OfferAmount
		if in.FinancingType != "" {
			f := in.FinancingType
			b.FinancingType = &f
		}
	case KindBooking:
		b.CheckInDate = in.CheckInDate
		b.CheckOutDate = in.CheckOutDate
		if in.Guests > 0 {
			g := in.Guests
			b.Guests = &g
		}
		if in.LeaseMonths > 0 {
			l := in.LeaseMonths
			b.LeaseMonths = &l
		}
		b.MoveInDate = in.MoveInDate
	}

	if in.PaymentAmount != nil {
		b.PaymentAmount = in.PaymentAmount
		cur := in.Currency
		b.Currency = &cur
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&b).Error; err != nil {
			return err
		}
		return appendEvent(tx, &b, in.Requester, "create", "", StatusPending, nil)
	})
	if err != nil {
		return "", err
	}
	return b.ID, nil
}

// validateCreate enforces the per-kind required field groups. The switch is
// exhaustive over Kind so a new kind fails loudly here first.
func validateCreate(in CreateInput) map[string]string {
	fields := map[string]string{}

	if in.PropertyID == "" {
		fields["property_id"] = "required"
	}
	if in.OwnerID == "" {
		fields["owner_id"] = "required"
	}
	if strings.TrimSpace(in.ContactName) == "" {
		fields["contact_name"] = "required"
	}
	if strings.TrimSpace(in.ContactPhone) == "" {
		fields["contact_phone"] = "required"
	}
	if in.Requester.UserID == "" && strings.TrimSpace(in.ContactEmail) == "" {
		fields["contact_email"] = "required for guest bookings"
	}

	switch in.Kind {
	case KindViewing:
		if in.ScheduledDate == nil {
			fields["scheduled_date"] = "required for a viewing"
		}
		if in.ScheduledTime == "" {
			fields["scheduled_time"] = "required for a viewing"
		} else if _, err := time.Parse("15:04", in.ScheduledTime); err != nil {
			fields["scheduled_time"] = "must be HH:MM"
		}
	case KindInquiry:
		if in.OfferAmount != nil {
			if in.Currency == "" {
				fields["currency"] = "required with an offer amount"
			} else if err := money.Validate(*in.OfferAmount, in.Currency); err != nil {
				fields["offer_amount"] = err.Error()
			}
		}
	case KindBooking:
		stay := in.CheckInDate != nil || in.CheckOutDate != nil
		rental := in.LeaseMonths > 0 || in.MoveInDate != nil
		switch {
		case stay:
			if in.CheckInDate == nil || in.CheckOutDate == nil {
				fields["check_in_date"] = "both check-in and check-out are required"
			} else if !in.CheckInDate.Before(*in.CheckOutDate) {
				fields["check_out_date"] = "check-out must be after check-in"
			}
		case rental:
			if in.LeaseMonths <= 0 {
				fields["lease_months"] = "required for a rental booking"
			}
			if in.MoveInDate == nil {
				fields["move_in_date"] = "required for a rental booking"
			}
		default:
			fields["kind"] = "a booking needs stay dates or lease terms"
		}
	default:
		fields["kind"] = "unknown booking kind"
	}

	if in.PaymentAmount != nil {
		if in.Currency == "" {
			fields["currency"] = "required with a payment amount"
		} else if err := money.Validate(*in.PaymentAmount, in.Currency); err != nil {
			fields["payment_amount"] = err.Error()
		}
	}

	return fields
}

// Confirm approves a pending booking. Only the property owner or an admin may
// confirm. Payment, if any, is a separate step and is not required here.
func (s *Service) Confirm(ctx context.Context, bookingID string, act actor.Actor) error {
	return s.transition(ctx, bookingID, act, "confirm", "", func(b *Booking) error {
		if !act.IsAdmin() && !(act.Role == actor.RoleOwner && act.UserID == b.OwnerID) {
			return ErrForbidden
		}
		return nil
	})
}

// Reject declines a pending booking. Same authorization as Confirm.
func (s *Service) Reject(ctx context.Context, bookingID string, act actor.Actor, reason string) error {
	return s.transition(ctx, bookingID, act, "reject", reason, func(b *Booking) error {
		if !act.IsAdmin() && !(act.Role == actor.RoleOwner && act.UserID == b.OwnerID) {
			return ErrForbidden
		}
		return nil
	})
}

// Complete closes out a confirmed booking. Triggered by the owner or by the
// system once the stay has ended.
func (s *Service) Complete(ctx context.Context, bookingID string, act actor.Actor) error {
	return s.transition(ctx, bookingID, act, "complete", "", func(b *Booking) error {
		if act.IsSystem() || act.IsAdmin() {
			return nil
		}
		if act.Role == actor.RoleOwner && act.UserID == b.OwnerID {
			return nil
		}
		return ErrForbidden
	})
}

// transition is the shared single-step path: lock, authorize, move along the
// state machine with an optimistic guard, append the audit event.
func (s *Service) transition(ctx context.Context, bookingID string, act actor.Actor, action, note string, authz func(*Booking) error) error {
	if bookingID == "" {
		return ErrNotActionable
	}

	var from, to Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b Booking
		if err := dbutil.LockForUpdate(tx.WithContext(ctx)).First(&b, "id = ?", bookingID).Error; err != nil {
			return err
		}
		if err := authz(&b); err != nil {
			return err
		}

		from = b.Status
		next, err := nextStatus(from, action)
		if err != nil {
			return err
		}
		to = next

		now := time.Now()
		res := tx.WithContext(ctx).Model(&Booking{}).
			Where("id = ? AND status = ?", b.ID, from). // optimistic guard
			Updates(map[string]any{"status": to, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.StaleStateErr("Booking changed concurrently, re-read and retry.")
		}

		var notePtr *string
		if n := strings.TrimSpace(note); n != "" {
			notePtr = &n
		}
		return appendEvent(tx, &b, act, action, from, to, notePtr)
	})
	if err != nil {
		return err
	}

	if isTerminal(to) {
		s.notifier.Notify(ctx, notify.Event{
			EntityType: "booking", EntityID: bookingID,
			FromStatus: string(from), ToStatus: string(to), Timestamp: time.Now(),
		})
	}
	return nil
}

// Cancel tears down a pending or confirmed booking. When a completed payment
// exists the refund must at least reach processing before the booking leaves
// its prior status; it then sits in cancelling until the refund is confirmed.
func (s *Service) Cancel(ctx context.Context, bookingID string, act actor.Actor, reason string) error {
	if bookingID == "" {
		return ErrNotActionable
	}

	// Phase 1: lock + validate, no writes yet.
	var from Status
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b Booking
		if err := dbutil.LockForUpdate(tx.WithContext(ctx)).First(&b, "id = ?", bookingID).Error; err != nil {
			return err
		}
		if err := authorizeCancel(&b, act); err != nil {
			return err
		}
		from = b.Status
		_, err := nextStatus(from, "cancel")
		return err
	})
	if err != nil {
		return err
	}

	// Phase 2: unwind money outside the transaction (may call the provider).
	outcome := CancelOutcomeNoPayment
	if s.settler != nil {
		outcome, err = s.settler.SettleCancellation(ctx, bookingID, reason, act)
		if err != nil {
			return err
		}
	}

	action := "cancel"
	if outcome == CancelOutcomeRefunding || outcome == CancelOutcomeInFlight {
		action = "begin_cancel"
	}

	// Phase 3: commit the booking transition, re-checking the state.
	var to Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b Booking
		if err := dbutil.LockForUpdate(tx.WithContext(ctx)).First(&b, "id = ?", bookingID).Error; err != nil {
			return err
		}
		if b.Status != from {
			return apperr.StaleStateErr("Booking changed concurrently, re-read and retry.")
		}

		next, err := nextStatus(b.Status, action)
		if err != nil {
			return err
		}
		to = next

		now := time.Now()
		updates := map[string]any{"status": to, "updated_at": now}
		if r := strings.TrimSpace(reason); r != "" {
			updates["cancel_reason"] = r
		}
		res := tx.WithContext(ctx).Model(&Booking{}).
			Where("id = ? AND status = ?", b.ID, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.StaleStateErr("Booking changed concurrently, re-read and retry.")
		}

		note := "outcome=" + string(outcome)
		return appendEvent(tx, &b, act, action, from, to, &note)
	})
	if err != nil {
		return err
	}

	if isTerminal(to) {
		s.notifier.Notify(ctx, notify.Event{
			EntityType: "booking", EntityID: bookingID,
			FromStatus: string(from), ToStatus: string(to), Timestamp: time.Now(),
		})
	} else {
		s.logger.InfoContext(ctx, "booking cancellation pending refund",
			"booking_id", bookingID, "outcome", string(outcome))
	}
	return nil
}

func authorizeCancel(b *Booking, act actor.Actor) error {
	if act.IsAdmin() || act.IsSystem() {
		return nil
	}
	if act.Role == actor.RoleOwner && act.UserID == b.OwnerID {
		return nil
	}
	if act.Role == actor.RoleClient && b.UserID != nil && act.UserID == *b.UserID {
		return nil
	}
	return ErrForbidden
}

func appendEvent(tx *gorm.DB, b *Booking, act actor.Actor, action string, from, to Status, note *string) error {
	ev := BookingEvent{
		ID:          uuid.NewString(),
		BookingID:   b.ID,
		ActorUserID: act.UserID,
		ActorRole:   string(act.Role),
		Action:      action,
		FromStatus:  string(from),
		ToStatus:    string(to),
		Note:        note,
		CreatedAt:   time.Now(),
	}
	return tx.Create(&ev).Error
}
