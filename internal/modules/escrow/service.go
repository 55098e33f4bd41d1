package escrow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/notify"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/payments"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/actor"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/dbutil"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/money"
)

const submitTimeout = 10 * time.Second

type Service struct {
	db       *gorm.DB
	provider payments.Provider
	notifier notify.Notifier
	logger   *slog.Logger
}

func NewService(db *gorm.DB, p payments.Provider, n notify.Notifier) *Service {
	if n == nil {
		n = notify.Noop{}
	}
	return &Service{db: db, provider: p, notifier: n, logger: slog.Default()}
}

func (s *Service) SetLogger(logger *slog.Logger) { s.logger = logger }

type CreateTicketInput struct {
	PropertyID  string
	Actor       actor.Actor
	Title       string
	Description string
	Amount      decimal.Decimal
	Currency    string
}

func (s *Service) CreateTicket(ctx context.Context, in CreateTicketInput) (string, error) {
	fields := map[string]string{}
	if in.PropertyID == "" {
		fields["property_id"] = "required"
	}
	if in.Title == "" {
		fields["title"] = "required"
	}
	if err := money.Validate(in.Amount, in.Currency); err != nil {
		fields["amount"] = err.Error()
	}
	if len(fields) > 0 {
		return "", apperr.InvalidErr("Maintenance ticket is invalid.", fields)
	}

	now := time.Now()
	t := MaintenanceTicket{
		ID:         uuid.NewString(),
		PropertyID: in.PropertyID,
		ClientID:   in.Actor.UserID,
		Title:      in.Title,
		Status:     TicketOpen,
		Amount:     &in.Amount,
		Currency:   &in.Currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.Description != "" {
		d := in.Description
		t.Description = &d
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return "", err
	}
	return t.ID, nil
}

// Assign attaches a verified provider to an open ticket.
func (s *Service) Assign(ctx context.Context, ticketID, providerID string, act actor.Actor) error {
	if !act.IsAdmin() && act.Role != actor.RoleOwner {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t MaintenanceTicket
		if err := dbutil.LockForUpdate(tx.WithContext(ctx)).First(&t, "id = ?", ticketID).Error; err != nil {
			return err
		}
		if t.Status != TicketOpen {
			return ErrTicketNotOpen
		}
		return tx.WithContext(ctx).Model(&MaintenanceTicket{}).
			Where("id = ? AND status = ?", t.ID, TicketOpen).
			Updates(map[string]any{"provider_id": providerID, "status": TicketAssigned, "updated_at": time.Now()}).Error
	})
}

type FundInput struct {
	TicketID       string
	Actor          actor.Actor
	Method         payments.Method
	PhoneNumber    string
	IdempotencyKey string
}

// Fund moves the ticket's escrow from none to held: an Escrow payment row is
// created and submitted, and it parks in processing until release or return.
func (s *Service) Fund(ctx context.Context, in FundInput) (string, error) {
	if in.TicketID == "" || in.IdempotencyKey == "" {
		return "", ErrNotFundable
	}
	if !payments.ValidMethod(in.Method) {
		return "", payments.ErrUnknownMethod
	}

	// Phase 1: ticket lock + single-hold gate + escrow row create.
	var created payments.Payment
	var idempotent bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t MaintenanceTicket
		if err := dbutil.LockForUpdate(tx.WithContext(ctx)).First(&t, "id = ?", in.TicketID).Error; err != nil {
			return err
		}
		if !in.Actor.IsAdmin() && in.Actor.UserID != t.ClientID {
			return ErrForbidden
		}
		if t.Status != TicketOpen && t.Status != TicketAssigned {
			return ErrNotFundable
		}
		if t.Amount == nil || t.Currency == nil {
			return ErrNotFundable
		}

		var existing payments.Payment
		e := tx.WithContext(ctx).First(&existing, "ticket_id = ? AND idempotency_key = ?", t.ID, in.IdempotencyKey).Error
		if e == nil {
			created = existing
			idempotent = true
			return nil
		}
		if !errors.Is(e, gorm.ErrRecordNotFound) {
			return e
		}

		var held int64
		if err := tx.WithContext(ctx).Model(&payments.Payment{}).
			Where("ticket_id = ? AND escrow = ? AND status IN ?", t.ID, true,
				[]payments.Status{payments.StatusPending, payments.StatusProcessing, payments.StatusCompleted}).
			Count(&held).Error; err != nil {
			return err
		}
		if held > 0 {
			return ErrAlreadyFunded
		}

		now := time.Now()
		uid := t.ClientID
		created = payments.Payment{
			ID:             uuid.NewString(),
			UserID:         &uid,
			PropertyID:     &t.PropertyID,
			TicketID:       &t.ID,
			Type:           payments.TypeDeposit,
			Status:         payments.StatusPending,
			Method:         in.Method,
			Amount:         *t.Amount,
			Currency:       *t.Currency,
			Provider:       s.provider.Name(),
			TransactionRef: payments.NewTransactionRef(),
			IdempotencyKey: in.IdempotencyKey,
			Escrow:         true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return tx.WithContext(ctx).Create(&created).Error
	})
	if err != nil {
		return "", err
	}

	if idempotent && created.Status != payments.StatusPending {
		return created.ID, nil
	}

	// submit: pending -> processing (held), then the provider call
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Model(&payments.Payment{}).
			Where("id = ? AND status = ?", created.ID, payments.StatusPending).
			Updates(map[string]any{"status": payments.StatusProcessing, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.StaleStateErr("Escrow funding already submitted.")
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	resp, perr := s.provider.CreatePayment(callCtx, payments.CreatePaymentRequest{
		TransactionRef: created.TransactionRef,
		Amount:         created.Amount,
		Currency:       created.Currency,
		Instrument:     payments.Instrument{Method: in.Method, PhoneNumber: in.PhoneNumber},
	})
	if perr != nil && (errors.Is(perr, context.DeadlineExceeded) || callCtx.Err() != nil) {
		// held anyway; the funding callback confirms later
		s.logger.WarnContext(ctx, "escrow funding submit timed out",
			"payment_id", created.ID, "ticket_id", in.TicketID)
		return created.ID, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if perr != nil {
			return tx.WithContext(ctx).Model(&payments.Payment{}).
				Where("id = ? AND status = ?", created.ID, payments.StatusProcessing).
				Updates(map[string]any{
					"status":         payments.StatusFailed,
					"failure_reason": perr.Error(),
					"updated_at":     now,
				}).Error
		}
		// funded (sync or async): escrow stays held in processing either way
		if resp.ProviderRef != "" {
			return tx.WithContext(ctx).Model(&payments.Payment{}).
				Where("id = ?", created.ID).
				Updates(map[string]any{"external_ref": resp.ProviderRef, "updated_at": now}).Error
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if perr != nil {
		return "", apperr.ProviderDeclinedErr("Escrow funding was declined.", perr)
	}
	return created.ID, nil
}

// Complete closes the job and releases the held funds to the provider.
func (s *Service) Complete(ctx context.Context, ticketID string, act actor.Actor) error {
	var released bool
	var paymentID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if !act.IsAdmin() && !act.IsSystem() && !(act.Role == actor.RoleClient && act.UserID == t.ClientID) {
			return ErrForbidden
		}
		if t.Status != TicketAssigned {
			return ErrTicketNotClosing
		}
		if t.ProviderID == nil {
			return ErrNoProvider
		}

		if err := tx.WithContext(ctx).Model(&MaintenanceTicket{}).
			Where("id = ? AND status = ?", t.ID, TicketAssigned).
			Updates(map[string]any{"status": TicketCompleted, "updated_at": time.Now()}).Error; err != nil {
			return err
		}

		p, err := s.lockHeld(ctx, tx, t.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil // unfunded job, nothing to release
			}
			return err
		}
		_, changed, err := payments.ReleaseEscrowTx(tx.WithContext(ctx), &p)
		if err != nil {
			return err
		}
		released = changed
		paymentID = p.ID
		return nil
	})
	if err != nil {
		return err
	}

	if released {
		s.notifier.Notify(ctx, notify.Event{
			EntityType: "payment", EntityID: paymentID,
			FromStatus: string(payments.StatusProcessing), ToStatus: string(payments.StatusCompleted),
			Timestamp: time.Now(),
		})
	}
	return nil
}

// Reject closes the job against the provider and returns held funds to the
// payer. Also used for admin-resolved disputes.
func (s *Service) Reject(ctx context.Context, ticketID string, act actor.Actor, reason string) error {
	var returned bool
	var paymentID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.lockTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		if !act.IsAdmin() && !(act.Role == actor.RoleClient && act.UserID == t.ClientID) {
			return ErrForbidden
		}
		if t.Status != TicketAssigned && t.Status != TicketOpen {
			return ErrTicketNotClosing
		}

		if err := tx.WithContext(ctx).Model(&MaintenanceTicket{}).
			Where("id = ? AND status = ?", t.ID, t.Status).
			Updates(map[string]any{"status": TicketRejected, "updated_at": time.Now()}).Error; err != nil {
			return err
		}

		p, err := s.lockHeld(ctx, tx, t.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		changed, err := payments.ReturnEscrowTx(tx.WithContext(ctx), &p, reason)
		if err != nil {
			return err
		}
		returned = changed
		paymentID = p.ID
		return nil
	})
	if err != nil {
		return err
	}

	if returned {
		s.notifier.Notify(ctx, notify.Event{
			EntityType: "payment", EntityID: paymentID,
			FromStatus: string(payments.StatusProcessing), ToStatus: string(payments.StatusRefunded),
			Timestamp: time.Now(),
		})
	}
	return nil
}

// State reports the ticket's escrow position.
func (s *Service) State(ctx context.Context, ticketID string) (HoldState, error) {
	var p payments.Payment
	err := s.db.WithContext(ctx).
		Where("ticket_id = ? AND escrow = ?", ticketID, true).
		Order("created_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return HoldNone, nil
	}
	if err != nil {
		return "", err
	}
	switch p.Status {
	case payments.StatusProcessing:
		return HoldHeld, nil
	case payments.StatusCompleted:
		return HoldReleased, nil
	case payments.StatusRefunded:
		return HoldReturned, nil
	default:
		return HoldNone, nil
	}
}

func (s *Service) lockTicket(ctx context.Context, tx *gorm.DB, id string) (MaintenanceTicket, error) {
	var t MaintenanceTicket
	err := dbutil.LockForUpdate(tx.WithContext(ctx)).First(&t, "id = ?", id).Error
	return t, err
}

func (s *Service) lockHeld(ctx context.Context, tx *gorm.DB, ticketID string) (payments.Payment, error) {
	var p payments.Payment
	err := dbutil.LockForUpdate(tx.WithContext(ctx)).
		Where("ticket_id = ? AND escrow = ? AND status = ?", ticketID, true, payments.StatusProcessing).
		First(&p).Error
	return p, err
}
