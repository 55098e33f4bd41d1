package handlers

import (
	"errors"

	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/bookings"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/escrow"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/payments"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
)

// svcErr maps module sentinel errors onto the apperr taxonomy so the
// ErrorHandler middleware can pick the right status. AppErrors pass through.
func svcErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFoundErr("Not found.")

	case errors.Is(err, bookings.ErrForbidden),
		errors.Is(err, payments.ErrForbidden),
		errors.Is(err, escrow.ErrForbidden):
		return apperr.ForbiddenErr("You cannot perform this action.")

	case errors.Is(err, bookings.ErrInvalidTransition),
		errors.Is(err, bookings.ErrNotActionable):
		return apperr.IllegalTransitionErr("The booking does not allow this transition.")

	case errors.Is(err, payments.ErrUnknownMethod):
		return apperr.InvalidErr("Unknown payment method.", map[string]string{"method": "unsupported"})

	case errors.Is(err, payments.ErrBookingNotPayable):
		return apperr.ConflictErr("This booking cannot be paid.")
	case errors.Is(err, payments.ErrActivePaymentExists):
		return apperr.ConflictErr("The booking already has an active payment.")
	case errors.Is(err, payments.ErrNotRefundable):
		return apperr.ConflictErr("This payment cannot be refunded.")
	case errors.Is(err, payments.ErrRefundExceedsAmount):
		return apperr.ConflictErr("The refund exceeds the refundable amount.")
	case errors.Is(err, payments.ErrEscrowHeld):
		return apperr.ConflictErr("Held escrow funds must be released or returned through the ticket.")

	case errors.Is(err, escrow.ErrNotFundable):
		return apperr.ConflictErr("This ticket cannot be funded.")
	case errors.Is(err, escrow.ErrAlreadyFunded):
		return apperr.ConflictErr("The ticket already has held funds.")
	case errors.Is(err, escrow.ErrNotHeld):
		return apperr.ConflictErr("No held funds for this ticket.")
	case errors.Is(err, escrow.ErrNoProvider):
		return apperr.ConflictErr("The ticket has no assigned provider.")
	case errors.Is(err, escrow.ErrTicketNotOpen),
		errors.Is(err, escrow.ErrTicketNotClosing):
		return apperr.IllegalTransitionErr("The ticket does not allow this transition.")
	}

	return apperr.Wrap(err)
}
