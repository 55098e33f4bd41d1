package payments

import "errors"

var (
	ErrBookingNotPayable   = errors.New("booking not payable")
	ErrActivePaymentExists = errors.New("booking already has an active payment")
	ErrForbidden           = errors.New("forbidden")
	ErrNotRefundable       = errors.New("payment not refundable")
	ErrEscrowHeld          = errors.New("escrow funds cannot go through the refund path")
	ErrRefundExceedsAmount = errors.New("refund exceeds the refundable amount")
	ErrUnknownMethod       = errors.New("unknown payment method")

	// ErrEventUnprocessable marks callback events no retry can fix; the
	// transport acknowledges them so the provider stops resending.
	ErrEventUnprocessable = errors.New("callback event cannot be processed")
)
