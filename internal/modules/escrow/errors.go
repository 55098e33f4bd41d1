package escrow

import "errors"

var (
	ErrNotFundable      = errors.New("ticket not fundable")
	ErrAlreadyFunded    = errors.New("ticket already has held funds")
	ErrNotHeld          = errors.New("no held funds for this ticket")
	ErrNoProvider       = errors.New("ticket has no assigned provider")
	ErrForbidden        = errors.New("forbidden")
	ErrTicketNotOpen    = errors.New("ticket not open")
	ErrTicketNotClosing = errors.New("ticket not in a closable state")
)
