package bookings

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrForbidden         = errors.New("actor may not perform this transition")
	ErrNotActionable     = errors.New("booking not actionable")
)
