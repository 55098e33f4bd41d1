package bookings

// The booking state machine:
//
//	pending    -> confirmed | rejected | cancelled | cancelling
//	confirmed  -> completed | cancelled | cancelling
//	cancelling -> cancelled
//
// completed, cancelled and rejected are terminal. cancelling is entered only
// when a cancel has to wait for a refund confirmation.
func nextStatus(from Status, action string) (Status, error) {
	switch action {
	case "confirm":
		if from == StatusPending {
			return StatusConfirmed, nil
		}
		return "", ErrInvalidTransition
	case "reject":
		if from == StatusPending {
			return StatusRejected, nil
		}
		return "", ErrInvalidTransition
	case "cancel":
		if from == StatusPending || from == StatusConfirmed {
			return StatusCancelled, nil
		}
		return "", ErrInvalidTransition
	case "begin_cancel":
		if from == StatusPending || from == StatusConfirmed {
			return StatusCancelling, nil
		}
		return "", ErrInvalidTransition
	case "finalize_cancel":
		if from == StatusCancelling {
			return StatusCancelled, nil
		}
		return "", ErrInvalidTransition
	case "complete":
		if from == StatusConfirmed {
			return StatusCompleted, nil
		}
		return "", ErrInvalidTransition
	default:
		return "", ErrInvalidTransition
	}
}

func isTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}
