package verification

import "errors"

var (
	ErrNoDocuments    = errors.New("at least one document is required")
	ErrReasonRequired = errors.New("a rejection reason is required")
)
