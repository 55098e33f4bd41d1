package payments

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
)

// Instrument is the redacted payment instrument handed to the provider.
type Instrument struct {
	Method      Method
	PhoneNumber string // mobile money
	Last4       string // card
	BankName    string // bank transfer
}

type CreatePaymentRequest struct {
	TransactionRef string // our idempotency key towards the provider
	Amount         decimal.Decimal
	Currency       string
	Instrument     Instrument
}

type CreatePaymentResponse struct {
	ProviderRef string
	Status      Status // processing|completed|failed
}

type RefundRequest struct {
	TransactionRef string // the refund's own ref
	PaymentRef     string // original payment's provider ref (if available)
	Amount         decimal.Decimal
	Currency       string
	Reason         string
}

type RefundResponse struct {
	ProviderRef string
	Status      Status // processing|completed|failed
}

// CallbackEvent is the parsed asynchronous provider report. Its wire schema
// is fixed and versioned; see the adapter for the exact format.
type CallbackEvent struct {
	EventID string
	Type    string // payment.completed|payment.failed|refund.completed|refund.failed

	PaymentRef  string // provider ref for payment events
	RefundRef   string // provider ref for refund events
	InternalRef string // our transaction ref, echoed back when present

	Amount   decimal.Decimal
	Currency string

	FailureReason string
}

type Provider interface {
	Name() string
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (CreatePaymentResponse, error)
	RefundPayment(ctx context.Context, req RefundRequest) (RefundResponse, error)

	// Callback: verify signature + parse event
	VerifyAndParseCallback(headers http.Header, body []byte) (CallbackEvent, error)
}
