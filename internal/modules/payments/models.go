package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypeBooking    Type = "booking"
	TypeRent       Type = "rent"
	TypeDeposit    Type = "deposit"
	TypeViewing    Type = "viewing"
	TypeServiceFee Type = "service_fee"
	TypeCommission Type = "commission"
	TypeRefund     Type = "refund"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusCancelled  Status = "cancelled"
)

type Method string

const (
	MethodMTNMoMo      Method = "mtn_momo"
	MethodAirtelMoney  Method = "airtel_money"
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodCash         Method = "cash"
)

func ValidMethod(m Method) bool {
	switch m {
	case MethodMTNMoMo, MethodAirtelMoney, MethodCard, MethodBankTransfer, MethodCash:
		return true
	}
	return false
}

type Payment struct {
	ID         string  `gorm:"type:char(36);primaryKey"`
	UserID     *string `gorm:"type:char(36);index:ix_payments_user_id"`
	PropertyID *string `gorm:"type:char(36)"`
	BookingID  *string `gorm:"type:char(36);index:ix_payments_booking_id"`
	// TicketID links escrow rows to their maintenance ticket.
	TicketID *string `gorm:"type:char(36);index:ix_payments_ticket_id"`
	// RefundOfID links a type=refund row back to the payment it reverses.
	RefundOfID *string `gorm:"type:char(36);index:ix_payments_refund_of_id"`

	Type   Type   `gorm:"type:varchar(16);not null"`
	Status Status `gorm:"type:varchar(16);not null"`
	Method Method `gorm:"type:varchar(16);not null"`

	Amount   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency string          `gorm:"type:char(3);not null"`

	Provider string `gorm:"type:varchar(64);not null"`
	// TransactionRef is our side of the idempotency pair: generated once,
	// immutable, sent to the provider with every submission.
	TransactionRef string `gorm:"type:varchar(64);not null;uniqueIndex:ux_payments_transaction_ref"`
	// ExternalRef is assigned by the provider; may arrive late or never.
	ExternalRef    *string `gorm:"type:varchar(128);index:ix_payments_external_ref"`
	IdempotencyKey string  `gorm:"type:varchar(64);not null"`

	// Escrow marks held maintenance-job funds: the row stays in processing
	// until an explicit release or return, and the refund path refuses it.
	Escrow bool `gorm:"not null;default:false"`

	FailureReason *string `gorm:"type:varchar(255)"`

	// ReceiptNumber is generated only on the transition into completed.
	ReceiptNumber *string    `gorm:"type:varchar(32);uniqueIndex:ux_payments_receipt_number"`
	CompletedAt   *time.Time `gorm:"precision:3"`

	RefundedAmount *decimal.Decimal `gorm:"type:decimal(18,2)"`
	RefundedAt     *time.Time       `gorm:"precision:3"`
	RefundReason   *string          `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"precision:3;not null"`
	UpdatedAt time.Time `gorm:"precision:3;not null"`
}

func (Payment) TableName() string { return "payments" }

// Remaining is the amount still refundable against this payment.
func (p Payment) Remaining() decimal.Decimal {
	if p.RefundedAmount == nil {
		return p.Amount
	}
	return p.Amount.Sub(*p.RefundedAmount)
}

func terminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRefunded || s == StatusCancelled
}
