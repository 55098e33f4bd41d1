package bookings

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindViewing Kind = "viewing"
	KindInquiry Kind = "inquiry"
	KindBooking Kind = "booking"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	// StatusCancelling is the interim state of a cancel that still waits for
	// a refund confirmation from the payment provider.
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// Booking is never hard-deleted; cancellation is a terminal status, so the
// audit trail survives account deletion (contact fields are a snapshot).
type Booking struct {
	ID         string  `gorm:"type:char(36);primaryKey"`
	PropertyID string  `gorm:"type:char(36);not null;index:ix_bookings_property_id"`
	OwnerID    string  `gorm:"type:char(36);not null;index:ix_bookings_owner_id"`
	UserID     *string `gorm:"type:char(36);index:ix_bookings_user_id"` // nil for guest bookings

	Kind   Kind   `gorm:"type:varchar(16);not null"`
	Status Status `gorm:"type:varchar(16);not null"`

	ContactName  string `gorm:"type:varchar(255);not null"`
	ContactEmail string `gorm:"type:varchar(255);not null"`
	ContactPhone string `gorm:"type:varchar(32);not null"`

	// viewing
	ScheduledDate *time.Time `gorm:"type:date"`
	ScheduledTime *string    `gorm:"type:varchar(8)"` // HH:MM

	// purchase inquiry
	OfferAmount   *decimal.Decimal `gorm:"type:decimal(18,2)"`
	FinancingType *string          `gorm:"type:varchar(32)"`

	// short-stay booking
	CheckInDate  *time.Time `gorm:"type:date"`
	CheckOutDate *time.Time `gorm:"type:date"`
	Guests       *int

	// rental booking
	LeaseMonths *int
	MoveInDate  *time.Time `gorm:"type:date"`

	PaymentAmount *decimal.Decimal `gorm:"type:decimal(18,2)"`
	Currency      *string          `gorm:"type:char(3)"`
	// PaymentStatus mirrors the linked payment's status for fast reads; it is
	// written in the same transaction as every payment status change.
	PaymentStatus *string `gorm:"type:varchar(32)"`

	CancelReason *string `gorm:"type:varchar(255)"`

	CreatedAt time.Time `gorm:"precision:3;not null"`
	UpdatedAt time.Time `gorm:"precision:3;not null"`
}

func (Booking) TableName() string { return "bookings" }

// BookingEvent is the append-only status-history side table.
type BookingEvent struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	BookingID   string    `gorm:"type:char(36);not null;index:ix_booking_events_booking_id"`
	ActorUserID string    `gorm:"type:char(36);not null"`
	ActorRole   string    `gorm:"type:varchar(16);not null"`
	Action      string    `gorm:"type:varchar(32);not null"`
	FromStatus  string    `gorm:"type:varchar(16);not null"`
	ToStatus    string    `gorm:"type:varchar(16);not null"`
	Note        *string   `gorm:"type:varchar(255)"`
	CreatedAt   time.Time `gorm:"precision:3;not null"`
}

func (BookingEvent) TableName() string { return "booking_events" }
