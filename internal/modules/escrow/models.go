package escrow

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketOpen      TicketStatus = "open"
	TicketAssigned  TicketStatus = "assigned"
	TicketCompleted TicketStatus = "completed"
	TicketRejected  TicketStatus = "rejected"
)

// MaintenanceTicket anchors escrowed job funds: the client funds the job,
// the money is held until the ticket completes (released to the provider)
// or is rejected (returned to the payer).
type MaintenanceTicket struct {
	ID         string  `gorm:"type:char(36);primaryKey"`
	PropertyID string  `gorm:"type:char(36);not null;index:ix_tickets_property_id"`
	ClientID   string  `gorm:"type:char(36);not null;index:ix_tickets_client_id"`
	ProviderID *string `gorm:"type:char(36);index:ix_tickets_provider_id"`

	Title       string       `gorm:"type:varchar(255);not null"`
	Description *string      `gorm:"type:text"`
	Status      TicketStatus `gorm:"type:varchar(16);not null"`

	Amount   *decimal.Decimal `gorm:"type:decimal(18,2)"`
	Currency *string          `gorm:"type:char(3)"`

	CreatedAt time.Time `gorm:"precision:3;not null"`
	UpdatedAt time.Time `gorm:"precision:3;not null"`
}

func (MaintenanceTicket) TableName() string { return "maintenance_tickets" }

// HoldState is the escrow view over the ticket's payment row.
type HoldState string

const (
	HoldNone     HoldState = "none"
	HoldHeld     HoldState = "held"
	HoldReleased HoldState = "released"
	HoldReturned HoldState = "returned"
)
