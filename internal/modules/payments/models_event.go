package payments

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ProviderEvent stores every received provider callback, raw payload included.
// The unique (provider, event_id) index is the callback dedupe mechanism.
type ProviderEvent struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	Provider    string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_provider_events_provider_event,priority:1"`
	EventID     string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_events_provider_event,priority:2"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	PayloadJSON datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt   time.Time  `gorm:"precision:3;not null"`
	ProcessedAt  *time.Time `gorm:"precision:3"`
	ProcessError *string    `gorm:"type:varchar(255)"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

// FinancialEntry is the append-only money audit trail: one signed row per
// settled or refunded payment. Not a general ledger.
type FinancialEntry struct {
	ID        string          `gorm:"type:char(36);primaryKey"`
	BookingID *string         `gorm:"type:char(36);index:ix_fin_entries_booking_id"`
	Event     string          `gorm:"type:varchar(32);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency  string          `gorm:"type:char(3);not null"`
	RefType   string          `gorm:"type:varchar(16);not null;index:ix_fin_entries_ref,priority:1"`
	RefID     string          `gorm:"type:char(36);not null;index:ix_fin_entries_ref,priority:2"`
	CreatedAt time.Time       `gorm:"precision:3;not null"`
}

func (FinancialEntry) TableName() string { return "financial_entries" }
