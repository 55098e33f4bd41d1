package payments

import "time"

// PaymentMethod is a saved instrument. Only a redacted representation is
// stored, never a raw credential.
type PaymentMethod struct {
	ID     string `gorm:"type:char(36);primaryKey"`
	UserID string `gorm:"type:char(36);not null;index:ix_payment_methods_user_id"`

	Method Method `gorm:"type:varchar(16);not null"`

	// redacted display fields, filled per method kind
	Last4       *string `gorm:"type:char(4)"`     // card
	PhoneNumber *string `gorm:"type:varchar(32)"` // mobile money
	BankName    *string `gorm:"type:varchar(64)"` // bank transfer

	IsDefault bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"precision:3;not null"`
	UpdatedAt time.Time `gorm:"precision:3;not null"`
}

func (PaymentMethod) TableName() string { return "payment_methods" }
