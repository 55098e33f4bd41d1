package verification

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ServiceProvider is the slice of the provider profile this workflow owns:
// the verification flags. Review approval is the only write path that sets
// them true.
type ServiceProvider struct {
	ID            string     `gorm:"type:char(36);primaryKey"`
	DisplayName   string     `gorm:"type:varchar(255);not null"`
	IsVerified    bool       `gorm:"not null;default:false"`
	IsKycVerified bool       `gorm:"not null;default:false"`
	VerifiedAt    *time.Time `gorm:"precision:3"`

	CreatedAt time.Time `gorm:"precision:3;not null"`
	UpdatedAt time.Time `gorm:"precision:3;not null"`
}

func (ServiceProvider) TableName() string { return "service_providers" }

// VerificationRequest: at most one pending row per provider; a resubmission
// while one is pending replaces its document set instead of adding a row.
type VerificationRequest struct {
	ID         string `gorm:"type:char(36);primaryKey"`
	ProviderID string `gorm:"type:char(36);not null;index:ix_verification_requests_provider_id"`

	Status    Status         `gorm:"type:varchar(16);not null"`
	Documents datatypes.JSON `gorm:"type:json;not null"` // storage keys

	RejectionReason *string    `gorm:"type:varchar(255)"`
	ReviewedBy      *string    `gorm:"type:char(36)"`
	ReviewedAt      *time.Time `gorm:"precision:3"`

	CreatedAt time.Time `gorm:"precision:3;not null"`
	UpdatedAt time.Time `gorm:"precision:3;not null"`
}

func (VerificationRequest) TableName() string { return "verification_requests" }
