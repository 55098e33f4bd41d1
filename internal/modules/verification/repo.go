package verification

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Get(ctx context.Context, id string) (VerificationRequest, error) {
	var req VerificationRequest
	err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error
	return req, err
}

func (r *Repo) GetProvider(ctx context.Context, id string) (ServiceProvider, error) {
	var sp ServiceProvider
	err := r.db.WithContext(ctx).First(&sp, "id = ?", id).Error
	return sp, err
}

func (r *Repo) ListByProvider(ctx context.Context, providerID string) ([]VerificationRequest, error) {
	var reqs []VerificationRequest
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&reqs, "provider_id = ?", providerID).Error
	return reqs, err
}

// ListPending is the admin review queue, oldest first.
func (r *Repo) ListPending(ctx context.Context, limit int) ([]VerificationRequest, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var reqs []VerificationRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&reqs).Error
	return reqs, err
}
