package payments

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Get(ctx context.Context, id string) (Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return p, err
}

func (r *Repo) GetByTransactionRef(ctx context.Context, ref string) (Payment, error) {
	var p Payment
	err := r.db.WithContext(ctx).First(&p, "transaction_ref = ?", ref).Error
	return p, err
}

func (r *Repo) ListByBooking(ctx context.Context, bookingID string) ([]Payment, error) {
	var out []Payment
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&out, "booking_id = ?", bookingID).Error
	return out, err
}

func (r *Repo) LedgerByBooking(ctx context.Context, bookingID string) ([]FinancialEntry, error) {
	var out []FinancialEntry
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&out, "booking_id = ?", bookingID).Error
	return out, err
}
