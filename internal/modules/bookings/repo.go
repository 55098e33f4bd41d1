package bookings

import (
	"context"
	"strings"

	"gorm.io/gorm"
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Get(ctx context.Context, id string) (Booking, error) {
	var b Booking
	err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error
	return b, err
}

func (r *Repo) History(ctx context.Context, id string) ([]BookingEvent, error) {
	var evs []BookingEvent
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&evs, "booking_id = ?", id).Error
	return evs, err
}

type ListParams struct {
	UserID   string
	OwnerID  string
	Status   string // optional filter
	Page     int
	PageSize int
}

type ListResult struct {
	Items []Booking
	Total int64
}

func (r *Repo) List(ctx context.Context, in ListParams) (ListResult, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	size := in.PageSize
	if size < 1 || size > 100 {
		size = 20
	}

	q := r.db.WithContext(ctx).Model(&Booking{})
	if in.UserID != "" {
		q = q.Where("user_id = ?", in.UserID)
	}
	if in.OwnerID != "" {
		q = q.Where("owner_id = ?", in.OwnerID)
	}
	if s := strings.TrimSpace(in.Status); s != "" {
		q = q.Where("status = ?", s)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return ListResult{}, err
	}

	var items []Booking
	if err := q.
		Order("created_at DESC").
		Limit(size).
		Offset((page - 1) * size).
		Find(&items).Error; err != nil {
		return ListResult{}, err
	}

	return ListResult{Items: items, Total: total}, nil
}
