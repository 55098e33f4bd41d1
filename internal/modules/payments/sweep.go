package payments

import (
	"context"
	"time"
)

// StalePayment is a payment stuck in processing past the cutoff. The sweep
// only reports; resolution still comes exclusively through the callback.
type StalePayment struct {
	PaymentID      string
	TransactionRef string
	BookingID      *string
	Status         Status
	Age            time.Duration
}

func (s *Service) SweepStale(ctx context.Context, olderThan time.Duration) ([]StalePayment, error) {
	cutoff := time.Now().Add(-olderThan)

	var rows []Payment
	if err := s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", StatusProcessing, cutoff).
		Where("escrow = ?", false). // held escrow funds are processing on purpose
		Order("updated_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]StalePayment, len(rows))
	for i, p := range rows {
		out[i] = StalePayment{
			PaymentID:      p.ID,
			TransactionRef: p.TransactionRef,
			BookingID:      p.BookingID,
			Status:         p.Status,
			Age:            now.Sub(p.UpdatedAt),
		}
	}
	return out, nil
}
