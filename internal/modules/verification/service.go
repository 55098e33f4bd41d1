package verification

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/notify"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/actor"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/dbutil"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/storage"
)

type Service struct {
	db       *gorm.DB
	store    storage.Storage
	notifier notify.Notifier
	logger   *slog.Logger
}

func NewService(db *gorm.DB, store storage.Storage, n notify.Notifier) *Service {
	if n == nil {
		n = notify.Noop{}
	}
	return &Service{db: db, store: store, notifier: n, logger: slog.Default()}
}

func (s *Service) SetLogger(logger *slog.Logger) { s.logger = logger }

// Submit files a verification request for a provider. If a pending request
// already exists, its document set is replaced in place so a provider never
// has two requests in review at once.
func (s *Service) Submit(ctx context.Context, act actor.Actor, providerID string, docKeys []string) (*VerificationRequest, error) {
	if act.UserID != providerID && !act.IsAdmin() && !act.IsSystem() {
		return nil, apperr.ForbiddenErr("You cannot submit verification for this provider.")
	}

	keys := dedupeKeys(docKeys)
	if len(keys) == 0 {
		return nil, apperr.InvalidErr("At least one document is required.", map[string]string{"documents": ErrNoDocuments.Error()})
	}
	for _, k := range keys {
		ok, err := s.store.Exists(ctx, k)
		if err != nil {
			return nil, apperr.Wrap(err)
		}
		if !ok {
			return nil, apperr.InvalidErr("Unknown document key.", map[string]string{"documents": k})
		}
	}

	docsJSON, err := json.Marshal(keys)
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	var req VerificationRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sp ServiceProvider
		if err := dbutil.LockForUpdate(tx).First(&sp, "id = ?", providerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundErr("Provider not found.")
			}
			return err
		}

		now := time.Now()
		var existing VerificationRequest
		err := dbutil.LockForUpdate(tx).
			Where("provider_id = ? AND status = ?", providerID, StatusPending).
			First(&existing).Error
		switch {
		case err == nil:
			existing.Documents = docsJSON
			existing.UpdatedAt = now
			if err := tx.Model(&VerificationRequest{}).
				Where("id = ?", existing.ID).
				Updates(map[string]any{"documents": docsJSON, "updated_at": now}).Error; err != nil {
				return err
			}
			req = existing
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			req = VerificationRequest{
				ID:         uuid.NewString(),
				ProviderID: providerID,
				Status:     StatusPending,
				Documents:  docsJSON,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			return tx.Create(&req).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("verification request submitted",
		"request_id", req.ID, "provider_id", providerID, "documents", len(keys))
	return &req, nil
}

type ReviewInput struct {
	RequestID string
	Approve   bool
	Reason    string
	Reviewer  actor.Actor
}

// Review settles a pending request. Approval is the only write path that
// turns on the provider's verified flags; rejection requires a reason and
// leaves the flags untouched.
func (s *Service) Review(ctx context.Context, in ReviewInput) (*VerificationRequest, error) {
	if !in.Reviewer.IsAdmin() && !in.Reviewer.IsSystem() {
		return nil, apperr.ForbiddenErr("Only an administrator can review verification requests.")
	}
	reason := strings.TrimSpace(in.Reason)
	if !in.Approve && reason == "" {
		return nil, apperr.InvalidErr("A rejection reason is required.", map[string]string{"reason": ErrReasonRequired.Error()})
	}

	var req VerificationRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := dbutil.LockForUpdate(tx).First(&req, "id = ?", in.RequestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFoundErr("Verification request not found.")
			}
			return err
		}
		if req.Status != StatusPending {
			return apperr.IllegalTransitionErr("This request has already been reviewed.")
		}

		now := time.Now()
		to := StatusRejected
		if in.Approve {
			to = StatusApproved
		}
		updates := map[string]any{
			"status":      to,
			"reviewed_by": in.Reviewer.UserID,
			"reviewed_at": now,
			"updated_at":  now,
		}
		if !in.Approve {
			updates["rejection_reason"] = reason
		}
		res := tx.Model(&VerificationRequest{}).
			Where("id = ? AND status = ?", req.ID, StatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.StaleStateErr("The request changed while reviewing, try again.")
		}

		if in.Approve {
			if err := tx.Model(&ServiceProvider{}).
				Where("id = ?", req.ProviderID).
				Updates(map[string]any{
					"is_verified":     true,
					"is_kyc_verified": true,
					"verified_at":     now,
					"updated_at":      now,
				}).Error; err != nil {
				return err
			}
		}

		req.Status = to
		req.ReviewedBy = &in.Reviewer.UserID
		req.ReviewedAt = &now
		if !in.Approve {
			req.RejectionReason = &reason
		}
		req.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notify.Event{
		EntityType: "verification_request",
		EntityID:   req.ID,
		FromStatus: string(StatusPending),
		ToStatus:   string(req.Status),
		Timestamp:  time.Now(),
	})
	s.logger.Info("verification request reviewed",
		"request_id", req.ID, "provider_id", req.ProviderID, "status", req.Status)
	return &req, nil
}

func dedupeKeys(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
