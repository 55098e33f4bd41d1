package payments

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/actor"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/dbutil"
)

// MethodsService manages saved instruments. Credentials never touch this
// system; only redacted display fields are stored.
type MethodsService struct {
	db *gorm.DB
}

func NewMethodsService(db *gorm.DB) *MethodsService { return &MethodsService{db: db} }

type SaveMethodInput struct {
	Actor       actor.Actor
	Method      Method
	Last4       string
	PhoneNumber string
	BankName    string
	MakeDefault bool
}

func (s *MethodsService) Save(ctx context.Context, in SaveMethodInput) (string, error) {
	if !ValidMethod(in.Method) {
		return "", ErrUnknownMethod
	}
	fields := map[string]string{}
	switch in.Method {
	case MethodCard:
		if len(in.Last4) != 4 {
			fields["last4"] = "card instruments store exactly the last 4 digits"
		}
	case MethodMTNMoMo, MethodAirtelMoney:
		if strings.TrimSpace(in.PhoneNumber) == "" {
			fields["phone_number"] = "required"
		}
	case MethodBankTransfer:
		if strings.TrimSpace(in.BankName) == "" {
			fields["bank_name"] = "required"
		}
	}
	if len(fields) > 0 {
		return "", apperr.InvalidErr("Payment method is invalid.", fields)
	}

	now := time.Now()
	m := PaymentMethod{
		ID:        uuid.NewString(),
		UserID:    in.Actor.UserID,
		Method:    in.Method,
		IsDefault: in.MakeDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Last4 != "" {
		m.Last4 = strptr(in.Last4)
	}
	if in.PhoneNumber != "" {
		m.PhoneNumber = strptr(in.PhoneNumber)
	}
	if in.BankName != "" {
		m.BankName = strptr(in.BankName)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.MakeDefault {
			// at most one default per user
			if err := tx.WithContext(ctx).Model(&PaymentMethod{}).
				Where("user_id = ? AND is_default = ?", in.Actor.UserID, true).
				Updates(map[string]any{"is_default": false, "updated_at": now}).Error; err != nil {
				return err
			}
		}
		return tx.WithContext(ctx).Create(&m).Error
	})
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (s *MethodsService) SetDefault(ctx context.Context, id string, act actor.Actor) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m PaymentMethod
		if err := dbutil.LockForUpdate(tx.WithContext(ctx)).First(&m, "id = ?", id).Error; err != nil {
			return err
		}
		if !act.IsAdmin() && m.UserID != act.UserID {
			return ErrForbidden
		}

		now := time.Now()
		if err := tx.WithContext(ctx).Model(&PaymentMethod{}).
			Where("user_id = ? AND is_default = ? AND id <> ?", m.UserID, true, m.ID).
			Updates(map[string]any{"is_default": false, "updated_at": now}).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Model(&PaymentMethod{}).
			Where("id = ?", m.ID).
			Updates(map[string]any{"is_default": true, "updated_at": now}).Error
	})
}

func (s *MethodsService) ListByUser(ctx context.Context, userID string) ([]PaymentMethod, error) {
	var out []PaymentMethod
	err := s.db.WithContext(ctx).
		Order("is_default DESC, created_at DESC").
		Find(&out, "user_id = ?", userID).Error
	return out, err
}

func (s *MethodsService) Delete(ctx context.Context, id string, act actor.Actor) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m PaymentMethod
		if err := tx.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
			return err
		}
		if !act.IsAdmin() && m.UserID != act.UserID {
			return ErrForbidden
		}
		return tx.WithContext(ctx).Delete(&PaymentMethod{}, "id = ?", id).Error
	})
}
