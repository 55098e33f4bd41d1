package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
)

func TestMethodsSave_Validation(t *testing.T) {
	db := openTestDB(t)
	svc := NewMethodsService(db)

	_, err := svc.Save(context.Background(), SaveMethodInput{Actor: clientActor(), Method: "crypto"})
	assert.ErrorIs(t, err, ErrUnknownMethod)

	_, err = svc.Save(context.Background(), SaveMethodInput{
		Actor: clientActor(), Method: MethodCard, Last4: "12",
	})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Invalid, ae.Kind)
	assert.Contains(t, ae.Fields, "last4")

	_, err = svc.Save(context.Background(), SaveMethodInput{Actor: clientActor(), Method: MethodMTNMoMo})
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Fields, "phone_number")

	_, err = svc.Save(context.Background(), SaveMethodInput{Actor: clientActor(), Method: MethodBankTransfer})
	ae, ok = apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.Fields, "bank_name")
}

func TestMethodsSave_MakeDefaultClearsSiblings(t *testing.T) {
	db := openTestDB(t)
	svc := NewMethodsService(db)

	first, err := svc.Save(context.Background(), SaveMethodInput{
		Actor: clientActor(), Method: MethodMTNMoMo, PhoneNumber: "+256700000001", MakeDefault: true,
	})
	require.NoError(t, err)

	second, err := svc.Save(context.Background(), SaveMethodInput{
		Actor: clientActor(), Method: MethodCard, Last4: "4242", MakeDefault: true,
	})
	require.NoError(t, err)

	methods, err := svc.ListByUser(context.Background(), "client-1")
	require.NoError(t, err)
	require.Len(t, methods, 2)
	// default sorts first
	assert.Equal(t, second, methods[0].ID)
	assert.True(t, methods[0].IsDefault)
	assert.Equal(t, first, methods[1].ID)
	assert.False(t, methods[1].IsDefault)
}

func TestMethodsSetDefault(t *testing.T) {
	db := openTestDB(t)
	svc := NewMethodsService(db)

	first, err := svc.Save(context.Background(), SaveMethodInput{
		Actor: clientActor(), Method: MethodMTNMoMo, PhoneNumber: "+256700000001", MakeDefault: true,
	})
	require.NoError(t, err)
	second, err := svc.Save(context.Background(), SaveMethodInput{
		Actor: clientActor(), Method: MethodCard, Last4: "4242",
	})
	require.NoError(t, err)

	require.NoError(t, svc.SetDefault(context.Background(), second, clientActor()))

	methods, err := svc.ListByUser(context.Background(), "client-1")
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.Equal(t, second, methods[0].ID)
	assert.True(t, methods[0].IsDefault)
	assert.Equal(t, first, methods[1].ID)
	assert.False(t, methods[1].IsDefault)

	// someone else's instrument is off limits
	other := clientActor()
	other.UserID = "client-2"
	assert.ErrorIs(t, svc.SetDefault(context.Background(), second, other), ErrForbidden)
}

func TestMethodsDelete(t *testing.T) {
	db := openTestDB(t)
	svc := NewMethodsService(db)

	id, err := svc.Save(context.Background(), SaveMethodInput{
		Actor: clientActor(), Method: MethodCard, Last4: "4242",
	})
	require.NoError(t, err)

	other := clientActor()
	other.UserID = "client-2"
	assert.ErrorIs(t, svc.Delete(context.Background(), id, other), ErrForbidden)

	// admin may delete on the user's behalf
	require.NoError(t, svc.Delete(context.Background(), id, adminActor()))

	err = db.First(&PaymentMethod{}, "id = ?", id).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
