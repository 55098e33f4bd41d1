package payments

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/bookings"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/notify"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/actor"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&bookings.Booking{}, &bookings.BookingEvent{},
		&Payment{}, &PaymentMethod{}, &ProviderEvent{}, &FinancialEntry{},
	))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

type memNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (m *memNotifier) Notify(_ context.Context, ev notify.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *memNotifier) all() []notify.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Event(nil), m.events...)
}

func (m *memNotifier) count(entityType string) int {
	n := 0
	for _, ev := range m.all() {
		if ev.EntityType == entityType {
			n++
		}
	}
	return n
}

// stubProvider scripts the provider side of a submission.
type stubProvider struct {
	mu sync.Mutex

	createResp CreatePaymentResponse
	createErr  error
	refundResp RefundResponse
	refundErr  error

	createCalls int
	refundCalls int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) CreatePayment(_ context.Context, _ CreatePaymentRequest) (CreatePaymentResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls++
	if p.createErr != nil {
		return CreatePaymentResponse{}, p.createErr
	}
	resp := p.createResp
	if resp.Status == "" {
		resp = CreatePaymentResponse{ProviderRef: "pay_" + uuid.NewString()[:8], Status: StatusProcessing}
	}
	return resp, nil
}

func (p *stubProvider) RefundPayment(_ context.Context, _ RefundRequest) (RefundResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refundCalls++
	if p.refundErr != nil {
		return RefundResponse{}, p.refundErr
	}
	resp := p.refundResp
	if resp.Status == "" {
		resp = RefundResponse{ProviderRef: "ref_" + uuid.NewString()[:8], Status: StatusProcessing}
	}
	return resp, nil
}

func (p *stubProvider) VerifyAndParseCallback(_ http.Header, _ []byte) (CallbackEvent, error) {
	return CallbackEvent{}, nil
}

func clientActor() actor.Actor { return actor.Actor{UserID: "client-1", Role: actor.RoleClient} }
func adminActor() actor.Actor  { return actor.Actor{UserID: "admin-1", Role: actor.RoleAdmin} }

// seedBooking inserts a payable booking owned by client-1.
func seedBooking(t *testing.T, db *gorm.DB, status bookings.Status, amount int64) bookings.Booking {
	t.Helper()
	uid := "client-1"
	amt := decimal.NewFromInt(amount)
	cur := "UGX"
	now := time.Now()
	b := bookings.Booking{
		ID:            uuid.NewString(),
		PropertyID:    "prop-1",
		OwnerID:       "owner-1",
		UserID:        &uid,
		Kind:          bookings.KindBooking,
		Status:        status,
		ContactName:   "Jane Doe",
		ContactEmail:  "jane@example.com",
		ContactPhone:  "+256700000001",
		PaymentAmount: &amt,
		Currency:      &cur,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, db.Create(&b).Error)
	return b
}

func getPayment(t *testing.T, db *gorm.DB, id string) Payment {
	t.Helper()
	var p Payment
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p
}

func getBooking(t *testing.T, db *gorm.DB, id string) bookings.Booking {
	t.Helper()
	var b bookings.Booking
	require.NoError(t, db.First(&b, "id = ?", id).Error)
	return b
}
