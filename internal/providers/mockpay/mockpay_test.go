package mockpay

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/payments"
)

const testSecret = "whsec_test"

func fixedProvider(at time.Time) *Provider {
	p := New(testSecret)
	p.now = func() time.Time { return at }
	return p
}

func signedHeaders(t int64, body []byte) http.Header {
	h := http.Header{}
	h.Set(SignatureHeader, "t="+strconv.FormatInt(t, 10)+",v1="+ComputeSignature([]byte(testSecret), t, body))
	return h
}

func TestVerifyAndParseCallback(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	p := fixedProvider(now)

	body := []byte(`{
		"id": "evt_123",
		"type": "payment.completed",
		"data": {
			"payment_ref": "pay_abc",
			"internal_ref": "TXN-deadbeef",
			"amount": "150000.00",
			"currency": "UGX"
		}
	}`)

	ev, err := p.VerifyAndParseCallback(signedHeaders(now.Unix(), body), body)
	require.NoError(t, err)
	assert.Equal(t, "evt_123", ev.EventID)
	assert.Equal(t, "payment.completed", ev.Type)
	assert.Equal(t, "pay_abc", ev.PaymentRef)
	assert.Equal(t, "TXN-deadbeef", ev.InternalRef)
	assert.Equal(t, "UGX", ev.Currency)
	assert.True(t, ev.Amount.Equal(decimal.NewFromInt(150_000)))
}

func TestVerifyAndParseCallback_MissingHeader(t *testing.T) {
	p := fixedProvider(time.Now())
	_, err := p.VerifyAndParseCallback(http.Header{}, []byte(`{}`))
	assert.ErrorIs(t, err, ErrMissingSignature)
}

func TestVerifyAndParseCallback_BadSignature(t *testing.T) {
	now := time.Now()
	p := fixedProvider(now)
	body := []byte(`{"id":"evt_1","type":"payment.completed"}`)

	// wrong secret
	h := http.Header{}
	h.Set(SignatureHeader, "t="+strconv.FormatInt(now.Unix(), 10)+",v1="+ComputeSignature([]byte("other"), now.Unix(), body))
	_, err := p.VerifyAndParseCallback(h, body)
	assert.ErrorIs(t, err, ErrBadSignature)

	// tampered body
	h = signedHeaders(now.Unix(), body)
	_, err = p.VerifyAndParseCallback(h, []byte(`{"id":"evt_2","type":"payment.completed"}`))
	assert.ErrorIs(t, err, ErrBadSignature)

	// malformed header
	h = http.Header{}
	h.Set(SignatureHeader, "v1=abc")
	_, err = p.VerifyAndParseCallback(h, body)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyAndParseCallback_StaleTimestamp(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	p := fixedProvider(now)
	body := []byte(`{"id":"evt_1","type":"payment.completed"}`)

	old := now.Add(-6 * time.Minute).Unix()
	_, err := p.VerifyAndParseCallback(signedHeaders(old, body), body)
	assert.ErrorIs(t, err, ErrStaleTimestamp)

	// a future timestamp beyond tolerance is equally suspect
	future := now.Add(6 * time.Minute).Unix()
	_, err = p.VerifyAndParseCallback(signedHeaders(future, body), body)
	assert.ErrorIs(t, err, ErrStaleTimestamp)

	// inside tolerance stays valid
	recent := now.Add(-4 * time.Minute).Unix()
	_, err = p.VerifyAndParseCallback(signedHeaders(recent, body), body)
	assert.NoError(t, err)
}

func TestVerifyAndParseCallback_PayloadErrors(t *testing.T) {
	now := time.Now()
	p := fixedProvider(now)

	sign := func(body []byte) (http.Header, []byte) {
		return signedHeaders(now.Unix(), body), body
	}

	_, err := p.VerifyAndParseCallback(sign([]byte(`not json`)))
	assert.Error(t, err)

	_, err = p.VerifyAndParseCallback(sign([]byte(`{"type":"payment.completed"}`)))
	assert.Error(t, err) // no id

	_, err = p.VerifyAndParseCallback(sign([]byte(`{"id":"evt_1","type":"payment.completed","data":{"amount":"lots"}}`)))
	assert.Error(t, err) // unparseable amount
}

func TestCreatePayment(t *testing.T) {
	p := New(testSecret)
	resp, err := p.CreatePayment(context.Background(), payments.CreatePaymentRequest{
		TransactionRef: "TXN-1", Amount: decimal.NewFromInt(1000), Currency: "UGX",
	})
	require.NoError(t, err)
	assert.Equal(t, payments.StatusProcessing, resp.Status)
	assert.True(t, strings.HasPrefix(resp.ProviderRef, "pay_"))
}

func TestRefundPayment(t *testing.T) {
	p := New(testSecret)
	resp, err := p.RefundPayment(context.Background(), payments.RefundRequest{
		TransactionRef: "TXN-2", Amount: decimal.NewFromInt(500), Currency: "UGX",
	})
	require.NoError(t, err)
	assert.Equal(t, payments.StatusProcessing, resp.Status)
	assert.True(t, strings.HasPrefix(resp.ProviderRef, "ref_"))
}
