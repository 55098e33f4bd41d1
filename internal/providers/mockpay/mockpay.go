// Package mockpay is a stand-in payment rail used in development and
// staging. It accepts every submission asynchronously and reports the
// terminal outcome through the signed callback endpoint, which makes the
// full pending -> processing -> completed/failed loop exercisable without
// a live aggregator account.
package mockpay

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/payments"
)

const SignatureHeader = "X-Callback-Signature"

// signatureTolerance bounds how stale a callback timestamp may be before
// the signature is rejected, limiting replay of captured requests.
const signatureTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("mockpay: missing signature header")
	ErrBadSignature     = errors.New("mockpay: signature mismatch")
	ErrStaleTimestamp   = errors.New("mockpay: timestamp outside tolerance")
)

type Provider struct {
	secret []byte
	now    func() time.Time
}

func New(secret string) *Provider {
	return &Provider{secret: []byte(secret), now: time.Now}
}

func (p *Provider) Name() string { return "mockpay" }

func (p *Provider) CreatePayment(ctx context.Context, req payments.CreatePaymentRequest) (payments.CreatePaymentResponse, error) {
	_ = ctx
	return payments.CreatePaymentResponse{
		ProviderRef: "pay_" + randomHex(12),
		Status:      payments.StatusProcessing,
	}, nil
}

func (p *Provider) RefundPayment(ctx context.Context, req payments.RefundRequest) (payments.RefundResponse, error) {
	_ = ctx
	return payments.RefundResponse{
		ProviderRef: "ref_" + randomHex(12),
		Status:      payments.StatusProcessing,
	}, nil
}

// callbackPayload is the wire schema, versioned through the v1 signature
// scheme. Amount travels as a decimal string.
type callbackPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		PaymentRef    string `json:"payment_ref"`
		RefundRef     string `json:"refund_ref"`
		InternalRef   string `json:"internal_ref"`
		Amount        string `json:"amount"`
		Currency      string `json:"currency"`
		FailureReason string `json:"failure_reason"`
	} `json:"data"`
}

func (p *Provider) VerifyAndParseCallback(headers http.Header, body []byte) (payments.CallbackEvent, error) {
	sig := headers.Get(SignatureHeader)
	if sig == "" {
		return payments.CallbackEvent{}, ErrMissingSignature
	}

	t, v1, err := parseSignature(sig)
	if err != nil {
		return payments.CallbackEvent{}, err
	}

	sent := time.Unix(t, 0)
	if d := p.now().Sub(sent); d > signatureTolerance || d < -signatureTolerance {
		return payments.CallbackEvent{}, ErrStaleTimestamp
	}

	want := ComputeSignature(p.secret, t, body)
	if !hmac.Equal([]byte(want), []byte(v1)) {
		return payments.CallbackEvent{}, ErrBadSignature
	}

	var payload callbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return payments.CallbackEvent{}, fmt.Errorf("mockpay: parse payload: %w", err)
	}
	if payload.ID == "" || payload.Type == "" {
		return payments.CallbackEvent{}, errors.New("mockpay: payload missing id or type")
	}

	amount := decimal.Zero
	if payload.Data.Amount != "" {
		amount, err = decimal.NewFromString(payload.Data.Amount)
		if err != nil {
			return payments.CallbackEvent{}, fmt.Errorf("mockpay: bad amount %q: %w", payload.Data.Amount, err)
		}
	}

	return payments.CallbackEvent{
		EventID:       payload.ID,
		Type:          payload.Type,
		PaymentRef:    payload.Data.PaymentRef,
		RefundRef:     payload.Data.RefundRef,
		InternalRef:   payload.Data.InternalRef,
		Amount:        amount,
		Currency:      payload.Data.Currency,
		FailureReason: payload.Data.FailureReason,
	}, nil
}

// parseSignature splits "t=<unix>,v1=<hex>".
func parseSignature(header string) (int64, string, error) {
	var tPart, vPart string
	for _, part := range strings.Split(header, ",") {
		switch {
		case strings.HasPrefix(part, "t="):
			tPart = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v1="):
			vPart = strings.TrimPrefix(part, "v1=")
		}
	}
	if tPart == "" || vPart == "" {
		return 0, "", ErrBadSignature
	}
	t, err := strconv.ParseInt(tPart, 10, 64)
	if err != nil {
		return 0, "", ErrBadSignature
	}
	return t, vPart, nil
}

// ComputeSignature signs "<t>.<body>" with HMAC-SHA256. Exported so the
// callback simulator tool and tests can produce valid headers.
func ComputeSignature(secret []byte, t int64, body []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(strconv.FormatInt(t, 10)))
	m.Write([]byte("."))
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
