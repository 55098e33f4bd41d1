package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/middleware"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/validation"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/payments"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
)

type PaymentsHandler struct {
	DB        *gorm.DB
	Svc       *payments.Service
	RefundSvc *payments.RefundService
}

func NewPaymentsHandler(db *gorm.DB, svc *payments.Service, refunds *payments.RefundService) *PaymentsHandler {
	return &PaymentsHandler{DB: db, Svc: svc, RefundSvc: refunds}
}

type payBookingRequest struct {
	Method         string `json:"method" binding:"required"`
	InstrumentID   string `json:"instrument_id"`
	PhoneNumber    string `json:"phone_number"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
}

// POST /api/bookings/:id/pay
func (h *PaymentsHandler) Pay(c *gin.Context) {
	var req payBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Payment request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	res, err := h.Svc.PayBooking(c.Request.Context(), payments.PayBookingInput{
		BookingID:      c.Param("id"),
		Actor:          middleware.CurrentActor(c),
		Method:         payments.Method(req.Method),
		InstrumentID:   req.InstrumentID,
		PhoneNumber:    req.PhoneNumber,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}

	status := http.StatusCreated
	if res.Idempotent {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"payment_id": res.PaymentID,
		"booking_id": res.BookingID,
		"status":     res.Status,
		"receipt":    res.Receipt,
		"idempotent": res.Idempotent,
	})
}

// GET /api/payments/:id
// The id may also be a transaction ref (TXN-...), the handle users quote from
// receipts and provider statements.
func (h *PaymentsHandler) Detail(c *gin.Context) {
	repo := payments.NewRepo(h.DB)
	id := c.Param("id")
	p, err := repo.Get(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) && strings.HasPrefix(id, "TXN-") {
		p, err = repo.GetByTransactionRef(c.Request.Context(), id)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Payment not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	act := middleware.CurrentActor(c)
	if !act.IsAdmin() && !act.IsSystem() {
		if p.UserID == nil || act.UserID == "" || *p.UserID != act.UserID {
			middleware.Fail(c, apperr.ForbiddenErr("You cannot view this payment."))
			return
		}
	}

	c.JSON(http.StatusOK, p)
}

// GET /api/bookings/:id/payments
func (h *PaymentsHandler) ListByBooking(c *gin.Context) {
	items, err := payments.NewRepo(h.DB).ListByBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GET /api/admin/bookings/:id/ledger
func (h *PaymentsHandler) Ledger(c *gin.Context) {
	items, err := payments.NewRepo(h.DB).LedgerByBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type refundRequest struct {
	Amount         string `json:"amount"` // empty => full remaining
	Reason         string `json:"reason" binding:"required"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
}

// POST /api/admin/payments/:id/refund
func (h *PaymentsHandler) Refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Refund request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	amount := decimal.Zero
	if req.Amount != "" {
		var err error
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil {
			middleware.Fail(c, apperr.InvalidErr("Amount is invalid.", map[string]string{"amount": "must be a decimal number"}))
			return
		}
	}

	res, err := h.RefundSvc.Refund(c.Request.Context(), payments.RefundInput{
		PaymentID:      c.Param("id"),
		Actor:          middleware.CurrentActor(c),
		Amount:         amount,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refund_id":  res.RefundID,
		"status":     res.Status,
		"amount":     res.Amount,
		"idempotent": res.Idempotent,
	})
}

// GET /api/admin/payments/stale?older_than=30m
// Reconciliation view: processing payments the provider never reported on.
func (h *PaymentsHandler) Stale(c *gin.Context) {
	olderThan := 30 * time.Minute
	if s := c.Query("older_than"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			middleware.Fail(c, apperr.InvalidErr("Invalid duration.", map[string]string{"older_than": "use Go duration syntax, e.g. 30m"}))
			return
		}
		olderThan = d
	}

	items, err := h.Svc.SweepStale(c.Request.Context(), olderThan)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
