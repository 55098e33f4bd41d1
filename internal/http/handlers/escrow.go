package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/middleware"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/validation"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/escrow"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/payments"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
)

type EscrowHandler struct {
	Svc *escrow.Service
}

func NewEscrowHandler(svc *escrow.Service) *EscrowHandler {
	return &EscrowHandler{Svc: svc}
}

type createTicketRequest struct {
	PropertyID  string `json:"property_id" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"required"`
}

// POST /api/tickets
func (h *EscrowHandler) CreateTicket(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Ticket request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("Amount is invalid.", map[string]string{"amount": "must be a decimal number"}))
		return
	}

	id, err := h.Svc.CreateTicket(c.Request.Context(), escrow.CreateTicketInput{
		PropertyID:  req.PropertyID,
		Actor:       middleware.CurrentActor(c),
		Title:       req.Title,
		Description: req.Description,
		Amount:      amount,
		Currency:    req.Currency,
	})
	if err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type assignRequest struct {
	ProviderID string `json:"provider_id" binding:"required"`
}

// POST /api/tickets/:id/assign
func (h *EscrowHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Assign request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	if err := h.Svc.Assign(c.Request.Context(), c.Param("id"), req.ProviderID, middleware.CurrentActor(c)); err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type fundRequest struct {
	Method         string `json:"method" binding:"required"`
	PhoneNumber    string `json:"phone_number"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
}

// POST /api/tickets/:id/fund
func (h *EscrowHandler) Fund(c *gin.Context) {
	var req fundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Fund request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	paymentID, err := h.Svc.Fund(c.Request.Context(), escrow.FundInput{
		TicketID:       c.Param("id"),
		Actor:          middleware.CurrentActor(c),
		Method:         payments.Method(req.Method),
		PhoneNumber:    req.PhoneNumber,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment_id": paymentID})
}

// POST /api/tickets/:id/complete
// Releases the held funds to the provider in the same transaction.
func (h *EscrowHandler) Complete(c *gin.Context) {
	if err := h.Svc.Complete(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c)); err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /api/tickets/:id/reject
// Returns the held funds to the client.
func (h *EscrowHandler) Reject(c *gin.Context) {
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.Svc.Reject(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c), req.Reason); err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/tickets/:id/escrow
func (h *EscrowHandler) State(c *gin.Context) {
	state, err := h.Svc.State(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
