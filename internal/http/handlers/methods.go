package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/middleware"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/validation"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/payments"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
)

type MethodsHandler struct {
	Svc *payments.MethodsService
}

func NewMethodsHandler(svc *payments.MethodsService) *MethodsHandler {
	return &MethodsHandler{Svc: svc}
}

type saveMethodRequest struct {
	Method      string `json:"method" binding:"required"`
	Last4       string `json:"last4"`
	PhoneNumber string `json:"phone_number"`
	BankName    string `json:"bank_name"`
	MakeDefault bool   `json:"make_default"`
}

// POST /api/payment-methods
func (h *MethodsHandler) Save(c *gin.Context) {
	var req saveMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Payment method is invalid.", validation.FromBindError(err, &req)))
		return
	}

	id, err := h.Svc.Save(c.Request.Context(), payments.SaveMethodInput{
		Actor:       middleware.CurrentActor(c),
		Method:      payments.Method(req.Method),
		Last4:       req.Last4,
		PhoneNumber: req.PhoneNumber,
		BankName:    req.BankName,
		MakeDefault: req.MakeDefault,
	})
	if err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// GET /api/payment-methods
func (h *MethodsHandler) List(c *gin.Context) {
	items, err := h.Svc.ListByUser(c.Request.Context(), middleware.CurrentActor(c).UserID)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// POST /api/payment-methods/:id/default
func (h *MethodsHandler) SetDefault(c *gin.Context) {
	if err := h.Svc.SetDefault(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c)); err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DELETE /api/payment-methods/:id
func (h *MethodsHandler) Delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c)); err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
