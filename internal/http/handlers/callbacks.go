package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/middleware"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/payments"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
)

type CallbackHandler struct {
	Logger      *slog.Logger
	Provider    payments.Provider
	CallbackSvc *payments.CallbackService
}

func NewCallbackHandler(logger *slog.Logger, p payments.Provider, svc *payments.CallbackService) *CallbackHandler {
	return &CallbackHandler{Logger: logger, Provider: p, CallbackSvc: svc}
}

// POST /callbacks/:provider
// Body is raw JSON; the signature header is validated by the provider
// adapter before anything is persisted.
func (h *CallbackHandler) Handle(c *gin.Context) {
	if c.Param("provider") != h.Provider.Name() {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "unknown provider"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	ev, err := h.Provider.VerifyAndParseCallback(c.Request.Header, body)
	if err != nil {
		h.Logger.Warn("callback rejected",
			"request_id", middleware.GetRequestID(c), "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid signature or payload"})
		return
	}

	if err := h.CallbackSvc.Handle(c.Request.Context(), h.Provider.Name(), ev, body); err != nil {
		// A conflicting report is recorded and acknowledged so the provider
		// stops retrying; anything else returns 500 to trigger a retry.
		if ae, ok := apperr.As(err); ok && ae.Kind == apperr.Conflict {
			h.Logger.Error("callback conflict",
				"event_id", ev.EventID, "type", ev.Type, "err", err)
			c.JSON(http.StatusOK, gin.H{"ok": false, "conflict": true})
			return
		}
		if errors.Is(err, payments.ErrEventUnprocessable) {
			c.JSON(http.StatusOK, gin.H{"ok": false})
			return
		}
		h.Logger.Error("callback apply failed",
			"event_id", ev.EventID, "type", ev.Type, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
