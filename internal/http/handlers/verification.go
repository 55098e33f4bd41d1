package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/middleware"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/validation"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/verification"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/storage"
)

const maxDocumentSize = 10 << 20 // 10 MiB per document

type VerificationHandler struct {
	DB    *gorm.DB
	Svc   *verification.Service
	Store storage.Storage
}

func NewVerificationHandler(db *gorm.DB, svc *verification.Service, store storage.Storage) *VerificationHandler {
	return &VerificationHandler{DB: db, Svc: svc, Store: store}
}

// POST /api/verification/documents (multipart)
// Uploads one document and returns its storage key for a later Submit.
func (h *VerificationHandler) UploadDocument(c *gin.Context) {
	fh, err := c.FormFile("document")
	if err != nil {
		middleware.Fail(c, apperr.InvalidErr("A document file is required.", map[string]string{"document": "missing file"}))
		return
	}
	if fh.Size > maxDocumentSize {
		middleware.Fail(c, apperr.InvalidErr("Document is too large.", map[string]string{"document": "max 10 MiB"}))
		return
	}

	f, err := fh.Open()
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	defer f.Close()

	res, err := h.Store.Put(c.Request.Context(), f, storage.PutInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	})
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"key": res.Key, "url": res.URL})
}

type submitVerificationRequest struct {
	ProviderID string   `json:"provider_id" binding:"required"`
	Documents  []string `json:"documents" binding:"required,min=1"`
}

// POST /api/verification/requests
func (h *VerificationHandler) Submit(c *gin.Context) {
	var req submitVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Verification request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	vr, err := h.Svc.Submit(c.Request.Context(), middleware.CurrentActor(c), req.ProviderID, req.Documents)
	if err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": vr.ID, "status": vr.Status})
}

type reviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// POST /api/admin/verification/requests/:id/review (admin)
func (h *VerificationHandler) Review(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Review request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	vr, err := h.Svc.Review(c.Request.Context(), verification.ReviewInput{
		RequestID: c.Param("id"),
		Approve:   req.Approve,
		Reason:    req.Reason,
		Reviewer:  middleware.CurrentActor(c),
	})
	if err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": vr.ID, "status": vr.Status})
}

// GET /api/verification/requests/:id
func (h *VerificationHandler) Detail(c *gin.Context) {
	vr, err := verification.NewRepo(h.DB).Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Verification request not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	act := middleware.CurrentActor(c)
	if !act.IsAdmin() && !act.IsSystem() && act.UserID != vr.ProviderID {
		middleware.Fail(c, apperr.ForbiddenErr("You cannot view this request."))
		return
	}
	c.JSON(http.StatusOK, vr)
}

// GET /api/admin/verification/requests (admin review queue)
func (h *VerificationHandler) Pending(c *gin.Context) {
	items, err := verification.NewRepo(h.DB).ListPending(c.Request.Context(), intQuery(c, "limit", 50))
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
