package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/middleware"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/validation"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/bookings"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/shared/apperr"
)

type BookingsHandler struct {
	DB  *gorm.DB
	Svc *bookings.Service
}

func NewBookingsHandler(db *gorm.DB, svc *bookings.Service) *BookingsHandler {
	return &BookingsHandler{DB: db, Svc: svc}
}

type createBookingRequest struct {
	Kind       string `json:"kind" binding:"required,oneof=viewing inquiry booking"`
	PropertyID string `json:"property_id" binding:"required"`
	OwnerID    string `json:"owner_id" binding:"required"`

	ContactName  string `json:"contact_name" binding:"required"`
	ContactEmail string `json:"contact_email" binding:"required,email"`
	ContactPhone string `json:"contact_phone" binding:"required"`

	ScheduledDate *time.Time `json:"scheduled_date"`
	ScheduledTime string     `json:"scheduled_time"`

	OfferAmount   *string `json:"offer_amount"`
	FinancingType string  `json:"financing_type"`

	CheckInDate  *time.Time `json:"check_in_date"`
	CheckOutDate *time.Time `json:"check_out_date"`
	Guests       int        `json:"guests"`

	LeaseMonths int        `json:"lease_months"`
	MoveInDate  *time.Time `json:"move_in_date"`

	PaymentAmount *string `json:"payment_amount"`
	Currency      string  `json:"currency"`
}

// POST /api/bookings
// Guests may create: the actor can be anonymous as long as contact details
// are present.
func (h *BookingsHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Booking request is invalid.", validation.FromBindError(err, &req)))
		return
	}

	in := bookings.CreateInput{
		Kind:          bookings.Kind(req.Kind),
		PropertyID:    req.PropertyID,
		OwnerID:       req.OwnerID,
		Requester:     middleware.CurrentActor(c),
		ContactName:   req.ContactName,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
		FinancingType: req.FinancingType,
		CheckInDate:   req.CheckInDate,
		CheckOutDate:  req.CheckOutDate,
		Guests:        req.Guests,
		LeaseMonths:   req.LeaseMonths,
		MoveInDate:    req.MoveInDate,
		Currency:      req.Currency,
	}

	var err error
	if in.OfferAmount, err = parseAmount(req.OfferAmount, "offer_amount"); err != nil {
		middleware.Fail(c, err)
		return
	}
	if in.PaymentAmount, err = parseAmount(req.PaymentAmount, "payment_amount"); err != nil {
		middleware.Fail(c, err)
		return
	}

	id, err := h.Svc.Create(c.Request.Context(), in)
	if err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "status": bookings.StatusPending})
}

// GET /api/bookings/:id
func (h *BookingsHandler) Detail(c *gin.Context) {
	b, err := bookings.NewRepo(h.DB).Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Booking not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	act := middleware.CurrentActor(c)
	if !act.IsAdmin() && !act.IsSystem() && act.UserID != b.OwnerID {
		if b.UserID == nil || act.UserID == "" || *b.UserID != act.UserID {
			middleware.Fail(c, apperr.ForbiddenErr("You cannot view this booking."))
			return
		}
	}

	c.JSON(http.StatusOK, b)
}

// GET /api/bookings/:id/history
func (h *BookingsHandler) History(c *gin.Context) {
	evs, err := bookings.NewRepo(h.DB).History(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": evs})
}

// GET /api/bookings
// Non-admins only see their own side of the marketplace.
func (h *BookingsHandler) List(c *gin.Context) {
	act := middleware.CurrentActor(c)

	in := bookings.ListParams{
		Status:   c.Query("status"),
		Page:     intQuery(c, "page", 1),
		PageSize: intQuery(c, "page_size", 20),
	}
	switch {
	case act.IsAdmin() || act.IsSystem():
		in.UserID = c.Query("user_id")
		in.OwnerID = c.Query("owner_id")
	case c.Query("as") == "owner":
		in.OwnerID = act.UserID
	default:
		in.UserID = act.UserID
	}

	res, err := bookings.NewRepo(h.DB).List(c.Request.Context(), in)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": res.Items, "total": res.Total})
}

// POST /api/bookings/:id/confirm
func (h *BookingsHandler) Confirm(c *gin.Context) {
	h.act(c, func() error {
		return h.Svc.Confirm(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c))
	})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// POST /api/bookings/:id/reject
func (h *BookingsHandler) Reject(c *gin.Context) {
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	h.act(c, func() error {
		return h.Svc.Reject(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c), req.Reason)
	})
}

// POST /api/bookings/:id/cancel
func (h *BookingsHandler) Cancel(c *gin.Context) {
	var req reasonRequest
	_ = c.ShouldBindJSON(&req)
	h.act(c, func() error {
		return h.Svc.Cancel(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c), req.Reason)
	})
}

// POST /api/bookings/:id/complete
func (h *BookingsHandler) Complete(c *gin.Context) {
	h.act(c, func() error {
		return h.Svc.Complete(c.Request.Context(), c.Param("id"), middleware.CurrentActor(c))
	})
}

func (h *BookingsHandler) act(c *gin.Context, fn func() error) {
	if err := fn(); err != nil {
		middleware.Fail(c, svcErr(err))
		return
	}

	b, err := bookings.NewRepo(h.DB).Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": b.ID, "status": b.Status, "payment_status": b.PaymentStatus})
}

func parseAmount(s *string, field string) (*decimal.Decimal, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, apperr.InvalidErr("Amount is invalid.", map[string]string{field: "must be a decimal number"})
	}
	return &d, nil
}

func intQuery(c *gin.Context, key string, def int) int {
	if s := c.Query(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}
