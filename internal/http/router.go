package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/handlers"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/http/middleware"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/bookings"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/escrow"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/notify"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/payments"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/modules/verification"
	"github.com/RitaAkankunda/PropertyMarketOnline-sub002/internal/storage"
)

type Deps struct {
	Logger   *slog.Logger
	DB       *gorm.DB
	Provider payments.Provider
	Storage  storage.Storage
}

func NewRouter(d Deps) *gin.Engine {
	notifier := notify.NewLogNotifier(d.Logger)

	refundSvc := payments.NewRefundService(d.DB, d.Provider, notifier)
	refundSvc.SetLogger(d.Logger)

	bookingSvc := bookings.NewService(d.DB, refundSvc, notifier)
	bookingSvc.SetLogger(d.Logger)

	paySvc := payments.NewService(d.DB, d.Provider, notifier)
	paySvc.SetLogger(d.Logger)

	callbackSvc := payments.NewCallbackService(d.DB, notifier)
	callbackSvc.SetLogger(d.Logger)

	escrowSvc := escrow.NewService(d.DB, d.Provider, notifier)
	escrowSvc.SetLogger(d.Logger)

	verifySvc := verification.NewService(d.DB, d.Storage, notifier)
	verifySvc.SetLogger(d.Logger)

	methodsSvc := payments.NewMethodsService(d.DB)

	bookingsH := handlers.NewBookingsHandler(d.DB, bookingSvc)
	paymentsH := handlers.NewPaymentsHandler(d.DB, paySvc, refundSvc)
	methodsH := handlers.NewMethodsHandler(methodsSvc)
	callbackH := handlers.NewCallbackHandler(d.Logger, d.Provider, callbackSvc)
	escrowH := handlers.NewEscrowHandler(escrowSvc)
	verifyH := handlers.NewVerificationHandler(d.DB, verifySvc, d.Storage)

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(d.Logger),
		middleware.Recovery(d.Logger),
		middleware.ErrorHandler(d.Logger),
		middleware.ActorFromHeaders(),
	)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	// provider callbacks are signed, not actor-authenticated
	r.POST("/callbacks/:provider", callbackH.Handle)

	api := r.Group("/api")
	{
		// guests may create bookings
		api.POST("/bookings", bookingsH.Create)

		authed := api.Group("", middleware.RequireAuth())
		{
			authed.GET("/bookings", bookingsH.List)
			authed.GET("/bookings/:id", bookingsH.Detail)
			authed.GET("/bookings/:id/history", bookingsH.History)
			authed.POST("/bookings/:id/confirm", bookingsH.Confirm)
			authed.POST("/bookings/:id/reject", bookingsH.Reject)
			authed.POST("/bookings/:id/cancel", bookingsH.Cancel)
			authed.POST("/bookings/:id/complete", bookingsH.Complete)

			authed.POST("/bookings/:id/pay", paymentsH.Pay)
			authed.GET("/bookings/:id/payments", paymentsH.ListByBooking)
			authed.GET("/payments/:id", paymentsH.Detail)

			authed.POST("/payment-methods", methodsH.Save)
			authed.GET("/payment-methods", methodsH.List)
			authed.POST("/payment-methods/:id/default", methodsH.SetDefault)
			authed.DELETE("/payment-methods/:id", methodsH.Delete)

			authed.POST("/tickets", escrowH.CreateTicket)
			authed.POST("/tickets/:id/assign", escrowH.Assign)
			authed.POST("/tickets/:id/fund", escrowH.Fund)
			authed.POST("/tickets/:id/complete", escrowH.Complete)
			authed.POST("/tickets/:id/reject", escrowH.Reject)
			authed.GET("/tickets/:id/escrow", escrowH.State)

			authed.POST("/verification/documents", verifyH.UploadDocument)
			authed.POST("/verification/requests", verifyH.Submit)
			authed.GET("/verification/requests/:id", verifyH.Detail)
		}

		admin := api.Group("/admin", middleware.RequireAdmin())
		{
			admin.POST("/payments/:id/refund", paymentsH.Refund)
			admin.GET("/payments/stale", paymentsH.Stale)
			admin.GET("/bookings/:id/ledger", paymentsH.Ledger)
			admin.GET("/verification/requests", verifyH.Pending)
			admin.POST("/verification/requests/:id/review", verifyH.Review)
		}
	}

	return r
}
