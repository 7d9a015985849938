package server

import (
	"context"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"cardfund/internal/handler"
	"cardfund/internal/middleware"
)

type Server struct {
	echo             *echo.Echo
	checkoutHandler  *handler.CheckoutHandler
	webhookHandler   *handler.WebhookHandler
	affiliateHandler *handler.AffiliateHandler
}

func NewServer(
	jwtSecret string,
	checkoutHandler *handler.CheckoutHandler,
	webhookHandler *handler.WebhookHandler,
	affiliateHandler *handler.AffiliateHandler,
) *Server {
	e := echo.New()

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.OptionalAuth(jwtSecret))

	s := &Server{
		echo:             e,
		checkoutHandler:  checkoutHandler,
		webhookHandler:   webhookHandler,
		affiliateHandler: affiliateHandler,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- checkout / settlement --------
	api.POST("/checkout", s.checkoutHandler.CreateCheckout)
	api.POST("/checkout/:reference/confirm", s.checkoutHandler.ConfirmPayment)
	api.GET("/orders/:reference", s.checkoutHandler.GetOrder)
	api.POST("/orders/:reference/claim", s.checkoutHandler.ClaimOrder)
	api.POST("/orders/export", s.checkoutHandler.ExportOrders)

	// -------- processor webhooks --------
	api.POST("/payment/webhook", s.webhookHandler.StripeWebhook)
	api.GET("/payment/webhook/events", s.webhookHandler.RecentEvents)

	// -------- affiliations / beneficiary reads --------
	api.POST("/affiliations", s.affiliateHandler.CreateAffiliation)
	api.GET("/associations/:id/balance", s.affiliateHandler.GetBalance)
	api.GET("/associations/:id/transactions", s.affiliateHandler.GetTransactions)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
