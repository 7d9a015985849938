package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardfund/internal/client"
	"cardfund/internal/config"
	"cardfund/internal/handler"
	"cardfund/internal/ledger"
	"cardfund/internal/pricing"
	"cardfund/internal/repository"
	"cardfund/internal/server"
	"cardfund/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	db := client.InitSqliteClient(cfg.DatabaseDSN)
	stripeClient := client.NewStripeClient(&cfg.Stripe)
	invoiceClient := client.NewInvoiceClient(&cfg.Invoicing)
	mailer := client.NewMailer(&cfg.SMTP)

	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	affiliationRepo := repository.NewAffiliationRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	userRepo := repository.NewUserRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	if err := productRepo.Seed(context.Background()); err != nil {
		log.Fatal("seed catalog:", err)
	}

	builder := ledger.NewBuilder(productRepo, pricing.NewFeeCalculator(cfg.PlatformFeePercent))

	affiliateService := service.NewAffiliateService(
		cfg.AffiliateEarningPercent,
		mailer,
		affiliationRepo,
		commissionRepo,
		userRepo,
	)
	checkoutService := service.NewCheckoutService(
		db, stripeClient, cfg.BaseURL, cfg.Currency,
		productRepo,
		orderRepo,
		inventoryRepo,
	)
	settlementService := service.NewSettlementService(
		db, stripeClient, invoiceClient, mailer,
		builder,
		affiliateService,
		cfg.VATPercent,
		orderRepo,
		transactionRepo,
		webhookEventRepo,
		inventoryRepo,
		userRepo,
	)

	checkoutHandler := handler.NewCheckoutHandler(checkoutService, settlementService)
	webhookHandler := handler.NewWebhookHandler(settlementService, webhookEventRepo)
	affiliateHandler := handler.NewAffiliateHandler(affiliateService, transactionRepo, cfg.Currency)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(cfg.JWTSecret, checkoutHandler, webhookHandler, affiliateHandler)

	log.Println("Starting HTTP server on", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}
