package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agricare/agricare-backend/internal/pharmacy/consumers"
	"github.com/agricare/agricare-backend/internal/pharmacy/events"
	"github.com/agricare/agricare-backend/internal/pharmacy/handler"
	"github.com/agricare/agricare-backend/internal/pharmacy/repository"
	"github.com/agricare/agricare-backend/internal/pharmacy/service"
	"github.com/agricare/agricare-backend/pkg/config"
	"github.com/agricare/agricare-backend/pkg/database"
	"github.com/agricare/agricare-backend/pkg/httputil"
	"github.com/agricare/agricare-backend/pkg/i18n"
	"github.com/agricare/agricare-backend/pkg/logger"
	"github.com/agricare/agricare-backend/pkg/messaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("pharmacy-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("pharmacy-service", cfg.Server.Environment)
	log.Info().Msg("starting Pharmacy Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewPharmacyEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	medicineRepo := repository.NewMedicineRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	lotRepo := repository.NewLotRepository(db)
	userCacheRepo := repository.NewUserCacheRepository(db)

	// Initialize services
	receivingService := service.NewReceivingService(docRepo, medicineRepo, supplierRepo, userCacheRepo, publisher, log)
	ledgerService := service.NewLedgerService(lotRepo, medicineRepo, publisher, log)
	stockService := service.NewStockService(lotRepo, medicineRepo, publisher, log, cfg.Pharmacy.ExpiryWarningDays)

	// Initialize handlers
	receivingHandler := handler.NewReceivingHandler(receivingService, log, cfg.Pharmacy.DefaultPageSize, cfg.Pharmacy.MaxPageSize)
	lotHandler := handler.NewLotHandler(ledgerService, log, cfg.Pharmacy.DefaultPageSize, cfg.Pharmacy.MaxPageSize)
	stockHandler := handler.NewStockHandler(stockService, log)
	catalogHandler := handler.NewCatalogHandler(medicineRepo, supplierRepo, log)

	// Start user event consumer
	userConsumer, err := consumers.NewUserEventConsumer(rmq, userCacheRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := userConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start user event consumer")
	}

	// Publish expiry alerts daily
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := stockService.PublishExpiryAlerts(ctx); err != nil {
					log.Error().Err(err).Msg("expiry alert run failed")
				}
			}
		}
	}()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(i18n.Middleware)
	r.Use(handler.UserContext)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "pharmacy-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/pharmacy", func(r chi.Router) {
		// Receiving document routes
		r.Route("/receivings", func(r chi.Router) {
			r.Get("/", receivingHandler.List)
			r.Post("/", receivingHandler.Create)
			r.Get("/{id}", receivingHandler.Get)
			r.Post("/{id}/lines", receivingHandler.AddLine)
			r.Put("/{id}/lines/{lineID}", receivingHandler.UpdateLine)
			r.Delete("/{id}/lines/{lineID}", receivingHandler.DeleteLine)
			r.Post("/{id}/verify", receivingHandler.Verify)
			r.Post("/{id}/post", receivingHandler.Post)
		})

		// Stock lot routes
		r.Route("/lots", func(r chi.Router) {
			r.Get("/", lotHandler.List)
			r.Get("/{id}", lotHandler.Get)
			r.Post("/{id}/release", lotHandler.Release)
			r.Post("/{id}/consume", lotHandler.Consume)
			r.Post("/{id}/status", lotHandler.UpdateStatus)
			r.Get("/{id}/adjustments", lotHandler.ListAdjustments)
		})

		// Stock aggregates
		r.Get("/stock/aggregates", stockHandler.Aggregates)
		r.Get("/stock/dashboard", stockHandler.Dashboard)

		// Catalog routes (read-only reference data)
		r.Route("/medicines", func(r chi.Router) {
			r.Get("/", catalogHandler.ListMedicines)
			r.Get("/{id}", catalogHandler.GetMedicine)
			r.Post("/{id}/reserve", lotHandler.Reserve)
		})
		r.Get("/suppliers", catalogHandler.ListSuppliers)
		r.Get("/suppliers/{id}", catalogHandler.GetSupplier)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
