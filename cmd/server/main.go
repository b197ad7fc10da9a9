package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "kioskops-backend/internal/api/http"
	"kioskops-backend/internal/config"
	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/external"
	"kioskops-backend/internal/logger"
	"kioskops-backend/internal/payment"
	"kioskops-backend/internal/queue"
	"kioskops-backend/internal/repository/postgres"
	"kioskops-backend/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting KioskOps API server...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)

	// Catch a broken transition table at boot, not on the first request
	if err := domain.ValidateTransitionTables(); err != nil {
		log.Fatalf("Invalid state machine definition: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)

	var gateway payment.Gateway
	if cfg.Payment.Type == "mock" {
		logger.Info("Using mock payment gateway")
		gateway = payment.NewMockGateway()
	} else {
		logger.Info("Using HTTP payment gateway", "base_url", cfg.Payment.BaseURL)
		gateway = payment.NewHTTPGateway(cfg.Payment.BaseURL, cfg.Payment.APIKey, cfg.PaymentTimeout())
	}

	pub := queue.NewKafkaPublisher(cfg.KafkaBrokerList())
	defer pub.Close()

	checker := external.NewAllowAllChecker()
	notifier := external.NewLogNotifier()
	activity := external.NewLogActivityLogger()

	orderSvc := service.NewOrderService(store, gateway, pub, checker, notifier, activity)
	rentalSvc := service.NewRentalService(store, gateway, pub, checker, notifier, activity)

	router := httpapi.NewRouter(orderSvc, rentalSvc, db)

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetServerAddress())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
	logger.Info("Server stopped")
}
