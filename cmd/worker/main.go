package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kioskops-backend/internal/config"
	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/external"
	"kioskops-backend/internal/jobs"
	"kioskops-backend/internal/logger"
	"kioskops-backend/internal/payment"
	"kioskops-backend/internal/queue"
	"kioskops-backend/internal/repository/postgres"
	"kioskops-backend/internal/scheduler"
	"kioskops-backend/internal/worker"

	_ "github.com/lib/pq"
)

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runSweepsOnce := flag.Bool("run-sweeps", false, "Run all sweep jobs once and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting KioskOps side-effect worker...", "log_level", cfg.Log.Level)

	if err := domain.ValidateTransitionTables(); err != nil {
		log.Fatalf("Invalid state machine definition: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
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

	notifier := external.NewLogNotifier()
	jobRunner := jobs.NewJobRunner(store, pub, notifier, cfg)

	if *runSweepsOnce {
		jobRunner.RunAllSweeps()
		return
	}

	consumer := queue.NewKafkaConsumer(cfg.KafkaBrokerList(), cfg.Kafka.GroupID,
		[]string{queue.TopicOrderCancellation, queue.TopicRentalDeposit})
	defer consumer.Close()

	w := worker.New(store, gateway, consumer, notifier, worker.FeePolicy{
		OvertimeInterval: cfg.OvertimeInterval(),
		OvertimeFeeCents: cfg.Rental.OvertimeFeeCents,
		CleaningFeeCents: cfg.Rental.CleaningFeeCents,
	})

	sched := scheduler.NewScheduler(jobRunner)
	sched.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil {
			logger.Error("Worker stopped with error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()
	<-done
	sched.Stop()
	logger.Info("Worker stopped")
}
