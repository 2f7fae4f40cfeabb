package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/arpatel/calendar-api/internal/config"
	"github.com/arpatel/calendar-api/internal/dispatch"
	"github.com/arpatel/calendar-api/internal/email"
	"github.com/arpatel/calendar-api/internal/model"
	"github.com/arpatel/calendar-api/internal/repository/postgres"
	"github.com/arpatel/calendar-api/internal/service/scheduler"
	"github.com/arpatel/calendar-api/internal/worker"
	"github.com/arpatel/calendar-api/pkg/clock"
	"github.com/arpatel/calendar-api/pkg/logger"
	"github.com/arpatel/calendar-api/pkg/messaging/redis"
	"github.com/arpatel/calendar-api/pkg/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.InfoLevel,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), &log.ZL)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	baseRepo := postgres.NewBaseRepository(db)
	eventRepo := postgres.NewEventRepository(baseRepo)
	attendeeRepo := postgres.NewAttendeeRepository(baseRepo)
	notificationRepo := postgres.NewNotificationRepository(baseRepo)

	emailSvc := email.NewService(cfg.Email.ToServiceConfig())

	registry := dispatch.NewRegistry(0)
	registry.Register(model.ChannelEmail, dispatch.NewEmailDispatcher(emailSvc))
	registry.Register(model.ChannelInApp, dispatch.NewInAppDispatcher(broker))
	registry.Register(model.ChannelSMS, dispatch.NewSMSDispatcher())
	registry.Register(model.ChannelPush, dispatch.NewPushDispatcher())

	m := metrics.New("calendar_worker")
	clk := clock.System()

	schedulerSvc := scheduler.NewService(
		notificationRepo,
		eventRepo,
		attendeeRepo,
		registry,
		clk,
		log,
		m,
		cfg.Scheduler.ToServiceConfig(),
	)

	processor := worker.NewDispatchProcessor(
		schedulerSvc,
		cfg.Worker.ToProcessorConfig(),
		log,
		m,
	)

	cleanup := worker.NewNotificationCleanupWorker(
		notificationRepo,
		cfg.Worker.RetentionDays,
		clk,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := cron.New()
	if _, err := c.AddFunc(cfg.Worker.CleanupSchedule, func() {
		if err := cleanup.Run(ctx); err != nil {
			log.Error(err, "Notification cleanup failed")
		}
	}); err != nil {
		log.Fatal(err, "invalid cleanup schedule", "schedule", cfg.Worker.CleanupSchedule)
	}
	c.Start()
	defer c.Stop()

	setupHealthAndMetrics(db, cfg.Worker.MetricsPort, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down worker")
		cancel()
	}()

	processor.Start(ctx)
}

func setupHealthAndMetrics(db interface{ Ping() error }, port int, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
			log.Fatal(err, "health check server failed")
		}
	}()
}
