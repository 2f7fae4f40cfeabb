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
	"golang.org/x/time/rate"

	"github.com/arpatel/calendar-api/internal/config"
	"github.com/arpatel/calendar-api/internal/dispatch"
	"github.com/arpatel/calendar-api/internal/email"
	"github.com/arpatel/calendar-api/internal/handler"
	eventHandler "github.com/arpatel/calendar-api/internal/handler/event"
	feedHandler "github.com/arpatel/calendar-api/internal/handler/feed"
	"github.com/arpatel/calendar-api/internal/middleware"
	"github.com/arpatel/calendar-api/internal/model"
	"github.com/arpatel/calendar-api/internal/repository/postgres"
	"github.com/arpatel/calendar-api/internal/router"
	"github.com/arpatel/calendar-api/internal/service/conflict"
	eventService "github.com/arpatel/calendar-api/internal/service/event"
	"github.com/arpatel/calendar-api/internal/service/scheduler"
	"github.com/arpatel/calendar-api/pkg/clock"
	"github.com/arpatel/calendar-api/pkg/logger"
	"github.com/arpatel/calendar-api/pkg/messaging/redis"
	"github.com/arpatel/calendar-api/pkg/metrics"
)

func main() {
	// Optional .env for local development.
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

	m := metrics.New("calendar_api")
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
	detector := conflict.NewDetector(eventRepo)
	eventSvc := eventService.NewService(
		eventRepo,
		attendeeRepo,
		notificationRepo,
		detector,
		schedulerSvc,
		clk,
		log,
	)

	healthH := handler.NewHealthHandler(db)
	eventH := eventHandler.NewHandler(eventSvc, notificationRepo)
	feedH := feedHandler.NewHandler(eventRepo, log)

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.Security.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Security.AllowedOrigins
	}

	routerConfig := router.Config{
		CORSConfig:     corsConfig,
		MetricsPrefix:  "calendar_http",
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
	}

	r := router.NewRouter(eventH, feedH, healthH, log, routerConfig)
	r.Setup()

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Engine(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Info("Starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal(err, "server forced to shutdown")
	}

	log.Info("Server exited properly")
}
