package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/arpatel/calendar-api/internal/handler"
	eventhandler "github.com/arpatel/calendar-api/internal/handler/event"
	feedhandler "github.com/arpatel/calendar-api/internal/handler/feed"
	"github.com/arpatel/calendar-api/internal/middleware"
	"github.com/arpatel/calendar-api/pkg/logger"
)

type Router struct {
	engine  *gin.Engine
	eventH  *eventhandler.Handler
	feedH   *feedhandler.Handler
	healthH *handler.HealthHandler
	metrics *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type Config struct {
	RateLimit      rate.Limit
	RateBurst      int
	CORSConfig     middleware.CORSConfig
	MetricsPrefix  string
	RequestTimeout time.Duration
}

func NewRouter(
	eventH *eventhandler.Handler,
	feedH *feedhandler.Handler,
	healthH *handler.HealthHandler,
	log *logger.Logger,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	if config.RequestTimeout <= 0 {
		config.RequestTimeout = middleware.DefaultTimeoutConfig().Duration
	}

	r := &Router{
		engine:  engine,
		eventH:  eventH,
		feedH:   feedH,
		healthH: healthH,
		metrics: initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.ErrorHandler(log),
		r.metricsMiddleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.Validation(middleware.DefaultValidationConfig()),
	)

	engine.Use(middleware.CORS(config.CORSConfig))

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.setupHealthCheck(api)
	r.setupEventRoutes(api)
	r.setupFeedRoutes(api)

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (r *Router) setupHealthCheck(rg *gin.RouterGroup) {
	health := rg.Group("/health")
	{
		health.GET("/live", r.healthH.Live)
		health.GET("/ready", r.healthH.Ready)
	}
}

func (r *Router) setupEventRoutes(rg *gin.RouterGroup) {
	events := rg.Group("/events")
	{
		events.POST("", r.eventH.CreateEvent)
		events.GET("", r.eventH.ListEvents)
		events.POST("/check-conflicts", r.eventH.CheckConflicts)
		events.POST("/bulk-update", r.eventH.BulkUpdateStatus)
		events.GET("/:id", r.eventH.GetEvent)
		events.PUT("/:id", r.eventH.UpdateEvent)
		events.DELETE("/:id", r.eventH.DeleteEvent)
		events.POST("/:id/cancel", r.eventH.CancelEvent)
		events.GET("/:id/occurrences", r.eventH.ListOccurrences)
		events.POST("/:id/occurrences/detach", r.eventH.DetachOccurrence)
		events.POST("/:id/attendees", r.eventH.AddAttendee)
		events.GET("/:id/notifications", r.eventH.ListNotifications)
	}
}

func (r *Router) setupFeedRoutes(rg *gin.RouterGroup) {
	rg.GET("/feed/:owner_kind/:owner_id/calendar.ics", r.feedH.Calendar)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}
