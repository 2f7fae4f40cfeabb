package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Dispatch pipeline metrics
	NotificationsClaimed   prometheus.Counter
	NotificationsSent      *prometheus.CounterVec
	NotificationsFailed    *prometheus.CounterVec
	NotificationsExhausted prometheus.Counter
	DispatchLatency        prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

func New(prefix string) *Metrics {
	return &Metrics{
		NotificationsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_notifications_claimed_total",
			Help: "Number of due notifications claimed for dispatch",
		}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_notifications_sent_total",
			Help: "Number of notifications delivered, by channel",
		}, []string{"channel"}),
		NotificationsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_notifications_failed_total",
			Help: "Number of failed delivery attempts, by channel",
		}, []string{"channel"}),
		NotificationsExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_notifications_exhausted_total",
			Help: "Number of notifications that ran out of retries",
		}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_dispatch_duration_seconds",
			Help:    "Time spent dispatching a batch of due notifications",
			Buckets: prometheus.DefBuckets,
		}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_database_operations_total",
			Help: "Database operations by name and result",
		}, []string{"operation", "result"}),
	}
}
