package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arpatel/calendar-api/pkg/logger"
	"github.com/arpatel/calendar-api/pkg/metrics"
)

// Dispatcher is the slice of the scheduler the processor drives.
type Dispatcher interface {
	DispatchDue(ctx context.Context) (int, error)
}

type DispatchProcessorConfig struct {
	PollInterval time.Duration
}

// DispatchProcessor polls for due notifications and pushes them through
// delivery. Several processor instances can run concurrently against the
// same database; the claim step keeps their batches disjoint.
type DispatchProcessor struct {
	scheduler Dispatcher
	config    DispatchProcessorConfig
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewDispatchProcessor(
	scheduler Dispatcher,
	config DispatchProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *DispatchProcessor {
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}

	return &DispatchProcessor{
		scheduler: scheduler,
		config:    config,
		logger:    logger,
		metrics:   metrics,
	}
}

func (p *DispatchProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting dispatch processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down dispatch processor")
			return
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil {
				p.logger.Error(err, "Failed to dispatch due notifications")
			}
		}
	}
}

// RunOnce drains one batch of due notifications.
func (p *DispatchProcessor) RunOnce(ctx context.Context) error {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.DispatchLatency)
		defer timer.ObserveDuration()
	}

	sent, err := p.scheduler.DispatchDue(ctx)
	if err != nil {
		return err
	}
	if sent > 0 {
		p.logger.Info("Dispatched notifications", "sent", sent)
	}
	return nil
}
