package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/arpatel/calendar-api/pkg/clock"
	"github.com/arpatel/calendar-api/pkg/logger"
)

// NotificationPurger is the slice of the notification store the cleanup
// needs.
type NotificationPurger interface {
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationCleanupWorker prunes delivered and dead notification rows
// past the retention window. Pending and dispatching rows are never
// touched.
type NotificationCleanupWorker struct {
	repo          NotificationPurger
	retentionDays int
	clock         clock.Clock
	logger        *logger.Logger
}

func NewNotificationCleanupWorker(repo NotificationPurger, retentionDays int, clk clock.Clock, log *logger.Logger) *NotificationCleanupWorker {
	return &NotificationCleanupWorker{
		repo:          repo,
		retentionDays: retentionDays,
		clock:         clk,
		logger:        log,
	}
}

func (w *NotificationCleanupWorker) Run(ctx context.Context) error {
	cutoff := w.clock.Now().AddDate(0, 0, -w.retentionDays)

	rows, err := w.repo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup notifications: %w", err)
	}

	w.logger.Info("Cleaned up notification rows",
		"rows", rows,
		"cutoff", cutoff.Format(time.RFC3339))
	return nil
}
