package core

// scheduler.go runs the renewal reminder job in the background.
//
// The job collects records inside their renewal reminder window and hands
// them to a ReminderNotifier. It runs once on start and then every interval
// until the context is cancelled. A failed run is logged and retried on the
// next tick.

import (
	"context"
	"log/slog"
	"time"
)

// ReminderNotifier delivers due renewal reminders.
type ReminderNotifier interface {
	NotifyRenewals(ctx context.Context, due []ExpiringRecord) error
}

// LogNotifier writes one log entry per due reminder.
type LogNotifier struct {
	Logger *slog.Logger
}

// NotifyRenewals implements ReminderNotifier.
func (n LogNotifier) NotifyRenewals(ctx context.Context, due []ExpiringRecord) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, rec := range due {
		logger.InfoContext(ctx, "renewal reminder due",
			"user_id", rec.UserID,
			"record_id", rec.ID,
			"product", rec.ProductName,
			"vendor", deref(rec.VendorName),
			"days_until_expiry", rec.DaysUntilExpiry,
		)
	}
	return nil
}

// StartReminderScheduler blocks, running the reminder job every interval.
func (s *Service) StartReminderScheduler(ctx context.Context, interval time.Duration, notifier ReminderNotifier) {
	slog.Info("reminder scheduler started", "interval", interval.String())

	s.runReminderJob(ctx, notifier)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.runReminderJob(ctx, notifier)
		}
	}
}

// runReminderJob performs one collect + notify cycle.
func (s *Service) runReminderJob(ctx context.Context, notifier ReminderNotifier) {
	start := time.Now()

	due, err := s.DueReminders(ctx, s.now())
	if err != nil {
		slog.Error("reminder job failed", "error", err)
		return
	}

	if err := notifier.NotifyRenewals(ctx, due); err != nil {
		slog.Error("reminder notification failed", "error", err, "due", len(due))
		return
	}

	slog.Info("reminder job completed",
		"due", len(due),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
