package scheduler

import (
	"context"
	"time"

	"taskflow-backend/pkg/config"

	"go.uber.org/zap"
)

const (
	JobWebhookRenewal = "webhook_renewal"
	JobSyncFallback   = "sync_fallback"
	JobMeetingPrep    = "meeting_prep"
	JobTaskReminders  = "task_reminders"
	JobMaintenance    = "maintenance"
)

type WebhookRenewer interface {
	RenewIfExpiringSoon(ctx context.Context) (renewed, failed int, err error)
}

type CalendarSyncer interface {
	SyncAll(ctx context.Context) (synced, failed int, err error)
}

type PrepSweeper interface {
	RunAll(ctx context.Context) (created, failed int, err error)
}

type ReminderSender interface {
	SendDueReminders(ctx context.Context, now time.Time) (int, error)
}

type HistoryPruner interface {
	PruneHistory() (int64, error)
}

type RefreshTokenCleaner interface {
	DeleteExpiredRefreshTokens(now time.Time) (int64, error)
}

type StaleDeviceCleaner interface {
	RemoveStale(before time.Time) (int64, error)
}

// staleDeviceAge is how long a push device may go without registering again
const staleDeviceAge = 60 * 24 * time.Hour

// Jobs holds the services the standard jobs drive. Nil members disable their job.
type Jobs struct {
	Webhooks  WebhookRenewer
	Calendar  CalendarSyncer
	Prep      PrepSweeper
	Reminders ReminderSender
	History   HistoryPruner
	Tokens    RefreshTokenCleaner
	Devices   StaleDeviceCleaner
}

// Register adds the standard job set to s
func Register(s *Scheduler, j Jobs, iv config.SchedulerIntervals) error {
	if j.Webhooks != nil {
		s.Every(JobWebhookRenewal, iv.WebhookRenewal, func(ctx context.Context) error {
			renewed, failed, err := j.Webhooks.RenewIfExpiringSoon(ctx)
			s.countFailures(JobWebhookRenewal, failed)
			if renewed > 0 || failed > 0 {
				s.logger.Info("webhooks renewed", zap.Int("renewed", renewed), zap.Int("failed", failed))
			}
			return err
		})
	}

	if j.Calendar != nil {
		s.Every(JobSyncFallback, iv.SyncFallback, func(ctx context.Context) error {
			synced, failed, err := j.Calendar.SyncAll(ctx)
			s.countFailures(JobSyncFallback, failed)
			s.logger.Debug("fallback sync", zap.Int("synced", synced), zap.Int("failed", failed))
			return err
		})
	}

	if j.Prep != nil {
		s.Every(JobMeetingPrep, iv.MeetingPrep, func(ctx context.Context) error {
			created, failed, err := j.Prep.RunAll(ctx)
			s.countFailures(JobMeetingPrep, failed)
			if created > 0 || failed > 0 {
				s.logger.Info("meeting prep sweep", zap.Int("created", created), zap.Int("failed", failed))
			}
			return err
		})
	}

	if j.Reminders != nil {
		s.Every(JobTaskReminders, iv.TaskReminders, func(ctx context.Context) error {
			sent, err := j.Reminders.SendDueReminders(ctx, time.Now())
			if sent > 0 {
				s.logger.Info("reminders sent", zap.Int("count", sent))
			}
			return err
		})
	}

	if j.History == nil && j.Tokens == nil && j.Devices == nil {
		return nil
	}
	return s.Cron(JobMaintenance, iv.MaintenanceCron, func(ctx context.Context) error {
		var firstErr error
		if j.History != nil {
			pruned, err := j.History.PruneHistory()
			if err != nil {
				firstErr = err
			} else if pruned > 0 {
				s.logger.Info("research history pruned", zap.Int64("plans", pruned))
			}
		}
		if j.Tokens != nil {
			removed, err := j.Tokens.DeleteExpiredRefreshTokens(time.Now())
			if err != nil && firstErr == nil {
				firstErr = err
			} else if removed > 0 {
				s.logger.Info("expired refresh tokens removed", zap.Int64("count", removed))
			}
		}
		if j.Devices != nil {
			removed, err := j.Devices.RemoveStale(time.Now().Add(-staleDeviceAge))
			if err != nil && firstErr == nil {
				firstErr = err
			} else if removed > 0 {
				s.logger.Info("stale devices removed", zap.Int64("count", removed))
			}
		}
		return firstErr
	})
}
