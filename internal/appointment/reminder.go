package appointment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesikahq/hospital-api/internal/dates"
)

// ParseReminderTime converts an "HH:MM" clock time into an offset from
// midnight.
func ParseReminderTime(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid reminder time %q, expected HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// nextRun returns the first instant after now that falls at offset past a
// local midnight.
func nextRun(now time.Time, offset time.Duration) time.Time {
	y, m, d := now.Date()
	run := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Add(offset)
	if !run.After(now) {
		run = time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Add(offset)
	}
	return run
}

// ReminderLoop sends reminders for the next day's appointments once a day at
// offset past midnight. It returns when ctx is done.
func ReminderLoop(ctx context.Context, svc Service, offset time.Duration, logger *zap.Logger) {
	for {
		wait := time.Until(nextRun(time.Now(), offset))
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		tomorrow := dates.Day(time.Now()).AddDate(0, 0, 1)
		sent, err := svc.SendReminders(ctx, tomorrow)
		if err != nil {
			logger.Error("Failed to send appointment reminders",
				zap.String("date", dates.Format(tomorrow)),
				zap.Error(err),
			)
			continue
		}
		logger.Info("Appointment reminders dispatched",
			zap.String("date", dates.Format(tomorrow)),
			zap.Int("count", sent),
		)
	}
}
