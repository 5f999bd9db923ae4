package ingest

import (
	"log/slog"
	"time"
)

type UpdaterOption func(u *Updater)

// WithLogger specifies the logger for the updater
func WithLogger(l *slog.Logger) UpdaterOption {
	return func(u *Updater) {
		u.logger = l
	}
}

// WithTimeSource specifies the time source for freshness checks.
// Defaults to time.Now
func WithTimeSource(now func() time.Time) UpdaterOption {
	return func(u *Updater) {
		u.now = now
	}
}

type SchedulerOption func(s *Scheduler)

// WithSchedulerLogger specifies the logger for the scheduler
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithPollGranularity specifies the cancellation poll step of the cycle
// loop. Defaults to 1s.
// This bounds worst-case shutdown latency regardless of the interval
func WithPollGranularity(g time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if g > 0 {
			s.granularity = g
		}
	}
}

type OneShotOption func(o *OneShot)

// WithOneShotLogger specifies the logger for the one-shot schedule
func WithOneShotLogger(l *slog.Logger) OneShotOption {
	return func(o *OneShot) {
		o.logger = l
	}
}
