package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

const stopTimeout = time.Second * 10

var errInvalidSchedule = errors.New("invalid schedule interval")

// Scheduler drives the updater on a fixed interval from one dedicated
// goroutine, independent of foreground calls. The inter-cycle wait is a
// sequence of granularity-sized sleeps, each checking the stop signal, so
// shutdown latency is bounded by the granularity and not by the interval
type Scheduler struct {
	updater *Updater
	logger  *slog.Logger

	granularity time.Duration

	mux      sync.Mutex
	interval time.Duration
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewScheduler creates a new stopped scheduler with the given cycle interval
func NewScheduler(
	updater *Updater,
	interval time.Duration,
	opts ...SchedulerOption,
) *Scheduler {
	s := &Scheduler{
		updater:     updater,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		interval:    interval,
		granularity: time.Second,
	}

	// Apply the options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start moves the scheduler to the running state, spawning the cycle loop
func (s *Scheduler) Start() {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.running {
		s.logger.Warn("scheduler is already running")

		return
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(s.stopCh, s.doneCh, s.interval)

	s.logger.Info(
		"scheduler started",
		"interval", s.interval,
	)
}

// Stop signals the cycle loop to exit and waits for it to wind down.
// A fetch already in flight is allowed to finish
func (s *Scheduler) Stop() {
	s.mux.Lock()

	if !s.running {
		s.mux.Unlock()
		s.logger.Warn("scheduler is not running")

		return
	}

	s.running = false
	close(s.stopCh)

	doneCh := s.doneCh

	s.mux.Unlock()

	select {
	case <-doneCh:
		s.logger.Info("scheduler stopped")
	case <-time.After(stopTimeout):
		s.logger.Warn("scheduler loop did not stop gracefully")
	}
}

// ChangeInterval swaps the cycle interval. A running scheduler is restarted
// with the new interval; a stopped one only records it
func (s *Scheduler) ChangeInterval(interval time.Duration) error {
	if interval <= 0 {
		return errInvalidSchedule
	}

	s.mux.Lock()
	wasRunning := s.running
	s.mux.Unlock()

	if wasRunning {
		s.Stop()
	}

	s.mux.Lock()
	s.interval = interval
	s.mux.Unlock()

	s.logger.Info(
		"update interval changed",
		"interval", interval,
	)

	if wasRunning {
		s.Start()
	}

	return nil
}

// Status reports the scheduler state
func (s *Scheduler) Status() (running bool, interval time.Duration) {
	s.mux.Lock()
	defer s.mux.Unlock()

	return s.running, s.interval
}

// loop is the scheduler cycle loop
func (s *Scheduler) loop(stopCh <-chan struct{}, doneCh chan<- struct{}, interval time.Duration) {
	defer close(doneCh)

	for {
		start := time.Now()

		// Cycle failures never stop future cycles; fetches are bounded
		// by the source client timeouts
		results, err := s.updater.Run(context.Background())
		if err != nil {
			s.logger.Error(
				"scheduled update failed",
				"err", err,
			)
		}

		s.logger.Info(
			"scheduled update completed",
			"duration", time.Since(start),
			"results", results,
		)

		if !s.sleep(stopCh, interval) {
			return
		}
	}
}

// sleep waits out the interval in granularity-sized steps.
// Returns false when the stop signal was observed
func (s *Scheduler) sleep(stopCh <-chan struct{}, interval time.Duration) bool {
	for waited := time.Duration(0); waited < interval; waited += s.granularity {
		select {
		case <-stopCh:
			return false
		case <-time.After(s.granularity):
		}
	}

	return true
}

// OneShot schedules exactly one delayed update cycle
type OneShot struct {
	updater *Updater
	logger  *slog.Logger

	delay time.Duration

	mux   sync.Mutex
	timer *time.Timer
}

// NewOneShot creates a new one-shot schedule with the given delay
func NewOneShot(updater *Updater, delay time.Duration, opts ...OneShotOption) *OneShot {
	o := &OneShot{
		updater: updater,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		delay:   delay,
	}

	// Apply the options
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Schedule arms the delayed update, replacing any pending one
func (o *OneShot) Schedule() {
	o.mux.Lock()
	defer o.mux.Unlock()

	if o.timer != nil {
		o.timer.Stop()
	}

	o.timer = time.AfterFunc(o.delay, func() {
		o.logger.Info("executing scheduled one-time update")

		if _, err := o.updater.Run(context.Background()); err != nil {
			o.logger.Error(
				"one-time update failed",
				"err", err,
			)
		}
	})

	o.logger.Info(
		"one-time update scheduled",
		"delay", o.delay,
	)
}

// Cancel prevents a pending update from firing
func (o *OneShot) Cancel() {
	o.mux.Lock()
	defer o.mux.Unlock()

	if o.timer != nil && o.timer.Stop() {
		o.logger.Info("scheduled update cancelled")
	}

	o.timer = nil
}
