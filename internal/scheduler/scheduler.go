// Package scheduler drives the three delivery cadences: a fetch ticker
// (which also covers realtime delivery) and an on-the-hour trigger that
// runs the hourly batch and, at the configured hour, the daily batch.
package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"briefbot/pkg/logx"
)

type Config struct {
	FetchInterval time.Duration // default 1m
	DailyHour     int           // local hour (0-23) of the daily batch; invalid values fall back to 17
}

// Jobs are the work units invoked per cadence tick. Each is handed the
// tick's captured now; watermark handling is the job's business.
type Jobs struct {
	Fetch  func(ctx context.Context, now time.Time)
	Hourly func(ctx context.Context, now time.Time)
	Daily  func(ctx context.Context, now time.Time)
}

type Service struct {
	jobs Jobs
	log  logx.Logger

	mu  sync.Mutex
	cfg Config

	c         *cron.Cron
	stopCh    chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup

	// Non-overlap per cadence: a tick never runs concurrently with
	// another tick of the same cadence.
	fetchMu sync.Mutex
	sendMu  sync.Mutex

	now func() time.Time // test seam
}

func New(cfg Config, jobs Jobs, log logx.Logger) *Service {
	return &Service{cfg: withDefaults(cfg), jobs: jobs, log: log, now: time.Now}
}

func withDefaults(cfg Config) Config {
	if cfg.FetchInterval <= 0 {
		cfg.FetchInterval = time.Minute
	}
	if cfg.DailyHour < 0 || cfg.DailyHour > 23 {
		cfg.DailyHour = 17
	}
	return cfg
}

// Apply updates the fetch interval and daily hour. The new interval
// takes effect after the in-flight wait; the hour at the next trigger.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = withDefaults(cfg)
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start launches both timers. The first fetch tick runs immediately.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(context.WithoutCancel(ctx))
	stopCh := s.stopCh
	runCtx := s.runCtx

	s.c = cron.New()
	_, _ = s.c.AddFunc("0 * * * *", func() {
		select {
		case <-stopCh:
			return
		default:
		}
		s.hourTick(runCtx, s.now())
	})
	s.c.Start()
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in fetch loop", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		s.fetchLoop(runCtx, stopCh)
	}()

	s.log.Info("scheduler started",
		logx.Duration("fetch_interval", s.config().FetchInterval),
		logx.Int("daily_hour", s.config().DailyHour))
}

// Stop prevents further ticks and waits for in-flight ones to finish.
// It does not preempt a running tick.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	stopCh := s.stopCh
	c := s.c
	cancel := s.runCancel
	s.stopCh = nil
	s.c = nil
	s.runCancel = nil
	s.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)

	done := make(chan struct{})
	go func() {
		if c != nil {
			<-c.Stop().Done()
		}
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out, abandoning in-flight tick")
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("scheduler stopped")
}

func (s *Service) fetchLoop(ctx context.Context, stopCh <-chan struct{}) {
	tmr := time.NewTimer(0) // first tick immediately
	defer tmr.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-tmr.C:
		}
		s.fetchTick(ctx, s.now())
		tmr.Reset(s.config().FetchInterval)
	}
}

func (s *Service) fetchTick(ctx context.Context, now time.Time) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	if s.jobs.Fetch != nil {
		s.jobs.Fetch(ctx, now)
	}
}

// hourTick runs the hourly batch, then the daily batch when the hour
// matches.
func (s *Service) hourTick(ctx context.Context, now time.Time) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.jobs.Hourly != nil {
		s.jobs.Hourly(ctx, now)
	}
	if now.Hour() == s.config().DailyHour && s.jobs.Daily != nil {
		s.jobs.Daily(ctx, now)
	}
}
