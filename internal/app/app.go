// Package app wires the bot together: config, logging, storage, the
// Discord adapter, the fetch/delivery engine, and the cadence
// scheduler.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"briefbot/internal/commands"
	"briefbot/internal/config"
	"briefbot/internal/delivery"
	"briefbot/internal/feed"
	"briefbot/internal/scheduler"
	"briefbot/internal/storage"
	"briefbot/internal/transport/discord"
	"briefbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	logs *logx.Service
	log  logx.Logger

	store   storage.Store
	adapter *discord.Adapter
	fetcher *feed.Fetcher
	engine  *delivery.Engine
	sched   *scheduler.Service

	mu        sync.Mutex
	retention time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	adapter, err := discord.New(discord.Config{Token: cfg.Discord.Token},
		log.With(logx.String("comp", "discord")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	adapter.BindCommands(commands.New(store, log.With(logx.String("comp", "commands"))))

	fetcher := feed.New(feed.Config{URL: cfg.Feed.URL},
		log.With(logx.String("comp", "fetcher")))

	engine := delivery.New(delivery.Config{
		WebhookName: cfg.Feed.WebhookName,
		AvatarURL:   cfg.Feed.AvatarURL,
		Footer:      cfg.Feed.Footer,
		RatePerSec:  cfg.RatePerSecOrDefault(),
	}, adapter, store, log.With(logx.String("comp", "delivery")))

	fetchInterval, err := cfg.FetchIntervalOrDefault()
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	retention, err := cfg.RetentionOrDefault()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		cfgm:      cfgm,
		logs:      logSvc,
		log:       log.With(logx.String("comp", "app")),
		store:     store,
		adapter:   adapter,
		fetcher:   fetcher,
		engine:    engine,
		retention: retention,
	}
	a.sched = scheduler.New(scheduler.Config{
		FetchInterval: fetchInterval,
		DailyHour:     cfg.DailyHourOrDefault(),
	}, scheduler.Jobs{
		Fetch: a.fetchTick,
		Hourly: func(ctx context.Context, now time.Time) {
			a.sendTick(ctx, now, storage.KeyLastSendHourly, storage.FreqHourly)
		},
		Daily: func(ctx context.Context, now time.Time) {
			a.sendTick(ctx, now, storage.KeyLastSendDaily, storage.FreqDaily)
		},
	}, log.With(logx.String("comp", "scheduler")))

	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	if err := a.adapter.Start(ctx); err != nil {
		return fmt.Errorf("start discord: %w", err)
	}
	if err := a.initWatermarks(ctx, time.Now()); err != nil {
		_ = a.adapter.Stop(ctx)
		return fmt.Errorf("init watermarks: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	a.sched.Start(runCtx)

	// Config hot reload: watcher plus a consumer applying updates.
	updates := a.cfgm.Subscribe(4)
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.log.Info("briefbot started")
	return nil
}

// applyConfig pushes a validated config into the live services.
// Discord token and storage path changes need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	a.fetcher.Apply(feed.Config{URL: cfg.Feed.URL})
	a.engine.Apply(delivery.Config{
		WebhookName: cfg.Feed.WebhookName,
		AvatarURL:   cfg.Feed.AvatarURL,
		Footer:      cfg.Feed.Footer,
		RatePerSec:  cfg.RatePerSecOrDefault(),
	})

	fetchInterval, _ := cfg.FetchIntervalOrDefault()
	a.sched.Apply(scheduler.Config{
		FetchInterval: fetchInterval,
		DailyHour:     cfg.DailyHourOrDefault(),
	})

	retention, _ := cfg.RetentionOrDefault()
	a.mu.Lock()
	a.retention = retention
	a.mu.Unlock()

	a.log.Info("config applied")
}

// Stop shuts down gracefully: no new ticks, in-flight ticks finish,
// then the gateway and storage close.
func (a *App) Stop(ctx context.Context) error {
	a.sched.Stop(ctx)
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("discord stop failed", logx.Err(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("briefbot stopped")
	return a.logs.Close()
}
