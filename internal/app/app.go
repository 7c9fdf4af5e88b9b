// Package app wires the daemon mode: config manager with hot reload,
// logging service, ntfy sender, run-history storage, and the schedule
// service that fires dispatch runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"

	"ntfyloop/internal/config"
	"ntfyloop/internal/dispatch"
	"ntfyloop/internal/eventbus"
	rtsup "ntfyloop/internal/runtime/supervisor"
	"ntfyloop/internal/schedule"
	"ntfyloop/internal/storage"
	"ntfyloop/internal/transport/ntfy"
	logx "ntfyloop/pkg/logx"
)

type App struct {
	cfgm *config.Manager

	logs *logx.Service
	log  logx.Logger

	bus   eventbus.Bus
	store storage.Store

	disp  *dispatch.Service
	sched *schedule.Service
	sup   *rtsup.Supervisor

	// mu guards the dispatch parameters, which config reloads swap
	// between scheduled runs.
	mu  sync.Mutex
	run dispatch.Config
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Schedule == "" {
		return nil, errors.New("daemon mode requires a schedule in the config file")
	}
	spec, err := schedule.ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}

	logs, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(c *config.Config) error { return c.Validate() })

	timeout, err := config.ParseDurationField("server.timeout", cfg.Server.Timeout)
	if err != nil {
		return nil, err
	}
	sender, err := ntfy.New(ntfy.Config{
		BaseURL: cfg.Server.URL,
		Token:   cfg.Server.Token,
		Timeout: timeout,
	}, log.With(logx.String("comp", "ntfy")))
	if err != nil {
		return nil, fmt.Errorf("transport setup: %w", err)
	}

	var store storage.Store
	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return nil, err
		}
		store, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
	}

	bus := eventbus.New()
	disp := dispatch.New(sender, dispatch.MultiSink{
		dispatch.LogSink{Log: log.With(logx.String("comp", "dispatch"))},
		dispatch.BusSink{Bus: bus},
	}, log.With(logx.String("comp", "dispatch")))

	runCfg, err := cfg.Notify.Dispatch()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgm:  cfgm,
		logs:  logs,
		log:   log,
		bus:   bus,
		store: store,
		disp:  disp,
		run:   runCfg,
	}
	a.sched = schedule.New(spec, a.runOnce, log.With(logx.String("comp", "schedule")))
	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log),
		rtsup.WithCancelOnError(false),
	)

	a.sup.GoRestart("config.watch", a.cfgm.Watch)
	a.sup.Go("config.apply", a.applyLoop)
	a.sup.Go("recorder", a.recordLoop)
	a.sup.GoRestart("schedule", a.sched.Run)
	a.sup.Go("watchdog", watchdogLoop)

	// Best-effort; no-op outside systemd.
	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyReady)
	a.log.Info("daemon started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyStopping)
	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
	return err
}

// runOnce executes one scheduled dispatch run with the current
// parameters.
func (a *App) runOnce(ctx context.Context) {
	a.mu.Lock()
	cfg := a.run
	a.mu.Unlock()

	if _, err := a.disp.Run(ctx, cfg); err != nil {
		a.log.Error("scheduled run rejected", logx.Err(err))
	}
}

// applyLoop swaps logging and dispatch parameters on config reloads.
// Server and schedule changes need a restart; that is called out in
// the log instead of silently ignored.
func (a *App) applyLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-sub:
			if !ok || cfg == nil {
				return nil
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.ConsoleEnabled(),
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			runCfg, err := cfg.Notify.Dispatch()
			if err != nil {
				// Manager validation should have caught this.
				a.log.Warn("reloaded notify section invalid; keeping previous", logx.Err(err))
				continue
			}
			a.mu.Lock()
			a.run = runCfg
			a.mu.Unlock()
			a.log.Info("notify parameters updated", logx.String("topic", runCfg.Topic))
		}
	}
}

// recordLoop appends one run-history record per finished dispatch run.
func (a *App) recordLoop(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	events, unsub := a.bus.Subscribe(16)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type != eventbus.EventFinished {
				continue
			}
			sum, ok := ev.Data.(dispatch.Summary)
			if !ok {
				continue
			}
			a.mu.Lock()
			topic := a.run.Topic
			a.mu.Unlock()

			wctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			err := a.store.AppendRun(wctx, storage.RunRecord{
				Topic:        topic,
				Trigger:      "schedule",
				StartedAt:    sum.StartedAt,
				FinishedAt:   sum.FinishedAt,
				Sent:         sum.Sent,
				Failed:       sum.Failed,
				Attempted:    sum.Attempted,
				TerminatedBy: string(sum.TerminatedBy),
			})
			cancel()
			if err != nil {
				a.log.Warn("run history append failed", logx.Err(err))
			}
		}
	}
}

// watchdogLoop pets the systemd watchdog when one is configured.
func watchdogLoop(ctx context.Context) error {
	interval, err := sdaemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyWatchdog)
		}
	}
}
