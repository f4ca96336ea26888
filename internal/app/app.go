// Package app wires tokenwatch together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tokenwatch/internal/config"
	"tokenwatch/internal/discovery"
	"tokenwatch/internal/eventbus"
	"tokenwatch/internal/health"
	"tokenwatch/internal/monitor"
	"tokenwatch/internal/notifier"
	"tokenwatch/internal/observability"
	"tokenwatch/internal/ratelimit"
	rtsup "tokenwatch/internal/runtime/supervisor"
	"tokenwatch/internal/seen"
	"tokenwatch/internal/storage"
	"tokenwatch/internal/transport/telegram"
	logx "tokenwatch/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	metrics *observability.Metrics
	sender  *telegram.Sender
	notif   *notifier.Service
	mon     *monitor.Monitor
	sched   *monitor.Scheduler
	health  *health.Server
	sd      *systemd
}

// New builds every component from the committed config. Nothing runs until Start.
func New(cfgm *config.ConfigManager) (*App, error) {
	if cfgm == nil {
		return nil, errors.New("app: nil config manager")
	}
	cfg := cfgm.Get()
	if cfg == nil {
		var err error
		if cfg, err = cfgm.Load(); err != nil {
			return nil, err
		}
	}

	bootLog := logx.NewConsole(cfg.Logging.Level).Component("telegram")
	sender, err := telegram.New(mapTelegramConfig(cfg), bootLog)
	if err != nil {
		return nil, err
	}

	// The Telegram log sink sends through the same bot as the alerts.
	logSvc, log := logx.New(mapLoggingConfig(cfg), sender)
	sender.SetLogger(log.Component("telegram"))

	bus := eventbus.New()
	metrics := observability.NewMetrics()

	a := &App{
		cfgm:    cfgm,
		log:     log.Component("app"),
		logs:    logSvc,
		bus:     bus,
		metrics: metrics,
		sender:  sender,
		sd:      newSystemd(log.Component("systemd")),
	}
	ok := false
	defer func() {
		if !ok {
			a.closeEarly()
		}
	}()

	if sc := mapStorageConfig(cfg); sc.Driver != "" && sc.Driver != "none" {
		st, err := storage.Open(sc, log.Component("storage"))
		if err != nil {
			return nil, err
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	dc, minGap := mapDiscoveryConfig(cfg)
	client, err := discovery.NewClient(dc, ratelimit.NewGate(minGap), log.Component("discovery"), metrics)
	if err != nil {
		return nil, err
	}

	nc, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.notif = notifier.New(nc, sender, log.Component("notifier"), bus, a.store, metrics)

	mc, interval := mapMonitorConfig(cfg)
	a.mon = monitor.New(mc, client, a.notif, seen.New(cfg.Monitor.MaxTracked), log.Component("monitor"),
		monitor.WithBus(bus),
		monitor.WithMetrics(metrics),
		monitor.WithCycleHook(func(monitor.CycleResult) { a.sd.watchdog() }),
	)
	if a.sched, err = monitor.NewScheduler(a.mon, interval, log.Component("scheduler")); err != nil {
		return nil, err
	}

	a.health = health.New(mapHealthConfig(cfg), a.mon, metrics.Handler(), log.Component("health"))

	ok = true
	return a, nil
}

// closeEarly releases what New managed to open before failing.
func (a *App) closeEarly() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}

func (a *App) Monitor() *monitor.Monitor { return a.mon }

func (a *App) Notifier() *notifier.Service { return a.notif }

// HealthAddr is the bound liveness address, or "" before Start.
func (a *App) HealthAddr() string { return a.health.Addr() }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start opens the liveness listener first, so the platform sees the process
// as up before the first discovery call, then starts the schedule.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.Component("config"))

	if err := a.health.Start(a.sup.Context()); err != nil {
		a.sup.Cancel()
		return err
	}
	if err := a.sched.Start(a.sup.Context()); err != nil {
		a.sup.Cancel()
		return err
	}

	a.startEventLog()
	a.startConfigReload()
	a.sup.GoRestart("config.watch", a.cfgm.Watch,
		rtsup.WithRestartBackoff(time.Second, 30*time.Second),
	)
	a.sd.startWatchdog(a.sup, a.mon, a.sched.Interval())

	cfg := a.cfgm.Get()
	a.log.Info("token monitor started",
		logx.String("suffix", cfg.Monitor.Suffix),
		logx.Duration("interval", a.sched.Interval()),
		logx.Int("limit", cfg.Discovery.Limit),
		logx.Int("max_tracked", cfg.Monitor.MaxTracked),
		logx.String("health_addr", a.health.Addr()),
	)
	a.sd.ready()
	return nil
}

// startEventLog mirrors bus events into debug logs.
func (a *App) startEventLog() {
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})
}

// startConfigReload applies the live sections of every published config and
// warns about the rest.
func (a *App) startConfigReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	var restart []string
	for _, s := range sections {
		if !config.AppliedLive(s) {
			restart = append(restart, s)
		}
	}
	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	if nc, err := mapNotifierConfig(newCfg); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		// Destination and suffix belong to the telegram and monitor sections.
		cur := a.notif.Config()
		nc.ChatID, nc.ThreadID, nc.Suffix = cur.ChatID, cur.ThreadID, cur.Suffix
		a.notif.Apply(nc)
	}

	a.bus.Publish(eventbus.Event{Type: "config.reloaded", Time: time.Now(), Data: sections})
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts everything down within ctx. Each step gets its own upper bound so
// one component can't stall the whole stop.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		a.closeEarly()
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sd.stopping()

	// The scheduler needs its context alive to let the running cycle finish.
	var errs []error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		if err := a.runStep(ctx, name, max, fn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	step("scheduler", 5*time.Second, a.sched.Stop)
	a.sup.Cancel()
	step("health", 2*time.Second, a.health.Stop)
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped", logx.Int("tracked", a.mon.Tracked()))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}

func (a *App) runStep(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		took := time.Since(start)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
			return err
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		return nil
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
		go func() {
			err := <-done
			a.log.Info("stop step finished after deadline",
				logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
		}()
		return stepCtx.Err()
	}
}
