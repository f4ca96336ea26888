package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	rtsup "tokenwatch/internal/runtime/supervisor"
	logx "tokenwatch/pkg/logx"
)

// systemd speaks the sd_notify protocol. Outside a Type=notify unit
// (NOTIFY_SOCKET unset) every call is a no-op.
type systemd struct {
	log      logx.Logger
	interval time.Duration // WatchdogSec, 0 when disabled
}

func newSystemd(log logx.Logger) *systemd {
	sd := &systemd{log: log}
	if d, err := daemon.SdWatchdogEnabled(false); err != nil {
		log.Warn("systemd watchdog env invalid", logx.Err(err))
	} else {
		sd.interval = d
	}
	return sd
}

func (s *systemd) notify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		s.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
}

func (s *systemd) ready()    { s.notify(daemon.SdNotifyReady) }
func (s *systemd) stopping() { s.notify(daemon.SdNotifyStopping) }

func (s *systemd) watchdog() {
	if s.interval > 0 {
		s.notify(daemon.SdNotifyWatchdog)
	}
}

type lastChecker interface {
	LastCheck() time.Time
}

// startWatchdog keeps the watchdog fed between cycles as long as cycles keep
// completing. A wedged cycle stops the pings and lets systemd restart us.
func (s *systemd) startWatchdog(sup *rtsup.Supervisor, mon lastChecker, every time.Duration) {
	if s.interval <= 0 {
		return
	}
	started := time.Now()
	stale := 3*every + s.interval
	sup.Go0("systemd.watchdog", func(ctx context.Context) {
		t := time.NewTicker(s.interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				last := mon.LastCheck()
				if last.IsZero() {
					last = started
				}
				if now.Sub(last) > stale {
					s.log.Warn("no completed cycle recently; withholding watchdog ping",
						logx.Time("last_check", mon.LastCheck()))
					continue
				}
				s.watchdog()
			}
		}
	})
}
