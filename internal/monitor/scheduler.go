package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "tokenwatch/pkg/logx"
)

// Ticker is what the scheduler drives; *Monitor implements it.
type Ticker interface {
	Tick(ctx context.Context) (CycleResult, bool)
}

// Scheduler runs one tick immediately on Start and then every interval.
// Overlap protection lives in the Ticker.
type Scheduler struct {
	t        Ticker
	interval time.Duration
	log      logx.Logger

	mu     sync.Mutex
	c      *cron.Cron
	cancel context.CancelFunc
	first  sync.WaitGroup
}

// NewScheduler validates interval. cron's @every works in whole seconds.
func NewScheduler(t Ticker, interval time.Duration, log logx.Logger) (*Scheduler, error) {
	if t == nil {
		return nil, errors.New("scheduler: nil ticker")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval < time.Second {
		return nil, fmt.Errorf("scheduler: interval %s is below 1s", interval)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{t: t, interval: interval.Truncate(time.Second), log: log}, nil
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Start is idempotent. Cycles receive a context derived from ctx that Stop
// cancels if the running cycle outlives the stop deadline.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)

	c := cron.New(cron.WithChain(cron.Recover(cronLogger{s.log})))
	spec := "@every " + s.interval.String()
	if _, err := c.AddFunc(spec, func() { s.t.Tick(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("scheduler: add %q: %w", spec, err)
	}

	s.first.Add(1)
	go func() {
		defer s.first.Done()
		s.t.Tick(runCtx)
	}()
	c.Start()

	s.c = c
	s.cancel = cancel
	s.log.Info("scheduler started", logx.Duration("interval", s.interval))
	return nil
}

// Stop halts the trigger and waits for an in-flight cycle until ctx ends,
// then cancels it.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cronDone := c.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.first.Wait()
		close(done)
	}()

	defer cancel()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler stop deadline reached; cancelling running cycle")
		return ctx.Err()
	}
}

// cronLogger routes robfig/cron's logging through logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
