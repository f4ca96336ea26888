package monitor

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"tokenwatch/internal/eventbus"
	"tokenwatch/internal/notifier"
	"tokenwatch/internal/observability"
	"tokenwatch/internal/seen"
	logx "tokenwatch/pkg/logx"
)

type Option func(*Monitor)

// WithCycleHook is called after every completed (not skipped) cycle.
func WithCycleHook(fn func(CycleResult)) Option {
	return func(m *Monitor) { m.hook = fn }
}

func WithBus(bus eventbus.Bus) Option { return func(m *Monitor) { m.bus = bus } }

func WithMetrics(mt *observability.Metrics) Option { return func(m *Monitor) { m.metrics = mt } }

// Monitor owns the seen set and runs one cycle at a time.
type Monitor struct {
	cfg      Config
	fetcher  Fetcher
	notifier Notifier
	seen     *seen.Set
	log      logx.Logger
	bus      eventbus.Bus
	metrics  *observability.Metrics
	hook     func(CycleResult)

	running   sync.Mutex
	busy      atomic.Bool
	lastCheck atomic.Int64 // unix nanos, 0 = never

	now  func() time.Time
	rand func() float64
}

func New(cfg Config, f Fetcher, n Notifier, set *seen.Set, log logx.Logger, opts ...Option) *Monitor {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if set == nil {
		set = seen.New(seen.DefaultMaxTracked)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Monitor{
		cfg:      cfg,
		fetcher:  f,
		notifier: n,
		seen:     set,
		log:      log,
		now:      time.Now,
		rand:     rand.Float64,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// LastCheck returns when the last cycle finished, or the zero time.
func (m *Monitor) LastCheck() time.Time {
	ns := m.lastCheck.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Tracked is the current seen-set size.
func (m *Monitor) Tracked() int { return m.seen.Len() }

// Running reports whether a cycle is in flight.
func (m *Monitor) Running() bool { return m.busy.Load() }

// Tick runs a cycle unless one is already running. The bool is false when skipped.
// A panic inside the cycle is recovered and reported in CycleResult.Panic.
func (m *Monitor) Tick(ctx context.Context) (res CycleResult, ran bool) {
	if !m.running.TryLock() {
		m.metrics.CycleSkipped()
		m.log.Warn("previous cycle still running; skipping tick")
		return CycleResult{Started: m.now(), Skipped: true}, false
	}
	m.busy.Store(true)
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("cycle panicked", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			res.Panic = fmt.Sprint(r)
			ran = true
		}
		m.busy.Store(false)
		m.running.Unlock()
	}()
	return m.RunCycle(ctx), true
}

// RunCycle executes exactly one fetch, match, notify, mark-seen and cleanup pass.
// Callers that may overlap should use Tick.
func (m *Monitor) RunCycle(ctx context.Context) CycleResult {
	if ctx == nil {
		ctx = context.Background()
	}
	res := CycleResult{ID: uuid.NewString(), Started: m.now()}
	log := m.log.With(logx.String("cycle", res.ID))
	ctx = notifier.WithCycleID(ctx, res.ID)

	log.Debug("checking for new tokens", logx.String("suffix", m.cfg.Suffix))

	entities := m.fetcher.FetchNew(ctx, m.cfg.Limit)
	res.Fetched = len(entities)
	res.Matched = Match(entities, m.seen, m.cfg.Suffix)

	for _, e := range res.Matched {
		if ctx.Err() != nil {
			break
		}
		if err := m.notifier.Notify(ctx, e); err != nil {
			res.Failed++
			continue
		}
		m.seen.Add(e.ID())
		res.Notified = append(res.Notified, e)
	}

	if m.shouldCleanup() {
		res.CleanupRan = true
		res.Evicted = m.seen.Cleanup()
		if res.Evicted > 0 {
			log.Info("cleaned up token tracking set", logx.Int("evicted", res.Evicted), logx.Int("tracked", m.seen.Len()))
		}
	}

	end := m.now()
	res.Duration = end.Sub(res.Started)
	res.Tracked = m.seen.Len()
	m.lastCheck.Store(end.UnixNano())

	m.metrics.ObserveCycle(len(res.Matched), res.Tracked, res.Evicted, end, res.Duration)
	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Type: EventCycle, Time: end, Data: res})
	}
	if m.hook != nil {
		m.hook(res)
	}

	fields := []logx.Field{
		logx.Int("fetched", res.Fetched),
		logx.Int("matched", len(res.Matched)),
		logx.Int("notified", len(res.Notified)),
		logx.Int("failed", res.Failed),
		logx.Int("tracked", res.Tracked),
		logx.Duration("took", res.Duration),
	}
	if len(res.Matched) > 0 {
		log.Info("cycle done", fields...)
	} else {
		log.Debug("cycle done", fields...)
	}
	return res
}

func (m *Monitor) shouldCleanup() bool {
	c := m.cfg.CleanupChance
	if c <= 0 || c >= 1 {
		return true
	}
	return m.rand() < c
}
