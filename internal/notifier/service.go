package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"tokenwatch/internal/discovery"
	"tokenwatch/internal/eventbus"
	"tokenwatch/internal/observability"
	"tokenwatch/internal/storage"
	kit "tokenwatch/internal/transport"
	logx "tokenwatch/pkg/logx"
)

var (
	ErrNoSender = errors.New("notifier has no sender")
	ErrNoChat   = errors.New("notifier chat id is empty")
)

const (
	EventSent   = "notifier.sent"
	EventFailed = "notifier.failed"
)

// Service sends one alert per Notify call. It is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	sender  kit.Sender
	log     logx.Logger
	bus     eventbus.Bus
	store   storage.Store
	metrics *observability.Metrics

	hmu     sync.Mutex
	history []HistoryItem

	now func() time.Time
}

// New builds the service. bus, store and metrics are optional.
func New(cfg Config, sender kit.Sender, log logx.Logger, bus eventbus.Bus, store storage.Store, m *observability.Metrics) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		sender:  sender,
		log:     log,
		bus:     bus,
		store:   store,
		metrics: m,
		now:     time.Now,
	}
	s.applyLocked(cfg)
	return s
}

// Apply swaps the config. The limiter is adjusted in place so pending waits keep their slot.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = DefaultRatePerSec
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	cfg.ChatID = strings.TrimSpace(cfg.ChatID)

	if s.limiter == nil {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	} else if cfg.RatePerSec != s.cfg.RatePerSec {
		s.limiter.SetLimit(rate.Limit(cfg.RatePerSec))
		s.limiter.SetBurst(cfg.RatePerSec)
	}
	s.cfg = cfg
}

func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Notify formats and sends the alert for e. A nil error means Telegram accepted
// the message; anything else means the token must not be marked as seen.
func (s *Service) Notify(ctx context.Context, e discovery.Entity) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	sender := s.sender
	s.mu.Unlock()

	if sender == nil {
		return ErrNoSender
	}
	if cfg.ChatID == "" {
		return ErrNoChat
	}

	start := s.now()
	text := FormatAlert(cfg.Suffix, e, formatDetected(start, cfg.TimeLayout, cfg.Location))

	ref, err := s.send(ctx, lim, sender, cfg, text)
	took := s.now().Sub(start)
	s.metrics.ObserveNotify(err == nil, took)

	rec := storage.AlertRecord{
		At:           start,
		CycleID:      CycleID(ctx),
		Symbol:       e.Symbol,
		TokenAddress: e.TokenAddress,
		ChatID:       cfg.ChatID,
		MessageID:    ref.MessageID,
		OK:           err == nil,
		LatencyMS:    took.Milliseconds(),
	}
	ev := NotificationEvent{
		CycleID:      rec.CycleID,
		Symbol:       e.Symbol,
		TokenAddress: e.TokenAddress,
		ChatID:       cfg.ChatID,
		MessageID:    ref.MessageID,
		At:           start,
		Took:         took.String(),
	}

	if err != nil {
		rec.Error = err.Error()
		ev.Error = err.Error()
		s.log.Warn("alert send failed",
			logx.String("symbol", e.Symbol),
			logx.String("token_address", e.TokenAddress),
			logx.Duration("took", took),
			logx.Err(err),
		)
		s.publish(EventFailed, ev)
		s.audit(ctx, rec)
		return fmt.Errorf("notify %s: %w", e.TokenAddress, err)
	}

	s.appendHistory(HistoryItem{At: start, Symbol: e.Symbol, TokenAddress: e.TokenAddress, MessageID: ref.MessageID})
	s.log.Info("alert sent",
		logx.String("symbol", e.Symbol),
		logx.String("token_address", e.TokenAddress),
		logx.Int("message_id", ref.MessageID),
		logx.Duration("took", took),
	)
	s.publish(EventSent, ev)
	s.audit(ctx, rec)
	return nil
}

func (s *Service) send(ctx context.Context, lim *rate.Limiter, sender kit.Sender, cfg Config, text string) (kit.MessageRef, error) {
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return kit.MessageRef{}, fmt.Errorf("rate wait: %w", err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()
	return sender.SendText(callCtx,
		kit.ChatTarget{ChatID: cfg.ChatID, ThreadID: cfg.ThreadID},
		text,
		&kit.SendOptions{ParseMode: "Markdown", DisablePreview: cfg.DisablePreview},
	)
}

func (s *Service) publish(typ string, ev NotificationEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: ev.At, Data: ev})
}

func (s *Service) audit(ctx context.Context, rec storage.AlertRecord) {
	if s.store == nil {
		return
	}
	// the send already happened; a cancelled cycle context must not drop the row
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.store.AppendAlert(actx, rec); err != nil {
		s.log.Warn("alert audit write failed", logx.String("token_address", rec.TokenAddress), logx.Err(err))
	}
}

// Snapshot returns the recent successful alerts, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(it HistoryItem) {
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
	s.hmu.Unlock()
}

type cycleKey struct{}

// WithCycleID tags ctx so audit rows and events carry the cycle that produced them.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleKey{}, id)
}

func CycleID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(cycleKey{}).(string)
	return id
}
