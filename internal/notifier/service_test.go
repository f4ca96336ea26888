package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenwatch/internal/discovery"
	"tokenwatch/internal/eventbus"
	"tokenwatch/internal/storage"
	kit "tokenwatch/internal/transport"
	logx "tokenwatch/pkg/logx"
)

type fakeSender struct {
	mu    sync.Mutex
	err   error
	texts []string
	opts  []kit.SendOptions
	to    []kit.ChatTarget
}

func (f *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.to = append(f.to, to)
	if opt != nil {
		f.opts = append(f.opts, *opt)
	}
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.texts)}, nil
}

type memStore struct {
	mu   sync.Mutex
	rows []storage.AlertRecord
}

func (m *memStore) AppendAlert(_ context.Context, r storage.AlertRecord) error {
	m.mu.Lock()
	m.rows = append(m.rows, r)
	m.mu.Unlock()
	return nil
}

func (m *memStore) Close() error { return nil }

var fixedNow = time.Date(2025, 6, 17, 15, 45, 12, 0, time.UTC)

func newService(t *testing.T, sender kit.Sender, bus eventbus.Bus, st storage.Store) *Service {
	t.Helper()
	s := New(Config{ChatID: "818339609", Suffix: "BLV", RatePerSec: 100, Location: time.UTC}, sender, logx.Nop(), bus, st, nil)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestNotifySuccess(t *testing.T) {
	snd := &fakeSender{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	t.Cleanup(unsub)
	st := &memStore{}
	s := newService(t, snd, bus, st)

	ctx := WithCycleID(context.Background(), "cycle-1")
	err := s.Notify(ctx, discovery.Entity{Symbol: "FOOBLV", TokenAddress: "A1"})
	require.NoError(t, err)

	require.Len(t, snd.texts, 1)
	want := "🚀 NEW BLV TOKEN FOUND!\n\n📛 Symbol: FOOBLV\n📋 Contract: `A1`\n⏰ Detected: 6/17/2025, 3:45:12 PM"
	assert.Equal(t, want, snd.texts[0])
	assert.Equal(t, "Markdown", snd.opts[0].ParseMode)
	assert.Equal(t, "818339609", snd.to[0].ChatID)

	hist := s.Snapshot()
	require.Len(t, hist, 1)
	assert.Equal(t, "A1", hist[0].TokenAddress)
	assert.Equal(t, 1, hist[0].MessageID)

	ev := <-events
	assert.Equal(t, EventSent, ev.Type)
	assert.Equal(t, "cycle-1", ev.Data.(NotificationEvent).CycleID)

	require.Len(t, st.rows, 1)
	assert.True(t, st.rows[0].OK)
	assert.Equal(t, "cycle-1", st.rows[0].CycleID)
	assert.Equal(t, "FOOBLV", st.rows[0].Symbol)
}

func TestNotifyFailure(t *testing.T) {
	snd := &fakeSender{err: errors.New("http 502")}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	t.Cleanup(unsub)
	st := &memStore{}
	s := newService(t, snd, bus, st)

	err := s.Notify(context.Background(), discovery.Entity{Symbol: "FOOBLV", TokenAddress: "A1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 502")

	assert.Empty(t, s.Snapshot())
	ev := <-events
	assert.Equal(t, EventFailed, ev.Type)
	assert.Equal(t, "http 502", ev.Data.(NotificationEvent).Error)

	require.Len(t, st.rows, 1)
	assert.False(t, st.rows[0].OK)
	assert.Equal(t, "http 502", st.rows[0].Error)
}

func TestNotifyPreconditions(t *testing.T) {
	s := New(Config{ChatID: "1"}, nil, logx.Nop(), nil, nil, nil)
	assert.ErrorIs(t, s.Notify(context.Background(), discovery.Entity{TokenAddress: "A1"}), ErrNoSender)

	s = New(Config{ChatID: " "}, &fakeSender{}, logx.Nop(), nil, nil, nil)
	assert.ErrorIs(t, s.Notify(context.Background(), discovery.Entity{TokenAddress: "A1"}), ErrNoChat)
}

func TestNotifyCancelledWhileWaiting(t *testing.T) {
	snd := &fakeSender{}
	s := New(Config{ChatID: "1", Suffix: "BLV", RatePerSec: 1}, snd, logx.Nop(), nil, nil, nil)

	require.NoError(t, s.Notify(context.Background(), discovery.Entity{Symbol: "ABLV", TokenAddress: "A1"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Notify(ctx, discovery.Entity{Symbol: "BBLV", TokenAddress: "A2"})
	require.Error(t, err)
	assert.Len(t, snd.texts, 1)
}

func TestApplyUpdatesRate(t *testing.T) {
	s := New(Config{ChatID: "1", RatePerSec: 1}, &fakeSender{}, logx.Nop(), nil, nil, nil)
	lim := s.limiter

	s.Apply(Config{ChatID: "1", RatePerSec: 20})
	assert.Same(t, lim, s.limiter)
	assert.Equal(t, 20, s.limiter.Burst())
	assert.Equal(t, 20, s.Config().RatePerSec)
	assert.Equal(t, DefaultSendTimeout, s.Config().SendTimeout)
}

func TestHistoryIsBounded(t *testing.T) {
	s := newService(t, &fakeSender{}, nil, nil)
	for i := 0; i < historyLimit+20; i++ {
		s.appendHistory(HistoryItem{TokenAddress: strings.Repeat("x", i%5)})
	}
	assert.Len(t, s.Snapshot(), historyLimit)
}

func TestFormatAlert(t *testing.T) {
	t.Parallel()

	const sol = "So11111111111111111111111111111111111111112"
	got := FormatAlert("BLV", discovery.Entity{Symbol: "MOON_*BLV", TokenAddress: sol}, "now")

	assert.Contains(t, got, "🚀 NEW BLV TOKEN FOUND!")
	assert.Contains(t, got, `📛 Symbol: MOON\_\*BLV`)
	assert.Contains(t, got, "📋 Contract: `"+sol+"`")
	assert.Contains(t, got, "⏰ Detected: now")
	assert.True(t, strings.HasSuffix(got, "\n🔗 https://pump.fun/coin/"+sol))

	plain := FormatAlert("BLV", discovery.Entity{Symbol: "FOOBLV", TokenAddress: "0xabc`def"}, "now")
	assert.NotContains(t, plain, "pump.fun")
	assert.Contains(t, plain, "`0xabcdef`")
}

func TestIsSolanaAddress(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSolanaAddress("11111111111111111111111111111111"))
	assert.True(t, IsSolanaAddress("So11111111111111111111111111111111111111112"))
	assert.False(t, IsSolanaAddress("A1"))
	assert.False(t, IsSolanaAddress("0x6b175474e89094c44da98b954eedeac495271d0f"))
	assert.False(t, IsSolanaAddress(strings.Repeat("l", 40)))
}

func TestCycleIDRoundTrip(t *testing.T) {
	assert.Equal(t, "", CycleID(context.Background()))
	assert.Equal(t, "abc", CycleID(WithCycleID(context.Background(), "abc")))
}
