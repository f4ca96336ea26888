package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "tokenwatch/internal/transport"
	logx "tokenwatch/pkg/logx"
)

const (
	DefaultAPIURL  = "https://api.telegram.org"
	DefaultTimeout = 10 * time.Second

	telegramTextLimit = 4000
)

var ErrEmptyToken = errors.New("telegram token is empty")

type Config struct {
	Token   string
	APIURL  string        // default: https://api.telegram.org
	Timeout time.Duration // per-request bound (default 10s)
}

// Sender posts messages through the Bot API sendMessage method.
//
// The bot is created offline: no getMe round trip at construction, and no
// update polling. tokenwatch only ever sends.
type Sender struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

var _ kit.Sender = (*Sender)(nil)

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrEmptyToken
	}
	if strings.TrimSpace(cfg.APIURL) == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	b, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Offline: true,
		Client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: statusTransport{base: http.DefaultTransport},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	return &Sender{cfg: cfg, log: log, bot: b}, nil
}

// SetLogger replaces the logger. Call it before the sender is shared.
func (s *Sender) SetLogger(log logx.Logger) {
	if !log.IsZero() {
		s.log = log
	}
}

func (s *Sender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if to.IsZero() {
		return kit.MessageRef{}, errors.New("telegram: chat id is empty")
	}

	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	var first kit.MessageRef
	for i, chunk := range chunks {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return first, err
			}
		}

		sendOpt := &tele.SendOptions{
			ParseMode:             tele.ParseMode(opt.ParseMode),
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		}
		msg, err := s.send(ctx, recipient(to.ChatID), chunk, sendOpt)
		if err != nil {
			return first, fmt.Errorf("telegram: sendMessage: %w", err)
		}
		if i == 0 && msg != nil {
			first = kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}
		}
	}
	s.log.Trace("message sent", logx.String("chat_id", to.ChatID), logx.Int("chunks", len(chunks)))
	return first, nil
}

type sendResult struct {
	msg *tele.Message
	err error
}

// send bounds bot.Send by ctx. telebot takes no context, so an abandoned
// request finishes in the background within the client timeout; the message
// may still be delivered.
func (s *Sender) send(ctx context.Context, to tele.Recipient, text string, opt *tele.SendOptions) (*tele.Message, error) {
	if ctx == nil {
		return s.bot.Send(to, text, opt)
	}
	done := make(chan sendResult, 1)
	go func() {
		msg, err := s.bot.Send(to, text, opt)
		done <- sendResult{msg: msg, err: err}
	}()
	select {
	case r := <-done:
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// recipient lets string chat ids ("12345" or "@channel") go through telebot as-is.
type recipient string

func (r recipient) Recipient() string { return string(r) }

// statusTransport turns non-2xx Bot API responses into errors, so delivery
// success never depends on how the body happens to decode.
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 == 2 {
		return resp, nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	_ = resp.Body.Close()
	return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

// HTTPError reports a non-2xx response from the Bot API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// splitTelegramText splits long messages into chunks that are safe to send to Telegram.
// It prefers newline boundaries and, for Markdown, avoids cutting an inline code span in half.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	markdown := strings.HasPrefix(strings.ToLower(parseMode), "markdown")
	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}

		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if markdown && end < len(rs) {
			ticks, lastTick := 0, -1
			for i := start; i < end; i++ {
				if rs[i] == '`' {
					ticks++
					lastTick = i
				}
			}
			if ticks%2 == 1 && lastTick > start {
				end = lastTick
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
