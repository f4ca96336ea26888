package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "tokenwatch/internal/transport"
	logx "tokenwatch/pkg/logx"
)

type capturedRequest struct {
	Path string
	Body map[string]any
}

func newBotAPI(t *testing.T, status int, reply string) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{Path: r.URL.Path, Body: body})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

const okReply = `{"ok":true,"result":{"message_id":42,"date":1718000000,"chat":{"id":818339609,"type":"private"},"text":"hi"}}`

func TestSendTextPostsSendMessage(t *testing.T) {
	srv, captured := newBotAPI(t, http.StatusOK, okReply)
	s, err := New(Config{Token: "123:abc", APIURL: srv.URL}, logx.Nop())
	require.NoError(t, err)

	ref, err := s.SendText(context.Background(), kit.ChatTarget{ChatID: "818339609"}, "hello *world*", &kit.SendOptions{ParseMode: "Markdown"})
	require.NoError(t, err)
	assert.Equal(t, 42, ref.MessageID)
	assert.Equal(t, "818339609", ref.ChatID)

	reqs := captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/bot123:abc/sendMessage", reqs[0].Path)
	assert.Equal(t, "818339609", reqs[0].Body["chat_id"])
	assert.Equal(t, "hello *world*", reqs[0].Body["text"])
	assert.Equal(t, "Markdown", reqs[0].Body["parse_mode"])
}

func TestSendTextNon2xxIsError(t *testing.T) {
	srv, _ := newBotAPI(t, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`)
	s, err := New(Config{Token: "123:abc", APIURL: srv.URL}, logx.Nop())
	require.NoError(t, err)

	_, err = s.SendText(context.Background(), kit.ChatTarget{ChatID: "1"}, "x", nil)
	require.Error(t, err)

	var herr *HTTPError
	require.True(t, errors.As(err, &herr), "want HTTPError, got %v", err)
	assert.Equal(t, http.StatusBadRequest, herr.StatusCode)
	assert.Contains(t, herr.Body, "can't parse entities")
}

func TestSendTextServerDown(t *testing.T) {
	srv, _ := newBotAPI(t, http.StatusOK, okReply)
	url := srv.URL
	srv.Close()

	s, err := New(Config{Token: "123:abc", APIURL: url}, logx.Nop())
	require.NoError(t, err)
	_, err = s.SendText(context.Background(), kit.ChatTarget{ChatID: "1"}, "x", nil)
	assert.Error(t, err)
}

func TestSendTextHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okReply))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	s, err := New(Config{Token: "123:abc", APIURL: srv.URL, Timeout: 5 * time.Second}, logx.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = s.SendText(ctx, kit.ChatTarget{ChatID: "1"}, "x", nil)
	took := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, took, 2*time.Second)
}

func TestSendTextRejectsEmptyChat(t *testing.T) {
	s, err := New(Config{Token: "123:abc", APIURL: "http://127.0.0.1:1"}, logx.Nop())
	require.NoError(t, err)
	_, err = s.SendText(context.Background(), kit.ChatTarget{}, "x", nil)
	assert.Error(t, err)
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Config{Token: "  "}, logx.Nop())
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()

	short := "just one line"
	assert.Equal(t, []string{short}, splitTelegramText(short, 100, ""))

	long := strings.Repeat("line of text\n", 50)
	chunks := splitTelegramText(long, 100, "")
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100)
		assert.False(t, strings.HasSuffix(c, "\n"))
	}

	code := strings.Repeat("a", 90) + " `" + strings.Repeat("b", 30) + "`"
	chunks = splitTelegramText(code, 100, "Markdown")
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, strings.Count(chunks[0], "`")%2, "inline code must not be cut: %q", chunks[0])
}
