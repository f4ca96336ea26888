package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenwatch/internal/discovery"
	"tokenwatch/internal/monitor"
	"tokenwatch/internal/observability"
	"tokenwatch/internal/seen"
	logx "tokenwatch/pkg/logx"
)

type fixedStatus struct {
	last    time.Time
	tracked int
}

func (f fixedStatus) LastCheck() time.Time { return f.last }
func (f fixedStatus) Tracked() int         { return f.tracked }

func get(t *testing.T, h http.Handler, method, path string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	res := rec.Result()
	b, _ := io.ReadAll(res.Body)
	return res, string(b)
}

func TestLivenessAnyPath(t *testing.T) {
	s := New(Config{}, fixedStatus{}, nil, logx.Nop())
	h := s.Handler()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/"},
		{http.MethodGet, "/healthz"},
		{http.MethodHead, "/"},
		{http.MethodPost, "/deep/nested/path"},
	} {
		res, body := get(t, h, tc.method, tc.path)
		assert.Equal(t, http.StatusOK, res.StatusCode, tc.path)
		assert.Equal(t, "text/plain; charset=utf-8", res.Header.Get("Content-Type"))
		if tc.method != http.MethodHead {
			assert.Equal(t, "Token Monitor Bot Running\nLast check: never\nTracked tokens: 0", body)
		}
	}
}

func TestLivenessReportsStatus(t *testing.T) {
	last := time.Date(2025, 6, 17, 15, 45, 12, 345_000_000, time.UTC)
	s := New(Config{}, fixedStatus{last: last, tracked: 42}, nil, logx.Nop())

	_, body := get(t, s.Handler(), http.MethodGet, "/")
	assert.Equal(t, "Token Monitor Bot Running\nLast check: 2025-06-17T15:45:12.345Z\nTracked tokens: 42", body)
}

func TestMetricsRoute(t *testing.T) {
	m := observability.NewMetrics()
	s := New(Config{}, fixedStatus{}, m.Handler(), logx.Nop())

	res, body := get(t, s.Handler(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "go_goroutines")
}

func TestPprofRequiresToken(t *testing.T) {
	s := New(Config{Pprof: PprofConfig{Enabled: true, Token: "s3cret"}}, fixedStatus{}, nil, logx.Nop())
	h := s.Handler()

	res, _ := get(t, h, http.MethodGet, "/debug/pprof/")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, body := get(t, h, http.MethodGet, "/debug/pprof/?token=s3cret")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "goroutine")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPprofDisabledFallsBackToLiveness(t *testing.T) {
	s := New(Config{}, fixedStatus{}, nil, logx.Nop())
	_, body := get(t, s.Handler(), http.MethodGet, "/debug/pprof/")
	assert.True(t, strings.HasPrefix(body, "Token Monitor Bot Running"))
}

type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingNotifier) Notify(ctx context.Context, _ discovery.Entity) error {
	b.entered <- struct{}{}
	<-b.release
	return nil
}

type oneShot struct{}

func (oneShot) FetchNew(context.Context, int) []discovery.Entity {
	return []discovery.Entity{{Symbol: "FOOBLV", TokenAddress: "A1"}}
}

func TestServesWhileCycleBlocked(t *testing.T) {
	set := seen.New(10)
	set.Add("OLD")
	n := &blockingNotifier{entered: make(chan struct{}, 1), release: make(chan struct{})}
	m := monitor.New(monitor.Config{Suffix: "BLV"}, oneShot{}, n, set, logx.Nop())

	s := New(Config{Addr: "127.0.0.1:0"}, m, nil, logx.Nop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Tick(context.Background())
	}()
	<-n.entered

	client := &http.Client{Timeout: time.Second}
	res, err := client.Get(fmt.Sprintf("http://%s/anything", s.Addr()))
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	_ = res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "Tracked tokens: 1")
	assert.Contains(t, string(body), "Last check: never")

	close(n.release)
	<-done
	assert.Equal(t, 2, m.Tracked())
}

func TestStartReportsBindError(t *testing.T) {
	first := New(Config{Addr: "127.0.0.1:0"}, fixedStatus{}, nil, logx.Nop())
	require.NoError(t, first.Start(context.Background()))
	t.Cleanup(func() { _ = first.Stop(context.Background()) })

	second := New(Config{Addr: first.Addr()}, fixedStatus{}, nil, logx.Nop())
	assert.Error(t, second.Start(context.Background()))
	assert.Equal(t, "", second.Addr())
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, fixedStatus{}, nil, logx.Nop())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
