// Package health serves the liveness page, Prometheus metrics and, when
// enabled, pprof on the listener the hosting platform probes.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	rtsup "tokenwatch/internal/runtime/supervisor"
	logx "tokenwatch/pkg/logx"
)

const (
	DefaultAddr = ":10000"

	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

type Config struct {
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Pprof PprofConfig
}

// PprofConfig mounts net/http/pprof under /debug. A non-empty Token is
// required as "Authorization: Bearer <token>" or "?token=".
type PprofConfig struct {
	Enabled bool
	Token   string
}

// Status is read on every request; it must not block on a running cycle.
type Status interface {
	LastCheck() time.Time
	Tracked() int
}

type Server struct {
	cfg     Config
	status  Status
	metrics http.Handler
	log     logx.Logger

	mu  sync.Mutex
	ln  net.Listener
	srv *http.Server
	sup *rtsup.Supervisor
}

// New builds the server. metrics may be nil (no /metrics route).
func New(cfg Config, status Status, metrics http.Handler, log logx.Logger) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		// pprof profile/trace default to 30s
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, status: status, metrics: metrics, log: log}
}

// Handler returns the routing tree; tests use it without a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	if s.cfg.Pprof.Enabled {
		r.Group(func(r chi.Router) {
			r.Use(bearerAuth(s.cfg.Pprof.Token))
			r.Mount("/debug", middleware.Profiler())
		})
	}
	r.HandleFunc("/*", s.liveness)
	r.NotFound(s.liveness)
	r.MethodNotAllowed(s.liveness)
	return r
}

func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	last := "never"
	tracked := 0
	if s.status != nil {
		if t := s.status.LastCheck(); !t.IsZero() {
			last = t.UTC().Format(isoMillis)
		}
		tracked = s.status.Tracked()
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "Token Monitor Bot Running\nLast check: %s\nTracked tokens: %d", last, tracked)
}

// Start binds the listener synchronously, so a port conflict is a startup
// error, then serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("health: listen %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.Pprof.Enabled && s.cfg.Pprof.Token == "" {
		s.log.Warn("pprof enabled without token", logx.String("addr", ln.Addr().String()))
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(s.log),
		rtsup.WithCancelOnError(false),
	)
	sup.Go("http.serve", func(c context.Context) error {
		err := srv.Serve(ln)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.log.Error("health server stopped", logx.Err(err))
		return err
	})

	s.ln, s.srv, s.sup = ln, srv, sup
	s.log.Info("HTTP server running", logx.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	srv, sup := s.srv, s.sup
	s.srv, s.sup, s.ln = nil, nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	err := srv.Shutdown(ctx)
	if err != nil {
		_ = srv.Close()
	}
	sup.Cancel()
	if werr := sup.Wait(ctx); err == nil && werr != nil && !errors.Is(werr, context.Canceled) {
		err = werr
	}
	return err
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("token") == tok {
				next.ServeHTTP(w, r)
				return
			}
			const p = "Bearer "
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(ah[len(p):]) == tok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}
