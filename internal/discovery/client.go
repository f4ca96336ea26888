package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tokenwatch/internal/observability"
	"tokenwatch/internal/ratelimit"
	logx "tokenwatch/pkg/logx"
)

const (
	DefaultURL     = "https://deep-index.moralis.io/api/v2/solana/pumpfun/new"
	DefaultTimeout = 10 * time.Second
	DefaultLimit   = 10

	maxBodyBytes = 4 << 20
)

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration

	// ResultPath is an optional gjson path selecting the array inside the body
	// (for example "result"). Empty means the body itself must be the array.
	ResultPath string
}

// Client is safe for concurrent use, though the monitor only calls it from one cycle at a time.
type Client struct {
	cfg      Config
	endpoint *url.URL
	http     *http.Client
	gate     *ratelimit.Gate
	log      logx.Logger
	metrics  *observability.Metrics

	now func() time.Time
}

// NewClient validates cfg and builds a client. gate may be nil (no spacing).
func NewClient(cfg Config, gate *ratelimit.Gate, log logx.Logger, m *observability.Metrics) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("discovery: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("discovery: unsupported url scheme %q", u.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:      cfg,
		endpoint: u,
		http:     &http.Client{Timeout: cfg.Timeout},
		gate:     gate,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}, nil
}

// FetchNew returns up to limit new entities. It never returns an error: a denied
// gate, transport failure, non-2xx status or unusable body all yield an empty list.
func (c *Client) FetchNew(ctx context.Context, limit int) []Entity {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if c.gate != nil && !c.gate.Acquire(c.now()) {
		c.log.Debug("rate limit: skipping discovery call", logx.Duration("min_interval", c.gate.MinInterval()))
		c.metrics.ObserveFetch(observability.FetchSkipped, 0, 0)
		return nil
	}

	start := time.Now()
	body, result, err := c.get(ctx, limit)
	if err != nil {
		c.log.Warn("discovery fetch failed", logx.String("result", result), logx.Err(err))
		c.metrics.ObserveFetch(result, 0, time.Since(start))
		return nil
	}

	entities, err := c.decode(body)
	if err != nil {
		c.log.Warn("discovery body unusable", logx.Err(err), logx.Int("bytes", len(body)))
		c.metrics.ObserveFetch(observability.FetchDecode, 0, time.Since(start))
		return nil
	}
	c.metrics.ObserveFetch(observability.FetchOK, len(entities), time.Since(start))
	c.log.Debug("discovery fetched", logx.Int("entities", len(entities)), logx.Duration("took", time.Since(start)))
	return entities
}

func (c *Client) get(ctx context.Context, limit int) ([]byte, string, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, observability.FetchTransport, err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, observability.FetchTransport, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, observability.FetchTransport, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, observability.FetchStatus, &StatusError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	return body, observability.FetchOK, nil
}

var errNotArray = errors.New("selected document is not a JSON array")

func (c *Client) decode(body []byte) ([]Entity, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("malformed JSON")
	}
	doc := gjson.ParseBytes(body)
	if p := strings.TrimSpace(c.cfg.ResultPath); p != "" {
		doc = doc.Get(p)
	}
	if !doc.IsArray() {
		return nil, errNotArray
	}

	out := make([]Entity, 0, len(doc.Array()))
	skipped := 0
	doc.ForEach(func(_, el gjson.Result) bool {
		if !el.IsObject() {
			skipped++
			return true
		}
		e := Entity{
			Symbol:       stringField(el, "symbol"),
			TokenAddress: stringField(el, "token_address"),
			Name:         stringField(el, "name"),
			Raw:          json.RawMessage(el.Raw),
		}
		if e.TokenAddress == "" {
			skipped++
			return true
		}
		out = append(out, e)
		return true
	})
	if skipped > 0 {
		c.log.Debug("discovery records skipped", logx.Int("count", skipped))
	}
	return out, nil
}

func stringField(el gjson.Result, key string) string {
	v := el.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return v.String()
}

// StatusError is a non-2xx discovery response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("discovery: http %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
