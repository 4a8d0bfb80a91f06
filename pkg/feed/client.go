package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/tops/internal/logging"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/google/uuid"
)

// DefaultTimeout bounds every request to the feed endpoint.
const DefaultTimeout = 5 * time.Second

// DefaultPath is the resource served by the feed endpoint.
const DefaultPath = "/feed"

// maxBody caps the size of a feed response.
const maxBody = 8 << 20

// Client talks to a feed endpoint. It implements ports.LogFeed and ports.ChannelFeed.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets a custom structured logger for the client.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the endpoint at baseURL. A baseURL without a path
// gets DefaultPath appended.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid feed url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid feed url %q: scheme must be http or https", baseURL)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultPath
	}

	c := &Client{
		endpoint: u.String(),
		http:     &http.Client{},
		timeout:  DefaultTimeout,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the resolved feed URL.
func (c *Client) Endpoint() string { return c.endpoint }

// NewSessionID generates a client session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

type wireRecord struct {
	Timestamp int64  `json:"tstamp"`
	Level     string `json:"level"`
	Source    string `json:"source"`
	Body      string `json:"body"`
}

type wireChannel struct {
	Name string `json:"name"`
}

type envelope struct {
	Items    []wireRecord      `json:"items"`
	Channels []wireChannel     `json:"channels"`
	Values   []json.RawMessage `json:"values"`
}

// Configure stores the session's log filter on the server.
func (c *Client) Configure(ctx context.Context, uid string, sourceFilter string, minLevel domain.Level) error {
	form := url.Values{
		"uid":          {uid},
		"sourceFilter": {sourceFilter},
		"minLevel":     {minLevel.String()},
	}
	_, err := c.post(ctx, form)
	return err
}

// Records fetches the records buffered for the session.
func (c *Client) Records(ctx context.Context, uid string) ([]domain.LogRecord, error) {
	env, err := c.get(ctx, uid)
	if err != nil {
		return nil, err
	}

	out := make([]domain.LogRecord, 0, len(env.Items))
	for _, item := range env.Items {
		lvl, err := domain.ParseLevel(item.Level)
		if err != nil {
			return nil, &TransportError{Status: StatusParserError, Thrown: err.Error(), Err: err}
		}
		out = append(out, domain.LogRecord{
			Timestamp: time.UnixMilli(item.Timestamp),
			Level:     lvl,
			Source:    item.Source,
			Body:      item.Body,
		})
	}
	return out, nil
}

// Subscribe registers a channel pattern for the session and returns the matching channel names.
func (c *Client) Subscribe(ctx context.Context, uid string, pattern string) ([]string, error) {
	env, err := c.post(ctx, url.Values{"uid": {uid}, "pattern": {pattern}})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(env.Channels))
	for _, ch := range env.Channels {
		names = append(names, ch.Name)
	}
	return names, nil
}

// Values fetches the current values of the subscribed channels.
// String values are unquoted; any other JSON value is returned as its text.
func (c *Client) Values(ctx context.Context, uid string) ([]string, error) {
	env, err := c.get(ctx, uid)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(env.Values))
	for _, raw := range env.Values {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, uid string) (*envelope, error) {
	u := c.endpoint + "?" + url.Values{"uid": {uid}}.Encode()
	return c.do(ctx, http.MethodGet, u, nil)
}

func (c *Client) post(ctx context.Context, form url.Values) (*envelope, error) {
	return c.do(ctx, http.MethodPost, c.endpoint, form)
}

func (c *Client) do(ctx context.Context, method, target string, form url.Values) (*envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json, text/javascript")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, classify(err)
	}
	c.logger.Debug("feed exchange", "method", method, "status", resp.StatusCode, "bytes", len(data), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Status: StatusError, Thrown: http.StatusText(resp.StatusCode)}
	}

	env, err := decode(data)
	if err != nil {
		return nil, &TransportError{Status: StatusParserError, Thrown: err.Error(), Err: err}
	}
	return env, nil
}

func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TransportError{Status: StatusTimeout, Err: err}
	}
	return &TransportError{Status: StatusError, Thrown: err.Error(), Err: err}
}

// decode parses a feed response, accepting the parenthesized envelope,
// a bare JSON object, and an empty body.
func decode(data []byte) (*envelope, error) {
	data = bytes.TrimSpace(data)
	data = bytes.TrimSuffix(data, []byte(";"))
	if len(data) >= 2 && data[0] == '(' && data[len(data)-1] == ')' {
		data = bytes.TrimSpace(data[1 : len(data)-1])
	}
	env := &envelope{}
	if len(data) == 0 {
		return env, nil
	}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("decode feed response: %w", err)
	}
	return env, nil
}
