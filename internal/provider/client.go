package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 64 << 20

// AuthFunc attaches the credential to an outbound request.
type AuthFunc func(req *http.Request, apiKey string)

// BearerAuth sends "Authorization: Bearer <key>".
func BearerAuth(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

// HeaderAuth sends the key in a provider-specific header.
func HeaderAuth(name string) AuthFunc {
	return func(req *http.Request, apiKey string) {
		req.Header.Set(name, apiKey)
	}
}

// Observer receives one call per completed upstream request.
type Observer func(provider, outcome string, elapsed time.Duration)

// Response is a successful (2xx) upstream reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client is the shared transport for one upstream provider. Typed provider
// packages wrap it with one method per upstream operation.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	auth       AuthFunc
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*Response]
	limiter    *rate.Limiter
	observe    Observer
}

type Option func(*Client)

func WithAuth(auth AuthFunc) Option {
	return func(c *Client) { c.auth = auth }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observe = o }
}

// New builds a client from cfg. A missing API key is not an error here: the client
// is still constructed and every call reports KindConfig.
func New(cfg models.ProviderConfig, opts ...Option) (*Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("provider name cannot be empty")
	}

	c := &Client{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		auth:    BearerAuth,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc, err := newHttpClient(timeout)
		if err != nil {
			return nil, fmt.Errorf("unable to create http client for %s: %w", cfg.Name, err)
		}
		c.httpClient = hc
	}

	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}
	c.breaker = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			zap.L().Warn("Provider circuit breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return c, nil
}

// countsAsSuccess keeps client-side mistakes (4xx, bad envelopes) from tripping the breaker.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindUpstream && pe.Status > 0 && pe.Status < 500
	}
	return false
}

func (c *Client) Name() string {
	return c.name
}

// Configured reports whether the server holds a credential for this provider.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.baseURL != ""
}

// Do sends one request and returns the 2xx reply. body is JSON-encoded unless it is
// already a []byte.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	if !c.Configured() {
		return nil, NotConfigured(c.name)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Provider: c.name, Kind: KindTransport, Message: "rate limiter wait", Err: err}
		}
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*Response, error) {
		return c.send(ctx, method, path, query, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &Error{Provider: c.name, Kind: KindUnavailable, Message: "circuit open", Err: err}
	}

	if c.observe != nil {
		c.observe(c.name, outcome(err), time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		switch b := body.(type) {
		case []byte:
			reqBody = bytes.NewReader(b)
		default:
			payload, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("marshal %s request: %w", c.name, err)
			}
			reqBody = bytes.NewReader(payload)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", c.name, err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.auth(req, c.apiKey)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Provider: c.name, Kind: KindTransport, Message: method + " " + path, Err: err}
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close provider response body", zap.String("provider", c.name), zap.Error(err))
		}
	}()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, MaxErrorBody+1))
		zap.L().Warn("Provider returned non-success status",
			zap.String("provider", c.name),
			zap.String("path", path),
			zap.Int("status", httpResp.StatusCode))
		return nil, &Error{
			Provider: c.name,
			Kind:     KindUpstream,
			Status:   httpResp.StatusCode,
			Message:  Truncate(strings.TrimSpace(string(raw)), MaxErrorBody),
		}
	}

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Provider: c.name, Kind: KindTransport, Message: "read response", Err: err}
	}

	return &Response{Status: httpResp.StatusCode, Header: httpResp.Header, Body: respBody}, nil
}

// JSON sends a request and parses the reply as JSON.
func (c *Client) JSON(ctx context.Context, method, path string, query url.Values, body any) (gjson.Result, error) {
	resp, err := c.Do(ctx, method, path, query, body)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(resp.Body) {
		return gjson.Result{}, &Error{
			Provider: c.name,
			Kind:     KindUpstream,
			Message:  "invalid JSON: " + Truncate(string(resp.Body), MaxErrorBody),
		}
	}
	return gjson.ParseBytes(resp.Body), nil
}

// Envelope unwraps {code, data, message}: code 0 yields data, anything else a KindEnvelope error.
func (c *Client) Envelope(ctx context.Context, method, path string, query url.Values, body any) (gjson.Result, error) {
	res, err := c.JSON(ctx, method, path, query, body)
	if err != nil {
		return gjson.Result{}, err
	}
	return c.unwrap(res)
}

func (c *Client) unwrap(res gjson.Result) (gjson.Result, error) {
	code := res.Get("code")
	if code.Exists() && code.Int() != 0 {
		msg := res.Get("message").String()
		if msg == "" {
			msg = res.Get("msg").String()
		}
		if msg == "" {
			msg = fmt.Sprintf("code %d", code.Int())
		}
		return gjson.Result{}, &Error{Provider: c.name, Kind: KindEnvelope, Message: Truncate(msg, MaxErrorBody)}
	}
	if errMsg := res.Get("error"); errMsg.Exists() && errMsg.Type != gjson.Null {
		msg := errMsg.Get("message").String()
		if msg == "" {
			msg = errMsg.String()
		}
		return gjson.Result{}, &Error{Provider: c.name, Kind: KindEnvelope, Message: Truncate(msg, MaxErrorBody)}
	}
	return res.Get("data"), nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind.String()
	}
	return "error"
}
