package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.Store.
var _ store.Store = (*Service)(nil)

const (
	maxResponseBytes  = 8 << 20
	maxErrorBodyBytes = 500

	preferRepresentation = "return=representation"
	preferMinimal        = "return=minimal"
	preferCount          = "count=exact"

	pgUniqueViolation = "23505"
)

// APIError is a non-2xx PostgREST response.
type APIError struct {
	Status int
	Code   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase API error %d: %s", e.Status, e.Body)
}

// Service is the store backend for a Supabase project, talking PostgREST with the
// service-role key. Balance changes are compare-and-swap PATCHes on the observed value.
type Service struct {
	baseURL    string
	serviceKey string
	maxRetries int
	httpClient *http.Client
}

func NewService(cfg models.SupabaseConfig) (*Service, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("SUPABASE_URL is required")
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("SUPABASE_URL must be an absolute URL")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	zap.L().Info("Using Supabase store", zap.String("url", cfg.URL))
	return &Service{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (s *Service) Ping(ctx context.Context) error {
	_, _, err := s.request(ctx, http.MethodGet, "profiles", url.Values{"select": {"id"}, "limit": {"1"}}, nil, "")
	return err
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (s *Service) Close() {}

// request performs one PostgREST call and returns the body and response headers.
func (s *Service) request(ctx context.Context, method, table string, query url.Values, body any, prefer string) ([]byte, http.Header, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zap.L().Warn("Failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes+1))
		msg := strings.TrimSpace(string(raw))
		if len(msg) > maxErrorBodyBytes {
			cut := maxErrorBodyBytes
			for cut > 0 && !utf8.RuneStart(msg[cut]) {
				cut--
			}
			msg = msg[:cut] + "...(truncated)"
		}
		return nil, nil, &APIError{
			Status: resp.StatusCode,
			Code:   gjson.Get(msg, "code").String(),
			Body:   msg,
		}
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.Header, nil
}

// selectRows decodes a GET into out.
func (s *Service) selectRows(ctx context.Context, table string, query url.Values, out any) error {
	body, _, err := s.request(ctx, http.MethodGet, table, query, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", table, err)
	}
	return nil
}

// mutate sends a write with return=representation and decodes the affected rows.
func (s *Service) mutate(ctx context.Context, method, table string, query url.Values, body, out any) error {
	respBody, _, err := s.request(ctx, method, table, query, body, preferRepresentation)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s: %w", table, err)
	}
	return nil
}

// count returns the exact row count PostgREST reports in Content-Range ("0-0/3" or "*/0").
func (s *Service) count(ctx context.Context, table string, query url.Values) (int64, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("select", "id")
	q.Set("limit", "1")
	_, header, err := s.request(ctx, http.MethodGet, table, q, nil, preferCount)
	if err != nil {
		return 0, err
	}
	contentRange := header.Get("Content-Range")
	idx := strings.LastIndex(contentRange, "/")
	if idx < 0 || idx == len(contentRange)-1 {
		return 0, fmt.Errorf("missing count in Content-Range %q", contentRange)
	}
	total := contentRange[idx+1:]
	if total == "*" {
		return 0, fmt.Errorf("count not returned in Content-Range %q", contentRange)
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count in Content-Range %q: %w", contentRange, err)
	}
	return n, nil
}

func eq(v string) string {
	return "eq." + v
}

func isUniqueViolation(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == pgUniqueViolation || apiErr.Status == http.StatusConflict
	}
	return false
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
