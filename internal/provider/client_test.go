package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, apiKey string, opts ...Option) (*Client, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	opts = append([]Option{WithHTTPClient(server.Client())}, opts...)
	client, err := New(models.ProviderConfig{
		Name:            "avatar",
		BaseURL:         server.URL,
		APIKey:          apiKey,
		BreakerFailures: 2,
		BreakerTimeout:  time.Minute,
	}, opts...)
	require.NoError(t, err)
	return client, &hits
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var pe *Error
	require.True(t, errors.As(err, &pe), "expected *provider.Error, got %v", err)
	return pe.Kind
}

func TestDo_MissingKeyMakesNoRequest(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, "")

	assert.False(t, client.Configured())
	_, err := client.Do(context.Background(), http.MethodGet, "/v2/avatars", nil, nil)
	assert.Equal(t, KindConfig, kindOf(t, err))
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestDo_SendsBearerAndBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}, "secret")

	resp, err := client.Do(context.Background(), http.MethodPost, "/v1/run", map[string][]string{"lang": {"en"}}, map[string]string{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestDo_HeaderAuth(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("xi-api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{}`))
	}, "secret", WithAuth(HeaderAuth("xi-api-key")))

	_, err := client.Do(context.Background(), http.MethodGet, "/v1/voices", nil, nil)
	require.NoError(t, err)
}

func TestDo_UpstreamErrorIsTruncated(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("e", 2000)))
	}, "secret")

	_, err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindUpstream, pe.Kind)
	assert.Equal(t, http.StatusBadGateway, pe.Status)
	assert.Equal(t, MaxErrorBody+len("..."), len(pe.Message))
}

func TestEnvelope_NonZeroCode(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":40001,"data":null,"message":"avatar_id is invalid"}`))
	}, "secret")

	_, err := client.Envelope(context.Background(), http.MethodGet, "/x", nil, nil)
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindEnvelope, pe.Kind)
	assert.Contains(t, pe.Error(), "avatar_id is invalid")
}

func TestEnvelope_ErrorObject(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":"quota","message":"quota exceeded"},"data":null}`))
	}, "secret")

	_, err := client.Envelope(context.Background(), http.MethodGet, "/x", nil, nil)
	assert.Equal(t, KindEnvelope, kindOf(t, err))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestEnvelope_Success(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"data":{"video_id":"v1"},"message":"ok"}`))
	}, "secret")

	data, err := client.Envelope(context.Background(), http.MethodGet, "/x", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", data.Get("video_id").String())
}

func TestJSON_InvalidBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}, "secret")

	_, err := client.JSON(context.Background(), http.MethodGet, "/x", nil, nil)
	assert.Equal(t, KindUpstream, kindOf(t, err))
}

func TestBreaker_OpensOnServerErrorsOnly(t *testing.T) {
	var status int32 = http.StatusBadRequest
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(atomic.LoadInt32(&status)))
	}, "secret")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.Do(ctx, http.MethodGet, "/x", nil, nil)
		assert.Equal(t, KindUpstream, kindOf(t, err))
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(hits), "4xx responses never open the breaker")

	atomic.StoreInt32(&status, http.StatusServiceUnavailable)
	for i := 0; i < 2; i++ {
		_, err := client.Do(ctx, http.MethodGet, "/x", nil, nil)
		assert.Equal(t, KindUpstream, kindOf(t, err))
	}

	_, err := client.Do(ctx, http.MethodGet, "/x", nil, nil)
	assert.Equal(t, KindUnavailable, kindOf(t, err))
	assert.Equal(t, int32(5), atomic.LoadInt32(hits))
}

func TestDo_ObserverSeesOutcome(t *testing.T) {
	var outcomes []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}, "secret", WithObserver(func(provider, outcome string, _ time.Duration) {
		outcomes = append(outcomes, provider+":"+outcome)
	}))

	_, err := client.Do(context.Background(), http.MethodGet, "/x", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"avatar:success"}, outcomes)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...", Truncate("abcdef", 2))

	// "é" is two bytes; cutting at 2 would split it
	cut := Truncate("aéb", 2)
	assert.Equal(t, "a...", cut)
	assert.True(t, utf8.ValidString(cut))

	long := strings.Repeat("日本", MaxErrorBody)
	cut = Truncate(long, MaxErrorBody)
	assert.True(t, utf8.ValidString(cut))
	assert.LessOrEqual(t, len(cut), MaxErrorBody+len("..."))
}
