package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/provider"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, handler http.HandlerFunc, apiKey string, maxChars int) (*Service, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	cfg := models.SpeechConfig{
		ProviderConfig: models.ProviderConfig{Name: "speech", BaseURL: server.URL, APIKey: apiKey},
		Model:          "eleven_multilingual_v2",
		MaxChars:       maxChars,
	}
	client, err := provider.New(cfg.ProviderConfig,
		provider.WithHTTPClient(server.Client()),
		provider.WithAuth(provider.HeaderAuth("xi-api-key")))
	require.NoError(t, err)
	return NewService(client, cfg, nil), &hits
}

func TestSynthesize_ReturnsAudio(t *testing.T) {
	service, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("xi-api-key"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "eleven_multilingual_v2", body["model_id"])
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = io.WriteString(w, "ID3audio")
	}, "key", 100)

	audio, err := service.Synthesize(context.Background(), SynthesizeRequest{VoiceId: "voice-1", Text: "Hasta la vista"})
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3audio"), audio)
}

func TestSynthesize_TextTooLongMakesNoRequest(t *testing.T) {
	service, hits := newTestService(t, func(w http.ResponseWriter, r *http.Request) {}, "key", 10)

	_, err := service.Synthesize(context.Background(), SynthesizeRequest{VoiceId: "v", Text: strings.Repeat("a", 11)})
	assert.True(t, errors.Is(err, ErrTextTooLong))
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestSynthesize_MissingKey(t *testing.T) {
	service, hits := newTestService(t, func(w http.ResponseWriter, r *http.Request) {}, "", 10)

	_, err := service.Synthesize(context.Background(), SynthesizeRequest{VoiceId: "v", Text: "hi"})
	var pe *provider.Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, provider.KindConfig, pe.Kind)
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestListVoices_ReadsLabels(t *testing.T) {
	service, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"voices":[{"voice_id":"v1","name":"Rachel","category":"premade",
			"labels":{"gender":"female","language":"en"},"preview_url":"https://cdn/r.mp3"}]}`)
	}, "key", 10)

	voices, err := service.ListVoices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "female", voices[0].Gender)
	assert.Equal(t, "premade", voices[0].Category)
}
