package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/provider"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrTextTooLong is returned before any upstream call when the script exceeds the limit.
var ErrTextTooLong = errors.New("text exceeds maximum length")

// Service wraps the speech-synthesis provider.
type Service struct {
	client   *provider.Client
	model    string
	maxChars int
	filter   models.VoiceFilter
}

func NewService(client *provider.Client, cfg models.SpeechConfig, catalog *models.Catalog) *Service {
	s := &Service{client: client, model: cfg.Model, maxChars: cfg.MaxChars}
	if s.maxChars <= 0 {
		s.maxChars = 5000
	}
	if catalog != nil {
		s.filter = catalog.Voices
	}
	return s
}

func (s *Service) Configured() bool {
	return s.client.Configured()
}

func (s *Service) Name() string {
	return s.client.Name()
}

func (s *Service) MaxChars() int {
	return s.maxChars
}

func (s *Service) ListVoices(ctx context.Context) ([]models.Voice, error) {
	res, err := s.client.JSON(ctx, http.MethodGet, "/v1/voices", nil, nil)
	if err != nil {
		return nil, err
	}

	voices := []models.Voice{}
	res.Get("voices").ForEach(func(_, v gjson.Result) bool {
		voice := models.Voice{
			Id:         v.Get("voice_id").String(),
			Name:       v.Get("name").String(),
			Category:   v.Get("category").String(),
			Gender:     v.Get("labels.gender").String(),
			Language:   v.Get("labels.language").String(),
			PreviewURL: v.Get("preview_url").String(),
		}
		if s.filter.Allows(voice) {
			voices = append(voices, voice)
		}
		return true
	})
	return voices, nil
}

// SynthesizeRequest is one text-to-speech call. An empty Model uses the configured default.
type SynthesizeRequest struct {
	VoiceId string
	Text    string
	Model   string
}

// Synthesize returns MPEG audio for the text.
func (s *Service) Synthesize(ctx context.Context, req SynthesizeRequest) ([]byte, error) {
	if n := utf8.RuneCountInString(req.Text); n > s.maxChars {
		return nil, fmt.Errorf("%w: %d > %d characters", ErrTextTooLong, n, s.maxChars)
	}

	model := req.Model
	if model == "" {
		model = s.model
	}

	resp, err := s.client.Do(ctx, http.MethodPost, "/v1/text-to-speech/"+url.PathEscape(req.VoiceId),
		url.Values{"output_format": {"mp3_44100_128"}},
		map[string]any{
			"text":     req.Text,
			"model_id": model,
		})
	if err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return nil, &provider.Error{Provider: s.client.Name(), Kind: provider.KindUpstream, Message: "empty audio response"}
	}

	zap.L().Info("Speech synthesized",
		zap.String("voice_id", req.VoiceId),
		zap.String("model", model),
		zap.Int("bytes", len(resp.Body)))
	return resp.Body, nil
}
