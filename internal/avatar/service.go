package avatar

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/provider"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	pathAvatars     = "/v2/avatars"
	pathVoices      = "/v2/voices"
	pathBackgrounds = "/v2/backgrounds"
	pathGenerate    = "/v2/video/generate"
	pathVideoStatus = "/v1/video_status.get"

	defaultWidth  = 1280
	defaultHeight = 720
)

// Service wraps the avatar video provider.
type Service struct {
	client      *provider.Client
	voices      models.VoiceFilter
	backgrounds models.BackgroundFilter
}

func NewService(client *provider.Client, catalog *models.Catalog) *Service {
	s := &Service{client: client}
	if catalog != nil {
		s.voices = catalog.Voices
		s.backgrounds = catalog.Backgrounds
	}
	return s
}

func (s *Service) Configured() bool {
	return s.client.Configured()
}

func (s *Service) Name() string {
	return s.client.Name()
}

func (s *Service) ListAvatars(ctx context.Context) ([]models.Avatar, error) {
	data, err := s.client.Envelope(ctx, http.MethodGet, pathAvatars, nil, nil)
	if err != nil {
		return nil, err
	}

	avatars := []models.Avatar{}
	data.Get("avatars").ForEach(func(_, a gjson.Result) bool {
		avatars = append(avatars, models.Avatar{
			Id:              a.Get("avatar_id").String(),
			Name:            a.Get("avatar_name").String(),
			Gender:          a.Get("gender").String(),
			PreviewImageURL: a.Get("preview_image_url").String(),
			PreviewVideoURL: a.Get("preview_video_url").String(),
			Premium:         a.Get("premium").Bool(),
		})
		return true
	})
	return avatars, nil
}

// VoiceQuery narrows the voice list beyond the catalog filter.
type VoiceQuery struct {
	Language string
	Gender   string
}

func (s *Service) ListVoices(ctx context.Context, q VoiceQuery) ([]models.Voice, error) {
	data, err := s.client.Envelope(ctx, http.MethodGet, pathVoices, nil, nil)
	if err != nil {
		return nil, err
	}

	voices := []models.Voice{}
	data.Get("voices").ForEach(func(_, v gjson.Result) bool {
		voice := models.Voice{
			Id:         v.Get("voice_id").String(),
			Name:       v.Get("name").String(),
			Language:   v.Get("language").String(),
			Gender:     v.Get("gender").String(),
			PreviewURL: v.Get("preview_audio").String(),
		}
		if !s.voices.Allows(voice) {
			return true
		}
		if q.Language != "" && !strings.EqualFold(q.Language, voice.Language) {
			return true
		}
		if q.Gender != "" && !strings.EqualFold(q.Gender, voice.Gender) {
			return true
		}
		voices = append(voices, voice)
		return true
	})
	return voices, nil
}

func (s *Service) ListBackgrounds(ctx context.Context, bgType string) ([]models.Background, error) {
	data, err := s.client.Envelope(ctx, http.MethodGet, pathBackgrounds, nil, nil)
	if err != nil {
		return nil, err
	}

	backgrounds := []models.Background{}
	data.Get("backgrounds").ForEach(func(_, b gjson.Result) bool {
		bg := models.Background{
			Id:         b.Get("id").String(),
			Name:       b.Get("name").String(),
			Type:       b.Get("type").String(),
			URL:        b.Get("url").String(),
			PreviewURL: b.Get("preview_url").String(),
		}
		if !s.backgrounds.Allows(bg) {
			return true
		}
		if bgType != "" && !strings.EqualFold(bgType, bg.Type) {
			return true
		}
		backgrounds = append(backgrounds, bg)
		return true
	})
	return backgrounds, nil
}

// GenerateRequest describes one talking-avatar clip.
type GenerateRequest struct {
	AvatarId        string
	VoiceId         string
	Script          string
	Title           string
	BackgroundId    string
	BackgroundColor string
	Width           int
	Height          int
}

func (s *Service) GenerateVideo(ctx context.Context, req GenerateRequest) (*models.VideoJob, error) {
	width, height := req.Width, req.Height
	if width <= 0 || height <= 0 {
		width, height = defaultWidth, defaultHeight
	}

	input := map[string]any{
		"character": map[string]any{
			"type":         "avatar",
			"avatar_id":    req.AvatarId,
			"avatar_style": "normal",
		},
		"voice": map[string]any{
			"type":       "text",
			"input_text": req.Script,
			"voice_id":   req.VoiceId,
		},
	}
	switch {
	case req.BackgroundId != "":
		input["background"] = map[string]any{"type": "image", "image_asset_id": req.BackgroundId}
	case req.BackgroundColor != "":
		input["background"] = map[string]any{"type": "color", "value": req.BackgroundColor}
	}

	body := map[string]any{
		"video_inputs": []any{input},
		"dimension":    map[string]int{"width": width, "height": height},
	}
	if req.Title != "" {
		body["title"] = req.Title
	}

	data, err := s.client.Envelope(ctx, http.MethodPost, pathGenerate, nil, body)
	if err != nil {
		return nil, err
	}

	videoId := data.Get("video_id").String()
	if videoId == "" {
		return nil, &provider.Error{Provider: s.client.Name(), Kind: provider.KindUpstream, Message: "response missing video_id"}
	}

	zap.L().Info("Video generation started", zap.String("video_id", videoId), zap.String("avatar_id", req.AvatarId))
	return &models.VideoJob{VideoId: videoId, Status: "pending"}, nil
}

func (s *Service) GetVideo(ctx context.Context, videoId string) (*models.VideoJob, error) {
	data, err := s.client.Envelope(ctx, http.MethodGet, pathVideoStatus, url.Values{"video_id": {videoId}}, nil)
	if err != nil {
		return nil, err
	}

	job := &models.VideoJob{
		VideoId:      videoId,
		Status:       data.Get("status").String(),
		VideoURL:     data.Get("video_url").String(),
		ThumbnailURL: data.Get("thumbnail_url").String(),
		Duration:     data.Get("duration").Float(),
	}
	if e := data.Get("error"); e.Exists() && e.Type != gjson.Null {
		if msg := e.Get("message").String(); msg != "" {
			job.Error = msg
		} else {
			job.Error = e.String()
		}
	}
	return job, nil
}
