package api

import (
	"context"
	"net/http"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/auth"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/avatar"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/credits"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/provider"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/speech"

	"github.com/go-chi/chi/v5"
)

type generateVideoRequest struct {
	UserId          string `json:"userId" validate:"required"`
	AvatarId        string `json:"avatarId" validate:"required"`
	VoiceId         string `json:"voiceId" validate:"required"`
	Script          string `json:"script" validate:"required"`
	Title           string `json:"title" validate:"max=200"`
	BackgroundId    string `json:"backgroundId"`
	BackgroundColor string `json:"backgroundColor" validate:"omitempty,hexcolor"`
	Width           int    `json:"width" validate:"omitempty,min=128,max=4096"`
	Height          int    `json:"height" validate:"omitempty,min=128,max=4096"`
}

type synthesizeRequest struct {
	UserId  string `json:"userId"`
	VoiceId string `json:"voiceId" validate:"required"`
	Text    string `json:"text" validate:"required"`
	Model   string `json:"model"`
}

func (s *Server) handleListAvatars(w http.ResponseWriter, r *http.Request) {
	avatars, err := s.Avatar.ListAvatars(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"avatars": avatars})
}

func (s *Server) handleListAvatarVoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	voices, err := s.Avatar.ListVoices(r.Context(), avatar.VoiceQuery{
		Language: q.Get("language"),
		Gender:   q.Get("gender"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

func (s *Server) handleListBackgrounds(w http.ResponseWriter, r *http.Request) {
	backgrounds, err := s.Avatar.ListBackgrounds(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backgrounds": backgrounds})
}

// handleGenerateVideo reserves credits, then starts the render.
func (s *Server) handleGenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req generateVideoRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := auth.Authorize(models.GetIdentity(r.Context()), req.UserId); err != nil {
		writeError(w, r, err)
		return
	}
	if !s.Avatar.Configured() {
		writeError(w, r, provider.NotConfigured(s.Avatar.Name()))
		return
	}

	cost := s.Catalog.Costs.Video
	var job *models.VideoJob
	_, err := s.Credits.Run(r.Context(), credits.Charge{
		UserId:      req.UserId,
		Amount:      cost,
		Reason:      "video",
		Description: "Video generation",
	}, func(ctx context.Context) error {
		var err error
		job, err = s.Avatar.GenerateVideo(ctx, avatar.GenerateRequest{
			AvatarId:        req.AvatarId,
			VoiceId:         req.VoiceId,
			Script:          req.Script,
			Title:           req.Title,
			BackgroundId:    req.BackgroundId,
			BackgroundColor: req.BackgroundColor,
			Width:           req.Width,
			Height:          req.Height,
		})
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	job.CreditsCharged = cost
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	job, err := s.Avatar.GetVideo(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListSpeechVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.Speech.ListVoices(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}

// handleSynthesize returns raw MPEG audio. It is only credit-gated when speech has a cost.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cost := s.Catalog.Costs.Speech
	if cost > 0 && req.UserId == "" {
		writeError(w, r, badRequest("userId is required"))
		return
	}
	if req.UserId != "" {
		if err := auth.Authorize(models.GetIdentity(r.Context()), req.UserId); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if !s.Speech.Configured() {
		writeError(w, r, provider.NotConfigured(s.Speech.Name()))
		return
	}

	var audio []byte
	_, err := s.Credits.Run(r.Context(), credits.Charge{
		UserId:      req.UserId,
		Amount:      cost,
		Reason:      "speech",
		Description: "Speech synthesis",
	}, func(ctx context.Context) error {
		var err error
		audio, err = s.Speech.Synthesize(ctx, speech.SynthesizeRequest{
			VoiceId: req.VoiceId,
			Text:    req.Text,
			Model:   req.Model,
		})
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}
