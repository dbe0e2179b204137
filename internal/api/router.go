package api

import (
	"net/http"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/idempotency"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(recoverer)
	if s.Metrics != nil {
		r.Use(s.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.Server.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", idempotency.HeaderKey, chimiddleware.RequestIDHeader},
		ExposedHeaders: []string{idempotency.HeaderReplayed, chimiddleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Stripe signs webhooks; they carry no user token and must not be throttled.
		r.Post("/payments/webhook", s.handleWebhook)

		r.Group(func(r chi.Router) {
			if s.Server.RateLimitRequests > 0 {
				r.Use(httprate.Limit(
					s.Server.RateLimitRequests,
					s.Server.RateLimitWindow,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						writeMessage(w, http.StatusTooManyRequests, "Too many requests")
					}),
				))
			}
			r.Use(s.Auth.Middleware)

			idem := idempotency.Middleware(s.Idempotency, s.IdempotencyTTL)

			r.Get("/avatars", s.handleListAvatars)
			r.Get("/avatars/voices", s.handleListAvatarVoices)
			r.Get("/avatars/backgrounds", s.handleListBackgrounds)
			r.With(idem).Post("/videos/generate", s.handleGenerateVideo)
			r.Get("/videos/{videoID}", s.handleGetVideo)

			r.Get("/speech/voices", s.handleListSpeechVoices)
			r.With(idem).Post("/speech/synthesize", s.handleSynthesize)

			r.With(idem).Post("/workflows/{workflowID}/runs", s.handleRunWorkflow)
			r.Get("/workflows/runs/{runID}", s.handleGetWorkflowRun)
			r.Post("/workflows/runs/{runID}/cancel", s.handleCancelWorkflowRun)

			r.Get("/contests", s.handleListContests)
			r.Get("/contests/{contestID}", s.handleGetContest)
			r.Get("/contests/{contestID}/tokens", s.handleTokenSummary)
			r.With(idem).Post("/contests/{contestID}/tokens/purchase", s.handlePurchaseToken)

			r.Get("/profiles/{userID}/credits", s.handleGetCredits)
			r.Get("/profiles/{userID}/credits/history", s.handleCreditHistory)
			r.Put("/profiles/{userID}/data-sharing", s.handleSetDataSharing)

			r.Get("/credits/packs", s.handleListCreditPacks)
			r.With(idem).Post("/credits/checkout", s.handleCheckout)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.HealthCheck(r.Context()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		writeMessage(w, http.StatusServiceUnavailable, "Store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
