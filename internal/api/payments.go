package api

import (
	"io"
	"net/http"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/auth"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"

	"go.uber.org/zap"
)

type checkoutRequest struct {
	UserId string `json:"userId" validate:"required"`
	PackId string `json:"packId" validate:"required"`
}

func (s *Server) handleListCreditPacks(w http.ResponseWriter, r *http.Request) {
	packs := s.Catalog.CreditPacks
	if packs == nil {
		packs = []models.CreditPack{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"packs": packs})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := auth.Authorize(models.GetIdentity(r.Context()), req.UserId); err != nil {
		writeError(w, r, err)
		return
	}

	pack, ok := s.Catalog.Pack(req.PackId)
	if !ok {
		writeError(w, r, badRequest("Unknown credit pack"))
		return
	}

	session, err := s.Payments.CreateCheckoutSession(r.Context(), pack, req.UserId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleWebhook verifies a Stripe event and fulfils it. A non-2xx reply makes Stripe redeliver.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, badRequest("Unable to read request body"))
		return
	}

	event, err := s.Payments.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	zap.L().Info("Payment webhook received",
		zap.String("event_id", event.Id),
		zap.String("type", event.Type),
		zap.String("payment_id", event.PaymentId))

	if err := s.Webhooks.Handle(r.Context(), event); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
