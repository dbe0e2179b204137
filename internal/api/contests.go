package api

import (
	"net/http"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/auth"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"

	"github.com/go-chi/chi/v5"
)

type purchaseTokenRequest struct {
	UserId string `json:"userId" validate:"required"`
}

func (s *Server) handleListContests(w http.ResponseWriter, r *http.Request) {
	contests, err := s.Contests.ListActive(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contests": contests})
}

func (s *Server) handleGetContest(w http.ResponseWriter, r *http.Request) {
	contest, err := s.Contests.Get(r.Context(), chi.URLParam(r, "contestID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contest)
}

func (s *Server) handleTokenSummary(w http.ResponseWriter, r *http.Request) {
	userId := r.URL.Query().Get("user_id")
	if userId == "" {
		writeError(w, r, badRequest("user_id is required"))
		return
	}
	if err := auth.Authorize(models.GetIdentity(r.Context()), userId); err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.Contests.TokenSummary(r.Context(), chi.URLParam(r, "contestID"), userId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handlePurchaseToken prices the next submission and returns a payment intent secret.
func (s *Server) handlePurchaseToken(w http.ResponseWriter, r *http.Request) {
	var req purchaseTokenRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := auth.Authorize(models.GetIdentity(r.Context()), req.UserId); err != nil {
		writeError(w, r, err)
		return
	}

	purchase, err := s.Contests.PurchaseToken(r.Context(), chi.URLParam(r, "contestID"), req.UserId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}
