package api

import (
	"net/http"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/auth"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"

	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type dataSharingRequest struct {
	OptIn *bool `json:"opt_in" validate:"required"`
}

// profileUser returns the {userID} path parameter after checking the caller may act for it.
func profileUser(r *http.Request) (string, error) {
	userId := chi.URLParam(r, "userID")
	if err := auth.Authorize(models.GetIdentity(r.Context()), userId); err != nil {
		return "", err
	}
	return userId, nil
}

func (s *Server) handleGetCredits(w http.ResponseWriter, r *http.Request) {
	userId, err := profileUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	balance, err := s.Credits.Balance(r.Context(), userId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (s *Server) handleCreditHistory(w http.ResponseWriter, r *http.Request) {
	userId, err := profileUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if limit == 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	history, err := s.Credits.History(r.Context(), userId, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": history,
		"limit":        limit,
		"offset":       offset,
	})
}

func (s *Server) handleSetDataSharing(w http.ResponseWriter, r *http.Request) {
	userId, err := profileUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req dataSharingRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := s.Store.SetDataSharing(r.Context(), userId, *req.OptIn)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"userId": profile.Id,
		"optIn":  profile.DataSharingOptIn,
	})
}
