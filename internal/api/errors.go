package api

import (
	"errors"
	"net/http"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/auth"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/payments"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/provider"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/speech"
	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/store"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const msgInternal = "Internal server error"

// requestError is a client input problem reported verbatim with 400.
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// statusFor translates an error into the status and message the caller sees.
func statusFor(err error) (int, string) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return http.StatusBadRequest, reqErr.msg
	}

	var pe *provider.Error
	if errors.As(err, &pe) {
		switch pe.Kind {
		case provider.KindConfig, provider.KindUpstream, provider.KindEnvelope:
			return http.StatusInternalServerError, pe.Message
		case provider.KindUnavailable:
			return http.StatusInternalServerError, pe.Provider + " is temporarily unavailable"
		default:
			return http.StatusInternalServerError, pe.Provider + " request failed"
		}
	}

	switch {
	case errors.Is(err, speech.ErrTextTooLong):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, payments.ErrInvalidSignature):
		return http.StatusBadRequest, "Invalid webhook signature"
	case errors.Is(err, payments.ErrWebhookNotConfigured):
		return http.StatusInternalServerError, err.Error()
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, store.ErrInsufficientCredits):
		return http.StatusPaymentRequired, "Insufficient credits"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, store.ErrDuplicateTransaction):
		return http.StatusConflict, "Already processed"
	case errors.Is(err, store.ErrConcurrentModification):
		return http.StatusConflict, "Balance changed concurrently, please retry"
	}
	return http.StatusInternalServerError, msgInternal
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("Request failed", fields...)
	} else {
		zap.L().Info("Request rejected", fields...)
	}

	writeMessage(w, status, msg)
}
