package idempotency

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
	maxKeyLength   = 255
)

// Middleware replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass straight through. 5xx responses are not stored.
func Middleware(store Store, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxKeyLength {
				writeError(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}

			scoped := scope(r, key)
			rec, err := store.Acquire(r.Context(), scoped, ttl)
			switch {
			case errors.Is(err, ErrInFlight):
				writeError(w, http.StatusConflict, "A request with this Idempotency-Key is already in progress")
				return
			case err != nil:
				zap.L().Error("Idempotency store unavailable", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			case rec != nil:
				replay(w, rec)
				return
			}

			buf := &recorder{ResponseWriter: w, status: http.StatusOK}
			completed := false
			defer func() {
				if !completed {
					if err := store.Abandon(context.WithoutCancel(r.Context()), scoped); err != nil {
						zap.L().Warn("Unable to release idempotency key", zap.String("key", scoped), zap.Error(err))
					}
				}
			}()

			next.ServeHTTP(buf, r)

			if buf.status >= http.StatusInternalServerError {
				return
			}
			record := &Record{Status: buf.status, ContentType: buf.Header().Get("Content-Type"), Body: buf.body.Bytes()}
			if err := store.Complete(context.WithoutCancel(r.Context()), scoped, record, ttl); err != nil {
				zap.L().Warn("Unable to store idempotent response", zap.String("key", scoped), zap.Error(err))
				return
			}
			completed = true
		})
	}
}

// scope keeps keys from different callers and routes apart. Unauthenticated
// callers are told apart by client address.
func scope(r *http.Request, key string) string {
	var caller string
	if id := models.GetIdentity(r.Context()); id != nil {
		caller = "user:" + id.UserId
	} else {
		caller = "anonymous:" + clientIP(r)
	}
	return caller + ":" + r.Method + ":" + r.URL.Path + ":" + key
}

// clientIP drops the port so retries over a new connection share a scope.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func replay(w http.ResponseWriter, rec *Record) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: msg})
}

// recorder tees the response so it can be stored after the handler returns.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
