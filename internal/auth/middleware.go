package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ServiceRole may act on behalf of any user.
const ServiceRole = "service_role"

var ErrForbidden = errors.New("caller may not act for this user")

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier checks Supabase session JWTs signed with the project's HS256 secret.
type Verifier struct {
	secret   []byte
	required bool
}

func NewVerifier(cfg models.AuthConfig) *Verifier {
	return &Verifier{secret: []byte(cfg.JWTSecret), required: cfg.Required}
}

// Enabled reports whether tokens can be verified at all.
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify parses token and returns the identity it carries.
func (v *Verifier) Verify(token string) (*models.Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid || c.Subject == "" {
		return nil, errors.New("jwt invalid")
	}
	return &models.Identity{UserId: c.Subject, Email: c.Email, Role: c.Role}, nil
}

// Middleware attaches the verified identity to the request context.
// Without a secret nothing is verified. A presented but invalid token is always 401;
// a missing token is 401 only when auth is required.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			if v.required {
				unauthorized(w, "Authentication required")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
			unauthorized(w, "Invalid authorization header format")
			return
		}

		identity, err := v.Verify(token)
		if err != nil {
			zap.L().Debug("Rejected bearer token", zap.Error(err))
			unauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(models.WithIdentity(r.Context(), identity)))
	})
}

// Authorize rejects a verified caller acting on another user's data.
// Anonymous callers pass; Middleware has already enforced AUTH_REQUIRED.
func Authorize(identity *models.Identity, userId string) error {
	if identity == nil || identity.Role == ServiceRole || identity.UserId == userId {
		return nil
	}
	return ErrForbidden
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: msg})
}
