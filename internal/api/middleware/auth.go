package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/redact"
)

// UserContextMiddleware resolves the calling user's principal name and puts
// it on the request context. The upstream gateway has already authenticated
// the caller, so the token signature is not re-verified here; the middleware
// only needs the identity claims. Resolution order:
//
//  1. X-User-Upn header, when present;
//  2. the preferred_username or upn claim of the bearer token.
//
// Requests without a resolvable principal are rejected with 401.
type UserContextMiddleware struct {
	parser *jwt.Parser
}

// NewUserContextMiddleware creates the middleware.
func NewUserContextMiddleware() *UserContextMiddleware {
	return &UserContextMiddleware{parser: jwt.NewParser()}
}

// upnClaims is the subset of token claims carrying the principal name.
type upnClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username,omitempty"`
	UPN               string `json:"upn,omitempty"`
}

// Resolve is the middleware handler.
func (m *UserContextMiddleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upn := domain.NormalizeUPN(r.Header.Get("X-User-Upn"))
		if upn == "" {
			upn = m.upnFromBearer(r)
		}
		if upn == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized,
				"Could not determine calling user")
			return
		}

		ctx := shared.WithUserUPN(r.Context(), upn)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *UserContextMiddleware) upnFromBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	claims := &upnClaims{}
	if _, _, err := m.parser.ParseUnverified(parts[1], claims); err != nil {
		slog.Debug("failed to parse bearer token claims", "error", redact.Error(err))
		return ""
	}

	if upn := domain.NormalizeUPN(claims.PreferredUsername); upn != "" {
		return upn
	}
	return domain.NormalizeUPN(claims.UPN)
}

// GetUserUPN extracts the resolved principal name from the request context.
func GetUserUPN(r *http.Request) (string, bool) {
	return shared.GetUserUPN(r.Context())
}
