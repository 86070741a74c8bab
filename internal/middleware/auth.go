package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/httputil"
	"github.com/balancepro/studio-server/internal/model"
)

type contextKey string

const (
	MemberContextKey contextKey = "member"
	TokenContextKey  contextKey = "token"
)

func GetMember(ctx context.Context) *model.Member {
	if member, ok := ctx.Value(MemberContextKey).(*model.Member); ok {
		return member
	}
	return nil
}

// GetToken returns the bearer token the request was authenticated with.
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(TokenContextKey).(string)
	return token
}

type authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Member, error)
}

type AuthMiddleware struct {
	auth authenticator
}

func NewAuthMiddleware(auth authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		member, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrCodeUnauthorized) {
				log.Warn().Msg("auth middleware: invalid token attempt")
			}
			httputil.WriteError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), MemberContextKey, member)
		ctx = context.WithValue(ctx, TokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole only lets members with the given role through. It must run
// after AuthMiddleware.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member := GetMember(r.Context())
			if member == nil {
				httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
				return
			}
			if member.Role != role {
				httputil.WriteError(w, apperrors.Forbidden("This action requires the "+string(role)+" role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the bearer token. Browsers cannot set headers on an
// EventSource, so the query string is accepted too.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return r.URL.Query().Get("token")
}
