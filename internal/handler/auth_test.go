package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/service"
)

type fakeLoginService struct {
	login  func(ctx context.Context, phone, secret string) (*service.LoginResult, error)
	logout func(ctx context.Context, token string) error
}

func (f *fakeLoginService) Login(ctx context.Context, phone, secret string) (*service.LoginResult, error) {
	return f.login(ctx, phone, secret)
}

func (f *fakeLoginService) Logout(ctx context.Context, token string) error {
	return f.logout(ctx, token)
}

func passThrough(next http.Handler) http.Handler { return next }

func TestAuthHandler_Login(t *testing.T) {
	expires := time.Date(2026, 11, 14, 9, 0, 0, 0, time.UTC)
	fake := &fakeLoginService{
		login: func(ctx context.Context, phone, secret string) (*service.LoginResult, error) {
			if phone == "98765 43210" && secret == "4321" {
				return &service.LoginResult{Token: "tok", ExpiresAt: expires, Member: alice}, nil
			}
			return nil, apperrors.InvalidCredentials()
		},
	}
	router := NewAuthHandler(fake, passThrough, passThrough).Routes()

	t.Run("success returns the token and member", func(t *testing.T) {
		rec := do(router, http.MethodPost, "/login", `{"phone":"98765 43210","accessCode":"4321"}`, nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec.Body.Bytes())
		assert.Equal(t, "tok", body["token"])
		assert.Equal(t, "2026-11-14T09:00:00Z", body["expiresAt"])
		assert.Equal(t, "user_alice", body["member"].(map[string]any)["uid"])
	})

	t.Run("wrong access code", func(t *testing.T) {
		rec := do(router, http.MethodPost, "/login", `{"phone":"98765 43210","accessCode":"0000"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_CREDENTIALS")
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := do(router, http.MethodPost, "/login", `phone=1`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthHandler_LoginIsRateLimited(t *testing.T) {
	calls := 0
	fake := &fakeLoginService{
		login: func(ctx context.Context, phone, secret string) (*service.LoginResult, error) {
			calls++
			return nil, apperrors.InvalidCredentials()
		},
	}
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	router := NewAuthHandler(fake, deny, passThrough).Routes()

	rec := do(router, http.MethodPost, "/login", `{"phone":"1","accessCode":"2"}`, nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Zero(t, calls)
}

func TestAuthHandler_LogoutAndMe(t *testing.T) {
	var loggedOut string
	fake := &fakeLoginService{
		logout: func(ctx context.Context, token string) error {
			loggedOut = token
			return nil
		},
	}
	router := NewAuthHandler(fake, passThrough, passThrough).Routes()

	t.Run("logout revokes the request token", func(t *testing.T) {
		rec := do(router, http.MethodPost, "/logout", "", &alice)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "token-user_alice", loggedOut)
	})

	t.Run("me returns the caller", func(t *testing.T) {
		rec := do(router, http.MethodGet, "/me", "", &trainer)
		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec.Body.Bytes())
		assert.Equal(t, "trainer", body["role"])
		assert.Equal(t, "Coach Priya", body["name"])
		assert.NotContains(t, body, "accessSecretHash")
	})

	t.Run("me without a member", func(t *testing.T) {
		rec := do(router, http.MethodGet, "/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
