package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/balancepro/studio-server/internal/audit"
	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/httputil"
	"github.com/balancepro/studio-server/internal/middleware"
	"github.com/balancepro/studio-server/internal/service"
	"github.com/balancepro/studio-server/internal/util"
)

type loginService interface {
	Login(ctx context.Context, phone, secret string) (*service.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

type AuthHandler struct {
	auth        loginService
	loginLimit  func(http.Handler) http.Handler
	requireAuth func(http.Handler) http.Handler
}

func NewAuthHandler(
	auth loginService,
	loginLimit func(http.Handler) http.Handler,
	requireAuth func(http.Handler) http.Handler,
) *AuthHandler {
	return &AuthHandler{
		auth:        auth,
		loginLimit:  loginLimit,
		requireAuth: requireAuth,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.loginLimit).Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})

	return r
}

// POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone      string `json:"phone"`
		AccessCode string `json:"accessCode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Phone, req.AccessCode)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeInvalidCredentials) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventLoginFailure,
				Details: map[string]any{"phone": util.MaskPhone(req.Phone)},
			})
		}
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventLoginSuccess,
		MemberID: result.Member.ID,
		Details:  map[string]any{"role": string(result.Member.Role)},
	})

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), middleware.GetToken(r.Context())); err != nil {
		log.Error().Err(err).Msg("failed to logout")
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventLogout,
		MemberID: actorID(r),
	})

	writeSuccess(w)
}

// GET /v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r.Context())
	if member == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, member)
}
