package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/balancepro/studio-server/internal/audit"
	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/httputil"
	"github.com/balancepro/studio-server/internal/middleware"
	"github.com/balancepro/studio-server/internal/model"
	"github.com/balancepro/studio-server/internal/service"
)

type LiveHandler struct {
	live       *service.LiveSessionService
	attendance *service.AttendanceService
}

func NewLiveHandler(live *service.LiveSessionService, attendance *service.AttendanceService) *LiveHandler {
	return &LiveHandler{
		live:       live,
		attendance: attendance,
	}
}

// Routes expects an authenticated member on the request context.
func (h *LiveHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Get)
	r.Post("/join", h.Join)
	r.Post("/leave", h.Leave)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(model.RoleTrainer))
		r.Post("/", h.GoLive)
		r.Delete("/", h.End)
		r.Put("/invites", h.UpdateInvites)
		r.Post("/invites/{memberId}/toggle", h.ToggleInvite)
	})

	return r
}

// GET /v1/live
func (h *LiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r.Context())
	if member == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	state, err := h.live.Current(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, newLiveView(*member, state))
}

// POST /v1/live
func (h *LiveHandler) GoLive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvitedMemberIDs []string `json:"invitedMemberIds"`
		RoomID           string   `json:"roomId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	invites := model.NewInviteSet(req.InvitedMemberIDs...)
	roomID, err := h.live.GoLive(r.Context(), invites, req.RoomID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSessionLive,
		ActorID: actorID(r),
		Details: map[string]any{"roomId": roomID, "inviteCount": invites.Len()},
	})

	writeJSON(w, http.StatusCreated, map[string]string{"roomId": roomID})
}

// PUT /v1/live/invites
func (h *LiveHandler) UpdateInvites(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InvitedMemberIDs *[]string `json:"invitedMemberIds"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.InvitedMemberIDs == nil {
		httputil.WriteError(w, apperrors.MissingRequired("invitedMemberIds"))
		return
	}

	invites := model.NewInviteSet(*req.InvitedMemberIDs...)
	if err := h.live.UpdateInvites(r.Context(), invites); err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSessionInvites,
		ActorID: actorID(r),
		Details: map[string]any{"inviteCount": invites.Len()},
	})

	writeJSON(w, http.StatusOK, map[string]any{"invitedMemberIds": invites})
}

// POST /v1/live/invites/{memberId}/toggle
func (h *LiveHandler) ToggleInvite(w http.ResponseWriter, r *http.Request) {
	memberID := chi.URLParam(r, "memberId")

	invites, err := h.live.ToggleInvite(r.Context(), memberID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventSessionInvites,
		ActorID:  actorID(r),
		MemberID: memberID,
		Details:  map[string]any{"invited": invites.Contains(memberID)},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"memberId":         memberID,
		"invited":          invites.Contains(memberID),
		"invitedMemberIds": invites,
	})
}

// DELETE /v1/live
func (h *LiveHandler) End(w http.ResponseWriter, r *http.Request) {
	if err := h.live.EndSession(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSessionEnd,
		ActorID: actorID(r),
	})

	writeSuccess(w)
}

// POST /v1/live/join
func (h *LiveHandler) Join(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r.Context())
	if member == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	info, err := h.attendance.Join(r.Context(), *member)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// POST /v1/live/leave
func (h *LiveHandler) Leave(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r.Context())
	if member == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	left := h.attendance.Leave(member.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"left": left})
}

func actorID(r *http.Request) string {
	if member := middleware.GetMember(r.Context()); member != nil {
		return member.ID
	}
	return ""
}
