package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/balancepro/studio-server/internal/audit"
	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/httputil"
	"github.com/balancepro/studio-server/internal/middleware"
	"github.com/balancepro/studio-server/internal/model"
	"github.com/balancepro/studio-server/internal/util"
)

type scheduler interface {
	Schedule(ctx context.Context, title string, scheduledAt time.Time, invites model.InviteSet) (string, error)
	Launch(ctx context.Context, id string) (string, error)
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.ScheduledClass, error)
}

type ScheduleHandler struct {
	schedules scheduler
}

func NewScheduleHandler(schedules scheduler) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// Routes are trainer only.
func (h *ScheduleHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireRole(model.RoleTrainer))

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/{id}/launch", h.Launch)
	r.Delete("/{id}", h.Delete)

	return r
}

// GET /v1/schedules
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	classes, err := h.schedules.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if classes == nil {
		classes = []model.ScheduledClass{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": classes,
		"total": len(classes),
	})
}

// POST /v1/schedules
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title            string    `json:"title"`
		ScheduledAt      time.Time `json:"scheduledAt"`
		InvitedMemberIDs []string  `json:"invitedMemberIds"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.schedules.Schedule(r.Context(), req.Title, req.ScheduledAt, model.NewInviteSet(req.InvitedMemberIDs...))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// POST /v1/schedules/{id}/launch
func (h *ScheduleHandler) Launch(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	roomID, err := h.schedules.Launch(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventScheduleLaunch,
		ActorID: actorID(r),
		Details: map[string]any{"scheduleId": id, "roomId": roomID},
	})

	writeJSON(w, http.StatusOK, map[string]string{"roomId": roomID})
}

// DELETE /v1/schedules/{id}
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}
	if err := h.schedules.Remove(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	writeSuccess(w)
}

// Scheduled class ids are uuids. Anything else is rejected before a lookup.
func scheduleID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !util.IsValidUUID(id) {
		httputil.WriteError(w, apperrors.ValidationError("Invalid schedule id"))
		return "", false
	}
	return id, true
}
