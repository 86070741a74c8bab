package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/balancepro/studio-server/internal/audit"
	apperrors "github.com/balancepro/studio-server/internal/errors"
	"github.com/balancepro/studio-server/internal/httputil"
	"github.com/balancepro/studio-server/internal/middleware"
	"github.com/balancepro/studio-server/internal/model"
)

type directory interface {
	Register(ctx context.Context, name, phone, secret string) (*model.Member, error)
	List(ctx context.Context) ([]model.Member, error)
	ReissueSecret(ctx context.Context, id, secret string) error
	Delete(ctx context.Context, id string) error
}

type dietBook interface {
	Prescribe(ctx context.Context, params model.PrescribeDietParams) (*model.DietPrescription, error)
	ForMember(ctx context.Context, memberID string) (*model.DietPrescription, error)
}

type MemberHandler struct {
	members directory
	diets   dietBook
}

func NewMemberHandler(members directory, diets dietBook) *MemberHandler {
	return &MemberHandler{members: members, diets: diets}
}

// Routes are trainer only.
func (h *MemberHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequireRole(model.RoleTrainer))

	r.Get("/", h.List)
	r.Post("/", h.Register)
	r.Put("/{id}/secret", h.ReissueSecret)
	r.Put("/{id}/diet", h.PrescribeDiet)
	r.Delete("/{id}", h.Delete)

	return r
}

// GET /v1/members
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)

	members, err := h.members.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	start, end := p.Window(len(members))
	writeJSON(w, http.StatusOK, map[string]any{
		"items": members[start:end],
		"total": len(members),
	})
}

// POST /v1/members
func (h *MemberHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		Phone      string `json:"phone"`
		AccessCode string `json:"accessCode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	member, err := h.members.Register(r.Context(), req.Name, req.Phone, req.AccessCode)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventMemberRegister,
		ActorID:  actorID(r),
		MemberID: member.ID,
	})

	writeJSON(w, http.StatusCreated, member)
}

// PUT /v1/members/{id}/secret
func (h *MemberHandler) ReissueSecret(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessCode string `json:"accessCode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.members.ReissueSecret(r.Context(), id, req.AccessCode); err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventSecretReissue,
		ActorID:  actorID(r),
		MemberID: id,
	})

	writeSuccess(w)
}

// DELETE /v1/members/{id}
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.members.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventMemberDelete,
		ActorID:  actorID(r),
		MemberID: id,
	})

	writeSuccess(w)
}

// PUT /v1/members/{id}/diet
func (h *MemberHandler) PrescribeDiet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nutrients string `json:"nutrients"`
		Meals     string `json:"meals"`
		Notes     string `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	diet, err := h.diets.Prescribe(r.Context(), model.PrescribeDietParams{
		MemberID:      id,
		NutrientGoals: req.Nutrients,
		MealPlan:      req.Meals,
		Notes:         req.Notes,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventDietPrescribe,
		ActorID:  actorID(r),
		MemberID: id,
	})

	writeJSON(w, http.StatusOK, diet)
}

// GET /v1/diet returns the caller's own prescription.
func (h *MemberHandler) OwnDiet(w http.ResponseWriter, r *http.Request) {
	member := middleware.GetMember(r.Context())
	if member == nil {
		httputil.WriteError(w, apperrors.Unauthorized("Authentication required"))
		return
	}

	diet, err := h.diets.ForMember(r.Context(), member.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, diet)
}
