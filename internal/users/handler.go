// Package users is the admin surface for account and role management.
package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/delta-app/delta/internal/authz"
	"github.com/delta-app/delta/internal/platform/httpx"
	"github.com/delta-app/delta/internal/profiles"
	"github.com/delta-app/delta/internal/shared"
)

// Handler wires admin user-management endpoints.
type Handler struct {
	logger    *slog.Logger
	profiles  *profiles.Service
	audit     *shared.AuditLogger
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, profilesSvc *profiles.Service, audit *shared.AuditLogger) *Handler {
	return &Handler{logger: logger, profiles: profilesSvc, audit: audit, validator: validator.New()}
}

// MountRoutes registers user-management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Put("/{userID}/role", h.setRole)
}

type userResponse struct {
	UserID      int64  `json:"user_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user support admin"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.profiles.List(r.Context())
	if err != nil {
		h.logger.Error("list profiles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]userResponse, 0, len(items))
	for _, p := range items {
		out = append(out, userResponse{UserID: p.UserID, Role: string(p.Role), DisplayName: p.DisplayName})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "user id must be a positive integer")
		return
	}
	var req setRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	role, err := h.profiles.SetRole(r.Context(), userID, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		case errors.Is(err, authz.ErrUnknownRole):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "role must be one of user, support, admin")
		default:
			h.logger.Error("set role", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}

	if err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   "role.change",
		Entity:   "profile",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"role": string(role)},
	}); err != nil {
		h.logger.Warn("audit role change", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, userResponse{UserID: userID, Role: string(role)})
}
