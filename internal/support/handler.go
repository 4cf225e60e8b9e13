// Package support is the review surface shared by support and admin
// roles: recent analyses across tenants, with reviewer flagging.
package support

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/delta-app/delta/internal/analysis"
	"github.com/delta-app/delta/internal/authz"
	"github.com/delta-app/delta/internal/platform/httpx"
	"github.com/delta-app/delta/internal/shared"
)

// Handler wires review-queue endpoints.
type Handler struct {
	logger    *slog.Logger
	analyses  *analysis.Service
	audit     *shared.AuditLogger
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, analyses *analysis.Service, audit *shared.AuditLogger) *Handler {
	return &Handler{logger: logger, analyses: analyses, audit: audit, validator: validator.New()}
}

// MountRoutes registers review routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.queue)
	r.Post("/{analysisID}/flag", h.flag)
}

type flagRequest struct {
	Note string `json:"note" validate:"required,max=500"`
}

func (h *Handler) queue(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	runs, err := h.analyses.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("review queue", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]analysis.Response, 0, len(runs))
	for _, run := range runs {
		out = append(out, analysis.ToResponse(run))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) flag(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "analysisID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "analysis id must be a uuid")
		return
	}
	var req flagRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	if err := h.analyses.Flag(r.Context(), id, req.Note); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("flag analysis", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	if err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   "analysis.flag",
		Entity:   "analysis",
		EntityID: id.String(),
		Meta:     map[string]any{"note": req.Note},
	}); err != nil {
		h.logger.Warn("audit flag", slog.Any("error", err))
	}

	w.WriteHeader(http.StatusNoContent)
}
