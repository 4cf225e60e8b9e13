package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/delta-app/delta/internal/authz"
	"github.com/delta-app/delta/internal/platform/httpx"
	"github.com/delta-app/delta/internal/shared"
)

// Handler wires report endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.request)
	r.Get("/{reportID}", h.get)
}

type requestBody struct {
	Kind string `json:"kind" validate:"required,oneof=summary detailed"`
}

type reportResponse struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	StorageKey string `json:"storage_key,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req requestBody
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	rep, err := h.service.Request(r.Context(), caller.UserID, req.Kind)
	if err != nil {
		h.logger.Error("request report", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, toResponse(rep))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	items, err := h.service.List(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("list reports", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]reportResponse, 0, len(items))
	for _, rep := range items {
		out = append(out, toResponse(rep))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "reportID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "report id must be a uuid")
		return
	}
	rep, err := h.service.Get(r.Context(), id, caller.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(rep))
}

func toResponse(rep Report) reportResponse {
	return reportResponse{
		ID:         rep.ID.String(),
		Kind:       rep.Kind,
		Status:     rep.Status,
		StorageKey: rep.StorageKey,
		Error:      rep.Error,
		CreatedAt:  rep.CreatedAt.UTC().Format(time.RFC3339),
	}
}
