package analysis

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

// Handler wires user-facing analysis endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers analysis routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.trigger)
	r.Get("/{analysisID}", h.get)
}

type triggerRequest struct {
	UploadID string `json:"upload_id" validate:"required,uuid4"`
}

// Response is the wire form of an analysis run, shared with the
// support review queue.
type Response struct {
	ID        string `json:"id"`
	UploadID  string `json:"upload_id"`
	Status    string `json:"status"`
	Summary   string `json:"summary,omitempty"`
	Error     string `json:"error,omitempty"`
	Flagged   bool   `json:"flagged"`
	FlagNote  string `json:"flag_note,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req triggerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	uploadID, err := uuid.Parse(req.UploadID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "upload id must be a uuid")
		return
	}

	run, err := h.service.Trigger(r.Context(), caller.UserID, uploadID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("trigger analysis", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, ToResponse(run))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	runs, err := h.service.List(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("list analyses", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]Response, 0, len(runs))
	for _, run := range runs {
		out = append(out, ToResponse(run))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "analysisID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "analysis id must be a uuid")
		return
	}
	run, err := h.service.Get(r.Context(), id, caller.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get analysis", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToResponse(run))
}

// ToResponse converts a run to its wire form.
func ToResponse(a Analysis) Response {
	return Response{
		ID:        a.ID.String(),
		UploadID:  a.UploadID.String(),
		Status:    a.Status,
		Summary:   a.Summary,
		Error:     a.Error,
		Flagged:   a.Flagged,
		FlagNote:  a.FlagNote,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
