package comparisons

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

// Handler wires comparison endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers comparison routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
}

type createRequest struct {
	LeftID  string `json:"left_id" validate:"required,uuid4"`
	RightID string `json:"right_id" validate:"required,uuid4,nefield=LeftID"`
}

type comparisonResponse struct {
	ID           string `json:"id"`
	LeftID       string `json:"left_id"`
	RightID      string `json:"right_id"`
	LeftSummary  string `json:"left_summary"`
	RightSummary string `json:"right_summary"`
	CreatedAt    string `json:"created_at"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	leftID, _ := uuid.Parse(req.LeftID)
	rightID, _ := uuid.Parse(req.RightID)

	cmp, err := h.service.Compare(r.Context(), caller.UserID, leftID, rightID)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		case errors.Is(err, ErrNotComparable):
			httpx.Problem(w, http.StatusConflict, "Not Comparable", err.Error())
		default:
			h.logger.Error("create comparison", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(cmp))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	items, err := h.service.List(r.Context(), caller.UserID)
	if err != nil {
		h.logger.Error("list comparisons", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]comparisonResponse, 0, len(items))
	for _, c := range items {
		out = append(out, toResponse(c))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func toResponse(c Comparison) comparisonResponse {
	return comparisonResponse{
		ID:           c.ID.String(),
		LeftID:       c.LeftID.String(),
		RightID:      c.RightID.String(),
		LeftSummary:  c.LeftSummary,
		RightSummary: c.RightSummary,
		CreatedAt:    c.CreatedAt.UTC().Format(time.RFC3339),
	}
}
