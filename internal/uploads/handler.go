package uploads

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/delta-app/delta/internal/authz"
	"github.com/delta-app/delta/internal/platform/httpx"
	"github.com/delta-app/delta/internal/shared"
)

// IdempotencyHeader lets clients retry upload registration safely.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires upload metadata endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	idem      *shared.IdempotencyStore
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, idem *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idem: idem, validator: validator.New()}
}

// MountRoutes registers upload routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.register)
	r.Get("/{uploadID}", h.get)
	r.Delete("/{uploadID}", h.remove)
}

type registerRequest struct {
	Filename    string `json:"filename" validate:"required"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes" validate:"required,gt=0"`
}

type uploadResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
	StorageKey  string `json:"storage_key"`
	CreatedAt   string `json:"created_at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)
	items, meta, err := h.service.List(r.Context(), caller.UserID, page, perPage)
	if err != nil {
		h.logger.Error("list uploads", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]uploadResponse, 0, len(items))
	for _, u := range items {
		out = append(out, toResponse(u))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items": out,
		"pagination": map[string]int{
			"page":        meta.Page,
			"per_page":    meta.PerPage,
			"total":       meta.Total,
			"total_pages": meta.TotalPages,
		},
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	idemKey := r.Header.Get(IdempotencyHeader)
	if idemKey != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, "uploads"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this upload was already registered")
				return
			}
			h.logger.Error("idempotency check", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
	}

	upload, err := h.service.Register(r.Context(), caller.UserID, req.Filename, req.ContentType, req.SizeBytes)
	if err != nil {
		if idemKey != "" && h.idem != nil {
			// Free the key so the client can retry.
			if delErr := h.idem.Delete(r.Context(), idemKey); delErr != nil {
				h.logger.Warn("idempotency rollback", slog.Any("error", delErr))
			}
		}
		h.logger.Error("register upload", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(upload))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "uploadID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "upload id must be a uuid")
		return
	}
	upload, err := h.service.Get(r.Context(), id, caller.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get upload", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(upload))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	caller, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "uploadID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "upload id must be a uuid")
		return
	}
	if err := h.service.Delete(r.Context(), id, caller.UserID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("delete upload", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toResponse(u Upload) uploadResponse {
	return uploadResponse{
		ID:          u.ID.String(),
		Filename:    u.Filename,
		SizeBytes:   u.SizeBytes,
		ContentType: u.ContentType,
		StorageKey:  u.StorageKey,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
