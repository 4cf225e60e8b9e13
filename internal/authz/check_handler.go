package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/delta-app/delta/internal/platform/httpx"
)

// CheckHandler re-validates role and path decisions for client-side
// navigations that skip a full server round-trip. It can only deny:
// the response steers the client away, it never widens server access.
type CheckHandler struct {
	Table         Table
	Profiles      ProfileSource
	Logger        *slog.Logger
	DefaultLocale string
	validator     *validator.Validate
}

// NewCheckHandler constructs the check endpoint handler.
func NewCheckHandler(table Table, profiles ProfileSource, logger *slog.Logger, defaultLocale string) *CheckHandler {
	return &CheckHandler{
		Table:         table,
		Profiles:      profiles,
		Logger:        logger,
		DefaultLocale: defaultLocale,
		validator:     validator.New(),
	}
}

type checkRequest struct {
	Path     string   `json:"path" validate:"required"`
	Allow    []string `json:"allow" validate:"omitempty,dive,oneof=user support admin"`
	Redirect string   `json:"redirect"`
}

type checkResponse struct {
	Allowed    bool   `json:"allowed"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// ServeHTTP evaluates the caller's role against the requested path and
// allow list.
func (h *CheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed json payload")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	locale := h.pathLocale(req.Path)
	fallback := h.fallbackTarget(locale, req.Redirect)

	userID, ok := sessionUserID(r)
	if !ok {
		httpx.JSON(w, http.StatusOK, checkResponse{Allowed: false, RedirectTo: fallback})
		return
	}

	role, err := h.Profiles.RoleOf(r.Context(), userID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("authz check role lookup", slog.Any("error", err), slog.Int64("user_id", userID))
		}
		httpx.JSON(w, http.StatusOK, checkResponse{Allowed: false, RedirectTo: fallback})
		return
	}

	if len(req.Allow) > 0 && !roleListed(role, req.Allow) {
		httpx.JSON(w, http.StatusOK, checkResponse{Allowed: false, RedirectTo: fallback})
		return
	}

	allowed, err := h.Table.IsRouteAllowed(role, req.Path)
	if err != nil || !allowed {
		if err != nil && h.Logger != nil {
			h.Logger.Error("authz check route", slog.Any("error", err), slog.String("role", string(role)))
		}
		httpx.JSON(w, http.StatusOK, checkResponse{Allowed: false, RedirectTo: fallback})
		return
	}

	httpx.JSON(w, http.StatusOK, checkResponse{Allowed: true})
}

func (h *CheckHandler) pathLocale(path string) string {
	if len(path) >= 3 && path[0] == '/' && isLocaleSegment(path[1:3]) && (len(path) == 3 || path[3] == '/') {
		return path[1:3]
	}
	return h.DefaultLocale
}

func (h *CheckHandler) fallbackTarget(locale, redirect string) string {
	if redirect != "" {
		if sanitized, ok := sanitizeReturnTarget(locale, redirect); ok {
			return sanitized
		}
	}
	return "/" + locale + "/sign-in"
}

func roleListed(role Role, allow []string) bool {
	for _, raw := range allow {
		if parsed, err := ParseRole(raw); err == nil && parsed == role {
			return true
		}
	}
	return false
}
