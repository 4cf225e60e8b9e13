package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/delta-app/delta/internal/authz"
	"github.com/delta-app/delta/internal/platform/httpx"
	"github.com/delta-app/delta/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows. Pages are
// rendered by the SPA; the handlers speak forms/JSON and redirects.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	profiles       authz.ProfileSource
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	defaultLocale  string
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, profiles authz.ProfileSource, sessions *shared.SessionManager, csrf *shared.CSRFManager, defaultLocale string) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		profiles:       profiles,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
		defaultLocale:  defaultLocale,
	}
}

// MountRoutes registers auth routes under a locale scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sign-in", h.showSignIn)
	r.Post("/sign-in", h.handleSignIn)
	r.Post("/sign-out", h.handleSignOut)
	r.Get("/auth/callback", h.handleCallback)
	r.Get("/unauthorized", h.showUnauthorized)
}

type signInForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

func (h *Handler) locale(r *http.Request) string {
	if locale := chi.URLParam(r, "locale"); len(locale) == 2 {
		return locale
	}
	return h.defaultLocale
}

// showSignIn primes the session with a CSRF token for the SPA form.
func (h *Handler) showSignIn(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"csrf_token": token,
		"locale":     h.locale(r),
	})
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Form", "")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	locale := h.locale(r)

	form := signInForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "email and password are required")
		return
	}

	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		h.logger.Warn("sign-in rejected",
			slog.String("email", form.Email),
			slog.String("client_ip", authz.ClientIP(r)),
		)
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
		return
	}

	if sess == nil {
		h.logger.Error("session missing during sign-in")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	// Fresh session id on privilege change.
	if err := h.sessionManager.RotateID(r.Context(), sess); err != nil {
		h.logger.Warn("rotate session id", slog.Any("error", err))
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, authz.ClientIP(r), r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	http.Redirect(w, r, h.postSignInTarget(r, locale, user.ID), http.StatusSeeOther)
}

// postSignInTarget prefers a validated redirectTo hint, falling back to
// the caller's role dashboard.
func (h *Handler) postSignInTarget(r *http.Request, locale string, userID int64) string {
	hint := r.PostFormValue("redirectTo")
	if hint == "" {
		hint = r.URL.Query().Get("redirectTo")
	}
	if hint != "" {
		if target := authz.SafeReturnTarget(locale, hint); target != "/"+locale {
			return target
		}
	}
	role, err := h.profiles.RoleOf(r.Context(), userID)
	if err != nil {
		h.logger.Warn("post sign-in role lookup", slog.Any("error", err), slog.Int64("user_id", userID))
		role = authz.RoleUser
	}
	return role.DashboardPath(locale)
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/"+h.locale(r)+"/sign-in", http.StatusSeeOther)
}

// handleCallback finishes an external identity-provider round trip. The
// provider exchange itself lives outside this service; arriving here
// with a session simply routes the caller onward.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	locale := h.locale(r)
	target := authz.SafeReturnTarget(locale, r.URL.Query().Get("redirectTo"))
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) showUnauthorized(w http.ResponseWriter, r *http.Request) {
	httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have access to this section")
}
