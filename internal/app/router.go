package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/delta-app/delta/internal/analysis"
	"github.com/delta-app/delta/internal/auth"
	"github.com/delta-app/delta/internal/authz"
	"github.com/delta-app/delta/internal/comparisons"
	"github.com/delta-app/delta/internal/observability"
	"github.com/delta-app/delta/internal/platform/httpx"
	"github.com/delta-app/delta/internal/reports"
	"github.com/delta-app/delta/internal/shared"
	"github.com/delta-app/delta/internal/support"
	"github.com/delta-app/delta/internal/uploads"
	"github.com/delta-app/delta/internal/users"
	"github.com/delta-app/delta/jobs"
	"github.com/delta-app/delta/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Locales        *Locales
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	EdgeAuthz authz.Middleware
	Guard     *authz.Guard

	AuthHandler        *auth.Handler
	CheckHandler       *authz.CheckHandler
	UploadsHandler     *uploads.Handler
	AnalysisHandler    *analysis.Handler
	ComparisonsHandler *comparisons.Handler
	ReportsHandler     *reports.Handler
	UsersHandler       *users.Handler
	SupportHandler     *support.Handler
	JobsHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with Delta defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.EdgeAuthz.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	r.Post("/api/authz/check", params.CheckHandler.ServeHTTP)

	// Bare root has no locale context yet; negotiate one and hand off
	// to the sign-in flow, which bounces signed-in callers onward.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		locale := params.Locales.Negotiate(r)
		http.Redirect(w, r, "/"+locale+"/sign-in", http.StatusSeeOther)
	})

	r.Route("/{locale}", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)

		r.Route("/user", func(r chi.Router) {
			r.Get("/dashboard", dashboardHandler(params, "user", authz.Roles()...))
			r.Route("/uploads", func(r chi.Router) {
				params.UploadsHandler.MountRoutes(r)
				r.Route("/analyses", params.AnalysisHandler.MountRoutes)
			})
			r.Route("/comparisons", params.ComparisonsHandler.MountRoutes)
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		})

		r.Route("/support", func(r chi.Router) {
			r.Get("/dashboard", dashboardHandler(params, "support", authz.RoleSupport, authz.RoleAdmin))
			r.Route("/review", params.SupportHandler.MountRoutes)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/dashboard", dashboardHandler(params, "admin", authz.RoleAdmin))
			r.Route("/users", params.UsersHandler.MountRoutes)
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		})
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// dashboardHandler is the landing probe behind each role section. The
// edge middleware already gated the scope; the guard re-checks against
// the section's required roles and resolves the full profile.
func dashboardHandler(params RouterParams, section string, required ...authz.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locale := chi.URLParam(r, "locale")
		if params.Locales != nil && !params.Locales.Supported(locale) {
			locale = params.Locales.Default()
		}

		var userID int64
		if identity, ok := authz.IdentityFromContext(r.Context()); ok {
			userID = identity.UserID
		}

		decision := params.Guard.Require(r.Context(), authz.GuardRequest{
			UserID:  userID,
			Locale:  locale,
			Path:    r.URL.Path,
			Referer: r.Referer(),
		}, required...)
		if !decision.Allowed() {
			http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
			return
		}

		httpx.JSON(w, http.StatusOK, map[string]any{
			"section":      section,
			"locale":       locale,
			"user_id":      decision.Profile.UserID,
			"role":         string(decision.Profile.Role),
			"display_name": decision.Profile.DisplayName,
		})
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
// Assets are fingerprinted by the frontend build, so an hour is safe.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
