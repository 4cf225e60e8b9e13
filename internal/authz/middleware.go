package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/delta-app/delta/internal/shared"
)

// Middleware is the coarse edge gate evaluated for every locale-prefixed
// request before routing. It short-circuits unauthenticated access to
// protected sections and bounces signed-in callers off the sign-in page.
type Middleware struct {
	Table    Table
	Verifier IdentityVerifier
	Profiles ProfileSource
	Logger   *slog.Logger
	Metrics  DecisionRecorder

	Locales []string
	// UserScopeAnyRole keeps the historical behavior of letting any
	// authenticated role reach /{locale}/user/... pages. When false the
	// user scope requires role user exactly.
	UserScopeAnyRole bool
}

// Paths under a locale that never require authentication.
var publicSuffixes = []string{"/sign-in", "/auth", "/unauthorized", "/static", "/api/auth"}

// Handler returns the middleware as a chi-compatible wrapper.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale, rest, ok := m.splitLocale(r.URL.Path)
		if !ok {
			// Infra and API routes carry no locale prefix; they are
			// guarded per-route, not here.
			next.ServeHTTP(w, r)
			return
		}

		if rest == "/sign-in" {
			m.serveSignIn(w, r, next, locale)
			return
		}
		if isPublicPath(rest) {
			next.ServeHTTP(w, r)
			return
		}

		scope, protected := protectedScope(rest)
		if !protected {
			next.ServeHTTP(w, r)
			return
		}

		userID, ok := sessionUserID(r)
		if !ok {
			m.record(r, OutcomeNoSession, 0, "")
			http.Redirect(w, r, SignInPath(locale, r.URL.Path), http.StatusSeeOther)
			return
		}

		if err := m.Verifier.VerifyUser(r.Context(), userID); err != nil {
			// A failing identity store reads as unauthenticated: safety
			// over availability.
			m.record(r, OutcomeIdentityFailure, userID, "")
			http.Redirect(w, r, SignInPath(locale, r.URL.Path), http.StatusSeeOther)
			return
		}

		role, err := m.resolveRole(r, userID)
		if err != nil {
			m.record(r, OutcomeUnknownRole, userID, "")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if !m.scopeAllows(scope, role) {
			m.record(r, OutcomeUnauthorized, userID, role)
			http.Redirect(w, r, "/"+locale+"/unauthorized", http.StatusSeeOther)
			return
		}

		m.record(r, OutcomeGranted, userID, role)
		ctx := ContextWithIdentity(r.Context(), Identity{UserID: userID, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// serveSignIn redirects already-authenticated callers away from the
// sign-in page, honoring a validated redirectTo when present.
func (m Middleware) serveSignIn(w http.ResponseWriter, r *http.Request, next http.Handler, locale string) {
	userID, ok := sessionUserID(r)
	if !ok {
		next.ServeHTTP(w, r)
		return
	}
	if err := m.Verifier.VerifyUser(r.Context(), userID); err != nil {
		next.ServeHTTP(w, r)
		return
	}
	role, err := m.resolveRole(r, userID)
	if err != nil {
		m.record(r, OutcomeUnknownRole, userID, "")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	target := role.DashboardPath(locale)
	if hint := r.URL.Query().Get("redirectTo"); hint != "" {
		if sanitized, valid := sanitizeReturnTarget(locale, hint); valid {
			target = sanitized
		}
	}
	m.record(r, OutcomeGranted, userID, role)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// resolveRole reads the caller's role, defaulting missing or failing
// profile lookups to the lowest privilege. Corrupt role values are a
// server fault and propagate.
func (m Middleware) resolveRole(r *http.Request, userID int64) (Role, error) {
	role, err := m.Profiles.RoleOf(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUnknownRole) {
			if m.Logger != nil {
				m.Logger.Error("middleware role outside closed set",
					slog.Any("error", err),
					slog.Int64("user_id", userID),
				)
			}
			return "", err
		}
		if m.Logger != nil {
			m.Logger.Warn("middleware role lookup failed, defaulting to user",
				slog.Any("error", err),
				slog.Int64("user_id", userID),
			)
		}
		return RoleUser, nil
	}
	return role, nil
}

func (m Middleware) scopeAllows(scope string, role Role) bool {
	switch scope {
	case "admin":
		return role == RoleAdmin
	case "support":
		return role == RoleAdmin || role == RoleSupport
	case "user":
		return m.UserScopeAnyRole || role == RoleUser
	}
	return false
}

func (m Middleware) record(r *http.Request, outcome Outcome, userID int64, role Role) {
	if m.Metrics != nil {
		m.Metrics.RecordDecision(outcome, role)
	}
	if m.Logger == nil {
		return
	}
	attrs := []any{
		slog.String("outcome", string(outcome)),
		slog.Int64("user_id", userID),
		slog.String("role", string(role)),
		slog.String("path", r.URL.Path),
		slog.String("client_ip", ClientIP(r)),
		slog.String("user_agent", r.UserAgent()),
	}
	if outcome == OutcomeGranted {
		m.Logger.Info("edge access granted", attrs...)
		return
	}
	m.Logger.Warn("edge access denied", attrs...)
}

// splitLocale peels a supported two-letter locale off the path. The
// remainder always starts with "/".
func (m Middleware) splitLocale(path string) (locale, rest string, ok bool) {
	if len(path) < 3 || path[0] != '/' || !isLocaleSegment(path[1:3]) {
		return "", "", false
	}
	if len(path) > 3 && path[3] != '/' {
		return "", "", false
	}
	locale = path[1:3]
	if len(m.Locales) > 0 && !containsString(m.Locales, locale) {
		return "", "", false
	}
	rest = path[3:]
	if rest == "" {
		rest = "/"
	}
	return locale, rest, true
}

func isPublicPath(rest string) bool {
	for _, suffix := range publicSuffixes {
		if matchesSegments(rest, suffix) {
			return true
		}
	}
	return false
}

// protectedScope reports whether the locale-stripped path targets a
// role-scoped section and which one.
func protectedScope(rest string) (string, bool) {
	for _, role := range Roles() {
		if matchesSegments(rest, "/"+string(role)) {
			return string(role), true
		}
	}
	return "", false
}

func sessionUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ClientIP extracts the caller address for audit logs: first entry of
// X-Forwarded-For, then X-Real-IP, else "unknown".
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		if fwd = strings.TrimSpace(fwd); fwd != "" {
			return fwd
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}
	return "unknown"
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
