package authz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta-app/delta/internal/shared"
)

type stubVerifier struct {
	err error
}

func (s *stubVerifier) VerifyUser(ctx context.Context, userID int64) error {
	return s.err
}

func newEdge(role Role) Middleware {
	return Middleware{
		Table:            DefaultTable(),
		Verifier:         &stubVerifier{},
		Profiles:         &stubProfiles{profile: Profile{Role: role}},
		Locales:          []string{"en", "fr"},
		UserScopeAnyRole: true,
	}
}

func edgeRequest(target string, userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	sess := &shared.Session{}
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

// serveEdge runs the middleware and reports whether next was reached,
// along with the identity next observed.
func serveEdge(m Middleware, req *http.Request) (*httptest.ResponseRecorder, bool, Identity) {
	var reached bool
	var identity Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		identity, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	res := httptest.NewRecorder()
	m.Handler(next).ServeHTTP(res, req)
	return res, reached, identity
}

func TestMiddlewarePassthroughWithoutLocale(t *testing.T) {
	m := newEdge(RoleUser)

	res, reached, _ := serveEdge(m, edgeRequest("/healthz", ""))
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, res.Code)

	_, reached, _ = serveEdge(m, edgeRequest("/api/authz/check", ""))
	assert.True(t, reached, "api routes are guarded per-route, not at the edge")

	_, reached, _ = serveEdge(m, edgeRequest("/xx/user/dashboard", ""))
	assert.True(t, reached, "unsupported locale prefixes are not edge-gated")
}

func TestMiddlewareRedirectsAnonymousToSignIn(t *testing.T) {
	m := newEdge(RoleUser)

	res, reached, _ := serveEdge(m, edgeRequest("/en/admin/dashboard", ""))

	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/en/sign-in?redirectTo=%2Fen%2Fadmin%2Fdashboard", res.Header().Get("Location"))
}

func TestMiddlewarePublicPathsSkipAuth(t *testing.T) {
	m := newEdge(RoleUser)

	for _, target := range []string{"/en/sign-in", "/en/auth/callback", "/en/unauthorized"} {
		_, reached, _ := serveEdge(m, edgeRequest(target, ""))
		assert.True(t, reached, "expected %s to pass through", target)
	}
}

func TestMiddlewareScopeEnforcement(t *testing.T) {
	cases := []struct {
		name    string
		role    Role
		target  string
		allowed bool
	}{
		{"admin reaches admin", RoleAdmin, "/en/admin/users", true},
		{"support denied admin", RoleSupport, "/en/admin/dashboard", false},
		{"user denied admin", RoleUser, "/en/admin/dashboard", false},
		{"admin reaches support", RoleAdmin, "/en/support/review", true},
		{"support reaches support", RoleSupport, "/en/support/dashboard", true},
		{"user denied support", RoleUser, "/en/support/review", false},
		{"user reaches user", RoleUser, "/en/user/uploads", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newEdge(tc.role)
			res, reached, identity := serveEdge(m, edgeRequest(tc.target, "7"))
			if tc.allowed {
				require.True(t, reached)
				assert.Equal(t, int64(7), identity.UserID)
				assert.Equal(t, tc.role, identity.Role)
				return
			}
			require.False(t, reached)
			assert.Equal(t, http.StatusSeeOther, res.Code)
			assert.Equal(t, "/en/unauthorized", res.Header().Get("Location"))
		})
	}
}

func TestMiddlewareUserScopePolicy(t *testing.T) {
	m := newEdge(RoleSupport)
	_, reached, _ := serveEdge(m, edgeRequest("/en/user/dashboard", "7"))
	assert.True(t, reached, "permissive policy admits any authenticated role")

	m.UserScopeAnyRole = false
	res, reached, _ := serveEdge(m, edgeRequest("/en/user/dashboard", "7"))
	assert.False(t, reached)
	assert.Equal(t, "/en/unauthorized", res.Header().Get("Location"))
}

func TestMiddlewareSignInBounce(t *testing.T) {
	m := newEdge(RoleSupport)

	res, reached, _ := serveEdge(m, edgeRequest("/en/sign-in", "7"))
	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/en/support/dashboard", res.Header().Get("Location"))

	res, reached, _ = serveEdge(m, edgeRequest("/en/sign-in?redirectTo=%2Fen%2Fsupport%2Freview", "7"))
	assert.False(t, reached)
	assert.Equal(t, "/en/support/review", res.Header().Get("Location"))

	// Hostile redirect hints reset to the role dashboard.
	res, _, _ = serveEdge(m, edgeRequest("/en/sign-in?redirectTo=https%3A%2F%2Fevil.example%2Fphish", "7"))
	assert.Equal(t, "/en/support/dashboard", res.Header().Get("Location"))
}

func TestMiddlewareIdentityFailureReadsAsAnonymous(t *testing.T) {
	m := newEdge(RoleUser)
	m.Verifier = &stubVerifier{err: errors.New("identity store down")}

	res, reached, _ := serveEdge(m, edgeRequest("/en/user/uploads", "7"))
	assert.False(t, reached)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/en/sign-in?redirectTo=%2Fen%2Fuser%2Fuploads", res.Header().Get("Location"))
}

func TestMiddlewareUnknownRoleFailsLoudly(t *testing.T) {
	m := newEdge(RoleUser)
	m.Profiles = &stubProfiles{roleErr: ErrUnknownRole}

	res, reached, _ := serveEdge(m, edgeRequest("/en/user/uploads", "7"))
	assert.False(t, reached)
	assert.Equal(t, http.StatusInternalServerError, res.Code, "corrupt roles are a server fault, never a silent grant")
}

func TestMiddlewareRoleLookupFailureDefaultsToUser(t *testing.T) {
	m := newEdge(RoleUser)
	m.Profiles = &stubProfiles{roleErr: errors.New("pg down")}

	// The lowest privilege still reaches user pages but not admin ones.
	_, reached, identity := serveEdge(m, edgeRequest("/en/user/dashboard", "7"))
	require.True(t, reached)
	assert.Equal(t, RoleUser, identity.Role)

	res, reached, _ := serveEdge(m, edgeRequest("/en/admin/users", "7"))
	assert.False(t, reached)
	assert.Equal(t, "/en/unauthorized", res.Header().Get("Location"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "unknown", ClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.9")
	assert.Equal(t, "10.0.0.9", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}
