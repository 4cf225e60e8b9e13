package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/delta-app/delta/internal/auth"
	"github.com/delta-app/delta/internal/authz"
	"github.com/delta-app/delta/internal/shared"
	_ "github.com/delta-app/delta/testing"
)

type stubRepo struct {
	user *auth.User
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrInvalidCredentials
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

type stubProfiles struct {
	role authz.Role
}

func (s *stubProfiles) GetOrCreate(ctx context.Context, userID int64) (authz.Profile, error) {
	return authz.Profile{UserID: userID, Role: s.role}, nil
}

func (s *stubProfiles) RoleOf(ctx context.Context, userID int64) (authz.Role, error) {
	return s.role, nil
}

// newAuthRouter mounts the handler under /{locale} with the session
// middleware the real router provides, so URLParam and session context
// behave as in production.
func newAuthRouter(t *testing.T, repo auth.Repository, role authz.Role) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := auth.NewHandler(logger, auth.NewService(repo), &stubProfiles{role: role}, sessionManager, csrfManager, "en")

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			if err != nil {
				t.Fatalf("load session: %v", err)
			}
			ctx := shared.ContextWithSession(req.Context(), sess)
			wrapped := &commitWriter{ResponseWriter: w, commit: func() {
				if err := sessionManager.Commit(ctx, w, req, sess); err != nil {
					t.Errorf("commit session: %v", err)
				}
			}}
			next.ServeHTTP(wrapped, req.WithContext(ctx))
			wrapped.flush()
		})
	})
	r.Route("/{locale}", handler.MountRoutes)
	return r, sessionManager
}

// commitWriter persists the session right before the first header
// write, mirroring the production middleware.
type commitWriter struct {
	http.ResponseWriter
	commit func()
	done   bool
}

func (w *commitWriter) WriteHeader(code int) {
	if !w.done {
		w.done = true
		w.commit()
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *commitWriter) Write(b []byte) (int, error) {
	if !w.done {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *commitWriter) flush() {
	if !w.done {
		w.done = true
		w.commit()
	}
}

func activeUser(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.User{ID: 1, Email: "user@delta.local", PasswordHash: string(hashed), IsActive: true}
}

func TestShowSignInIssuesCSRFToken(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{}, authz.RoleUser)

	req := httptest.NewRequest(http.MethodGet, "/en/sign-in", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["csrf_token"] == "" {
		t.Fatalf("expected csrf token in response")
	}
	if body["locale"] != "en" {
		t.Fatalf("expected locale en, got %q", body["locale"])
	}
}

func TestSignInInvalidCredentials(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{user: activeUser(t, "correctpass")}, authz.RoleUser)

	form := url.Values{}
	form.Set("email", "user@delta.local")
	form.Set("password", "wrongpass1")

	req := httptest.NewRequest(http.MethodPost, "/en/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestSignInInactiveAccountRejected(t *testing.T) {
	user := activeUser(t, "correctpass")
	user.IsActive = false
	router, _ := newAuthRouter(t, &stubRepo{user: user}, authz.RoleUser)

	form := url.Values{}
	form.Set("email", "user@delta.local")
	form.Set("password", "correctpass")

	req := httptest.NewRequest(http.MethodPost, "/en/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestSignInRedirectsToRoleDashboard(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{user: activeUser(t, "correctpass")}, authz.RoleSupport)

	form := url.Values{}
	form.Set("email", "user@delta.local")
	form.Set("password", "correctpass")

	req := httptest.NewRequest(http.MethodPost, "/en/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if got := res.Header().Get("Location"); got != "/en/support/dashboard" {
		t.Fatalf("expected support dashboard redirect, got %q", got)
	}
}

func TestSignInHonorsValidRedirectTo(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{user: activeUser(t, "correctpass")}, authz.RoleUser)

	form := url.Values{}
	form.Set("email", "user@delta.local")
	form.Set("password", "correctpass")
	form.Set("redirectTo", "/en/user/uploads")

	req := httptest.NewRequest(http.MethodPost, "/en/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if got := res.Header().Get("Location"); got != "/en/user/uploads" {
		t.Fatalf("expected redirectTo honored, got %q", got)
	}
}

func TestSignInRejectsHostileRedirectTo(t *testing.T) {
	router, _ := newAuthRouter(t, &stubRepo{user: activeUser(t, "correctpass")}, authz.RoleUser)

	form := url.Values{}
	form.Set("email", "user@delta.local")
	form.Set("password", "correctpass")
	form.Set("redirectTo", "https://evil.example/phish")

	req := httptest.NewRequest(http.MethodPost, "/en/sign-in", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if got := res.Header().Get("Location"); got != "/en/user/dashboard" {
		t.Fatalf("expected fallback to dashboard, got %q", got)
	}
}

func TestSignOutDestroysSession(t *testing.T) {
	router, sessionManager := newAuthRouter(t, &stubRepo{}, authz.RoleUser)

	req := httptest.NewRequest(http.MethodPost, "/en/sign-out", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if got := res.Header().Get("Location"); got != "/en/sign-in" {
		t.Fatalf("expected sign-in redirect, got %q", got)
	}

	var cleared bool
	for _, c := range res.Result().Cookies() {
		if c.Name == sessionManager.CookieName() && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("expected session cookie cleared")
	}
}
